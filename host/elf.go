package host

// ELFImage is the handoff an external ELF loader produces, per spec.md §1:
// "ELF parsing (assumed to yield (code_bytes, code_vaddr, rodata_bytes,
// rodata_vaddr, entry_va))". The host never parses an ELF itself.
type ELFImage struct {
	CodeBytes   []byte
	CodeVAddr   uint32
	RodataBytes []byte
	RodataVAddr uint32
	EntryVA     uint32
}

// ELFLoader is the external collaborator that turns a deployed account's
// raw code bytes into an ELFImage. Production hosts inject a real ELF
// parser; this repo never implements one.
type ELFLoader interface {
	Load(raw []byte) (ELFImage, error)
}

// FixedImageLoader is a trivial ELFLoader for host-side test fixtures: it
// treats a contract's deployed code as already being a bare RV32 code
// image with no rodata, loaded 1:1 at ProgramStartAddr with entry at the
// first byte. It stands in for "ELF parsing" in this repo's own tests and
// example fixtures, since compiling or parsing a real ELF is out of scope
// per spec.md §1.
type FixedImageLoader struct{}

// Load implements ELFLoader.
func (FixedImageLoader) Load(raw []byte) (ELFImage, error) {
	return ELFImage{
		CodeBytes: raw,
		CodeVAddr: ProgramStartAddr,
		EntryVA:   ProgramStartAddr,
	}, nil
}
