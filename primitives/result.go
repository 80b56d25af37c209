package primitives

// MaxResultData bounds the guest Result record's inline data payload. The
// guest never writes more; the host never copies more. Sized so the whole
// record, starting at RESULT_ADDR=0x100, ends at 0x30C, inside the low RW
// page and below the code mapping, which the host places at 0x1000
// (host.ProgramStartAddr), not 0x400: the guest's code mapping is RX only,
// so a Result record that overran into it would make the guest's own
// write-back fault.
const MaxResultData = 512

// resultHeaderSize is error_code:u32 + success:u8 + pad:3B + data_len:u32.
const resultHeaderSize = 4 + 1 + 3 + 4

// ResultRecordSize is the fixed encoded size of the guest Result layout at
// RESULT_ADDR.
const ResultRecordSize = resultHeaderSize + MaxResultData

// Result is the host-side, copied-not-aliased view of a guest's returned
// Result record.
type Result struct {
	Success   bool
	ErrorCode uint32
	Data      []byte
}

// DecodeResultRecord parses a fixed-layout guest Result record, as written
// by the guest at RESULT_ADDR, into a host-side Result. It returns
// ErrTruncated only when the buffer itself is too short to hold the fixed
// header plus the declared data_len; a data_len exceeding MaxResultData is
// clamped, since it describes the guest's own promise about its own bytes.
func DecodeResultRecord(buf []byte) (Result, error) {
	r := NewReader(buf)
	errorCode, err := r.U32()
	if err != nil {
		return Result{}, err
	}
	successByte, err := r.U8()
	if err != nil {
		return Result{}, err
	}
	if _, err := r.Bytes(3); err != nil { // padding
		return Result{}, err
	}
	dataLen, err := r.U32()
	if err != nil {
		return Result{}, err
	}
	if dataLen > MaxResultData {
		dataLen = MaxResultData
	}
	data, err := r.Bytes(int(dataLen))
	if err != nil {
		return Result{}, err
	}
	out := make([]byte, len(data))
	copy(out, data)
	return Result{Success: successByte != 0, ErrorCode: errorCode, Data: out}, nil
}

// EncodeResultRecord renders res into the fixed-layout guest record shape.
// Used by host-side test fixtures that simulate a guest's write at
// RESULT_ADDR, and by the call_program syscall to hand a nested call's
// Result back to the calling guest.
func EncodeResultRecord(res Result) []byte {
	w := NewWriter()
	w.PutU32(res.ErrorCode)
	if res.Success {
		w.PutU8(1)
	} else {
		w.PutU8(0)
	}
	w.PutBytes([]byte{0, 0, 0})
	w.PutU32(uint32(len(res.Data)))
	w.PutBytes(res.Data)
	return w.Bytes()
}
