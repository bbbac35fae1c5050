package versioned

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"
)

// Output is append-only buffer for writing payloads.
type Output struct {
	buf []byte
}

func NewOutput(capacity int) *Output {
	return &Output{buf: make([]byte, 0, capacity)}
}

// Bytes returns the written data, the slice is shared with the Output.
func (o *Output) Bytes() []byte { return o.buf }

func (o *Output) Len() int { return len(o.buf) }

func (o *Output) WriteHeader(version byte) {
	o.buf = append(o.buf, version, magic[0], magic[1], magic[2])
}

func (o *Output) WriteByte(b byte) error {
	o.buf = append(o.buf, b)
	return nil
}

func (o *Output) WriteBool(b bool) {
	if b {
		o.buf = append(o.buf, 1)
	} else {
		o.buf = append(o.buf, 0)
	}
}

func (o *Output) WriteInt16(v int16) {
	o.buf = binary.LittleEndian.AppendUint16(o.buf, uint16(v))
}

func (o *Output) WriteInt32(v int32) {
	o.buf = binary.LittleEndian.AppendUint32(o.buf, uint32(v))
}

func (o *Output) WriteInt64(v int64) {
	o.buf = binary.LittleEndian.AppendUint64(o.buf, uint64(v))
}

/*
WriteVarInt writes "v" as unsigned varint of v+1, values less than -1 are
not supported.
*/
func (o *Output) WriteVarInt(v int64) error {
	if v < -1 || v == math.MaxInt64 {
		return fmt.Errorf("value %d out of varint range", v)
	}
	o.buf = binary.AppendUvarint(o.buf, uint64(v+1))
	return nil
}

// WriteLength writes non-negative length/count prefix.
func (o *Output) WriteLength(n int) error {
	if n < 0 {
		return fmt.Errorf("negative length %d", n)
	}
	return o.WriteVarInt(int64(n))
}

// WriteString writes length prefixed UTF-8 bytes of "s", strings which are not valid UTF-8 are refused.
func (o *Output) WriteString(s string) error {
	if !utf8.ValidString(s) {
		return fmt.Errorf("string %q is not valid UTF-8", s)
	}
	if err := o.WriteLength(len(s)); err != nil {
		return err
	}
	o.buf = append(o.buf, s...)
	return nil
}

/*
Input is reader over in-memory payload. All read errors wrap ErrCorruptedData
and once an error has been returned the Input should not be used anymore.
*/
type Input struct {
	data []byte
	pos  int
}

func NewInput(data []byte) *Input {
	return &Input{data: data}
}

// Remaining returns number of unread bytes.
func (in *Input) Remaining() int { return len(in.data) - in.pos }

func (in *Input) next(n int) ([]byte, error) {
	if n > in.Remaining() {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, only %d left", ErrCorruptedData, n, in.pos, in.Remaining())
	}
	b := in.data[in.pos : in.pos+n]
	in.pos += n
	return b, nil
}

// ReadHeader reads and validates header, returns the version.
func (in *Input) ReadHeader() (byte, error) {
	b, err := in.next(HeaderSize)
	if err != nil {
		return 0, fmt.Errorf("reading header: %w", err)
	}
	if b[1] != magic[0] || b[2] != magic[1] || b[3] != magic[2] {
		return 0, fmt.Errorf("%w: invalid magic %X", ErrCorruptedData, b[1:])
	}
	if b[0] == 0 {
		return 0, fmt.Errorf("%w: version 0 is reserved", ErrCorruptedData)
	}
	return b[0], nil
}

func (in *Input) ReadByte() (byte, error) {
	b, err := in.next(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (in *Input) ReadBool() (bool, error) {
	b, err := in.ReadByte()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("%w: invalid boolean value %d at offset %d", ErrCorruptedData, b, in.pos-1)
	}
}

func (in *Input) ReadInt16() (int16, error) {
	b, err := in.next(2)
	if err != nil {
		return 0, err
	}
	return int16(binary.LittleEndian.Uint16(b)), nil
}

func (in *Input) ReadInt32() (int32, error) {
	b, err := in.next(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

func (in *Input) ReadInt64() (int64, error) {
	b, err := in.next(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(b)), nil
}

// ReadVarInt reads value written by Output.WriteVarInt.
func (in *Input) ReadVarInt() (int64, error) {
	v, n := binary.Uvarint(in.data[in.pos:])
	switch {
	case n == 0:
		return 0, fmt.Errorf("%w: truncated varint at offset %d", ErrCorruptedData, in.pos)
	case n < 0 || v > math.MaxInt64:
		return 0, fmt.Errorf("%w: varint overflow at offset %d", ErrCorruptedData, in.pos)
	}
	in.pos += n
	return int64(v) - 1, nil
}

/*
ReadLength reads length/count prefix. Every counted item takes at least
"minItemSize" bytes so a length which can't possibly fit into the remaining
input is rejected before anything gets allocated.
*/
func (in *Input) ReadLength(minItemSize int) (int, error) {
	start := in.pos
	v, err := in.ReadVarInt()
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("%w: negative length %d at offset %d", ErrCorruptedData, v, start)
	}
	if minItemSize > 0 && v > int64(in.Remaining()/minItemSize) {
		return 0, fmt.Errorf("%w: length %d at offset %d exceeds remaining %d bytes", ErrCorruptedData, v, start, in.Remaining())
	}
	return int(v), nil
}

// ReadString reads string written by Output.WriteString.
func (in *Input) ReadString() (string, error) {
	n, err := in.ReadLength(1)
	if err != nil {
		return "", err
	}
	b, err := in.next(n)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("%w: string at offset %d is not valid UTF-8", ErrCorruptedData, in.pos-n)
	}
	return string(b), nil
}
