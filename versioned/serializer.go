package versioned

import (
	"errors"
	"fmt"
)

// ErrCorruptedData is returned (wrapped) for every decoding failure.
var ErrCorruptedData = errors.New("corrupted data")

// Magic signature following the version byte in the header.
var magic = [3]byte{0xEF, 0xBE, 0x43}

// HeaderSize is the size of the version header in bytes.
const HeaderSize = 1 + len(magic)

type (
	// ReadFunc decodes version specific payload (the header has already been consumed).
	ReadFunc[T any] func(in *Input) (T, error)

	/*
	   Serializer is the capability contract of a versioned codec for type T:
	     - CurrentVersion is the version written by WritePayload;
	     - WritePayload writes the payload of the current version (without header);
	     - Reader returns decoder for the payload of given version or nil
	       when the version is not supported.
	*/
	Serializer[T any] interface {
		CurrentVersion() byte
		WritePayload(value T, out *Output) error
		Reader(version byte) ReadFunc[T]
	}

	/*
	   Readers is immutable version dispatch table. Build it once (package
	   level var) and use it to implement Serializer.Reader.
	*/
	Readers[T any] struct {
		m map[byte]ReadFunc[T]
	}
)

/*
NewReaders builds dispatch table. Panics when version zero is used or the
same version is registered twice as the table is meant to be initialized
at package init time.
*/
func NewReaders[T any](readers map[byte]ReadFunc[T]) Readers[T] {
	m := make(map[byte]ReadFunc[T], len(readers))
	for ver, rf := range readers {
		if ver == 0 {
			panic("version 0 is reserved")
		}
		if rf == nil {
			panic(fmt.Sprintf("reader for version %d is nil", ver))
		}
		m[ver] = rf
	}
	return Readers[T]{m: m}
}

// Get returns reader for the version or nil when version is not registered.
func (r Readers[T]) Get(version byte) ReadFunc[T] {
	return r.m[version]
}

// Versions returns number of registered versions.
func (r Readers[T]) Versions() int {
	return len(r.m)
}

// ToBytes encodes "value" using the current version of the serializer.
func ToBytes[T any](value T, s Serializer[T]) ([]byte, error) {
	out := NewOutput(64)
	if err := Write(out, value, s); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

/*
FromBytes decodes value encoded by any (past or current) version of the
serializer. All of the input must be consumed, trailing bytes are treated
as corruption.
*/
func FromBytes[T any](data []byte, s Serializer[T]) (T, error) {
	in := NewInput(data)
	v, err := Read(in, s)
	if err != nil {
		return v, err
	}
	if n := in.Remaining(); n != 0 {
		var zero T
		return zero, fmt.Errorf("%w: %d trailing bytes after the value", ErrCorruptedData, n)
	}
	return v, nil
}

// Write writes header and current version payload of "value" into "out".
func Write[T any](out *Output, value T, s Serializer[T]) error {
	out.WriteHeader(s.CurrentVersion())
	if err := s.WritePayload(value, out); err != nil {
		return fmt.Errorf("writing version %d payload: %w", s.CurrentVersion(), err)
	}
	return nil
}

/*
Read reads versioned value from "in". It is meant for embedding versioned
values into other structures, the input may contain more data after the
value.
*/
func Read[T any](in *Input, s Serializer[T]) (T, error) {
	var zero T
	ver, err := in.ReadHeader()
	if err != nil {
		return zero, err
	}
	rf := s.Reader(ver)
	if rf == nil {
		return zero, fmt.Errorf("%w: unsupported version %d", ErrCorruptedData, ver)
	}
	v, err := rf(in)
	if err != nil {
		if !errors.Is(err, ErrCorruptedData) {
			err = fmt.Errorf("%w: %w", ErrCorruptedData, err)
		}
		return zero, fmt.Errorf("reading version %d payload: %w", ver, err)
	}
	return v, nil
}
