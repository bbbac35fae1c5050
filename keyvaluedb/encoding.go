package keyvaluedb

import (
	"github.com/fxamacker/cbor/v2"
)

type (
	EncodeFn func(v any) ([]byte, error)
	DecodeFn func(data []byte, v any) error
)

// deterministic encoding so that equal values are stored as equal bytes
var cborEncMode, _ = cbor.CoreDetEncOptions().EncMode()

// EncodeCBOR is the default value encoder of the databases.
func EncodeCBOR(v any) ([]byte, error) {
	return cborEncMode.Marshal(v)
}

// DecodeCBOR is the default value decoder of the databases.
func DecodeCBOR(data []byte, v any) error {
	return cbor.Unmarshal(data, v)
}
