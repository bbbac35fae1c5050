package keyvaluedb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckKeyAndValue(t *testing.T) {
	var nilPtr *string
	value := "v"

	require.ErrorIs(t, CheckKeyAndValue(nil, &value), errInvalidKey)
	require.ErrorIs(t, CheckKeyAndValue([]byte{}, &value), errInvalidKey)
	require.ErrorIs(t, CheckKeyAndValue([]byte{1}, nilPtr), errValueIsNil)
	require.ErrorIs(t, CheckKeyAndValue([]byte{1}, nil), errValueIsNil)
	require.NoError(t, CheckKeyAndValue([]byte{1}, &value))
	require.NoError(t, CheckKeyAndValue([]byte{1}, value))
}

func TestCBOR(t *testing.T) {
	type rec struct {
		_    struct{} `cbor:",toarray"`
		Name string
		Data []byte
	}
	b, err := EncodeCBOR(rec{Name: "a", Data: []byte{1, 2}})
	require.NoError(t, err)
	require.Equal(t, []byte{0x82, 0x61, 'a', 0x42, 1, 2}, b)

	var got rec
	require.NoError(t, DecodeCBOR(b, &got))
	require.Equal(t, "a", got.Name)
	require.Equal(t, []byte{1, 2}, got.Data)
}
