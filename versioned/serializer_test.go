package versioned

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type (
	// version 1 had only name, version 2 added weight
	item struct {
		name   string
		weight int32
	}

	itemSerializer struct{}
)

var itemReaders = NewReaders(map[byte]ReadFunc[item]{
	1: func(in *Input) (item, error) {
		name, err := in.ReadString()
		if err != nil {
			return item{}, err
		}
		return item{name: name, weight: -1}, nil
	},
	2: func(in *Input) (item, error) {
		name, err := in.ReadString()
		if err != nil {
			return item{}, err
		}
		w, err := in.ReadInt32()
		if err != nil {
			return item{}, err
		}
		return item{name: name, weight: w}, nil
	},
})

func (itemSerializer) CurrentVersion() byte { return 2 }

func (itemSerializer) WritePayload(v item, out *Output) error {
	if err := out.WriteString(v.name); err != nil {
		return err
	}
	out.WriteInt32(v.weight)
	return nil
}

func (itemSerializer) Reader(version byte) ReadFunc[item] { return itemReaders.Get(version) }

func TestRoundTrip(t *testing.T) {
	data, err := ToBytes(item{name: "foo", weight: 42}, itemSerializer{})
	require.NoError(t, err)
	require.Equal(t, []byte{2, 0xEF, 0xBE, 0x43, 4, 'f', 'o', 'o', 42, 0, 0, 0}, data)

	got, err := FromBytes(data, itemSerializer{})
	require.NoError(t, err)
	require.Equal(t, item{name: "foo", weight: 42}, got)
}

func TestFromBytes_OldVersion(t *testing.T) {
	got, err := FromBytes([]byte{1, 0xEF, 0xBE, 0x43, 3, 'h', 'i'}, itemSerializer{})
	require.NoError(t, err)
	require.Equal(t, item{name: "hi", weight: -1}, got)
}

func TestFromBytes_Corrupted(t *testing.T) {
	valid, err := ToBytes(item{name: "foo", weight: 42}, itemSerializer{})
	require.NoError(t, err)

	var testCases = []struct {
		name   string
		data   []byte
		errMsg string
	}{
		{name: "nil", data: nil, errMsg: "reading header"},
		{name: "short header", data: []byte{2, 0xEF}, errMsg: "reading header"},
		{name: "invalid magic", data: []byte{2, 0xEF, 0xBE, 0x44, 1}, errMsg: "invalid magic EFBE44"},
		{name: "version zero", data: []byte{0, 0xEF, 0xBE, 0x43}, errMsg: "version 0 is reserved"},
		{name: "unknown version", data: []byte{7, 0xEF, 0xBE, 0x43, 1}, errMsg: "unsupported version 7"},
		{name: "string length exceeds input", data: []byte{2, 0xEF, 0xBE, 0x43, 10, 'f'}, errMsg: "exceeds remaining 1 bytes"},
		{name: "negative length", data: []byte{2, 0xEF, 0xBE, 0x43, 0}, errMsg: "negative length -1"},
		{name: "trailing bytes", data: append(append([]byte{}, valid...), 0), errMsg: "1 trailing bytes"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FromBytes(tc.data, itemSerializer{})
			require.ErrorIs(t, err, ErrCorruptedData)
			require.ErrorContains(t, err, tc.errMsg)
		})
	}

	for n := 1; n < len(valid); n++ {
		_, err := FromBytes(valid[:len(valid)-n], itemSerializer{})
		require.ErrorIs(t, err, ErrCorruptedData, "truncated by %d bytes", n)
	}
}

func TestNewReaders(t *testing.T) {
	require.Equal(t, 2, itemReaders.Versions())
	require.Nil(t, itemReaders.Get(3))

	require.PanicsWithValue(t, "version 0 is reserved", func() {
		NewReaders(map[byte]ReadFunc[item]{0: itemReaders.Get(1)})
	})
	require.PanicsWithValue(t, "reader for version 1 is nil", func() {
		NewReaders(map[byte]ReadFunc[item]{1: nil})
	})
}

func TestNested(t *testing.T) {
	out := NewOutput(0)
	require.NoError(t, Write(out, item{name: "a", weight: 1}, itemSerializer{}))
	require.NoError(t, Write(out, item{name: "b", weight: 2}, itemSerializer{}))

	in := NewInput(out.Bytes())
	a, err := Read(in, itemSerializer{})
	require.NoError(t, err)
	b, err := Read(in, itemSerializer{})
	require.NoError(t, err)
	require.Equal(t, "a", a.name)
	require.Equal(t, "b", b.name)
	require.Zero(t, in.Remaining())
}
