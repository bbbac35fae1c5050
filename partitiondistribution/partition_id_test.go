package partitiondistribution

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPartitionID(t *testing.T) {
	id := PartitionID{Zone: 7, Partition: 300}
	require.Equal(t, "7_300", id.String())
	require.Equal(t, []byte{0, 0, 0, 7, 0, 0, 1, 44}, id.Bytes())

	got, err := PartitionIDFromBytes(id.Bytes())
	require.NoError(t, err)
	require.Equal(t, id, got)

	got, err = ParsePartitionID("7_300")
	require.NoError(t, err)
	require.Equal(t, id, got)

	// keys sort by zone first
	require.Negative(t, bytes.Compare(PartitionID{Zone: 1, Partition: 9}.Bytes(), PartitionID{Zone: 2}.Bytes()))
}

func TestParsePartitionID_Invalid(t *testing.T) {
	var testCases = []struct {
		in     string
		errMsg string
	}{
		{in: "", errMsg: `partition id "" is not in the zone_partition form`},
		{in: "12", errMsg: `partition id "12" is not in the zone_partition form`},
		{in: "x_1", errMsg: `invalid zone id "x"`},
		{in: "1_-1", errMsg: `invalid partition number "-1"`},
		{in: "1_4294967296", errMsg: `invalid partition number "4294967296"`},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			_, err := ParsePartitionID(tc.in)
			require.ErrorIs(t, err, ErrInvalidArgument)
			require.ErrorContains(t, err, tc.errMsg)
		})
	}

	_, err := PartitionIDFromBytes([]byte{1, 2})
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestPartitionID_Text(t *testing.T) {
	b, err := PartitionID{Zone: 1, Partition: 2}.MarshalText()
	require.NoError(t, err)
	var id PartitionID
	require.NoError(t, id.UnmarshalText(b))
	require.Equal(t, PartitionID{Zone: 1, Partition: 2}, id)
}
