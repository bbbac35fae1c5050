package partitiondistribution

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// PartitionID identifies partition of a distribution zone.
type PartitionID struct {
	Zone      uint32
	Partition uint32
}

// Bytes returns big-endian encoding of the id, suitable as a storage key (keys sort by zone, partition).
func (id PartitionID) Bytes() []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint32(b, id.Zone)
	binary.BigEndian.PutUint32(b[4:], id.Partition)
	return b
}

func PartitionIDFromBytes(b []byte) (PartitionID, error) {
	if len(b) != 8 {
		return PartitionID{}, fmt.Errorf("%w: partition id must be 8 bytes, got %d", ErrInvalidArgument, len(b))
	}
	return PartitionID{
		Zone:      binary.BigEndian.Uint32(b),
		Partition: binary.BigEndian.Uint32(b[4:]),
	}, nil
}

// String returns id in the "zone_partition" form.
func (id PartitionID) String() string {
	return fmt.Sprintf("%d_%d", id.Zone, id.Partition)
}

// ParsePartitionID parses id in the "zone_partition" form.
func ParsePartitionID(s string) (PartitionID, error) {
	zone, part, ok := strings.Cut(s, "_")
	if !ok {
		return PartitionID{}, fmt.Errorf("%w: partition id %q is not in the zone_partition form", ErrInvalidArgument, s)
	}
	z, err := strconv.ParseUint(zone, 10, 32)
	if err != nil {
		return PartitionID{}, fmt.Errorf("%w: invalid zone id %q: %w", ErrInvalidArgument, zone, err)
	}
	p, err := strconv.ParseUint(part, 10, 32)
	if err != nil {
		return PartitionID{}, fmt.Errorf("%w: invalid partition number %q: %w", ErrInvalidArgument, part, err)
	}
	return PartitionID{Zone: uint32(z), Partition: uint32(p)}, nil
}

func (id PartitionID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *PartitionID) UnmarshalText(text []byte) error {
	v, err := ParsePartitionID(string(text))
	if err != nil {
		return err
	}
	*id = v
	return nil
}
