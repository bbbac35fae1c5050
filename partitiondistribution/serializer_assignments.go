package partitiondistribution

import (
	"errors"
	"fmt"
	"math"

	"github.com/alphabill-org/partdist/hybridtime"
	"github.com/alphabill-org/partdist/versioned"
)

const (
	// minimal encoded size of a node: id length, at least one byte of id, role flag
	minNodeSize = 3
	// minimal encoded size of v1 Assignments blob including the header
	minAssignmentsV1Size = versioned.HeaderSize + 1 + minNodeSize + 1 + 4 + 2 + 1 + 1
	// minimal encoded size of v2 Assignments payload
	minAssignmentsV2Size = 8 + 1 + 1 + 1 + minNodeSize
)

/*
AssignmentsSerializer is versioned codec of a single Assignments snapshot.

Version 1 (read only):

	node count, nodes (id string, peer flag), force flag,
	timestamp (physical>>16 as int32, physical&0xFFFF as int16, logical as varint),
	reserved flag byte

Version 2:

	timestamp (LongValue as int64), force flag, fromReset flag,
	node count, nodes (id string, peer flag)
*/
type AssignmentsSerializer struct{}

var assignmentsReaders = versioned.NewReaders(map[byte]versioned.ReadFunc[Assignments]{
	1: readAssignmentsV1,
	2: readAssignmentsV2,
})

func (AssignmentsSerializer) CurrentVersion() byte { return 2 }

func (AssignmentsSerializer) WritePayload(a Assignments, out *versioned.Output) error {
	return writeAssignmentsV2(a, out)
}

func (AssignmentsSerializer) Reader(version byte) versioned.ReadFunc[Assignments] {
	return assignmentsReaders.Get(version)
}

func writeAssignmentsV2(a Assignments, out *versioned.Output) error {
	if len(a.nodes) == 0 {
		return fmt.Errorf("%w: assignments without nodes", ErrInvalidArgument)
	}
	out.WriteInt64(a.timestamp.LongValue())
	out.WriteBool(a.force)
	out.WriteBool(a.fromReset)
	return writeNodes(a.nodes, out)
}

func writeNodes(nodes []Assignment, out *versioned.Output) error {
	if err := out.WriteLength(len(nodes)); err != nil {
		return err
	}
	for _, n := range nodes {
		if err := out.WriteString(n.consistentID); err != nil {
			return fmt.Errorf("writing node %q: %w", n.consistentID, err)
		}
		out.WriteBool(n.peer)
	}
	return nil
}

func readAssignmentsV2(in *versioned.Input) (Assignments, error) {
	ts, err := in.ReadInt64()
	if err != nil {
		return Assignments{}, fmt.Errorf("reading timestamp: %w", err)
	}
	force, err := in.ReadBool()
	if err != nil {
		return Assignments{}, fmt.Errorf("reading force flag: %w", err)
	}
	fromReset, err := in.ReadBool()
	if err != nil {
		return Assignments{}, fmt.Errorf("reading fromReset flag: %w", err)
	}
	if force && fromReset {
		return Assignments{}, fmt.Errorf("%w: forced assignments can't be from reset", versioned.ErrCorruptedData)
	}
	nodes, err := readNodes(in)
	if err != nil {
		return Assignments{}, err
	}
	return buildDecoded(nodes, hybridtime.FromLong(ts), force, fromReset)
}

func readAssignmentsV1(in *versioned.Input) (Assignments, error) {
	nodes, err := readNodes(in)
	if err != nil {
		return Assignments{}, err
	}
	force, err := in.ReadBool()
	if err != nil {
		return Assignments{}, fmt.Errorf("reading force flag: %w", err)
	}
	ts, err := readSplitTimestamp(in)
	if err != nil {
		return Assignments{}, fmt.Errorf("reading timestamp: %w", err)
	}
	// reserved flag, the fromReset attribute did not exist in this version
	if _, err := in.ReadBool(); err != nil {
		return Assignments{}, fmt.Errorf("reading reserved flag: %w", err)
	}
	return buildDecoded(nodes, ts, force, false)
}

/*
readSplitTimestamp reads timestamp in the v1 layout: upper 32 and lower 16
bits of the physical time followed by the logical counter.
*/
func readSplitTimestamp(in *versioned.Input) (hybridtime.Timestamp, error) {
	hi, err := in.ReadInt32()
	if err != nil {
		return hybridtime.Timestamp{}, err
	}
	lo, err := in.ReadInt16()
	if err != nil {
		return hybridtime.Timestamp{}, err
	}
	logical, err := in.ReadVarInt()
	if err != nil {
		return hybridtime.Timestamp{}, err
	}
	if logical < 0 || logical > math.MaxUint16 {
		return hybridtime.Timestamp{}, fmt.Errorf("%w: logical time %d out of range", versioned.ErrCorruptedData, logical)
	}
	physical := uint64(uint32(hi))<<16 | uint64(uint16(lo))
	ts, err := hybridtime.New(physical, uint16(logical))
	if err != nil {
		return hybridtime.Timestamp{}, fmt.Errorf("%w: %w", versioned.ErrCorruptedData, err)
	}
	return ts, nil
}

func writeSplitTimestamp(ts hybridtime.Timestamp, out *versioned.Output) error {
	out.WriteInt32(int32(uint32(ts.Physical() >> 16)))
	out.WriteInt16(int16(uint16(ts.Physical())))
	return out.WriteVarInt(int64(ts.Logical()))
}

func readNodes(in *versioned.Input) ([]Assignment, error) {
	cnt, err := in.ReadLength(minNodeSize)
	if err != nil {
		return nil, fmt.Errorf("reading node count: %w", err)
	}
	nodes := make([]Assignment, 0, cnt)
	for i := range cnt {
		id, err := in.ReadString()
		if err != nil {
			return nil, fmt.Errorf("reading node %d id: %w", i, err)
		}
		peer, err := in.ReadBool()
		if err != nil {
			return nil, fmt.Errorf("reading node %d role: %w", i, err)
		}
		nodes = append(nodes, Assignment{consistentID: id, peer: peer})
	}
	return nodes, nil
}

/*
buildDecoded runs the same validation as the constructors but reports
failures as data corruption, decoded duplicates are never merged.
*/
func buildDecoded(nodes []Assignment, ts hybridtime.Timestamp, force, fromReset bool) (Assignments, error) {
	a, err := newAssignments(nodes, ts, force, fromReset)
	if err != nil {
		if errors.Is(err, ErrInvalidArgument) {
			return Assignments{}, fmt.Errorf("%w: %v", versioned.ErrCorruptedData, err)
		}
		return Assignments{}, err
	}
	return a, nil
}
