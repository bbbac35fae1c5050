package partitiondistribution

import (
	"fmt"

	"github.com/alphabill-org/partdist/versioned"
)

/*
AssignmentsChainSerializer is versioned codec of AssignmentsChain.

Version 1 (read only): chain length followed by the entries, each entry is
a complete versioned Assignments blob (header and version 1 payload).
FromReset of the entries is always false.

Version 2: chain length followed by version 2 Assignments payloads (without
per entry header).
*/
type AssignmentsChainSerializer struct{}

var chainReaders = versioned.NewReaders(map[byte]versioned.ReadFunc[AssignmentsChain]{
	1: readChainV1,
	2: readChainV2,
})

func (AssignmentsChainSerializer) CurrentVersion() byte { return 2 }

func (AssignmentsChainSerializer) WritePayload(c AssignmentsChain, out *versioned.Output) error {
	if err := out.WriteLength(len(c.chain)); err != nil {
		return err
	}
	for i, a := range c.chain {
		if err := writeAssignmentsV2(a, out); err != nil {
			return fmt.Errorf("writing chain entry %d: %w", i, err)
		}
	}
	return nil
}

func (AssignmentsChainSerializer) Reader(version byte) versioned.ReadFunc[AssignmentsChain] {
	return chainReaders.Get(version)
}

func readChainV2(in *versioned.Input) (AssignmentsChain, error) {
	return readChain(in, minAssignmentsV2Size, readAssignmentsV2)
}

func readChainV1(in *versioned.Input) (AssignmentsChain, error) {
	return readChain(in, minAssignmentsV1Size, func(in *versioned.Input) (Assignments, error) {
		return versioned.Read(in, assignmentsV1Serializer{})
	})
}

func readChain(in *versioned.Input, minEntrySize int, readEntry versioned.ReadFunc[Assignments]) (AssignmentsChain, error) {
	cnt, err := in.ReadLength(minEntrySize)
	if err != nil {
		return AssignmentsChain{}, fmt.Errorf("reading chain length: %w", err)
	}
	chain := make([]Assignments, 0, cnt)
	for i := range cnt {
		a, err := readEntry(in)
		if err != nil {
			return AssignmentsChain{}, fmt.Errorf("reading chain entry %d: %w", i, err)
		}
		chain = append(chain, a)
	}
	return AssignmentsChain{chain: chain}, nil
}

/*
assignmentsV1Serializer is the Assignments codec as it was when the chain
format version 1 was in use: entries embedded into v1 chain must be v1.
*/
type assignmentsV1Serializer struct{}

var assignmentsV1Readers = versioned.NewReaders(map[byte]versioned.ReadFunc[Assignments]{
	1: readAssignmentsV1,
})

func (assignmentsV1Serializer) CurrentVersion() byte { return 1 }

func (assignmentsV1Serializer) WritePayload(a Assignments, out *versioned.Output) error {
	if err := writeNodes(a.nodes, out); err != nil {
		return err
	}
	out.WriteBool(a.force)
	if err := writeSplitTimestamp(a.timestamp, out); err != nil {
		return err
	}
	out.WriteBool(false)
	return nil
}

func (assignmentsV1Serializer) Reader(version byte) versioned.ReadFunc[Assignments] {
	return assignmentsV1Readers.Get(version)
}
