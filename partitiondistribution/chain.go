package partitiondistribution

import (
	"encoding/json"
	"fmt"
	"slices"
)

/*
AssignmentsChain is the history of the replica group memberships of a
partition, oldest first.

The chain doesn't reorder nor validate the order of its elements, producer
of the history must append snapshots in causal (timestamp non-decreasing)
order. IsCausal can be used to check that.
*/
type AssignmentsChain struct {
	chain []Assignments
}

// NewAssignmentsChain returns chain of the given snapshots in the given order.
func NewAssignmentsChain(assignments ...Assignments) AssignmentsChain {
	return AssignmentsChain{chain: slices.Clone(assignments)}
}

// Chain returns copy of the history, oldest first.
func (c AssignmentsChain) Chain() []Assignments { return slices.Clone(c.chain) }

func (c AssignmentsChain) Len() int { return len(c.chain) }

// Last returns the most recent snapshot, false when the chain is empty.
func (c AssignmentsChain) Last() (Assignments, bool) {
	if len(c.chain) == 0 {
		return Assignments{}, false
	}
	return c.chain[len(c.chain)-1], true
}

// Append returns new chain with "a" added to the end, the receiver is not modified.
func (c AssignmentsChain) Append(a Assignments) AssignmentsChain {
	chain := make([]Assignments, len(c.chain), len(c.chain)+1)
	copy(chain, c.chain)
	return AssignmentsChain{chain: append(chain, a)}
}

// Equal returns true when both chains have pairwise equal elements in the same order.
func (c AssignmentsChain) Equal(other AssignmentsChain) bool {
	return slices.EqualFunc(c.chain, other.chain, Assignments.Equal)
}

// IsCausal returns true when the timestamps of the snapshots do not decrease.
func (c AssignmentsChain) IsCausal() bool {
	for i := 1; i < len(c.chain); i++ {
		if c.chain[i].timestamp.Before(c.chain[i-1].timestamp) {
			return false
		}
	}
	return true
}

func (c AssignmentsChain) MarshalJSON() ([]byte, error) {
	if c.chain == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(c.chain)
}

func (c *AssignmentsChain) UnmarshalJSON(data []byte) error {
	var v []Assignments
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	for i, a := range v {
		if a.Len() == 0 {
			return fmt.Errorf("%w: chain element %d has no nodes", ErrInvalidArgument, i)
		}
	}
	c.chain = v
	return nil
}
