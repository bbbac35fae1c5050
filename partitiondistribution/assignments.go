package partitiondistribution

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/alphabill-org/partdist/hybridtime"
)

/*
Assignments is the membership snapshot of the replica group of a partition.

  - Nodes: assignment per node, a node holds exactly one role;
  - Timestamp: when the membership became effective;
  - Force: the snapshot was applied by disaster recovery, bypassing the
    quorum based agreement. In recovery comparisons it is authoritative even
    over an agreed snapshot with equal or lower timestamp;
  - FromReset: the snapshot is result of an administrative reset.

Zero value is not valid (it has no nodes).
*/
type Assignments struct {
	nodes     []Assignment // sorted by consistent id
	timestamp hybridtime.Timestamp
	force     bool
	fromReset bool
}

// NewAssignments returns snapshot created by normal (consensus agreed) reconfiguration.
func NewAssignments(nodes []Assignment, timestamp hybridtime.Timestamp, fromReset bool) (Assignments, error) {
	return newAssignments(nodes, timestamp, false, fromReset)
}

// NewForcedAssignments returns snapshot applied by disaster recovery.
func NewForcedAssignments(nodes []Assignment, timestamp hybridtime.Timestamp) (Assignments, error) {
	return newAssignments(nodes, timestamp, true, false)
}

func newAssignments(nodes []Assignment, timestamp hybridtime.Timestamp, force, fromReset bool) (Assignments, error) {
	if len(nodes) == 0 {
		return Assignments{}, fmt.Errorf("%w: node set must not be empty", ErrInvalidArgument)
	}
	sorted := slices.Clone(nodes)
	slices.SortFunc(sorted, Assignment.Compare)
	for i, n := range sorted {
		if n.consistentID == "" {
			return Assignments{}, fmt.Errorf("%w: assignment without consistent id", ErrInvalidArgument)
		}
		if i > 0 && sorted[i-1].consistentID == n.consistentID {
			return Assignments{}, fmt.Errorf("%w: duplicate consistent id %q", ErrInvalidArgument, n.consistentID)
		}
	}
	return Assignments{
		nodes:     sorted,
		timestamp: timestamp,
		force:     force,
		fromReset: fromReset,
	}, nil
}

// Nodes returns copy of the node set ordered by consistent id.
func (a Assignments) Nodes() []Assignment { return slices.Clone(a.nodes) }

func (a Assignments) Len() int { return len(a.nodes) }

func (a Assignments) Timestamp() hybridtime.Timestamp { return a.timestamp }

func (a Assignments) Force() bool { return a.force }

func (a Assignments) FromReset() bool { return a.fromReset }

// Node returns assignment of the node with given consistent id.
func (a Assignments) Node(consistentID string) (Assignment, bool) {
	idx, ok := slices.BinarySearchFunc(a.nodes, consistentID, func(n Assignment, id string) int {
		return strings.Compare(n.consistentID, id)
	})
	if !ok {
		return Assignment{}, false
	}
	return a.nodes[idx], true
}

// Peers returns consistent ids of the voting members.
func (a Assignments) Peers() []string {
	return a.ids(func(n Assignment) bool { return n.peer })
}

// Learners returns consistent ids of the non-voting members.
func (a Assignments) Learners() []string {
	return a.ids(func(n Assignment) bool { return !n.peer })
}

// ConsistentIDs returns ids of all the members.
func (a Assignments) ConsistentIDs() []string {
	return a.ids(func(Assignment) bool { return true })
}

func (a Assignments) ids(filter func(Assignment) bool) []string {
	ids := make([]string, 0, len(a.nodes))
	for _, n := range a.nodes {
		if filter(n) {
			ids = append(ids, n.consistentID)
		}
	}
	return ids
}

/*
Equal compares all the attributes. Snapshots with the same membership but
different provenance (force, fromReset flags) are not equal.
*/
func (a Assignments) Equal(b Assignments) bool {
	return a.timestamp == b.timestamp &&
		a.force == b.force &&
		a.fromReset == b.fromReset &&
		slices.Equal(a.nodes, b.nodes)
}

func (a Assignments) String() string {
	var sb strings.Builder
	sb.WriteString("{")
	for i, n := range a.nodes {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(n.String())
	}
	fmt.Fprintf(&sb, "} at %s", a.timestamp)
	if a.force {
		sb.WriteString(" forced")
	}
	if a.fromReset {
		sb.WriteString(" from reset")
	}
	return sb.String()
}

type assignmentsJSON struct {
	Nodes     []Assignment         `json:"nodes"`
	Timestamp hybridtime.Timestamp `json:"timestamp"`
	Force     bool                 `json:"force"`
	FromReset bool                 `json:"fromReset"`
}

func (a Assignments) MarshalJSON() ([]byte, error) {
	return json.Marshal(assignmentsJSON{
		Nodes:     a.nodes,
		Timestamp: a.timestamp,
		Force:     a.force,
		FromReset: a.fromReset,
	})
}

func (a *Assignments) UnmarshalJSON(data []byte) error {
	var v assignmentsJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v.Force && v.FromReset {
		return fmt.Errorf("%w: forced assignments can't be from reset", ErrInvalidArgument)
	}
	n, err := newAssignments(v.Nodes, v.Timestamp, v.Force, v.FromReset)
	if err != nil {
		return err
	}
	*a = n
	return nil
}
