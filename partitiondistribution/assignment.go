package partitiondistribution

import (
	"cmp"
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

type Role uint8

const (
	// Peer is a replica group member which participates in voting.
	Peer Role = iota + 1
	// Learner receives replicated state but does not vote.
	Learner
)

func (r Role) String() string {
	switch r {
	case Peer:
		return "peer"
	case Learner:
		return "learner"
	default:
		return fmt.Sprintf("Role(%d)", uint8(r))
	}
}

/*
Assignment is role of a single node in the replica group of a partition.
Zero value is not valid, use ForPeer or ForLearner to create Assignment.
*/
type Assignment struct {
	consistentID string
	peer         bool
}

// ForPeer returns voting member assignment for the node.
func ForPeer(consistentID string) (Assignment, error) {
	return newAssignment(consistentID, true)
}

// ForLearner returns non-voting member assignment for the node.
func ForLearner(consistentID string) (Assignment, error) {
	return newAssignment(consistentID, false)
}

func newAssignment(consistentID string, peer bool) (Assignment, error) {
	if consistentID == "" {
		return Assignment{}, fmt.Errorf("%w: consistent id must not be empty", ErrInvalidArgument)
	}
	if !utf8.ValidString(consistentID) {
		return Assignment{}, fmt.Errorf("%w: consistent id %q is not valid UTF-8", ErrInvalidArgument, consistentID)
	}
	return Assignment{consistentID: consistentID, peer: peer}, nil
}

// ConsistentID is the stable identifier of the node.
func (a Assignment) ConsistentID() string { return a.consistentID }

func (a Assignment) IsPeer() bool { return a.peer }

func (a Assignment) Role() Role {
	if a.peer {
		return Peer
	}
	return Learner
}

// Compare orders assignments by consistent id, peer before learner for the same id.
func (a Assignment) Compare(b Assignment) int {
	if c := cmp.Compare(a.consistentID, b.consistentID); c != 0 {
		return c
	}
	switch {
	case a.peer == b.peer:
		return 0
	case a.peer:
		return -1
	default:
		return 1
	}
}

func (a Assignment) String() string {
	return fmt.Sprintf("%s(%s)", a.consistentID, a.Role())
}

type assignmentJSON struct {
	ConsistentID string `json:"consistentId"`
	Peer         bool   `json:"peer"`
}

func (a Assignment) MarshalJSON() ([]byte, error) {
	return json.Marshal(assignmentJSON{ConsistentID: a.consistentID, Peer: a.peer})
}

func (a *Assignment) UnmarshalJSON(data []byte) error {
	var v assignmentJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	n, err := newAssignment(v.ConsistentID, v.Peer)
	if err != nil {
		return err
	}
	*a = n
	return nil
}
