package cmd

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/alphabill-org/partdist/hybridtime"
	pd "github.com/alphabill-org/partdist/partitiondistribution"
)

type (
	/*
	snapshotDoc is the human editable form of Assignments. Chain document is
	a (yaml or json) list of snapshots:

		- timestamp: "111677748019200005"
		  nodes:
		    - consistentId: abc
		      peer: true
	*/
	snapshotDoc struct {
		Timestamp hybridtime.Timestamp `yaml:"timestamp"`
		Force     bool                 `yaml:"force,omitempty"`
		FromReset bool                 `yaml:"fromReset,omitempty"`
		Nodes     []nodeDoc            `yaml:"nodes"`
	}

	nodeDoc struct {
		ConsistentID string `yaml:"consistentId"`
		Peer         bool   `yaml:"peer"`
	}
)

// readChainDocument decodes chain document, as json is subset of yaml both are accepted.
func readChainDocument(r io.Reader) (pd.AssignmentsChain, error) {
	var doc []snapshotDoc
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && err != io.EOF {
		return pd.AssignmentsChain{}, fmt.Errorf("decoding chain document: %w", err)
	}
	list := make([]pd.Assignments, 0, len(doc))
	for i, s := range doc {
		a, err := s.assignments()
		if err != nil {
			return pd.AssignmentsChain{}, fmt.Errorf("snapshot %d: %w", i, err)
		}
		list = append(list, a)
	}
	return pd.NewAssignmentsChain(list...), nil
}

func writeChainDocument(w io.Writer, chain pd.AssignmentsChain) error {
	doc := make([]snapshotDoc, 0, chain.Len())
	for _, a := range chain.Chain() {
		s := snapshotDoc{Timestamp: a.Timestamp(), Force: a.Force(), FromReset: a.FromReset()}
		for _, n := range a.Nodes() {
			s.Nodes = append(s.Nodes, nodeDoc{ConsistentID: n.ConsistentID(), Peer: n.IsPeer()})
		}
		doc = append(doc, s)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding chain document: %w", err)
	}
	return enc.Close()
}

func (s snapshotDoc) assignments() (pd.Assignments, error) {
	nodes := make([]pd.Assignment, 0, len(s.Nodes))
	for _, n := range s.Nodes {
		a, err := newNode(n.ConsistentID, n.Peer)
		if err != nil {
			return pd.Assignments{}, err
		}
		nodes = append(nodes, a)
	}
	return newSnapshot(nodes, s.Timestamp, s.Force, s.FromReset)
}

func newNode(id string, peer bool) (pd.Assignment, error) {
	if peer {
		return pd.ForPeer(id)
	}
	return pd.ForLearner(id)
}

func newSnapshot(nodes []pd.Assignment, ts hybridtime.Timestamp, force, fromReset bool) (pd.Assignments, error) {
	if force {
		if fromReset {
			return pd.Assignments{}, fmt.Errorf("%w: forced assignments can't be from reset", pd.ErrInvalidArgument)
		}
		return pd.NewForcedAssignments(nodes, ts)
	}
	return pd.NewAssignments(nodes, ts, fromReset)
}
