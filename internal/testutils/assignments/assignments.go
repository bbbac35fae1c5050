/*
Package assignments contains helpers for building partition assignments in tests.
*/
package assignments

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alphabill-org/partdist/hybridtime"
	pd "github.com/alphabill-org/partdist/partitiondistribution"
)

// BaseTime is the reference wall time used by tests, 2024-01-01T00:00Z.
var BaseTime = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// Timestamp returns hybrid timestamp which is "offset" after BaseTime.
func Timestamp(t testing.TB, offset time.Duration, logical uint16) hybridtime.Timestamp {
	t.Helper()
	ts, err := hybridtime.New(uint64(BaseTime.Add(offset).UnixMilli()), logical)
	require.NoError(t, err)
	return ts
}

func Peer(t testing.TB, id string) pd.Assignment {
	t.Helper()
	a, err := pd.ForPeer(id)
	require.NoError(t, err)
	return a
}

func Learner(t testing.TB, id string) pd.Assignment {
	t.Helper()
	a, err := pd.ForLearner(id)
	require.NoError(t, err)
	return a
}

// Peers returns regular (not forced, not from reset) snapshot where all the nodes are peers.
func Peers(t testing.TB, ts hybridtime.Timestamp, ids ...string) pd.Assignments {
	t.Helper()
	nodes := make([]pd.Assignment, len(ids))
	for i, id := range ids {
		nodes[i] = Peer(t, id)
	}
	a, err := pd.NewAssignments(nodes, ts, false)
	require.NoError(t, err)
	return a
}
