package partitiondistribution

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alphabill-org/partdist/hybridtime"
)

var basePhysicalTime = uint64(time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC).UnixMilli())

func baseTimestamp(t *testing.T, logical uint16) hybridtime.Timestamp {
	t.Helper()
	ts, err := hybridtime.New(basePhysicalTime, logical)
	require.NoError(t, err)
	return ts
}

func peer(t *testing.T, id string) Assignment {
	t.Helper()
	a, err := ForPeer(id)
	require.NoError(t, err)
	return a
}

func learner(t *testing.T, id string) Assignment {
	t.Helper()
	a, err := ForLearner(id)
	require.NoError(t, err)
	return a
}

func newTestAssignments(t *testing.T, force, fromReset bool, ts hybridtime.Timestamp, nodes ...Assignment) Assignments {
	t.Helper()
	var a Assignments
	var err error
	if force {
		a, err = NewForcedAssignments(nodes, ts)
	} else {
		a, err = NewAssignments(nodes, ts, fromReset)
	}
	require.NoError(t, err)
	return a
}
