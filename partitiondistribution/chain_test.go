package partitiondistribution

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAssignmentsChain(t *testing.T) {
	a := newTestAssignments(t, false, false, baseTimestamp(t, 1), peer(t, "a"), peer(t, "b"))
	b := newTestAssignments(t, true, false, baseTimestamp(t, 2), peer(t, "a"))

	input := []Assignments{a, b}
	c := NewAssignmentsChain(input...)
	require.Equal(t, 2, c.Len())
	input[0] = b
	require.True(t, c.Chain()[0].Equal(a))

	last, ok := c.Last()
	require.True(t, ok)
	require.True(t, last.Equal(b))

	require.True(t, c.Equal(NewAssignmentsChain(a, b)))
	require.False(t, c.Equal(NewAssignmentsChain(b, a)))
	require.False(t, c.Equal(NewAssignmentsChain(a)))
	require.False(t, c.Equal(NewAssignmentsChain()))
}

func TestAssignmentsChain_Empty(t *testing.T) {
	c := NewAssignmentsChain()
	require.Zero(t, c.Len())
	require.Empty(t, c.Chain())
	_, ok := c.Last()
	require.False(t, ok)
	require.True(t, c.Equal(AssignmentsChain{}))
	require.True(t, c.IsCausal())
}

func TestAssignmentsChain_Append(t *testing.T) {
	a := newTestAssignments(t, false, false, baseTimestamp(t, 1), peer(t, "a"))
	b := newTestAssignments(t, false, false, baseTimestamp(t, 2), peer(t, "b"))
	c := newTestAssignments(t, false, false, baseTimestamp(t, 3), peer(t, "c"))

	base := NewAssignmentsChain(a)
	withB := base.Append(b)
	withC := base.Append(c)

	require.Equal(t, 1, base.Len())
	require.True(t, withB.Equal(NewAssignmentsChain(a, b)))
	require.True(t, withC.Equal(NewAssignmentsChain(a, c)))
}

func TestAssignmentsChain_IsCausal(t *testing.T) {
	a := newTestAssignments(t, false, false, baseTimestamp(t, 1), peer(t, "a"))
	b := newTestAssignments(t, false, false, baseTimestamp(t, 2), peer(t, "b"))

	require.True(t, NewAssignmentsChain(a, b).IsCausal())
	require.True(t, NewAssignmentsChain(a, a).IsCausal())
	// out of order input is accepted by the chain, caller must check
	c := NewAssignmentsChain(b, a)
	require.Equal(t, 2, c.Len())
	require.False(t, c.IsCausal())
}

func TestAssignmentsChain_JSON(t *testing.T) {
	b, err := json.Marshal(NewAssignmentsChain())
	require.NoError(t, err)
	require.Equal(t, "[]", string(b))

	c := NewAssignmentsChain(
		newTestAssignments(t, false, true, baseTimestamp(t, 1), peer(t, "a"), learner(t, "b")),
		newTestAssignments(t, true, false, baseTimestamp(t, 2), peer(t, "b")),
	)
	b, err = json.Marshal(c)
	require.NoError(t, err)

	var got AssignmentsChain
	require.NoError(t, json.Unmarshal(b, &got))
	require.True(t, c.Equal(got))

	require.ErrorIs(t, json.Unmarshal([]byte(`[null]`), &got), ErrInvalidArgument)
}
