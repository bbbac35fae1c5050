/*
Package partitiondistribution models the replica group membership of
partitions: which node holds which role (peer or learner) at which point
of (hybrid) time, and the history of these memberships.

All the types are immutable values, safe to share between goroutines.
AssignmentsChainSerializer implements durable binary encoding of the
history, see package versioned for the envelope format.
*/
package partitiondistribution
