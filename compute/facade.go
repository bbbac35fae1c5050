package compute

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OpResult is the outcome of an operation on a job.
type OpResult uint8

const (
	// NotFound means that there is no job with given id.
	NotFound OpResult = iota
	// Rejected means that the job exists but the operation is not possible in it's current state.
	Rejected
	// Applied means that the operation succeeded.
	Applied
)

func (r OpResult) String() string {
	switch r {
	case NotFound:
		return "not found"
	case Rejected:
		return "rejected"
	case Applied:
		return "applied"
	default:
		return fmt.Sprintf("OpResult(%d)", r)
	}
}

type Status uint8

const (
	Queued Status = iota + 1
	Executing
	Completed
	Failed
	Canceled
)

func (s Status) String() string {
	switch s {
	case Queued:
		return "queued"
	case Executing:
		return "executing"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Canceled:
		return "canceled"
	default:
		return fmt.Sprintf("Status(%d)", s)
	}
}

// Finished returns true for terminal states.
func (s Status) Finished() bool {
	return s == Completed || s == Failed || s == Canceled
}

/*
JobState is a snapshot of the job's state. When Found is false the job id
is unknown and the rest of the fields are zero values.
*/
type JobState struct {
	Found      bool
	ID         uuid.UUID
	Name       string
	Status     Status
	Priority   int
	CreatedAt  time.Time
	StartedAt  time.Time
	FinishedAt time.Time
	// Err is the reason of failure for jobs in Failed state
	Err error
}

// Facade is the job management API of the compute subsystem.
type Facade interface {
	Status(ctx context.Context, id uuid.UUID) (JobState, error)
	Cancel(ctx context.Context, id uuid.UUID) (OpResult, error)
	ChangePriority(ctx context.Context, id uuid.UUID, priority int) (OpResult, error)
}
