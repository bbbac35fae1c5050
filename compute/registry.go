package compute

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/alphabill-org/partdist/logger"
)

var ErrQueueFull = errors.New("job queue is full")

type (
	Observability interface {
		Meter(name string, opts ...metric.MeterOption) metric.Meter
		Logger() *slog.Logger
	}

	/*
	Registry is an in-memory job queue implementing Facade. Jobs are executed
	by workers which take them from the queue with Next, highest priority
	first (and in submission order within the same priority).
	*/
	Registry struct {
		mu       sync.Mutex
		jobs     map[uuid.UUID]*job
		queue    []*job
		maxQueue int
		seq      uint64
		// signals that queue might have become non-empty
		ready chan struct{}
		now   func() time.Time
		log   *slog.Logger

		opCnt metric.Int64Counter
	}

	// Job is handed to the worker by Registry.Next.
	Job struct {
		ID       uuid.UUID
		Name     string
		Priority int
		Payload  any
		// Context is canceled when the job is canceled during execution.
		Context context.Context
	}

	job struct {
		state   JobState
		seq     uint64
		payload any
		cancel  context.CancelFunc
	}
)

/*
NewRegistry creates job registry which allows up to "maxQueue" jobs to wait
for execution.
*/
func NewRegistry(maxQueue int, obs Observability) (*Registry, error) {
	if maxQueue < 1 {
		return nil, fmt.Errorf("queue max size must be greater than zero, got %d", maxQueue)
	}
	r := &Registry{
		jobs:     make(map[uuid.UUID]*job),
		maxQueue: maxQueue,
		ready:    make(chan struct{}, 1),
		now:      time.Now,
		log:      obs.Logger().With(logger.Module("compute")),
	}
	if err := r.initMetrics(obs); err != nil {
		return nil, fmt.Errorf("initializing metrics: %w", err)
	}
	return r, nil
}

// Submit adds new job into the queue.
func (r *Registry) Submit(ctx context.Context, name string, priority int, payload any) (uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return uuid.Nil, fmt.Errorf("generating job id: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queue) >= r.maxQueue {
		return uuid.Nil, ErrQueueFull
	}
	r.seq++
	j := &job{
		seq:     r.seq,
		payload: payload,
		state: JobState{
			Found:     true,
			ID:        id,
			Name:      name,
			Status:    Queued,
			Priority:  priority,
			CreatedAt: r.now(),
		},
	}
	r.jobs[id] = j
	r.queue = append(r.queue, j)
	r.signal()
	r.log.DebugContext(ctx, fmt.Sprintf("job %s (%s) queued with priority %d", id, name, priority))
	return id, nil
}

/*
Next blocks until there is a job in the queue (or ctx is done), marks it
as executing and returns it. Worker must report the outcome using Finish.
*/
func (r *Registry) Next(ctx context.Context) (*Job, error) {
	for {
		if j := r.dequeue(ctx); j != nil {
			return j, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-r.ready:
		}
	}
}

func (r *Registry) dequeue(ctx context.Context) *Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queue) == 0 {
		return nil
	}
	idx := 0
	for i, j := range r.queue[1:] {
		if j.state.Priority > r.queue[idx].state.Priority {
			idx = i + 1
		}
	}
	j := r.queue[idx]
	r.queue = slices.Delete(r.queue, idx, idx+1)
	if len(r.queue) > 0 {
		// let the other waiting workers know
		r.signal()
	}

	var jobCtx context.Context
	jobCtx, j.cancel = context.WithCancel(context.WithoutCancel(ctx))
	j.state.Status = Executing
	j.state.StartedAt = r.now()
	return &Job{
		ID:       j.state.ID,
		Name:     j.state.Name,
		Priority: j.state.Priority,
		Payload:  j.payload,
		Context:  jobCtx,
	}
}

/*
Finish records the outcome of executing job, jobErr == nil means success.
Only executing jobs can be finished.
*/
func (r *Registry) Finish(ctx context.Context, id uuid.UUID, jobErr error) (res OpResult) {
	defer func() { r.opCnt.Add(ctx, 1, opAttr("finish", res)) }()
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[id]
	switch {
	case !ok:
		return NotFound
	case j.state.Status != Executing:
		// job canceled during execution keeps the canceled status
		return Rejected
	}
	j.cancel()
	j.state.FinishedAt = r.now()
	if jobErr != nil {
		j.state.Status = Failed
		j.state.Err = jobErr
		r.log.WarnContext(ctx, fmt.Sprintf("job %s (%s) failed", id, j.state.Name), logger.Error(jobErr))
	} else {
		j.state.Status = Completed
	}
	return Applied
}

func (r *Registry) Status(ctx context.Context, id uuid.UUID) (JobState, error) {
	if err := ctx.Err(); err != nil {
		return JobState{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if j, ok := r.jobs[id]; ok {
		return j.state, nil
	}
	return JobState{}, nil
}

/*
Cancel cancels queued or executing job. Execution of the job is stopped by
canceling it's context, it's up to the worker to notice that.
*/
func (r *Registry) Cancel(ctx context.Context, id uuid.UUID) (res OpResult, err error) {
	if err := ctx.Err(); err != nil {
		return NotFound, err
	}
	defer func() { r.opCnt.Add(ctx, 1, opAttr("cancel", res)) }()
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[id]
	if !ok {
		return NotFound, nil
	}
	switch j.state.Status {
	case Queued:
		r.queue = slices.DeleteFunc(r.queue, func(q *job) bool { return q == j })
	case Executing:
		j.cancel()
	default:
		return Rejected, nil
	}
	j.state.Status = Canceled
	j.state.FinishedAt = r.now()
	r.log.DebugContext(ctx, fmt.Sprintf("job %s (%s) canceled", id, j.state.Name))
	return Applied, nil
}

// ChangePriority changes priority of a queued job.
func (r *Registry) ChangePriority(ctx context.Context, id uuid.UUID, priority int) (res OpResult, err error) {
	if err := ctx.Err(); err != nil {
		return NotFound, err
	}
	defer func() { r.opCnt.Add(ctx, 1, opAttr("priority", res)) }()
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[id]
	if !ok {
		return NotFound, nil
	}
	if j.state.Status != Queued {
		return Rejected, nil
	}
	j.state.Priority = priority
	return Applied, nil
}

/*
Prune forgets finished jobs which finished before "before", returns the
number of jobs removed.
*/
func (r *Registry) Prune(before time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cnt := 0
	for id, j := range r.jobs {
		if j.state.Status.Finished() && j.state.FinishedAt.Before(before) {
			delete(r.jobs, id)
			cnt++
		}
	}
	return cnt
}

/*
Run starts "workers" goroutines which take jobs from the queue and execute
them using "exec" until ctx is canceled. Error returned by "exec" is
recorded as the failure of the job. Run always returns non-nil error.
*/
func (r *Registry) Run(ctx context.Context, workers int, exec func(job *Job) error) error {
	if workers < 1 {
		return fmt.Errorf("worker count must be greater than zero, got %d", workers)
	}
	g, ctx := errgroup.WithContext(ctx)
	for range workers {
		g.Go(func() error {
			for {
				job, err := r.Next(ctx)
				if err != nil {
					return err
				}
				r.log.DebugContext(ctx, fmt.Sprintf("executing job %s (%s)", job.ID, job.Name))
				r.Finish(ctx, job.ID, exec(job))
			}
		})
	}
	return g.Wait()
}

func (r *Registry) signal() {
	select {
	case r.ready <- struct{}{}:
	default:
	}
}

func (r *Registry) initMetrics(obs Observability) (err error) {
	m := obs.Meter("compute")

	if _, err = m.Int64ObservableUpDownCounter(
		"queued",
		metric.WithDescription("Number of jobs waiting for execution."),
		metric.WithUnit("{job}"),
		metric.WithInt64Callback(func(ctx context.Context, io metric.Int64Observer) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			io.Observe(int64(len(r.queue)))
			return nil
		}),
	); err != nil {
		return fmt.Errorf("creating queued jobs counter: %w", err)
	}

	if r.opCnt, err = m.Int64Counter("job.ops", metric.WithDescription("Number of job management operations")); err != nil {
		return fmt.Errorf("creating job operations counter: %w", err)
	}
	return nil
}

func opAttr(op string, res OpResult) metric.MeasurementOption {
	return metric.WithAttributeSet(attribute.NewSet(attribute.String("op", op), attribute.String("result", res.String())))
}

var _ Facade = (*Registry)(nil)
