package worker

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"

	"github.com/google/uuid"
	"github.com/reddyt/reddyt-admin/runs"
)

var (
	ErrPoolFull = errors.New("worker pool is full")
	ErrInFlight = errors.New("run already has a job in flight")
)

// JobFunc is the unit of work executed by the pool.
type JobFunc func(ctx context.Context)

type job struct {
	runID uuid.UUID
	fn    JobFunc
}

// Pool runs jobs on a fixed number of goroutines, with at most one queued or
// running job per run.
type Pool struct {
	queue    chan job
	workers  int
	mu       sync.Mutex
	inflight map[uuid.UUID]struct{}
	wg       sync.WaitGroup
	logger   runs.Logger
}

// PoolOption customizes a Pool.
type PoolOption func(*Pool)

// WithPoolLogger overrides the logger used to report panicking jobs.
func WithPoolLogger(logger runs.Logger) PoolOption {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPool returns a pool with workers goroutines and room for queueSize
// pending jobs.
func NewPool(workers, queueSize int, opts ...PoolOption) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = workers
	}
	p := &Pool{
		queue:    make(chan job, queueSize),
		workers:  workers,
		inflight: make(map[uuid.UUID]struct{}),
		logger:   runs.DefaultLogger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Enqueue schedules fn for runID without blocking.
func (p *Pool) Enqueue(runID uuid.UUID, fn JobFunc) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, busy := p.inflight[runID]; busy {
		return ErrInFlight
	}

	select {
	case p.queue <- job{runID: runID, fn: fn}:
		p.inflight[runID] = struct{}{}
		return nil
	default:
		return ErrPoolFull
	}
}

// InFlight reports whether runID has a queued or running job.
func (p *Pool) InFlight(runID uuid.UUID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, busy := p.inflight[runID]
	return busy
}

// Start launches the workers. They stop when ctx is done.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.work(ctx)
	}
}

// Wait blocks until every worker has returned.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) work(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-p.queue:
			p.run(ctx, j)
		}
	}
}

// run executes one job. A panicking job is logged and its run released, the
// worker keeps serving the queue.
func (p *Pool) run(ctx context.Context, j job) {
	defer p.release(j.runID)
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("job panicked", "run", j.runID, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	j.fn(ctx)
}

func (p *Pool) release(runID uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inflight, runID)
}
