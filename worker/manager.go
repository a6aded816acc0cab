package worker

import (
	"context"
	"errors"
	"time"

	"github.com/reddyt/reddyt-admin/runs"
)

// DefaultTickInterval is how often the manager and scheduler poll.
const DefaultTickInterval = 5 * time.Second

// Manager moves active runs through the pipeline one stage per job.
type Manager struct {
	repo     runs.RepositoryManager
	machine  *runs.RunStateMachine
	registry *Registry
	pool     *Pool
	interval time.Duration
	logger   runs.Logger
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithManagerInterval sets the polling interval.
func WithManagerInterval(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithManagerLogger overrides the logger.
func WithManagerLogger(logger runs.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager wires a manager. The pool must be started separately.
func NewManager(repo runs.RepositoryManager, machine *runs.RunStateMachine, registry *Registry, pool *Pool, opts ...ManagerOption) *Manager {
	m := &Manager{
		repo:     repo,
		machine:  machine,
		registry: registry,
		pool:     pool,
		interval: DefaultTickInterval,
		logger:   runs.DefaultLogger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Run ticks until ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	return every(ctx, m.interval, func(ctx context.Context) {
		if _, err := m.Tick(ctx); err != nil && ctx.Err() == nil {
			m.logger.Error("manager tick failed", "error", err)
		}
	})
}

// Tick enqueues a job for every active run without one in flight and
// returns how many were enqueued.
func (m *Manager) Tick(ctx context.Context) (int, error) {
	active, err := m.repo.Runs().List(ctx, runs.RunFilter{Active: true})
	if err != nil {
		return 0, err
	}

	enqueued := 0
	for _, run := range active {
		run := run
		err := m.pool.Enqueue(run.ID, func(ctx context.Context) {
			m.Process(ctx, run)
		})
		switch {
		case err == nil:
			enqueued++
		case errors.Is(err, ErrInFlight):
			continue
		case errors.Is(err, ErrPoolFull):
			m.logger.Warn("worker pool is full, deferring runs", "pending", len(active)-enqueued)
			return enqueued, nil
		default:
			return enqueued, err
		}
	}
	return enqueued, nil
}

// Process runs the stage handler for run and commits the outcome.
func (m *Manager) Process(ctx context.Context, run *runs.Run) {
	if run.State.Terminal() {
		return
	}

	var stageErr error
	profile, err := m.repo.Profiles().FindProfile(ctx, run.ProfileID)
	switch {
	case err == nil:
		if handler := m.registry.For(run.State); handler != nil {
			stageErr = handler.Handle(ctx, run, profile)
		}
	case errors.Is(err, runs.ErrProfileNotFound):
		stageErr = err
	default:
		// left untouched so the next tick retries it
		m.logger.Error("profile lookup failed", "run", run.ID, "profile", run.ProfileID, "error", err)
		return
	}

	if ctx.Err() != nil {
		// shutting down, the run is picked up again on the next start
		return
	}

	if stageErr != nil {
		m.logger.Warn("stage failed", "run", run.ID, "state", run.State, "error", stageErr)
		_, err = m.machine.FailRun(ctx, run, stageErr.Error())
	} else {
		_, err = m.machine.AdvanceRun(ctx, run)
	}

	switch {
	case err == nil:
	case errors.Is(err, runs.ErrStaleRun), errors.Is(err, runs.ErrFrozenState):
		m.logger.Warn("run changed while its stage was running", "run", run.ID, "error", err)
	default:
		m.logger.Error("run commit failed", "run", run.ID, "error", err)
	}
}

func every(ctx context.Context, interval time.Duration, fn func(context.Context)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	fn(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			fn(ctx)
		}
	}
}
