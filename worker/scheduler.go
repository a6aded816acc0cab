package worker

import (
	"context"
	"errors"
	"time"

	"github.com/reddyt/reddyt-admin/runs"
	"github.com/uptrace/bun"
)

// maxCatchUp bounds how many missed fire times are skipped in one tick.
const maxCatchUp = 10000

// Scheduler creates runs when a profile's upload schedule or one of its
// overrides comes due.
type Scheduler struct {
	repo     runs.RepositoryManager
	now      func() time.Time
	interval time.Duration
	logger   runs.Logger
}

// SchedulerOption customizes a Scheduler.
type SchedulerOption func(*Scheduler)

// WithSchedulerClock injects a custom clock (useful for tests).
func WithSchedulerClock(clock func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithSchedulerInterval sets the polling interval.
func WithSchedulerInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithSchedulerLogger overrides the logger.
func WithSchedulerLogger(logger runs.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewScheduler returns a scheduler over repo.
func NewScheduler(repo runs.RepositoryManager, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		repo:     repo,
		now:      time.Now,
		interval: DefaultTickInterval,
		logger:   runs.DefaultLogger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Run ticks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	return every(ctx, s.interval, func(ctx context.Context) {
		if _, err := s.Tick(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("scheduler tick failed", "error", err)
		}
	})
}

// Tick creates every run that is due and returns them.
func (s *Scheduler) Tick(ctx context.Context) ([]*runs.Run, error) {
	now := s.now().UTC()

	created, err := s.claimOverrides(ctx, now)
	if err != nil {
		return created, err
	}

	profiles, err := s.repo.Profiles().SchedulableProfiles(ctx)
	if err != nil {
		return created, err
	}

	for _, profile := range profiles {
		run, err := s.scheduleProfile(ctx, profile, now)
		if err != nil {
			s.logger.Error("profile schedule failed", "profile", profile.ID, "error", err)
			continue
		}
		if run != nil {
			created = append(created, run)
		}
	}

	return created, nil
}

func (s *Scheduler) claimOverrides(ctx context.Context, now time.Time) ([]*runs.Run, error) {
	var created []*runs.Run
	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		due, err := s.repo.Overrides().ClaimDueTx(ctx, tx, now)
		if err != nil {
			return err
		}
		for _, ov := range due {
			run, err := s.repo.Runs().CreateTx(ctx, tx, runs.NewRun(ov.ProfileID, ov.RunsAt).WithSource(runs.SourceOverride))
			if err != nil {
				return err
			}
			s.logger.Info("override run created", "profile", ov.ProfileID, "run", run.ID, "run_date", run.RunDate)
			created = append(created, run)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Scheduler) scheduleProfile(ctx context.Context, profile *runs.Profile, now time.Time) (*runs.Run, error) {
	schedule, err := profile.Schedule()
	if err != nil {
		return nil, err
	}

	var created *runs.Run
	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		anchor := now
		if profile.CreatedAt != nil {
			anchor = profile.CreatedAt.UTC()
		}

		latest, err := s.repo.Runs().LatestScheduledTx(ctx, tx, profile.ID)
		switch {
		case err == nil:
			anchor = latest.RunDate
		case errors.Is(err, runs.ErrRunNotFound):
		default:
			return err
		}

		fire, ok := lastDue(schedule.Next, anchor, now)
		if !ok {
			return nil
		}

		created, err = s.repo.Runs().CreateTx(ctx, tx, runs.NewRun(profile.ID, fire))
		if err != nil {
			return err
		}
		s.logger.Info("scheduled run created", "profile", profile.ID, "run", created.ID, "run_date", created.RunDate)
		return nil
	})
	return created, err
}

// lastDue returns the latest fire time after anchor that is not after now.
// Missed fire times in between are skipped, so a long outage produces one run.
func lastDue(next func(time.Time) time.Time, anchor, now time.Time) (time.Time, bool) {
	var due time.Time
	found := false

	t := anchor
	for i := 0; i < maxCatchUp; i++ {
		t = next(t)
		if t.IsZero() || t.After(now) {
			break
		}
		due, found = t, true
	}
	return due, found
}
