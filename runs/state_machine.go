package runs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TransitionContext is passed into hooks for additional processing.
type TransitionContext struct {
	Run     *Run
	From    RunState
	To      RunState
	Message string
}

// TransitionHook is executed before or after a transition is saved.
type TransitionHook func(ctx context.Context, tc TransitionContext) error

// TransitionHookPhase identifies whether a hook ran before or after persistence.
type TransitionHookPhase string

const (
	HookPhaseBefore TransitionHookPhase = "before_transition"
	HookPhaseAfter  TransitionHookPhase = "after_transition"
)

// HookErrorHandler handles errors surfaced by transition hooks.
type HookErrorHandler func(ctx context.Context, phase TransitionHookPhase, err error, tc TransitionContext) error

// StateMachineOption customizes state machine construction.
type StateMachineOption func(*RunStateMachine)

// WithStateMachineClock injects a custom clock (useful for tests).
func WithStateMachineClock(clock func() time.Time) StateMachineOption {
	return func(sm *RunStateMachine) {
		if clock != nil {
			sm.now = clock
		}
	}
}

// WithStateMachineLogger overrides the logger.
func WithStateMachineLogger(logger Logger) StateMachineOption {
	return func(sm *RunStateMachine) {
		if logger != nil {
			sm.logger = logger
		}
	}
}

// WithBeforeTransitionHook adds a hook executed before the run is saved.
// A failing before hook aborts the transition.
func WithBeforeTransitionHook(h TransitionHook) StateMachineOption {
	return func(sm *RunStateMachine) {
		if h != nil {
			sm.beforeHooks = append(sm.beforeHooks, h)
		}
	}
}

// WithAfterTransitionHook adds a hook executed after the run is saved.
func WithAfterTransitionHook(h TransitionHook) StateMachineOption {
	return func(sm *RunStateMachine) {
		if h != nil {
			sm.afterHooks = append(sm.afterHooks, h)
		}
	}
}

// WithStateMachineHookErrorHandler overrides how hook failures are propagated.
func WithStateMachineHookErrorHandler(handler HookErrorHandler) StateMachineOption {
	return func(sm *RunStateMachine) {
		if handler != nil {
			sm.hookErrorHandler = handler
		}
	}
}

// RunStateMachine loads a run, applies one lifecycle step and saves it.
// Concurrent steps on the same run are caught by the store's version check.
type RunStateMachine struct {
	store            Store
	now              func() time.Time
	logger           Logger
	beforeHooks      []TransitionHook
	afterHooks       []TransitionHook
	hookErrorHandler HookErrorHandler
}

// NewRunStateMachine returns a state machine persisting through store.
func NewRunStateMachine(store Store, opts ...StateMachineOption) *RunStateMachine {
	sm := &RunStateMachine{
		store:            store,
		now:              time.Now,
		logger:           defLogger{},
		hookErrorHandler: defaultHookErrorHandler,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(sm)
		}
	}

	return sm
}

// Advance moves run id to its next state.
func (sm *RunStateMachine) Advance(ctx context.Context, id uuid.UUID) (*Run, error) {
	current, err := sm.store.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	return sm.AdvanceRun(ctx, current)
}

// Fail moves run id to Error, recording message.
func (sm *RunStateMachine) Fail(ctx context.Context, id uuid.UUID, message string) (*Run, error) {
	current, err := sm.store.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	return sm.FailRun(ctx, current, message)
}

// AdvanceRun advances a snapshot the caller already loaded. The save fails
// with ErrStaleRun if the stored run moved on since.
func (sm *RunStateMachine) AdvanceRun(ctx context.Context, current *Run) (*Run, error) {
	return sm.transition(ctx, current, "", func(run Run) (Run, error) {
		return Advance(run)
	})
}

// FailRun fails a snapshot the caller already loaded.
func (sm *RunStateMachine) FailRun(ctx context.Context, current *Run, message string) (*Run, error) {
	return sm.transition(ctx, current, message, func(run Run) (Run, error) {
		return Fail(run, message)
	})
}

func (sm *RunStateMachine) transition(ctx context.Context, current *Run, message string, step func(Run) (Run, error)) (*Run, error) {
	id := current.ID
	next, err := step(*current)
	if err != nil {
		sm.logger.Warn("run transition rejected", "run", id, "state", current.State, "error", err)
		return nil, err
	}

	sm.stamp(current.State, &next)

	tc := TransitionContext{
		Run:     &next,
		From:    current.State,
		To:      next.State,
		Message: message,
	}

	if err := sm.runHooks(ctx, sm.beforeHooks, tc, HookPhaseBefore); err != nil {
		return nil, err
	}

	if err := sm.store.SaveRun(ctx, &next); err != nil {
		return nil, err
	}

	sm.logger.Info("run transitioned", "run", id, "from", tc.From, "to", tc.To)

	if err := sm.runHooks(ctx, sm.afterHooks, tc, HookPhaseAfter); err != nil {
		return &next, err
	}

	return &next, nil
}

func (sm *RunStateMachine) stamp(from RunState, run *Run) {
	now := sm.now().UTC()
	if from == StateIdling && run.StartedAt == nil {
		run.StartedAt = &now
	}
	if run.State.Terminal() && run.FinishedAt == nil {
		run.FinishedAt = &now
	}
}

func (sm *RunStateMachine) runHooks(ctx context.Context, hooks []TransitionHook, tc TransitionContext, phase TransitionHookPhase) error {
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		if err := hook(ctx, tc); err != nil {
			if sm.hookErrorHandler == nil {
				return err
			}
			return sm.hookErrorHandler(ctx, phase, err, tc)
		}
	}
	return nil
}

func defaultHookErrorHandler(_ context.Context, phase TransitionHookPhase, err error, tc TransitionContext) error {
	return fmt.Errorf("%s hook failed for run %s (%s -> %s): %w", phase, tc.Run.ID, tc.From, tc.To, err)
}
