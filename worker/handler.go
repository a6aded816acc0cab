package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/reddyt/reddyt-admin/runs"
)

// Handler does the work of one pipeline stage. A nil return advances the run
// to its next state, an error fails it with the error text.
type Handler interface {
	Handle(ctx context.Context, run *runs.Run, profile *runs.Profile) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, run *runs.Run, profile *runs.Profile) error

func (f HandlerFunc) Handle(ctx context.Context, run *runs.Run, profile *runs.Profile) error {
	return f(ctx, run, profile)
}

// Noop completes a stage without doing anything.
var Noop Handler = HandlerFunc(func(context.Context, *runs.Run, *runs.Profile) error {
	return nil
})

// Registry maps each non-terminal state to its stage handler.
type Registry struct {
	mu       sync.RWMutex
	handlers map[runs.RunState]Handler
}

// NewRegistry returns a registry with Noop for every non-terminal state.
func NewRegistry() *Registry {
	r := &Registry{handlers: make(map[runs.RunState]Handler)}
	for _, state := range runs.AllStates() {
		if !state.Terminal() {
			r.handlers[state] = Noop
		}
	}
	return r
}

// Register replaces the handler for state.
func (r *Registry) Register(state runs.RunState, h Handler) error {
	if !state.Valid() || state.Terminal() {
		return fmt.Errorf("%w: no handler can run in %q", runs.ErrUnknownState, state)
	}
	if h == nil {
		h = Noop
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[state] = h
	return nil
}

// For returns the handler for state, or nil for terminal states.
func (r *Registry) For(state runs.RunState) Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handlers[state]
}
