package runs

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
)

// Logger is the logging contract used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Store is the persistence a run transition needs. Both calls are atomic at
// row granularity.
type Store interface {
	// GetRun returns ErrRunNotFound when id has no row.
	GetRun(ctx context.Context, id uuid.UUID) (*Run, error)
	// SaveRun writes run if its version still matches the stored one, then
	// bumps run.Version. A mismatch returns ErrStaleRun.
	SaveRun(ctx context.Context, run *Run) error
}

// RunFilter narrows run listings. Zero values match everything.
type RunFilter struct {
	State     RunState
	Source    RunSource
	ProfileID uuid.UUID
	Active    bool
	Limit     int
}

type defLogger struct{}

// DefaultLogger returns the standard library logger used when none is configured.
func DefaultLogger() Logger {
	return defLogger{}
}

func (d defLogger) Debug(msg string, args ...any) {
	log.Print("[DBG] RUNS " + msg + formatArgs(args))
}

func (d defLogger) Info(msg string, args ...any) {
	log.Print("[INF] RUNS " + msg + formatArgs(args))
}

func (d defLogger) Warn(msg string, args ...any) {
	log.Print("[WRN] RUNS " + msg + formatArgs(args))
}

func (d defLogger) Error(msg string, args ...any) {
	log.Print("[ERR] RUNS " + msg + formatArgs(args))
}

func formatArgs(args []any) string {
	out := ""
	for i := 0; i+1 < len(args); i += 2 {
		out += fmt.Sprintf(" %v=%v", args[i], args[i+1])
	}
	return out
}
