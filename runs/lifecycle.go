package runs

import "fmt"

// Advance moves run to the fixed successor of its current state. Terminal
// runs are rejected with ErrFrozenState. The input is not modified.
func Advance(run Run) (Run, error) {
	if run.State == StateError {
		return run, frozen(run, "advance")
	}

	next, ok := run.State.Successor()
	if !ok {
		if run.State == StateDone {
			return run, frozen(run, "advance")
		}
		return run, fmt.Errorf("%w: %q", ErrUnknownState, run.State)
	}

	run.State = next
	return run, nil
}

// Fail moves run to Error and records message. The first error wins: a run
// already in Error is rejected with ErrFrozenState.
func Fail(run Run, message string) (Run, error) {
	if run.State == StateError {
		return run, frozen(run, "fail")
	}

	run.State = StateError
	run.Error = &message
	return run, nil
}

func frozen(run Run, op string) error {
	return fmt.Errorf("%w: cannot %s run %s in state %s", ErrFrozenState, op, run.ID, run.State)
}
