package runs

import (
	"fmt"
	"strings"
)

// RunState is the stage a run is in.
type RunState string

const (
	StateIdling                RunState = "idling"
	StateGeneratingQuestion    RunState = "generating_question"
	StateGeneratingAnswer      RunState = "generating_answer"
	StateRenderingVoice        RunState = "rendering_voice"
	StateRenderingSubtitles    RunState = "rendering_subtitles"
	StateDownloadingBackground RunState = "downloading_background"
	StateComposingVideo        RunState = "composing_video"
	StateUploading             RunState = "uploading"
	StateDone                  RunState = "done"
	StateError                 RunState = "error"
)

// pipeline is the total order of the happy path. Each entry's successor is
// the next entry; Done has none. Error is not part of the order.
var pipeline = []RunState{
	StateIdling,
	StateGeneratingQuestion,
	StateGeneratingAnswer,
	StateRenderingVoice,
	StateRenderingSubtitles,
	StateDownloadingBackground,
	StateComposingVideo,
	StateUploading,
	StateDone,
}

var successors = func() map[RunState]RunState {
	table := make(map[RunState]RunState, len(pipeline)-1)
	for i := 0; i < len(pipeline)-1; i++ {
		table[pipeline[i]] = pipeline[i+1]
	}
	return table
}()

var stateSet = func() map[RunState]struct{} {
	set := make(map[RunState]struct{}, len(pipeline)+1)
	for _, s := range pipeline {
		set[s] = struct{}{}
	}
	set[StateError] = struct{}{}
	return set
}()

// AllStates returns every state in pipeline order followed by Error.
func AllStates() []RunState {
	out := make([]RunState, 0, len(pipeline)+1)
	out = append(out, pipeline...)
	return append(out, StateError)
}

// WorkingStates returns the states in which a stage handler does work.
func WorkingStates() []RunState {
	return append([]RunState(nil), pipeline[1:len(pipeline)-1]...)
}

// Successor returns the fixed next state. It reports false for Done and Error.
func (s RunState) Successor() (RunState, bool) {
	next, ok := successors[s]
	return next, ok
}

// Terminal reports whether s is absorbing.
func (s RunState) Terminal() bool {
	return s == StateDone || s == StateError
}

// Valid reports whether s is a known state.
func (s RunState) Valid() bool {
	_, ok := stateSet[s]
	return ok
}

func (s RunState) String() string {
	return string(s)
}

// ParseRunState parses a state name, case-insensitively.
func ParseRunState(raw string) (RunState, error) {
	s := RunState(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownState, raw)
	}
	return s, nil
}
