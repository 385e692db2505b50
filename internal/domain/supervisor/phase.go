package supervisor

import (
	"errors"
	"fmt"
	"slices"
)

// ErrIllegalTransition is returned when a phase change is not allowed from
// the current phase.
var ErrIllegalTransition = errors.New("illegal phase transition")

// Phase is the supervisor lifecycle phase. Phases only move forward.
type Phase int32

const (
	PhaseUninitialized Phase = iota
	PhaseResolving
	PhaseLaunching
	PhaseRunning
	PhaseTerminated
	PhaseSkipped
	PhaseFailed
)

var transitions = map[Phase][]Phase{
	PhaseUninitialized: {PhaseResolving},
	PhaseResolving:     {PhaseLaunching, PhaseSkipped, PhaseFailed},
	PhaseLaunching:     {PhaseRunning, PhaseSkipped, PhaseFailed},
	PhaseRunning:       {PhaseTerminated, PhaseFailed},
}

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseResolving:
		return "resolving"
	case PhaseLaunching:
		return "launching"
	case PhaseRunning:
		return "running"
	case PhaseTerminated:
		return "terminated"
	case PhaseSkipped:
		return "skipped"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int32(p))
	}
}

// CanTransition reports whether to directly follows p.
func (p Phase) CanTransition(to Phase) bool {
	return slices.Contains(transitions[p], to)
}

// Terminal reports whether no further transition is possible.
func (p Phase) Terminal() bool {
	return len(transitions[p]) == 0
}
