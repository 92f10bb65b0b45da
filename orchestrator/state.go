package orchestrator

import (
	"fmt"
	"slices"
)

// State is the phase of an action.
type State uint32

const (
	Idle State = iota
	Simulating
	Submitting
	Settled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Simulating:
		return "simulating"
	case Submitting:
		return "submitting"
	case Settled:
		return "settled"
	default:
		return fmt.Sprintf("state(%d)", uint32(s))
	}
}

// transitions lists the states reachable from each state. A failed simulation settles
// without submitting.
var transitions = map[State][]State{
	Idle:       {Simulating},
	Simulating: {Submitting, Settled},
	Submitting: {Settled},
	Settled:    {Idle},
}

// action is one in-flight write. Its state is only touched by the goroutine running it.
type action struct {
	key   key
	state State
}

func (a *action) transition(to State) {
	if !slices.Contains(transitions[a.state], to) {
		panic(fmt.Sprintf("no valid transition from state %v to %v for %s", a.state, to, a.key))
	}
	a.state = to
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
