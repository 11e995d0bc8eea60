package statement

import "fmt"

// State is a statement lifecycle state. The numeric order is the lifecycle
// order; terminal states share the highest rank.
type State int

// Statement states.
const (
	Queued State = iota
	Running
	Finished
	Failed
	Cancelled
)

var stateNames = [...]string{
	Queued:    "QUEUED",
	Running:   "RUNNING",
	Finished:  "FINISHED",
	Failed:    "FAILED",
	Cancelled: "CANCELLED",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// IsTerminal reports whether no further transition is possible.
func (s State) IsTerminal() bool {
	return s >= Finished
}

// Rank orders states for monotonicity checks: QUEUED < RUNNING < terminal.
func (s State) Rank() int {
	if s.IsTerminal() {
		return int(Finished)
	}
	return int(s)
}

// Event drives a state transition.
type Event int

// Events.
const (
	EventStart Event = iota
	EventFinish
	EventFail
	EventCancel
)

func (e Event) String() string {
	switch e {
	case EventStart:
		return "start"
	case EventFinish:
		return "finish"
	case EventFail:
		return "fail"
	case EventCancel:
		return "cancel"
	default:
		return fmt.Sprintf("Event(%d)", int(e))
	}
}

// Transition returns the state reached from s on e. It has no side effects.
// Any event on a terminal state yields ErrAlreadyTerminal.
func Transition(s State, e Event) (State, error) {
	if s.IsTerminal() {
		return s, fmt.Errorf("%w: %s on %s", ErrAlreadyTerminal, e, s)
	}
	switch {
	case s == Queued && e == EventStart:
		return Running, nil
	case s == Running && e == EventFinish:
		return Finished, nil
	case e == EventFail:
		return Failed, nil
	case e == EventCancel:
		return Cancelled, nil
	}
	return s, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, e, s)
}
