package instance

import "sync"

// State is the lifecycle state of one instance. Exactly one value holds at
// any instant; every mutation goes through the state machine.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	default:
		return "Unknown"
	}
}

// Action is a state transition request. User* actions come from external
// callers, Instance* actions are fired internally when readiness is detected
// or the process exits.
type Action int

const (
	ActionUserStart Action = iota
	ActionInstanceStart
	ActionUserStop
	ActionInstanceStop
)

func (a Action) String() string {
	switch a {
	case ActionUserStart:
		return "UserStart"
	case ActionInstanceStart:
		return "InstanceStart"
	case ActionUserStop:
		return "UserStop"
	case ActionInstanceStop:
		return "InstanceStop"
	default:
		return "Unknown"
	}
}

// transitions is the full table of valid (state, action) pairs.
var transitions = map[State]map[Action]State{
	StateStopped: {
		ActionUserStart: StateStarting,
	},
	StateStarting: {
		ActionInstanceStart: StateRunning,
		ActionInstanceStop:  StateStopped,
	},
	StateRunning: {
		ActionUserStop:     StateStopping,
		ActionInstanceStop: StateStopped,
	},
	StateStopping: {
		ActionInstanceStop: StateStopped,
	},
}

// StateMachine guards the lifecycle state of one instance. The side-effect
// hook passed to TryTransition runs inside the critical section, so an
// observer that reacts to the published transition event and re-queries the
// machine always sees the new state.
type StateMachine struct {
	mu    sync.Mutex
	state State
}

// NewStateMachine returns a machine in the Stopped state.
func NewStateMachine() *StateMachine {
	return &StateMachine{state: StateStopped}
}

// State returns a point-in-time snapshot of the current state.
func (m *StateMachine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// TryTransition applies the action if the transition table allows it,
// invoking hook with the new state before the lock is released. An invalid
// request fails without mutating state.
func (m *StateMachine) TryTransition(action Action, hook func(State)) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, ok := transitions[m.state][action]
	if !ok {
		return m.state, newError(KindInvalidTransition,
			"cannot apply %s while %s", action, m.state)
	}
	m.state = next
	if hook != nil {
		hook(next)
	}
	return next, nil
}

// ForceStop sets the state to Stopped unconditionally. Only the kill path
// uses this, to repair bookkeeping when the process handle is already gone.
func (m *StateMachine) ForceStop(hook func(State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateStopped
	if hook != nil {
		hook(StateStopped)
	}
}
