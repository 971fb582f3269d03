package scanner

// State is the scheduler's position in a scan.
type State int

const (
	StateIdle State = iota
	StateDispatching
	StateWaiting
	StateDrained
	StateHaltedOnRateLimit
	StateCancelled
)

// String returns the state name used in logs.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDispatching:
		return "dispatching"
	case StateWaiting:
		return "waiting"
	case StateDrained:
		return "drained"
	case StateHaltedOnRateLimit:
		return "halted_on_rate_limit"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// terminal reports whether no further batches will be dispatched.
func (s State) terminal() bool {
	return s == StateDrained || s == StateHaltedOnRateLimit || s == StateCancelled
}
