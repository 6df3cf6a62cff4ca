package runtime

// State is the invocation state machine.
type State int

const (
	StateIdle State = iota
	StateDispatching
	StateExecuting
	StateCompleted
	StateTrapped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDispatching:
		return "dispatching"
	case StateExecuting:
		return "executing"
	case StateCompleted:
		return "completed"
	case StateTrapped:
		return "trapped"
	default:
		return "unknown"
	}
}
