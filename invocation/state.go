package invocation

// State is the lifecycle state of a tool invocation.
type State string

const (
	StateInputStreaming  State = "input-streaming"
	StateInputAvailable  State = "input-available"
	StateOutputAvailable State = "output-available"
	StateOutputError     State = "output-error"
)

// Terminal reports whether no further transitions are accepted.
func (s State) Terminal() bool {
	return s == StateOutputAvailable || s == StateOutputError
}

func (s State) rank() int {
	switch s {
	case StateInputStreaming:
		return 0
	case StateInputAvailable:
		return 1
	case StateOutputAvailable, StateOutputError:
		return 2
	}
	return -1
}

// parseRawState maps a raw state string, including legacy aliases, to a
// State. Unknown values yield false.
func parseRawState(raw string) (State, bool) {
	switch raw {
	case "call":
		return StateInputAvailable, true
	case "result":
		return StateOutputAvailable, true
	case "partial-call":
		return StateInputStreaming, true
	case string(StateInputStreaming), string(StateInputAvailable), string(StateOutputAvailable), string(StateOutputError):
		return State(raw), true
	}
	return "", false
}
