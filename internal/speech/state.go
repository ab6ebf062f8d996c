package speech

// State is the session's recognition mode.
type State int

const (
	StateInitializing State = iota
	StateReady
	StatePractice
	StateInput
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateInitializing:
		return "INITIALIZING"
	case StateReady:
		return "READY"
	case StatePractice:
		return "PRACTICE"
	case StateInput:
		return "INPUT"
	default:
		return "UNKNOWN"
	}
}

// Result is the outcome of a practice or input request.
type Result int

const (
	ResultSilenceTimeout Result = iota
	ResultYes
	ResultNo
)

// String returns the string representation of the result.
func (r Result) String() string {
	switch r {
	case ResultSilenceTimeout:
		return "SILENCE_TIMEOUT"
	case ResultYes:
		return "YES"
	case ResultNo:
		return "NO"
	default:
		return "UNKNOWN"
	}
}
