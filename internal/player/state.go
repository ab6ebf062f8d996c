package player

// State is the playback engine's state.
type State int32

const (
	StateUnloaded State = iota
	StatePlaying
	StatePaused
	StateWaitingForInput
	StateWaitingForPractice
	StateFinished
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "UNLOADED"
	case StatePlaying:
		return "PLAYING"
	case StatePaused:
		return "PAUSED"
	case StateWaitingForInput:
		return "WAITING_FOR_INPUT"
	case StateWaitingForPractice:
		return "WAITING_FOR_PRACTICE"
	case StateFinished:
		return "FINISHED"
	default:
		return "UNKNOWN"
	}
}

// IsActive reports whether a lesson is loaded and not yet finished.
func (s State) IsActive() bool {
	return s != StateUnloaded && s != StateFinished
}
