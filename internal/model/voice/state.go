package voice

// State is the voice interaction state owned by the orchestrator.
type State string

const (
	Idle       State = "idle"
	Listening  State = "listening"
	Processing State = "processing"
	Speaking   State = "speaking"
	Error      State = "error"
)

// Active reports whether the state belongs to an in-flight turn.
func (s State) Active() bool {
	switch s {
	case Listening, Processing, Speaking:
		return true
	default:
		return false
	}
}
