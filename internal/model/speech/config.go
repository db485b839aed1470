package speech

// Output tuning applied to every utterance.
const (
	DefaultRate   = 0.9
	DefaultPitch  = 1.0
	DefaultVolume = 70
	MaxVolume     = 100
)

// Voice describes one synthesis voice offered by an output engine.
type Voice struct {
	Name    string `json:"name"`
	Locale  string `json:"lang"`
	Default bool   `json:"default,omitempty"`
}

// ClampVolume bounds a session volume to 0..100.
func ClampVolume(v int) int {
	if v < 0 {
		return 0
	}
	if v > MaxVolume {
		return MaxVolume
	}
	return v
}
