package speech

// Utterance is one unit of synthesized speech handed to an output engine.
type Utterance struct {
	ID     string  `json:"utteranceId"`
	Text   string  `json:"text"`
	Locale string  `json:"locale"`
	Voice  string  `json:"voice,omitempty"`
	Rate   float64 `json:"rate"`
	Pitch  float64 `json:"pitch"`
	Volume float64 `json:"volume"` // 0.0-1.0
}

// CaptureEventKind enumerates what a recognition engine reports.
type CaptureEventKind string

const (
	CaptureResult CaptureEventKind = "result"
	CaptureError  CaptureEventKind = "error"
	CaptureEnd    CaptureEventKind = "end"
)

// Recognition error codes reported by capture engines.
const (
	CodeNoSpeech          = "no-speech"
	CodeAudioCapture      = "audio-capture"
	CodeNotAllowed        = "not-allowed"
	CodeServiceNotAllowed = "service-not-allowed"
	CodeNetwork           = "network"
)

// CaptureEvent is a raw event from a recognition engine.
type CaptureEvent struct {
	Kind    CaptureEventKind
	Text    string
	IsFinal bool
	Code    string
}

// PlaybackEventKind enumerates utterance lifecycle events.
type PlaybackEventKind string

const (
	PlaybackStart PlaybackEventKind = "start"
	PlaybackEnd   PlaybackEventKind = "end"
	PlaybackError PlaybackEventKind = "error"
)

// PlaybackEvent is a lifecycle event for one utterance.
type PlaybackEvent struct {
	UtteranceID string
	Kind        PlaybackEventKind
	Detail      string
}
