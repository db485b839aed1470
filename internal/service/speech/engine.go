package speech

import (
	"context"

	"github.com/nukhba-ai/tutor/backend/internal/model/speech"
)

// CaptureEngine is a continuous, interim-result speech recognizer.
//
// Start opens one recognition episode and returns its event stream. The
// engine reports results and error codes on the stream and closes it after
// the end event. Stop asks the engine to finish the episode; the end event
// still follows.
type CaptureEngine interface {
	Available() bool
	Start(ctx context.Context, locale string) (<-chan speech.CaptureEvent, error)
	Stop()
}

// OutputEngine is a text-to-speech synthesizer playing one utterance at a time.
//
// Speak returns the lifecycle stream of the utterance, closed after end or
// error. Cancel drops every queued or playing utterance; their streams are
// closed without an end event.
type OutputEngine interface {
	Available() bool
	Voices() []speech.Voice
	Speak(ctx context.Context, utt speech.Utterance) (<-chan speech.PlaybackEvent, error)
	Cancel()
}
