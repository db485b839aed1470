package speech

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nukhba-ai/tutor/backend/internal/model/chat"
	"github.com/nukhba-ai/tutor/backend/internal/model/speech"
	"github.com/nukhba-ai/tutor/backend/internal/model/voice"
)

// ErrCaptureActive is returned when Start is called during an episode.
var ErrCaptureActive = errors.New("capture episode already active")

// ClassifyCaptureCode maps a recognition engine error code onto the error
// taxonomy. "no-speech" is not an error and yields nil.
func ClassifyCaptureCode(code string) error {
	switch code {
	case speech.CodeNoSpeech:
		return nil
	case speech.CodeNotAllowed, speech.CodeServiceNotAllowed:
		return &voice.CaptureError{Code: code, Err: voice.ErrPermissionDenied}
	case speech.CodeAudioCapture:
		return &voice.CaptureError{Code: code, Err: voice.ErrAudioCaptureUnavailable}
	case speech.CodeNetwork:
		return &voice.NetworkError{Op: "speech recognition", Err: &voice.CaptureError{Code: code}}
	default:
		return &voice.CaptureError{Code: code}
	}
}

// transcriptBuffer holds the text of one listening episode.
type transcriptBuffer struct {
	interim string
	final   []string
}

func (b *transcriptBuffer) apply(evt speech.CaptureEvent) {
	text := strings.TrimSpace(evt.Text)
	if !evt.IsFinal {
		b.interim = text
		return
	}
	b.interim = ""
	if text != "" {
		b.final = append(b.final, text)
	}
}

func (b *transcriptBuffer) text() string {
	return strings.Join(b.final, " ")
}

type captureEpisode struct {
	stopping bool
}

// CaptureAdapter turns a CaptureEngine into listening episodes that yield
// transcript updates and exactly one terminal update: a final transcript
// (possibly empty) or an error.
//
// Callers must drain the returned channel until it is closed.
type CaptureAdapter struct {
	engine CaptureEngine
	logger *zap.Logger

	mu      sync.Mutex
	episode *captureEpisode
}

// NewCaptureAdapter wraps engine. A nil engine makes every Start fail with
// voice.ErrUnsupportedEnvironment.
func NewCaptureAdapter(engine CaptureEngine, logger *zap.Logger) *CaptureAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CaptureAdapter{engine: engine, logger: logger}
}

// Listening reports whether an episode is in progress.
func (a *CaptureAdapter) Listening() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.episode != nil
}

// Start begins an episode using the locale of lang. The locale is fixed for
// the whole episode; a language change applies to the next one.
func (a *CaptureAdapter) Start(ctx context.Context, lang chat.Language) (<-chan speech.TranscriptUpdate, error) {
	if a.engine == nil || !a.engine.Available() {
		return nil, voice.ErrUnsupportedEnvironment
	}

	a.mu.Lock()
	if a.episode != nil {
		a.mu.Unlock()
		return nil, ErrCaptureActive
	}
	ep := &captureEpisode{}
	a.episode = ep
	a.mu.Unlock()

	events, err := a.engine.Start(ctx, lang.Locale())
	if err != nil {
		a.finish(ep)
		return nil, fmt.Errorf("start capture: %w", err)
	}

	out := make(chan speech.TranscriptUpdate, 16)
	go a.run(ctx, ep, events, out)
	return out, nil
}

// Stop requests the end of the current episode. It is a no-op when idle or
// when a stop is already pending.
func (a *CaptureAdapter) Stop() {
	a.mu.Lock()
	ep := a.episode
	if ep == nil || ep.stopping {
		a.mu.Unlock()
		return
	}
	ep.stopping = true
	a.mu.Unlock()

	a.engine.Stop()
}

func (a *CaptureAdapter) finish(ep *captureEpisode) {
	a.mu.Lock()
	if a.episode == ep {
		a.episode = nil
	}
	a.mu.Unlock()
}

func (a *CaptureAdapter) run(ctx context.Context, ep *captureEpisode, events <-chan speech.CaptureEvent, out chan<- speech.TranscriptUpdate) {
	defer close(out)
	defer a.finish(ep)

	var buf transcriptBuffer
	final := func() {
		out <- speech.TranscriptUpdate{Text: buf.text(), Final: true, CreatedAt: time.Now().UTC()}
	}

	for {
		select {
		case evt, ok := <-events:
			if !ok {
				final()
				return
			}
			switch evt.Kind {
			case speech.CaptureResult:
				buf.apply(evt)
				out <- speech.TranscriptUpdate{Interim: buf.interim, Text: buf.text(), CreatedAt: time.Now().UTC()}
			case speech.CaptureError:
				err := ClassifyCaptureCode(evt.Code)
				if err == nil {
					a.logger.Debug("no speech detected")
					continue
				}
				a.logger.Info("capture failed", zap.String("code", evt.Code), zap.Error(err))
				a.engine.Stop()
				out <- speech.TranscriptUpdate{Text: buf.text(), Err: err, CreatedAt: time.Now().UTC()}
				return
			case speech.CaptureEnd:
				final()
				return
			}
		case <-ctx.Done():
			a.engine.Stop()
			drainResults(events, &buf)
			final()
			return
		}
	}
}

// drainResults applies results already queued on events without waiting for more.
func drainResults(events <-chan speech.CaptureEvent, buf *transcriptBuffer) {
	for {
		select {
		case evt, ok := <-events:
			if !ok || evt.Kind == speech.CaptureEnd {
				return
			}
			if evt.Kind == speech.CaptureResult {
				buf.apply(evt)
			}
		default:
			return
		}
	}
}
