package speech

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nukhba-ai/tutor/backend/internal/model/chat"
	"github.com/nukhba-ai/tutor/backend/internal/model/speech"
	"github.com/nukhba-ai/tutor/backend/internal/model/voice"
)

var (
	// ErrPlaybackCancelled completes a playback that was stopped or superseded.
	ErrPlaybackCancelled = errors.New("playback cancelled")
	ErrEmptyUtterance    = errors.New("utterance text is empty")
)

// Playback tracks one utterance handed to the output engine.
type Playback struct {
	ID        string
	Utterance speech.Utterance

	once sync.Once
	done chan struct{}
	err  error
}

func newPlayback(utt speech.Utterance) *Playback {
	return &Playback{ID: utt.ID, Utterance: utt, done: make(chan struct{})}
}

// Done is closed when the utterance ends, fails or is cancelled.
func (p *Playback) Done() <-chan struct{} {
	return p.done
}

// Err is nil after a natural end, ErrPlaybackCancelled after cancellation and
// wraps voice.ErrSpeechOutput after an engine error. Valid once Done is closed.
func (p *Playback) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Wait blocks until the playback completes or ctx is done.
func (p *Playback) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Playback) finish(err error) bool {
	finished := false
	p.once.Do(func() {
		p.err = err
		close(p.done)
		finished = true
	})
	return finished
}

// OutputAdapter plays tutor answers through an OutputEngine. At most one
// utterance plays at a time; a new Speak cancels the current one.
type OutputAdapter struct {
	engine OutputEngine
	logger *zap.Logger

	mu      sync.Mutex
	volume  int
	current *Playback
}

// NewOutputAdapter wraps engine with the default session volume.
func NewOutputAdapter(engine OutputEngine, logger *zap.Logger) *OutputAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OutputAdapter{engine: engine, logger: logger, volume: speech.DefaultVolume}
}

// SetVolume sets the volume (0-100) applied to subsequent utterances.
func (a *OutputAdapter) SetVolume(v int) {
	a.mu.Lock()
	a.volume = speech.ClampVolume(v)
	a.mu.Unlock()
}

// Volume returns the current volume setting.
func (a *OutputAdapter) Volume() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.volume
}

// Speaking reports whether an utterance is in progress.
func (a *OutputAdapter) Speaking() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current != nil
}

// Speak cancels any current utterance and starts text in the voice that best
// matches lang. A missing localized voice falls back to the engine default.
func (a *OutputAdapter) Speak(ctx context.Context, text string, lang chat.Language) (*Playback, error) {
	if a.engine == nil || !a.engine.Available() {
		return nil, voice.ErrUnsupportedEnvironment
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyUtterance
	}

	a.Stop()

	locale := lang.Locale()
	a.mu.Lock()
	volume := a.volume
	a.mu.Unlock()

	utt := speech.Utterance{
		ID:     uuid.NewString(),
		Text:   text,
		Locale: locale,
		Rate:   speech.DefaultRate,
		Pitch:  speech.DefaultPitch,
		Volume: float64(volume) / speech.MaxVolume,
	}
	if v, ok := SelectVoice(a.engine.Voices(), locale); ok {
		utt.Voice = v.Name
	}

	events, err := a.engine.Speak(ctx, utt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", voice.ErrSpeechOutput, err)
	}

	p := newPlayback(utt)
	a.mu.Lock()
	a.current = p
	a.mu.Unlock()

	go a.watch(ctx, p, events)
	return p, nil
}

// Stop cancels the current utterance. It is a no-op when nothing is playing.
func (a *OutputAdapter) Stop() {
	a.mu.Lock()
	p := a.current
	a.current = nil
	a.mu.Unlock()

	if p == nil {
		return
	}
	a.engine.Cancel()
	p.finish(ErrPlaybackCancelled)
}

func (a *OutputAdapter) release(p *Playback, err error) {
	a.mu.Lock()
	if a.current == p {
		a.current = nil
	}
	a.mu.Unlock()
	p.finish(err)
}

func (a *OutputAdapter) watch(ctx context.Context, p *Playback, events <-chan speech.PlaybackEvent) {
	for {
		select {
		case evt, ok := <-events:
			if !ok {
				a.release(p, ErrPlaybackCancelled)
				return
			}
			if evt.UtteranceID != "" && evt.UtteranceID != p.ID {
				continue
			}
			switch evt.Kind {
			case speech.PlaybackStart:
				a.logger.Debug("utterance started", zap.String("utterance_id", p.ID))
			case speech.PlaybackEnd:
				a.release(p, nil)
				return
			case speech.PlaybackError:
				a.logger.Warn("utterance failed", zap.String("utterance_id", p.ID), zap.String("detail", evt.Detail))
				a.release(p, fmt.Errorf("%w: %s", voice.ErrSpeechOutput, evt.Detail))
				return
			}
		case <-p.done:
			return
		case <-ctx.Done():
			a.mu.Lock()
			owned := a.current == p
			a.mu.Unlock()
			if owned {
				a.Stop()
			}
			p.finish(ErrPlaybackCancelled)
			return
		}
	}
}
