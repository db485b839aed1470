package speech

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/nukhba-ai/tutor/backend/internal/model/speech"
	"github.com/nukhba-ai/tutor/backend/internal/model/voice"
)

// Outbound command types understood by a remote engine client.
const (
	CommandCaptureStart = "capture.start"
	CommandCaptureStop  = "capture.stop"
	CommandSpeak        = "speak"
	CommandSpeakCancel  = "speak.cancel"
)

// Transport sends a command to the client that owns the physical engines.
type Transport interface {
	Send(msgType string, data interface{}) error
}

// connected treats a transport that can report its link state as
// unavailable while down.
func connected(t Transport) bool {
	if t == nil {
		return false
	}
	if c, ok := t.(interface{ Connected() bool }); ok {
		return c.Connected()
	}
	return true
}

// RemoteCaptureEngine drives a recognizer running in a remote client. The
// client's results, error codes and end events are fed back with Deliver.
type RemoteCaptureEngine struct {
	transport Transport
	logger    *zap.Logger

	mu        sync.Mutex
	supported bool
	events    chan speech.CaptureEvent
}

// NewRemoteCaptureEngine assumes the client supports recognition until told otherwise.
func NewRemoteCaptureEngine(transport Transport, logger *zap.Logger) *RemoteCaptureEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RemoteCaptureEngine{transport: transport, logger: logger, supported: true}
}

// SetSupported records whether the client has a recognizer.
func (e *RemoteCaptureEngine) SetSupported(supported bool) {
	e.mu.Lock()
	e.supported = supported
	e.mu.Unlock()
}

func (e *RemoteCaptureEngine) Available() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.supported && connected(e.transport)
}

func (e *RemoteCaptureEngine) Start(_ context.Context, locale string) (<-chan speech.CaptureEvent, error) {
	ch := make(chan speech.CaptureEvent, 32)

	e.mu.Lock()
	if e.events != nil {
		close(e.events)
	}
	e.events = ch
	e.mu.Unlock()

	if err := e.transport.Send(CommandCaptureStart, map[string]string{"locale": locale}); err != nil {
		e.closeEpisode(ch)
		return nil, &voice.NetworkError{Op: "capture start", Err: err}
	}
	return ch, nil
}

func (e *RemoteCaptureEngine) Stop() {
	e.mu.Lock()
	active := e.events != nil
	e.mu.Unlock()
	if !active {
		return
	}
	if err := e.transport.Send(CommandCaptureStop, nil); err != nil {
		e.logger.Warn("send capture stop failed", zap.Error(err))
		e.Close()
	}
}

// Deliver feeds a client event into the active episode. Events arriving
// outside an episode are dropped.
func (e *RemoteCaptureEngine) Deliver(evt speech.CaptureEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ch := e.events
	if ch == nil {
		return
	}
	select {
	case ch <- evt:
	default:
		e.logger.Warn("capture event dropped", zap.String("kind", string(evt.Kind)))
	}
	if evt.Kind == speech.CaptureEnd {
		close(ch)
		e.events = nil
	}
}

// Close ends the active episode, e.g. when the client disconnects.
func (e *RemoteCaptureEngine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.events != nil {
		close(e.events)
		e.events = nil
	}
}

func (e *RemoteCaptureEngine) closeEpisode(ch chan speech.CaptureEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.events == ch {
		close(ch)
		e.events = nil
	}
}

// RemoteOutputEngine drives a synthesizer running in a remote client.
type RemoteOutputEngine struct {
	transport Transport
	logger    *zap.Logger

	mu        sync.Mutex
	supported bool
	voices    []speech.Voice
	pending   map[string]chan speech.PlaybackEvent
}

// NewRemoteOutputEngine assumes the client supports synthesis until told otherwise.
func NewRemoteOutputEngine(transport Transport, logger *zap.Logger) *RemoteOutputEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RemoteOutputEngine{
		transport: transport,
		logger:    logger,
		supported: true,
		pending:   make(map[string]chan speech.PlaybackEvent),
	}
}

// SetSupported records whether the client has a synthesizer.
func (e *RemoteOutputEngine) SetSupported(supported bool) {
	e.mu.Lock()
	e.supported = supported
	e.mu.Unlock()
}

// SetVoices replaces the voice list reported by the client.
func (e *RemoteOutputEngine) SetVoices(voices []speech.Voice) {
	copied := make([]speech.Voice, len(voices))
	copy(copied, voices)
	e.mu.Lock()
	e.voices = copied
	e.mu.Unlock()
}

func (e *RemoteOutputEngine) Available() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.supported && connected(e.transport)
}

func (e *RemoteOutputEngine) Voices() []speech.Voice {
	e.mu.Lock()
	defer e.mu.Unlock()
	copied := make([]speech.Voice, len(e.voices))
	copy(copied, e.voices)
	return copied
}

func (e *RemoteOutputEngine) Speak(_ context.Context, utt speech.Utterance) (<-chan speech.PlaybackEvent, error) {
	ch := make(chan speech.PlaybackEvent, 4)

	e.mu.Lock()
	e.pending[utt.ID] = ch
	e.mu.Unlock()

	if err := e.transport.Send(CommandSpeak, utt); err != nil {
		e.drop(utt.ID)
		return nil, &voice.NetworkError{Op: "speak", Err: err}
	}
	return ch, nil
}

func (e *RemoteOutputEngine) Cancel() {
	e.mu.Lock()
	empty := len(e.pending) == 0
	for id, ch := range e.pending {
		close(ch)
		delete(e.pending, id)
	}
	e.mu.Unlock()

	if empty {
		return
	}
	if err := e.transport.Send(CommandSpeakCancel, nil); err != nil {
		e.logger.Warn("send speak cancel failed", zap.Error(err))
	}
}

// Deliver routes a client lifecycle event to its utterance.
func (e *RemoteOutputEngine) Deliver(evt speech.PlaybackEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ch, ok := e.pending[evt.UtteranceID]
	if !ok {
		return
	}
	select {
	case ch <- evt:
	default:
		e.logger.Warn("playback event dropped", zap.String("utterance_id", evt.UtteranceID))
	}
	if evt.Kind == speech.PlaybackEnd || evt.Kind == speech.PlaybackError {
		close(ch)
		delete(e.pending, evt.UtteranceID)
	}
}

// Close drops every pending utterance.
func (e *RemoteOutputEngine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, ch := range e.pending {
		close(ch)
		delete(e.pending, id)
	}
}

func (e *RemoteOutputEngine) drop(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ch, ok := e.pending[id]; ok {
		close(ch)
		delete(e.pending, id)
	}
}
