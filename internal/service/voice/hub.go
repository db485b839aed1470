package voice

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nukhba-ai/tutor/backend/internal/model/speech"
	chatsvc "github.com/nukhba-ai/tutor/backend/internal/service/chat"
	"github.com/nukhba-ai/tutor/backend/internal/service/quota"
	speechsvc "github.com/nukhba-ai/tutor/backend/internal/service/speech"
)

// Line binds one session's orchestrator to speech engines that live in a
// remote client. The client can come and go; without one, the engines
// report unavailable and typed turns still work.
type Line struct {
	orch    *Orchestrator
	capture *speechsvc.RemoteCaptureEngine
	output  *speechsvc.RemoteOutputEngine
	relay   *speechsvc.Relay
}

// Orchestrator returns the session's orchestrator.
func (l *Line) Orchestrator() *Orchestrator {
	return l.orch
}

// Attach makes t the client of this line, replacing any previous one.
func (l *Line) Attach(t speechsvc.Transport) {
	l.relay.Attach(t)
	l.capture.SetSupported(true)
	l.output.SetSupported(true)
}

// Detach drops t if it is still the client. The running turn is cancelled.
func (l *Line) Detach(t speechsvc.Transport) {
	if !l.relay.Detach(t) {
		return
	}
	l.orch.Cancel()
	l.capture.Close()
	l.output.Close()
}

// Configure records the client's engine capabilities.
func (l *Line) Configure(captureSupported, outputSupported bool, voices []speech.Voice) {
	l.capture.SetSupported(captureSupported)
	l.output.SetSupported(outputSupported)
	if voices != nil {
		l.output.SetVoices(voices)
	}
}

// DeliverCapture forwards a recognizer event from the client.
func (l *Line) DeliverCapture(evt speech.CaptureEvent) {
	l.capture.Deliver(evt)
}

// DeliverPlayback forwards an utterance lifecycle event from the client.
func (l *Line) DeliverPlayback(evt speech.PlaybackEvent) {
	l.output.Deliver(evt)
}

// HubOptions are shared by every orchestrator the hub creates.
type HubOptions struct {
	Tutor       Tutor
	Quota       quota.Counter
	MaxAttempts int
	Backoff     time.Duration
	Logger      *zap.Logger
}

// Hub keeps exactly one Line per live session, so REST and WebSocket callers
// of the same session share its turn lock.
type Hub struct {
	registry *chatsvc.Registry
	opts     HubOptions
	logger   *zap.Logger

	mu    sync.Mutex
	lines map[string]*Line
}

// NewHub creates a hub over registry.
func NewHub(registry *chatsvc.Registry, opts HubOptions) *Hub {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		registry: registry,
		opts:     opts,
		logger:   logger,
		lines:    make(map[string]*Line),
	}
}

// Registry returns the session registry behind the hub.
func (h *Hub) Registry() *chatsvc.Registry {
	return h.registry
}

// Create registers a new session and its line.
func (h *Hub) Create(ctx context.Context, opts chatsvc.Options) (*Line, error) {
	session, err := h.registry.Create(ctx, opts)
	if err != nil {
		return nil, err
	}
	h.logger.Info("session created",
		zap.String("session_id", session.ID()),
		zap.String("language", string(session.Language())))
	return h.bind(session), nil
}

// Line returns the line of a registered session, creating it on first use.
func (h *Hub) Line(ctx context.Context, sessionID string) (*Line, error) {
	session, err := h.registry.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return h.bind(session), nil
}

// Remove closes the session's line and forgets the session.
func (h *Hub) Remove(ctx context.Context, sessionID string) error {
	if err := h.registry.Delete(ctx, sessionID); err != nil {
		return err
	}
	h.mu.Lock()
	line := h.lines[sessionID]
	delete(h.lines, sessionID)
	h.mu.Unlock()

	if line != nil {
		line.orch.Close()
	}
	if h.opts.Quota != nil {
		if err := h.opts.Quota.Reset(ctx, sessionID); err != nil {
			h.logger.Warn("quota cleanup failed", zap.String("session_id", sessionID), zap.Error(err))
		}
	}
	h.logger.Info("session removed", zap.String("session_id", sessionID))
	return nil
}

// Close shuts every orchestrator down.
func (h *Hub) Close() {
	h.mu.Lock()
	lines := h.lines
	h.lines = make(map[string]*Line)
	h.mu.Unlock()

	for _, line := range lines {
		line.orch.Close()
	}
}

func (h *Hub) bind(session *chatsvc.Session) *Line {
	h.mu.Lock()
	defer h.mu.Unlock()

	if line, ok := h.lines[session.ID()]; ok {
		return line
	}

	relay := speechsvc.NewRelay()
	engineLogger := h.logger.Named("speech").With(zap.String("session_id", session.ID()))
	capture := speechsvc.NewRemoteCaptureEngine(relay, engineLogger)
	output := speechsvc.NewRemoteOutputEngine(relay, engineLogger)

	line := &Line{
		capture: capture,
		output:  output,
		relay:   relay,
		orch: New(Options{
			Session:     session,
			Capture:     speechsvc.NewCaptureAdapter(capture, engineLogger),
			Output:      speechsvc.NewOutputAdapter(output, engineLogger),
			Tutor:       h.opts.Tutor,
			Quota:       h.opts.Quota,
			MaxAttempts: h.opts.MaxAttempts,
			Backoff:     h.opts.Backoff,
			Logger:      h.logger.Named("orchestrator"),
		}),
	}
	relay.Sequence(line.orch.Enqueue, func(msgType string, err error) {
		engineLogger.Warn("send command failed", zap.String("type", msgType), zap.Error(err))
	})
	h.lines[session.ID()] = line
	return line
}
