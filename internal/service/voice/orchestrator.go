// Package voice coordinates one tutor session's turns: listening, asking the
// tutor, and speaking the answer.
package voice

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/nukhba-ai/tutor/backend/internal/model/chat"
	"github.com/nukhba-ai/tutor/backend/internal/model/speech"
	"github.com/nukhba-ai/tutor/backend/internal/model/voice"
	chatsvc "github.com/nukhba-ai/tutor/backend/internal/service/chat"
	"github.com/nukhba-ai/tutor/backend/internal/service/quota"
	speechsvc "github.com/nukhba-ai/tutor/backend/internal/service/speech"
	"github.com/nukhba-ai/tutor/backend/internal/service/tutor"
)

const (
	DefaultMaxAttempts = 1
	MaxAttemptsCap     = 3
	DefaultBackoff     = 500 * time.Millisecond
)

var (
	// ErrTurnSuperseded is returned to the caller of a turn that was cancelled
	// or replaced before its answer arrived. The answer is discarded.
	ErrTurnSuperseded  = errors.New("turn superseded")
	ErrMessageNotFound = errors.New("message not found")
)

// Capture is the listening side the orchestrator drives.
type Capture interface {
	Start(ctx context.Context, lang chat.Language) (<-chan speech.TranscriptUpdate, error)
	Stop()
}

// Output is the speaking side the orchestrator drives.
type Output interface {
	Speak(ctx context.Context, text string, lang chat.Language) (*speechsvc.Playback, error)
	Stop()
	SetVolume(v int)
}

// Tutor answers one question given the earlier conversation.
type Tutor interface {
	SendTurn(ctx context.Context, history []chat.Message, userMessage string, lang chat.Language) (*tutor.Response, error)
}

// EventType names what changed.
type EventType string

const (
	EventState        EventType = "state"
	EventTranscript   EventType = "transcript"
	EventMessage      EventType = "message"
	EventNotification EventType = "notification"
)

// Event is delivered to listeners in the order it happened.
type Event struct {
	Type         EventType
	Turn         uint64
	State        voice.State
	Transcript   *speech.TranscriptUpdate
	Message      *chat.Message
	Notification *voice.Notification
}

// Listener observes orchestrator events. Listeners run on a dedicated
// goroutine and may call back into the orchestrator.
type Listener func(Event)

// Options wires an Orchestrator. Session, Capture, Output and Tutor are required.
type Options struct {
	Session *chatsvc.Session
	Capture Capture
	Output  Output
	Tutor   Tutor

	// Quota, when set, is consulted before a turn and bumped after a
	// successful one. Reset clears it. Key defaults to the session ID.
	Quota    quota.Counter
	QuotaKey string

	MaxAttempts int
	Backoff     time.Duration
	Logger      *zap.Logger
}

// Status is a point-in-time view of the orchestrator.
type Status struct {
	State   voice.State          `json:"state"`
	Turn    uint64               `json:"turn"`
	Session chat.SessionSnapshot `json:"session"`
}

// Orchestrator owns the voice state of one session. At most one turn is
// active at a time; a turn that was cancelled never writes to the session.
type Orchestrator struct {
	session  *chatsvc.Session
	capture  Capture
	output   Output
	tutor    Tutor
	quota    quota.Counter
	quotaKey string
	attempts int
	backoff  time.Duration
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	wake   chan struct{}

	mu         sync.Mutex
	state      voice.State
	turn       uint64
	stopListen context.CancelFunc
	listeners  map[uint64]Listener
	nextID     uint64
	closed     bool

	// qmu guards queue only; it may be taken while mu is held.
	qmu   sync.Mutex
	queue []queued
}

// queued is either an event for listeners or a function run in its place.
type queued struct {
	evt Event
	run func()
}

// New builds an orchestrator in the Idle state.
func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	attempts := opts.MaxAttempts
	if attempts < 1 {
		attempts = DefaultMaxAttempts
	}
	if attempts > MaxAttemptsCap {
		attempts = MaxAttemptsCap
	}
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = DefaultBackoff
	}
	key := opts.QuotaKey
	if key == "" {
		key = opts.Session.ID()
	}

	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		session:  opts.Session,
		capture:  opts.Capture,
		output:   opts.Output,
		tutor:    opts.Tutor,
		quota:    opts.Quota,
		quotaKey: key,
		attempts: attempts,
		backoff:  backoff,
		logger:   logger.With(zap.String("session_id", opts.Session.ID())),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		wake:     make(chan struct{}, 1),
		state:    voice.Idle,
	}
	o.output.SetVolume(o.session.Volume())
	go o.dispatch()
	return o
}

// Subscribe registers l for every later event. The returned func removes it;
// events already queued may still reach l.
func (o *Orchestrator) Subscribe(l Listener) (unsubscribe func()) {
	o.mu.Lock()
	if o.listeners == nil {
		o.listeners = make(map[uint64]Listener)
	}
	o.nextID++
	id := o.nextID
	o.listeners[id] = l
	o.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.listeners, id)
			o.mu.Unlock()
		})
	}
}

// State returns the current voice state.
func (o *Orchestrator) State() voice.State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Session returns the conversation owned by this orchestrator.
func (o *Orchestrator) Session() *chatsvc.Session {
	return o.session
}

// Snapshot returns the state together with a copy of the session.
func (o *Orchestrator) Snapshot() Status {
	o.mu.Lock()
	state, turn := o.state, o.turn
	o.mu.Unlock()
	return Status{State: state, Turn: turn, Session: o.session.Snapshot()}
}

// StartListening opens a listening episode. The recognized text becomes the
// user message of the turn once capture ends.
func (o *Orchestrator) StartListening(ctx context.Context) error {
	if err := o.admit(ctx); err != nil {
		return err
	}

	o.mu.Lock()
	if o.state.Active() {
		o.rejectBusyLocked()
		o.mu.Unlock()
		return voice.ErrTurnInProgress
	}
	o.turn++
	turn := o.turn
	lang := o.session.Language()

	listenCtx, stop := context.WithCancel(o.ctx)
	updates, err := o.capture.Start(listenCtx, lang)
	if err != nil {
		stop()
		o.logger.Warn("start listening failed", zap.Uint64("turn", turn), zap.Error(err))
		o.failLocked(err)
		o.mu.Unlock()
		return err
	}
	o.stopListen = stop
	o.setStateLocked(voice.Listening)
	o.mu.Unlock()

	go o.listen(turn, lang, updates)
	return nil
}

// StopListening ends the current episode; what was heard so far is sent.
func (o *Orchestrator) StopListening() {
	o.mu.Lock()
	listening := o.state == voice.Listening
	o.mu.Unlock()
	if listening {
		o.capture.Stop()
	}
}

// SendText runs a typed turn and returns the assistant message once the
// answer is stored. Playback, when enabled, continues in the background.
func (o *Orchestrator) SendText(ctx context.Context, text string) (chat.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return chat.Message{}, chatsvc.ErrEmptyMessage
	}
	if err := o.admit(ctx); err != nil {
		return chat.Message{}, err
	}

	o.mu.Lock()
	if o.state.Active() {
		o.rejectBusyLocked()
		o.mu.Unlock()
		return chat.Message{}, voice.ErrTurnInProgress
	}
	o.turn++
	turn := o.turn
	lang := o.session.Language()
	history, err := o.beginLocked(text, lang)
	if err != nil {
		o.failLocked(err)
		o.mu.Unlock()
		return chat.Message{}, err
	}
	o.mu.Unlock()

	return o.process(turn, history, text, lang)
}

// Replay speaks a stored assistant message again.
func (o *Orchestrator) Replay(messageID string) error {
	var target *chat.Message
	for _, msg := range o.session.Messages() {
		if msg.ID == messageID && msg.Sender == chat.SenderAssistant {
			msg := msg
			target = &msg
			break
		}
	}
	if target == nil {
		return ErrMessageNotFound
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.Active() {
		o.rejectBusyLocked()
		return voice.ErrTurnInProgress
	}
	o.turn++
	return o.speakLocked(o.turn, target.Content, target.Language)
}

// Cancel abandons the current turn from any state. Capture and output are
// stopped; an answer still in flight is discarded when it arrives.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cancelLocked()
}

func (o *Orchestrator) cancelLocked() {
	o.turn++
	o.endListenLocked()
	o.capture.Stop()
	o.output.Stop()
	o.setStateLocked(voice.Idle)
}

// Reset cancels the current turn and starts the conversation over. The
// server-side count of the quota key is cleared along with the session's.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	o.cancelLocked()
	o.session.Reset()
	o.mu.Unlock()

	if o.quota != nil {
		if err := o.quota.Reset(o.ctx, o.quotaKey); err != nil {
			o.logger.Warn("quota reset failed", zap.Error(err))
		}
	}
}

// SetLanguage switches the session language. A running episode keeps its
// locale; the change applies from the next turn.
func (o *Orchestrator) SetLanguage(lang chat.Language) error {
	return o.session.SetLanguage(lang)
}

// SetVolume stores the volume on the session and applies it to later utterances.
func (o *Orchestrator) SetVolume(v int) {
	o.session.SetVolume(v)
	o.output.SetVolume(o.session.Volume())
}

// SetAutoPlay toggles speaking answers after a turn.
func (o *Orchestrator) SetAutoPlay(enabled bool) {
	o.session.SetAutoPlay(enabled)
}

// Close cancels the current turn and stops event delivery after the queue drains.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.cancelLocked()
	o.mu.Unlock()

	o.cancel()
	<-o.done
}

// admit checks the preconditions of a new turn without touching capture or
// output. Rejections are reported through a notification.
func (o *Orchestrator) admit(ctx context.Context) error {
	o.mu.Lock()
	if o.state.Active() {
		o.rejectBusyLocked()
		o.mu.Unlock()
		return voice.ErrTurnInProgress
	}
	if o.session.LimitReached() {
		o.rejectLocked(voice.ErrRateLimitExceeded)
		o.mu.Unlock()
		return voice.ErrRateLimitExceeded
	}
	o.mu.Unlock()

	if o.quota == nil {
		return nil
	}
	snap := o.session.Snapshot()
	if snap.Premium {
		return nil
	}
	used, err := o.quota.Count(ctx, o.quotaKey)
	if err != nil {
		o.logger.Warn("quota lookup failed", zap.Error(err))
		return nil
	}
	if used >= snap.DailyLimit {
		o.mu.Lock()
		o.rejectLocked(voice.ErrRateLimitExceeded)
		o.mu.Unlock()
		return voice.ErrRateLimitExceeded
	}
	return nil
}

func (o *Orchestrator) listen(turn uint64, lang chat.Language, updates <-chan speech.TranscriptUpdate) {
	for u := range updates {
		u := u
		switch {
		case u.Err != nil:
			o.mu.Lock()
			if o.turn == turn && o.state == voice.Listening {
				o.logger.Info("listening failed", zap.Uint64("turn", turn), zap.Error(u.Err))
				o.endListenLocked()
				o.failLocked(u.Err)
			}
			o.mu.Unlock()
		case u.Final:
			o.finishListening(turn, lang, u)
		default:
			o.mu.Lock()
			if o.turn == turn && o.state == voice.Listening {
				o.emitLocked(Event{Type: EventTranscript, Transcript: &u})
			}
			o.mu.Unlock()
		}
	}
}

func (o *Orchestrator) finishListening(turn uint64, lang chat.Language, u speech.TranscriptUpdate) {
	o.mu.Lock()
	if o.turn != turn || o.state != voice.Listening {
		o.mu.Unlock()
		return
	}
	o.endListenLocked()
	o.emitLocked(Event{Type: EventTranscript, Transcript: &u})

	text := strings.TrimSpace(u.Text)
	if text == "" {
		o.setStateLocked(voice.Idle)
		o.mu.Unlock()
		return
	}
	history, err := o.beginLocked(text, lang)
	if err != nil {
		o.failLocked(err)
		o.mu.Unlock()
		return
	}
	o.mu.Unlock()

	_, _ = o.process(turn, history, text, lang)
}

// beginLocked stores the user message and enters Processing. It returns the
// history that precedes the message.
func (o *Orchestrator) beginLocked(text string, lang chat.Language) ([]chat.Message, error) {
	history := o.session.Messages()
	msg, err := o.session.AppendMessage(chat.Message{
		Content:  text,
		Sender:   chat.SenderUser,
		Language: lang,
	})
	if err != nil {
		return nil, err
	}
	o.emitLocked(Event{Type: EventMessage, Message: &msg})
	o.setStateLocked(voice.Processing)
	return history, nil
}

func (o *Orchestrator) process(turn uint64, history []chat.Message, text string, lang chat.Language) (chat.Message, error) {
	resp, err := o.ask(turn, history, text, lang)

	o.mu.Lock()
	if o.turn != turn {
		o.mu.Unlock()
		o.logger.Info("discarding answer of superseded turn", zap.Uint64("turn", turn))
		return chat.Message{}, ErrTurnSuperseded
	}
	if err != nil {
		o.logger.Warn("turn failed", zap.Uint64("turn", turn), zap.Error(err))
		o.failLocked(err)
		o.mu.Unlock()
		return chat.Message{}, err
	}

	msg, err := o.session.AppendMessage(chat.Message{
		Content:           resp.Answer,
		Sender:            chat.SenderAssistant,
		Language:          lang,
		FollowUpQuestions: resp.FollowUpQuestions,
		Explanation:       resp.Explanation,
	})
	if err != nil {
		o.failLocked(err)
		o.mu.Unlock()
		return chat.Message{}, err
	}
	if err := o.session.RecordQuery(); err != nil {
		o.logger.Warn("query not counted", zap.Error(err))
	}
	o.emitLocked(Event{Type: EventMessage, Message: &msg})

	if o.session.AutoPlay() {
		_ = o.speakLocked(turn, msg.Content, lang)
	} else {
		o.setStateLocked(voice.Idle)
	}
	o.mu.Unlock()

	if o.quota != nil {
		if _, err := o.quota.Increment(o.ctx, o.quotaKey); err != nil {
			o.logger.Warn("quota increment failed", zap.Error(err))
		}
	}
	return msg, nil
}

// ask sends the turn, retrying transient failures up to the attempt budget.
// A turn that is no longer current is not retried.
func (o *Orchestrator) ask(turn uint64, history []chat.Message, text string, lang chat.Language) (*tutor.Response, error) {
	var resp *tutor.Response
	backoff := retry.WithMaxRetries(uint64(o.attempts-1), retry.NewExponential(o.backoff))

	attempt := 0
	err := retry.Do(o.ctx, backoff, func(ctx context.Context) error {
		if !o.current(turn) {
			return ErrTurnSuperseded
		}
		attempt++
		r, err := o.tutor.SendTurn(ctx, history, text, lang)
		if err != nil {
			if voice.Retryable(err) && attempt < o.attempts {
				o.logger.Info("retrying tutor request", zap.Int("attempt", attempt), zap.Error(err))
				return retry.RetryableError(err)
			}
			return err
		}
		resp = r
		return nil
	})
	return resp, err
}

func (o *Orchestrator) speakLocked(turn uint64, text string, lang chat.Language) error {
	p, err := o.output.Speak(o.ctx, text, lang)
	if err != nil {
		o.logger.Warn("speak failed", zap.Uint64("turn", turn), zap.Error(err))
		o.failLocked(err)
		return err
	}
	o.setStateLocked(voice.Speaking)
	go o.awaitPlayback(turn, p)
	return nil
}

func (o *Orchestrator) awaitPlayback(turn uint64, p *speechsvc.Playback) {
	<-p.Done()
	err := p.Err()

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.turn != turn || o.state != voice.Speaking {
		return
	}
	if err != nil && !errors.Is(err, speechsvc.ErrPlaybackCancelled) {
		o.failLocked(err)
		return
	}
	o.setStateLocked(voice.Idle)
}

func (o *Orchestrator) current(turn uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.turn == turn
}

func (o *Orchestrator) endListenLocked() {
	if o.stopListen != nil {
		o.stopListen()
		o.stopListen = nil
	}
}

// failLocked surfaces err once and passes through Error back to Idle.
func (o *Orchestrator) failLocked(err error) {
	o.setStateLocked(voice.Error)
	n := NotificationFor(err, o.session.Language())
	o.emitLocked(Event{Type: EventNotification, Notification: &n})
	o.setStateLocked(voice.Idle)
}

func (o *Orchestrator) rejectLocked(err error) {
	n := NotificationFor(err, o.session.Language())
	o.emitLocked(Event{Type: EventNotification, Notification: &n})
}

func (o *Orchestrator) rejectBusyLocked() {
	o.rejectLocked(voice.ErrTurnInProgress)
}

func (o *Orchestrator) setStateLocked(s voice.State) {
	if o.state == s {
		return
	}
	o.state = s
	o.emitLocked(Event{Type: EventState, State: s})
}

func (o *Orchestrator) emitLocked(evt Event) {
	evt.Turn = o.turn
	if evt.Type != EventState {
		evt.State = o.state
	}
	o.push(queued{evt: evt})
}

// Enqueue runs fn on the event goroutine once every event emitted before it
// has been delivered. Engine commands go through it so a client receives them
// in order with the events. After Close, fn runs immediately.
func (o *Orchestrator) Enqueue(fn func()) {
	select {
	case <-o.done:
		fn()
	default:
		o.push(queued{run: fn})
	}
}

func (o *Orchestrator) push(item queued) {
	o.qmu.Lock()
	o.queue = append(o.queue, item)
	o.qmu.Unlock()
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

func (o *Orchestrator) dispatch() {
	defer close(o.done)
	for {
		select {
		case <-o.wake:
			o.drain()
		case <-o.ctx.Done():
			o.drain()
			return
		}
	}
}

func (o *Orchestrator) drain() {
	for {
		o.qmu.Lock()
		batch := o.queue
		o.queue = nil
		o.qmu.Unlock()
		if len(batch) == 0 {
			return
		}

		listeners := o.snapshotListeners()
		for _, item := range batch {
			if item.run != nil {
				item.run()
				continue
			}
			for _, l := range listeners {
				l(item.evt)
			}
		}
	}
}

func (o *Orchestrator) snapshotListeners() []Listener {
	o.mu.Lock()
	defer o.mu.Unlock()
	ids := make([]uint64, 0, len(o.listeners))
	for id := range o.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	listeners := make([]Listener, 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, o.listeners[id])
	}
	return listeners
}
