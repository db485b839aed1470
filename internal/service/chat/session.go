package chat

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nukhba-ai/tutor/backend/internal/model/chat"
	"github.com/nukhba-ai/tutor/backend/internal/model/speech"
	"github.com/nukhba-ai/tutor/backend/internal/model/voice"
)

// DefaultDailyLimit is the number of turns a free session may run per day.
const DefaultDailyLimit = 10

var (
	ErrEmptyMessage     = errors.New("message content is required")
	ErrInvalidSender    = errors.New("message sender must be user or assistant")
	ErrDuplicateMessage = errors.New("message id already present in session")
	ErrInvalidLanguage  = errors.New("unsupported session language")
)

// Options configures a new session. Zero values select the defaults.
type Options struct {
	Language   chat.Language
	DailyLimit int
	Premium    bool
}

// Session is the owned conversation state of one tutor view: the ordered
// message log, the active language and the daily query counter.
type Session struct {
	mu sync.RWMutex

	id         string
	language   chat.Language
	messages   []chat.Message
	ids        map[string]struct{}
	greetingID string
	queryCount int
	dailyLimit int
	premium    bool
	autoPlay   bool
	volume     int
	createdAt  time.Time
}

// NewSession builds a session holding a single greeting in the requested language.
func NewSession(opts Options) (*Session, error) {
	lang := opts.Language
	if lang == "" {
		lang = chat.DefaultLanguage
	}
	if !lang.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidLanguage, lang)
	}

	limit := opts.DailyLimit
	if limit <= 0 {
		limit = DefaultDailyLimit
	}

	s := &Session{
		id:         newID(),
		language:   lang,
		dailyLimit: limit,
		premium:    opts.Premium,
		autoPlay:   true,
		volume:     speech.DefaultVolume,
		createdAt:  time.Now().UTC(),
	}
	s.resetLocked()
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Language returns the active language.
func (s *Session) Language() chat.Language {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.language
}

// AutoPlay reports whether assistant answers are spoken automatically.
func (s *Session) AutoPlay() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.autoPlay
}

// SetAutoPlay toggles automatic playback of assistant answers.
func (s *Session) SetAutoPlay(enabled bool) {
	s.mu.Lock()
	s.autoPlay = enabled
	s.mu.Unlock()
}

// Volume returns the session volume (0-100).
func (s *Session) Volume() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.volume
}

// SetVolume stores a clamped session volume.
func (s *Session) SetVolume(v int) {
	s.mu.Lock()
	s.volume = speech.ClampVolume(v)
	s.mu.Unlock()
}

// SetPremium marks the session as exempt from the daily limit.
func (s *Session) SetPremium(premium bool) {
	s.mu.Lock()
	s.premium = premium
	s.mu.Unlock()
}

// AppendMessage stores msg at the end of the log. Missing ID, timestamp and
// language are filled in; the stored copy is returned.
func (s *Session) AppendMessage(msg chat.Message) (chat.Message, error) {
	if strings.TrimSpace(msg.Content) == "" {
		return chat.Message{}, ErrEmptyMessage
	}
	if msg.Sender != chat.SenderUser && msg.Sender != chat.SenderAssistant {
		return chat.Message{}, ErrInvalidSender
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.ID == "" {
		msg.ID = newID()
	}
	if _, dup := s.ids[msg.ID]; dup {
		return chat.Message{}, fmt.Errorf("%w: %s", ErrDuplicateMessage, msg.ID)
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	if msg.Language == "" {
		msg.Language = s.language
	}
	msg.FollowUpQuestions = cloneStrings(msg.FollowUpQuestions)

	s.messages = append(s.messages, msg)
	s.ids[msg.ID] = struct{}{}
	return msg, nil
}

// Reset truncates the log to a fresh greeting and zeroes the query count.
func (s *Session) Reset() {
	s.mu.Lock()
	s.resetLocked()
	s.mu.Unlock()
}

func (s *Session) resetLocked() {
	greeting := s.greetingLocked()
	s.messages = []chat.Message{greeting}
	s.ids = map[string]struct{}{greeting.ID: {}}
	s.greetingID = greeting.ID
	s.queryCount = 0
}

func (s *Session) greetingLocked() chat.Message {
	return chat.Message{
		ID:        newID(),
		Content:   s.language.Greeting(),
		Sender:    chat.SenderAssistant,
		Language:  s.language,
		CreatedAt: time.Now().UTC(),
	}
}

// SetLanguage switches the active language. When the log still holds only the
// initial greeting, the greeting is regenerated; history is never translated.
func (s *Session) SetLanguage(lang chat.Language) error {
	if !lang.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidLanguage, lang)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if lang == s.language {
		return nil
	}
	s.language = lang

	if len(s.messages) == 1 && s.messages[0].ID == s.greetingID {
		delete(s.ids, s.greetingID)
		greeting := s.greetingLocked()
		s.messages[0] = greeting
		s.ids[greeting.ID] = struct{}{}
		s.greetingID = greeting.ID
	}
	return nil
}

// LimitReached reports whether a non-premium session has used its daily turns.
func (s *Session) LimitReached() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.limitReachedLocked()
}

func (s *Session) limitReachedLocked() bool {
	return !s.premium && s.queryCount >= s.dailyLimit
}

// RecordQuery counts one completed turn. It refuses to go past the daily
// limit, so the count of a non-premium session never exceeds it.
func (s *Session) RecordQuery() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.limitReachedLocked() {
		return voice.ErrRateLimitExceeded
	}
	s.queryCount++
	return nil
}

// Messages returns a copy of the log in insertion order.
func (s *Session) Messages() []chat.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneMessages(s.messages)
}

// Snapshot returns a read-only copy of the whole session.
func (s *Session) Snapshot() chat.SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return chat.SessionSnapshot{
		ID:         s.id,
		Language:   s.language,
		Messages:   cloneMessages(s.messages),
		QueryCount: s.queryCount,
		DailyLimit: s.dailyLimit,
		Premium:    s.premium,
		AutoPlay:   s.autoPlay,
		Volume:     s.volume,
		CreatedAt:  s.createdAt,
	}
}

func cloneMessages(in []chat.Message) []chat.Message {
	out := make([]chat.Message, len(in))
	copy(out, in)
	for i := range out {
		out[i].FollowUpQuestions = cloneStrings(out[i].FollowUpQuestions)
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// newID returns a time-ordered UUIDv7, falling back to a random v4.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
