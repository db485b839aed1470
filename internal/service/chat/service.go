package chat

import (
	"context"
	"errors"
	"sync"
)

var ErrSessionNotFound = errors.New("session not found")

// Registry keeps the live sessions of the process in memory.
type Registry struct {
	mu           sync.RWMutex
	sessions     map[string]*Session
	defaultLimit int
}

// NewRegistry bootstraps the in-memory registry. defaultLimit applies to
// sessions created without an explicit daily limit.
func NewRegistry(defaultLimit int) *Registry {
	if defaultLimit <= 0 {
		defaultLimit = DefaultDailyLimit
	}
	return &Registry{
		sessions:     make(map[string]*Session),
		defaultLimit: defaultLimit,
	}
}

// Create provisions a new session and registers it.
func (r *Registry) Create(_ context.Context, opts Options) (*Session, error) {
	if opts.DailyLimit <= 0 {
		opts.DailyLimit = r.defaultLimit
	}

	session, err := NewSession(opts)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.sessions[session.ID()] = session
	r.mu.Unlock()

	return session, nil
}

// Get retrieves a session by identifier.
func (r *Registry) Get(_ context.Context, sessionID string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Delete forgets a session.
func (r *Registry) Delete(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}
	delete(r.sessions, sessionID)
	return nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
