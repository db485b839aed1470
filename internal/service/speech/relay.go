package speech

import (
	"errors"
	"sync"
)

// ErrNoClient is returned by a Relay with no attached client.
var ErrNoClient = errors.New("no speech client connected")

// Relay is a Transport whose destination can change as clients connect and
// disconnect. Remote engines built on a detached relay report unavailable.
type Relay struct {
	mu       sync.RWMutex
	target   Transport
	sequence func(func())
	onError  func(msgType string, err error)
}

// NewRelay returns a detached relay.
func NewRelay() *Relay {
	return &Relay{}
}

// Sequence routes later commands through seq instead of writing them at once.
// seq must run the functions it receives in order; the client then sees each
// command after everything seq was given before it. Write failures go to onError.
func (r *Relay) Sequence(seq func(func()), onError func(msgType string, err error)) {
	r.mu.Lock()
	r.sequence = seq
	r.onError = onError
	r.mu.Unlock()
}

// Attach routes later commands to t, replacing any previous client.
func (r *Relay) Attach(t Transport) {
	r.mu.Lock()
	r.target = t
	r.mu.Unlock()
}

// Detach removes t if it is still the current client.
func (r *Relay) Detach(t Transport) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.target != t {
		return false
	}
	r.target = nil
	return true
}

// Connected reports whether a client is attached.
func (r *Relay) Connected() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.target != nil
}

// Send fails at once only when no client is attached. A sequenced command is
// bound to the client attached at the time of the call.
func (r *Relay) Send(msgType string, data interface{}) error {
	r.mu.RLock()
	target, seq, onError := r.target, r.sequence, r.onError
	r.mu.RUnlock()
	if target == nil {
		return ErrNoClient
	}
	if seq == nil {
		return target.Send(msgType, data)
	}
	seq(func() {
		if err := target.Send(msgType, data); err != nil && onError != nil {
			onError(msgType, err)
		}
	})
	return nil
}
