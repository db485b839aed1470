// Package aitest provides a scripted ai.Provider for tests.
package aitest

import (
	"context"
	"errors"
	"sync"

	"github.com/nukhba-ai/tutor/backend/internal/service/ai"
)

// Reply is one scripted provider outcome.
type Reply struct {
	Text string
	Err  error
	// Gate, when set, holds the call until the channel is closed.
	Gate <-chan struct{}
}

// Provider returns scripted replies in order and records every request.
type Provider struct {
	mu       sync.Mutex
	replies  []Reply
	requests []ai.CompletionRequest
	started  chan struct{}
}

// NewProvider scripts the given replies. Calls beyond the script fail.
func NewProvider(replies ...Reply) *Provider {
	return &Provider{replies: replies, started: make(chan struct{}, 64)}
}

// Push appends replies to the script.
func (p *Provider) Push(replies ...Reply) {
	p.mu.Lock()
	p.replies = append(p.replies, replies...)
	p.mu.Unlock()
}

func (p *Provider) Name() string { return "scripted" }

func (p *Provider) Complete(ctx context.Context, req ai.CompletionRequest) (string, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	if len(p.replies) == 0 {
		p.mu.Unlock()
		p.started <- struct{}{}
		return "", errors.New("aitest: no scripted reply")
	}
	reply := p.replies[0]
	p.replies = p.replies[1:]
	p.mu.Unlock()
	p.started <- struct{}{}

	if reply.Gate != nil {
		select {
		case <-reply.Gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return reply.Text, reply.Err
}

// Started receives one value per Complete call, sent once the request is recorded.
func (p *Provider) Started() <-chan struct{} {
	return p.started
}

// Calls returns how many requests were made.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

// Requests returns the recorded requests.
func (p *Provider) Requests() []ai.CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ai.CompletionRequest(nil), p.requests...)
}
