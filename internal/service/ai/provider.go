package ai

import (
	"context"
	"errors"
	"net"

	"github.com/nukhba-ai/tutor/backend/internal/model/voice"
)

// ErrEmptyCompletion is returned when the provider answers without text.
var ErrEmptyCompletion = errors.New("provider returned no completion text")

// Role of a prompt message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// PromptMessage is one conversation entry sent to a provider.
type PromptMessage struct {
	Role    Role
	Content string
}

// CompletionRequest is a provider-neutral chat completion call. The last
// message is the new user turn.
type CompletionRequest struct {
	System      string
	Messages    []PromptMessage
	MaxTokens   int
	Temperature float64
	// JSON asks the provider for a JSON object answer when it supports it.
	JSON bool
}

// Provider issues a single chat completion request. Implementations do not
// retry. Failures are *voice.RemoteServiceError when the service answered and
// *voice.NetworkError when it did not.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// networkError wraps transport failures, including timeouts and cancellation.
func networkError(op string, err error) error {
	return &voice.NetworkError{Op: op, Err: err}
}

func isTransportError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
