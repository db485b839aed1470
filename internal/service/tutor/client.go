package tutor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nukhba-ai/tutor/backend/internal/model/chat"
	"github.com/nukhba-ai/tutor/backend/internal/model/voice"
	"github.com/nukhba-ai/tutor/backend/internal/service/ai"
)

// Request defaults.
const (
	DefaultHistoryLimit = 20
	DefaultTemperature  = 0.7
	DefaultMaxTokens    = 1000
)

var ErrEmptyQuestion = errors.New("user message is empty")

// Options tunes a Client. Zero values select the defaults.
type Options struct {
	HistoryLimit int
	Temperature  float64
	MaxTokens    int
	Timeout      time.Duration
	Catalog      *PromptCatalog
}

// Client formats a conversation for the provider and decodes the tutor answer.
// It never retries.
type Client struct {
	provider ai.Provider
	opts     Options
	logger   *zap.Logger
}

// NewClient builds a tutor client over provider.
func NewClient(provider ai.Provider, opts Options, logger *zap.Logger) *Client {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if opts.Temperature == 0 {
		opts.Temperature = DefaultTemperature
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if opts.Catalog == nil {
		opts.Catalog = NewPromptCatalog(logger)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{provider: provider, opts: opts, logger: logger}
}

// SendTurn asks the tutor about userMessage given the earlier history (oldest
// first). A payload that is not the expected JSON shape is returned as a
// plain-text answer, never as an error.
func (c *Client) SendTurn(ctx context.Context, history []chat.Message, userMessage string, lang chat.Language) (*Response, error) {
	userMessage = strings.TrimSpace(userMessage)
	if userMessage == "" {
		return nil, ErrEmptyQuestion
	}
	if !lang.Valid() {
		lang = chat.DefaultLanguage
	}

	req := ai.CompletionRequest{
		System:      c.opts.Catalog.SystemPrompt(lang),
		Messages:    c.buildMessages(history, userMessage),
		MaxTokens:   c.opts.MaxTokens,
		Temperature: c.opts.Temperature,
		JSON:        true,
	}

	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	started := time.Now()
	raw, err := c.provider.Complete(ctx, req)
	if err == nil && strings.TrimSpace(raw) == "" {
		err = ai.ErrEmptyCompletion
	}
	if err != nil {
		if errors.Is(err, ai.ErrEmptyCompletion) {
			return nil, &voice.RemoteServiceError{Status: http.StatusBadGateway, Message: "No response from AI"}
		}
		c.logger.Warn("tutor request failed",
			zap.String("provider", c.provider.Name()),
			zap.Duration("elapsed", time.Since(started)),
			zap.Error(err))
		return nil, fmt.Errorf("tutor request: %w", err)
	}

	resp, ok := ParseResponse(raw)
	if !ok {
		c.logger.Warn("tutor answer is not structured, using raw text",
			zap.String("provider", c.provider.Name()),
			zap.Error(voice.ErrMalformedResponse))
	}
	c.logger.Debug("tutor answered",
		zap.String("provider", c.provider.Name()),
		zap.String("language", string(lang)),
		zap.Int("follow_ups", len(resp.FollowUpQuestions)),
		zap.Duration("elapsed", time.Since(started)))
	return &resp, nil
}

func (c *Client) buildMessages(history []chat.Message, userMessage string) []ai.PromptMessage {
	start := 0
	if len(history) > c.opts.HistoryLimit {
		start = len(history) - c.opts.HistoryLimit
	}

	messages := make([]ai.PromptMessage, 0, len(history)-start+1)
	for _, msg := range history[start:] {
		if strings.TrimSpace(msg.Content) == "" {
			continue
		}
		role := ai.RoleAssistant
		if msg.Sender == chat.SenderUser {
			role = ai.RoleUser
		}
		messages = append(messages, ai.PromptMessage{Role: role, Content: msg.Content})
	}
	return append(messages, ai.PromptMessage{Role: ai.RoleUser, Content: userMessage})
}
