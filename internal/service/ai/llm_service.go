package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

// ArkProvider runs completions through an eino chain (chat template + chat
// model), normally backed by the Volcengine Ark model.
type ArkProvider struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewArkProvider compiles the prompt chain around chatModel.
func NewArkProvider(ctx context.Context, chatModel model.BaseChatModel) (*ArkProvider, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chat model is required")
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &ArkProvider{chain: runnable}, nil
}

// Name returns "ark".
func (p *ArkProvider) Name() string {
	return "ark"
}

// Complete invokes the chain once. The last request message becomes the
// query, earlier ones the history placeholder.
func (p *ArkProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	opts := []model.Option{model.WithTemperature(float32(req.Temperature))}
	if req.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(req.MaxTokens))
	}

	response, err := p.chain.Invoke(ctx, buildChainInput(req), compose.WithChatModelOption(opts...))
	if err != nil {
		if isTransportError(err) {
			return "", networkError("ark chat completion", err)
		}
		return "", remoteError(0, err.Error())
	}
	if response == nil || strings.TrimSpace(response.Content) == "" {
		return "", ErrEmptyCompletion
	}
	return response.Content, nil
}

func buildChainInput(req CompletionRequest) map[string]any {
	var query string
	history := req.Messages
	if n := len(history); n > 0 {
		query = history[n-1].Content
		history = history[:n-1]
	}

	return map[string]any{
		"system":  req.System,
		"history": buildHistoryMessages(history),
		"query":   query,
	}
}

func buildHistoryMessages(messages []PromptMessage) []*schema.Message {
	if len(messages) == 0 {
		return nil
	}

	history := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleUser:
			history = append(history, schema.UserMessage(msg.Content))
		case RoleAssistant:
			history = append(history, schema.AssistantMessage(msg.Content, nil))
		}
	}
	return history
}
