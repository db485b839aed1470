package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nukhba-ai/tutor/backend/internal/model/voice"
)

type fakeChatModel struct {
	input []*schema.Message
	opts  *model.Options
	reply string
	err   error
}

func (f *fakeChatModel) Generate(_ context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.input = input
	f.opts = model.GetCommonOptions(nil, opts...)
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := f.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (f *fakeChatModel) BindTools([]*schema.ToolInfo) error { return nil }

func TestArkProviderBuildsPromptFromHistory(t *testing.T) {
	fake := &fakeChatModel{reply: `{"answer":"Plants make food from light."}`}
	p, err := NewArkProvider(context.Background(), fake)
	require.NoError(t, err)

	out, err := p.Complete(context.Background(), CompletionRequest{
		System: `Answer as JSON: {"answer": "..."}`,
		Messages: []PromptMessage{
			{Role: RoleUser, Content: "hello"},
			{Role: RoleAssistant, Content: "hi there"},
			{Role: RoleUser, Content: "What is photosynthesis?"},
		},
		MaxTokens:   1000,
		Temperature: 0.7,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"answer":"Plants make food from light."}`, out)

	require.Len(t, fake.input, 4)
	assert.Equal(t, schema.System, fake.input[0].Role)
	assert.Equal(t, `Answer as JSON: {"answer": "..."}`, fake.input[0].Content)
	assert.Equal(t, schema.User, fake.input[1].Role)
	assert.Equal(t, schema.Assistant, fake.input[2].Role)
	assert.Equal(t, "What is photosynthesis?", fake.input[3].Content)

	require.NotNil(t, fake.opts.MaxTokens)
	assert.Equal(t, 1000, *fake.opts.MaxTokens)
	require.NotNil(t, fake.opts.Temperature)
	assert.InDelta(t, 0.7, *fake.opts.Temperature, 1e-6)
}

func TestArkProviderErrors(t *testing.T) {
	fake := &fakeChatModel{err: errors.New("model overloaded")}
	p, err := NewArkProvider(context.Background(), fake)
	require.NoError(t, err)

	_, err = p.Complete(context.Background(), CompletionRequest{Messages: []PromptMessage{{Role: RoleUser, Content: "hi"}}})
	var remoteErr *voice.RemoteServiceError
	require.True(t, errors.As(err, &remoteErr))
	assert.Zero(t, remoteErr.Status, "status is unknown")
	assert.False(t, voice.Retryable(err))

	fake.err = context.DeadlineExceeded
	_, err = p.Complete(context.Background(), CompletionRequest{Messages: []PromptMessage{{Role: RoleUser, Content: "hi"}}})
	var netErr *voice.NetworkError
	assert.True(t, errors.As(err, &netErr))

	fake.err = nil
	fake.reply = ""
	_, err = p.Complete(context.Background(), CompletionRequest{Messages: []PromptMessage{{Role: RoleUser, Content: "hi"}}})
	assert.ErrorIs(t, err, ErrEmptyCompletion)

	fake.reply = "  \n\t "
	_, err = p.Complete(context.Background(), CompletionRequest{Messages: []PromptMessage{{Role: RoleUser, Content: "hi"}}})
	assert.ErrorIs(t, err, ErrEmptyCompletion, "whitespace is no completion")
}

func TestNewArkProviderRequiresModel(t *testing.T) {
	_, err := NewArkProvider(context.Background(), nil)
	assert.Error(t, err)
}
