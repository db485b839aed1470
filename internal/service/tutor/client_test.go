package tutor_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nukhba-ai/tutor/backend/internal/model/chat"
	"github.com/nukhba-ai/tutor/backend/internal/model/voice"
	"github.com/nukhba-ai/tutor/backend/internal/service/ai"
	"github.com/nukhba-ai/tutor/backend/internal/service/ai/aitest"
	"github.com/nukhba-ai/tutor/backend/internal/service/tutor"
)

func history(n int) []chat.Message {
	msgs := make([]chat.Message, 0, n)
	for i := 0; i < n; i++ {
		sender := chat.SenderUser
		if i%2 == 1 {
			sender = chat.SenderAssistant
		}
		msgs = append(msgs, chat.Message{Content: fmt.Sprintf("m%d", i), Sender: sender})
	}
	return msgs
}

func TestSendTurnRoundTrip(t *testing.T) {
	provider := aitest.NewProvider(aitest.Reply{Text: `{"answer":"X","followUpQuestions":["A","B"]}`})
	client := tutor.NewClient(provider, tutor.Options{}, zap.NewNop())

	resp, err := client.SendTurn(context.Background(), history(2), "What is photosynthesis?", chat.Arabic)
	require.NoError(t, err)
	assert.Equal(t, "X", resp.Answer)
	assert.Equal(t, []string{"A", "B"}, resp.FollowUpQuestions)

	reqs := provider.Requests()
	require.Len(t, reqs, 1)
	req := reqs[0]
	assert.Equal(t, tutor.DefaultPrompt(chat.Arabic), req.System)
	assert.True(t, req.JSON)
	assert.Equal(t, 1000, req.MaxTokens)
	assert.InDelta(t, 0.7, req.Temperature, 1e-9)
	assert.Equal(t, []ai.PromptMessage{
		{Role: ai.RoleUser, Content: "m0"},
		{Role: ai.RoleAssistant, Content: "m1"},
		{Role: ai.RoleUser, Content: "What is photosynthesis?"},
	}, req.Messages)
}

func TestSendTurnFallsBackToRawText(t *testing.T) {
	provider := aitest.NewProvider(aitest.Reply{Text: "Hello student"})
	client := tutor.NewClient(provider, tutor.Options{}, zap.NewNop())

	resp, err := client.SendTurn(context.Background(), nil, "hi", chat.English)
	require.NoError(t, err)
	assert.Equal(t, &tutor.Response{Answer: "Hello student", FollowUpQuestions: []string{}}, resp)
}

func TestSendTurnTrimsHistoryWindow(t *testing.T) {
	provider := aitest.NewProvider(aitest.Reply{Text: `{"answer":"ok"}`})
	client := tutor.NewClient(provider, tutor.Options{HistoryLimit: 3}, zap.NewNop())

	_, err := client.SendTurn(context.Background(), history(10), "latest", chat.English)
	require.NoError(t, err)

	msgs := provider.Requests()[0].Messages
	require.Len(t, msgs, 4)
	assert.Equal(t, "m7", msgs[0].Content)
	assert.Equal(t, "latest", msgs[3].Content)
}

func TestSendTurnPropagatesFailures(t *testing.T) {
	provider := aitest.NewProvider(
		aitest.Reply{Err: &voice.RemoteServiceError{Status: http.StatusInternalServerError, Message: "boom"}},
		aitest.Reply{Err: &voice.NetworkError{Op: "dial", Err: errors.New("refused")}},
		aitest.Reply{Err: ai.ErrEmptyCompletion},
	)
	client := tutor.NewClient(provider, tutor.Options{}, zap.NewNop())
	ctx := context.Background()

	_, err := client.SendTurn(ctx, nil, "q", chat.English)
	var remoteErr *voice.RemoteServiceError
	require.True(t, errors.As(err, &remoteErr))
	assert.Equal(t, http.StatusInternalServerError, remoteErr.Status)
	assert.Equal(t, "boom", remoteErr.Message)

	_, err = client.SendTurn(ctx, nil, "q", chat.English)
	var netErr *voice.NetworkError
	assert.True(t, errors.As(err, &netErr))

	_, err = client.SendTurn(ctx, nil, "q", chat.English)
	require.True(t, errors.As(err, &remoteErr))
	assert.Equal(t, http.StatusBadGateway, remoteErr.Status)

	assert.Equal(t, 3, provider.Calls(), "no retries inside the client")
}

func TestSendTurnBlankCompletion(t *testing.T) {
	provider := aitest.NewProvider(aitest.Reply{Text: " \n\t "}, aitest.Reply{Text: "  plain answer\n"})
	client := tutor.NewClient(provider, tutor.Options{}, zap.NewNop())

	_, err := client.SendTurn(context.Background(), nil, "q", chat.English)
	var remoteErr *voice.RemoteServiceError
	require.True(t, errors.As(err, &remoteErr))
	assert.Equal(t, "No response from AI", remoteErr.Message)

	resp, err := client.SendTurn(context.Background(), nil, "q", chat.English)
	require.NoError(t, err)
	assert.Equal(t, "  plain answer\n", resp.Answer, "unstructured text is kept as sent")
}

func TestSendTurnRejectsEmptyQuestion(t *testing.T) {
	provider := aitest.NewProvider()
	client := tutor.NewClient(provider, tutor.Options{}, zap.NewNop())

	_, err := client.SendTurn(context.Background(), nil, "  ", chat.English)
	assert.ErrorIs(t, err, tutor.ErrEmptyQuestion)
	assert.Zero(t, provider.Calls())
}

func TestSendTurnAppliesTimeout(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)
	provider := aitest.NewProvider(aitest.Reply{Text: "late", Gate: gate})
	client := tutor.NewClient(provider, tutor.Options{Timeout: 20 * time.Millisecond}, zap.NewNop())

	_, err := client.SendTurn(context.Background(), nil, "q", chat.English)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
