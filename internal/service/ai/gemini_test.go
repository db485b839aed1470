package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nukhba-ai/tutor/backend/internal/model/voice"
)

func TestGeminiProviderComplete(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "models/gemini-2.0-flash:generateContent"), r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"answer\":\"X\"}"}]},"finishReason":"STOP"}]}`)
	}))
	defer srv.Close()

	p, err := NewGeminiProvider(context.Background(), GeminiOptions{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	out, err := p.Complete(context.Background(), CompletionRequest{
		System: "tutor",
		Messages: []PromptMessage{
			{Role: RoleUser, Content: "hi"},
			{Role: RoleAssistant, Content: "hello"},
			{Role: RoleUser, Content: "question"},
		},
		MaxTokens:   1000,
		Temperature: 0.7,
		JSON:        true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"answer":"X"}`, out)

	contents, ok := captured["contents"].([]any)
	require.True(t, ok)
	require.Len(t, contents, 3)
	assert.Equal(t, "model", contents[1].(map[string]any)["role"])

	genCfg, ok := captured["generationConfig"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "application/json", genCfg["responseMimeType"])
	assert.EqualValues(t, 1000, genCfg["maxOutputTokens"])
	assert.NotNil(t, captured["systemInstruction"])
}

func TestGeminiProviderRemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"code":429,"message":"Resource has been exhausted","status":"RESOURCE_EXHAUSTED"}}`)
	}))
	defer srv.Close()

	p, err := NewGeminiProvider(context.Background(), GeminiOptions{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = p.Complete(context.Background(), CompletionRequest{Messages: []PromptMessage{{Role: RoleUser, Content: "hi"}}})
	var remoteErr *voice.RemoteServiceError
	require.True(t, errors.As(err, &remoteErr), "got %v", err)
	assert.Equal(t, http.StatusTooManyRequests, remoteErr.Status)
	assert.True(t, voice.Retryable(err))
}

func TestNewGeminiProviderRequiresKey(t *testing.T) {
	_, err := NewGeminiProvider(context.Background(), GeminiOptions{})
	assert.Error(t, err)
}
