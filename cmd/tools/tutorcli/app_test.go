package main

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nukhba-ai/tutor/backend/internal/config"
	"github.com/nukhba-ai/tutor/backend/internal/model/chat"
	"github.com/nukhba-ai/tutor/backend/internal/service/ai"
	"github.com/nukhba-ai/tutor/backend/internal/service/ai/aitest"
)

// lockedBuffer 允许编排器的后台协程与测试同时写入
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func run(t *testing.T, input string, provider *aitest.Provider, args ...string) (string, string, error) {
	t.Helper()
	out, errOut := &lockedBuffer{}, &lockedBuffer{}
	a := newApp(strings.NewReader(input), out, errOut)
	a.newProvider = func(context.Context) (ai.Provider, *config.Config, error) {
		return provider, nil, nil
	}

	cmd := a.rootCommand()
	cmd.SetArgs(append(args, "--log-level", "error"))
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestAskSpeaksAnswerAndFollowUps(t *testing.T) {
	provider := aitest.NewProvider(aitest.Reply{Text: `{"answer":"Water boils at 100 degrees.","followUpQuestions":["What about at altitude?"]}`})

	out, _, err := run(t, "", provider, "ask", "When", "does", "water", "boil?")
	require.NoError(t, err)

	assert.Contains(t, out, "[en-US] Water boils at 100 degrees.")
	assert.Contains(t, out, "  ? What about at altitude?")
	require.Len(t, provider.Requests(), 1)
	req := provider.Requests()[0]
	assert.Equal(t, "When does water boil?", req.Messages[len(req.Messages)-1].Content)
}

func TestAskQuietPrintsText(t *testing.T) {
	provider := aitest.NewProvider(aitest.Reply{Text: `{"answer":"नमस्ते"}`})

	out, _, err := run(t, "", provider, "ask", "--lang", "hindi", "--quiet", "hello")
	require.NoError(t, err)

	assert.Equal(t, "नमस्ते\n", out)
}

func TestAskRejectsUnknownLanguage(t *testing.T) {
	_, _, err := run(t, "", aitest.NewProvider(), "ask", "--lang", "klingon", "hi")
	assert.Error(t, err)
}

func TestChatTreatsLinesAsSpokenQuestions(t *testing.T) {
	provider := aitest.NewProvider(
		aitest.Reply{Text: `{"answer":"First answer."}`},
		aitest.Reply{Text: `{"answer":"Second answer."}`},
	)

	out, errOut, err := run(t, "first question\n\nsecond question\n", provider, "chat", "--lang", "arabic")
	require.NoError(t, err)

	assert.Contains(t, out, "[ar-SA] First answer.")
	assert.Contains(t, out, "[ar-SA] Second answer.")
	assert.Contains(t, errOut, chat.Arabic.Greeting(), "greeting is shown first")
	assert.Equal(t, 2, provider.Calls(), "the empty line is silence, not a question")
}

func TestChatStopsAtDailyLimit(t *testing.T) {
	provider := aitest.NewProvider(aitest.Reply{Text: `{"answer":"Only one."}`})

	_, errOut, err := run(t, "one\ntwo\nthree\n", provider, "chat", "--daily-limit", "1")
	require.NoError(t, err)

	assert.Equal(t, 1, provider.Calls())
	assert.NotEmpty(t, errOut)
}
