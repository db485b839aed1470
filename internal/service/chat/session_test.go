package chat_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	modelchat "github.com/nukhba-ai/tutor/backend/internal/model/chat"
	"github.com/nukhba-ai/tutor/backend/internal/model/voice"
	chat "github.com/nukhba-ai/tutor/backend/internal/service/chat"
)

func newSession(t *testing.T, opts chat.Options) *chat.Session {
	t.Helper()
	s, err := chat.NewSession(opts)
	require.NoError(t, err)
	return s
}

func TestNewSessionDefaults(t *testing.T) {
	s := newSession(t, chat.Options{})
	snap := s.Snapshot()

	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, modelchat.English, snap.Language)
	assert.Equal(t, chat.DefaultDailyLimit, snap.DailyLimit)
	assert.True(t, snap.AutoPlay)
	assert.Equal(t, 70, snap.Volume)
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, modelchat.English.Greeting(), snap.Messages[0].Content)
	assert.Equal(t, modelchat.SenderAssistant, snap.Messages[0].Sender)
}

func TestAppendMessageKeepsInsertionOrderAndUniqueIDs(t *testing.T) {
	s := newSession(t, chat.Options{})

	first, err := s.AppendMessage(modelchat.Message{Content: "one", Sender: modelchat.SenderUser})
	require.NoError(t, err)
	second, err := s.AppendMessage(modelchat.Message{Content: "two", Sender: modelchat.SenderAssistant})
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, modelchat.English, first.Language)
	assert.False(t, first.CreatedAt.IsZero())

	msgs := s.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "one", msgs[1].Content)
	assert.Equal(t, "two", msgs[2].Content)

	_, err = s.AppendMessage(modelchat.Message{ID: first.ID, Content: "again", Sender: modelchat.SenderUser})
	assert.ErrorIs(t, err, chat.ErrDuplicateMessage)
}

func TestAppendMessageValidates(t *testing.T) {
	s := newSession(t, chat.Options{})

	_, err := s.AppendMessage(modelchat.Message{Content: "  ", Sender: modelchat.SenderUser})
	assert.ErrorIs(t, err, chat.ErrEmptyMessage)

	_, err = s.AppendMessage(modelchat.Message{Content: "hi", Sender: "system"})
	assert.ErrorIs(t, err, chat.ErrInvalidSender)
}

func TestSnapshotIsACopy(t *testing.T) {
	s := newSession(t, chat.Options{})
	_, err := s.AppendMessage(modelchat.Message{
		Content:           "answer",
		Sender:            modelchat.SenderAssistant,
		FollowUpQuestions: []string{"Q1"},
	})
	require.NoError(t, err)

	snap := s.Snapshot()
	snap.Messages[1].FollowUpQuestions[0] = "changed"
	snap.Messages = snap.Messages[:1]

	again := s.Snapshot()
	require.Len(t, again.Messages, 2)
	assert.Equal(t, "Q1", again.Messages[1].FollowUpQuestions[0])
}

func TestResetRestoresGreetingAndZeroesCount(t *testing.T) {
	s := newSession(t, chat.Options{Language: modelchat.Arabic})
	_, err := s.AppendMessage(modelchat.Message{Content: "hello", Sender: modelchat.SenderUser})
	require.NoError(t, err)
	require.NoError(t, s.RecordQuery())

	s.Reset()

	snap := s.Snapshot()
	assert.Zero(t, snap.QueryCount)
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, modelchat.Arabic.Greeting(), snap.Messages[0].Content)
}

func TestSetLanguageRegeneratesLoneGreeting(t *testing.T) {
	s := newSession(t, chat.Options{})
	before := s.Messages()[0]

	require.NoError(t, s.SetLanguage(modelchat.Hindi))

	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, modelchat.Hindi.Greeting(), msgs[0].Content)
	assert.Equal(t, modelchat.Hindi, msgs[0].Language)
	assert.NotEqual(t, before.ID, msgs[0].ID)
}

func TestSetLanguageDoesNotTranslateHistory(t *testing.T) {
	s := newSession(t, chat.Options{})
	_, err := s.AppendMessage(modelchat.Message{Content: "hello", Sender: modelchat.SenderUser})
	require.NoError(t, err)

	require.NoError(t, s.SetLanguage(modelchat.Arabic))

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, modelchat.English.Greeting(), msgs[0].Content)
	assert.Equal(t, modelchat.Arabic, s.Language())

	assert.ErrorIs(t, s.SetLanguage("french"), chat.ErrInvalidLanguage)
}

func TestRecordQueryNeverExceedsLimit(t *testing.T) {
	s := newSession(t, chat.Options{DailyLimit: 2})

	require.NoError(t, s.RecordQuery())
	assert.False(t, s.LimitReached())
	require.NoError(t, s.RecordQuery())
	assert.True(t, s.LimitReached())

	assert.ErrorIs(t, s.RecordQuery(), voice.ErrRateLimitExceeded)
	assert.Equal(t, 2, s.Snapshot().QueryCount)
	assert.Zero(t, s.Snapshot().QueriesLeft())
}

func TestPremiumIgnoresLimit(t *testing.T) {
	s := newSession(t, chat.Options{DailyLimit: 1, Premium: true})

	for i := 0; i < 3; i++ {
		require.NoError(t, s.RecordQuery())
	}
	assert.False(t, s.LimitReached())
	assert.Equal(t, -1, s.Snapshot().QueriesLeft())
}

func TestSetVolumeClamps(t *testing.T) {
	s := newSession(t, chat.Options{})

	s.SetVolume(150)
	assert.Equal(t, 100, s.Volume())
	s.SetVolume(-3)
	assert.Equal(t, 0, s.Volume())
}
