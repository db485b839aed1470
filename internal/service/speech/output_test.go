package speech_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nukhba-ai/tutor/backend/internal/model/chat"
	modelspeech "github.com/nukhba-ai/tutor/backend/internal/model/speech"
	"github.com/nukhba-ai/tutor/backend/internal/model/voice"
	"github.com/nukhba-ai/tutor/backend/internal/service/speech"
	"github.com/nukhba-ai/tutor/backend/internal/service/speech/speechtest"
)

func waitDone(t *testing.T, p *speech.Playback) error {
	t.Helper()
	select {
	case <-p.Done():
		return p.Err()
	case <-time.After(2 * time.Second):
		t.Fatal("playback did not complete")
		return nil
	}
}

func TestOutputAdapterSpeakAppliesSettings(t *testing.T) {
	engine := speechtest.NewOutputEngine(
		modelspeech.Voice{Name: "Default", Locale: "en-US", Default: true},
		modelspeech.Voice{Name: "Maged", Locale: "ar-SA"},
	)
	adapter := speech.NewOutputAdapter(engine, zap.NewNop())
	adapter.SetVolume(50)

	p, err := adapter.Speak(context.Background(), "مرحبا", chat.Arabic)
	require.NoError(t, err)
	assert.True(t, adapter.Speaking())

	spoken := engine.Spoken()
	require.Len(t, spoken, 1)
	assert.Equal(t, "Maged", spoken[0].Voice)
	assert.Equal(t, "ar-SA", spoken[0].Locale)
	assert.InDelta(t, 0.9, spoken[0].Rate, 1e-9)
	assert.InDelta(t, 1.0, spoken[0].Pitch, 1e-9)
	assert.InDelta(t, 0.5, spoken[0].Volume, 1e-9)

	engine.End()
	assert.NoError(t, waitDone(t, p))
	assert.Eventually(t, func() bool { return !adapter.Speaking() }, time.Second, 10*time.Millisecond)
}

func TestOutputAdapterFallsBackToDefaultVoice(t *testing.T) {
	engine := speechtest.NewOutputEngine(modelspeech.Voice{Name: "Samantha", Locale: "en-US", Default: true})
	engine.AutoEnd = true
	adapter := speech.NewOutputAdapter(engine, zap.NewNop())

	p, err := adapter.Speak(context.Background(), "नमस्ते", chat.Hindi)
	require.NoError(t, err)
	assert.NoError(t, waitDone(t, p))
	assert.Equal(t, "Samantha", engine.Spoken()[0].Voice)
	assert.Equal(t, "hi-IN", engine.Spoken()[0].Locale)
}

func TestOutputAdapterLastCallWins(t *testing.T) {
	engine := speechtest.NewOutputEngine()
	adapter := speech.NewOutputAdapter(engine, zap.NewNop())

	first, err := adapter.Speak(context.Background(), "first", chat.English)
	require.NoError(t, err)
	second, err := adapter.Speak(context.Background(), "second", chat.English)
	require.NoError(t, err)

	assert.ErrorIs(t, waitDone(t, first), speech.ErrPlaybackCancelled)
	assert.Equal(t, 1, engine.Cancels())

	engine.End()
	assert.NoError(t, waitDone(t, second))
}

func TestOutputAdapterStopIsIdempotent(t *testing.T) {
	engine := speechtest.NewOutputEngine()
	adapter := speech.NewOutputAdapter(engine, zap.NewNop())

	adapter.Stop()
	assert.Zero(t, engine.Cancels())

	p, err := adapter.Speak(context.Background(), "hello", chat.English)
	require.NoError(t, err)
	adapter.Stop()
	adapter.Stop()

	assert.ErrorIs(t, waitDone(t, p), speech.ErrPlaybackCancelled)
	assert.Equal(t, 1, engine.Cancels())
	assert.False(t, adapter.Speaking())
}

func TestOutputAdapterEngineError(t *testing.T) {
	engine := speechtest.NewOutputEngine()
	adapter := speech.NewOutputAdapter(engine, zap.NewNop())

	p, err := adapter.Speak(context.Background(), "hello", chat.English)
	require.NoError(t, err)
	engine.Error("synthesis-failed")

	assert.ErrorIs(t, waitDone(t, p), voice.ErrSpeechOutput)
}

func TestOutputAdapterFailures(t *testing.T) {
	unavailable := speechtest.NewOutputEngine()
	unavailable.SetUnavailable(true)
	_, err := speech.NewOutputAdapter(unavailable, zap.NewNop()).Speak(context.Background(), "hi", chat.English)
	assert.ErrorIs(t, err, voice.ErrUnsupportedEnvironment)

	engine := speechtest.NewOutputEngine()
	adapter := speech.NewOutputAdapter(engine, zap.NewNop())
	_, err = adapter.Speak(context.Background(), "   ", chat.English)
	assert.ErrorIs(t, err, speech.ErrEmptyUtterance)

	engine.FailSpeak(errors.New("engine busy"))
	_, err = adapter.Speak(context.Background(), "hi", chat.English)
	assert.ErrorIs(t, err, voice.ErrSpeechOutput)
}

func TestOutputAdapterVolumeClamped(t *testing.T) {
	adapter := speech.NewOutputAdapter(speechtest.NewOutputEngine(), nil)
	assert.Equal(t, modelspeech.DefaultVolume, adapter.Volume())
	adapter.SetVolume(400)
	assert.Equal(t, 100, adapter.Volume())
}
