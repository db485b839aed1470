// Package speechtest provides deterministic speech engines for tests.
package speechtest

import (
	"context"
	"sync"

	"github.com/nukhba-ai/tutor/backend/internal/model/speech"
)

// CaptureEngine is a scripted recognizer. Tests push events after Start.
type CaptureEngine struct {
	mu          sync.Mutex
	unavailable bool
	startErr    error
	events      chan speech.CaptureEvent
	locales     []string
	startCalls  int
	stopCalls   int
	endOnStop   bool
}

// NewCaptureEngine returns an available engine that ends the episode when stopped.
func NewCaptureEngine() *CaptureEngine {
	return &CaptureEngine{endOnStop: true}
}

// SetUnavailable makes Available report false.
func (e *CaptureEngine) SetUnavailable(unavailable bool) {
	e.mu.Lock()
	e.unavailable = unavailable
	e.mu.Unlock()
}

// FailStart makes the next Start calls return err.
func (e *CaptureEngine) FailStart(err error) {
	e.mu.Lock()
	e.startErr = err
	e.mu.Unlock()
}

func (e *CaptureEngine) Available() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.unavailable
}

func (e *CaptureEngine) Start(_ context.Context, locale string) (<-chan speech.CaptureEvent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.startCalls++
	if e.startErr != nil {
		return nil, e.startErr
	}
	e.locales = append(e.locales, locale)
	e.events = make(chan speech.CaptureEvent, 64)
	return e.events, nil
}

func (e *CaptureEngine) Stop() {
	e.mu.Lock()
	e.stopCalls++
	endOnStop := e.endOnStop
	e.mu.Unlock()
	if endOnStop {
		e.End()
	}
}

// Interim pushes a non-final result.
func (e *CaptureEngine) Interim(text string) {
	e.emit(speech.CaptureEvent{Kind: speech.CaptureResult, Text: text})
}

// Final pushes a final result.
func (e *CaptureEngine) Final(text string) {
	e.emit(speech.CaptureEvent{Kind: speech.CaptureResult, Text: text, IsFinal: true})
}

// Fail pushes an engine error code.
func (e *CaptureEngine) Fail(code string) {
	e.emit(speech.CaptureEvent{Kind: speech.CaptureError, Code: code})
}

// End pushes the end event and closes the episode stream.
func (e *CaptureEngine) End() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.events == nil {
		return
	}
	e.events <- speech.CaptureEvent{Kind: speech.CaptureEnd}
	close(e.events)
	e.events = nil
}

func (e *CaptureEngine) emit(evt speech.CaptureEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.events != nil {
		e.events <- evt
	}
}

// StartCalls returns how many times Start was invoked.
func (e *CaptureEngine) StartCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.startCalls
}

// StopCalls returns how many times Stop was invoked.
func (e *CaptureEngine) StopCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopCalls
}

// Locales returns the locale of every started episode.
func (e *CaptureEngine) Locales() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.locales...)
}

// OutputEngine records utterances. With AutoEnd set every utterance ends
// immediately; otherwise tests finish them with End or Error.
type OutputEngine struct {
	AutoEnd bool

	mu          sync.Mutex
	unavailable bool
	speakErr    error
	voices      []speech.Voice
	spoken      []speech.Utterance
	pending     map[string]chan speech.PlaybackEvent
	cancels     int
}

// NewOutputEngine returns an available engine offering voices.
func NewOutputEngine(voices ...speech.Voice) *OutputEngine {
	return &OutputEngine{voices: voices, pending: make(map[string]chan speech.PlaybackEvent)}
}

// SetUnavailable makes Available report false.
func (e *OutputEngine) SetUnavailable(unavailable bool) {
	e.mu.Lock()
	e.unavailable = unavailable
	e.mu.Unlock()
}

// FailSpeak makes Speak return err.
func (e *OutputEngine) FailSpeak(err error) {
	e.mu.Lock()
	e.speakErr = err
	e.mu.Unlock()
}

func (e *OutputEngine) Available() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.unavailable
}

func (e *OutputEngine) Voices() []speech.Voice {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]speech.Voice(nil), e.voices...)
}

func (e *OutputEngine) Speak(_ context.Context, utt speech.Utterance) (<-chan speech.PlaybackEvent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.speakErr != nil {
		return nil, e.speakErr
	}
	e.spoken = append(e.spoken, utt)
	ch := make(chan speech.PlaybackEvent, 4)
	ch <- speech.PlaybackEvent{UtteranceID: utt.ID, Kind: speech.PlaybackStart}
	if e.AutoEnd {
		ch <- speech.PlaybackEvent{UtteranceID: utt.ID, Kind: speech.PlaybackEnd}
		close(ch)
		return ch, nil
	}
	e.pending[utt.ID] = ch
	return ch, nil
}

func (e *OutputEngine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancels++
	for id, ch := range e.pending {
		close(ch)
		delete(e.pending, id)
	}
}

// End finishes the most recent pending utterance normally.
func (e *OutputEngine) End() {
	e.finishLast(speech.PlaybackEnd, "")
}

// Error fails the most recent pending utterance.
func (e *OutputEngine) Error(detail string) {
	e.finishLast(speech.PlaybackError, detail)
}

func (e *OutputEngine) finishLast(kind speech.PlaybackEventKind, detail string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.spoken) == 0 {
		return
	}
	id := e.spoken[len(e.spoken)-1].ID
	ch, ok := e.pending[id]
	if !ok {
		return
	}
	ch <- speech.PlaybackEvent{UtteranceID: id, Kind: kind, Detail: detail}
	close(ch)
	delete(e.pending, id)
}

// Spoken returns every utterance handed to Speak.
func (e *OutputEngine) Spoken() []speech.Utterance {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]speech.Utterance(nil), e.spoken...)
}

// Cancels returns how many times Cancel was invoked.
func (e *OutputEngine) Cancels() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancels
}
