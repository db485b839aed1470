package speech

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/nukhba-ai/tutor/backend/internal/model/speech"
)

// LineCaptureEngine treats each input line as the final transcript of one
// episode. An empty line behaves like a recognizer that heard nothing.
type LineCaptureEngine struct {
	lines <-chan string

	mu     sync.Mutex
	events chan speech.CaptureEvent
	eof    bool
}

// NewLineCaptureEngine starts reading r in the background.
func NewLineCaptureEngine(r io.Reader) *LineCaptureEngine {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return &LineCaptureEngine{lines: lines}
}

func (e *LineCaptureEngine) Available() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.eof
}

func (e *LineCaptureEngine) Start(ctx context.Context, _ string) (<-chan speech.CaptureEvent, error) {
	ch := make(chan speech.CaptureEvent, 4)
	e.mu.Lock()
	e.events = ch
	e.mu.Unlock()

	go func() {
		select {
		case line, ok := <-e.lines:
			if !ok {
				e.mu.Lock()
				e.eof = true
				e.mu.Unlock()
				e.end(ch, speech.CaptureEvent{Kind: speech.CaptureError, Code: speech.CodeNoSpeech})
				return
			}
			line = strings.TrimSpace(line)
			if line == "" {
				e.end(ch, speech.CaptureEvent{Kind: speech.CaptureError, Code: speech.CodeNoSpeech})
				return
			}
			e.end(ch, speech.CaptureEvent{Kind: speech.CaptureResult, Text: line, IsFinal: true})
		case <-ctx.Done():
			e.end(ch)
		}
	}()
	return ch, nil
}

func (e *LineCaptureEngine) Stop() {
	e.mu.Lock()
	ch := e.events
	e.mu.Unlock()
	if ch != nil {
		e.end(ch)
	}
}

// end emits evts followed by the end event and closes ch once.
func (e *LineCaptureEngine) end(ch chan speech.CaptureEvent, evts ...speech.CaptureEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.events != ch {
		return
	}
	for _, evt := range evts {
		ch <- evt
	}
	ch <- speech.CaptureEvent{Kind: speech.CaptureEnd}
	close(ch)
	e.events = nil
}

// WriterOutputEngine prints utterances instead of synthesizing them.
type WriterOutputEngine struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterOutputEngine writes every utterance to w.
func NewWriterOutputEngine(w io.Writer) *WriterOutputEngine {
	return &WriterOutputEngine{w: w}
}

func (e *WriterOutputEngine) Available() bool { return e.w != nil }

func (e *WriterOutputEngine) Voices() []speech.Voice { return nil }

func (e *WriterOutputEngine) Speak(_ context.Context, utt speech.Utterance) (<-chan speech.PlaybackEvent, error) {
	e.mu.Lock()
	_, err := fmt.Fprintf(e.w, "[%s] %s\n", utt.Locale, utt.Text)
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}

	ch := make(chan speech.PlaybackEvent, 2)
	ch <- speech.PlaybackEvent{UtteranceID: utt.ID, Kind: speech.PlaybackStart}
	ch <- speech.PlaybackEvent{UtteranceID: utt.ID, Kind: speech.PlaybackEnd}
	close(ch)
	return ch, nil
}

func (e *WriterOutputEngine) Cancel() {}
