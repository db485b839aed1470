package voice

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors of the voice interaction taxonomy.
var (
	ErrPermissionDenied        = errors.New("microphone permission denied")
	ErrUnsupportedEnvironment  = errors.New("speech engine not available")
	ErrAudioCaptureUnavailable = errors.New("audio capture unavailable")
	ErrRateLimitExceeded       = errors.New("daily query limit reached")
	ErrTurnInProgress          = errors.New("another turn is in progress")
	ErrMalformedResponse       = errors.New("malformed tutor response")
	ErrSpeechOutput            = errors.New("speech output failed")
)

// NetworkError reports a failure where no response was received.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Op != "":
		return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("network error: %v", e.Err)
	}
}

func (e *NetworkError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// RemoteServiceError reports a non-2xx answer from the chat completion service.
type RemoteServiceError struct {
	Status  int
	Message string
}

func (e *RemoteServiceError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("remote service error: %s", e.Message)
	}
	if e.Message == "" {
		return fmt.Sprintf("remote service error: status %d", e.Status)
	}
	return fmt.Sprintf("remote service error: status %d: %s", e.Status, e.Message)
}

// Retryable is true for 5xx and 429 answers; other 4xx are terminal.
func (e *RemoteServiceError) Retryable() bool {
	return e.Status >= http.StatusInternalServerError || e.Status == http.StatusTooManyRequests
}

// CaptureError wraps a speech recognition engine error code.
type CaptureError struct {
	Code string
	Err  error
}

func (e *CaptureError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("speech recognition error: %s", e.Code)
	}
	return fmt.Sprintf("speech recognition error %s: %v", e.Code, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// Retryable reports whether a failed tutor request may be attempted again.
func Retryable(err error) bool {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	var remoteErr *RemoteServiceError
	if errors.As(err, &remoteErr) {
		return remoteErr.Retryable()
	}
	return false
}
