package ai

import (
	"github.com/nukhba-ai/tutor/backend/internal/model/voice"
)

// remoteError wraps a provider failure. Status 0 means the provider did not
// report one; such errors are not retried.
func remoteError(status int, message string) error {
	return &voice.RemoteServiceError{Status: status, Message: message}
}
