package voice

// NotificationKind classifies a user-visible message raised by the orchestrator.
type NotificationKind string

const (
	NotifyPermissionDenied   NotificationKind = "permission_denied"
	NotifyUnsupported        NotificationKind = "unsupported"
	NotifyAudioCapture       NotificationKind = "audio_capture"
	NotifyNetwork            NotificationKind = "network"
	NotifyRemoteService      NotificationKind = "remote_service"
	NotifyRateLimited        NotificationKind = "rate_limited"
	NotifyRecognitionUnknown NotificationKind = "recognition_unknown"
	NotifySpeechOutput       NotificationKind = "speech_output"
	NotifyBusy               NotificationKind = "busy"
)

// Notification is a transient, localized message for the user.
type Notification struct {
	Kind    NotificationKind `json:"kind"`
	Message string           `json:"message"`
	Status  int              `json:"status,omitempty"`
	Code    string           `json:"code,omitempty"`
}
