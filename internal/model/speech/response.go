package speech

import "time"

// TranscriptUpdate is what the capture adapter yields during a listening episode.
// Exactly one update per episode has Final set, unless the episode ends with Err.
type TranscriptUpdate struct {
	Interim   string    `json:"interim,omitempty"`
	Text      string    `json:"text"`
	Final     bool      `json:"isFinal"`
	Err       error     `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}
