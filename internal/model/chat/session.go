package chat

import "time"

// SessionSnapshot is the read-only view of a conversation handed to observers.
type SessionSnapshot struct {
	ID         string    `json:"id"`
	Language   Language  `json:"language"`
	Messages   []Message `json:"messages"`
	QueryCount int       `json:"queryCount"`
	DailyLimit int       `json:"dailyLimit"`
	Premium    bool      `json:"premium"`
	AutoPlay   bool      `json:"autoPlay"`
	Volume     int       `json:"volume"`
	CreatedAt  time.Time `json:"createdAt"`
}

// QueriesLeft reports the remaining daily turns, or -1 for premium sessions.
func (s SessionSnapshot) QueriesLeft() int {
	if s.Premium {
		return -1
	}
	left := s.DailyLimit - s.QueryCount
	if left < 0 {
		return 0
	}
	return left
}
