package chat

import "time"

// Sender identifies who produced a message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Message is one immutable entry of a session log.
type Message struct {
	ID                string    `json:"id"`
	Content           string    `json:"content"`
	Sender            Sender    `json:"sender"`
	Language          Language  `json:"language"`
	FollowUpQuestions []string  `json:"followUpQuestions,omitempty"`
	Explanation       string    `json:"explanation,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}
