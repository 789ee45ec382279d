package core

import "time"

type (
	// Sender tags who wrote a message.
	Sender string

	// Message is a transient chat message. Messages live only in memory.
	Message struct {
		ID        string    `json:"id"`
		Sender    Sender    `json:"sender"`
		Text      string    `json:"text,omitempty"`
		Image     string    `json:"image,omitempty"` // base64
		Timestamp time.Time `json:"timestamp"`
	}
)

const (
	SenderUser      Sender = "user"
	SenderResponder Sender = "ai"
)
