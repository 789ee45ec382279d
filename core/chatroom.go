package core

import "time"

// Chatroom is a named room owned by one user.
type Chatroom struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
}
