package model

import "time"

// Snippet represents a saved piece of code.
//
// Language is stored as the executor's language key ("python", "javascript",
// "bash") so a saved snippet can be re-run without guessing its interpreter.
// UserID is empty for snippets created anonymously.
type Snippet struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId,omitempty"`
	Name      string    `json:"name"`
	Language  string    `json:"language"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
