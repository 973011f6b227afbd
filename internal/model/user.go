// Package model defines the data structures shared across the application
// layers. Plain structs with JSON tags — no behaviour, no dependencies on
// other internal packages.
package model

import "time"

// User represents a registered account.
//
// Accounts are local username/password credentials. The bcrypt hash of the
// password lives in PasswordHash and is never serialized to JSON (`json:"-"`).
// Email may be empty — we use the zero value rather than a nullable pointer,
// which is simpler to work with and safe to display.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // bcrypt hash, never exposed over the API
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
