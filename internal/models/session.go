package models

import "time"

// Session is the identity carried by the signed session cookie. It is never
// written to the database.
type Session struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
