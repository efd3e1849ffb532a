package models

import "time"

// RefreshToken is one row of the rotating refresh-token store. A token is
// single-use: redeeming it deletes the row and issues a replacement.
type RefreshToken struct {
	ID        string
	UserID    string
	Token     string
	Expires   time.Time
	CreatedAt time.Time
}
