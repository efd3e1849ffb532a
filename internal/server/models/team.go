// Package models defines server-side data models persisted in the database.
// Clips themselves live in the shared model package since both sides of the
// wire exchange them; the types here never leave the server.
package models

import "time"

// Team is a shared clip room. Membership gates both REST writes with a
// teamId and real-time room subscriptions.
type Team struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// TeamMember links a user to a team.
type TeamMember struct {
	TeamID    string
	UserID    string
	CreatedAt time.Time
}
