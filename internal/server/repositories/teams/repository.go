package teams

import (
	"context"

	"github.com/Aphrodine-wq/clipsync/internal/server/models"
)

// Repository defines team membership lookups. Membership gates both team
// clip writes and real-time room subscriptions.
type Repository interface {
	// Create inserts a team and returns it with the server-assigned id.
	Create(ctx context.Context, team *models.Team) (*models.Team, error)

	// AddMember links userID to teamID. Adding an existing member is not
	// an error.
	AddMember(ctx context.Context, teamID, userID string) error

	// IsMember reports whether userID belongs to teamID.
	IsMember(ctx context.Context, teamID, userID string) (bool, error)

	// MemberTeams returns the ids of all teams userID belongs to.
	MemberTeams(ctx context.Context, userID string) ([]string, error)
}
