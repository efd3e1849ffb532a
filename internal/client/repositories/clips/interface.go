// Package clips stores the device's local clip cache so listing and reveal
// keep working offline. The cache is keyed by the client-assigned local id;
// the server id is filled in once the first persist is acknowledged.
package clips

import (
	"context"

	"github.com/Aphrodine-wq/clipsync/internal/model"
)

// Repository is the local clip cache.
type Repository interface {
	// Upsert inserts or replaces a clip by local id.
	Upsert(ctx context.Context, c *model.Clip) error

	// GetByLocalID returns one clip or common.ErrNotFound.
	GetByLocalID(ctx context.Context, localID string) (*model.Clip, error)

	// List returns clips newest-first, capped at limit (0 means no cap).
	List(ctx context.Context, limit int) ([]*model.Clip, error)

	// SetServerID records the server-assigned id after the first ack.
	SetServerID(ctx context.Context, localID, serverID string) error

	// DeleteByServerID removes a clip deleted elsewhere.
	DeleteByServerID(ctx context.Context, serverID string) error
}
