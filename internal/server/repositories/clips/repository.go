package clips

import (
	"context"

	"github.com/Aphrodine-wq/clipsync/internal/model"
)

// ListOptions filter a clip listing.
type ListOptions struct {
	Limit  int
	Pinned *bool
	Search string
	Type   string
}

// Repository defines clip persistence. Save is the idempotency anchor:
// resubmitting the same (owner, localId) pair returns the already-persisted
// row instead of creating a duplicate. Patch operations are single UPDATEs
// so a reader never observes a half-applied password state.
type Repository interface {
	// Save upserts a clip keyed on (owner_id, local_id). On conflict the
	// existing row is returned unchanged and created is false. storageKey is
	// non-empty when the content was offloaded to object storage.
	Save(ctx context.Context, clip *model.Clip, storageKey string) (saved *model.Clip, created bool, err error)

	// GetByID returns a clip by server id, or common.ErrNotFound.
	GetByID(ctx context.Context, id string) (*model.Clip, error)

	// List returns clips visible to userID: their own plus those of teams
	// they belong to, newest first.
	List(ctx context.Context, userID string, opts ListOptions) ([]*model.Clip, error)

	// SetPinned patches the pinned flag.
	SetPinned(ctx context.Context, id string, pinned bool) error

	// SetPassword sets password protection and its argon2id hash in one
	// statement.
	SetPassword(ctx context.Context, id string, hash string) error

	// RemovePassword lifts protection and clears the hash in one statement.
	RemovePassword(ctx context.Context, id string) error

	// GetPasswordHash returns the stored hash, empty when unprotected.
	GetPasswordHash(ctx context.Context, id string) (string, error)

	// GetStorageKey returns the object-storage key for offloaded content,
	// empty when the content is inline.
	GetStorageKey(ctx context.Context, id string) (string, error)

	// Delete removes a clip by server id. Returns common.ErrNotFound when
	// no row matched.
	Delete(ctx context.Context, id string) error
}
