// Package outbox implements the durable per-device queue of clip writes
// that have not yet been acknowledged by the server. Entries survive process
// restarts and are drained in original enqueue order whenever the transport
// reports a live connection.
package outbox

import (
	"context"

	"github.com/Aphrodine-wq/clipsync/internal/model"
)

// Repository is the durable storage behind the outbox.
type Repository interface {
	// Enqueue appends an entry. The caller must have assigned LocalID.
	Enqueue(ctx context.Context, e *model.OutboxEntry) error

	// NextPending returns the oldest pending entry, or common.ErrNotFound
	// when the queue is empty.
	NextPending(ctx context.Context) (*model.OutboxEntry, error)

	// Ack deletes the entry whose LocalID the server echoed.
	Ack(ctx context.Context, localID string) error

	// IncrementAttempts bumps the attempt counter and returns the new value.
	IncrementAttempts(ctx context.Context, localID string) (int, error)

	// MarkFailed moves an entry to the failed state.
	MarkFailed(ctx context.Context, localID string) error

	// Failed lists entries that exhausted their retry budget.
	Failed(ctx context.Context) ([]*model.OutboxEntry, error)

	// Retry re-arms a failed entry: status back to pending, attempts reset.
	Retry(ctx context.Context, localID string) error

	// Delete abandons an entry regardless of state.
	Delete(ctx context.Context, localID string) error

	// PendingCount reports how many entries await drain.
	PendingCount(ctx context.Context) (int, error)
}
