package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/Aphrodine-wq/clipsync/internal/common"
	"github.com/Aphrodine-wq/clipsync/internal/logging"
	"github.com/Aphrodine-wq/clipsync/internal/model"
	"github.com/google/uuid"
)

// MaxAttempts is the retry budget for one entry. After this many failed
// sends the entry moves to the failed state and is surfaced to the owner;
// it is never retried forever and never silently dropped.
const MaxAttempts = 5

// SendFunc delivers one entry to the server. A nil error means the server
// acknowledged the entry's LocalID and it is safe to delete.
type SendFunc func(ctx context.Context, e *model.OutboxEntry) error

// FailedFunc observes an entry crossing into the failed state.
type FailedFunc func(e *model.OutboxEntry)

// Outbox coordinates the durable queue: enqueueing writes and draining them
// FIFO, one in flight at a time, against a send function supplied by the
// transport.
type Outbox struct {
	repo   Repository
	logger logging.Logger

	// drainMu guarantees a single drain, and so a single entry in flight,
	// per device.
	drainMu sync.Mutex

	failedMu sync.Mutex
	onFailed []FailedFunc
}

// New builds an Outbox over the given repository. onFailed may be nil.
func New(repo Repository, logger logging.Logger, onFailed FailedFunc) *Outbox {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	o := &Outbox{repo: repo, logger: logger}
	if onFailed != nil {
		o.onFailed = append(o.onFailed, onFailed)
	}
	return o
}

// OnFailed registers an additional observer for entries crossing into the
// failed state. The transport uses this to surface exhaustion on its event
// bus.
func (o *Outbox) OnFailed(fn FailedFunc) {
	o.failedMu.Lock()
	defer o.failedMu.Unlock()
	o.onFailed = append(o.onFailed, fn)
}

func (o *Outbox) notifyFailed(e *model.OutboxEntry) {
	o.failedMu.Lock()
	fns := make([]FailedFunc, len(o.onFailed))
	copy(fns, o.onFailed)
	o.failedMu.Unlock()
	for _, fn := range fns {
		fn(e)
	}
}

// Enqueue queues one write. A LocalID is assigned if the payload carries
// none, and the marshaled payload plus operation name are persisted before
// Enqueue returns, so a crash after this point cannot lose the write.
func (o *Outbox) Enqueue(ctx context.Context, op model.OutboxOp, localID string, payload any) (string, error) {
	if localID == "" {
		localID = uuid.NewString()
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal outbox payload: %w", err)
	}
	e := &model.OutboxEntry{LocalID: localID, Op: op, Payload: b}
	if err := o.repo.Enqueue(ctx, e); err != nil {
		return "", err
	}
	return localID, nil
}

// Drain sends pending entries in enqueue order, one at a time. An entry is
// deleted only after send reports the server's acknowledgment. On a send
// failure the attempt counter is bumped; crossing MaxAttempts moves the
// entry to failed and the drain continues with the next one, otherwise the
// drain stops so order is preserved for the next connection.
func (o *Outbox) Drain(ctx context.Context, send SendFunc) error {
	o.drainMu.Lock()
	defer o.drainMu.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		e, err := o.repo.NextPending(ctx)
		if errors.Is(err, common.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := send(ctx, e); err != nil {
			attempts, aerr := o.repo.IncrementAttempts(ctx, e.LocalID)
			if aerr != nil {
				return aerr
			}
			if attempts < MaxAttempts {
				return fmt.Errorf("send %s: %w", e.LocalID, err)
			}

			o.logger.Warn(ctx, "outbox entry exhausted retry budget",
				"local_id", e.LocalID, "op", string(e.Op), "attempts", attempts,
				"error", fmt.Errorf("%w: %v", common.ErrOutboxExhausted, err))
			if merr := o.repo.MarkFailed(ctx, e.LocalID); merr != nil {
				return merr
			}
			e.Attempts = attempts
			e.Status = model.OutboxStatusFailed
			o.notifyFailed(e)
			continue
		}

		if err := o.repo.Ack(ctx, e.LocalID); err != nil {
			return err
		}
	}
}

// Failed lists entries that exhausted their retry budget.
func (o *Outbox) Failed(ctx context.Context) ([]*model.OutboxEntry, error) {
	return o.repo.Failed(ctx)
}

// Retry re-arms a failed entry for the next drain.
func (o *Outbox) Retry(ctx context.Context, localID string) error {
	return o.repo.Retry(ctx, localID)
}

// Delete abandons an entry.
func (o *Outbox) Delete(ctx context.Context, localID string) error {
	return o.repo.Delete(ctx, localID)
}

// Pending reports whether any entries await drain. The connection status
// tri-state (synced / syncing / offline) derives from this plus the
// transport state.
func (o *Outbox) Pending(ctx context.Context) (int, error) {
	return o.repo.PendingCount(ctx)
}
