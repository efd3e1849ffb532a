package model

import "time"

// OutboxStatus is the lifecycle state of a queued write.
type OutboxStatus string

const (
	// OutboxStatusPending entries are waiting for the next drain.
	OutboxStatusPending OutboxStatus = "pending"
	// OutboxStatusFailed entries exhausted their retry budget. They stay
	// visible until the owner retries or deletes them.
	OutboxStatusFailed OutboxStatus = "failed"
)

// OutboxOp names the operation a queued write performs when drained.
type OutboxOp string

const (
	OutboxOpCreate         OutboxOp = "create"
	OutboxOpDelete         OutboxOp = "delete"
	OutboxOpSetPinned      OutboxOp = "set-pinned"
	OutboxOpSetPassword    OutboxOp = "set-password"
	OutboxOpRemovePassword OutboxOp = "remove-password"
)

// PinPayload is the queued body for set-pinned patches.
type PinPayload struct {
	ClipID string `json:"clipId"`
	Pinned bool   `json:"pinned"`
}

// PasswordPayload is the queued body for set-password / remove-password.
type PasswordPayload struct {
	ClipID   string `json:"clipId"`
	Password string `json:"password"`
}

// DeletePayload is the queued body for deletes.
type DeletePayload struct {
	ClipID string `json:"clipId"`
}

// OutboxEntry is one durable queued write. Payload is the JSON-encoded
// operation body (a Clip for creates, one of the patch payloads otherwise);
// LocalID doubles as the idempotency key echoed back by the server
// acknowledgment.
type OutboxEntry struct {
	LocalID   string
	Op        OutboxOp
	Payload   []byte
	Attempts  int
	Status    OutboxStatus
	CreatedAt time.Time
}
