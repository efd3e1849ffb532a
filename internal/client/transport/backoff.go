package transport

import "time"

// Reconnection policy: unbounded retry with exponential backoff from a
// 1-second floor to a 5-second ceiling.
const (
	backoffFloor   = 1 * time.Second
	backoffCeiling = 5 * time.Second
)

// backoff produces the wait before the next reconnect attempt. Not safe for
// concurrent use; the run loop owns it.
type backoff struct {
	next time.Duration
}

func newBackoff() *backoff {
	return &backoff{next: backoffFloor}
}

// Next returns the current delay and doubles it for the following call,
// capped at the ceiling.
func (b *backoff) Next() time.Duration {
	d := b.next
	b.next *= 2
	if b.next > backoffCeiling {
		b.next = backoffCeiling
	}
	return d
}

// Reset restores the floor after a successful connection.
func (b *backoff) Reset() {
	b.next = backoffFloor
}
