package transport

import "time"

// Clock abstracts time for the reconnect loop so backoff timing is
// deterministically testable without real sleeps.
type Clock interface {
	Now() time.Time
	// After behaves like time.After.
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// NewRealClock returns a Clock backed by the system clock.
func NewRealClock() Clock { return realClock{} }
