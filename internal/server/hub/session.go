package hub

import (
	"sync"

	"github.com/Aphrodine-wq/clipsync/internal/protocol"
	"github.com/google/uuid"
)

// sendBufferSize bounds the per-session outbound queue. A session that
// cannot keep up loses frames rather than stalling the sender; dropped
// fan-out is reconciled by the client's fetch-on-reconnect.
const sendBufferSize = 64

// Session is one live device connection. The hub never writes to the socket
// directly: frames go through the buffered send channel and the connection's
// writer pump drains it, so one slow device cannot block a broadcast.
type Session struct {
	ID         string
	UserID     string
	UserName   string
	DeviceName string
	DeviceType string

	send      chan protocol.Frame
	closeOnce sync.Once
	done      chan struct{}
}

// NewSession builds a registered-but-unwired session for the given identity.
func NewSession(userID, userName, deviceName, deviceType string) *Session {
	return &Session{
		ID:         uuid.NewString(),
		UserID:     userID,
		UserName:   userName,
		DeviceName: deviceName,
		DeviceType: deviceType,
		send:       make(chan protocol.Frame, sendBufferSize),
		done:       make(chan struct{}),
	}
}

// Send queues a frame for delivery. It never blocks: a full queue or a
// closed session drops the frame and reports false.
func (s *Session) Send(frame protocol.Frame) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- frame:
		return true
	default:
		return false
	}
}

// Out is the frame stream the connection's writer pump drains.
func (s *Session) Out() <-chan protocol.Frame {
	return s.send
}

// Done is closed when the session is shut down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close shuts the session down. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}
