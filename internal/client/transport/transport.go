// Package transport implements the per-device sync client: one reconnecting
// real-time connection for inbound fan-out plus a parallel request/response
// HTTP channel for writes. All connection lifecycle, outbox drain, and event
// dispatch are serialized through one run loop per device, so no two sends
// from the same device interleave.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/Aphrodine-wq/clipsync/internal/client/config"
	"github.com/Aphrodine-wq/clipsync/internal/client/outbox"
	"github.com/Aphrodine-wq/clipsync/internal/common"
	"github.com/Aphrodine-wq/clipsync/internal/logging"
	"github.com/Aphrodine-wq/clipsync/internal/model"
	"github.com/Aphrodine-wq/clipsync/internal/netx"
	"github.com/Aphrodine-wq/clipsync/internal/protocol"
)

// State is the transport connection state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	// StateClosed is terminal: reached only through Close.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// SyncStatus is the user-visible tri-state derived from connection state and
// outbox contents.
type SyncStatus string

const (
	SyncStatusSynced  SyncStatus = "synced"
	SyncStatusSyncing SyncStatus = "syncing"
	SyncStatusOffline SyncStatus = "offline"
)

// ErrNoToken is returned by Connect when no access token is available. The
// caller must authenticate first; the transport never blocks waiting for
// auth.
var ErrNoToken = errors.New("no access token available")

// Transport is the per-device sync client.
type Transport struct {
	cfg    *config.Config
	api    *API
	outbox *outbox.Outbox
	bus    *Bus
	dialer Dialer
	clock  Clock
	logger logging.Logger

	mu       sync.Mutex
	state    State
	attempts int
	conn     Conn
	writeMu  sync.Mutex

	closeOnce sync.Once
	closeCh   chan struct{}
	doneCh    chan struct{}
	started   bool

	// runCtx is canceled by Close; it bounds the run loop and any
	// asynchronous drains kicked off by enqueue.
	runCtx    context.Context
	runCancel context.CancelFunc
}

// Options carries the optional injectable pieces of a Transport.
type Options struct {
	// Dialer defaults to the production WebSocket dialer.
	Dialer Dialer
	// Clock defaults to the system clock.
	Clock Clock
	Logger logging.Logger
}

// New builds a Transport. It does not connect; call Connect.
func New(cfg *config.Config, api *API, ob *outbox.Outbox, bus *Bus, opts Options) *Transport {
	if opts.Dialer == nil {
		opts.Dialer = NewWebsocketDialer()
	}
	if opts.Clock == nil {
		opts.Clock = NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNopLogger()
	}
	// Exhausted entries surface on the event bus, not just in the failed
	// list, so collaborators see durable failures without polling.
	ob.OnFailed(func(e *model.OutboxEntry) {
		bus.Publish(Event{Kind: KindOutboxFailed, Entry: e, Err: common.ErrOutboxExhausted})
	})

	runCtx, runCancel := context.WithCancel(context.Background())
	return &Transport{
		cfg:       cfg,
		api:       api,
		outbox:    ob,
		bus:       bus,
		dialer:    opts.Dialer,
		clock:     opts.Clock,
		logger:    opts.Logger.With("module", "transport"),
		closeCh:   make(chan struct{}),
		doneCh:    make(chan struct{}),
		runCtx:    runCtx,
		runCancel: runCancel,
	}
}

// Bus exposes the event surface collaborators subscribe to.
func (t *Transport) Bus() *Bus { return t.bus }

// State returns the current connection state.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Attempts returns the observable reconnect attempt counter ("reconnecting,
// attempt N"). It resets to zero on a successful connection.
func (t *Transport) Attempts() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attempts
}

// Status derives the user-visible tri-state from the connection state and
// whether the outbox holds pending writes.
func (t *Transport) Status(ctx context.Context) SyncStatus {
	if t.State() != StateConnected {
		return SyncStatusOffline
	}
	pending, err := t.outbox.Pending(ctx)
	if err != nil || pending > 0 {
		return SyncStatusSyncing
	}
	return SyncStatusSynced
}

// Connect starts the connection loop. It is a no-op when the loop is already
// running and fails fast with ErrNoToken when the API holds no access token.
// The loop keeps reconnecting until Close.
func (t *Transport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == StateClosed {
		return errors.New("transport closed")
	}
	if t.started {
		return nil
	}
	if t.api.AccessToken() == "" {
		return ErrNoToken
	}

	t.started = true
	go t.run()
	return nil
}

// Close synchronously stops reconnection attempts and releases any pending
// drain loop before returning. The transport cannot be reused afterwards.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		close(t.closeCh)
		t.runCancel()
		t.mu.Lock()
		if t.conn != nil {
			_ = t.conn.Close()
		}
		started := t.started
		t.mu.Unlock()
		if started {
			<-t.doneCh
		}
		t.mu.Lock()
		t.state = StateClosed
		t.mu.Unlock()
	})
	return nil
}

// run is the single event loop owning the connection lifecycle. Cooperative
// scheduling, single connection per device: connection attempts never run in
// parallel.
func (t *Transport) run() {
	defer close(t.doneCh)

	ctx := t.runCtx

	bo := newBackoff()
	first := true

	for {
		if t.closed() {
			return
		}

		if first {
			t.setState(StateConnecting)
		} else {
			t.setState(StateReconnecting)
		}

		conn, err := t.dial(ctx)
		if err != nil {
			t.mu.Lock()
			t.attempts++
			n := t.attempts
			t.mu.Unlock()
			t.logger.Warn(ctx, "connection attempt failed", "attempt", n, "error", err)

			select {
			case <-t.closeCh:
				return
			case <-t.clock.After(bo.Next()):
			}
			first = false
			continue
		}

		t.mu.Lock()
		t.conn = conn
		t.attempts = 0
		t.mu.Unlock()
		bo.Reset()
		t.setState(StateConnected)

		// Drain queued writes before anything else so FIFO order per device
		// holds across the reconnect, then tell collaborators to run their
		// REST catch-up fetch.
		if err := t.outbox.Drain(ctx, t.sendEntry); err != nil && !errors.Is(err, context.Canceled) {
			t.logger.Warn(ctx, "outbox drain interrupted", "error", err)
		} else {
			t.bus.Publish(Event{Kind: KindSynced})
		}

		t.readLoop(conn)

		t.mu.Lock()
		t.conn = nil
		t.mu.Unlock()
		_ = conn.Close()

		if t.closed() {
			return
		}
		first = false
	}
}

// dial establishes the socket and performs the auth handshake within the
// configured attempt timeout; an attempt that neither succeeds nor fails in
// that window counts as failed and enters the backoff path.
func (t *Transport) dial(ctx context.Context) (Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, t.cfg.ConnectTimeout)
	defer cancel()

	conn, err := t.dialer.DialContext(dialCtx, t.api.WebsocketURL())
	if err != nil {
		return nil, err
	}

	// The handshake frames have no deadline of their own, so the attempt
	// window covers them by cutting the socket: a server that accepts the
	// connection but never answers cannot wedge the attempt. Publishing the
	// conn before the handshake lets Close cut it the same way.
	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()

	// watchdogDone is always closed before dial's cancel runs, so a wakeup
	// caused by that cancel never cuts a live connection.
	watchdogDone := make(chan struct{})
	go func() {
		select {
		case <-dialCtx.Done():
			select {
			case <-watchdogDone:
			default:
				_ = conn.Close()
			}
		case <-watchdogDone:
		}
	}()

	hello, err := t.handshake(conn)
	close(watchdogDone)
	if err != nil {
		t.mu.Lock()
		t.conn = nil
		t.mu.Unlock()
		_ = conn.Close()
		if ctxErr := dialCtx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}

	t.api.SetSessionID(hello.SessionID)
	return conn, nil
}

// handshake authenticates the socket and returns the server's hello.
func (t *Transport) handshake(conn Conn) (*protocol.Hello, error) {
	auth := protocol.AuthRequest{
		Token:      t.api.AccessToken(),
		DeviceName: t.cfg.DeviceName,
		DeviceType: t.cfg.DeviceType,
	}
	frame, err := protocol.NewFrame(protocol.EventAuth, auth)
	if err != nil {
		return nil, err
	}
	if err := conn.WriteFrame(frame); err != nil {
		return nil, err
	}

	reply, err := conn.ReadFrame()
	if err != nil {
		return nil, err
	}
	if reply.Event != protocol.EventHello {
		return nil, fmt.Errorf("handshake rejected: %s", reply.Event)
	}

	var hello protocol.Hello
	if err := json.Unmarshal(reply.Data, &hello); err != nil {
		return nil, fmt.Errorf("bad hello frame: %w", err)
	}
	return &hello, nil
}

// readLoop dispatches inbound frames until the connection drops.
func (t *Transport) readLoop(conn Conn) {
	for {
		frame, err := conn.ReadFrame()
		if err != nil {
			return
		}
		t.dispatch(frame)
	}
}

func (t *Transport) dispatch(f protocol.Frame) {
	ctx := context.Background()
	switch f.Event {
	case protocol.EventClipCreated, protocol.EventClipUpdated:
		var p protocol.ClipEvent
		if err := json.Unmarshal(f.Data, &p); err != nil {
			t.logger.Warn(ctx, "bad clip frame", "event", f.Event, "error", err)
			return
		}
		kind := KindClipCreated
		if f.Event == protocol.EventClipUpdated {
			kind = KindClipUpdated
		}
		t.bus.Publish(Event{Kind: kind, Clip: &p.Clip})
	case protocol.EventClipDeleted:
		var p protocol.ClipDeletedEvent
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return
		}
		t.bus.Publish(Event{Kind: KindClipDeleted, ClipID: p.ClipID})
	case protocol.EventTeamClipCreated, protocol.EventTeamClipUpdated:
		var p protocol.TeamClipEvent
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return
		}
		kind := KindTeamClipCreated
		if f.Event == protocol.EventTeamClipUpdated {
			kind = KindTeamClipUpdated
		}
		t.bus.Publish(Event{Kind: kind, Clip: &p.Clip, TeamID: p.TeamID})
	case protocol.EventTeamClipDeleted:
		var p protocol.TeamClipDeletedEvent
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return
		}
		t.bus.Publish(Event{Kind: KindTeamClipDeleted, ClipID: p.ClipID, TeamID: p.TeamID})
	case protocol.EventTeamTyping:
		var p protocol.TypingEvent
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return
		}
		t.bus.Publish(Event{Kind: KindTyping, Typing: &p, TeamID: p.TeamID})
	default:
		t.logger.Debug(ctx, "dropping unknown event", "event", f.Event)
	}
}

// sendEntry delivers one outbox entry over the request/response channel.
// A nil return means the server acknowledged the entry's local id.
func (t *Transport) sendEntry(ctx context.Context, e *model.OutboxEntry) error {
	switch e.Op {
	case model.OutboxOpCreate:
		var clip model.Clip
		if err := json.Unmarshal(e.Payload, &clip); err != nil {
			return err
		}
		res, err := t.api.CreateClip(ctx, &clip)
		if err != nil {
			return err
		}
		if res.Clip.LocalID != e.LocalID {
			return fmt.Errorf("ack local id mismatch: sent %s, got %s", e.LocalID, res.Clip.LocalID)
		}
		if res.UploadURL != "" {
			// Oversized content: the server persisted metadata and expects
			// the body in object storage.
			if err := netx.UploadToPresignedURL(ctx, res.UploadURL, []byte(clip.Content)); err != nil {
				return err
			}
		}
		t.bus.Publish(Event{Kind: KindWriteAcked, Clip: &res.Clip})
		return nil
	case model.OutboxOpDelete:
		var p model.DeletePayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return err
		}
		err := t.api.DeleteClip(ctx, p.ClipID)
		if errors.Is(err, common.ErrNotFound) {
			// Already gone; treat as acknowledged.
			return nil
		}
		return err
	case model.OutboxOpSetPinned:
		var p model.PinPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return err
		}
		return t.api.SetPinned(ctx, p.ClipID, p.Pinned)
	case model.OutboxOpSetPassword:
		var p model.PasswordPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return err
		}
		return t.api.SetPassword(ctx, p.ClipID, p.Password)
	case model.OutboxOpRemovePassword:
		var p model.PasswordPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return err
		}
		return t.api.RemovePassword(ctx, p.ClipID, p.Password)
	default:
		return fmt.Errorf("unknown outbox op %q", e.Op)
	}
}

// NotifyClipCreated queues a clip write. Fire-and-forget for the caller:
// the write lands in the durable outbox first and is delivered by the next
// drain, immediately when connected. The returned status is nil when the
// send is in flight and common.ErrTransportUnavailable when it is queued
// for later. Queued is not failed.
func (t *Transport) NotifyClipCreated(ctx context.Context, clip *model.Clip) error {
	return t.enqueue(ctx, model.OutboxOpCreate, clip.LocalID, clip)
}

// NotifyClipDeleted queues a delete.
func (t *Transport) NotifyClipDeleted(ctx context.Context, clipID string) error {
	return t.enqueue(ctx, model.OutboxOpDelete, "", model.DeletePayload{ClipID: clipID})
}

// NotifyClipPinned queues a pin/unpin patch.
func (t *Transport) NotifyClipPinned(ctx context.Context, clipID string, pinned bool) error {
	return t.enqueue(ctx, model.OutboxOpSetPinned, "", model.PinPayload{ClipID: clipID, Pinned: pinned})
}

func (t *Transport) enqueue(ctx context.Context, op model.OutboxOp, localID string, payload any) error {
	if _, err := t.outbox.Enqueue(ctx, op, localID, payload); err != nil {
		return err
	}
	if t.State() != StateConnected {
		return common.ErrTransportUnavailable
	}
	go func() {
		if err := t.outbox.Drain(t.runCtx, t.sendEntry); err != nil && !errors.Is(err, context.Canceled) {
			t.logger.Warn(t.runCtx, "drain failed", "error", err)
		}
	}()
	return nil
}

// JoinTeams subscribes this session to the given team rooms. Requires a live
// connection; membership is rebuilt by the server on every handshake, so
// there is nothing to queue while offline.
func (t *Transport) JoinTeams(teamIDs []string) error {
	return t.writeEvent(protocol.EventJoinTeams, protocol.TeamsRequest{TeamIDs: teamIDs})
}

// LeaveTeams unsubscribes from team rooms.
func (t *Transport) LeaveTeams(teamIDs []string) error {
	return t.writeEvent(protocol.EventLeaveTeams, protocol.TeamsRequest{TeamIDs: teamIDs})
}

// SendTyping emits the presence signal. Dropped silently when offline:
// presence has no meaning after a reconnect.
func (t *Transport) SendTyping(teamID, userName string, isTyping bool) error {
	if t.State() != StateConnected {
		return nil
	}
	return t.writeEvent(protocol.EventTeamTyping, protocol.TypingEvent{
		TeamID:   teamID,
		UserName: userName,
		IsTyping: isTyping,
	})
}

func (t *Transport) writeEvent(event string, payload any) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return common.ErrTransportUnavailable
	}

	frame, err := protocol.NewFrame(event, payload)
	if err != nil {
		return err
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return conn.WriteFrame(frame)
}

func (t *Transport) setState(s State) {
	t.mu.Lock()
	if t.state == s {
		t.mu.Unlock()
		return
	}
	t.state = s
	t.mu.Unlock()
	t.bus.Publish(Event{Kind: KindStatus, State: s})
}

func (t *Transport) closed() bool {
	select {
	case <-t.closeCh:
		return true
	default:
		return false
	}
}
