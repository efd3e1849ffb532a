package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Aphrodine-wq/clipsync/internal/protocol"
	"github.com/Aphrodine-wq/clipsync/internal/server/hub"
	"github.com/gorilla/websocket"
)

// handshakeTimeout bounds how long a fresh socket may sit silent before
// sending its auth frame.
const handshakeTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Token auth happens in the handshake frame, not the HTTP layer.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWebsocket upgrades the connection and runs the session lifecycle:
// auth handshake, hello reply, room membership rebuilt from the teams repo,
// then reader/writer pumps until either side goes away.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	session, err := s.handshake(r.Context(), conn)
	if err != nil {
		s.logger.Warn(r.Context(), "websocket handshake failed", "error", err)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unauthorized"),
			time.Now().Add(time.Second))
		return
	}

	s.hub.Register(session)
	defer s.hub.Unregister(session)

	hello, err := protocol.NewFrame(protocol.EventHello, protocol.Hello{
		SessionID: session.ID,
		UserID:    session.UserID,
	})
	if err != nil {
		return
	}
	if err := conn.WriteJSON(hello); err != nil {
		return
	}

	if err := s.hub.JoinMemberTeams(r.Context(), session); err != nil {
		s.logger.Warn(r.Context(), "initial room join failed", "error", err)
	}

	go s.writePump(conn, session)
	s.readPump(conn, session, r)
}

// handshake reads the first frame and authenticates it.
func (s *Server) handshake(ctx context.Context, conn *websocket.Conn) (*hub.Session, error) {
	conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	defer conn.SetReadDeadline(time.Time{})

	var frame protocol.Frame
	if err := conn.ReadJSON(&frame); err != nil {
		return nil, err
	}
	if frame.Event != protocol.EventAuth {
		return nil, errUnexpectedFrame(frame.Event)
	}

	var req protocol.AuthRequest
	if err := json.Unmarshal(frame.Data, &req); err != nil {
		return nil, err
	}

	uid, err := s.users.VerifyAccessToken(req.Token)
	if err != nil {
		return nil, err
	}

	userName, err := s.users.UserName(ctx, uid)
	if err != nil {
		userName = ""
	}

	return hub.NewSession(uid, userName, req.DeviceName, req.DeviceType), nil
}

// writePump drains the session's outbound queue onto the socket.
func (s *Server) writePump(conn *websocket.Conn, session *hub.Session) {
	for {
		select {
		case frame := <-session.Out():
			if err := conn.WriteJSON(frame); err != nil {
				session.Close()
				return
			}
		case <-session.Done():
			return
		}
	}
}

// readPump processes inbound frames in arrival order, which is what keeps
// fan-out FIFO per origin device. Unknown events are dropped, never fatal.
func (s *Server) readPump(conn *websocket.Conn, session *hub.Session, r *http.Request) {
	for {
		var frame protocol.Frame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}

		switch frame.Event {
		case protocol.EventJoinTeams:
			var req protocol.TeamsRequest
			if err := json.Unmarshal(frame.Data, &req); err != nil {
				continue
			}
			if _, err := s.hub.JoinTeams(r.Context(), session, req.TeamIDs); err != nil {
				s.logger.Warn(r.Context(), "join-teams failed", "error", err)
			}
		case protocol.EventLeaveTeams:
			var req protocol.TeamsRequest
			if err := json.Unmarshal(frame.Data, &req); err != nil {
				continue
			}
			s.hub.LeaveTeams(session, req.TeamIDs)
		case protocol.EventTeamTyping:
			var ev protocol.TypingEvent
			if err := json.Unmarshal(frame.Data, &ev); err != nil {
				continue
			}
			s.hub.Typing(session, ev)
		default:
			s.logger.Debug(r.Context(), "dropping unknown event", "event", frame.Event)
		}
	}
}

type errUnexpectedFrame string

func (e errUnexpectedFrame) Error() string {
	return "unexpected frame before auth: " + string(e)
}
