// Package hub holds the in-memory session registry and the fan-out logic of
// the real-time channel. The registry is rebuilt empty on restart: clients
// re-handshake and re-join their rooms, and anything missed in between is
// recovered over REST.
package hub

import (
	"context"
	"sync"

	"github.com/Aphrodine-wq/clipsync/internal/logging"
	"github.com/Aphrodine-wq/clipsync/internal/model"
	"github.com/Aphrodine-wq/clipsync/internal/protocol"
	"github.com/Aphrodine-wq/clipsync/internal/server/repositories/teams"
)

// Hub indexes live sessions by user and by team room and broadcasts clip
// events to them. All writes are validated and persisted before they reach
// the hub; the hub only distributes.
type Hub struct {
	teams  teams.Repository
	logger logging.Logger

	mu           sync.Mutex
	byUser       map[string]map[*Session]struct{}
	byTeam       map[string]map[*Session]struct{}
	sessionTeams map[*Session]map[string]struct{}
}

// New constructs an empty hub using teamRepo for membership authorization.
func New(teamRepo teams.Repository, logger logging.Logger) *Hub {
	return &Hub{
		teams:        teamRepo,
		logger:       logger,
		byUser:       make(map[string]map[*Session]struct{}),
		byTeam:       make(map[string]map[*Session]struct{}),
		sessionTeams: make(map[*Session]map[string]struct{}),
	}
}

// Register adds a session to the user index.
func (h *Hub) Register(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.byUser[s.UserID] == nil {
		h.byUser[s.UserID] = make(map[*Session]struct{})
	}
	h.byUser[s.UserID][s] = struct{}{}
	h.sessionTeams[s] = make(map[string]struct{})
}

// Unregister removes a session from every index and closes it.
func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	for teamID := range h.sessionTeams[s] {
		delete(h.byTeam[teamID], s)
		if len(h.byTeam[teamID]) == 0 {
			delete(h.byTeam, teamID)
		}
	}
	delete(h.sessionTeams, s)
	if peers := h.byUser[s.UserID]; peers != nil {
		delete(peers, s)
		if len(peers) == 0 {
			delete(h.byUser, s.UserID)
		}
	}
	h.mu.Unlock()
	s.Close()
}

// JoinTeams subscribes the session to each team room it is actually a member
// of; non-member ids are skipped. Returns the ids that were joined.
func (h *Hub) JoinTeams(ctx context.Context, s *Session, teamIDs []string) ([]string, error) {
	var joined []string
	for _, teamID := range teamIDs {
		member, err := h.teams.IsMember(ctx, teamID, s.UserID)
		if err != nil {
			return joined, err
		}
		if !member {
			h.logger.Warn(ctx, "join rejected for non-member", "team", teamID, "user", s.UserID)
			continue
		}
		h.mu.Lock()
		if h.byTeam[teamID] == nil {
			h.byTeam[teamID] = make(map[*Session]struct{})
		}
		h.byTeam[teamID][s] = struct{}{}
		if h.sessionTeams[s] != nil {
			h.sessionTeams[s][teamID] = struct{}{}
		}
		h.mu.Unlock()
		joined = append(joined, teamID)
	}
	return joined, nil
}

// JoinMemberTeams subscribes the session to every team it belongs to.
// Called on handshake, since room membership does not survive a restart.
func (h *Hub) JoinMemberTeams(ctx context.Context, s *Session) error {
	teamIDs, err := h.teams.MemberTeams(ctx, s.UserID)
	if err != nil {
		return err
	}
	_, err = h.JoinTeams(ctx, s, teamIDs)
	return err
}

// LeaveTeams unsubscribes the session from the given rooms.
func (h *Hub) LeaveTeams(s *Session, teamIDs []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, teamID := range teamIDs {
		delete(h.byTeam[teamID], s)
		if len(h.byTeam[teamID]) == 0 {
			delete(h.byTeam, teamID)
		}
		delete(h.sessionTeams[s], teamID)
	}
}

// BroadcastClipSaved fans a persisted clip out: personal clips to the
// owner's other devices, team clips to the team room. The session named by
// originSession is excluded; the origin already holds the clip and gets its
// confirmation on the REST response. Exclusion is by session id, not device
// name: device names are user-chosen and collide across users.
func (h *Hub) BroadcastClipSaved(clip *model.Clip, originSession string, updated bool) {
	if clip.Personal() {
		event := protocol.EventClipCreated
		if updated {
			event = protocol.EventClipUpdated
		}
		frame, err := protocol.NewFrame(event, protocol.ClipEvent{Clip: *clip})
		if err != nil {
			return
		}
		h.sendToUser(clip.OwnerID, originSession, frame)
		return
	}

	event := protocol.EventTeamClipCreated
	if updated {
		event = protocol.EventTeamClipUpdated
	}
	frame, err := protocol.NewFrame(event, protocol.TeamClipEvent{TeamID: clip.TeamID, Clip: *clip})
	if err != nil {
		return
	}
	h.sendToTeam(clip.TeamID, originSession, frame)
}

// BroadcastClipDeleted fans a delete out with the same scoping rules as
// BroadcastClipSaved.
func (h *Hub) BroadcastClipDeleted(clip *model.Clip, originSession string) {
	if clip.Personal() {
		frame, err := protocol.NewFrame(protocol.EventClipDeleted, protocol.ClipDeletedEvent{ClipID: clip.ID})
		if err != nil {
			return
		}
		h.sendToUser(clip.OwnerID, originSession, frame)
		return
	}

	frame, err := protocol.NewFrame(protocol.EventTeamClipDeleted, protocol.TeamClipDeletedEvent{TeamID: clip.TeamID, ClipID: clip.ID})
	if err != nil {
		return
	}
	h.sendToTeam(clip.TeamID, originSession, frame)
}

// Typing relays a presence signal to the team room, excluding the sender's
// session. Nothing is persisted and the relay is only done for rooms the
// sender has actually joined.
func (h *Hub) Typing(s *Session, ev protocol.TypingEvent) {
	h.mu.Lock()
	_, joined := h.sessionTeams[s][ev.TeamID]
	h.mu.Unlock()
	if !joined {
		return
	}

	ev.UserID = s.UserID
	ev.UserName = s.UserName
	frame, err := protocol.NewFrame(protocol.EventTeamTyping, ev)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for peer := range h.byTeam[ev.TeamID] {
		if peer == s {
			continue
		}
		if !peer.Send(frame) {
			h.logger.Warn(context.Background(), "typing frame dropped", "session", peer.ID)
		}
	}
}

// Sessions reports how many sessions a user currently has. Used by tests
// and diagnostics.
func (h *Hub) Sessions(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.byUser[userID])
}

func (h *Hub) sendToUser(userID, originSession string, frame protocol.Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for peer := range h.byUser[userID] {
		if peer.ID == originSession {
			continue
		}
		if !peer.Send(frame) {
			h.logger.Warn(context.Background(), "clip frame dropped", "session", peer.ID, "event", frame.Event)
		}
	}
}

func (h *Hub) sendToTeam(teamID, originSession string, frame protocol.Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for peer := range h.byTeam[teamID] {
		if peer.ID == originSession {
			continue
		}
		if !peer.Send(frame) {
			h.logger.Warn(context.Background(), "clip frame dropped", "session", peer.ID, "event", frame.Event)
		}
	}
}
