// Package protocol defines the wire-level events exchanged over the
// real-time channel and the JSON payloads they carry. Both client and
// server speak exactly this vocabulary; unknown events are dropped, never
// fatal.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/Aphrodine-wq/clipsync/internal/model"
)

// Event names on the real-time channel.
const (
	// Client -> server, first frame after the socket opens.
	EventAuth = "auth"
	// Server -> client, successful handshake reply.
	EventHello = "hello"

	// Personal clip fan-out.
	EventClipCreated = "clip:created"
	EventClipUpdated = "clip:updated"
	EventClipDeleted = "clip:deleted"

	// Team room fan-out.
	EventTeamClipCreated = "team-clip:created"
	EventTeamClipUpdated = "team-clip:updated"
	EventTeamClipDeleted = "team-clip:deleted"

	// Presence signal, never persisted.
	EventTeamTyping = "team:typing"

	// Client -> server room membership, arrays of team ids.
	EventJoinTeams  = "join-teams"
	EventLeaveTeams = "leave-teams"
)

// Frame is the envelope for every message on the real-time channel.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewFrame marshals data into a Frame for the given event.
func NewFrame(event string, data any) (Frame, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return Frame{}, fmt.Errorf("marshal %s frame: %w", event, err)
	}
	return Frame{Event: event, Data: b}, nil
}

// AuthRequest is the handshake payload a device sends as its first frame.
type AuthRequest struct {
	Token      string `json:"token"`
	DeviceName string `json:"deviceName"`
	DeviceType string `json:"deviceType"`
}

// Hello confirms the handshake.
type Hello struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
}

// ClipEvent carries a full clip for created/updated events.
type ClipEvent struct {
	Clip model.Clip `json:"clip"`
}

// ClipDeletedEvent carries just the id for deletes.
type ClipDeletedEvent struct {
	ClipID string `json:"clipId"`
}

// TeamClipEvent scopes a clip event to a team room.
type TeamClipEvent struct {
	TeamID string     `json:"teamId"`
	Clip   model.Clip `json:"clip"`
}

// TeamClipDeletedEvent scopes a delete to a team room.
type TeamClipDeletedEvent struct {
	TeamID string `json:"teamId"`
	ClipID string `json:"clipId"`
}

// TypingEvent is the pure presence signal for team rooms.
type TypingEvent struct {
	TeamID   string `json:"teamId"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	IsTyping bool   `json:"isTyping"`
}

// TeamsRequest is the payload for join-teams / leave-teams.
type TeamsRequest struct {
	TeamIDs []string `json:"teamIds"`
}
