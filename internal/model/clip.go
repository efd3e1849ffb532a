// Package model defines the clip types shared by client and server layers.
package model

import "time"

// ClipType classifies clip content. Values are produced by the classify
// package and travel on the wire unchanged.
type ClipType string

const (
	ClipTypeJSON  ClipType = "json"
	ClipTypeURL   ClipType = "url"
	ClipTypeUUID  ClipType = "uuid"
	ClipTypeEmail ClipType = "email"
	ClipTypeColor ClipType = "color"
	ClipTypeCode  ClipType = "code"
	ClipTypeText  ClipType = "text"
)

// Clip is one captured piece of clipboard content plus its metadata.
//
// Content is immutable once persisted: pin/unpin and password operations are
// field patches applied by the server, never content rewrites, so concurrent
// edits reduce to last-writer-wins per field by server receipt order.
type Clip struct {
	// ID is assigned by the server on first successful persist.
	ID string `json:"id"`
	// LocalID is the client-generated idempotency key assigned before the
	// first send. The server echoes it on every persist confirmation.
	LocalID string `json:"localId"`

	Content string   `json:"content"`
	Type    ClipType `json:"type"`

	OwnerID      string `json:"ownerId"`
	DeviceOrigin string `json:"deviceOrigin"`
	// TeamID is empty for personal clips.
	TeamID string `json:"teamId,omitempty"`

	Pinned bool `json:"pinned"`

	// Encrypted marks that Content is empty and CipherEnvelope carries the
	// serialized hex(iv):hex(authTag):hex(ciphertext) envelope instead.
	Encrypted      bool   `json:"encrypted"`
	CipherEnvelope string `json:"cipherEnvelope,omitempty"`

	// ContentURL is set instead of Content when the payload was offloaded
	// to object storage. Clients fetch it through a presigned GET URL.
	ContentURL string `json:"contentUrl,omitempty"`

	PasswordProtected bool `json:"passwordProtected"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Personal reports whether the clip belongs to a single user rather than a
// team room.
func (c *Clip) Personal() bool { return c.TeamID == "" }
