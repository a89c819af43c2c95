// Package streaming defines the messages a receiver streams to a remote
// consumer over WebSocket.
package streaming

import (
	"encoding/json"
	"time"

	"github.com/augmenta-tech/augmenta-receiver/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeStartSession  = "start_session"
	TypeEndSession    = "end_session"
	TypeObjectEntered = "object_entered"
	TypeObjectUpdated = "object_updated"
	TypeObjectLeft    = "object_left"
	TypeScene         = "scene"
	TypeStatus        = "status"
	TypeAck           = "ack"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// StartSessionPayload opens a session on the consumer side.
type StartSessionPayload struct {
	Session *core.Session `json:"session"`
}

// EndSessionPayload closes the session opened by StartSessionPayload.
type EndSessionPayload struct {
	SessionID string    `json:"sessionId"`
	EndTime   time.Time `json:"endTime"`
}

// ObjectPayload carries one object lifecycle event. World is the
// centroid in meters, lifted to half the object height.
type ObjectPayload struct {
	Time      time.Time          `json:"time"`
	Channel   string             `json:"channel"`
	Reason    string             `json:"reason,omitempty"`
	Synthetic bool               `json:"synthetic,omitempty"`
	Object    core.TrackedObject `json:"object"`
	World     core.Vector3       `json:"world"`
}

// ScenePayload carries a scene update.
type ScenePayload struct {
	Time  time.Time  `json:"time"`
	Scene core.Scene `json:"scene"`
}

// NewObjectPayload builds the payload for e.
func NewObjectPayload(e *core.ObjectEvent, world core.Vector3) ObjectPayload {
	p := ObjectPayload{
		Time:      e.Time,
		Channel:   e.Channel.String(),
		Synthetic: e.Synthetic,
		Object:    e.Object,
		World:     world,
	}
	if e.Type == core.ObjectLeft {
		p.Reason = e.Reason.String()
	}
	return p
}

// TypeFor returns the message type of an object event.
func TypeFor(t core.EventType) string {
	switch t {
	case core.ObjectEntered:
		return TypeObjectEntered
	case core.ObjectLeft:
		return TypeObjectLeft
	default:
		return TypeObjectUpdated
	}
}
