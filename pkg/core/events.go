// pkg/core/events.go
package core

import "time"

// EventType is the kind of lifecycle notification raised for an object.
type EventType uint8

const (
	ObjectEntered EventType = iota
	ObjectUpdated
	ObjectLeft
)

func (t EventType) String() string {
	switch t {
	case ObjectEntered:
		return "entered"
	case ObjectUpdated:
		return "updated"
	case ObjectLeft:
		return "left"
	default:
		return "unknown"
	}
}

// LeaveReason says why an ObjectLeft event was raised.
type LeaveReason uint8

const (
	LeaveNone LeaveReason = iota
	// LeaveMessage is an explicit leave message from the sender.
	LeaveMessage
	// LeaveTimeout is a liveness sweep eviction.
	LeaveTimeout
	// LeavePolicy means the object slid out of the selection window but is still tracked.
	LeavePolicy
	// LeaveFlush is emitted for every visible object when the registry closes.
	LeaveFlush
)

func (r LeaveReason) String() string {
	switch r {
	case LeaveMessage:
		return "message"
	case LeaveTimeout:
		return "timeout"
	case LeavePolicy:
		return "policy"
	case LeaveFlush:
		return "flush"
	default:
		return "none"
	}
}

// ObjectEvent is dispatched to subscribers of the object hubs.
// Object is a copy; subscribers may retain it.
type ObjectEvent struct {
	Type    EventType
	Object  TrackedObject
	Channel Channel
	Reason  LeaveReason
	// Synthetic is set when the event was produced by the selection window or a flush
	// rather than by a sender message or timeout.
	Synthetic bool
	Time      time.Time
}

// SceneEvent is dispatched to subscribers of the scene hub.
type SceneEvent struct {
	Scene Scene
	Time  time.Time
}
