// Package websocket streams recorded events to a remote consumer.
package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/augmenta-tech/augmenta-receiver/internal/geo"
	"github.com/augmenta-tech/augmenta-receiver/pkg/core"
	"github.com/augmenta-tech/augmenta-receiver/pkg/streaming"
)

// Config holds WebSocket backend configuration.
type Config struct {
	URL     string
	Secret  string
	Scaling float64
	Logger  *slog.Logger
}

// Backend streams session data over WebSocket.
// It implements storage.Backend but not storage.Uploadable.
type Backend struct {
	conn *connection
	cfg  Config

	// scene is only touched from the engine goroutine
	scene     core.Scene
	sessionID string
}

// New creates a new WebSocket storage backend.
func New(cfg Config) *Backend {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Scaling <= 0 {
		cfg.Scaling = 1
	}
	return &Backend{
		conn: newConnection(cfg.Logger),
		cfg:  cfg,
	}
}

// HTTPToWS converts an HTTP(S) URL to a WebSocket URL.
func HTTPToWS(httpURL string) string {
	s := strings.TrimRight(httpURL, "/")
	s = strings.Replace(s, "https://", "wss://", 1)
	s = strings.Replace(s, "http://", "ws://", 1)
	return s
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	return b.conn.dial(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.conn.close()
}

// Dropped returns the number of messages dropped because the send buffer was full.
func (b *Backend) Dropped() uint64 {
	return b.conn.droppedCount()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := streaming.Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelope marshals the payload into an Envelope and pushes it
// to the write loop (fire-and-forget).
func (b *Backend) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	b.conn.send(data)
	return nil
}

// sendEnvelopeAndWait marshals the payload and waits for a server ack.
func (b *Backend) sendEnvelopeAndWait(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	return b.conn.sendAndWait(data, msgType, ackTimeout)
}

// StartSession sends the session and waits for server ack.
func (b *Backend) StartSession(s *core.Session) error {
	data, err := marshalEnvelope(streaming.TypeStartSession, streaming.StartSessionPayload{Session: s})
	if err != nil {
		return err
	}

	// Cache for reconnect replay.
	b.conn.mu.Lock()
	b.conn.cachedStartMsg = data
	b.conn.mu.Unlock()
	b.sessionID = s.ID

	return b.conn.sendAndWait(data, streaming.TypeStartSession, ackTimeout)
}

// EndSession sends end_session and waits for server ack.
func (b *Backend) EndSession(s *core.Session) error {
	payload := streaming.EndSessionPayload{SessionID: b.sessionID, EndTime: time.Now()}
	if s != nil {
		payload.SessionID = s.ID
		if !s.EndTime.IsZero() {
			payload.EndTime = s.EndTime
		}
	}
	err := b.sendEnvelopeAndWait(streaming.TypeEndSession, payload)

	// Clear cached state regardless of error.
	b.conn.mu.Lock()
	b.conn.cachedStartMsg = nil
	b.conn.mu.Unlock()
	b.sessionID = ""

	return err
}

func (b *Backend) sendObject(e *core.ObjectEvent) error {
	world := geo.WorldPosition(e.Object, b.scene, b.cfg.Scaling, true)
	return b.sendEnvelope(streaming.TypeFor(e.Type), streaming.NewObjectPayload(e, world))
}

func (b *Backend) RecordEntered(e *core.ObjectEvent) error {
	return b.sendObject(e)
}

func (b *Backend) RecordUpdated(e *core.ObjectEvent) error {
	return b.sendObject(e)
}

func (b *Backend) RecordLeft(e *core.ObjectEvent) error {
	return b.sendObject(e)
}

func (b *Backend) RecordScene(e *core.SceneEvent) error {
	b.scene = e.Scene
	return b.sendEnvelope(streaming.TypeScene, streaming.ScenePayload{Time: e.Time, Scene: e.Scene})
}

func (b *Backend) RecordStatus(s *core.ReceiverStatus) error {
	return b.sendEnvelope(streaming.TypeStatus, s)
}
