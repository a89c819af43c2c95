package worker

import (
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/augmenta-tech/augmenta-receiver/internal/dispatcher"
	"github.com/augmenta-tech/augmenta-receiver/internal/protocol"
	"github.com/augmenta-tech/augmenta-receiver/internal/registry"
)

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	Registry *registry.Registry
	Decoder  *protocol.Decoder
	Logger   *slog.Logger
}

// Stats counts inbound messages by outcome.
type Stats struct {
	Handled   uint64
	Malformed uint64
	Unrouted  uint64
	Muted     uint64
}

// Manager decodes inbound OSC messages and applies them to the registry.
// HandleMessage must be called from the goroutine that owns the registry.
type Manager struct {
	deps       Dependencies
	dispatcher *dispatcher.Dispatcher
	muted      atomic.Bool

	handled   atomic.Uint64
	malformed atomic.Uint64
	unrouted  atomic.Uint64
	dropped   atomic.Uint64
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies) *Manager {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Manager{deps: deps}
}

// SetMute drops every inbound message while set. Safe from any goroutine.
func (m *Manager) SetMute(muted bool) { m.muted.Store(muted) }

// Muted reports whether inbound messages are being dropped.
func (m *Manager) Muted() bool { return m.muted.Load() }

// Stats returns the message counters.
func (m *Manager) Stats() Stats {
	return Stats{
		Handled:   m.handled.Load(),
		Malformed: m.malformed.Load(),
		Unrouted:  m.unrouted.Load(),
		Muted:     m.dropped.Load(),
	}
}

// HandleMessage is the single ingress for transport messages.
// Failures are logged and counted, never returned.
func (m *Manager) HandleMessage(address string, args []any) {
	m.Handle(dispatcher.Event{Address: address, Args: args, Timestamp: time.Now()})
}

// Handle dispatches an already-built event.
func (m *Manager) Handle(e dispatcher.Event) {
	if m.muted.Load() {
		m.dropped.Add(1)
		return
	}
	if m.dispatcher == nil {
		m.deps.Logger.Error("message received before handlers were registered", "address", e.Address)
		return
	}

	if !m.dispatcher.HasHandler(e.Address) {
		m.unrouted.Add(1)
		m.deps.Logger.Debug("ignoring unrouted address", "address", e.Address, "args", len(e.Args))
		return
	}

	_, err := m.dispatcher.Dispatch(e)
	switch {
	case err == nil:
		m.handled.Add(1)
	case errors.Is(err, dispatcher.ErrUnknownAddress), errors.Is(err, protocol.ErrUnrecognizedAddress):
		m.unrouted.Add(1)
		m.deps.Logger.Debug("ignoring unrecognized address", "address", e.Address, "args", len(e.Args))
	case errors.Is(err, protocol.ErrMalformed):
		m.malformed.Add(1)
		m.deps.Logger.Warn("dropping malformed message", "address", e.Address, "error", err)
	default:
		m.deps.Logger.Error("failed to handle message", "address", e.Address, "error", err)
	}
}
