package session

import (
	"errors"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/augmenta-tech/augmenta-receiver/pkg/core"
	"github.com/google/uuid"
)

var (
	ErrActive   = errors.New("a session is already active")
	ErrNoActive = errors.New("no active session")
)

// Params describes the receiver settings a session is started with.
type Params struct {
	ProtocolVersion string
	Port            int
	Policy          string
	PolicyCount     int
	Settings        map[string]any
}

// Context holds the current recording session. It is safe for concurrent
// use: the host loop starts and ends sessions while loggers and sinks read.
type Context struct {
	mu      sync.RWMutex
	current *core.Session
	now     func() time.Time
}

// NewContext creates a Context with no active session.
func NewContext() *Context {
	return &Context{now: time.Now}
}

// Start opens a new session with a fresh id.
func (c *Context) Start(p Params) (core.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		return core.Session{}, ErrActive
	}
	s := &core.Session{
		ID:              uuid.NewString(),
		StartTime:       c.now(),
		ProtocolVersion: p.ProtocolVersion,
		Port:            p.Port,
		Policy:          p.Policy,
		PolicyCount:     p.PolicyCount,
		Settings:        maps.Clone(p.Settings),
	}
	c.current = s
	return clone(s), nil
}

// End closes the active session and returns it with EndTime set.
func (c *Context) End() (core.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return core.Session{}, ErrNoActive
	}
	c.current.EndTime = c.now()
	s := clone(c.current)
	c.current = nil
	return s, nil
}

// Current returns a copy of the active session.
func (c *Context) Current() (core.Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return core.Session{}, false
	}
	return clone(c.current), true
}

// ID returns the active session id, or "" when none is active.
func (c *Context) ID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return ""
	}
	return c.current.ID
}

// Set records a live setting change on the active session.
func (c *Context) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return
	}
	if c.current.Settings == nil {
		c.current.Settings = make(map[string]any)
	}
	c.current.Settings[key] = value
}

// Attrs returns log attributes describing the active session.
func (c *Context) Attrs() []slog.Attr {
	if id := c.ID(); id != "" {
		return []slog.Attr{slog.String("session", id)}
	}
	return nil
}

func clone(s *core.Session) core.Session {
	out := *s
	out.Settings = maps.Clone(s.Settings)
	return out
}
