// Package monitor takes periodic status snapshots of a running receiver.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/augmenta-tech/augmenta-receiver/internal/engine"
	"github.com/augmenta-tech/augmenta-receiver/internal/geo"
	"github.com/augmenta-tech/augmenta-receiver/internal/registry"
	"github.com/augmenta-tech/augmenta-receiver/internal/session"
	"github.com/augmenta-tech/augmenta-receiver/internal/worker"
	"github.com/augmenta-tech/augmenta-receiver/pkg/core"
)

// DefaultInterval is used when Dependencies.Interval is not set.
const DefaultInterval = 5 * time.Second

// Sink receives every status snapshot.
type Sink interface {
	RecordStatus(s *core.ReceiverStatus) error
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Engine   *engine.Engine
	Registry *registry.Registry
	Worker   *worker.Manager
	Session  *session.Context
	Logger   *slog.Logger
	Interval time.Duration
	// Scaling converts the plane to meters for the coverage figure.
	Scaling float64
	// StatusFile, when set, is rewritten with the last snapshot as JSON.
	StatusFile string
	Sinks      []Sink
	Now        func() time.Time
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	last      core.ReceiverStatus
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Interval <= 0 {
		deps.Interval = DefaultInterval
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Scaling <= 0 {
		deps.Scaling = 1
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Last returns the most recent snapshot.
func (s *Service) Last() core.ReceiverStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// Collect builds a snapshot. It reads the registry and must run on the
// engine goroutine; use Snapshot from anywhere else.
func (s *Service) Collect() core.ReceiverStatus {
	st := core.ReceiverStatus{
		Time:    s.deps.Now(),
		Live:    s.deps.Registry.Len(),
		Visible: s.deps.Registry.VisibleLen(),
		Scene:   s.deps.Registry.Scene(),
	}
	if s.deps.Session != nil {
		st.SessionID = s.deps.Session.ID()
	}
	cov, err := geo.Coverage(s.deps.Registry.Visible(), st.Scene, s.deps.Scaling)
	switch {
	case err == nil:
		st.Coverage = cov
	case !errors.Is(err, geo.ErrEmptyScene):
		s.deps.Logger.Warn("Failed to compute coverage", "error", err)
	}
	if s.deps.Engine != nil {
		st.InboxLen = s.deps.Engine.InboxLen()
		st.InboxDropped = s.deps.Engine.InboxDropped()
	}
	if s.deps.Worker != nil {
		st.Muted = s.deps.Worker.Muted()
	}
	return st
}

// Snapshot collects a status on the engine goroutine and waits for it.
func (s *Service) Snapshot(ctx context.Context) (core.ReceiverStatus, error) {
	if s.deps.Engine == nil {
		return s.Collect(), nil
	}

	ch := make(chan core.ReceiverStatus, 1)
	s.deps.Engine.Do(func() { ch <- s.Collect() })
	select {
	case st := <-ch:
		return st, nil
	case <-ctx.Done():
		return core.ReceiverStatus{}, ctx.Err()
	}
}

// Report logs st, stores it and forwards it to every sink.
func (s *Service) Report(st core.ReceiverStatus) error {
	s.mu.Lock()
	s.last = st
	s.mu.Unlock()

	attrs := []any{
		"session", st.SessionID,
		"live", st.Live,
		"visible", st.Visible,
		"sceneObjects", st.Scene.ObjectCount,
		"inbox", st.InboxLen,
		"inboxDropped", st.InboxDropped,
		"muted", st.Muted,
	}
	if s.deps.Worker != nil {
		stats := s.deps.Worker.Stats()
		attrs = append(attrs, "handled", stats.Handled, "malformed", stats.Malformed, "unrouted", stats.Unrouted)
	}
	s.deps.Logger.Info("Receiver status", attrs...)

	var errs []error
	if s.deps.StatusFile != "" {
		errs = append(errs, writeStatusFile(s.deps.StatusFile, st))
	}
	for _, sink := range s.deps.Sinks {
		errs = append(errs, sink.RecordStatus(&st))
	}
	return errors.Join(errs...)
}

func writeStatusFile(path string, st core.ReceiverStatus) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

// Start starts the status monitor goroutine
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
			close(done)
		}()

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		s.deps.Logger.Debug("Starting status monitor", "interval", s.deps.Interval)
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				snapCtx, cancel := context.WithTimeout(ctx, s.deps.Interval)
				st, err := s.Snapshot(snapCtx)
				cancel()
				if err != nil {
					s.deps.Logger.Debug("Status snapshot skipped", "error", err)
					continue
				}
				if st.SessionID == "" && s.deps.Session != nil {
					continue
				}
				if err := s.Report(st); err != nil {
					s.deps.Logger.Warn("Failed to forward status", "error", err)
				}
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()
	<-done
}
