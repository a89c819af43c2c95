// Package engine runs the host loop that owns the registry: inbound messages
// and the liveness sweep are processed one at a time on a single goroutine.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/augmenta-tech/augmenta-receiver/internal/dispatcher"
	"github.com/augmenta-tech/augmenta-receiver/internal/queue"
	"github.com/augmenta-tech/augmenta-receiver/internal/registry"
	"github.com/augmenta-tech/augmenta-receiver/internal/worker"
)

const (
	DefaultTickRate  = 60.0
	DefaultInboxSize = 65536
)

// Config configures the loop.
type Config struct {
	// TickRate is the liveness sweep frequency in Hz.
	TickRate float64
	// InboxSize bounds pending messages; the oldest are dropped on overflow.
	InboxSize int
	Logger    *slog.Logger
}

// Engine funnels transport callbacks into one goroutine.
type Engine struct {
	worker   *worker.Manager
	registry *registry.Registry
	logger   *slog.Logger
	interval time.Duration

	inbox *queue.Queue[dispatcher.Event]
	tasks *queue.Queue[func()]

	// set once Run is stopping; the registry is closed after that
	stopped atomic.Bool
	late    atomic.Uint64

	inboxSize metric.Int64ObservableGauge
	dropped   metric.Int64Counter
	ticks     metric.Int64Counter
}

// New creates an engine around an already wired worker and registry.
func New(cfg Config, w *worker.Manager, r *registry.Registry) (*Engine, error) {
	if cfg.TickRate <= 0 {
		cfg.TickRate = DefaultTickRate
	}
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = DefaultInboxSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	e := &Engine{
		worker:   w,
		registry: r,
		logger:   cfg.Logger,
		interval: time.Duration(float64(time.Second) / cfg.TickRate),
		inbox:    queue.NewBounded[dispatcher.Event](cfg.InboxSize),
		tasks:    queue.New[func()](),
	}

	m := meter()
	var err error

	e.inboxSize, err = m.Int64ObservableGauge(
		"engine.inbox.size",
		metric.WithDescription("Messages waiting for the host loop"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating inbox gauge: %w", err)
	}
	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			o.ObserveInt64(e.inboxSize, int64(e.inbox.Len()))
			return nil
		},
		e.inboxSize,
	)
	if err != nil {
		return nil, fmt.Errorf("registering inbox callback: %w", err)
	}

	e.dropped, err = m.Int64Counter(
		"engine.inbox.dropped",
		metric.WithDescription("Messages dropped because the inbox was full"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	e.ticks, err = m.Int64Counter(
		"engine.ticks",
		metric.WithDescription("Liveness sweeps run"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating tick counter: %w", err)
	}

	return e, nil
}

// Interval returns the time between sweeps.
func (e *Engine) Interval() time.Duration { return e.interval }

// Enqueue queues a transport message. Safe from any goroutine.
func (e *Engine) Enqueue(address string, args []any) {
	if e.stopped.Load() {
		e.late.Add(1)
		return
	}
	if n := e.inbox.Push(dispatcher.Event{Address: address, Args: args, Timestamp: time.Now()}); n > 0 {
		e.dropped.Add(context.Background(), int64(n))
		e.logger.Warn("inbox full, dropping oldest messages", "dropped", n)
	}
}

// Do runs fn on the loop goroutine before the next queued message.
// Use it for live configuration changes and registry reads.
func (e *Engine) Do(fn func()) {
	e.tasks.Push(fn)
}

// InboxLen returns the number of messages waiting.
func (e *Engine) InboxLen() int { return e.inbox.Len() }

// InboxDropped returns the total number of messages lost to overflow.
func (e *Engine) InboxDropped() uint64 { return e.inbox.Dropped() }

// Late returns the number of messages discarded because they arrived
// after the loop stopped.
func (e *Engine) Late() uint64 { return e.late.Load() }

// Stopped reports whether Run has stopped and closed the registry.
func (e *Engine) Stopped() bool { return e.stopped.Load() }

func (e *Engine) drain() {
	for _, fn := range e.tasks.GetAndEmpty() {
		fn()
	}
	for _, ev := range e.inbox.GetAndEmpty() {
		e.worker.Handle(ev)
	}
}

// Step processes everything queued so far, then sweeps with the given elapsed time.
// Run calls it once per tick; hosts with their own frame loop call it directly.
func (e *Engine) Step(elapsed time.Duration) {
	if e.stopped.Load() {
		return
	}
	e.drain()
	e.registry.Tick(elapsed)
	e.ticks.Add(context.Background(), 1)
}

// Run processes messages as they arrive and sweeps at the tick rate until ctx
// is cancelled, then closes the registry. Stop the transport before cancelling
// ctx: messages enqueued once the loop is stopping are discarded and counted
// by Late.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.logger.Info("engine started", "interval", e.interval)
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			e.stopped.Store(true)
			e.drain()
			e.registry.Close()
			e.logger.Info("engine stopped", "dropped", e.inbox.Dropped())
			return nil
		case <-e.tasks.Ready():
			e.drain()
		case <-e.inbox.Ready():
			e.drain()
		case now := <-ticker.C:
			e.Step(now.Sub(last))
			last = now
		}
	}
}
