package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrUnknownAddress is returned by Dispatch when no handler matches the address.
var ErrUnknownAddress = errors.New("unknown address")

// Event represents an incoming OSC message.
type Event struct {
	Address   string
	Args      []any
	Timestamp time.Time
}

// HandlerFunc processes an event and returns a result.
type HandlerFunc func(Event) (any, error)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*config)

type config struct {
	logged bool
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

// Dispatcher routes events to registered handlers. Handlers run synchronously
// on the goroutine calling Dispatch. Registration is not safe concurrently with Dispatch.
type Dispatcher struct {
	handlers map[string]HandlerFunc
	logger   Logger

	// OTEL metrics
	processed metric.Int64Counter
	failed    metric.Int64Counter
	unrouted  metric.Int64Counter
}

// New creates a new Dispatcher with the given logger.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		logger:   logger,
	}

	m := meter()

	var err error

	d.processed, err = m.Int64Counter(
		"dispatcher.events.processed",
		metric.WithDescription("Total events handled without error"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}

	d.failed, err = m.Int64Counter(
		"dispatcher.events.failed",
		metric.WithDescription("Total events whose handler returned an error"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}

	d.unrouted, err = m.Int64Counter(
		"dispatcher.events.unrouted",
		metric.WithDescription("Total events with no registered handler"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating unrouted counter: %w", err)
	}

	return d, nil
}

// normalize strips one trailing slash so "/scene/" and "/scene" share a handler.
func normalize(address string) string {
	if len(address) > 1 {
		return strings.TrimSuffix(address, "/")
	}
	return address
}

// Register adds a handler for the given address with optional configuration.
func (d *Dispatcher) Register(address string, h HandlerFunc, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	address = normalize(address)
	handler := d.withMetrics(address, h)

	if cfg.logged {
		handler = d.withLogging(address, handler)
	}

	d.handlers[address] = handler
}

// Dispatch routes an event to its registered handler.
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	h, ok := d.handlers[normalize(e.Address)]
	if !ok {
		d.unrouted.Add(context.Background(), 1)
		return nil, fmt.Errorf("%w: %s", ErrUnknownAddress, e.Address)
	}
	return h(e)
}

// HasHandler returns true if a handler is registered for the address.
func (d *Dispatcher) HasHandler(address string) bool {
	_, ok := d.handlers[normalize(address)]
	return ok
}

// Addresses returns the registered addresses, sorted.
func (d *Dispatcher) Addresses() []string {
	out := make([]string, 0, len(d.handlers))
	for a := range d.handlers {
		out = append(out, a)
	}
	slices.Sort(out)
	return out
}

func (d *Dispatcher) withMetrics(address string, h HandlerFunc) HandlerFunc {
	attrs := metric.WithAttributes(attribute.String("address", address))
	return func(e Event) (any, error) {
		result, err := h(e)
		if err != nil {
			d.failed.Add(context.Background(), 1, attrs)
		} else {
			d.processed.Add(context.Background(), 1, attrs)
		}
		return result, err
	}
}

// withLogging logs at debug level only; the caller decides how loud a failure is.
func (d *Dispatcher) withLogging(address string, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		start := time.Now()
		d.logger.Debug("handling event", "address", address, "args", len(e.Args))

		result, err := h(e)

		if err != nil {
			d.logger.Debug("event failed", "address", address, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("event complete", "address", address, "duration", time.Since(start))
		}

		return result, err
	}
}
