// Package transport moves OSC packets over UDP.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/hypebeast/go-osc/osc"
)

// DefaultPort is the Augmenta default output port.
const DefaultPort = 12000

// Sink receives each OSC message in arrival order.
type Sink func(address string, args []any)

// ReceiverConfig configures a Receiver.
type ReceiverConfig struct {
	Host string
	Port int
	// ReadBuffer sets the socket receive buffer in bytes when positive.
	ReadBuffer int
	Logger     *slog.Logger
}

// Receiver reads OSC packets from one UDP socket at a time.
type Receiver struct {
	cfg    ReceiverConfig
	logger *slog.Logger
	server *osc.Server

	mu     sync.Mutex
	conn   net.PacketConn
	closed bool
	wake   chan struct{}

	packets  atomic.Uint64
	messages atomic.Uint64
}

// NewReceiver creates an unbound receiver.
func NewReceiver(cfg ReceiverConfig) *Receiver {
	if cfg.Host == "" {
		cfg.Host = "0.0.0.0"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Receiver{
		cfg:    cfg,
		logger: cfg.Logger,
		server: &osc.Server{},
		wake:   make(chan struct{}, 1),
	}
}

func (r *Receiver) listen(port int) (net.PacketConn, error) {
	addr := net.JoinHostPort(r.cfg.Host, strconv.Itoa(port))
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to bind OSC receiver on %s: %w", addr, err)
	}
	if udp, ok := conn.(*net.UDPConn); ok && r.cfg.ReadBuffer > 0 {
		if err := udp.SetReadBuffer(r.cfg.ReadBuffer); err != nil {
			r.logger.Warn("failed to set socket read buffer", "size", r.cfg.ReadBuffer, "error", err)
		}
	}
	return conn, nil
}

// Listen binds the configured port. A bind failure is returned once; the
// receiver stays idle until Rebind succeeds.
func (r *Receiver) Listen() error {
	return r.Rebind(r.cfg.Port)
}

// Rebind closes the current socket, then binds port. The old socket is
// always closed before the new one exists.
func (r *Receiver) Rebind(port int) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return net.ErrClosed
	}
	old := r.conn
	r.conn = nil
	r.mu.Unlock()

	if old != nil {
		old.Close()
	}

	conn, err := r.listen(port)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		conn.Close()
		return net.ErrClosed
	}
	r.conn = conn
	r.cfg.Port = conn.LocalAddr().(*net.UDPAddr).Port
	r.mu.Unlock()

	r.logger.Info("OSC receiver listening", "address", conn.LocalAddr().String())
	select {
	case r.wake <- struct{}{}:
	default:
	}
	return nil
}

// Addr returns the bound address, or nil when unbound.
func (r *Receiver) Addr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == nil {
		return nil
	}
	return r.conn.LocalAddr()
}

// Port returns the configured or bound port.
func (r *Receiver) Port() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg.Port
}

// Stats returns the number of packets and messages received.
func (r *Receiver) Stats() (packets, messages uint64) {
	return r.packets.Load(), r.messages.Load()
}

// Close releases the socket and stops Serve.
func (r *Receiver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	select {
	case r.wake <- struct{}{}:
	default:
	}
	if r.conn == nil {
		return nil
	}
	err := r.conn.Close()
	r.conn = nil
	return err
}

func (r *Receiver) current() (net.PacketConn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conn, r.closed
}

// Serve reads packets until ctx is cancelled or Close is called, passing
// every message, bundles flattened depth-first, to sink. Undecodable packets
// are logged and skipped.
func (r *Receiver) Serve(ctx context.Context, sink Sink) error {
	stop := context.AfterFunc(ctx, func() { r.Close() })
	defer stop()

	for {
		conn, closed := r.current()
		if closed {
			return nil
		}
		if conn == nil {
			<-r.wake
			continue
		}

		packet, err := r.server.ReceivePacket(conn)
		if err != nil {
			if now, closed := r.current(); closed || now != conn {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			r.logger.Warn("failed to read OSC packet", "error", err)
			continue
		}
		r.packets.Add(1)
		r.deliver(packet, sink)
	}
}

func (r *Receiver) deliver(p osc.Packet, sink Sink) {
	switch p := p.(type) {
	case *osc.Message:
		r.messages.Add(1)
		sink(p.Address, p.Arguments)
	case *osc.Bundle:
		for _, m := range p.Messages {
			r.messages.Add(1)
			sink(m.Address, m.Arguments)
		}
		for _, b := range p.Bundles {
			r.deliver(b, sink)
		}
	}
}
