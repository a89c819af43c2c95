package transport

import (
	"fmt"
	"time"

	"github.com/hypebeast/go-osc/osc"

	"github.com/augmenta-tech/augmenta-receiver/internal/protocol"
)

// Sender encodes protocol messages and sends them to one OSC destination.
type Sender struct {
	client  *osc.Client
	encoder *protocol.Encoder
}

func NewSender(host string, port int, enc *protocol.Encoder) *Sender {
	return &Sender{client: osc.NewClient(host, port), encoder: enc}
}

func (s *Sender) message(msg protocol.Message) (*osc.Message, error) {
	addr, args, err := s.encoder.Encode(msg)
	if err != nil {
		return nil, fmt.Errorf("error encoding %s message: %w", msg.Kind(), err)
	}
	return osc.NewMessage(addr, args...), nil
}

// Send sends one message as its own packet.
func (s *Sender) Send(msg protocol.Message) error {
	m, err := s.message(msg)
	if err != nil {
		return err
	}
	return s.client.Send(m)
}

// SendBundle sends messages together in one bundle packet.
func (s *Sender) SendBundle(msgs ...protocol.Message) error {
	b := osc.NewBundle(time.Now())
	for _, msg := range msgs {
		m, err := s.message(msg)
		if err != nil {
			return err
		}
		if err := b.Append(m); err != nil {
			return fmt.Errorf("error appending to bundle: %w", err)
		}
	}
	return s.client.Send(b)
}
