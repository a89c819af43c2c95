package worker

import (
	"fmt"

	"github.com/augmenta-tech/augmenta-receiver/internal/dispatcher"
	"github.com/augmenta-tech/augmenta-receiver/internal/protocol"
)

// RegisterHandlers registers the address family of the configured protocol
// version. Addresses of the other version stay unrouted.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	m.dispatcher = d
	v := m.deps.Decoder.Version()

	for _, addr := range protocol.Addresses(v) {
		kind, _, _ := protocol.Lookup(v, addr)
		switch kind {
		case protocol.KindEnter, protocol.KindUpdate:
			d.Register(addr, m.handleObject)
		case protocol.KindLeave:
			d.Register(addr, m.handleLeave, dispatcher.Logged())
		case protocol.KindScene:
			d.Register(addr, m.handleScene, dispatcher.Logged())
		}
	}
	m.deps.Logger.Debug("routing addresses", "version", v.String(), "addresses", d.Addresses())
}

func (m *Manager) decode(e dispatcher.Event) (protocol.Message, error) {
	msg, err := m.deps.Decoder.Decode(e.Address, e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", e.Address, err)
	}
	return msg, nil
}

func (m *Manager) handleObject(e dispatcher.Event) (any, error) {
	msg, err := m.decode(e)
	if err != nil {
		return nil, err
	}
	obj, ok := msg.(*protocol.ObjectMessage)
	if !ok {
		return nil, fmt.Errorf("unexpected %s message on %s", msg.Kind(), e.Address)
	}
	m.deps.Registry.Upsert(obj)
	return obj.ID, nil
}

func (m *Manager) handleLeave(e dispatcher.Event) (any, error) {
	msg, err := m.decode(e)
	if err != nil {
		return nil, err
	}
	obj, ok := msg.(*protocol.ObjectMessage)
	if !ok {
		return nil, fmt.Errorf("unexpected %s message on %s", msg.Kind(), e.Address)
	}
	return m.deps.Registry.Leave(obj.ID, obj.Channel), nil
}

func (m *Manager) handleScene(e dispatcher.Event) (any, error) {
	msg, err := m.decode(e)
	if err != nil {
		return nil, err
	}
	scene, ok := msg.(*protocol.SceneMessage)
	if !ok {
		return nil, fmt.Errorf("unexpected %s message on %s", msg.Kind(), e.Address)
	}
	m.deps.Registry.UpdateScene(scene)
	return scene.ObjectCount, nil
}
