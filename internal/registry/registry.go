// Package registry tracks live Augmenta objects, applies the selection
// window and raises lifecycle events to subscribers.
package registry

import (
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/augmenta-tech/augmenta-receiver/internal/protocol"
	"github.com/augmenta-tech/augmenta-receiver/pkg/core"
)

// ErrDuplicateID reports an id inserted twice into the entry order.
var ErrDuplicateID = errors.New("duplicate object id")

// DefaultTimeout is the inactivity after which an object is evicted.
const DefaultTimeout = time.Second

// Config holds the registry settings.
type Config struct {
	Timeout time.Duration
	Policy  Policy
	// FlushOnClose emits a Left event for every visible object on Close.
	FlushOnClose bool
	Logger       *slog.Logger
	// Now stamps events; defaults to time.Now.
	Now func() time.Time
}

type entry struct {
	obj     core.TrackedObject
	visible bool
}

// Registry is the single owner of tracked object state.
// It is not safe for concurrent use: every method must run on the host loop goroutine.
// The hubs may be subscribed to from any goroutine.
type Registry struct {
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time
	objects map[int]*entry
	order   []int
	scene   core.Scene
	closed  bool

	ObjectEntered Hub[core.ObjectEvent]
	ObjectUpdated Hub[core.ObjectEvent]
	ObjectLeft    Hub[core.ObjectEvent]
	SceneUpdated  Hub[core.SceneEvent]
}

// New creates an empty registry with a zero-size scene.
func New(cfg Config) *Registry {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Registry{
		cfg:     cfg,
		logger:  cfg.Logger,
		now:     cfg.Now,
		objects: make(map[int]*entry),
	}
}

// pending is an event computed during a mutation and published once state is settled.
type pending struct {
	hub *Hub[core.ObjectEvent]
	ev  core.ObjectEvent
}

func (r *Registry) event(t core.EventType, e *entry, ch core.Channel, reason core.LeaveReason, synthetic bool) pending {
	hub := &r.ObjectUpdated
	switch t {
	case core.ObjectEntered:
		hub = &r.ObjectEntered
	case core.ObjectLeft:
		hub = &r.ObjectLeft
	}
	return pending{hub: hub, ev: core.ObjectEvent{
		Type:      t,
		Object:    e.obj.Clone(),
		Channel:   ch,
		Reason:    reason,
		Synthetic: synthetic,
		Time:      r.now(),
	}}
}

func publish(evs []pending) {
	for _, p := range evs {
		p.hub.Publish(p.ev)
	}
}

// Apply routes a decoded message. Messages after Close are ignored.
func (r *Registry) Apply(msg protocol.Message) {
	switch m := msg.(type) {
	case *protocol.ObjectMessage:
		if m.Type == protocol.KindLeave {
			r.Leave(m.ID, m.Channel)
			return
		}
		r.Upsert(m)
	case *protocol.SceneMessage:
		r.UpdateScene(m)
	}
}

// Upsert creates the object on first sight or merges the carried fields into it.
// Either way its inactivity is reset.
func (r *Registry) Upsert(m *protocol.ObjectMessage) {
	if r.closed {
		return
	}
	e, ok := r.objects[m.ID]
	if !ok {
		e = &entry{obj: core.TrackedObject{ID: m.ID}}
		r.insert(m.ID, m.OrderIndex)
		r.objects[m.ID] = e
		r.reindex()
	}
	m.MergeInto(&e.obj)
	e.obj.InactiveTime = 0

	publish(r.reconcile(e, m.Channel))
}

// Leave removes a live object on an explicit leave message. Unknown ids are ignored.
func (r *Registry) Leave(id int, ch core.Channel) bool {
	if r.closed {
		return false
	}
	evs, ok := r.remove(id, ch, core.LeaveMessage)
	if !ok {
		return false
	}
	publish(append(evs, r.reconcile(nil, core.ChannelMain)...))
	return true
}

// UpdateScene overwrites the scene geometry. The selection window is
// re-evaluated since Newest depends on the reported object count.
func (r *Registry) UpdateScene(m *protocol.SceneMessage) {
	if r.closed {
		return
	}
	m.Apply(&r.scene)
	r.SceneUpdated.Publish(core.SceneEvent{Scene: r.scene, Time: r.now()})
	publish(r.reconcile(nil, core.ChannelMain))
}

// Tick advances every object's inactivity by elapsed and evicts those that
// reached the timeout. Expired ids are collected before any is removed.
func (r *Registry) Tick(elapsed time.Duration) {
	if r.closed {
		return
	}
	var expired []int
	for _, id := range r.order {
		e := r.objects[id]
		e.obj.InactiveTime += elapsed
		if e.obj.InactiveTime >= r.cfg.Timeout {
			expired = append(expired, id)
		}
	}
	if len(expired) == 0 {
		return
	}

	var evs []pending
	for _, id := range expired {
		p, _ := r.remove(id, core.ChannelMain, core.LeaveTimeout)
		evs = append(evs, p...)
	}
	r.logger.Debug("objects timed out", "count", len(expired), "live", len(r.order))
	evs = append(evs, r.reconcile(nil, core.ChannelMain)...)
	publish(evs)
}

// RemoveAll drops every object, emitting a synthetic Left for each visible one.
func (r *Registry) RemoveAll() {
	var evs []pending
	for _, id := range r.order {
		e := r.objects[id]
		if e.visible {
			e.visible = false
			evs = append(evs, r.event(core.ObjectLeft, e, core.ChannelMain, core.LeaveFlush, true))
		}
	}
	clear(r.objects)
	r.order = r.order[:0]
	publish(evs)
}

// Close stops the registry. Later messages and ticks are ignored.
func (r *Registry) Close() {
	if r.closed {
		return
	}
	if r.cfg.FlushOnClose {
		r.RemoveAll()
	} else {
		clear(r.objects)
		r.order = r.order[:0]
	}
	r.closed = true
}

// SetPolicy changes the selection window and re-evaluates visibility immediately.
func (r *Registry) SetPolicy(p Policy) {
	r.cfg.Policy = p
	if !r.closed {
		publish(r.reconcile(nil, core.ChannelMain))
	}
}

// SetTimeout changes the eviction timeout; it applies from the next Tick.
func (r *Registry) SetTimeout(d time.Duration) { r.cfg.Timeout = d }

// SetFlushOnClose toggles the synthetic Left flush on Close.
func (r *Registry) SetFlushOnClose(v bool) { r.cfg.FlushOnClose = v }

func (r *Registry) Policy() Policy         { return r.cfg.Policy }
func (r *Registry) Timeout() time.Duration { return r.cfg.Timeout }
func (r *Registry) Closed() bool           { return r.closed }
func (r *Registry) Scene() core.Scene      { return r.scene }

// Len returns the number of live objects, visible or not.
func (r *Registry) Len() int { return len(r.order) }

// VisibleLen returns the number of objects inside the selection window.
func (r *Registry) VisibleLen() int {
	n := 0
	for _, e := range r.objects {
		if e.visible {
			n++
		}
	}
	return n
}

// Object returns a copy of a live object.
func (r *Registry) Object(id int) (core.TrackedObject, bool) {
	e, ok := r.objects[id]
	if !ok {
		return core.TrackedObject{}, false
	}
	return e.obj.Clone(), true
}

// IsVisible reports whether a live object is inside the selection window.
func (r *Registry) IsVisible(id int) bool {
	e, ok := r.objects[id]
	return ok && e.visible
}

// IDs returns the live ids in entry order.
func (r *Registry) IDs() []int { return slices.Clone(r.order) }

// Objects returns copies of all live objects in entry order.
func (r *Registry) Objects() []core.TrackedObject {
	out := make([]core.TrackedObject, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.objects[id].obj.Clone())
	}
	return out
}

// Visible returns copies of the objects inside the selection window, in entry order.
func (r *Registry) Visible() []core.TrackedObject {
	out := make([]core.TrackedObject, 0, len(r.order))
	for _, id := range r.order {
		if e := r.objects[id]; e.visible {
			out = append(out, e.obj.Clone())
		}
	}
	return out
}

// insert places id in the entry order. The sender's order index is used as a
// position hint when it falls inside the current sequence; otherwise id is appended.
func (r *Registry) insert(id, hint int) {
	if i := slices.Index(r.order, id); i >= 0 {
		r.invariant(false, ErrDuplicateID, "id %d already at rank %d", id, i)
		r.order = slices.Delete(r.order, i, i+1)
	}
	if hint >= 0 && hint <= len(r.order) {
		r.order = slices.Insert(r.order, hint, id)
		return
	}
	r.order = append(r.order, id)
}

func (r *Registry) reindex() {
	for rank, id := range r.order {
		r.objects[id].obj.OrderIndex = rank
	}
}

// remove deletes id and returns its Left event when it was visible.
func (r *Registry) remove(id int, ch core.Channel, reason core.LeaveReason) ([]pending, bool) {
	e, ok := r.objects[id]
	if !ok {
		return nil, false
	}
	delete(r.objects, id)
	if i := slices.Index(r.order, id); i >= 0 {
		r.order = slices.Delete(r.order, i, i+1)
	}
	r.reindex()
	if !e.visible {
		return nil, true
	}
	e.visible = false
	return []pending{r.event(core.ObjectLeft, e, ch, reason, false)}, true
}

// reconcile brings visibility in line with the selection window. Objects
// leaving the window are reported first, then the object touched by the
// current message, then objects that slid into the window. affected is nil
// when no message touched an object.
func (r *Registry) reconcile(affected *entry, ch core.Channel) []pending {
	var evs, entering []pending
	live := len(r.order)
	for rank, id := range r.order {
		e := r.objects[id]
		want := r.cfg.Policy.Desired(rank, live, r.scene.ObjectCount)
		switch {
		case e == affected:
			continue
		case e.visible && !want:
			e.visible = false
			evs = append(evs, r.event(core.ObjectLeft, e, core.ChannelMain, core.LeavePolicy, true))
		case !e.visible && want:
			e.visible = true
			entering = append(entering, r.event(core.ObjectEntered, e, core.ChannelMain, core.LeaveNone, true))
		}
	}

	if e := affected; e != nil {
		want := r.cfg.Policy.Desired(e.obj.OrderIndex, live, r.scene.ObjectCount)
		switch {
		case e.visible && want:
			evs = append(evs, r.event(core.ObjectUpdated, e, ch, core.LeaveNone, false))
		case e.visible && !want:
			e.visible = false
			evs = append(evs, r.event(core.ObjectLeft, e, ch, core.LeavePolicy, true))
		case !e.visible && want:
			e.visible = true
			evs = append(evs, r.event(core.ObjectEntered, e, ch, core.LeaveNone, false))
		}
	}
	return append(evs, entering...)
}
