package storage

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/augmenta-tech/augmenta-receiver/internal/registry"
	"github.com/augmenta-tech/augmenta-receiver/pkg/core"
)

// Recorder forwards registry events to a Backend. It sees exactly what
// any other consumer sees: only objects inside the selection window.
type Recorder struct {
	backend Backend
	log     *slog.Logger

	mu     sync.Mutex
	unsubs []func()
	failed atomic.Uint64
}

// Attach subscribes backend to the object and scene hubs of reg.
func Attach(reg *registry.Registry, backend Backend, log *slog.Logger) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	r := &Recorder{backend: backend, log: log}
	r.unsubs = []func(){
		reg.ObjectEntered.Subscribe(func(e core.ObjectEvent) {
			r.check("entered", e.Object.ID, backend.RecordEntered(&e))
		}),
		reg.ObjectUpdated.Subscribe(func(e core.ObjectEvent) {
			r.check("updated", e.Object.ID, backend.RecordUpdated(&e))
		}),
		reg.ObjectLeft.Subscribe(func(e core.ObjectEvent) {
			r.check("left", e.Object.ID, backend.RecordLeft(&e))
		}),
		reg.SceneUpdated.Subscribe(func(e core.SceneEvent) {
			r.check("scene", -1, backend.RecordScene(&e))
		}),
	}
	return r
}

func (r *Recorder) check(kind string, id int, err error) {
	if err == nil {
		return
	}
	// the first failure is logged at error level, the rest at debug
	if r.failed.Add(1) == 1 {
		r.log.Error("Failed to record event", "kind", kind, "id", id, "error", err)
		return
	}
	r.log.Debug("Failed to record event", "kind", kind, "id", id, "error", err)
}

// Failed returns the number of events the backend rejected.
func (r *Recorder) Failed() uint64 {
	return r.failed.Load()
}

// Backend returns the backend events are forwarded to.
func (r *Recorder) Backend() Backend {
	return r.backend
}

// Detach unsubscribes from every hub. It is safe to call more than once.
func (r *Recorder) Detach() {
	r.mu.Lock()
	unsubs := r.unsubs
	r.unsubs = nil
	r.mu.Unlock()

	for _, fn := range unsubs {
		fn()
	}
}
