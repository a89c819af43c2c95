// Package memory keeps a session in memory and exports it as JSON when
// the session ends.
package memory

import (
	"errors"
	"sync"
	"time"

	"github.com/augmenta-tech/augmenta-receiver/internal/config"
	"github.com/augmenta-tech/augmenta-receiver/internal/geo"
	v1 "github.com/augmenta-tech/augmenta-receiver/internal/storage/memory/export/v1"
	"github.com/augmenta-tech/augmenta-receiver/pkg/core"
)

// ErrNoSession is returned by EndSession when no session was started.
var ErrNoSession = errors.New("no session started")

// Backend stores session data in memory and exports to JSON.
type Backend struct {
	cfg     config.MemoryConfig
	scaling float64
	session *core.Session

	tracks map[int]*v1.TrackRecord // keyed by object id
	events []core.ObjectEvent
	scenes []core.SceneEvent
	scene  core.Scene

	lastExportPath string
	lastExportMeta core.UploadMetadata
	mu             sync.RWMutex
}

// New creates a new memory backend. scaling is applied to world positions.
func New(cfg config.MemoryConfig, scaling float64) *Backend {
	if scaling <= 0 {
		scaling = 1
	}
	return &Backend{
		cfg:     cfg,
		scaling: scaling,
		tracks:  make(map[int]*v1.TrackRecord),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartSession begins recording a new session and drops anything recorded before.
func (b *Backend) StartSession(s *core.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	sess := *s
	b.session = &sess
	b.tracks = make(map[int]*v1.TrackRecord)
	b.events = nil
	b.scenes = nil
	return nil
}

// EndSession finalizes and exports the session data
func (b *Backend) EndSession(s *core.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return ErrNoSession
	}
	if s != nil {
		sess := *s
		b.session = &sess
	}
	if b.session.EndTime.IsZero() {
		b.session.EndTime = time.Now()
	}
	return b.exportJSON()
}

func (b *Backend) addSample(e *core.ObjectEvent) {
	record, ok := b.tracks[e.Object.ID]
	if !ok {
		record = &v1.TrackRecord{ID: e.Object.ID}
		b.tracks[e.Object.ID] = record
	}
	record.Samples = append(record.Samples, v1.Sample{
		Time:    e.Time,
		Channel: e.Channel,
		Object:  e.Object.Clone(),
		World:   geo.WorldPosition(e.Object, b.scene, b.scaling, true),
		Scale:   geo.WorldScale(e.Object, b.scene, b.scaling),
	})
}

// RecordEntered stores the event and the state the object entered with.
func (b *Backend) RecordEntered(e *core.ObjectEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events = append(b.events, *e)
	b.addSample(e)
	return nil
}

// RecordUpdated appends a sample to the object's track.
func (b *Backend) RecordUpdated(e *core.ObjectEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.addSample(e)
	return nil
}

// RecordLeft stores the event; the track is kept for export.
func (b *Backend) RecordLeft(e *core.ObjectEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events = append(b.events, *e)
	return nil
}

// RecordScene stores the scene and uses it for following world positions.
func (b *Backend) RecordScene(e *core.SceneEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.scene = e.Scene
	b.scenes = append(b.scenes, *e)
	return nil
}

// GetExportedFilePath returns the path to the last exported file
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// GetExportMetadata returns metadata about the last export
func (b *Backend) GetExportMetadata() core.UploadMetadata {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportMeta
}

// Counts returns the number of tracks, events and scene updates held.
func (b *Backend) Counts() (tracks, events, scenes int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.tracks), len(b.events), len(b.scenes)
}
