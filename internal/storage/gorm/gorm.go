// Package gormstorage records sessions through GORM with internal queues
// and a background batch writer. It backs both the sqlite and the
// postgres storage types.
package gormstorage

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/augmenta-tech/augmenta-receiver/internal/database"
	"github.com/augmenta-tech/augmenta-receiver/internal/model"
	"github.com/augmenta-tech/augmenta-receiver/internal/model/convert"
	"github.com/augmenta-tech/augmenta-receiver/internal/queue"
	"github.com/augmenta-tech/augmenta-receiver/pkg/core"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNoSession is returned by record calls made outside a session.
var ErrNoSession = errors.New("no session started")

// DefaultWriteInterval is the pause between two writer passes.
const DefaultWriteInterval = 2 * time.Second

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB     *database.Manager
	Logger *slog.Logger
	// Scaling is applied to plane positions of stored samples.
	Scaling       float64
	WriteInterval time.Duration
}

// queues holds all the write queues for batch DB insertion.
type queues struct {
	ObjectEvents *queue.Queue[model.ObjectEvent]
	ObjectStates *queue.Queue[model.ObjectState]
	SceneStates  *queue.Queue[model.SceneState]
	Performance  *queue.Queue[model.ReceiverPerformance]
}

func newQueues() *queues {
	return &queues{
		ObjectEvents: queue.New[model.ObjectEvent](),
		ObjectStates: queue.New[model.ObjectState](),
		SceneStates:  queue.New[model.SceneState](),
		Performance:  queue.New[model.ReceiverPerformance](),
	}
}

func (q *queues) len() int {
	return q.ObjectEvents.Len() + q.ObjectStates.Len() + q.SceneStates.Len() + q.Performance.Len()
}

// Backend records through GORM with queue-based batch writes.
type Backend struct {
	deps      Dependencies
	log       *slog.Logger
	queues    *queues
	sessionID atomic.Uint64

	// scene is only touched from the engine goroutine
	scene core.Scene

	writeMu       sync.Mutex
	lastWriteNano atomic.Int64

	stopChan  chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a new GORM storage backend. Queues are usable before Init.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Scaling <= 0 {
		deps.Scaling = 1
	}
	if deps.WriteInterval <= 0 {
		deps.WriteInterval = DefaultWriteInterval
	}
	return &Backend{
		deps:   deps,
		log:    deps.Logger,
		queues: newQueues(),
	}
}

// Init migrates the schema and starts the DB writer goroutine.
func (b *Backend) Init() error {
	if b.deps.DB == nil || !b.deps.DB.IsValid {
		return database.ErrNotConnected
	}
	if err := b.deps.DB.Setup(); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}

	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})
	go b.writeLoop()
	return nil
}

// Close stops the writer goroutine after a final flush.
func (b *Backend) Close() error {
	b.closeOnce.Do(func() {
		if b.stopChan == nil {
			return
		}
		close(b.stopChan)
		<-b.done
	})
	return nil
}

func (b *Backend) db() *gorm.DB {
	if b.deps.DB == nil {
		return nil
	}
	return b.deps.DB.DB
}

// StartSession inserts the session row; subsequent records are stamped with its id.
func (b *Backend) StartSession(s *core.Session) error {
	db := b.db()
	if db == nil {
		return database.ErrNotConnected
	}

	// a session id already on disk is resumed rather than duplicated
	var existing model.Session
	err := existing.GetByUUID(db, s.ID)
	switch {
	case err == nil:
		b.sessionID.Store(uint64(existing.ID))
		b.log.Info("Resuming session row", "id", existing.ID, "uuid", s.ID)
		return db.Model(&existing).Update("end_time", nil).Error
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("failed to look up session: %w", err)
	}

	gormSession := convert.CoreToSession(*s)
	if err := db.Create(&gormSession).Error; err != nil {
		return fmt.Errorf("failed to insert new session: %w", err)
	}
	b.sessionID.Store(uint64(gormSession.ID))
	b.log.Debug("Session row created", "id", gormSession.ID, "uuid", s.ID)
	return nil
}

// SetSessionID sets the current session row id (used by tools replaying into an existing DB).
func (b *Backend) SetSessionID(id uint) {
	b.sessionID.Store(uint64(id))
}

// SessionID returns the current session row id, or 0 outside a session.
func (b *Backend) SessionID() uint {
	return uint(b.sessionID.Load())
}

// EndSession writes everything queued and stamps the session end time.
func (b *Backend) EndSession(s *core.Session) error {
	id := b.SessionID()
	if id == 0 {
		return ErrNoSession
	}
	db := b.db()
	if db == nil {
		return database.ErrNotConnected
	}

	b.Flush()

	end := s.EndTime
	if end.IsZero() {
		end = time.Now()
	}
	err := db.Model(&model.Session{}).Where("id = ?", id).
		Update("end_time", sql.NullTime{Time: end, Valid: true}).Error
	b.sessionID.Store(0)
	if err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}
	return nil
}

// RecordEntered queues the event and the object state it entered with.
func (b *Backend) RecordEntered(e *core.ObjectEvent) error {
	id := b.SessionID()
	if id == 0 {
		return ErrNoSession
	}
	b.queues.ObjectEvents.Push(convert.CoreToObjectEvent(*e, id))
	b.queues.ObjectStates.Push(convert.CoreToObjectState(e.Object, e.Channel, e.Time, id, b.scene, b.deps.Scaling))
	return nil
}

// RecordUpdated queues an object state sample.
func (b *Backend) RecordUpdated(e *core.ObjectEvent) error {
	id := b.SessionID()
	if id == 0 {
		return ErrNoSession
	}
	b.queues.ObjectStates.Push(convert.CoreToObjectState(e.Object, e.Channel, e.Time, id, b.scene, b.deps.Scaling))
	return nil
}

// RecordLeft queues the event.
func (b *Backend) RecordLeft(e *core.ObjectEvent) error {
	id := b.SessionID()
	if id == 0 {
		return ErrNoSession
	}
	b.queues.ObjectEvents.Push(convert.CoreToObjectEvent(*e, id))
	return nil
}

// RecordScene keeps the scene for plane positions and queues a scene state.
func (b *Backend) RecordScene(e *core.SceneEvent) error {
	b.scene = e.Scene
	id := b.SessionID()
	if id == 0 {
		return ErrNoSession
	}
	b.queues.SceneStates.Push(convert.CoreToSceneState(e.Scene, e.Time, id))
	return nil
}

// RecordStatus queues a receiver performance row.
func (b *Backend) RecordStatus(s *core.ReceiverStatus) error {
	id := b.SessionID()
	if id == 0 {
		return ErrNoSession
	}
	b.queues.Performance.Push(model.ReceiverPerformance{
		Time:         s.Time,
		SessionID:    id,
		Live:         s.Live,
		Visible:      s.Visible,
		InboxLen:     s.InboxLen,
		InboxDropped: s.InboxDropped,
		Muted:        s.Muted,
	})
	return nil
}

// Pending returns the number of rows waiting for the writer.
func (b *Backend) Pending() int {
	return b.queues.len()
}

// LastWriteDuration returns how long the last writer pass took.
func (b *Backend) LastWriteDuration() time.Duration {
	return time.Duration(b.lastWriteNano.Load())
}

// writeQueue writes all items from a queue to the database in a transaction.
// Items are pushed back on failure and retried on the next pass.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log *slog.Logger) int {
	if q.Empty() {
		return 0
	}

	tx := db.Begin()
	items := q.GetAndEmpty()
	if err := tx.Omit(clause.Associations).Create(&items).Error; err != nil {
		log.Error("Error creating rows", "table", name, "count", len(items), "error", err)
		tx.Rollback()
		q.Push(items...)
		return 0
	}

	if err := tx.Commit().Error; err != nil {
		log.Error("Error committing rows", "table", name, "count", len(items), "error", err)
		q.Push(items...)
		return 0
	}
	return len(items)
}

// Flush drains every queue into the database now.
func (b *Backend) Flush() {
	db := b.db()
	if db == nil {
		return
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	start := time.Now()
	n := writeQueue(db, b.queues.SceneStates, "scene states", b.log)
	n += writeQueue(db, b.queues.ObjectEvents, "object events", b.log)
	n += writeQueue(db, b.queues.ObjectStates, "object states", b.log)
	n += writeQueue(db, b.queues.Performance, "receiver performance", b.log)
	if n > 0 {
		d := time.Since(start)
		b.lastWriteNano.Store(int64(d))
		b.log.Debug("DB write pass", "rows", n, "duration", d)
	}
}

// writeLoop periodically drains queues into the DB until Close.
func (b *Backend) writeLoop() {
	defer close(b.done)

	ticker := time.NewTicker(b.deps.WriteInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			b.Flush()
			return
		case <-ticker.C:
			b.Flush()
		}
	}
}
