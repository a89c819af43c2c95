// Package sqlitestorage records into an in-memory SQLite database with
// periodic disk dumps via VACUUM INTO. It wraps the GORM backend; the
// only SQLite-specific concerns are creating the in-memory DB and the dump.
package sqlitestorage

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/augmenta-tech/augmenta-receiver/internal/database"
	gormstorage "github.com/augmenta-tech/augmenta-receiver/internal/storage/gorm"
	"github.com/augmenta-tech/augmenta-receiver/pkg/core"
	"github.com/rs/zerolog"
)

// Config holds configuration for the SQLite storage backend.
type Config struct {
	DumpInterval time.Duration
	DumpPath     string // path for periodic VACUUM INTO dumps
	Scaling      float64
}

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	mgr      *database.Manager
	cfg      Config
	log      *slog.Logger
	stopChan chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

// New creates a new SQLite storage backend on a private in-memory database.
func New(cfg Config, log *slog.Logger, dbLog zerolog.Logger) (*Backend, error) {
	if log == nil {
		log = slog.Default()
	}
	mgr := database.NewManager(dbLog)
	if err := mgr.ConnectSqlite(""); err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite DB: %w", err)
	}
	mgr.SqliteFilePath = cfg.DumpPath

	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{
			DB:      mgr,
			Logger:  log,
			Scaling: cfg.Scaling,
		}),
		mgr:      mgr,
		cfg:      cfg,
		log:      log,
		stopChan: make(chan struct{}),
	}, nil
}

// Init initializes the embedded GORM backend and starts the dump goroutine.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}

	if b.cfg.DumpPath != "" && b.cfg.DumpInterval > 0 {
		b.wg.Add(1)
		go b.dumpLoop()
	}
	return nil
}

// EndSession closes the session and dumps the final state to disk.
func (b *Backend) EndSession(s *core.Session) error {
	if err := b.Backend.EndSession(s); err != nil {
		return err
	}
	return b.dump()
}

// Close stops the dump goroutine, closes the GORM backend, writes a
// last dump and releases the database.
func (b *Backend) Close() error {
	var err error
	b.once.Do(func() {
		close(b.stopChan)
		b.wg.Wait()
		if err = b.Backend.Close(); err != nil {
			return
		}
		if dumpErr := b.dump(); dumpErr != nil {
			b.log.Error("Final dump failed", "error", dumpErr)
		}
		err = b.mgr.Close()
	})
	return err
}

// GetExportedFilePath returns the path of the on-disk dump.
func (b *Backend) GetExportedFilePath() string {
	return b.cfg.DumpPath
}

func (b *Backend) dump() error {
	if b.cfg.DumpPath == "" {
		return nil
	}
	return b.mgr.DumpMemoryToDisk()
}

// dumpLoop periodically dumps the in-memory SQLite database to disk via VACUUM INTO.
// VACUUM INTO creates a point-in-time snapshot, so no pause mechanism is needed.
func (b *Backend) dumpLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if err := b.dump(); err != nil {
				b.log.Error("Error dumping to disk", "error", err)
			}
		}
	}
}
