// Package postgres records sessions into PostgreSQL through the GORM backend.
package postgres

import (
	"fmt"
	"log/slog"

	"github.com/augmenta-tech/augmenta-receiver/internal/config"
	"github.com/augmenta-tech/augmenta-receiver/internal/database"
	gormstorage "github.com/augmenta-tech/augmenta-receiver/internal/storage/gorm"
	"github.com/rs/zerolog"
)

// Backend is the GORM backend bound to a Postgres connection it owns.
type Backend struct {
	*gormstorage.Backend
	mgr *database.Manager
}

// New connects to Postgres. Unlike database.Manager.Connect there is no
// SQLite fallback: the sqlite storage type exists for that.
func New(cfg config.DBConfig, scaling float64, log *slog.Logger, dbLog zerolog.Logger) (*Backend, error) {
	mgr := database.NewManager(dbLog)
	if err := mgr.ConnectPostgres(cfg); err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{
			DB:      mgr,
			Logger:  log,
			Scaling: scaling,
		}),
		mgr: mgr,
	}, nil
}

// Close flushes pending rows and closes the connection pool.
func (b *Backend) Close() error {
	if err := b.Backend.Close(); err != nil {
		return err
	}
	return b.mgr.Close()
}
