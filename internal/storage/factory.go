package storage

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/augmenta-tech/augmenta-receiver/internal/config"
	"github.com/augmenta-tech/augmenta-receiver/internal/storage/memory"
	pgstorage "github.com/augmenta-tech/augmenta-receiver/internal/storage/postgres"
	sqlitestorage "github.com/augmenta-tech/augmenta-receiver/internal/storage/sqlite"
	wsstorage "github.com/augmenta-tech/augmenta-receiver/internal/storage/websocket"
	"github.com/augmenta-tech/augmenta-receiver/pkg/core"
	"github.com/rs/zerolog"
)

// Dependencies are what the backends need besides their own config section.
type Dependencies struct {
	DB           config.DBConfig
	API          config.APIConfig
	Scaling      float64
	SessionStart time.Time
	Logger       *slog.Logger
	DBLogger     zerolog.Logger
}

// NewBackend creates a storage backend based on configuration.
func NewBackend(cfg config.StorageConfig, deps Dependencies) (Backend, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	switch cfg.Type {
	case "postgres":
		backend, err := pgstorage.New(deps.DB, deps.Scaling, deps.Logger, deps.DBLogger)
		if err != nil {
			return nil, err
		}
		return backend, nil

	case "sqlite":
		dumpPath := filepath.Join(cfg.SQLite.OutputDir, fmt.Sprintf("augmenta_%s.db", deps.SessionStart.UTC().Format("20060102_150405")))
		backend, err := sqlitestorage.New(sqlitestorage.Config{
			DumpInterval: cfg.SQLite.DumpInterval,
			DumpPath:     dumpPath,
			Scaling:      deps.Scaling,
		}, deps.Logger, deps.DBLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		return backend, nil

	case "websocket":
		if deps.API.ServerURL == "" {
			return nil, fmt.Errorf("websocket storage needs api.serverUrl")
		}
		return wsstorage.New(wsstorage.Config{
			URL:     wsstorage.HTTPToWS(deps.API.ServerURL) + "/api",
			Secret:  deps.API.APIKey,
			Scaling: deps.Scaling,
			Logger:  deps.Logger,
		}), nil

	case "memory":
		return memory.New(cfg.Memory, deps.Scaling), nil

	case "none", "":
		return Discard{}, nil

	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

// Discard is a Backend that drops everything.
type Discard struct{}

func (Discard) Init() error                           { return nil }
func (Discard) Close() error                          { return nil }
func (Discard) StartSession(*core.Session) error      { return nil }
func (Discard) EndSession(*core.Session) error        { return nil }
func (Discard) RecordEntered(*core.ObjectEvent) error { return nil }
func (Discard) RecordUpdated(*core.ObjectEvent) error { return nil }
func (Discard) RecordLeft(*core.ObjectEvent) error    { return nil }
func (Discard) RecordScene(*core.SceneEvent) error    { return nil }
