package main

import (
	"context"
	"fmt"
	"time"

	"github.com/augmenta-tech/augmenta-receiver/internal/api"
	"github.com/augmenta-tech/augmenta-receiver/internal/config"
	"github.com/augmenta-tech/augmenta-receiver/internal/storage"
	"github.com/augmenta-tech/augmenta-receiver/pkg/core"
)

func (r *receiver) setupStorage(s *core.Session) error {
	storageCfg := config.GetStorageConfig()

	backend, err := storage.NewBackend(storageCfg, storage.Dependencies{
		DB:           config.GetDBConfig(),
		API:          config.GetAPIConfig(),
		Scaling:      config.GetReceiverConfig().Scaling,
		SessionStart: s.StartTime,
		Logger:       r.logger,
		DBLogger:     r.dbLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to create storage backend: %w", err)
	}
	if err := backend.Init(); err != nil {
		return fmt.Errorf("failed to initialize %s storage: %w", storageCfg.Type, err)
	}
	if err := backend.StartSession(s); err != nil {
		_ = backend.Close()
		return fmt.Errorf("failed to start storage session: %w", err)
	}

	r.backend = backend
	r.recorder = storage.Attach(r.registry, backend, r.logger)
	r.logger.Info("Storage backend initialized", "type", storageCfg.Type)
	return nil
}

// finishSession ends the session on the backend, uploads the export when an
// upload server is configured, then closes the backend.
func (r *receiver) finishSession() {
	if r.recorder != nil {
		r.recorder.Detach()
		if n := r.recorder.Failed(); n > 0 {
			r.logger.Warn("Some events were not recorded", "failed", n)
		}
	}

	s, err := r.session.End()
	if err != nil {
		r.logger.Warn("No session to end", "error", err)
	}
	if r.backend == nil {
		return
	}

	if err == nil {
		if err := r.backend.EndSession(&s); err != nil {
			r.logger.Error("Failed to end storage session", "error", err)
		} else {
			r.logger.Info("Session ended", "id", s.ID, "duration", s.EndTime.Sub(s.StartTime).Round(time.Millisecond))
			r.upload()
		}
	}

	if err := r.backend.Close(); err != nil {
		r.logger.Error("Failed to close storage backend", "error", err)
	}
}

func (r *receiver) upload() {
	up, ok := r.backend.(storage.Uploadable)
	if !ok {
		return
	}
	path := up.GetExportedFilePath()
	if path == "" {
		return
	}

	apiCfg := config.GetAPIConfig()
	if apiCfg.ServerURL == "" {
		r.logger.Info("Session exported", "path", path)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	client := api.New(apiCfg.ServerURL, apiCfg.APIKey)
	if err := client.Healthcheck(ctx); err != nil {
		r.logger.Warn("Upload server is offline, keeping export on disk", "path", path, "error", err)
		return
	}
	if err := client.Upload(ctx, path, up.GetExportMetadata()); err != nil {
		r.logger.Error("Failed to upload session export", "path", path, "error", err)
		return
	}
	r.logger.Info("Uploaded session export", "path", path, "server", apiCfg.ServerURL)
}
