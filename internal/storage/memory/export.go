package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	v1 "github.com/augmenta-tech/augmenta-receiver/internal/storage/memory/export/v1"
	"github.com/augmenta-tech/augmenta-receiver/pkg/core"
)

// exportJSON writes the session data to a (gzipped) JSON file
func (b *Backend) exportJSON() error {
	export := b.buildExport()

	// Build filename
	timestamp := b.session.StartTime.UTC().Format("20060102_150405")
	name := "augmenta_" + timestamp
	if b.session.ID != "" {
		name += "_" + b.session.ID[:min(8, len(b.session.ID))]
	}

	var filename string
	if b.cfg.CompressOutput {
		filename = name + ".json.gz"
	} else {
		filename = name + ".json"
	}

	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	// Ensure output directory exists
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// Write file
	if b.cfg.CompressOutput {
		if err := writeGzipJSON(outputPath, export); err != nil {
			return err
		}
	} else {
		if err := writeJSON(outputPath, export); err != nil {
			return err
		}
	}

	b.lastExportPath = outputPath
	b.lastExportMeta = core.UploadMetadata{
		SessionID:       b.session.ID,
		ProtocolVersion: b.session.ProtocolVersion,
		StartTime:       b.session.StartTime,
		Duration:        export.Duration,
		ObjectCount:     len(export.Objects),
	}
	return nil
}

func (b *Backend) buildExport() v1.Export {
	return v1.Build(&v1.SessionData{
		Session: *b.session,
		Tracks:  b.tracks,
		Events:  b.events,
		Scenes:  b.scenes,
	})
}

func writeJSON(path string, data v1.Export) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(data); err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}
	return f.Close()
}

func writeGzipJSON(path string, data v1.Export) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	if err := json.NewEncoder(gzWriter).Encode(data); err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}
	if err := gzWriter.Close(); err != nil {
		return fmt.Errorf("failed to finish gzip stream: %w", err)
	}
	return f.Close()
}
