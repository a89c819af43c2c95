package logging

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/Graylog2/go-gelf/gelf"
)

// GraylogSink ships log records to a Graylog GELF UDP input.
type GraylogSink struct {
	writer *gelf.Writer
}

// NewGraylogSink dials the GELF input at addr (host:port).
func NewGraylogSink(addr, facility string) (*GraylogSink, error) {
	w, err := gelf.NewWriter(addr)
	if err != nil {
		return nil, fmt.Errorf("failed to create GELF writer for %s: %w", addr, err)
	}
	if facility != "" {
		w.Facility = facility
	}
	return &GraylogSink{writer: w}, nil
}

// Handler returns a JSON handler writing one GELF message per record.
func (s *GraylogSink) Handler(opts *slog.HandlerOptions) slog.Handler {
	return slog.NewJSONHandler(s.writer, opts)
}

// Writer exposes the underlying GELF writer, e.g. for a zerolog output.
func (s *GraylogSink) Writer() io.Writer {
	return s.writer
}

func (s *GraylogSink) Close() error {
	return s.writer.Close()
}
