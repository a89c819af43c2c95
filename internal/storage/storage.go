// Package storage records what consumers of the registry observe.
package storage

import "github.com/augmenta-tech/augmenta-receiver/pkg/core"

// Backend is the interface all storage implementations must satisfy.
// Record methods are called on the engine goroutine and must not block on I/O.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management
	StartSession(s *core.Session) error
	EndSession(s *core.Session) error

	// Object lifecycle, as filtered by the selection policy
	RecordEntered(e *core.ObjectEvent) error
	RecordUpdated(e *core.ObjectEvent) error
	RecordLeft(e *core.ObjectEvent) error

	// Scene updates
	RecordScene(e *core.SceneEvent) error
}

// Uploadable is an optional interface for storage backends that produce
// a file suitable for the upload API.
type Uploadable interface {
	GetExportedFilePath() string
	GetExportMetadata() core.UploadMetadata
}

// StatusRecorder is an optional interface for backends that keep the
// periodic receiver status.
type StatusRecorder interface {
	RecordStatus(s *core.ReceiverStatus) error
}

// UploadMetadata is re-exported for callers that only import storage.
type UploadMetadata = core.UploadMetadata
