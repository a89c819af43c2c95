package core

import "time"

// UploadMetadata describes an exported session file for the upload API.
type UploadMetadata struct {
	SessionID       string    `json:"sessionId"`
	ProtocolVersion string    `json:"protocolVersion"`
	StartTime       time.Time `json:"startTime"`
	// Duration is in seconds.
	Duration    float64 `json:"duration"`
	ObjectCount int     `json:"objectCount"`
	Tag         string  `json:"tag,omitempty"`
}
