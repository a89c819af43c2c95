// Package v1 contains the v1 JSON export format for recorded sessions.
package v1

import "time"

// FormatVersion is written to every export.
const FormatVersion = 1

// Export is the root JSON structure for v1 format.
type Export struct {
	FormatVersion   int            `json:"formatVersion"`
	SessionID       string         `json:"sessionId"`
	StartTime       time.Time      `json:"startTime"`
	EndTime         time.Time      `json:"endTime"`
	Duration        float64        `json:"duration"` // seconds
	ProtocolVersion string         `json:"protocolVersion"`
	Port            int            `json:"port"`
	Policy          string         `json:"policy"`
	PolicyCount     int            `json:"policyCount"`
	Settings        map[string]any `json:"settings,omitempty"`
	EndFrame        int            `json:"endFrame"`
	Objects         []Object       `json:"objects"`
	Events          [][]any        `json:"events"`
	Scenes          [][]any        `json:"scenes"`
}

// Object is the track of one tracked object across the session.
type Object struct {
	ID         int     `json:"id"`
	FirstSeen  float64 `json:"firstSeen"` // seconds since start
	LastSeen   float64 `json:"lastSeen"`
	StartFrame int     `json:"startFrame"`
	// Samples format:
	// [t, frame, channel, [cx, cy], [vx, vy], orientation, [rx, ry, rw, rh, rot], [hx, hy, hz], depth, distance, reflectivity, [wx, wy, wz]]
	// followed by [x0, y0, x1, y1, ...] when the sample carries a contour.
	Samples [][]any `json:"samples"`
}
