// pkg/core/session.go
package core

import "time"

// Session is one recording run of the receiver, from start to shutdown.
type Session struct {
	ID              string         `json:"id"`
	StartTime       time.Time      `json:"startTime"`
	EndTime         time.Time      `json:"endTime,omitempty"`
	ProtocolVersion string         `json:"protocolVersion"`
	Port            int            `json:"port"`
	Policy          string         `json:"policy"`
	PolicyCount     int            `json:"policyCount"`
	Settings        map[string]any `json:"settings,omitempty"`
}

// Duration returns the elapsed session time, or zero while the session is open.
func (s Session) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}
