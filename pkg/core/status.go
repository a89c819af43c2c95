package core

import "time"

// ReceiverStatus is a periodic health snapshot of a running receiver.
type ReceiverStatus struct {
	Time         time.Time `json:"time"`
	SessionID    string    `json:"sessionId"`
	Live         int       `json:"live"`
	Visible      int       `json:"visible"`
	Scene        Scene     `json:"scene"`
	Coverage     float64   `json:"coverage"` // share of the plane under visible footprints
	InboxLen     int       `json:"inboxLen"`
	InboxDropped uint64    `json:"inboxDropped"`
	Muted        bool      `json:"muted"`
}
