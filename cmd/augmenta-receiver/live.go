package main

import (
	"time"

	"github.com/augmenta-tech/augmenta-receiver/internal/config"
	"github.com/augmenta-tech/augmenta-receiver/internal/protocol"
	"github.com/augmenta-tech/augmenta-receiver/internal/registry"
)

// liveSettings are the settings that may change while the receiver runs.
type liveSettings struct {
	LogLevel     string
	Port         int
	Flips        protocol.Flips
	PixelSize    float64
	Policy       registry.Policy
	Timeout      time.Duration
	Mute         bool
	FlushOnClose bool
}

func currentSettings() liveSettings {
	rc := config.GetReceiverConfig()
	policy, _ := rc.SelectionPolicy()
	return liveSettings{
		LogLevel:     config.GetString("logLevel"),
		Port:         rc.Port,
		Flips:        rc.Flips(),
		PixelSize:    rc.PixelSize,
		Policy:       policy,
		Timeout:      rc.Timeout,
		Mute:         rc.Mute,
		FlushOnClose: rc.FlushOnClose,
	}
}

// Map returns the settings as recorded on a session.
func (s liveSettings) Map() map[string]any {
	return map[string]any{
		"logLevel":     s.LogLevel,
		"port":         s.Port,
		"flipX":        s.Flips.X,
		"flipY":        s.Flips.Y,
		"pixelSize":    s.PixelSize,
		"policy":       s.Policy.String(),
		"timeout":      s.Timeout.String(),
		"mute":         s.Mute,
		"flushOnClose": s.FlushOnClose,
	}
}

// changedKeys lists the Map keys whose values differ between a and b.
func changedKeys(a, b liveSettings) []string {
	am, bm := a.Map(), b.Map()
	var keys []string
	for _, k := range []string{"logLevel", "port", "flipX", "flipY", "pixelSize", "policy", "timeout", "mute", "flushOnClose"} {
		if am[k] != bm[k] {
			keys = append(keys, k)
		}
	}
	return keys
}

// reload applies a changed config file. Registry and decoder changes run on
// the engine goroutine; the rest is safe from the watcher goroutine.
func (r *receiver) reload() {
	if err := config.Validate(); err != nil {
		r.logger.Warn("Ignoring invalid config change", "error", err)
		return
	}

	next := currentSettings()
	keys := changedKeys(r.live, next)
	if len(keys) == 0 {
		return
	}
	prev := r.live
	r.live = next

	if next.LogLevel != prev.LogLevel {
		r.slogManager.SetLevel(next.LogLevel)
	}
	if next.Mute != prev.Mute {
		r.worker.SetMute(next.Mute)
	}
	if next.Port != prev.Port {
		if err := r.osc.Rebind(next.Port); err != nil {
			r.logger.Error("Failed to bind OSC port", "port", next.Port, "error", err)
		} else {
			r.logger.Info("Listening for OSC", "addr", r.osc.Addr().String())
		}
	}

	r.engine.Do(func() {
		r.decoder.SetFlips(next.Flips)
		r.decoder.SetPixelSize(next.PixelSize)
		r.registry.SetTimeout(next.Timeout)
		r.registry.SetFlushOnClose(next.FlushOnClose)
		if next.Policy != prev.Policy {
			r.registry.SetPolicy(next.Policy)
		}
	})

	m := next.Map()
	for _, k := range keys {
		r.session.Set(k, m[k])
	}
	r.logger.Info("Applied config change", "changed", keys)
}
