package main

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/hypebeast/go-osc/osc"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/augmenta-tech/augmenta-receiver/internal/config"
	"github.com/augmenta-tech/augmenta-receiver/internal/monitor"
)

func newTestReceiver(t *testing.T) *receiver {
	t.Helper()
	t.Cleanup(viper.Reset)
	config.SetDefaults()
	viper.Set("osc.host", "127.0.0.1")
	viper.Set("osc.port", 0)
	viper.Set("objects.timeout", "1h")

	r := &receiver{
		start:    time.Now(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		dbLogger: zerolog.Nop(),
	}
	require.NoError(t, r.setupPipeline())
	r.monitor = monitor.NewService(monitor.Dependencies{
		Engine:   r.engine,
		Registry: r.registry,
		Logger:   r.logger,
		Interval: time.Hour,
	})
	return r
}

func enterMessage(id int32) *osc.Message {
	msg := osc.NewMessage("/object/enter")
	for _, a := range []any{
		int32(1), id, int32(0), float32(0),
		float32(0.5), float32(0.5), float32(0), float32(0), float32(0),
		float32(0.4), float32(0.4), float32(0.2), float32(0.2), float32(0),
		float32(1.7),
	} {
		msg.Append(a)
	}
	return msg
}

func TestServe_StopsTransportBeforeEngine(t *testing.T) {
	r := newTestReceiver(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.serve(ctx, false) }()

	require.Eventually(t, func() bool { return r.osc.Addr() != nil }, 2*time.Second, 10*time.Millisecond)
	client := osc.NewClient("127.0.0.1", r.osc.Port())
	require.NoError(t, client.Send(enterMessage(3)))

	require.Eventually(t, func() bool {
		snap, err := r.monitor.Snapshot(ctx)
		return err == nil && snap.Live == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("serve did not return")
	}

	assert.True(t, r.engine.Stopped())
	assert.True(t, r.registry.Closed())
	assert.Zero(t, r.engine.Late())
	// the transport is closed for good
	assert.ErrorIs(t, r.osc.Rebind(0), net.ErrClosed)
}
