package logging

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraylogSink_SendsRecord(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer conn.Close()

	sink, err := NewGraylogSink(conn.LocalAddr().String(), "augmenta-receiver")
	require.NoError(t, err)
	defer sink.Close()

	m := NewSlogManager()
	var file bytes.Buffer
	m.Setup(&file, "info", nil, sink.Handler(m.HandlerOptions()))

	buf := make([]byte, 65536)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	// Setup itself logs once; read until the test record arrives.
	slog.New(sink.Handler(m.HandlerOptions())).Info("object entered", "id", 7)
	var found bool
	for i := 0; i < 3 && !found; i++ {
		n, _, err := conn.ReadFrom(buf)
		require.NoError(t, err)

		zr, err := gzip.NewReader(bytes.NewReader(buf[:n]))
		require.NoError(t, err)
		raw, err := io.ReadAll(zr)
		require.NoError(t, err)

		var msg map[string]any
		require.NoError(t, json.Unmarshal(raw, &msg))
		short, _ := msg["short_message"].(string)
		if bytes.Contains([]byte(short), []byte("object entered")) {
			found = true
			assert.Contains(t, short, `"id":7`)
			assert.Equal(t, "augmenta-receiver", msg["facility"])
		}
	}
	assert.True(t, found, "GELF message with the record was not received")
}

func TestNewGraylogSink_BadAddress(t *testing.T) {
	_, err := NewGraylogSink("not-an-address", "")
	assert.Error(t, err)
}
