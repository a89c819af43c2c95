package influx

import (
	"bufio"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/augmenta-tech/augmenta-receiver/internal/config"
	"github.com/augmenta-tech/augmenta-receiver/internal/protocol"
	"github.com/augmenta-tech/augmenta-receiver/internal/registry"
	"github.com/augmenta-tech/augmenta-receiver/pkg/core"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

func unreachableConfig() config.InfluxConfig {
	return config.InfluxConfig{
		Enabled:  true,
		Protocol: "http",
		Host:     "127.0.0.1",
		Port:     "1",
		Org:      "augmenta",
		Bucket:   "augmenta",
	}
}

func readBackup(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)

	var lines []string
	sc := bufio.NewScanner(zr)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.NoError(t, sc.Err())
	return lines
}

func TestBackupFileName(t *testing.T) {
	assert.Equal(t, filepath.Join("backups", "augmenta_influx_20260301_180000.lp.gz"), BackupFileName("backups", t0))
}

func TestConnect_Disabled(t *testing.T) {
	m := NewManager(zerolog.Nop(), config.InfluxConfig{}, "")
	assert.ErrorIs(t, m.Connect(context.Background()), ErrDisabled)
	assert.False(t, m.IsValid)
}

func TestWritePoint_NoWriter(t *testing.T) {
	m := NewManager(zerolog.Nop(), unreachableConfig(), "")
	err := m.WritePoint("augmenta", ScenePoint("s", core.SceneEvent{Time: t0}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backup writer not available")
}

func TestConnect_UnreachableWritesBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "influx", "backup.lp.gz")
	m := NewManager(zerolog.Nop(), unreachableConfig(), path)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Connect(ctx))
	assert.False(t, m.IsValid)

	require.NoError(t, m.WriteScene("sess", core.SceneEvent{
		Scene: core.Scene{Frame: 12, Width: 4, Height: 3, ObjectCount: 2},
		Time:  t0,
	}))
	require.NoError(t, m.WriteStatus(core.ReceiverStatus{Time: t0, SessionID: "sess", Live: 3, Visible: 2, InboxDropped: 1}))
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	lines := readBackup(t, path)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "augmenta_scene,session=sess ")
	assert.Contains(t, lines[0], "objectCount=2i")
	assert.Contains(t, lines[0], "width=4")
	assert.Contains(t, lines[1], "augmenta_objects,session=sess ")
	assert.Contains(t, lines[1], "live=3i")
	assert.Contains(t, lines[1], "inboxDropped=1u")
	assert.Contains(t, lines[1], "muted=false")
}

func TestAttach_WritesSceneUpdates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backup.lp.gz")
	m := NewManager(zerolog.Nop(), unreachableConfig(), path)
	require.NoError(t, m.openBackup())

	reg := registry.New(registry.Config{})
	detach := m.Attach(reg, func() string { return "abc" })
	reg.Apply(&protocol.SceneMessage{Version: protocol.V2, ObjectCount: 1, Width: 4, Height: 3})
	detach()
	reg.Apply(&protocol.SceneMessage{Version: protocol.V2, ObjectCount: 2, Width: 4, Height: 3})
	require.NoError(t, m.Close())

	lines := readBackup(t, path)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "session=abc")
}

func TestStatusPoint(t *testing.T) {
	p := StatusPoint(core.ReceiverStatus{Time: t0, SessionID: "x", Live: 1, Muted: true})
	line := influxdb2_write.PointToLineProtocol(p, time.Nanosecond)
	assert.Contains(t, line, "muted=true")
	assert.Contains(t, line, "live=1i")
}

func TestWritePoint_BackupHasNoBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backup.lp.gz")
	m := NewManager(zerolog.Nop(), unreachableConfig(), path)
	require.NoError(t, m.openBackup())

	for i := 0; i < 3; i++ {
		require.NoError(t, m.WritePoint("augmenta", ScenePoint("s", core.SceneEvent{Time: t0})))
	}
	require.NoError(t, m.Close())

	lines := readBackup(t, path)
	require.Len(t, lines, 3)
	for _, l := range lines {
		assert.NotEmpty(t, l)
	}
}
