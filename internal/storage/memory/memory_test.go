package memory

import (
	"testing"
	"time"

	"github.com/augmenta-tech/augmenta-receiver/internal/config"
	"github.com/augmenta-tech/augmenta-receiver/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

func objEvent(typ core.EventType, id int, at time.Duration) *core.ObjectEvent {
	return &core.ObjectEvent{
		Type: typ,
		Time: t0.Add(at),
		Object: core.TrackedObject{
			ID:       id,
			Centroid: core.Vector2{X: 0.75, Y: 0.25},
			Highest:  core.Vector3{Z: 2},
		},
	}
}

func TestNew(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: "/tmp/test", CompressOutput: true}, 0)

	require.NotNil(t, b)
	assert.Equal(t, "/tmp/test", b.cfg.OutputDir)
	assert.True(t, b.cfg.CompressOutput)
	assert.Equal(t, 1.0, b.scaling)
	assert.NotNil(t, b.tracks)
}

func TestInitAndClose(t *testing.T) {
	b := New(config.MemoryConfig{}, 1)
	assert.NoError(t, b.Init())
	assert.NoError(t, b.Close())
}

func TestStartSession_Resets(t *testing.T) {
	b := New(config.MemoryConfig{}, 1)

	require.NoError(t, b.RecordEntered(objEvent(core.ObjectEntered, 1, 0)))
	require.NoError(t, b.RecordScene(&core.SceneEvent{Scene: core.Scene{Width: 4}}))

	require.NoError(t, b.StartSession(&core.Session{ID: "s", StartTime: t0}))

	tracks, events, scenes := b.Counts()
	assert.Zero(t, tracks)
	assert.Zero(t, events)
	assert.Zero(t, scenes)
}

func TestRecord_BuildsTracks(t *testing.T) {
	b := New(config.MemoryConfig{}, 2)
	require.NoError(t, b.StartSession(&core.Session{ID: "s", StartTime: t0}))

	require.NoError(t, b.RecordScene(&core.SceneEvent{Scene: core.Scene{Width: 4, Height: 3}, Time: t0}))
	require.NoError(t, b.RecordEntered(objEvent(core.ObjectEntered, 1, time.Second)))
	require.NoError(t, b.RecordUpdated(objEvent(core.ObjectUpdated, 1, 2*time.Second)))
	require.NoError(t, b.RecordEntered(objEvent(core.ObjectEntered, 2, 2*time.Second)))
	require.NoError(t, b.RecordLeft(objEvent(core.ObjectLeft, 1, 3*time.Second)))

	tracks, events, scenes := b.Counts()
	assert.Equal(t, 2, tracks)
	assert.Equal(t, 3, events)
	assert.Equal(t, 1, scenes)

	samples := b.tracks[1].Samples
	require.Len(t, samples, 2)
	// (0.75-0.5)*4*2, offset 2*0.5*2, -(0.25-0.5)*3*2
	assert.InDelta(t, 2.0, samples[0].World.X, 1e-9)
	assert.InDelta(t, 2.0, samples[0].World.Y, 1e-9)
	assert.InDelta(t, 1.5, samples[0].World.Z, 1e-9)
	// no rect: only the height is scaled
	assert.Equal(t, core.Vector3{Y: 4}, samples[0].Scale)
}

func TestRecord_SamplesAreCopies(t *testing.T) {
	b := New(config.MemoryConfig{}, 1)
	require.NoError(t, b.StartSession(&core.Session{ID: "s", StartTime: t0}))

	e := objEvent(core.ObjectEntered, 1, 0)
	e.Object.Contour = []core.Vector2{{X: 0.1, Y: 0.1}}
	require.NoError(t, b.RecordEntered(e))
	e.Object.Contour[0].X = 0.9

	assert.Equal(t, 0.1, b.tracks[1].Samples[0].Object.Contour[0].X)
}

func TestEndSession_WithoutStart(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: t.TempDir()}, 1)
	assert.ErrorIs(t, b.EndSession(nil), ErrNoSession)
	assert.Empty(t, b.GetExportedFilePath())
}
