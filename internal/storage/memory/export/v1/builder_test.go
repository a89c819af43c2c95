package v1

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/augmenta-tech/augmenta-receiver/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

func testData() *SessionData {
	return &SessionData{
		Session: core.Session{
			ID:              "s-1",
			StartTime:       t0,
			EndTime:         t0.Add(90 * time.Second),
			ProtocolVersion: "v1",
			Port:            12000,
			Policy:          "oldest",
			PolicyCount:     2,
			Settings:        map[string]any{"flipX": true},
		},
		Tracks: map[int]*TrackRecord{
			9: {ID: 9, Samples: []Sample{
				{Time: t0.Add(2 * time.Second), Object: core.TrackedObject{ID: 9, Frame: 20}},
			}},
			4: {ID: 4, Samples: []Sample{
				{Time: t0.Add(time.Second), Object: core.TrackedObject{ID: 4, Frame: 10, Centroid: core.Vector2{X: 0.1, Y: 0.2}}, World: core.Vector3{X: 1.23456, Z: -0.5}, Scale: core.Vector3{X: 0.4, Y: 1.7, Z: 0.333333}},
				{Time: t0.Add(1500 * time.Millisecond), Channel: core.ChannelExtra, Object: core.TrackedObject{
					ID: 4, Frame: 15,
					Contour: []core.Vector2{{X: 0.1, Y: 0.1}, {X: 0.2, Y: 0.1}},
				}},
			}},
			1: {ID: 1},
		},
		Events: []core.ObjectEvent{
			{Type: core.ObjectEntered, Object: core.TrackedObject{ID: 4}, Time: t0.Add(time.Second)},
			{Type: core.ObjectLeft, Object: core.TrackedObject{ID: 4}, Reason: core.LeaveTimeout, Time: t0.Add(3 * time.Second)},
			{Type: core.ObjectEntered, Object: core.TrackedObject{ID: 9}, Synthetic: true, Time: t0.Add(3 * time.Second)},
		},
		Scenes: []core.SceneEvent{
			{Scene: core.Scene{Frame: 30, Width: 4, Height: 3, ObjectCount: 2}, Time: t0.Add(4 * time.Second)},
		},
	}
}

func TestBuild_SessionInfo(t *testing.T) {
	export := Build(testData())

	assert.Equal(t, FormatVersion, export.FormatVersion)
	assert.Equal(t, "s-1", export.SessionID)
	assert.Equal(t, 90.0, export.Duration)
	assert.Equal(t, "v1", export.ProtocolVersion)
	assert.Equal(t, "oldest", export.Policy)
	assert.Equal(t, 2, export.PolicyCount)
	assert.Equal(t, 30, export.EndFrame)
}

func TestBuild_ObjectsSortedAndEmptyTracksSkipped(t *testing.T) {
	export := Build(testData())

	require.Len(t, export.Objects, 2)
	assert.Equal(t, 4, export.Objects[0].ID)
	assert.Equal(t, 9, export.Objects[1].ID)

	obj := export.Objects[0]
	assert.Equal(t, 1.0, obj.FirstSeen)
	assert.Equal(t, 1.5, obj.LastSeen)
	assert.Equal(t, 10, obj.StartFrame)
	require.Len(t, obj.Samples, 2)
}

func TestBuild_SampleFormat(t *testing.T) {
	obj := Build(testData()).Objects[0]

	first := obj.Samples[0]
	require.Len(t, first, 13)
	assert.Equal(t, 1.0, first[0])
	assert.Equal(t, 10, first[1])
	assert.Equal(t, "main", first[2])
	assert.Equal(t, []float64{0.1, 0.2}, first[3])
	assert.Equal(t, []float64{1.2346, 0, -0.5}, first[11])
	assert.Equal(t, []float64{0.4, 1.7, 0.3333}, first[12])

	second := obj.Samples[1]
	require.Len(t, second, 14)
	assert.Equal(t, "extra", second[2])
	assert.Equal(t, []float64{0.1, 0.1, 0.2, 0.1}, second[13])
}

func TestBuild_Events(t *testing.T) {
	export := Build(testData())

	require.Len(t, export.Events, 3)
	assert.Equal(t, []any{1.0, "entered", 4, "main", "", false}, export.Events[0])
	assert.Equal(t, []any{3.0, "left", 4, "main", "timeout", false}, export.Events[1])
	assert.Equal(t, []any{3.0, "entered", 9, "main", "", true}, export.Events[2])

	require.Len(t, export.Scenes, 1)
	assert.Equal(t, []any{4.0, 30, 4.0, 3.0, 2}, export.Scenes[0])
}

func TestBuild_EmptySessionMarshalsArrays(t *testing.T) {
	export := Build(&SessionData{Session: core.Session{ID: "empty", StartTime: t0}})

	data, err := json.Marshal(export)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, []any{}, raw["objects"])
	assert.Equal(t, []any{}, raw["events"])
	assert.Equal(t, []any{}, raw["scenes"])
	assert.Equal(t, 0.0, raw["duration"])
}
