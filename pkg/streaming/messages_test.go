package streaming

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/augmenta-tech/augmenta-receiver/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeFor(t *testing.T) {
	assert.Equal(t, TypeObjectEntered, TypeFor(core.ObjectEntered))
	assert.Equal(t, TypeObjectUpdated, TypeFor(core.ObjectUpdated))
	assert.Equal(t, TypeObjectLeft, TypeFor(core.ObjectLeft))
}

func TestNewObjectPayload(t *testing.T) {
	at := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	e := &core.ObjectEvent{
		Type:      core.ObjectLeft,
		Channel:   core.ChannelExtra,
		Reason:    core.LeavePolicy,
		Synthetic: true,
		Object:    core.TrackedObject{ID: 3},
		Time:      at,
	}

	p := NewObjectPayload(e, core.Vector3{X: 1})
	assert.Equal(t, "extra", p.Channel)
	assert.Equal(t, "policy", p.Reason)
	assert.True(t, p.Synthetic)
	assert.Equal(t, 3, p.Object.ID)
	assert.Equal(t, 1.0, p.World.X)

	e.Type = core.ObjectUpdated
	assert.Empty(t, NewObjectPayload(e, core.Vector3{}).Reason)
}

func TestEnvelopeJSON(t *testing.T) {
	payload, err := json.Marshal(ScenePayload{Scene: core.Scene{Width: 4, Height: 3}})
	require.NoError(t, err)

	data, err := json.Marshal(Envelope{Type: TypeScene, Payload: payload})
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, TypeScene, env.Type)

	var sp ScenePayload
	require.NoError(t, json.Unmarshal(env.Payload, &sp))
	assert.Equal(t, 4.0, sp.Scene.Width)
}
