package storage_test

import (
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/augmenta-tech/augmenta-receiver/internal/protocol"
	"github.com/augmenta-tech/augmenta-receiver/internal/registry"
	"github.com/augmenta-tech/augmenta-receiver/internal/storage"
	"github.com/augmenta-tech/augmenta-receiver/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend logs every call as "kind:id".
type fakeBackend struct {
	calls []string
	err   error
}

func (f *fakeBackend) Init() error                        { return nil }
func (f *fakeBackend) Close() error                       { return nil }
func (f *fakeBackend) StartSession(s *core.Session) error { return nil }
func (f *fakeBackend) EndSession(s *core.Session) error   { return nil }
func (f *fakeBackend) RecordEntered(e *core.ObjectEvent) error {
	f.calls = append(f.calls, "entered:"+strconv.Itoa(e.Object.ID))
	return f.err
}
func (f *fakeBackend) RecordUpdated(e *core.ObjectEvent) error {
	f.calls = append(f.calls, "updated:"+strconv.Itoa(e.Object.ID))
	return f.err
}
func (f *fakeBackend) RecordLeft(e *core.ObjectEvent) error {
	f.calls = append(f.calls, "left:"+strconv.Itoa(e.Object.ID)+"("+e.Reason.String()+")")
	return f.err
}
func (f *fakeBackend) RecordScene(e *core.SceneEvent) error {
	f.calls = append(f.calls, "scene:"+strconv.Itoa(e.Scene.ObjectCount))
	return f.err
}

var _ storage.Backend = (*fakeBackend)(nil)

func objMsg(kind protocol.Kind, id, oid int) *protocol.ObjectMessage {
	return &protocol.ObjectMessage{
		Type:       kind,
		Version:    protocol.V2,
		Channel:    core.ChannelMain,
		ID:         id,
		OrderIndex: oid,
		Fields:     protocol.FieldCentroid,
		Centroid:   core.Vector2{X: 0.5, Y: 0.5},
	}
}

func TestRecorderForwardsVisibleEvents(t *testing.T) {
	reg := registry.New(registry.Config{Policy: registry.Oldest(1)})
	fb := &fakeBackend{}
	rec := storage.Attach(reg, fb, nil)
	defer rec.Detach()

	reg.Apply(&protocol.SceneMessage{Version: protocol.V2, ObjectCount: 2, Width: 4, Height: 3})
	reg.Apply(objMsg(protocol.KindEnter, 1, 0))
	reg.Apply(objMsg(protocol.KindEnter, 2, 1))
	reg.Apply(objMsg(protocol.KindUpdate, 2, 1))
	reg.Apply(objMsg(protocol.KindUpdate, 1, 0))
	reg.Apply(&protocol.ObjectMessage{Type: protocol.KindLeave, ID: 1, OrderIndex: -1})

	assert.Equal(t, []string{
		"scene:2",
		"entered:1",
		"updated:1",
		"left:1(message)",
		"entered:2",
	}, fb.calls)
	assert.Zero(t, rec.Failed())
	assert.Same(t, fb, rec.Backend())
}

func TestRecorderDetach(t *testing.T) {
	reg := registry.New(registry.Config{})
	fb := &fakeBackend{}
	rec := storage.Attach(reg, fb, nil)

	reg.Apply(objMsg(protocol.KindEnter, 7, 0))
	rec.Detach()
	rec.Detach()
	reg.Apply(objMsg(protocol.KindUpdate, 7, 0))
	reg.Tick(2 * time.Second)

	assert.Equal(t, []string{"entered:7"}, fb.calls)
	assert.Zero(t, reg.ObjectEntered.Len())
	assert.Zero(t, reg.SceneUpdated.Len())
}

func TestRecorderCountsFailures(t *testing.T) {
	reg := registry.New(registry.Config{})
	fb := &fakeBackend{err: errors.New("disk full")}
	rec := storage.Attach(reg, fb, nil)
	defer rec.Detach()

	reg.Apply(objMsg(protocol.KindEnter, 3, 0))
	reg.Apply(objMsg(protocol.KindUpdate, 3, 0))

	require.Len(t, fb.calls, 2)
	assert.Equal(t, uint64(2), rec.Failed())
}
