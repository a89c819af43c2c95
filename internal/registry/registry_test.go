package registry

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/augmenta-tech/augmenta-receiver/internal/protocol"
	"github.com/augmenta-tech/augmenta-receiver/pkg/core"
)

// recorder captures every event in dispatch order.
type recorder struct {
	events []core.ObjectEvent
	scenes []core.Scene
}

func (rec *recorder) attach(r *Registry) {
	r.ObjectEntered.Subscribe(func(e core.ObjectEvent) { rec.events = append(rec.events, e) })
	r.ObjectUpdated.Subscribe(func(e core.ObjectEvent) { rec.events = append(rec.events, e) })
	r.ObjectLeft.Subscribe(func(e core.ObjectEvent) { rec.events = append(rec.events, e) })
	r.SceneUpdated.Subscribe(func(e core.SceneEvent) { rec.scenes = append(rec.scenes, e.Scene) })
}

// log renders events as "type:id" with the leave reason for lefts.
func (rec *recorder) log() []string {
	out := make([]string, 0, len(rec.events))
	for _, e := range rec.events {
		s := fmt.Sprintf("%s:%d", e.Type, e.Object.ID)
		if e.Type == core.ObjectLeft {
			s += "(" + e.Reason.String() + ")"
		}
		out = append(out, s)
	}
	return out
}

// shown returns the ids entered without a matching left.
func (rec *recorder) shown() []int {
	set := map[int]bool{}
	for _, e := range rec.events {
		switch e.Type {
		case core.ObjectEntered:
			set[e.Object.ID] = true
		case core.ObjectLeft:
			delete(set, e.Object.ID)
		}
	}
	ids := make([]int, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (rec *recorder) reset() { rec.events = nil }

func newTestRegistry(t *testing.T, cfg Config) (*Registry, *recorder) {
	t.Helper()
	r := New(cfg)
	rec := &recorder{}
	rec.attach(r)
	return r, rec
}

func mainMsg(kind protocol.Kind, id, oid int) *protocol.ObjectMessage {
	return &protocol.ObjectMessage{
		Type:         kind,
		Version:      protocol.V2,
		Channel:      core.ChannelMain,
		ID:           id,
		OrderIndex:   oid,
		Fields:       protocol.FieldCentroid | protocol.FieldVelocity | protocol.FieldRect | protocol.FieldHighestZ,
		Centroid:     core.Vector2{X: 0.2, Y: 0.7},
		Velocity:     core.Vector2{X: 0.3, Y: -0.1},
		BoundingRect: core.Rect{X: 0.1, Y: 0.6, Width: 0.2, Height: 0.3},
		Highest:      core.Vector3{Z: 1.8},
	}
}

func extraMsg(kind protocol.Kind, id, oid int) *protocol.ObjectMessage {
	return &protocol.ObjectMessage{
		Type:             kind,
		Version:          protocol.V2,
		Channel:          core.ChannelExtra,
		ID:               id,
		OrderIndex:       oid,
		Fields:           protocol.FieldHighestXY | protocol.FieldDistanceToSensor | protocol.FieldReflectivity,
		Highest:          core.Vector3{X: 0.4, Y: 0.5},
		DistanceToSensor: 2.5,
		Reflectivity:     0.8,
	}
}

func leaveMsg(id int) *protocol.ObjectMessage {
	return &protocol.ObjectMessage{Type: protocol.KindLeave, ID: id, OrderIndex: -1}
}

func sceneMsg(count int) *protocol.SceneMessage {
	return &protocol.SceneMessage{Version: protocol.V2, ObjectCount: count, Width: 4, Height: 3}
}

func TestUpdateBeforeEnterFiresOneEntered(t *testing.T) {
	r, rec := newTestRegistry(t, Config{})

	r.Apply(mainMsg(protocol.KindUpdate, 1, 0))

	assert.Equal(t, []string{"entered:1"}, rec.log())
	assert.Equal(t, 1, r.Len())
}

func TestEnterUpdateLeave(t *testing.T) {
	r, rec := newTestRegistry(t, Config{})

	r.Apply(mainMsg(protocol.KindEnter, 1, 0))
	r.Apply(mainMsg(protocol.KindUpdate, 1, 0))
	r.Apply(mainMsg(protocol.KindEnter, 1, 0)) // duplicate enter is an update
	r.Apply(leaveMsg(1))
	r.Apply(leaveMsg(1)) // unknown id

	assert.Equal(t, []string{"entered:1", "updated:1", "updated:1", "left:1(message)"}, rec.log())
	assert.Zero(t, r.Len())
	assert.False(t, r.Leave(42, core.ChannelMain))
}

func TestReenterCreatesFreshObject(t *testing.T) {
	r, rec := newTestRegistry(t, Config{Timeout: time.Second})

	r.Apply(mainMsg(protocol.KindEnter, 1, 0))
	r.Tick(300 * time.Millisecond)
	r.Apply(leaveMsg(1))
	r.Apply(extraMsg(protocol.KindEnter, 1, 0))

	obj, ok := r.Object(1)
	require.True(t, ok)
	assert.Zero(t, obj.InactiveTime)
	// main fields of the previous life are gone
	assert.Zero(t, obj.Centroid)
	assert.Equal(t, []string{"entered:1", "left:1(message)", "entered:1"}, rec.log())
	assert.Equal(t, core.ChannelExtra, rec.events[2].Channel)
}

func TestExtraDoesNotClobberMain(t *testing.T) {
	r, _ := newTestRegistry(t, Config{})

	r.Apply(mainMsg(protocol.KindUpdate, 3, 0))
	r.Apply(extraMsg(protocol.KindUpdate, 3, 0))

	obj, ok := r.Object(3)
	require.True(t, ok)
	assert.Equal(t, core.Vector2{X: 0.2, Y: 0.7}, obj.Centroid)
	assert.Equal(t, core.Vector2{X: 0.3, Y: -0.1}, obj.Velocity)
	assert.Equal(t, core.Rect{X: 0.1, Y: 0.6, Width: 0.2, Height: 0.3}, obj.BoundingRect)
	assert.Equal(t, core.Vector3{X: 0.4, Y: 0.5, Z: 1.8}, obj.Highest)
	assert.Equal(t, 2.5, obj.DistanceToSensor)
	assert.Equal(t, 0.8, obj.Reflectivity)
}

func TestMainDoesNotClobberExtra(t *testing.T) {
	r, _ := newTestRegistry(t, Config{})

	r.Apply(extraMsg(protocol.KindEnter, 3, 0))
	m := mainMsg(protocol.KindUpdate, 3, 0)
	m.Highest.Z = 1.2
	r.Apply(m)

	obj, _ := r.Object(3)
	assert.Equal(t, core.Vector3{X: 0.4, Y: 0.5, Z: 1.2}, obj.Highest)
	assert.Equal(t, 2.5, obj.DistanceToSensor)
	assert.Equal(t, 0.8, obj.Reflectivity)
	assert.Equal(t, core.Vector2{X: 0.2, Y: 0.7}, obj.Centroid)
}

func TestTimeoutBoundary(t *testing.T) {
	r, rec := newTestRegistry(t, Config{Timeout: time.Second})

	r.Apply(mainMsg(protocol.KindEnter, 1, 0))
	r.Tick(999 * time.Millisecond)
	_, alive := r.Object(1)
	assert.True(t, alive, "inactive < timeout keeps the object")

	r.Tick(time.Millisecond)
	_, alive = r.Object(1)
	assert.False(t, alive, "inactive == timeout removes the object")
	assert.Equal(t, []string{"entered:1", "left:1(timeout)"}, rec.log())
}

func TestUpdateResetsInactiveTime(t *testing.T) {
	r, rec := newTestRegistry(t, Config{Timeout: time.Second})

	r.Apply(mainMsg(protocol.KindEnter, 1, 0))
	r.Tick(800 * time.Millisecond)
	obj, _ := r.Object(1)
	assert.Equal(t, 800*time.Millisecond, obj.InactiveTime)

	r.Apply(extraMsg(protocol.KindUpdate, 1, 0))
	obj, _ = r.Object(1)
	assert.Zero(t, obj.InactiveTime)

	r.Tick(800 * time.Millisecond)
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, []string{"entered:1", "updated:1"}, rec.log())
}

func TestTickRemovesAllExpiredOnce(t *testing.T) {
	r, rec := newTestRegistry(t, Config{Timeout: time.Second})

	for id := range 5 {
		r.Apply(mainMsg(protocol.KindEnter, id, id))
	}
	r.Tick(500 * time.Millisecond)
	r.Apply(mainMsg(protocol.KindUpdate, 2, 2))
	rec.reset()

	r.Tick(500 * time.Millisecond)

	assert.Equal(t, []int{2}, r.IDs())
	assert.ElementsMatch(t,
		[]string{"left:0(timeout)", "left:1(timeout)", "left:3(timeout)", "left:4(timeout)"},
		rec.log())
	obj, _ := r.Object(2)
	assert.Equal(t, 0, obj.OrderIndex)
}

func TestOrderIndexHint(t *testing.T) {
	r, _ := newTestRegistry(t, Config{})

	r.Apply(mainMsg(protocol.KindEnter, 10, 0))
	r.Apply(mainMsg(protocol.KindEnter, 11, 0))  // inserted in front
	r.Apply(mainMsg(protocol.KindEnter, 12, 99)) // out of range, appended
	assert.Equal(t, []int{11, 10, 12}, r.IDs())

	r.Apply(leaveMsg(11))
	for rank, obj := range r.Objects() {
		assert.Equal(t, rank, obj.OrderIndex)
	}
}

func TestSceneUpdated(t *testing.T) {
	r, rec := newTestRegistry(t, Config{})

	assert.Equal(t, core.Scene{}, r.Scene())
	r.Apply(&protocol.SceneMessage{Version: protocol.V1, Frame: 100, ObjectCount: 3, Width: 4, Height: 3, PercentCovered: 0.5})

	require.Len(t, rec.scenes, 1)
	assert.Equal(t, 4.0, rec.scenes[0].Width)
	assert.Equal(t, 3.0, rec.scenes[0].Height)
	assert.Equal(t, 3, r.Scene().ObjectCount)
	assert.Equal(t, 0.5, r.Scene().PercentCovered)
}

func TestPolicyNewestUsesSceneCount(t *testing.T) {
	r, rec := newTestRegistry(t, Config{Policy: Newest(2)})

	r.Apply(sceneMsg(5))
	for oid := range 5 {
		r.Apply(mainMsg(protocol.KindEnter, oid, oid))
	}

	var visible []int
	for _, o := range r.Visible() {
		visible = append(visible, o.OrderIndex)
	}
	assert.Equal(t, []int{3, 4}, visible)
	assert.Equal(t, []int{3, 4}, rec.shown())
	assert.Equal(t, 5, r.Len())
}

func TestPolicyNewestSlidesWithScene(t *testing.T) {
	r, rec := newTestRegistry(t, Config{Policy: Newest(1)})

	r.Apply(sceneMsg(1))
	r.Apply(mainMsg(protocol.KindEnter, 1, 0))
	r.Apply(mainMsg(protocol.KindEnter, 2, 1))
	// the scene still reports one object, so both ranks pass oid >= 0
	assert.Equal(t, []int{1, 2}, rec.shown())

	r.Apply(sceneMsg(2))
	assert.Equal(t, []int{2}, rec.shown())
	assert.Contains(t, rec.log(), "left:1(policy)")
	assert.True(t, rec.events[len(rec.events)-1].Synthetic)
	assert.Equal(t, 2, r.Len())
}

func TestPolicyOldest(t *testing.T) {
	r, rec := newTestRegistry(t, Config{Policy: Oldest(1)})

	r.Apply(mainMsg(protocol.KindEnter, 1, 0))
	r.Apply(mainMsg(protocol.KindEnter, 2, 1))
	r.Apply(mainMsg(protocol.KindUpdate, 2, 1)) // outside the window, suppressed

	assert.Equal(t, []string{"entered:1"}, rec.log())

	r.Apply(leaveMsg(1))
	assert.Equal(t, []string{"entered:1", "left:1(message)", "entered:2"}, rec.log())
	assert.True(t, rec.events[2].Synthetic)
	assert.Equal(t, []int{2}, rec.shown())
}

func TestPolicyOldestNewcomerInFront(t *testing.T) {
	r, rec := newTestRegistry(t, Config{Policy: Oldest(1)})

	r.Apply(mainMsg(protocol.KindEnter, 1, 0))
	r.Apply(mainMsg(protocol.KindEnter, 2, 0)) // takes rank 0

	assert.Equal(t, []string{"entered:1", "left:1(policy)", "entered:2"}, rec.log())
	assert.False(t, rec.events[2].Synthetic)
}

func TestSetPolicy(t *testing.T) {
	r, rec := newTestRegistry(t, Config{})
	for id := range 3 {
		r.Apply(mainMsg(protocol.KindEnter, id, id))
	}

	r.SetPolicy(Oldest(1))
	assert.Equal(t, []int{0}, rec.shown())
	assert.Equal(t, 1, r.VisibleLen())

	r.SetPolicy(All())
	assert.Equal(t, []int{0, 1, 2}, rec.shown())
	assert.Equal(t, 3, r.VisibleLen())
}

func TestCloseFlush(t *testing.T) {
	r, rec := newTestRegistry(t, Config{FlushOnClose: true, Policy: Oldest(2)})
	for id := range 3 {
		r.Apply(mainMsg(protocol.KindEnter, id, id))
	}
	rec.reset()

	r.Close()

	assert.Equal(t, []string{"left:0(flush)", "left:1(flush)"}, rec.log())
	assert.Zero(t, r.Len())
	assert.True(t, r.Closed())

	r.Apply(mainMsg(protocol.KindEnter, 7, 0))
	r.Tick(time.Hour)
	assert.Len(t, rec.events, 2)
	assert.Zero(t, r.Len())
}

func TestCloseSilent(t *testing.T) {
	r, rec := newTestRegistry(t, Config{})
	r.Apply(mainMsg(protocol.KindEnter, 1, 0))
	rec.reset()

	r.Close()
	r.Close()

	assert.Empty(t, rec.events)
	assert.Zero(t, r.Len())
}

func TestEventsCarryCopies(t *testing.T) {
	r := New(Config{})
	var got core.ObjectEvent
	r.ObjectEntered.Subscribe(func(e core.ObjectEvent) { got = e })

	m := mainMsg(protocol.KindEnter, 1, 0)
	m.Fields |= protocol.FieldContour
	m.Contour = []core.Vector2{{X: 0.1, Y: 0.1}}
	r.Apply(m)

	got.Object.Contour[0].X = 9
	obj, _ := r.Object(1)
	assert.Equal(t, 0.1, obj.Contour[0].X)
}

// Under any mix of messages and ticks, the ids a subscriber has seen enter
// and not leave are exactly the registry's visible set.
func TestShownMatchesVisible(t *testing.T) {
	policies := []Policy{All(), Oldest(2), Oldest(-1), Newest(2), Newest(10)}
	for _, p := range policies {
		t.Run(p.String(), func(t *testing.T) {
			rng := rand.New(rand.NewPCG(1, uint64(p.Count)+uint64(p.Mode)))
			r, rec := newTestRegistry(t, Config{Timeout: 300 * time.Millisecond, Policy: p})

			for range 500 {
				id := rng.IntN(8)
				switch rng.IntN(6) {
				case 0:
					r.Apply(mainMsg(protocol.KindEnter, id, rng.IntN(10)))
				case 1:
					r.Apply(mainMsg(protocol.KindUpdate, id, rng.IntN(10)))
				case 2:
					r.Apply(extraMsg(protocol.KindUpdate, id, rng.IntN(10)))
				case 3:
					r.Apply(leaveMsg(id))
				case 4:
					r.Tick(time.Duration(rng.IntN(200)) * time.Millisecond)
				case 5:
					r.Apply(sceneMsg(rng.IntN(8)))
				}

				var visible []int
				for _, o := range r.Visible() {
					visible = append(visible, o.ID)
				}
				slices.Sort(visible)
				if visible == nil {
					visible = []int{}
				}
				require.Equal(t, visible, rec.shown())
				if p.Mode == ModeAll {
					require.Equal(t, r.Len(), len(visible))
				}
				for rank, o := range r.Objects() {
					require.Equal(t, rank, o.OrderIndex)
				}
			}
		})
	}
}
