package main

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/augmenta-tech/augmenta-receiver/internal/protocol"
	"github.com/augmenta-tech/augmenta-receiver/pkg/core"
)

// simConfig shapes the synthetic scene.
type simConfig struct {
	Version  protocol.Version
	Objects  int
	Width    float64
	Height   float64
	Extra    bool
	Lifetime time.Duration
	Speed    float64 // normalized units per second
	Seed     uint64
}

type simObject struct {
	id      int
	entered bool
	age     time.Duration
	pos     core.Vector2
	vel     core.Vector2
	size    core.Vector2
	height  float64
}

// simulator moves objects around the unit plane and produces one frame of
// protocol messages per step.
type simulator struct {
	cfg     simConfig
	rng     *rand.Rand
	objects []*simObject
	nextID  int
	frame   int
}

func newSimulator(cfg simConfig) *simulator {
	if cfg.Speed <= 0 {
		cfg.Speed = 0.2
	}
	s := &simulator{
		cfg: cfg,
		rng: rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
	}
	for range cfg.Objects {
		s.spawn()
	}
	return s
}

func (s *simulator) spawn() {
	angle := s.rng.Float64() * 2 * math.Pi
	speed := s.cfg.Speed * (0.5 + s.rng.Float64())
	s.objects = append(s.objects, &simObject{
		id:     s.nextID,
		pos:    core.Vector2{X: 0.1 + 0.8*s.rng.Float64(), Y: 0.1 + 0.8*s.rng.Float64()},
		vel:    core.Vector2{X: math.Cos(angle) * speed, Y: math.Sin(angle) * speed},
		size:   core.Vector2{X: 0.03 + 0.04*s.rng.Float64(), Y: 0.03 + 0.04*s.rng.Float64()},
		height: 1.5 + 0.4*s.rng.Float64(),
	})
	s.nextID++
}

// bounce keeps p in [lo, hi], reflecting v at the edges.
func bounce(p, v, lo, hi float64) (float64, float64) {
	if p < lo {
		return 2*lo - p, -v
	}
	if p > hi {
		return 2*hi - p, -v
	}
	return p, v
}

// step advances the scene by dt and returns the scene message followed by
// the object messages of this frame.
func (s *simulator) step(dt time.Duration) []protocol.Message {
	s.frame++
	sec := dt.Seconds()

	msgs := []protocol.Message{&protocol.SceneMessage{
		Version:     s.cfg.Version,
		Frame:       s.frame,
		ObjectCount: len(s.objects),
		Width:       s.cfg.Width,
		Height:      s.cfg.Height,
	}}

	var kept []*simObject
	var left int
	for i, o := range s.objects {
		o.age += dt
		if s.cfg.Lifetime > 0 && o.age > s.cfg.Lifetime {
			msgs = append(msgs, &protocol.ObjectMessage{
				Type:       protocol.KindLeave,
				Version:    s.cfg.Version,
				Channel:    core.ChannelMain,
				ID:         o.id,
				OrderIndex: i - left,
				Frame:      s.frame,
			})
			left++
			continue
		}

		o.pos.X, o.vel.X = bounce(o.pos.X+o.vel.X*sec, o.vel.X, 0.05, 0.95)
		o.pos.Y, o.vel.Y = bounce(o.pos.Y+o.vel.Y*sec, o.vel.Y, 0.05, 0.95)

		kind := protocol.KindUpdate
		if !o.entered {
			kind = protocol.KindEnter
			o.entered = true
		}
		msgs = append(msgs, s.objectMessage(kind, o, len(kept)))
		if s.cfg.Extra && s.cfg.Version == protocol.V2 {
			msgs = append(msgs, s.extraMessage(kind, o, len(kept)))
		}
		kept = append(kept, o)
	}
	s.objects = kept
	for range left {
		s.spawn()
	}
	return msgs
}

func (s *simulator) objectMessage(kind protocol.Kind, o *simObject, order int) *protocol.ObjectMessage {
	return &protocol.ObjectMessage{
		Type:        kind,
		Version:     s.cfg.Version,
		Channel:     core.ChannelMain,
		ID:          o.id,
		OrderIndex:  order,
		Frame:       s.frame,
		AgeFrames:   int(o.age.Seconds() * 60),
		AgeSeconds:  o.age.Seconds(),
		Centroid:    o.pos,
		Velocity:    o.vel,
		Orientation: math.Mod(math.Atan2(o.vel.Y, o.vel.X)*180/math.Pi+360, 360),
		BoundingRect: core.Rect{
			X:      o.pos.X,
			Y:      o.pos.Y,
			Width:  o.size.X,
			Height: o.size.Y,
		},
		Highest: core.Vector3{X: o.pos.X, Y: o.pos.Y, Z: o.height},
		Depth:   o.height,
	}
}

func (s *simulator) extraMessage(kind protocol.Kind, o *simObject, order int) *protocol.ObjectMessage {
	return &protocol.ObjectMessage{
		Type:             kind,
		Version:          s.cfg.Version,
		Channel:          core.ChannelExtra,
		ID:               o.id,
		OrderIndex:       order,
		Frame:            s.frame,
		Highest:          core.Vector3{X: o.pos.X, Y: o.pos.Y},
		DistanceToSensor: 4 - o.height,
		Reflectivity:     0.5,
	}
}
