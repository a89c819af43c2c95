package protocol

import (
	"fmt"

	"github.com/augmenta-tech/augmenta-receiver/pkg/core"
)

// Minimum argument counts per layout.
const (
	lenV1Object   = 15
	lenV1Leave    = 1
	lenV1Scene    = 7
	lenV2Main     = 15
	lenV2Extra    = 7
	lenV2Leave    = 2
	lenV2Scene    = 4
	v1ContourBase = 20
)

// DefaultPixelSize converts v1 scene pixels to meters.
const DefaultPixelSize = 0.005

// Options configures a Decoder.
type Options struct {
	Version   Version
	Flips     Flips
	PixelSize float64
}

// Decoder turns (address, args) pairs into typed messages.
// It is not safe for concurrent use; the host loop owns it.
type Decoder struct {
	opts Options
}

// NewDecoder validates the protocol version once, at startup.
func NewDecoder(opts Options) (*Decoder, error) {
	if _, ok := routes[opts.Version]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVersion, opts.Version)
	}
	if opts.PixelSize <= 0 {
		opts.PixelSize = DefaultPixelSize
	}
	return &Decoder{opts: opts}, nil
}

// Options returns the active configuration.
func (d *Decoder) Options() Options { return d.opts }

// Version returns the configured protocol version.
func (d *Decoder) Version() Version { return d.opts.Version }

// SetFlips changes the axis flips for subsequent messages.
func (d *Decoder) SetFlips(f Flips) { d.opts.Flips = f }

// SetPixelSize changes the v1 pixel-to-meter factor. Non-positive values are ignored.
func (d *Decoder) SetPixelSize(p float64) {
	if p > 0 {
		d.opts.PixelSize = p
	}
}

// Decode returns ErrUnrecognizedAddress for addresses outside the configured family
// and a *MalformedError when the arguments do not fit the address layout.
func (d *Decoder) Decode(address string, args []any) (Message, error) {
	kind, channel, ok := Lookup(d.opts.Version, address)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnrecognizedAddress, address)
	}
	address = NormalizeAddress(address)
	r := &argReader{address: address, args: args}

	if kind == KindScene {
		s, err := d.decodeScene(r)
		if err != nil {
			return nil, err
		}
		return s, nil
	}

	var m *ObjectMessage
	var err error
	switch {
	case kind == KindLeave:
		m, err = d.decodeLeave(r)
	case d.opts.Version == V1:
		m, err = d.decodeV1Object(r)
	case channel == core.ChannelExtra:
		m, err = d.decodeV2Extra(r)
	default:
		m, err = d.decodeV2Main(r)
	}
	if err != nil {
		return nil, err
	}
	m.Type = kind
	m.Channel = channel
	m.Version = d.opts.Version
	d.opts.Flips.Apply(m)
	return m, nil
}

func short(r *argReader, want int) error {
	if len(r.args) < want {
		return &MalformedError{Address: r.address, Index: -1, Want: want, Got: len(r.args)}
	}
	return nil
}

func (d *Decoder) decodeV1Object(r *argReader) (*ObjectMessage, error) {
	if err := short(r, lenV1Object); err != nil {
		return nil, err
	}
	m := &ObjectMessage{
		ID:         r.int(0),
		OrderIndex: r.int(1),
		AgeFrames:  r.int(2),
		Centroid:   r.vec2(3),
		Velocity:   r.vec2(5),
		Depth:      r.float(7),
		BoundingRect: core.Rect{
			X: r.float(8), Y: r.float(9), Width: r.float(10), Height: r.float(11),
		},
		Highest: core.Vector3{X: r.float(12), Y: r.float(13), Z: r.float(14)},
		Fields:  fieldsV1 | FieldContour,
	}
	if n := (len(r.args) - v1ContourBase) / 2; n > 0 {
		m.Contour = make([]core.Vector2, n)
		for i := range m.Contour {
			m.Contour[i] = r.vec2(v1ContourBase + 2*i)
		}
	}
	return m, r.err
}

func (d *Decoder) decodeV2Main(r *argReader) (*ObjectMessage, error) {
	if err := short(r, lenV2Main); err != nil {
		return nil, err
	}
	m := &ObjectMessage{
		Frame:       r.int(0),
		ID:          r.int(1),
		OrderIndex:  r.int(2),
		AgeSeconds:  r.float(3),
		Centroid:    r.vec2(4),
		Velocity:    r.vec2(6),
		Orientation: r.float(8),
		BoundingRect: core.Rect{
			X: r.float(9), Y: r.float(10), Width: r.float(11), Height: r.float(12),
			Rotation: r.float(13),
		},
		Highest: core.Vector3{Z: r.float(14)},
		Fields:  fieldsV2Main,
	}
	return m, r.err
}

func (d *Decoder) decodeV2Extra(r *argReader) (*ObjectMessage, error) {
	if err := short(r, lenV2Extra); err != nil {
		return nil, err
	}
	m := &ObjectMessage{
		Frame:            r.int(0),
		ID:               r.int(1),
		OrderIndex:       r.int(2),
		Highest:          core.Vector3{X: r.float(3), Y: r.float(4)},
		DistanceToSensor: r.float(5),
		Reflectivity:     r.float(6),
		Fields:           fieldsV2Extra,
	}
	return m, r.err
}

// decodeLeave only needs the id; the order index is read when present.
func (d *Decoder) decodeLeave(r *argReader) (*ObjectMessage, error) {
	m := &ObjectMessage{OrderIndex: -1}
	if d.opts.Version == V1 {
		if err := short(r, lenV1Leave); err != nil {
			return nil, err
		}
		m.ID = r.int(0)
		if len(r.args) > 1 {
			m.OrderIndex = r.int(1)
		}
		return m, r.err
	}
	if err := short(r, lenV2Leave); err != nil {
		return nil, err
	}
	m.Frame = r.int(0)
	m.ID = r.int(1)
	m.Fields = FieldFrame
	if len(r.args) > 2 {
		m.OrderIndex = r.int(2)
	}
	return m, r.err
}

func (d *Decoder) decodeScene(r *argReader) (*SceneMessage, error) {
	m := &SceneMessage{Version: d.opts.Version}
	if d.opts.Version == V1 {
		if err := short(r, lenV1Scene); err != nil {
			return nil, err
		}
		m.Frame = r.int(0)
		m.PercentCovered = r.float(1)
		m.ObjectCount = r.int(2)
		m.AverageMotion = r.vec2(3)
		m.Width = r.float(5) * d.opts.PixelSize
		m.Height = r.float(6) * d.opts.PixelSize
		return m, r.err
	}
	if err := short(r, lenV2Scene); err != nil {
		return nil, err
	}
	m.Frame = r.int(0)
	m.ObjectCount = r.int(1)
	m.Width = r.float(2)
	m.Height = r.float(3)
	return m, r.err
}
