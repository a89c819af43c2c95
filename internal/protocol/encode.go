package protocol

import (
	"fmt"
	"math"

	"github.com/augmenta-tech/augmenta-receiver/pkg/core"
)

// Encoder produces OSC argument lists in the same layouts the Decoder reads.
// Flips are reverted on the way out, so a message decoded and re-encoded with
// the same options reproduces the original arguments.
type Encoder struct {
	opts Options
}

func NewEncoder(opts Options) (*Encoder, error) {
	if _, ok := routes[opts.Version]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVersion, opts.Version)
	}
	if opts.PixelSize <= 0 {
		opts.PixelSize = DefaultPixelSize
	}
	return &Encoder{opts: opts}, nil
}

// Encode returns the address and argument list for msg.
func (e *Encoder) Encode(msg Message) (string, []any, error) {
	switch m := msg.(type) {
	case *ObjectMessage:
		return e.encodeObject(m)
	case *SceneMessage:
		return e.encodeScene(m)
	default:
		return "", nil, fmt.Errorf("cannot encode %T", msg)
	}
}

func (e *Encoder) encodeObject(src *ObjectMessage) (string, []any, error) {
	addr, ok := AddressFor(e.opts.Version, src.Type, src.Channel)
	if !ok {
		return "", nil, fmt.Errorf("%w: no %s %s address in %s", ErrUnrecognizedAddress, src.Channel, src.Type, e.opts.Version)
	}
	m := *src
	if src.Contour != nil {
		m.Contour = append([]core.Vector2(nil), src.Contour...)
	}
	e.opts.Flips.Revert(&m)

	if m.Type == KindLeave {
		if e.opts.Version == V1 {
			return addr, []any{int32(m.ID), int32(max(m.OrderIndex, 0))}, nil
		}
		return addr, []any{int32(m.Frame), int32(m.ID), int32(max(m.OrderIndex, 0))}, nil
	}

	switch {
	case e.opts.Version == V1:
		args := []any{
			int32(m.ID), int32(m.OrderIndex), int32(m.AgeFrames),
			float32(m.Centroid.X), float32(m.Centroid.Y),
			float32(m.Velocity.X), float32(m.Velocity.Y),
			float32(m.Depth),
			float32(m.BoundingRect.X), float32(m.BoundingRect.Y),
			float32(m.BoundingRect.Width), float32(m.BoundingRect.Height),
			float32(m.Highest.X), float32(m.Highest.Y), float32(m.Highest.Z),
		}
		if len(m.Contour) > 0 {
			for len(args) < v1ContourBase {
				args = append(args, float32(0))
			}
			for _, p := range m.Contour {
				args = append(args, float32(p.X), float32(p.Y))
			}
		}
		return addr, args, nil
	case m.Channel == core.ChannelExtra:
		return addr, []any{
			int32(m.Frame), int32(m.ID), int32(m.OrderIndex),
			float32(m.Highest.X), float32(m.Highest.Y),
			float32(m.DistanceToSensor), float32(m.Reflectivity),
		}, nil
	default:
		return addr, []any{
			int32(m.Frame), int32(m.ID), int32(m.OrderIndex),
			float32(m.AgeSeconds),
			float32(m.Centroid.X), float32(m.Centroid.Y),
			float32(m.Velocity.X), float32(m.Velocity.Y),
			float32(m.Orientation),
			float32(m.BoundingRect.X), float32(m.BoundingRect.Y),
			float32(m.BoundingRect.Width), float32(m.BoundingRect.Height),
			float32(m.BoundingRect.Rotation),
			float32(m.Highest.Z),
		}, nil
	}
}

func (e *Encoder) encodeScene(m *SceneMessage) (string, []any, error) {
	if e.opts.Version == V1 {
		return AddrV1Scene, []any{
			int32(m.Frame), float32(m.PercentCovered), int32(m.ObjectCount),
			float32(m.AverageMotion.X), float32(m.AverageMotion.Y),
			int32(math.Round(m.Width / e.opts.PixelSize)),
			int32(math.Round(m.Height / e.opts.PixelSize)),
		}, nil
	}
	return AddrV2Scene, []any{
		int32(m.Frame), int32(m.ObjectCount), float32(m.Width), float32(m.Height),
	}, nil
}
