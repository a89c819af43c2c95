package protocol

import "github.com/augmenta-tech/augmenta-receiver/pkg/core"

// Message is a decoded protocol message: *ObjectMessage or *SceneMessage.
type Message interface {
	Kind() Kind
}

// Field is a bit set of the TrackedObject fields an ObjectMessage carries.
type Field uint32

const (
	FieldFrame Field = 1 << iota
	FieldAgeFrames
	FieldAgeSeconds
	FieldCentroid
	FieldVelocity
	FieldOrientation
	FieldRect
	FieldRectRotation
	FieldDepth
	FieldHighestXY
	FieldHighestZ
	FieldDistanceToSensor
	FieldReflectivity
	FieldContour
)

// Has reports whether every bit of f2 is set in f.
func (f Field) Has(f2 Field) bool { return f&f2 == f2 }

// Field sets carried by each layout.
const (
	fieldsV1 = FieldAgeFrames | FieldCentroid | FieldVelocity | FieldDepth |
		FieldRect | FieldHighestXY | FieldHighestZ
	fieldsV2Main = FieldFrame | FieldAgeSeconds | FieldCentroid | FieldVelocity |
		FieldOrientation | FieldRect | FieldRectRotation | FieldHighestZ
	fieldsV2Extra = FieldFrame | FieldHighestXY | FieldDistanceToSensor | FieldReflectivity
)

// ObjectMessage is an enter, update or leave for one object.
// Only the fields flagged in Fields are meaningful.
type ObjectMessage struct {
	Type       Kind
	Version    Version
	Channel    core.Channel
	ID         int
	OrderIndex int
	Fields     Field

	Frame            int
	AgeFrames        int
	AgeSeconds       float64
	Centroid         core.Vector2
	Velocity         core.Vector2
	Orientation      float64
	BoundingRect     core.Rect
	Depth            float64
	Highest          core.Vector3
	DistanceToSensor float64
	Reflectivity     float64
	Contour          []core.Vector2
}

func (m *ObjectMessage) Kind() Kind { return m.Type }

// MergeInto copies the carried fields into o. Fields owned by the other channel are left untouched.
func (m *ObjectMessage) MergeInto(o *core.TrackedObject) {
	o.ID = m.ID
	f := m.Fields
	if f.Has(FieldFrame) {
		o.Frame = m.Frame
	}
	if f.Has(FieldAgeFrames) {
		o.AgeFrames = m.AgeFrames
	}
	if f.Has(FieldAgeSeconds) {
		o.AgeSeconds = m.AgeSeconds
	}
	if f.Has(FieldCentroid) {
		o.Centroid = m.Centroid
	}
	if f.Has(FieldVelocity) {
		o.Velocity = m.Velocity
	}
	if f.Has(FieldOrientation) {
		o.Orientation = m.Orientation
	}
	if f.Has(FieldRect) {
		rotation := o.BoundingRect.Rotation
		o.BoundingRect = m.BoundingRect
		if !f.Has(FieldRectRotation) {
			o.BoundingRect.Rotation = rotation
		}
	}
	if f.Has(FieldDepth) {
		o.Depth = m.Depth
	}
	if f.Has(FieldHighestXY) {
		o.Highest.X = m.Highest.X
		o.Highest.Y = m.Highest.Y
	}
	if f.Has(FieldHighestZ) {
		o.Highest.Z = m.Highest.Z
	}
	if f.Has(FieldDistanceToSensor) {
		o.DistanceToSensor = m.DistanceToSensor
	}
	if f.Has(FieldReflectivity) {
		o.Reflectivity = m.Reflectivity
	}
	if f.Has(FieldContour) {
		o.Contour = append(o.Contour[:0], m.Contour...)
	}
}

// SceneMessage is a scene geometry update.
type SceneMessage struct {
	Version        Version
	Frame          int
	ObjectCount    int
	Width          float64
	Height         float64
	PercentCovered float64
	AverageMotion  core.Vector2
}

func (m *SceneMessage) Kind() Kind { return KindScene }

// Apply overwrites the scene fields carried by the message.
func (m *SceneMessage) Apply(s *core.Scene) {
	s.Frame = m.Frame
	s.ObjectCount = m.ObjectCount
	s.Width = m.Width
	s.Height = m.Height
	if m.Version == V1 {
		s.PercentCovered = m.PercentCovered
		s.AverageMotion = m.AverageMotion
	}
}
