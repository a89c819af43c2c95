// pkg/core/object.go
package core

import "time"

// Vector2 is a point or direction on the sensing plane.
type Vector2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Vector3 is a point with height above the sensing plane.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Rect is a bounding rectangle in normalized plane coordinates.
// Rotation is in degrees and only reported by protocol v2.
type Rect struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Rotation float64 `json:"rotation"`
}

// Channel identifies which payload sub-stream an update arrived on.
type Channel uint8

const (
	ChannelMain Channel = iota
	ChannelExtra
)

func (c Channel) String() string {
	switch c {
	case ChannelMain:
		return "main"
	case ChannelExtra:
		return "extra"
	default:
		return "unknown"
	}
}

// TrackedObject is one tracked entity on the sensing plane.
// Positions are normalized to [0,1]; Highest.Z and Depth carry height information.
type TrackedObject struct {
	ID               int           `json:"id"`
	OrderIndex       int           `json:"oid"`
	Frame            int           `json:"frame"`
	AgeFrames        int           `json:"ageFrames"`
	AgeSeconds       float64       `json:"ageSeconds"`
	Centroid         Vector2       `json:"centroid"`
	Velocity         Vector2       `json:"velocity"`
	Orientation      float64       `json:"orientation"`
	BoundingRect     Rect          `json:"boundingRect"`
	Depth            float64       `json:"depth"`
	Highest          Vector3       `json:"highest"`
	DistanceToSensor float64       `json:"distanceToSensor"`
	Reflectivity     float64       `json:"reflectivity"`
	Contour          []Vector2     `json:"contour,omitempty"`
	InactiveTime     time.Duration `json:"inactiveTime"`
}

// Clone returns a copy that shares no memory with o.
func (o TrackedObject) Clone() TrackedObject {
	c := o
	if o.Contour != nil {
		c.Contour = make([]Vector2, len(o.Contour))
		copy(c.Contour, o.Contour)
	}
	return c
}
