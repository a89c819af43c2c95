package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/augmenta-tech/augmenta-receiver/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// WORLD SPACE
// Object data is normalized to the sensing plane. These helpers turn it into
// meters using the last scene size and a user scaling coefficient. Nothing
// here is stored by the registry; callers recompute on demand.
//
// World axes: X to the right, Y up (height), Z forward. The plane origin is
// the scene center, and sensor Y grows towards -Z.

// ErrEmptyScene is returned when the scene has no surface yet.
var ErrEmptyScene = errors.New("scene has no surface")

// Plane is the scaled sensing plane objects are projected onto.
type Plane struct {
	Width   float64
	Height  float64
	Scaling float64
}

// NewPlane returns the plane of scene scaled by scaling.
func NewPlane(scene core.Scene, scaling float64) Plane {
	return Plane{Width: scene.Width, Height: scene.Height, Scaling: scaling}
}

// Area returns the plane surface in square meters, scaling included.
func (p Plane) Area() float64 {
	return p.Width * p.Height * p.Scaling * p.Scaling
}

// toMeters maps a normalized plane point to centered meters, keeping sensor
// orientation (Y grows with the normalized Y).
func (p Plane) toMeters(v core.Vector2) geom.XY {
	return geom.XY{
		X: (v.X - 0.5) * p.Width * p.Scaling,
		Y: (v.Y - 0.5) * p.Height * p.Scaling,
	}
}

// WorldPosition returns the object centroid in world space. With withHeight
// the point is lifted to half the object height.
func WorldPosition(obj core.TrackedObject, scene core.Scene, scaling float64, withHeight bool) core.Vector3 {
	var y float64
	if withHeight {
		y = obj.Highest.Z * 0.5 * scaling
	}
	return core.Vector3{
		X: (obj.Centroid.X - 0.5) * scene.Width * scaling,
		Y: y,
		Z: -(obj.Centroid.Y - 0.5) * scene.Height * scaling,
	}
}

// WorldScale returns the object bounding box size in world space.
func WorldScale(obj core.TrackedObject, scene core.Scene, scaling float64) core.Vector3 {
	return core.Vector3{
		X: obj.BoundingRect.Width * scene.Width * scaling,
		Y: obj.Highest.Z * scaling,
		Z: obj.BoundingRect.Height * scene.Height * scaling,
	}
}

// PlanePoint returns the centroid on the plane in meters, with the object
// height as Z.
func PlanePoint(obj core.TrackedObject, scene core.Scene, scaling float64) geom.Point {
	xy := NewPlane(scene, scaling).toMeters(obj.Centroid)
	return geom.NewPoint(
		geom.Coordinates{
			XY:   xy,
			Z:    obj.Highest.Z * scaling,
			Type: geom.DimXYZ,
		},
	)
}

// Footprint returns the object bounding rectangle on the plane in meters,
// rotated by the rect rotation (degrees, counter-clockwise).
func Footprint(obj core.TrackedObject, scene core.Scene, scaling float64) geom.Polygon {
	plane := NewPlane(scene, scaling)
	r := obj.BoundingRect
	c := plane.toMeters(core.Vector2{X: r.X, Y: r.Y})
	hw := r.Width * plane.Width * plane.Scaling / 2
	hh := r.Height * plane.Height * plane.Scaling / 2

	sin, cos := math.Sincos(r.Rotation * math.Pi / 180)
	corner := func(dx, dy float64) (float64, float64) {
		return c.X + dx*cos - dy*sin, c.Y + dx*sin + dy*cos
	}

	flat := make([]float64, 0, 10)
	for _, d := range [][2]float64{{-hw, -hh}, {hw, -hh}, {hw, hh}, {-hw, hh}, {-hw, -hh}} {
		x, y := corner(d[0], d[1])
		flat = append(flat, x, y)
	}
	ring := geom.NewLineString(geom.NewSequence(flat, geom.DimXY))
	return geom.NewPolygon([]geom.LineString{ring})
}

// Coverage returns the share of the plane covered by the union of the
// objects' footprints, in [0,1]. Overlapping footprints count once.
func Coverage(objects []core.TrackedObject, scene core.Scene, scaling float64) (float64, error) {
	plane := NewPlane(scene, scaling)
	if plane.Area() <= 0 {
		return 0, ErrEmptyScene
	}

	var union geom.Geometry
	have := false
	for _, obj := range objects {
		fp := Footprint(obj, scene, scaling)
		if fp.Area() <= 0 {
			continue
		}
		if !have {
			union, have = fp.AsGeometry(), true
			continue
		}
		u, err := geom.Union(union, fp.AsGeometry())
		if err != nil {
			return 0, fmt.Errorf("failed to merge footprint of object %d: %w", obj.ID, err)
		}
		union = u
	}
	if !have {
		return 0, nil
	}
	return min(union.Area()/plane.Area(), 1), nil
}
