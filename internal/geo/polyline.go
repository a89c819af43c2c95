package geo

import (
	"fmt"

	"github.com/augmenta-tech/augmenta-receiver/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// ContourLine converts a normalized contour into a line string in plane
// meters. The contour must have at least 2 points.
func ContourLine(contour []core.Vector2, scene core.Scene, scaling float64) (geom.LineString, error) {
	if len(contour) < 2 {
		return geom.LineString{}, fmt.Errorf("contour must have at least 2 points, got %d", len(contour))
	}
	plane := NewPlane(scene, scaling)

	flatCoords := make([]float64, 0, len(contour)*2)
	for _, p := range contour {
		xy := plane.toMeters(p)
		flatCoords = append(flatCoords, xy.X, xy.Y)
	}
	return geom.NewLineString(geom.NewSequence(flatCoords, geom.DimXY)), nil
}

// ContourPolygon closes a contour into a polygon in plane meters. The
// contour must have at least 3 points; the closing point is added when
// missing.
func ContourPolygon(contour []core.Vector2, scene core.Scene, scaling float64) (geom.Polygon, error) {
	if len(contour) < 3 {
		return geom.Polygon{}, fmt.Errorf("contour polygon needs at least 3 points, got %d", len(contour))
	}
	ring := contour
	if contour[0] != contour[len(contour)-1] {
		ring = append(append([]core.Vector2(nil), contour...), contour[0])
	}
	ls, err := ContourLine(ring, scene, scaling)
	if err != nil {
		return geom.Polygon{}, err
	}
	poly := geom.NewPolygon([]geom.LineString{ls})
	if err := poly.Validate(); err != nil {
		return geom.Polygon{}, fmt.Errorf("invalid contour polygon: %w", err)
	}
	return poly, nil
}
