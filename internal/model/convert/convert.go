package convert

import (
	"encoding/json"

	"github.com/augmenta-tech/augmenta-receiver/internal/model"
	"github.com/augmenta-tech/augmenta-receiver/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// pointToVector2 converts a geom.Point to a core.Vector2
func pointToVector2(p geom.Point) core.Vector2 {
	coord, ok := p.Coordinates()
	if !ok {
		return core.Vector2{}
	}
	return core.Vector2{X: coord.XY.X, Y: coord.XY.Y}
}

// lineStringToContour converts a geom.LineString to a contour
func lineStringToContour(ls geom.LineString) []core.Vector2 {
	seq := ls.Coordinates()
	if seq.Length() == 0 {
		return nil
	}
	contour := make([]core.Vector2, seq.Length())
	for i := 0; i < seq.Length(); i++ {
		pt := seq.GetXY(i)
		contour[i] = core.Vector2{X: pt.X, Y: pt.Y}
	}
	return contour
}

// SessionToCore converts a GORM Session to a core.Session.
// GORM Session.UUID maps to core Session.ID.
func SessionToCore(s model.Session) core.Session {
	var settings map[string]any
	if len(s.Settings) > 0 {
		_ = json.Unmarshal(s.Settings, &settings)
	}
	out := core.Session{
		ID:              s.UUID,
		StartTime:       s.StartTime,
		ProtocolVersion: s.ProtocolVersion,
		Port:            s.Port,
		Policy:          s.Policy,
		PolicyCount:     s.PolicyCount,
		Settings:        settings,
	}
	if s.EndTime.Valid {
		out.EndTime = s.EndTime.Time
	}
	return out
}

// ObjectStateToCore converts a GORM ObjectState back to a core.TrackedObject.
// Stored values are float32, so precision is that of the wire format.
func ObjectStateToCore(s model.ObjectState) core.TrackedObject {
	return core.TrackedObject{
		ID:          s.ObjectID,
		OrderIndex:  s.OrderIndex,
		Frame:       s.Frame,
		AgeFrames:   s.AgeFrames,
		AgeSeconds:  float64(s.AgeSeconds),
		Centroid:    pointToVector2(s.Centroid),
		Velocity:    core.Vector2{X: float64(s.VelocityX), Y: float64(s.VelocityY)},
		Orientation: float64(s.Orientation),
		BoundingRect: core.Rect{
			X:        float64(s.BoundingRect.X),
			Y:        float64(s.BoundingRect.Y),
			Width:    float64(s.BoundingRect.Width),
			Height:   float64(s.BoundingRect.Height),
			Rotation: float64(s.BoundingRect.Rotation),
		},
		Depth:            float64(s.Depth),
		Highest:          core.Vector3{X: float64(s.HighestX), Y: float64(s.HighestY), Z: float64(s.HighestZ)},
		DistanceToSensor: float64(s.Distance),
		Reflectivity:     float64(s.Reflectivity),
		Contour:          lineStringToContour(s.Contour),
	}
}

// SceneStateToCore converts a GORM SceneState to a core.Scene.
func SceneStateToCore(s model.SceneState) core.Scene {
	return core.Scene{
		Frame:          s.Frame,
		Width:          float64(s.Width),
		Height:         float64(s.Height),
		ObjectCount:    s.ObjectCount,
		PercentCovered: float64(s.PercentCovered),
		AverageMotion:  core.Vector2{X: float64(s.AverageMotionX), Y: float64(s.AverageMotionY)},
	}
}
