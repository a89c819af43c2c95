// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/augmenta-tech/augmenta-receiver/internal/geo"
	"github.com/augmenta-tech/augmenta-receiver/internal/model"
	"github.com/augmenta-tech/augmenta-receiver/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
)

// vector2ToPoint converts a normalized plane point to a geom.Point
func vector2ToPoint(v core.Vector2) geom.Point {
	return geom.NewPoint(geom.Coordinates{XY: geom.XY{X: v.X, Y: v.Y}})
}

// contourToLineString converts a contour to a geom.LineString. Contours with
// fewer than 2 points become an empty line string.
func contourToLineString(c []core.Vector2) geom.LineString {
	if len(c) < 2 {
		return geom.LineString{}
	}
	coords := make([]float64, 0, len(c)*2)
	for _, pt := range c {
		coords = append(coords, pt.X, pt.Y)
	}
	return geom.NewLineString(geom.NewSequence(coords, geom.DimXY))
}

// contourOutline returns the contour as a polygon in plane meters, or an
// empty polygon when the contour cannot be closed into a valid ring.
func contourOutline(c []core.Vector2, scene core.Scene, scaling float64) geom.Polygon {
	if len(c) < 3 {
		return geom.Polygon{}
	}
	poly, err := geo.ContourPolygon(c, scene, scaling)
	if err != nil {
		return geom.Polygon{}
	}
	return poly
}

// settingsToJSON converts a settings map to datatypes.JSON for DB storage.
func settingsToJSON(settings map[string]any) datatypes.JSON {
	if len(settings) == 0 {
		return datatypes.JSON("{}")
	}
	data, err := json.Marshal(settings)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(data)
}

// CoreToSession converts a core.Session to a GORM model.Session.
// core.Session.ID maps to GORM Session.UUID.
func CoreToSession(s core.Session) model.Session {
	out := model.Session{
		UUID:            s.ID,
		StartTime:       s.StartTime,
		ProtocolVersion: s.ProtocolVersion,
		Port:            s.Port,
		Policy:          s.Policy,
		PolicyCount:     s.PolicyCount,
		Settings:        settingsToJSON(s.Settings),
	}
	if !s.EndTime.IsZero() {
		out.EndTime = sql.NullTime{Time: s.EndTime, Valid: true}
	}
	return out
}

// CoreToObjectEvent converts an entered or left event to a GORM
// model.ObjectEvent.
func CoreToObjectEvent(e core.ObjectEvent, sessionID uint) model.ObjectEvent {
	out := model.ObjectEvent{
		Time:      e.Time,
		SessionID: sessionID,
		ObjectID:  e.Object.ID,
		Frame:     e.Object.Frame,
		Type:      e.Type.String(),
		Channel:   e.Channel.String(),
		Synthetic: e.Synthetic,
	}
	if e.Reason != core.LeaveNone {
		out.Reason = e.Reason.String()
	}
	return out
}

// CoreToObjectState converts an object sample to a GORM model.ObjectState.
// The plane position is computed from scene and scaling.
func CoreToObjectState(obj core.TrackedObject, ch core.Channel, t time.Time, sessionID uint, scene core.Scene, scaling float64) model.ObjectState {
	return model.ObjectState{
		Time:        t,
		SessionID:   sessionID,
		ObjectID:    obj.ID,
		OrderIndex:  obj.OrderIndex,
		Frame:       obj.Frame,
		Channel:     ch.String(),
		AgeFrames:   obj.AgeFrames,
		AgeSeconds:  float32(obj.AgeSeconds),
		Centroid:    vector2ToPoint(obj.Centroid),
		Position:    geo.PlanePoint(obj, scene, scaling),
		VelocityX:   float32(obj.Velocity.X),
		VelocityY:   float32(obj.Velocity.Y),
		Orientation: float32(obj.Orientation),
		BoundingRect: model.Rect{
			X:        float32(obj.BoundingRect.X),
			Y:        float32(obj.BoundingRect.Y),
			Width:    float32(obj.BoundingRect.Width),
			Height:   float32(obj.BoundingRect.Height),
			Rotation: float32(obj.BoundingRect.Rotation),
		},
		Depth:        float32(obj.Depth),
		HighestX:     float32(obj.Highest.X),
		HighestY:     float32(obj.Highest.Y),
		HighestZ:     float32(obj.Highest.Z),
		Distance:     float32(obj.DistanceToSensor),
		Reflectivity: float32(obj.Reflectivity),
		Contour:      contourToLineString(obj.Contour),
		Outline:      contourOutline(obj.Contour, scene, scaling),
		Footprint:    geo.Footprint(obj, scene, scaling),
	}
}

// CoreToSceneState converts a scene update to a GORM model.SceneState.
func CoreToSceneState(s core.Scene, t time.Time, sessionID uint) model.SceneState {
	return model.SceneState{
		Time:           t,
		SessionID:      sessionID,
		Frame:          s.Frame,
		Width:          float32(s.Width),
		Height:         float32(s.Height),
		ObjectCount:    s.ObjectCount,
		PercentCovered: float32(s.PercentCovered),
		AverageMotionX: float32(s.AverageMotion.X),
		AverageMotionY: float32(s.AverageMotion.Y),
	}
}
