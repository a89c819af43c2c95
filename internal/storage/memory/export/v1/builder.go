package v1

import (
	"cmp"
	"math"
	"slices"
	"time"

	"github.com/augmenta-tech/augmenta-receiver/pkg/core"
)

// SessionData contains all the data needed to build an export.
type SessionData struct {
	Session core.Session
	Tracks  map[int]*TrackRecord
	Events  []core.ObjectEvent
	Scenes  []core.SceneEvent
}

// Sample is one recorded state of an object with its world position and
// size resolved against the scene current at record time.
type Sample struct {
	Time    time.Time
	Channel core.Channel
	Object  core.TrackedObject
	World   core.Vector3
	Scale   core.Vector3
}

// TrackRecord groups an object with all its samples.
type TrackRecord struct {
	ID      int
	Samples []Sample
}

// Build creates an Export from the session data.
func Build(data *SessionData) Export {
	s := data.Session
	export := Export{
		FormatVersion:   FormatVersion,
		SessionID:       s.ID,
		StartTime:       s.StartTime,
		EndTime:         s.EndTime,
		Duration:        s.Duration().Seconds(),
		ProtocolVersion: s.ProtocolVersion,
		Port:            s.Port,
		Policy:          s.Policy,
		PolicyCount:     s.PolicyCount,
		Settings:        s.Settings,
		Objects:         make([]Object, 0, len(data.Tracks)),
		Events:          make([][]any, 0, len(data.Events)),
		Scenes:          make([][]any, 0, len(data.Scenes)),
	}

	rel := func(t time.Time) float64 {
		return round(t.Sub(s.StartTime).Seconds(), 3)
	}

	maxFrame := 0
	for _, record := range data.Tracks {
		if len(record.Samples) == 0 {
			continue
		}
		first, last := record.Samples[0], record.Samples[len(record.Samples)-1]
		obj := Object{
			ID:         record.ID,
			FirstSeen:  rel(first.Time),
			LastSeen:   rel(last.Time),
			StartFrame: first.Object.Frame,
			Samples:    make([][]any, 0, len(record.Samples)),
		}

		// Format: [t, frame, "channel", centroid, velocity, orientation, rect,
		// highest, depth, distance, reflectivity, world, scale, contour?]
		for _, sample := range record.Samples {
			o := sample.Object
			row := []any{
				rel(sample.Time),
				o.Frame,
				sample.Channel.String(),
				[]float64{o.Centroid.X, o.Centroid.Y},
				[]float64{o.Velocity.X, o.Velocity.Y},
				o.Orientation,
				[]float64{o.BoundingRect.X, o.BoundingRect.Y, o.BoundingRect.Width, o.BoundingRect.Height, o.BoundingRect.Rotation},
				[]float64{o.Highest.X, o.Highest.Y, o.Highest.Z},
				o.Depth,
				o.DistanceToSensor,
				o.Reflectivity,
				vec3(sample.World),
				vec3(sample.Scale),
			}
			if len(o.Contour) > 0 {
				row = append(row, flatten(o.Contour))
			}
			obj.Samples = append(obj.Samples, row)
			maxFrame = max(maxFrame, o.Frame)
		}
		export.Objects = append(export.Objects, obj)
	}
	slices.SortFunc(export.Objects, func(a, b Object) int { return cmp.Compare(a.ID, b.ID) })

	// Format: [t, "type", id, "channel", "reason", synthetic]
	for _, evt := range data.Events {
		reason := ""
		if evt.Type == core.ObjectLeft {
			reason = evt.Reason.String()
		}
		export.Events = append(export.Events, []any{
			rel(evt.Time),
			evt.Type.String(),
			evt.Object.ID,
			evt.Channel.String(),
			reason,
			evt.Synthetic,
		})
	}

	// Format: [t, frame, width, height, objectCount]
	for _, sc := range data.Scenes {
		export.Scenes = append(export.Scenes, []any{
			rel(sc.Time),
			sc.Scene.Frame,
			sc.Scene.Width,
			sc.Scene.Height,
			sc.Scene.ObjectCount,
		})
		maxFrame = max(maxFrame, sc.Scene.Frame)
	}

	export.EndFrame = maxFrame
	return export
}

func flatten(pts []core.Vector2) []float64 {
	out := make([]float64, 0, len(pts)*2)
	for _, p := range pts {
		out = append(out, p.X, p.Y)
	}
	return out
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func vec3(v core.Vector3) []float64 {
	return []float64{round(v.X, 4), round(v.Y, 4), round(v.Z, 4)}
}
