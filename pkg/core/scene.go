// pkg/core/scene.go
package core

// Scene is the sensing-plane geometry as last reported by the sender.
// Width and Height are in meters before the scaling coefficient is applied.
type Scene struct {
	Frame          int     `json:"frame"`
	Width          float64 `json:"width"`
	Height         float64 `json:"height"`
	ObjectCount    int     `json:"objectCount"`
	PercentCovered float64 `json:"percentCovered"`
	AverageMotion  Vector2 `json:"averageMotion"`
}

// AspectRatio returns Width/Height, or 0 for a scene with no height.
func (s Scene) AspectRatio() float64 {
	if s.Height == 0 {
		return 0
	}
	return s.Width / s.Height
}

// Area returns the plane surface in square meters.
func (s Scene) Area() float64 {
	return s.Width * s.Height
}
