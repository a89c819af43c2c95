package protocol

// FlipUnit mirrors a normalized coordinate.
func FlipUnit(x float64) float64 { return 1 - x }

// FlipAngleX mirrors an angle in degrees across the vertical axis.
func FlipAngleX(a float64) float64 {
	if a > 180 {
		return 360 - a
	}
	return 180 - a
}

// FlipAngleY mirrors an angle in degrees across the horizontal axis.
func FlipAngleY(a float64) float64 { return 360 - a }

// Flips selects which plane axes are mirrored between the wire and the registry.
type Flips struct {
	X bool
	Y bool
}

// Apply mirrors every carried positional field of m in place, X before Y.
func (f Flips) Apply(m *ObjectMessage) {
	if f.X {
		flipX(m)
	}
	if f.Y {
		flipY(m)
	}
}

// Revert undoes Apply, Y before X. Angles are only recovered exactly when the
// X-flipped angle stays within [0,180].
func (f Flips) Revert(m *ObjectMessage) {
	if f.Y {
		flipY(m)
	}
	if f.X {
		flipX(m)
	}
}

func flipX(m *ObjectMessage) {
	fl := m.Fields
	if fl.Has(FieldCentroid) {
		m.Centroid.X = FlipUnit(m.Centroid.X)
	}
	if fl.Has(FieldVelocity) {
		m.Velocity.X = -m.Velocity.X
	}
	if fl.Has(FieldRect) {
		m.BoundingRect.X = FlipUnit(m.BoundingRect.X)
	}
	if fl.Has(FieldHighestXY) {
		m.Highest.X = FlipUnit(m.Highest.X)
	}
	if fl.Has(FieldOrientation) {
		m.Orientation = FlipAngleX(m.Orientation)
	}
	if fl.Has(FieldRectRotation) {
		m.BoundingRect.Rotation = FlipAngleX(m.BoundingRect.Rotation)
	}
	for i := range m.Contour {
		m.Contour[i].X = FlipUnit(m.Contour[i].X)
	}
}

func flipY(m *ObjectMessage) {
	fl := m.Fields
	if fl.Has(FieldCentroid) {
		m.Centroid.Y = FlipUnit(m.Centroid.Y)
	}
	if fl.Has(FieldVelocity) {
		m.Velocity.Y = -m.Velocity.Y
	}
	if fl.Has(FieldRect) {
		m.BoundingRect.Y = FlipUnit(m.BoundingRect.Y)
	}
	if fl.Has(FieldHighestXY) {
		m.Highest.Y = FlipUnit(m.Highest.Y)
	}
	if fl.Has(FieldOrientation) {
		m.Orientation = FlipAngleY(m.Orientation)
	}
	if fl.Has(FieldRectRotation) {
		m.BoundingRect.Rotation = FlipAngleY(m.BoundingRect.Rotation)
	}
	for i := range m.Contour {
		m.Contour[i].Y = FlipUnit(m.Contour[i].Y)
	}
}
