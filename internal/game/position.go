package game

import "math"

// Position is a point in world space. Y is the vertical axis, matching the
// engine convention.
type Position struct {
	X float64
	Y float64
	Z float64
}

func (p Position) Add(dx, dy, dz float64) Position {
	return Position{X: p.X + dx, Y: p.Y + dy, Z: p.Z + dz}
}

func (p Position) WithY(y float64) Position {
	return Position{X: p.X, Y: y, Z: p.Z}
}

func Distance(a, b Position) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	dz := a.Z - b.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// HorizontalDistance ignores the vertical axis.
func HorizontalDistance(a, b Position) float64 {
	dx := a.X - b.X
	dz := a.Z - b.Z
	return math.Sqrt(dx*dx + dz*dz)
}

// VerticalDelta is the absolute height difference between two points.
func VerticalDelta(a, b Position) float64 {
	return math.Abs(a.Y - b.Y)
}
