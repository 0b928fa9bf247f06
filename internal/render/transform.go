package render

import "math"

// ToRadians converts degrees to radians.
func ToRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// RotateScene rotates s by degrees about its centre.
// The transform persists until the caller resets it with Identity.
func RotateScene(s Surface, degrees float64) {
	cx := float64(s.Width()) / 2
	cy := float64(s.Height()) / 2
	s.Translate(cx, cy)
	s.Rotate(ToRadians(degrees))
	s.Translate(-cx, -cy)
}

// CounterRotate undoes a scene rotation of degrees around (x, y) so that text
// and icons drawn there stay upright. Call between Push and Pop.
func CounterRotate(s Surface, x, y, degrees float64) {
	s.Translate(x, y)
	if degrees != 0 {
		s.Rotate(ToRadians(-degrees))
	}
}

// HealthArcStart is the start angle of a health arc, symmetric about the downward axis.
func HealthArcStart(health float64) float64 {
	return ToRadians(90 - health/100*180)
}

// HealthArcEnd is the end angle of a health arc.
func HealthArcEnd(health float64) float64 {
	return ToRadians(90 + health/100*180)
}
