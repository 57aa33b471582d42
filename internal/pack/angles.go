package pack

import "github.com/chewxy/math32"

// NormalizeAngle reduces an angle in degrees into (-180, 180]. Mod keeps
// it exact for inputs of arbitrary magnitude, not just one wrap.
func NormalizeAngle(a float32) float32 {
	a = math32.Mod(a, 360)
	switch {
	case a <= -180:
		a += 360
	case a > 180:
		a -= 360
	}
	return a
}
