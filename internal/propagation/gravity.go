package propagation

import (
	"math"

	"github.com/star/groundtrack/internal/tle"
)

// GravityConstants holds the geopotential constants SGP4 is evaluated with.
type GravityConstants struct {
	Mu      float64 // km³/s²
	RadiusE float64 // equatorial radius, km
	XKE     float64 // sqrt(GM) in earth radii^1.5 per minute
	J2      float64
	J3      float64
	J4      float64
	J3OJ2   float64
}

// Constants returns the constant set for a gravity selector. Unknown values
// fall back to tle.DefaultGravity; the parser rejects them before this point.
func Constants(g tle.Gravity) GravityConstants {
	var c GravityConstants
	switch g {
	case tle.GravityWGS72Old:
		c = GravityConstants{
			Mu:      398600.79964,
			RadiusE: 6378.135,
			XKE:     0.0743669161,
			J2:      0.001082616,
			J3:      -0.00000253881,
			J4:      -0.00000165597,
		}
	case tle.GravityWGS84:
		c = GravityConstants{
			Mu:      398600.5,
			RadiusE: 6378.137,
			J2:      0.00108262998905,
			J3:      -0.00000253215306,
			J4:      -0.00000161098761,
		}
	default:
		c = GravityConstants{
			Mu:      398600.8,
			RadiusE: 6378.135,
			J2:      0.001082616,
			J3:      -0.00000253881,
			J4:      -0.00000165597,
		}
	}
	if c.XKE == 0 {
		c.XKE = 60.0 / math.Sqrt(c.RadiusE*c.RadiusE*c.RadiusE/c.Mu)
	}
	c.J3OJ2 = c.J3 / c.J2
	return c
}
