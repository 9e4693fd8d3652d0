package propagation

import (
	"math"
	"time"

	"github.com/star/groundtrack/internal/tle"
)

// Orbit summarizes the mean orbit described by an element set.
type Orbit struct {
	MeanMotion      float64 // Brouwer mean motion, rad/min
	Period          time.Duration
	SemiMajorAxisKm float64
	PerigeeKm       float64 // height above the equatorial radius
	ApogeeKm        float64
	DeepSpace       bool
}

// MeanOrbit derives orbit geometry from an element set using the gravity
// constants it selects.
func MeanOrbit(es *tle.ElementSet) Orbit {
	g := Constants(es.Gravity)
	no := brouwerMeanMotion(es.MeanMotion/xpdotp, es.Eccentricity, es.Inclination*deg2rad, g)
	a := math.Pow(g.XKE/no, x2o3) * g.RadiusE
	periodMin := twoPi / no

	return Orbit{
		MeanMotion:      no,
		Period:          time.Duration(periodMin * float64(time.Minute)),
		SemiMajorAxisKm: a,
		PerigeeKm:       a*(1-es.Eccentricity) - g.RadiusE,
		ApogeeKm:        a*(1+es.Eccentricity) - g.RadiusE,
		DeepSpace:       periodMin >= deepSpacePeriod,
	}
}

// brouwerMeanMotion recovers the Brouwer mean motion from the Kozai mean
// motion carried by a TLE (rad/min in, rad/min out).
func brouwerMeanMotion(noKozai, ecco, inclo float64, g GravityConstants) float64 {
	omeosq := 1.0 - ecco*ecco
	rteosq := math.Sqrt(omeosq)
	cosio := math.Cos(inclo)
	cosio2 := cosio * cosio

	ak := math.Pow(g.XKE/noKozai, x2o3)
	d1 := 0.75 * g.J2 * (3.0*cosio2 - 1.0) / (rteosq * omeosq)
	delp := d1 / (ak * ak)
	adel := ak * (1.0 - delp*delp - delp*(1.0/3.0+134.0*delp*delp/81.0))
	delp = d1 / (adel * adel)
	return noKozai / (1.0 + delp)
}
