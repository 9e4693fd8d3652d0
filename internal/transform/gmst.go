package transform

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

// j2000 is the Julian Date of the J2000.0 epoch (January 1, 2000, 12:00:00 TT).
const j2000 = 2451545.0

// SecondsPerDay converts between per-second and per-day rates.
const SecondsPerDay = 86400.0

// JulianDate converts a UTC instant to a Julian Date split into the JD at 0h UT
// of that calendar day (always ending in .5) and the fraction of the day elapsed.
// Keeping the two parts separate preserves sub-microsecond resolution.
func JulianDate(t time.Time) (jd, fraction float64) {
	t = t.UTC()
	y, m, d := t.Date()
	jd = julian.CalendarGregorianToJD(y, int(m), float64(d))
	midnight := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	fraction = float64(t.Sub(midnight)) / float64(24*time.Hour)
	return jd, fraction
}

// GMST1982 returns Greenwich Mean Sidereal Time in radians, normalized to
// [0, 2π), and its rate of change in radians per day, using the IAU-82 model
// (Vallado, "Fundamentals of Astrodynamics", Eq 3-47):
//
//	θ_GMST = 67310.54841 + (876600h + 8640184.812866)*T + 0.093104*T² - 6.2e-6*T³
//
// where T is Julian centuries of UT1 from J2000.0. UT1 is taken equal to UTC.
func GMST1982(jd, fraction float64) (theta, thetaDot float64) {
	t := (jd - j2000 + fraction) / 36525.0

	// The 876600h*T term is a whole number of turns plus the day fraction,
	// so it is carried by jd and fraction directly.
	g := 67310.54841 + (8640184.812866+(0.093104+(-6.2e-6)*t)*t)*t
	dg := 8640184.812866 + (0.093104*2.0+(-6.2e-6*3.0)*t)*t

	turns := math.Mod(math.Mod(jd, 1.0)+math.Mod(fraction, 1.0)+g/SecondsPerDay, 1.0)
	if turns < 0 {
		turns += 1.0
	}
	theta = turns * 2.0 * math.Pi
	thetaDot = (1.0 + dg/(SecondsPerDay*36525.0)) * 2.0 * math.Pi
	return theta, thetaDot
}

// GMST calculates Greenwich Mean Sidereal Time in radians for a given UTC time.
func GMST(t time.Time) float64 {
	theta, _ := GMST1982(JulianDate(t))
	return theta
}
