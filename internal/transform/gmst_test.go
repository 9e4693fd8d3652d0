package transform

import (
	"math"
	"testing"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
	"github.com/soniakeys/meeus/v3/sidereal"
	"gonum.org/v1/gonum/floats/scalar"
)

func TestJulianDate(t *testing.T) {
	tests := []struct {
		name     string
		time     time.Time
		wantJD   float64
		wantFrac float64
	}{
		{
			name:     "J2000.0 epoch",
			time:     time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC),
			wantJD:   2451544.5,
			wantFrac: 0.5,
		},
		{
			name:     "Unix epoch",
			time:     time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
			wantJD:   2440587.5,
			wantFrac: 0,
		},
		{
			// Vallado Example 3-15: April 6, 2004, 07:51:28.386009 UTC
			name:     "Vallado example date",
			time:     time.Date(2004, 4, 6, 7, 51, 28, 386009000, time.UTC),
			wantJD:   2453101.5,
			wantFrac: 0.3274118751041667,
		},
		{
			name:     "non-UTC location is normalized",
			time:     time.Date(2000, 1, 1, 14, 0, 0, 0, time.FixedZone("UTC+2", 2*3600)),
			wantJD:   2451544.5,
			wantFrac: 0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jd, frac := JulianDate(tt.time)
			if jd != tt.wantJD {
				t.Errorf("jd = %.6f, want %.6f", jd, tt.wantJD)
			}
			if !scalar.EqualWithinAbs(frac, tt.wantFrac, 1e-12) {
				t.Errorf("fraction = %.15f, want %.15f", frac, tt.wantFrac)
			}
		})
	}
}

// TestGMST1982Vallado checks Vallado Example 3-5: GMST = 312.8098943° at
// 2004-04-06 07:51:27.946047 UT1.
func TestGMST1982Vallado(t *testing.T) {
	ut1 := time.Date(2004, 4, 6, 7, 51, 27, 946047000, time.UTC)
	theta, thetaDot := GMST1982(JulianDate(ut1))

	if got := theta * 180 / math.Pi; !scalar.EqualWithinAbs(got, 312.8098943, 1e-6) {
		t.Errorf("GMST = %.7f deg, want 312.8098943", got)
	}
	// One sidereal day is ~1.0027379 solar days.
	if want := 2 * math.Pi * 1.00273790935; !scalar.EqualWithinAbs(thetaDot, want, 1e-8) {
		t.Errorf("GMST rate = %.10f rad/day, want %.10f", thetaDot, want)
	}
}

// TestGMST validates the GMST angle against go-satellite's GSTimeFromDate and
// meeus' sidereal.Mean, both IAU-82 implementations.
func TestGMST(t *testing.T) {
	tests := []struct {
		name string
		time time.Time
	}{
		{"J2000.0 epoch", time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC)},
		{"Vallado example date", time.Date(2004, 4, 6, 7, 51, 28, 0, time.UTC)},
		{"element set epoch", time.Date(2024, 4, 9, 12, 0, 0, 0, time.UTC)},
		{"recent date 2026", time.Date(2026, 2, 6, 4, 1, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			our := GMST(tt.time)
			if our < 0 || our >= 2*math.Pi {
				t.Fatalf("GMST = %v, outside [0, 2π)", our)
			}

			ref := satellite.GSTimeFromDate(
				tt.time.Year(), int(tt.time.Month()), tt.time.Day(),
				tt.time.Hour(), tt.time.Minute(), tt.time.Second(),
			)
			// 1e-8 radians ≈ 0.002 arcsec.
			if diff := angleDiff(our, ref); diff > 1e-8 {
				t.Errorf("GMST(%v) = %.12f rad, go-satellite = %.12f rad (diff=%.2e)", tt.time, our, ref, diff)
			}

			jd, frac := JulianDate(tt.time)
			mean := sidereal.Mean(jd + frac).Rad()
			if diff := angleDiff(our, mean); diff > 1e-8 {
				t.Errorf("GMST(%v) = %.12f rad, meeus = %.12f rad (diff=%.2e)", tt.time, our, mean, diff)
			}
		})
	}
}

// angleDiff returns the absolute difference of two angles across the 2π wrap.
func angleDiff(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 2*math.Pi)
	return math.Min(d, 2*math.Pi-d)
}
