package transform

import (
	"testing"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/spatial/r3"
)

func vecWithin(a, b r3.Vec, tol float64) bool {
	return scalar.EqualWithinAbs(a.X, b.X, tol) &&
		scalar.EqualWithinAbs(a.Y, b.Y, tol) &&
		scalar.EqualWithinAbs(a.Z, b.Z, tol)
}

// TestTEMEToECEFVallado checks the TEME → PEF step of Vallado Example 3-15.
func TestTEMEToECEFVallado(t *testing.T) {
	teme := StateTEME{
		Position: r3.Vec{X: 5094.18016210, Y: 6127.64465950, Z: 6380.34453270},
		Velocity: r3.Vec{X: -4.746131487, Y: 0.785818041, Z: 5.531931288},
	}
	ut1 := time.Date(2004, 4, 6, 7, 51, 27, 946047000, time.UTC)

	got := TEMEToECEF(teme, ut1)

	wantPos := r3.Vec{X: -1033.4750313, Y: 7901.3055856, Z: 6380.3445328}
	wantVel := r3.Vec{X: -3.225636520, Y: -2.872451450, Z: 5.531924446}
	if !vecWithin(got.Position, wantPos, 1e-4) {
		t.Errorf("position = %v, want %v", got.Position, wantPos)
	}
	// Vallado's example includes a length-of-day correction that is not modelled here.
	if !vecWithin(got.Velocity, wantVel, 2e-5) {
		t.Errorf("velocity = %v, want %v", got.Velocity, wantVel)
	}
}

// TestTEMEToECEF validates the position rotation against go-satellite's
// ECIToECEF using the same GMST.
func TestTEMEToECEF(t *testing.T) {
	tests := []struct {
		name string
		pos  r3.Vec
		time time.Time
	}{
		{"Vallado example 3-15", r3.Vec{X: 5094.18016, Y: 6127.64465, Z: 6380.34453}, time.Date(2004, 4, 6, 7, 51, 28, 0, time.UTC)},
		{"LEO equatorial", r3.Vec{X: 6778.0}, time.Date(2026, 2, 6, 12, 0, 0, 0, time.UTC)},
		{"LEO polar", r3.Vec{Z: 6978.0}, time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gmst := satellite.GSTimeFromDate(
				tt.time.Year(), int(tt.time.Month()), tt.time.Day(),
				tt.time.Hour(), tt.time.Minute(), tt.time.Second(),
			)
			ref := satellite.ECIToECEF(satellite.Vector3{X: tt.pos.X, Y: tt.pos.Y, Z: tt.pos.Z}, gmst)

			got := TEMEToECEF(StateTEME{Position: tt.pos}, tt.time)

			// 1 metre.
			if !vecWithin(got.Position, r3.Vec{X: ref.X, Y: ref.Y, Z: ref.Z}, 1e-3) {
				t.Errorf("position = %v, go-satellite = %+v", got.Position, ref)
			}
		})
	}
}

// TestTEMEToECEFVelocityUnits pins the km/s → km/day → km/s handling of the
// Earth-rotation term: the correction must be ω·r in km/s, not scaled by 86400.
func TestTEMEToECEFVelocityUnits(t *testing.T) {
	teme := StateTEME{
		Position: r3.Vec{X: 6778.0},
		Velocity: r3.Vec{Y: 7.5},
	}
	_, thetaDot := GMST1982(2451545.0, 0)

	got := TEMEToECEFWithGMST(teme, 0, thetaDot)

	// ω*R = 7.2921e-5 rad/s * 6778 km ≈ 0.4943 km/s.
	wantVY := 7.5 - thetaDot/SecondsPerDay*6778.0
	if !scalar.EqualWithinAbs(got.Velocity.Y, wantVY, 1e-12) {
		t.Errorf("VY = %.9f km/s, want %.9f", got.Velocity.Y, wantVY)
	}
	if !scalar.EqualWithinAbs(got.Velocity.Y, 7.00574, 1e-5) {
		t.Errorf("VY = %.9f km/s, want ~7.00574", got.Velocity.Y)
	}
	if got.Position != teme.Position {
		t.Errorf("position = %v, want unchanged %v at θ=0", got.Position, teme.Position)
	}
}

func TestECEFToTEMERoundTrip(t *testing.T) {
	states := []StateTEME{
		{Position: r3.Vec{X: 2328.96975262, Y: -5995.22051338, Z: 1719.97297192}, Velocity: r3.Vec{X: 2.912073281, Y: -0.983417956, Z: -7.090816210}},
		{Position: r3.Vec{X: -1172.754, Y: 6692.959, Z: -9.195}, Velocity: r3.Vec{X: -4.682, Y: -0.819, Z: 6.010}},
		{Position: r3.Vec{Z: 7000}, Velocity: r3.Vec{X: 7.5}},
	}
	times := []time.Time{
		time.Date(1980, 10, 1, 23, 41, 24, 0, time.UTC),
		time.Date(2024, 4, 9, 12, 0, 0, 0, time.UTC),
		time.Date(2026, 10, 18, 3, 14, 15, 926535000, time.UTC),
	}

	for _, s := range states {
		for _, tm := range times {
			back := ECEFToTEME(TEMEToECEF(s, tm), tm)
			if !vecWithin(back.Position, s.Position, 1e-9) {
				t.Errorf("position round trip at %v: %v → %v", tm, s.Position, back.Position)
			}
			if !vecWithin(back.Velocity, s.Velocity, 1e-12) {
				t.Errorf("velocity round trip at %v: %v → %v", tm, s.Velocity, back.Velocity)
			}
		}
	}
}

func TestTEMEToECEFPreservesRadius(t *testing.T) {
	s := StateTEME{Position: r3.Vec{X: 5094.18016, Y: 6127.64465, Z: 6380.34453}}
	for h := 0; h < 24; h += 3 {
		tm := time.Date(2024, 1, 1, h, 0, 0, 0, time.UTC)
		got := TEMEToECEF(s, tm)
		if !scalar.EqualWithinAbs(r3.Norm(got.Position), r3.Norm(s.Position), 1e-9) {
			t.Errorf("|r| changed at %v: %v → %v", tm, r3.Norm(s.Position), r3.Norm(got.Position))
		}
		if got.Position.Z != s.Position.Z {
			t.Errorf("Z changed at %v", tm)
		}
	}
}
