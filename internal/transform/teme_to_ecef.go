// Package transform converts SGP4 output between reference frames.
//
// TEME (True Equator Mean Equinox) is the quasi-inertial frame SGP4 produces.
// The Earth-fixed frame is obtained with a single rotation about the Z axis
// by GMST-1982 (TEME → PEF). Polar motion is ignored, which keeps the
// Earth-fixed position within tens of metres of ITRF.
//
// Reference: Vallado, "Fundamentals of Astrodynamics and Applications", Ch. 3.
package transform

import (
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// StateTEME is a position (km) and velocity (km/s) in the TEME frame.
type StateTEME struct {
	Position r3.Vec
	Velocity r3.Vec
}

// StateECEF is a position (km) and velocity (km/s) in the Earth-fixed frame.
// Velocity is relative to the rotating Earth.
type StateECEF struct {
	Position r3.Vec
	Velocity r3.Vec
}

// TEMEToECEF transforms a TEME state to the Earth-fixed frame at the given UTC time.
func TEMEToECEF(s StateTEME, t time.Time) StateECEF {
	theta, thetaDot := GMST1982(JulianDate(t))
	return TEMEToECEFWithGMST(s, theta, thetaDot)
}

// TEMEToECEFWithGMST transforms TEME to Earth-fixed using a precomputed
// sidereal angle theta (rad) and rate thetaDot (rad/day).
//
// Position transform: r_ECEF = R3(θ) * r_TEME
// Velocity transform: v_ECEF = R3(θ) * v_TEME - ω × r_ECEF
//
// where ω = [0, 0, θ̇]. Velocities are carried in km/day through the
// rotation so that θ̇ can be applied without rescaling.
func TEMEToECEFWithGMST(s StateTEME, theta, thetaDot float64) StateECEF {
	rot := rotationZ(theta)
	omega := r3.Vec{Z: thetaDot}

	r := rot.MulVec(s.Position)
	vDay := rot.MulVec(r3.Scale(SecondsPerDay, s.Velocity))
	vDay = r3.Sub(vDay, r3.Cross(omega, r))

	return StateECEF{
		Position: r,
		Velocity: r3.Scale(1/SecondsPerDay, vDay),
	}
}

// ECEFToTEME is the inverse of TEMEToECEF.
func ECEFToTEME(s StateECEF, t time.Time) StateTEME {
	theta, thetaDot := GMST1982(JulianDate(t))
	return ECEFToTEMEWithGMST(s, theta, thetaDot)
}

// ECEFToTEMEWithGMST is the inverse of TEMEToECEFWithGMST.
func ECEFToTEMEWithGMST(s StateECEF, theta, thetaDot float64) StateTEME {
	rot := rotationZ(theta)
	omega := r3.Vec{Z: thetaDot}

	vDay := r3.Add(r3.Scale(SecondsPerDay, s.Velocity), r3.Cross(omega, s.Position))

	return StateTEME{
		Position: rot.MulVecTrans(s.Position),
		Velocity: r3.Scale(1/SecondsPerDay, rot.MulVecTrans(vDay)),
	}
}

// rotationZ returns the frame rotation R3(θ) about the Z axis.
func rotationZ(theta float64) *r3.Mat {
	sin, cos := math.Sincos(theta)
	return r3.NewMat([]float64{
		cos, sin, 0,
		-sin, cos, 0,
		0, 0, 1,
	})
}
