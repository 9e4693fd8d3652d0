package tle

import (
	"fmt"
	"strings"
	"time"
)

// Gravity selects the geopotential constant set the propagator is initialized with.
type Gravity string

const (
	GravityWGS72Old Gravity = "wgs72old"
	GravityWGS72    Gravity = "wgs72"
	GravityWGS84    Gravity = "wgs84"
)

// DefaultGravity is the constant set element sets are generated against.
const DefaultGravity = GravityWGS72

// ParseGravity maps a case-insensitive selector to a Gravity value.
// An empty string selects DefaultGravity.
func ParseGravity(s string) (Gravity, error) {
	switch g := Gravity(strings.ToLower(strings.TrimSpace(s))); g {
	case "":
		return DefaultGravity, nil
	case GravityWGS72Old, GravityWGS72, GravityWGS84:
		return g, nil
	default:
		return "", &ParseError{Field: "gravity", Value: s, Reason: "unknown gravity model"}
	}
}

// ElementSet holds the mean orbital elements decoded from a single TLE record.
// Angles are in degrees, mean motion in revolutions per day.
type ElementSet struct {
	Name           string
	NORADID        int
	Classification byte
	IntlDesignator string
	Epoch          time.Time // UTC
	MeanMotionDot  float64   // first derivative of mean motion / 2, rev/day²
	MeanMotionDDot float64   // second derivative of mean motion / 6, rev/day³
	BStar          float64   // drag term, 1/earth radii
	EphemerisType  int
	ElementSetNo   int

	Inclination  float64
	RAAN         float64
	Eccentricity float64
	ArgPerigee   float64
	MeanAnomaly  float64
	MeanMotion   float64
	RevNumber    int

	Gravity Gravity
	Line1   string
	Line2   string
}

// Period returns the orbital period implied by the (Kozai) mean motion.
func (e *ElementSet) Period() time.Duration {
	return time.Duration(float64(24*time.Hour) / e.MeanMotion)
}

// String identifies the element set in logs.
func (e *ElementSet) String() string {
	if e.Name != "" {
		return fmt.Sprintf("%s (NORAD %d)", e.Name, e.NORADID)
	}
	return fmt.Sprintf("NORAD %d", e.NORADID)
}
