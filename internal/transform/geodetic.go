package transform

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// ErrDegenerateCoordinate is returned for positions with no defined geodetic
// coordinates: the Earth's centre or non-finite components.
var ErrDegenerateCoordinate = errors.New("degenerate coordinate")

const (
	geodeticTolerance = 1e-12 // radians
	geodeticMaxIter   = 10
)

// Ellipsoid is a reference ellipsoid. A is the semi-major axis in metres, F the flattening.
type Ellipsoid struct {
	Name string
	A    float64
	F    float64
}

// E2 returns the first eccentricity squared.
func (e Ellipsoid) E2() float64 { return e.F * (2 - e.F) }

var (
	WGS84 = Ellipsoid{Name: "wgs84", A: 6378137.0, F: 1.0 / 298.257223563}
	WGS72 = Ellipsoid{Name: "wgs72", A: 6378135.0, F: 1.0 / 298.26}
)

// ParseEllipsoid maps a case-insensitive name to an Ellipsoid. Empty selects WGS84.
func ParseEllipsoid(name string) (Ellipsoid, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", WGS84.Name:
		return WGS84, nil
	case WGS72.Name:
		return WGS72, nil
	default:
		return Ellipsoid{}, fmt.Errorf("unknown ellipsoid %q", name)
	}
}

// Geodetic holds a geodetic position. Longitude is in [-180, 180].
type Geodetic struct {
	LatDeg, LonDeg float64
	AltKm          float64 // height above the ellipsoid
}

// ToGeodetic converts an Earth-fixed position (km) to geodetic coordinates
// using the iterative Bowring method.
func ToGeodetic(pos r3.Vec, e Ellipsoid) (Geodetic, error) {
	if !isFinite(pos) || r3.Norm(pos) == 0 {
		return Geodetic{}, fmt.Errorf("%w: position (%g, %g, %g) km", ErrDegenerateCoordinate, pos.X, pos.Y, pos.Z)
	}

	x, y, z := pos.X*1000.0, pos.Y*1000.0, pos.Z*1000.0
	e2 := e.E2()

	lon := math.Atan2(y, x)
	p := math.Hypot(x, y)

	// Initial estimate using Bowring's method.
	lat := math.Atan2(z, p*(1-e2))
	for i := 0; i < geodeticMaxIter; i++ {
		sinLat := math.Sin(lat)
		n := e.A / math.Sqrt(1-e2*sinLat*sinLat)
		next := math.Atan2(z+e2*n*sinLat, p)
		done := math.Abs(next-lat) < geodeticTolerance
		lat = next
		if done {
			break
		}
	}

	// h = p·cosφ + z·sinφ − a²/N holds at every latitude, poles included.
	sinLat, cosLat := math.Sincos(lat)
	alt := p*cosLat + z*sinLat - e.A*math.Sqrt(1-e2*sinLat*sinLat)

	return Geodetic{
		LatDeg: lat * 180.0 / math.Pi,
		LonDeg: lon * 180.0 / math.Pi,
		AltKm:  alt / 1000.0,
	}, nil
}

// FromGeodetic converts geodetic coordinates to an Earth-fixed position in km.
func FromGeodetic(g Geodetic, e Ellipsoid) r3.Vec {
	lat := g.LatDeg * math.Pi / 180.0
	lon := g.LonDeg * math.Pi / 180.0
	sinLat, cosLat := math.Sincos(lat)
	sinLon, cosLon := math.Sincos(lon)

	e2 := e.E2()
	altM := g.AltKm * 1000.0
	// Radius of curvature in the prime vertical.
	n := e.A / math.Sqrt(1-e2*sinLat*sinLat)

	return r3.Vec{
		X: (n + altM) * cosLat * cosLon / 1000.0,
		Y: (n + altM) * cosLat * sinLon / 1000.0,
		Z: (n*(1-e2) + altM) * sinLat / 1000.0,
	}
}

func isFinite(v r3.Vec) bool {
	for _, c := range [...]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
