package propagation

import (
	"errors"
	"fmt"
)

var (
	// ErrPropagationDivergence is matched by *DivergenceError.
	ErrPropagationDivergence = errors.New("propagation diverged")
	// ErrOrbitDecay is matched by *DecayError.
	ErrOrbitDecay = errors.New("orbit decayed")
	// ErrDeepSpace is returned for element sets with a period of 225 minutes or more.
	ErrDeepSpace = errors.New("deep-space element set not supported by near-Earth SGP4")
)

// DivergenceError reports that Kepler's equation did not converge.
type DivergenceError struct {
	NORADID    int
	TSince     float64 // minutes from epoch
	Iterations int
	Residual   float64
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("propagation diverged for NORAD %d at %+.6f min: Kepler residual %.3e after %d iterations",
		e.NORADID, e.TSince, e.Residual, e.Iterations)
}

func (e *DivergenceError) Is(target error) bool { return target == ErrPropagationDivergence }

// DecayCode identifies which physical bound a propagated state violated.
// The values match the SGP4 error codes of the reference implementation.
type DecayCode int

const (
	DecayEccentricity    DecayCode = 1 // mean eccentricity outside [-0.001, 1) or mean semi-major axis below 0.95 Earth radii
	DecayMeanMotion      DecayCode = 2 // mean motion <= 0
	DecaySemiLatusRectum DecayCode = 4 // semi-latus rectum < 0
	DecayReentry         DecayCode = 6 // radius below one Earth radius
)

func (c DecayCode) String() string {
	switch c {
	case DecayEccentricity:
		return "mean eccentricity or semi-major axis out of range"
	case DecayMeanMotion:
		return "mean motion not positive"
	case DecaySemiLatusRectum:
		return "semi-latus rectum negative"
	case DecayReentry:
		return "satellite has decayed"
	default:
		return fmt.Sprintf("decay code %d", int(c))
	}
}

// DecayError reports a non-physical propagated state.
type DecayError struct {
	NORADID int
	TSince  float64 // minutes from epoch
	Code    DecayCode
	Value   float64 // the offending quantity
}

func (e *DecayError) Error() string {
	return fmt.Sprintf("orbit decayed for NORAD %d at %+.6f min: %s (%g)", e.NORADID, e.TSince, e.Code, e.Value)
}

func (e *DecayError) Is(target error) bool { return target == ErrOrbitDecay }
