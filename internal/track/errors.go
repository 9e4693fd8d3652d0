package track

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/star/groundtrack/internal/propagation"
	"github.com/star/groundtrack/internal/transform"
)

var (
	// ErrInvalidStep is returned when the step between epochs is zero or negative.
	ErrInvalidStep = errors.New("step must be positive")
	// ErrTooManyRecords is returned when a window would exceed Config.MaxRecords.
	ErrTooManyRecords = errors.New("record budget exceeded")
)

// PartialResultError reports that a run stopped early. Records holds every
// record produced before the failing epoch, in epoch order.
type PartialResultError struct {
	Records []Record
	Epoch   time.Time // epoch that failed
	Index   int       // index of the failing epoch in the window
	Err     error
}

func (e *PartialResultError) Error() string {
	return fmt.Sprintf("ground track stopped at record %d (%s) after %d records: %v",
		e.Index, e.Epoch.UTC().Format(time.RFC3339Nano), len(e.Records), e.Err)
}

func (e *PartialResultError) Unwrap() error { return e.Err }

// ErrorKind classifies a run failure for metrics and logs.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, propagation.ErrOrbitDecay):
		return "decay"
	case errors.Is(err, propagation.ErrPropagationDivergence):
		return "divergence"
	case errors.Is(err, propagation.ErrDeepSpace):
		return "deep_space"
	case errors.Is(err, transform.ErrDegenerateCoordinate):
		return "degenerate"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "other"
	}
}
