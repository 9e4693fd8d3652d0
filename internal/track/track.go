// Package track drives SGP4 over a time window and turns each TEME state into
// an Earth-fixed position, velocity and geodetic coordinate.
package track

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/star/groundtrack/internal/metrics"
	"github.com/star/groundtrack/internal/propagation"
	"github.com/star/groundtrack/internal/tle"
	"github.com/star/groundtrack/internal/transform"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	defaultChunkSize = 256

	// maxPrealloc bounds the capacity reserved up front for a run's records.
	maxPrealloc = 1 << 16
)

// Record is one sample of the ground track.
type Record struct {
	Epoch    time.Time // UTC
	Position r3.Vec    // Earth-fixed, km
	Velocity r3.Vec    // Earth-fixed, km/s
	Geodetic transform.Geodetic
}

// Config controls how a Driver evaluates a window.
type Config struct {
	Workers    int                 // parallel workers used by Collect; <= 1 runs sequentially
	ChunkSize  int                 // epochs per work unit when Workers > 1
	MaxRecords int                 // 0 means unlimited
	Ellipsoid  transform.Ellipsoid // zero value selects WGS84
}

// Driver produces ground tracks for element sets. It holds no per-run state
// and is safe for concurrent use.
type Driver struct {
	cfg    Config
	logger *slog.Logger
}

// NewDriver creates a Driver.
func NewDriver(cfg Config, logger *slog.Logger) *Driver {
	if cfg.Ellipsoid.A == 0 {
		cfg.Ellipsoid = transform.WGS84
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultChunkSize
	}
	return &Driver{cfg: cfg, logger: logger}
}

// Count returns the number of epochs start + k*step that do not pass end.
// A window with start after end is empty.
func Count(start, end time.Time, step time.Duration) (int, error) {
	if step <= 0 {
		return 0, fmt.Errorf("%w: got %v", ErrInvalidStep, step)
	}
	if start.After(end) {
		return 0, nil
	}
	return int(end.Sub(start)/step) + 1, nil
}

// plan is a validated window bound to an initialized propagator.
type plan struct {
	prop      *propagation.SGP4Propagator
	ellipsoid transform.Ellipsoid
	start     time.Time
	step      time.Duration
	n         int
}

func (d *Driver) plan(es *tle.ElementSet, start, end time.Time, step time.Duration) (*plan, error) {
	n, err := Count(start, end, step)
	if err != nil {
		return nil, err
	}
	if d.cfg.MaxRecords > 0 && n > d.cfg.MaxRecords {
		return nil, fmt.Errorf("%w: window needs %d records, limit is %d", ErrTooManyRecords, n, d.cfg.MaxRecords)
	}
	prop, err := propagation.NewSGP4Propagator(es)
	if err != nil {
		return nil, err
	}
	return &plan{
		prop:      prop,
		ellipsoid: d.cfg.Ellipsoid,
		start:     start.UTC(),
		step:      step,
		n:         n,
	}, nil
}

func (p *plan) epoch(k int) time.Time {
	return p.start.Add(time.Duration(k) * p.step)
}

func (p *plan) record(epoch time.Time) (Record, error) {
	teme, err := p.prop.Propagate(epoch)
	if err != nil {
		return Record{}, err
	}
	ecef := transform.TEMEToECEF(teme, epoch)
	geo, err := transform.ToGeodetic(ecef.Position, p.ellipsoid)
	if err != nil {
		return Record{}, err
	}
	return Record{
		Epoch:    epoch,
		Position: ecef.Position,
		Velocity: ecef.Velocity,
		Geodetic: geo,
	}, nil
}

func (p *plan) seq() iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		for k := 0; k < p.n; k++ {
			epoch := p.epoch(k)
			rec, err := p.record(epoch)
			if err != nil {
				yield(Record{Epoch: epoch}, err)
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

// Run returns the ground track of es from start to end inclusive, sampled
// every step. The sequence is lazy and may be ranged over repeatedly; each
// pass propagates from scratch. On failure it yields a Record carrying only
// the failing Epoch together with the error, then stops.
//
// Invalid steps, record budget violations and element sets SGP4 cannot
// initialize are reported by Run itself before any iteration.
func (d *Driver) Run(es *tle.ElementSet, start, end time.Time, step time.Duration) (iter.Seq2[Record, error], error) {
	p, err := d.plan(es, start, end, step)
	if err != nil {
		return nil, err
	}
	return p.seq(), nil
}

// Collect materializes the ground track. Failures after propagation has
// started, including cancellation of ctx, are returned as a
// *PartialResultError holding the records produced before the failing epoch.
func (d *Driver) Collect(ctx context.Context, es *tle.ElementSet, start, end time.Time, step time.Duration) ([]Record, error) {
	p, err := d.plan(es, start, end, step)
	if err != nil {
		return nil, err
	}

	began := time.Now()
	var records []Record
	if d.cfg.Workers > 1 && p.n > d.cfg.ChunkSize {
		records, err = d.collectParallel(ctx, p)
	} else {
		records, err = collectSequential(ctx, p)
	}
	elapsed := time.Since(began)

	kind := ErrorKind(err)
	metrics.RecordRun(elapsed, len(records), kind)

	if err != nil {
		d.logger.Warn("ground track stopped early",
			"norad_id", es.NORADID,
			"records", len(records),
			"kind", kind,
			"error", err,
		)
		return nil, &PartialResultError{
			Records: records,
			Epoch:   p.epoch(len(records)),
			Index:   len(records),
			Err:     err,
		}
	}

	last := p.start
	if len(records) > 0 {
		last = records[len(records)-1].Epoch
	}
	d.logger.Info("ground track complete",
		"norad_id", es.NORADID,
		"records", len(records),
		"start", p.start.Format(time.RFC3339Nano),
		"last", last.Format(time.RFC3339Nano),
		"step", p.step.String(),
		"workers", max(d.cfg.Workers, 1),
		"duration_ms", elapsed.Milliseconds(),
	)
	return records, nil
}

func collectSequential(ctx context.Context, p *plan) ([]Record, error) {
	records := make([]Record, 0, min(p.n, maxPrealloc))
	if err := ctx.Err(); err != nil {
		return records, err
	}
	for rec, err := range p.seq() {
		if err != nil {
			return records, err
		}
		records = append(records, rec)
		if len(records) < p.n {
			if err := ctx.Err(); err != nil {
				return records, err
			}
		}
	}
	return records, nil
}
