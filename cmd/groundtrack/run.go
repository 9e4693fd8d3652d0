package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/star/groundtrack/internal/config"
	"github.com/star/groundtrack/internal/export"
	"github.com/star/groundtrack/internal/metrics"
	"github.com/star/groundtrack/internal/track"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Propagate a TLE over a time window and write the ground track.",
	Example: `  groundtrack run -i iss.tle --start 2024-04-09T12:00:00Z --end 2024-04-10T12:00:00Z --step 30s
  curl -s 'https://celestrak.org/NORAD/elements/gp.php?CATNR=25544&FORMAT=tle' | groundtrack run -i - --start ... --end ...`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(v)
		if err != nil {
			return err
		}
		if err := cfg.RequireWindow(); err != nil {
			return err
		}
		return runTrack(cmd.Context(), cfg)
	},
}

func init() {
	f := runCmd.Flags()
	f.StringP(config.KeyInput, "i", "", `TLE source: file path, "-" for stdin, or http(s) URL`)
	f.StringP(config.KeyOutput, "o", "", "output file (default stdout)")
	f.String(config.KeyStart, "", "window start, RFC 3339 (e.g. 2024-04-09T12:00:00Z)")
	f.String(config.KeyEnd, "", "window end, inclusive, RFC 3339")
	f.String(config.KeyStep, "60s", "step between epochs: duration or seconds")
	f.String(config.KeyUTCOffset, "", "UTC offset applied to timestamps given without one (e.g. +02:00)")
	f.String(config.KeyGravity, "wgs72", "gravity model: wgs72old, wgs72, wgs84")
	f.String(config.KeyEllipsoid, "wgs84", "ellipsoid for geodetic output: wgs84, wgs72")
	f.Int(config.KeyWorkers, runtime.NumCPU(), "parallel propagation workers")
	f.Int(config.KeyChunkSize, 0, "epochs per worker chunk (0 = default)")
	f.StringP(config.KeyFormat, "f", "csv", "output format: csv or json")
	f.Int(config.KeyMaxRecords, 0, "refuse windows with more records (0 = unlimited)")
	f.String(config.KeyMetricsAddr, "", "serve /metrics on this address while running")
}

func runTrack(ctx context.Context, cfg *config.Config) error {
	if cfg.MetricsAddr != "" {
		stop := serveMetrics(cfg.MetricsAddr)
		defer stop()
	}

	es, err := loadElementSet(ctx, cfg.Input, cfg.Gravity)
	if err != nil {
		return err
	}
	logger.Info("element set loaded",
		"satellite", es.String(),
		"epoch", es.Epoch.Format(time.RFC3339Nano),
		"gravity", string(es.Gravity),
	)

	driver := track.NewDriver(cfg.Track(), logger)
	records, runErr := driver.Collect(ctx, es, cfg.Start, cfg.End, cfg.Step)

	var partial *track.PartialResultError
	if runErr != nil {
		if !errors.As(runErr, &partial) {
			return runErr
		}
		// Everything before the failing epoch is still written out.
		records = partial.Records
	}

	out, err := openOutput(cfg.Output)
	if err != nil {
		return err
	}
	w, err := export.NewWriter(out, cfg.Format)
	if err != nil {
		out.Close()
		return err
	}
	n, writeErr := export.WriteAll(w, records)
	if err := out.Close(); err != nil && writeErr == nil {
		writeErr = err
	}
	if writeErr != nil {
		return fmt.Errorf("writing output: %w", writeErr)
	}

	logger.Info("output written", "records", n, "format", string(cfg.Format), "output", outputName(cfg.Output))
	return runErr
}

func outputName(path string) string {
	if path == "" || path == "-" {
		return "stdout"
	}
	return path
}

// serveMetrics exposes /metrics in the background and returns a function
// that stops the listener.
func serveMetrics(addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics listener failed", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}
