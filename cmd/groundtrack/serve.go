package main

import (
	"context"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/star/groundtrack/internal/api"
	"github.com/star/groundtrack/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve ground tracks over HTTP.",
	Long: `serve exposes POST /api/v1/groundtrack?start=&end=&step=&gravity=&format=
with the TLE as the request body, plus /healthz, /readyz and /metrics.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(v)
		if err != nil {
			return err
		}
		return serve(cmd.Context(), cfg)
	},
}

func init() {
	f := serveCmd.Flags()
	f.String(config.KeyAddr, ":8080", "listen address")
	f.String(config.KeyEllipsoid, "wgs84", "ellipsoid for geodetic output: wgs84, wgs72")
	f.Int(config.KeyWorkers, runtime.NumCPU(), "parallel propagation workers per request")
	f.Int(config.KeyChunkSize, 0, "epochs per worker chunk (0 = default)")
	f.Int(config.KeyMaxRecords, api.DefaultMaxRecords, "maximum records per request")
	f.Bool(config.KeyAuthEnabled, false, "require a bearer token on the API")
	f.String(config.KeyAuthToken, "", "bearer token (prefer "+config.EnvPrefix+"_AUTH_TOKEN)")
	f.Float64(config.KeyRateLimit, 5, "requests per second per client IP (0 disables)")
	f.Int(config.KeyRateBurst, 10, "rate limit burst size")
	f.Bool(config.KeyTrustProxy, false, "take client IPs from X-Forwarded-For / X-Real-IP")
}

func serve(ctx context.Context, cfg *config.Config) error {
	srv := api.NewServer(api.Config{
		Addr:       cfg.Addr,
		Auth:       cfg.Auth,
		RateLimit:  cfg.RateLimit,
		RateBurst:  cfg.RateBurst,
		TrustProxy: cfg.TrustProxy,
	}, cfg.Track(), logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", cfg.Addr, "auth_enabled", cfg.Auth.Enabled, "rate_limit", cfg.RateLimit)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !api.IsServerClosed(err) {
		return err
	}
	logger.Info("server stopped")
	return nil
}
