// Command groundtrack propagates a TLE with SGP4 and writes the Earth-fixed
// ground track, or serves the same computation over HTTP.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/star/groundtrack/internal/config"
)

var (
	v          = config.New()
	configFile string
	logLevel   string
	logger     = slog.New(slog.NewJSONHandler(os.Stderr, nil))
)

var rootCmd = &cobra.Command{
	Use:   "groundtrack",
	Short: "Compute satellite ground tracks from two-line element sets.",
	Long: `groundtrack propagates a TLE with SGP4 over a time window and reports the
Earth-fixed position, velocity and geodetic coordinates at every step.

Settings are read from defaults, then --config, then ` + config.EnvPrefix + `_* environment
variables (e.g. ` + config.EnvPrefix + `_STEP=30s), then flags.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := parseLevel(logLevel)
		if err != nil {
			return err
		}
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

		// Only the running command's flags are bound, so keys shared by
		// several subcommands resolve to the flags actually given.
		if err := v.BindPFlags(cmd.Flags()); err != nil {
			return err
		}
		return config.ReadFile(v, configFile)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (TOML, YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.AddCommand(runCmd, serveCmd, inspectCmd)
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		logger.Error("groundtrack failed", "error", err)
		os.Exit(1)
	}
}
