// Package config resolves groundtrack settings from defaults, an optional
// config file, GROUNDTRACK_* environment variables and command-line flags,
// in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/star/groundtrack/internal/auth"
	"github.com/star/groundtrack/internal/export"
	"github.com/star/groundtrack/internal/tle"
	"github.com/star/groundtrack/internal/track"
	"github.com/star/groundtrack/internal/transform"
)

// EnvPrefix namespaces environment overrides, e.g. GROUNDTRACK_STEP=30s.
const EnvPrefix = "GROUNDTRACK"

// Setting keys. Flags use the same names.
const (
	KeyInput       = "input"
	KeyOutput      = "output"
	KeyStart       = "start"
	KeyEnd         = "end"
	KeyStep        = "step"
	KeyUTCOffset   = "utc-offset"
	KeyGravity     = "gravity"
	KeyEllipsoid   = "ellipsoid"
	KeyWorkers     = "workers"
	KeyChunkSize   = "chunk-size"
	KeyFormat      = "format"
	KeyMaxRecords  = "max-records"
	KeyMetricsAddr = "metrics-addr"
	KeyAddr        = "addr"
	KeyAuthEnabled = "auth-enabled"
	KeyAuthToken   = "auth-token"
	KeyRateLimit   = "rate-limit"
	KeyRateBurst   = "rate-burst"
	KeyTrustProxy  = "trust-proxy"
)

// ErrMissingOffset is returned for timestamps that carry no UTC offset when
// none was configured either.
var ErrMissingOffset = errors.New("timestamp has no UTC offset")

// Config is the validated, typed view of all settings.
type Config struct {
	Input  string // file path, "-" for stdin, or http(s) URL
	Output string // file path, "" or "-" for stdout

	Start time.Time
	End   time.Time
	Step  time.Duration

	Gravity    tle.Gravity
	Ellipsoid  transform.Ellipsoid
	Workers    int
	ChunkSize  int
	Format     export.Format
	MaxRecords int

	MetricsAddr string
	Addr        string
	Auth        auth.Config
	RateLimit   float64 // requests per second per client, 0 disables
	RateBurst   int
	TrustProxy  bool
}

// Track returns the driver configuration.
func (c *Config) Track() track.Config {
	return track.Config{
		Workers:    c.Workers,
		ChunkSize:  c.ChunkSize,
		MaxRecords: c.MaxRecords,
		Ellipsoid:  c.Ellipsoid,
	}
}

// New returns a viper instance with defaults and environment lookup set up.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyStep, "60s")
	v.SetDefault(KeyGravity, string(tle.DefaultGravity))
	v.SetDefault(KeyEllipsoid, transform.WGS84.Name)
	v.SetDefault(KeyWorkers, runtime.NumCPU())
	v.SetDefault(KeyFormat, string(export.FormatCSV))
	v.SetDefault(KeyAddr, ":8080")
	v.SetDefault(KeyRateLimit, 5.0)
	v.SetDefault(KeyRateBurst, 10)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// ReadFile merges the config file at path into v. An empty path is a no-op.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	return nil
}

// Load validates the settings held by v. Start and End stay zero when unset;
// use RequireWindow for commands that propagate.
func Load(v *viper.Viper) (*Config, error) {
	c := &Config{
		Input:       v.GetString(KeyInput),
		Output:      v.GetString(KeyOutput),
		Workers:     v.GetInt(KeyWorkers),
		ChunkSize:   v.GetInt(KeyChunkSize),
		MaxRecords:  v.GetInt(KeyMaxRecords),
		MetricsAddr: v.GetString(KeyMetricsAddr),
		Addr:        v.GetString(KeyAddr),
		RateLimit:   v.GetFloat64(KeyRateLimit),
		RateBurst:   v.GetInt(KeyRateBurst),
		TrustProxy:  v.GetBool(KeyTrustProxy),
		Auth: auth.Config{
			Enabled: v.GetBool(KeyAuthEnabled),
			Token:   v.GetString(KeyAuthToken),
		},
	}

	var err error
	offset := v.GetString(KeyUTCOffset)
	if s := v.GetString(KeyStart); s != "" {
		if c.Start, err = ParseTime(s, offset); err != nil {
			return nil, fmt.Errorf("%s: %w", KeyStart, err)
		}
	}
	if s := v.GetString(KeyEnd); s != "" {
		if c.End, err = ParseTime(s, offset); err != nil {
			return nil, fmt.Errorf("%s: %w", KeyEnd, err)
		}
	}
	if c.Step, err = ParseStep(v.GetString(KeyStep)); err != nil {
		return nil, fmt.Errorf("%s: %w", KeyStep, err)
	}
	if c.Gravity, err = tle.ParseGravity(v.GetString(KeyGravity)); err != nil {
		return nil, fmt.Errorf("%s: %w", KeyGravity, err)
	}
	if c.Ellipsoid, err = transform.ParseEllipsoid(v.GetString(KeyEllipsoid)); err != nil {
		return nil, fmt.Errorf("%s: %w", KeyEllipsoid, err)
	}
	if c.Format, err = export.ParseFormat(v.GetString(KeyFormat)); err != nil {
		return nil, fmt.Errorf("%s: %w", KeyFormat, err)
	}

	if c.Workers < 1 {
		return nil, fmt.Errorf("%s must be at least 1, got %d", KeyWorkers, c.Workers)
	}
	if c.ChunkSize < 0 {
		return nil, fmt.Errorf("%s must not be negative, got %d", KeyChunkSize, c.ChunkSize)
	}
	if c.MaxRecords < 0 {
		return nil, fmt.Errorf("%s must not be negative, got %d", KeyMaxRecords, c.MaxRecords)
	}
	if c.RateLimit < 0 || c.RateBurst < 0 {
		return nil, fmt.Errorf("%s and %s must not be negative", KeyRateLimit, KeyRateBurst)
	}
	if c.Auth.Enabled && c.Auth.Token == "" {
		return nil, fmt.Errorf("%s is required when %s is set", KeyAuthToken, KeyAuthEnabled)
	}
	return c, nil
}

// RequireWindow checks that a propagation window has been given.
func (c *Config) RequireWindow() error {
	switch {
	case c.Input == "":
		return fmt.Errorf("%s is required", KeyInput)
	case c.Start.IsZero():
		return fmt.Errorf("%s is required", KeyStart)
	case c.End.IsZero():
		return fmt.Errorf("%s is required", KeyEnd)
	}
	return nil
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTime parses an RFC 3339 timestamp and returns it in UTC. A timestamp
// without an offset is accepted only when offset is given explicitly
// ("Z", "UTC", "+02:00", "-0530"); the host time zone is never consulted.
func ParseTime(s, offset string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}

	for _, layout := range naiveLayouts {
		if _, err := time.Parse(layout, s); err != nil {
			continue
		}
		if offset == "" {
			return time.Time{}, fmt.Errorf("%q: %w, set %s", s, ErrMissingOffset, KeyUTCOffset)
		}
		loc, err := parseOffset(offset)
		if err != nil {
			return time.Time{}, err
		}
		t, err := time.ParseInLocation(layout, s, loc)
		if err != nil {
			return time.Time{}, err
		}
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q, expected RFC 3339", s)
}

func parseOffset(s string) (*time.Location, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "Z") || strings.EqualFold(s, "UTC") {
		return time.UTC, nil
	}
	for _, layout := range []string{"-07:00", "-0700", "-07"} {
		if t, err := time.Parse(layout, s); err == nil {
			_, off := t.Zone()
			return time.FixedZone(s, off), nil
		}
	}
	return nil, fmt.Errorf("invalid UTC offset %q", s)
}

// maxStepSeconds is the first bare-seconds value a time.Duration cannot hold.
const maxStepSeconds = float64(math.MaxInt64) / float64(time.Second)

// ParseStep accepts a Go duration ("30s", "1m30s") or a bare number of
// seconds ("30", "0.5"). Non-positive steps are rejected.
func ParseStep(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	var d time.Duration
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		switch {
		case math.IsNaN(secs) || math.IsInf(secs, 0):
			return 0, fmt.Errorf("invalid step %q", s)
		case secs <= 0:
			return 0, fmt.Errorf("step %q: %w", s, track.ErrInvalidStep)
		case secs >= maxStepSeconds:
			return 0, fmt.Errorf("step %q too large, maximum is %v", s, time.Duration(math.MaxInt64))
		}
		d = time.Duration(secs * float64(time.Second))
	} else if d, err = time.ParseDuration(s); err != nil {
		return 0, fmt.Errorf("invalid step %q: %w", s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("step %q: %w", s, track.ErrInvalidStep)
	}
	return d, nil
}
