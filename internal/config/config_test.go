package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/star/groundtrack/internal/export"
	"github.com/star/groundtrack/internal/tle"
	"github.com/star/groundtrack/internal/track"
	"github.com/star/groundtrack/internal/transform"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(New())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Step != time.Minute {
		t.Errorf("Step = %v, want 1m", cfg.Step)
	}
	if cfg.Gravity != tle.GravityWGS72 {
		t.Errorf("Gravity = %q, want wgs72", cfg.Gravity)
	}
	if cfg.Ellipsoid != transform.WGS84 {
		t.Errorf("Ellipsoid = %+v, want WGS84", cfg.Ellipsoid)
	}
	if cfg.Format != export.FormatCSV {
		t.Errorf("Format = %q, want csv", cfg.Format)
	}
	if cfg.Workers < 1 {
		t.Errorf("Workers = %d, want >= 1", cfg.Workers)
	}
	if !cfg.Start.IsZero() || !cfg.End.IsZero() {
		t.Errorf("window should be unset, got %v .. %v", cfg.Start, cfg.End)
	}
	if cfg.Addr != ":8080" {
		t.Errorf("Addr = %q, want :8080", cfg.Addr)
	}
	if err := cfg.RequireWindow(); err == nil {
		t.Error("RequireWindow should fail without input and window")
	}
}

func TestLoadPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "groundtrack.toml")
	body := `
input = "iss.tle"
start = "2024-04-09T12:00:00Z"
end = "2024-04-09T13:00:00Z"
step = "10s"
gravity = "wgs84"
workers = 2
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("GROUNDTRACK_WORKERS", "3")
	t.Setenv("GROUNDTRACK_CHUNK_SIZE", "64")

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String(KeyStep, "60s", "")
	cmd.Flags().String(KeyFormat, "csv", "")

	v := New()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		t.Fatal(err)
	}
	if err := ReadFile(v, path); err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if err := cmd.Flags().Set(KeyStep, "5s"); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.RequireWindow(); err != nil {
		t.Errorf("RequireWindow: %v", err)
	}

	// flag beats file
	if cfg.Step != 5*time.Second {
		t.Errorf("Step = %v, want 5s", cfg.Step)
	}
	// env beats file
	if cfg.Workers != 3 {
		t.Errorf("Workers = %d, want 3", cfg.Workers)
	}
	if cfg.ChunkSize != 64 {
		t.Errorf("ChunkSize = %d, want 64", cfg.ChunkSize)
	}
	// file beats default
	if cfg.Gravity != tle.GravityWGS84 {
		t.Errorf("Gravity = %q, want wgs84", cfg.Gravity)
	}
	// unchanged flag leaves the default alone
	if cfg.Format != export.FormatCSV {
		t.Errorf("Format = %q, want csv", cfg.Format)
	}
	if want := time.Date(2024, 4, 9, 13, 0, 0, 0, time.UTC); !cfg.End.Equal(want) {
		t.Errorf("End = %v, want %v", cfg.End, want)
	}

	tc := cfg.Track()
	if tc.Workers != 3 || tc.ChunkSize != 64 || tc.Ellipsoid != transform.WGS84 {
		t.Errorf("Track() = %+v", tc)
	}
}

func TestReadFileMissing(t *testing.T) {
	if err := ReadFile(New(), filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
	if err := ReadFile(New(), ""); err != nil {
		t.Errorf("empty path: %v", err)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		key   string
		value any
	}{
		{KeyStep, "0s"},
		{KeyStep, "-30"},
		{KeyStep, "soon"},
		{KeyGravity, "egm96"},
		{KeyEllipsoid, "grs67"},
		{KeyFormat, "xml"},
		{KeyWorkers, 0},
		{KeyChunkSize, -1},
		{KeyMaxRecords, -5},
		{KeyRateLimit, -1.0},
		{KeyStart, "2024-04-09 12:00:00"},
		{KeyEnd, "yesterday"},
		{KeyAuthEnabled, true},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			v := New()
			v.Set(tt.key, tt.value)
			if _, err := Load(v); err == nil {
				t.Errorf("Load with %s=%v: expected error", tt.key, tt.value)
			}
		})
	}
}

func TestLoadAuth(t *testing.T) {
	v := New()
	v.Set(KeyAuthEnabled, true)
	v.Set(KeyAuthToken, "s3cret")
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Auth.Enabled || cfg.Auth.Token != "s3cret" {
		t.Errorf("Auth = %+v", cfg.Auth)
	}
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		in     string
		offset string
		want   time.Time
	}{
		{"2024-04-09T12:00:00Z", "", time.Date(2024, 4, 9, 12, 0, 0, 0, time.UTC)},
		{"2024-04-09T14:00:00+02:00", "", time.Date(2024, 4, 9, 12, 0, 0, 0, time.UTC)},
		{"2024-04-09T12:00:00.25Z", "", time.Date(2024, 4, 9, 12, 0, 0, 250_000_000, time.UTC)},
		// explicit offset on the timestamp wins over the configured one
		{"2024-04-09T12:00:00Z", "+05:00", time.Date(2024, 4, 9, 12, 0, 0, 0, time.UTC)},
		{"2024-04-09 12:00:00", "UTC", time.Date(2024, 4, 9, 12, 0, 0, 0, time.UTC)},
		{"2024-04-09T12:00:00", "Z", time.Date(2024, 4, 9, 12, 0, 0, 0, time.UTC)},
		{"2024-04-09T12:00:00", "+02:00", time.Date(2024, 4, 9, 10, 0, 0, 0, time.UTC)},
		{"2024-04-09 12:00", "-0530", time.Date(2024, 4, 9, 17, 30, 0, 0, time.UTC)},
		{"2024-04-09", "-03", time.Date(2024, 4, 9, 3, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.in+"/"+tt.offset, func(t *testing.T) {
			got, err := ParseTime(tt.in, tt.offset)
			if err != nil {
				t.Fatalf("ParseTime: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
			if got.Location() != time.UTC {
				t.Errorf("location = %v, want UTC", got.Location())
			}
		})
	}
}

func TestParseTimeNaiveRequiresOffset(t *testing.T) {
	_, err := ParseTime("2024-04-09T12:00:00", "")
	if !errors.Is(err, ErrMissingOffset) {
		t.Errorf("err = %v, want ErrMissingOffset", err)
	}
	if _, err := ParseTime("2024-04-09T12:00:00", "+25:99x"); err == nil {
		t.Error("expected error for malformed offset")
	}
	if _, err := ParseTime("09/04/2024", "UTC"); err == nil {
		t.Error("expected error for unsupported layout")
	}
}

func TestParseStep(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"60", time.Minute},
		{"0.5", 500 * time.Millisecond},
		{"30s", 30 * time.Second},
		{"1m30s", 90 * time.Second},
		{" 250ms ", 250 * time.Millisecond},
	}
	for _, tt := range tests {
		got, err := ParseStep(tt.in)
		if err != nil {
			t.Errorf("ParseStep(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseStep(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	for _, bad := range []string{"0", "-1s", "0s"} {
		if _, err := ParseStep(bad); !errors.Is(err, track.ErrInvalidStep) {
			t.Errorf("ParseStep(%q) err = %v, want ErrInvalidStep", bad, err)
		}
	}
	for _, bad := range []string{"", "NaN", "Inf", "fast"} {
		if _, err := ParseStep(bad); err == nil {
			t.Errorf("ParseStep(%q): expected error", bad)
		}
	}
}

func TestParseStepTooLarge(t *testing.T) {
	for _, in := range []string{"1e20", "9223372037", "1e300"} {
		_, err := ParseStep(in)
		if err == nil {
			t.Errorf("ParseStep(%q): expected error", in)
			continue
		}
		if errors.Is(err, track.ErrInvalidStep) {
			t.Errorf("ParseStep(%q) err = %v, want a range error rather than ErrInvalidStep", in, err)
		}
		if !strings.Contains(err.Error(), "too large") {
			t.Errorf("ParseStep(%q) err = %v", in, err)
		}
	}
	if _, err := ParseStep("-1e20"); !errors.Is(err, track.ErrInvalidStep) {
		t.Errorf("ParseStep(-1e20) err = %v, want ErrInvalidStep", err)
	}
	// largest whole-second step that still fits
	if d, err := ParseStep("9223372036"); err != nil || d != 9223372036*time.Second {
		t.Errorf("ParseStep(9223372036) = %v, %v", d, err)
	}
}
