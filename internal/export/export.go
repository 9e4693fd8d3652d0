// Package export writes ground track records as CSV or JSON lines.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/star/groundtrack/internal/track"
)

// Format selects the output encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat maps a case-insensitive name to a Format. Empty selects CSV.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatCSV, nil
	case FormatCSV, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want csv or json)", s)
	}
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	if f == FormatJSON {
		return "application/x-ndjson"
	}
	return "text/csv; charset=utf-8"
}

// Header is the CSV header row, one column per record field.
var Header = []string{
	"Epoch [UTC Time]",
	"X [km]",
	"Y [km]",
	"Z[km]",
	"Vx [km/s]",
	"Vy [km/s]",
	"Vz [km/s]",
	"Latitude [deg]",
	"Longitude [deg]",
	"Altitude [km]",
}

// Writer encodes records to an underlying stream.
type Writer interface {
	Write(rec track.Record) error
	// Flush writes any buffered data; the CSV header is emitted even when no
	// records were written.
	Flush() error
}

// NewWriter returns a Writer for the given format.
func NewWriter(w io.Writer, f Format) (Writer, error) {
	switch f {
	case FormatCSV, "":
		return &csvWriter{w: csv.NewWriter(w)}, nil
	case FormatJSON:
		return &jsonWriter{enc: json.NewEncoder(w)}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q", f)
	}
}

// WriteAll writes records and flushes. It returns the number of records written.
func WriteAll(w Writer, records []track.Record) (int, error) {
	for i, rec := range records {
		if err := w.Write(rec); err != nil {
			return i, err
		}
	}
	return len(records), w.Flush()
}

type csvWriter struct {
	w          *csv.Writer
	headerDone bool
}

func (c *csvWriter) header() error {
	if c.headerDone {
		return nil
	}
	c.headerDone = true
	return c.w.Write(Header)
}

func (c *csvWriter) Write(rec track.Record) error {
	if err := c.header(); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	row := []string{
		rec.Epoch.UTC().Format(time.RFC3339Nano),
		formatFloat(rec.Position.X),
		formatFloat(rec.Position.Y),
		formatFloat(rec.Position.Z),
		formatFloat(rec.Velocity.X),
		formatFloat(rec.Velocity.Y),
		formatFloat(rec.Velocity.Z),
		formatFloat(rec.Geodetic.LatDeg),
		formatFloat(rec.Geodetic.LonDeg),
		formatFloat(rec.Geodetic.AltKm),
	}
	if err := c.w.Write(row); err != nil {
		return fmt.Errorf("writing csv row: %w", err)
	}
	return nil
}

func (c *csvWriter) Flush() error {
	if err := c.header(); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	c.w.Flush()
	return c.w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// JSONRecord is the JSON form of a record, one object per line in FormatJSON.
type JSONRecord struct {
	Epoch     time.Time `json:"epoch"`
	X         float64   `json:"x_km"`
	Y         float64   `json:"y_km"`
	Z         float64   `json:"z_km"`
	VX        float64   `json:"vx_km_s"`
	VY        float64   `json:"vy_km_s"`
	VZ        float64   `json:"vz_km_s"`
	Latitude  float64   `json:"latitude_deg"`
	Longitude float64   `json:"longitude_deg"`
	Altitude  float64   `json:"altitude_km"`
}

type jsonWriter struct {
	enc *json.Encoder
}

// NewJSONRecord converts a record to its JSON form.
func NewJSONRecord(rec track.Record) JSONRecord {
	return JSONRecord{
		Epoch:     rec.Epoch.UTC(),
		X:         rec.Position.X,
		Y:         rec.Position.Y,
		Z:         rec.Position.Z,
		VX:        rec.Velocity.X,
		VY:        rec.Velocity.Y,
		VZ:        rec.Velocity.Z,
		Latitude:  rec.Geodetic.LatDeg,
		Longitude: rec.Geodetic.LonDeg,
		Altitude:  rec.Geodetic.AltKm,
	}
}

func (j *jsonWriter) Write(rec track.Record) error {
	if err := j.enc.Encode(NewJSONRecord(rec)); err != nil {
		return fmt.Errorf("writing json record: %w", err)
	}
	return nil
}

func (j *jsonWriter) Flush() error { return nil }
