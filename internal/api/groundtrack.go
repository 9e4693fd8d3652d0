package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/star/groundtrack/internal/config"
	"github.com/star/groundtrack/internal/export"
	"github.com/star/groundtrack/internal/propagation"
	"github.com/star/groundtrack/internal/tle"
	"github.com/star/groundtrack/internal/track"
)

// groundtrackHandler serves POST /api/v1/groundtrack. The body is a single
// 2- or 3-line TLE; the window comes from the start, end and step query
// parameters. Optional parameters: gravity, format (csv or json), utc_offset.
type groundtrackHandler struct {
	driver     *track.Driver
	maxRecords int
	timeout    time.Duration
	logger     *slog.Logger
}

func (h *groundtrackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req, ok := parseRequest(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	records, err := h.driver.Collect(ctx, req.es, req.start, req.end, req.step)
	if err != nil {
		writeTrackError(w, r, err, h.maxRecords, h.logger)
		return
	}

	w.Header().Set("Content-Type", req.format.ContentType())
	w.Header().Set("X-Record-Count", strconv.Itoa(len(records)))
	out, err := export.NewWriter(w, req.format)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error", nil)
		return
	}
	if _, err := export.WriteAll(out, records); err != nil {
		h.logger.Warn("writing ground track response", "component", "api", "error", err)
	}
}

// trackRequest is a decoded ground track request.
type trackRequest struct {
	es     *tle.ElementSet
	start  time.Time
	end    time.Time
	step   time.Duration
	format export.Format
}

// parseRequest decodes the query and TLE body. On failure it writes the
// error response and returns false.
func parseRequest(w http.ResponseWriter, r *http.Request) (trackRequest, bool) {
	q := r.URL.Query()

	var req trackRequest
	var err error
	if req.format, err = export.ParseFormat(q.Get("format")); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return req, false
	}
	req.start, req.end, req.step, err = parseWindow(q.Get("start"), q.Get("end"), q.Get("step"), q.Get("utc_offset"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return req, false
	}

	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	req.es, err = tle.ReadElementSet(body, tle.Gravity(q.Get("gravity")))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large", nil)
			return req, false
		}
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return req, false
	}
	return req, true
}

func parseWindow(startStr, endStr, stepStr, offset string) (start, end time.Time, step time.Duration, err error) {
	if startStr == "" || endStr == "" {
		return start, end, 0, errors.New("start and end are required")
	}
	if start, err = config.ParseTime(startStr, offset); err != nil {
		return start, end, 0, err
	}
	if end, err = config.ParseTime(endStr, offset); err != nil {
		return start, end, 0, err
	}
	if stepStr == "" {
		stepStr = "60"
	}
	step, err = config.ParseStep(stepStr)
	return start, end, step, err
}

// writeTrackError maps a driver error to a JSON error response.
func writeTrackError(w http.ResponseWriter, r *http.Request, err error, maxRecords int, logger *slog.Logger) {
	var partial *track.PartialResultError
	switch {
	case errors.As(err, &partial):
		if r.Context().Err() != nil {
			// client went away
			return
		}
		if errors.Is(err, context.DeadlineExceeded) {
			writeError(w, http.StatusServiceUnavailable, "request timed out", map[string]any{
				"records_completed": len(partial.Records),
			})
			return
		}
		writeError(w, http.StatusUnprocessableEntity, partial.Err.Error(), map[string]any{
			"kind":              track.ErrorKind(err),
			"records_completed": len(partial.Records),
			"failed_epoch":      partial.Epoch.Format(time.RFC3339Nano),
		})
	case errors.Is(err, track.ErrTooManyRecords):
		writeError(w, http.StatusBadRequest, err.Error(), map[string]any{
			"max_records": maxRecords,
		})
	case errors.Is(err, track.ErrInvalidStep):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, propagation.ErrDeepSpace),
		errors.Is(err, propagation.ErrOrbitDecay),
		errors.Is(err, propagation.ErrPropagationDivergence):
		writeError(w, http.StatusUnprocessableEntity, err.Error(), map[string]any{
			"kind": track.ErrorKind(err),
		})
	default:
		logger.Error("ground track failed", "component", "api", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error", nil)
	}
}

func writeError(w http.ResponseWriter, status int, msg string, extra map[string]any) {
	resp := map[string]any{"error": msg}
	for k, v := range extra {
		resp[k] = v
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}
