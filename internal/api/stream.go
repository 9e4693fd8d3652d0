package api

import (
	"errors"
	"iter"
	"log/slog"
	"net/http"
	"time"

	"github.com/star/groundtrack/internal/export"
	"github.com/star/groundtrack/internal/httputil"
	"github.com/star/groundtrack/internal/metrics"
	"github.com/star/groundtrack/internal/stream"
	"github.com/star/groundtrack/internal/track"
)

// SSE payloads.

type metadataMessage struct {
	Type    string `json:"type"`
	NORADID int    `json:"norad_id"`
	Name    string `json:"name,omitempty"`
	Epoch   string `json:"epoch"`
	Gravity string `json:"gravity"`
	Records int    `json:"records"`
}

type recordMessage struct {
	Type string `json:"type"`
	export.JSONRecord
}

type endMessage struct {
	Type    string `json:"type"`
	Records int    `json:"records"`
}

type errorMessage struct {
	Type             string `json:"type"`
	Error            string `json:"error"`
	Kind             string `json:"kind"`
	RecordsCompleted int    `json:"records_completed"`
	FailedEpoch      string `json:"failed_epoch"`
}

// streamHandler serves POST /api/v1/groundtrack/stream. It takes the same
// parameters as the batch endpoint but emits each record as an SSE event as
// soon as it is computed, followed by an "end" or "error" event.
type streamHandler struct {
	driver     *track.Driver
	limiter    *stream.Limiter
	maxRecords int
	trustProxy bool
	logger     *slog.Logger
}

func (h *streamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req, ok := parseRequest(w, r)
	if !ok {
		return
	}

	seq, err := h.driver.Run(req.es, req.start, req.end, req.step)
	if err != nil {
		writeTrackError(w, r, err, h.maxRecords, h.logger)
		return
	}
	total, _ := track.Count(req.start, req.end, req.step)

	ip := httputil.ClientIP(r, h.trustProxy)
	if !h.limiter.Acquire(ip) {
		h.logger.Warn("stream limit exceeded", "component", "api", "remote_ip", ip, "current_count", h.limiter.Count(ip))
		w.Header().Set("Retry-After", "30")
		writeError(w, http.StatusTooManyRequests, "too many concurrent streams", nil)
		return
	}
	defer h.limiter.Release(ip)

	sw, err := stream.NewWriter(w, h.logger)
	if errors.Is(err, stream.ErrNotSupported) {
		writeError(w, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	if err != nil {
		h.logger.Debug("stream open failed", "component", "api", "remote_ip", ip, "error", err)
		return
	}
	metrics.StreamOpened()
	defer metrics.StreamClosed()

	began := time.Now()
	sent, runErr := h.send(r, sw, req, seq, total)
	metrics.RecordRun(time.Since(began), sent, track.ErrorKind(runErr))

	h.logger.Info("stream closed",
		"component", "api",
		"remote_ip", ip,
		"norad_id", req.es.NORADID,
		"records", sent,
		"messages", sw.MessagesSent(),
		"bytes", sw.BytesSent(),
		"duration_ms", time.Since(began).Milliseconds(),
	)
}

// send writes the metadata, record and terminal events. It returns the
// number of records sent and the propagation error that ended the stream,
// if any. Client disconnects end the stream silently.
func (h *streamHandler) send(r *http.Request, sw *stream.Writer, req trackRequest, seq iter.Seq2[track.Record, error], total int) (int, error) {
	err := sw.Send("metadata", metadataMessage{
		Type:    "metadata",
		NORADID: req.es.NORADID,
		Name:    req.es.Name,
		Epoch:   req.es.Epoch.Format(time.RFC3339Nano),
		Gravity: string(req.es.Gravity),
		Records: total,
	})
	if err != nil {
		return 0, nil
	}

	sent := 0
	for rec, err := range seq {
		if r.Context().Err() != nil {
			return sent, nil
		}
		if err != nil {
			sw.Send("error", errorMessage{
				Type:             "error",
				Error:            err.Error(),
				Kind:             track.ErrorKind(err),
				RecordsCompleted: sent,
				FailedEpoch:      rec.Epoch.Format(time.RFC3339Nano),
			})
			return sent, err
		}
		if err := sw.Send("record", recordMessage{Type: "record", JSONRecord: export.NewJSONRecord(rec)}); err != nil {
			h.logger.Debug("stream send error", "component", "api", "error", err)
			return sent, nil
		}
		sent++
	}
	sw.Send("end", endMessage{Type: "end", Records: sent})
	return sent, nil
}
