// Package stream writes Server-Sent Events. Each message is a named event
// with a JSON payload:
//
//	event: record
//	data: {"type":"record","epoch":"2024-04-09T12:00:00Z",...}
//
// The first frame sets a jittered reconnect delay so clients that lose the
// connection do not all retry at once.
package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/star/groundtrack/internal/metrics"
)

// ErrNotSupported is returned when neither the ResponseWriter nor any
// writer it unwraps to can flush.
var ErrNotSupported = errors.New("streaming not supported")

const writeTimeout = 30 * time.Second

// Writer manages a single SSE connection's write operations.
type Writer struct {
	w      http.ResponseWriter
	rc     *http.ResponseController
	logger *slog.Logger

	messagesSent int64
	bytesSent    int64
}

// NewWriter sends the SSE response headers and returns a Writer for w.
// Middleware wrappers are looked through with Unwrap, as
// http.ResponseController does.
func NewWriter(w http.ResponseWriter, logger *slog.Logger) (*Writer, error) {
	if !canFlush(w) {
		return nil, ErrNotSupported
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)

	// Long windows outlive the server's WriteTimeout; deadlines are
	// extended per message instead.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		logger.Debug("could not clear write deadline", "error", err)
	}

	sw := &Writer{w: w, rc: rc, logger: logger}
	n, err := fmt.Fprintf(w, "retry: %d\n\n", 3000+rand.IntN(4000))
	if err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}
	sw.bytesSent += int64(n)
	if err := rc.Flush(); err != nil {
		return nil, fmt.Errorf("flush: %w", err)
	}
	return sw, nil
}

func canFlush(w http.ResponseWriter) bool {
	for {
		switch t := w.(type) {
		case http.Flusher:
			return true
		case interface{ Unwrap() http.ResponseWriter }:
			w = t.Unwrap()
		default:
			return false
		}
	}
}

// Send marshals v as JSON and sends it as an SSE message named event.
func (c *Writer) Send(event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}

	c.extendDeadline()
	n, err := fmt.Fprintf(c.w, "event: %s\ndata: %s\n\n", event, data)
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}

	if err := c.rc.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	c.messagesSent++
	c.bytesSent += int64(n)
	metrics.AddStreamMessage(n)
	return nil
}

// MessagesSent returns the number of messages written so far.
func (c *Writer) MessagesSent() int64 { return c.messagesSent }

// BytesSent returns the number of bytes written so far.
func (c *Writer) BytesSent() int64 { return c.bytesSent }

func (c *Writer) extendDeadline() {
	if err := c.rc.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		c.logger.Debug("could not set write deadline", "error", err)
	}
}
