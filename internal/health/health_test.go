package health

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthz(t *testing.T) {
	w := httptest.NewRecorder()
	Healthz(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK || w.Body.String() != "ok\n" {
		t.Errorf("got %d %q", w.Code, w.Body.String())
	}
}

func TestReadyz(t *testing.T) {
	var r Readiness

	w := httptest.NewRecorder()
	r.Readyz(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("before SetReady: status = %d, want 503", w.Code)
	}

	r.SetReady(true)
	w = httptest.NewRecorder()
	r.Readyz(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusOK || w.Body.String() != "ready\n" {
		t.Errorf("after SetReady: got %d %q", w.Code, w.Body.String())
	}

	r.SetReady(false)
	if r.Ready() {
		t.Error("Ready() = true after SetReady(false)")
	}
}
