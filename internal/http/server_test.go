package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/route-beacon/routecache/internal/snapstore"
	"go.uber.org/zap"
)

// nopStore implements snapstore.Store with zero-value responses; the
// read API routes are exercised directly in internal/readapi, this
// package only needs a store to satisfy NewServer's signature.
type nopStore struct{}

func (nopStore) ReadLatest(ctx context.Context, device string, kind snapstore.Kind, vrf, afi string) ([]byte, bool, error) {
	return nil, false, nil
}
func (nopStore) WriteLatestAndArchive(ctx context.Context, device string, kind snapstore.Kind, vrf, afi string, latestJSON, archiveJSON []byte, ts time.Time) error {
	return nil
}
func (nopStore) ListArchiveTimestamps(ctx context.Context, device string, kind snapstore.Kind, vrf, afi string) ([]string, error) {
	return nil, nil
}
func (nopStore) ReadArchive(ctx context.Context, device string, kind snapstore.Kind, vrf, afi, ts string) ([]byte, error) {
	return nil, nil
}
func (nopStore) WriteDiff(ctx context.Context, device string, vrf, afi string, ts time.Time, payload []byte, summary snapstore.DiffSummary) error {
	return nil
}
func (nopStore) ListDiffs(ctx context.Context, device string, vrf, afi string) ([]snapstore.DiffEntry, error) {
	return nil, nil
}
func (nopStore) ReadDiff(ctx context.Context, device string, vrf, afi, ts string) ([]byte, error) {
	return nil, nil
}
func (nopStore) EnumerateDevices(ctx context.Context) ([]string, error) { return nil, nil }
func (nopStore) EnumerateCoordinates(ctx context.Context, device string) (snapstore.Coordinates, error) {
	return snapstore.Coordinates{}, nil
}

var _ snapstore.Store = nopStore{}

type mockDBChecker struct {
	err error
}

func (m *mockDBChecker) Ping(_ context.Context) error { return m.err }

func newTestServer(db DBChecker) *Server {
	return NewServer(":0", nopStore{}, db, zap.NewNop())
}

func TestHealthz_AlwaysOK(t *testing.T) {
	s := newTestServer(nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	s.handleHealthz(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status 'ok', got '%s'", body["status"])
	}
}

func TestHealthz_ContentType(t *testing.T) {
	s := newTestServer(nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	s.handleHealthz(w, req)

	ct := w.Header().Get("Content-Type")
	if ct != "application/json" {
		t.Errorf("expected Content-Type 'application/json', got '%s'", ct)
	}
}

func TestReadyz_NoDBCheckerReportsNA(t *testing.T) {
	s := newTestServer(nil)
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()

	s.handleReadyz(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200 (fs backend has no DB to check), got %d", w.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	checks := body["checks"].(map[string]any)
	if checks["postgres"] != "n/a" {
		t.Errorf("expected postgres 'n/a', got '%v'", checks["postgres"])
	}
}

func TestReadyz_DBDown(t *testing.T) {
	s := newTestServer(&mockDBChecker{err: context.DeadlineExceeded})
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()

	s.handleReadyz(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "not_ready" {
		t.Errorf("expected status 'not_ready', got '%v'", body["status"])
	}
}

func TestReadyz_DBUp(t *testing.T) {
	s := newTestServer(&mockDBChecker{err: nil})
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()

	s.handleReadyz(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	checks := body["checks"].(map[string]any)
	if checks["postgres"] != "ok" {
		t.Errorf("expected postgres 'ok', got '%v'", checks["postgres"])
	}
}

func TestReadyz_ContentType(t *testing.T) {
	s := newTestServer(nil)
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()

	s.handleReadyz(w, req)

	ct := w.Header().Get("Content-Type")
	if ct != "application/json" {
		t.Errorf("expected Content-Type 'application/json', got '%s'", ct)
	}
}
