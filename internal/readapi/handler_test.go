package readapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/route-beacon/routecache/internal/snapstore"
)

type fakeStore struct {
	devices     []string
	coordinates snapstore.Coordinates
	latest      map[string][]byte
	archiveTS   []string
	archive     map[string][]byte
	diffs       []snapstore.DiffEntry
	diffBody    map[string][]byte
}

func (f *fakeStore) ReadLatest(ctx context.Context, device string, kind snapstore.Kind, vrf, afi string) ([]byte, bool, error) {
	body, ok := f.latest[string(kind)+vrf+afi]
	return body, ok, nil
}
func (f *fakeStore) WriteLatestAndArchive(ctx context.Context, device string, kind snapstore.Kind, vrf, afi string, latestJSON, archiveJSON []byte, ts time.Time) error {
	return nil
}
func (f *fakeStore) ListArchiveTimestamps(ctx context.Context, device string, kind snapstore.Kind, vrf, afi string) ([]string, error) {
	return f.archiveTS, nil
}
func (f *fakeStore) ReadArchive(ctx context.Context, device string, kind snapstore.Kind, vrf, afi, ts string) ([]byte, error) {
	body, ok := f.archive[ts]
	if !ok {
		return nil, errNotFound
	}
	return body, nil
}
func (f *fakeStore) WriteDiff(ctx context.Context, device string, vrf, afi string, ts time.Time, payload []byte, summary snapstore.DiffSummary) error {
	return nil
}
func (f *fakeStore) ListDiffs(ctx context.Context, device string, vrf, afi string) ([]snapstore.DiffEntry, error) {
	return f.diffs, nil
}
func (f *fakeStore) ReadDiff(ctx context.Context, device string, vrf, afi, ts string) ([]byte, error) {
	body, ok := f.diffBody[ts]
	if !ok {
		return nil, errNotFound
	}
	return body, nil
}
func (f *fakeStore) EnumerateDevices(ctx context.Context) ([]string, error) { return f.devices, nil }
func (f *fakeStore) EnumerateCoordinates(ctx context.Context, device string) (snapstore.Coordinates, error) {
	return f.coordinates, nil
}

var _ snapstore.Store = (*fakeStore)(nil)

func newTestMux(store *fakeStore) *http.ServeMux {
	mux := http.NewServeMux()
	New(store).Register(mux)
	return mux
}

func TestListDevices(t *testing.T) {
	store := &fakeStore{devices: []string{"r1", "r2"}}
	mux := newTestMux(store)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var got []string
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 devices, got %v", got)
	}
}

func TestListCoordinates(t *testing.T) {
	store := &fakeStore{coordinates: snapstore.Coordinates{
		RIB: []snapstore.Coordinate{{VRF: "default", AFI: "ipv4"}},
	}}
	mux := newTestMux(store)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices/r1/coordinates", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var got snapstore.Coordinates
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.RIB) != 1 {
		t.Fatalf("expected 1 rib coordinate, got %+v", got)
	}
}

func TestReadLatest_Found(t *testing.T) {
	store := &fakeStore{latest: map[string][]byte{"ribdefaultipv4": []byte(`[{"prefix":"10.0.0.0/8"}]`)}}
	mux := newTestMux(store)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices/r1/snapshots/rib/default/ipv4/latest", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestReadLatest_NotFound(t *testing.T) {
	store := &fakeStore{latest: map[string][]byte{}}
	mux := newTestMux(store)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices/r1/snapshots/rib/default/ipv4/latest", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestListArchiveTimestamps(t *testing.T) {
	store := &fakeStore{archiveTS: []string{"20260101000000", "20260101010000"}}
	mux := newTestMux(store)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices/r1/snapshots/rib/default/ipv4/archive", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var got []string
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 timestamps, got %v", got)
	}
}

func TestReadArchive_NotFound(t *testing.T) {
	store := &fakeStore{archive: map[string][]byte{}}
	mux := newTestMux(store)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices/r1/snapshots/rib/default/ipv4/archive/20260101000000", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestListDiffs(t *testing.T) {
	store := &fakeStore{diffs: []snapstore.DiffEntry{{Timestamp: "20260101000000", Summary: snapstore.DiffSummary{Added: 1}}}}
	mux := newTestMux(store)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices/r1/diffs/default/ipv4", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var got []snapstore.DiffEntry
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].Summary.Added != 1 {
		t.Fatalf("unexpected diff entries: %+v", got)
	}
}

func TestReadDiff_Found(t *testing.T) {
	store := &fakeStore{diffBody: map[string][]byte{"20260101000000": []byte(`{"device":"r1"}`)}}
	mux := newTestMux(store)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices/r1/diffs/default/ipv4/20260101000000", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestUnknownRoute(t *testing.T) {
	store := &fakeStore{}
	mux := newTestMux(store)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices/r1/bogus", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
