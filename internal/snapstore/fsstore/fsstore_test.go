package fsstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/route-beacon/routecache/internal/snapstore"
)

func TestWriteAndReadLatestRoundTrip(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()
	ts := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)

	latest := []byte(`{"rows":[]}`)
	archive := []byte(`{"rows":[]}`)
	if err := s.WriteLatestAndArchive(ctx, "leaf1", snapstore.KindRIB, "default", "ipv4", latest, archive, ts); err != nil {
		t.Fatalf("write: %v", err)
	}

	body, exists, err := s.ReadLatest(ctx, "leaf1", snapstore.KindRIB, "default", "ipv4")
	if err != nil {
		t.Fatalf("read latest: %v", err)
	}
	if !exists {
		t.Fatalf("expected latest to exist")
	}
	if string(body) != string(latest) {
		t.Fatalf("latest mismatch: got %s", body)
	}

	timestamps, err := s.ListArchiveTimestamps(ctx, "leaf1", snapstore.KindRIB, "default", "ipv4")
	if err != nil {
		t.Fatalf("list archive: %v", err)
	}
	if len(timestamps) != 1 || timestamps[0] != "20260730120000" {
		t.Fatalf("unexpected timestamps: %v", timestamps)
	}

	archived, err := s.ReadArchive(ctx, "leaf1", snapstore.KindRIB, "default", "ipv4", timestamps[0])
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}
	if string(archived) != string(archive) {
		t.Fatalf("archive mismatch: got %s", archived)
	}
}

func TestReadLatestMissingIsNotError(t *testing.T) {
	s := New(t.TempDir())
	_, exists, err := s.ReadLatest(context.Background(), "leaf1", snapstore.KindRIB, "default", "ipv4")
	if err != nil {
		t.Fatalf("unexpected error on cold start: %v", err)
	}
	if exists {
		t.Fatalf("expected exists=false when no latest has been written")
	}
}

func TestArchiveSameSecondCollisionRetries(t *testing.T) {
	dir := t.TempDir()
	ribDir := filepath.Join(dir, "leaf1", "rib")
	if err := os.MkdirAll(ribDir, 0o755); err != nil {
		t.Fatal(err)
	}

	if _, err := writeArchive(ribDir, "default", "ipv4", "20260730120000", []byte("first")); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if _, err := writeArchive(ribDir, "default", "ipv4", "20260730120000", []byte("second")); err != nil {
		t.Fatalf("second write: %v", err)
	}

	if _, err := os.Stat(filepath.Join(ribDir, "default.ipv4.20260730120000.json.gz")); err != nil {
		t.Fatalf("expected first archive file: %v", err)
	}
	if _, err := os.Stat(filepath.Join(ribDir, "default.ipv4.20260730120000-1.json.gz")); err != nil {
		t.Fatalf("expected collision-suffixed archive file: %v", err)
	}
}

func TestEnumerateDevicesAndCoordinates(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()
	ts := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)

	if err := s.WriteLatestAndArchive(ctx, "leaf1", snapstore.KindRIB, "default", "ipv4", []byte("{}"), []byte("{}"), ts); err != nil {
		t.Fatal(err)
	}
	if err := s.WriteLatestAndArchive(ctx, "leaf1", snapstore.KindBGP, "default", "ipv4", []byte("{}"), []byte("{}"), ts); err != nil {
		t.Fatal(err)
	}
	if err := s.WriteLatestAndArchive(ctx, "leaf2", snapstore.KindRIB, "red", "ipv6", []byte("{}"), []byte("{}"), ts); err != nil {
		t.Fatal(err)
	}

	devices, err := s.EnumerateDevices(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(devices) != 2 || devices[0] != "leaf1" || devices[1] != "leaf2" {
		t.Fatalf("unexpected devices: %v", devices)
	}

	coords, err := s.EnumerateCoordinates(ctx, "leaf1")
	if err != nil {
		t.Fatal(err)
	}
	if len(coords.RIB) != 1 || coords.RIB[0].VRF != "default" || coords.RIB[0].AFI != "ipv4" {
		t.Fatalf("unexpected rib coords: %+v", coords.RIB)
	}
	if len(coords.BGP) != 1 || coords.BGP[0].VRF != "default" {
		t.Fatalf("unexpected bgp coords: %+v", coords.BGP)
	}
}

func TestWriteAndListDiffs(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()
	ts := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)

	payload := []byte(`{"rib":{"adds":[{"a":1}],"rems":[],"chgs":[]},"bgp":{"adds":[],"rems":[{"b":1}],"chgs":[{"c":1},{"c":2}]}}`)
	if err := s.WriteDiff(ctx, "leaf1", "default", "ipv4", ts, payload, snapstore.DiffSummary{}); err != nil {
		t.Fatalf("write diff: %v", err)
	}

	diffs, err := s.ListDiffs(ctx, "leaf1", "default", "ipv4")
	if err != nil {
		t.Fatalf("list diffs: %v", err)
	}
	if len(diffs) != 1 {
		t.Fatalf("expected 1 diff entry, got %d", len(diffs))
	}
	got := diffs[0].Summary
	if got.Added != 1 || got.Removed != 1 || got.Changed != 2 {
		t.Fatalf("unexpected summary: %+v", got)
	}

	raw, err := s.ReadDiff(ctx, "leaf1", "default", "ipv4", diffs[0].Timestamp)
	if err != nil {
		t.Fatalf("read diff: %v", err)
	}
	if string(raw) != string(payload) {
		t.Fatalf("diff payload mismatch: got %s", raw)
	}
}
