// Package fsstore is the filesystem backend for snapstore.Store, laid
// out per spec §6:
//
//	<root>/<device>/{rib,bgp}/<vrf>.<afi>.latest.json
//	<root>/<device>/{rib,bgp}/<vrf>.<afi>.<ts>.json.gz
//	<root>/<device>/diffs/<vrf>.<afi>.<ts>.json.gz
package fsstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/route-beacon/routecache/internal/snapstore"
)

var gzipWriterPool = sync.Pool{
	New: func() any {
		w, _ := gzip.NewWriterLevel(io.Discard, gzip.BestSpeed)
		return w
	},
}

// Store is a snapstore.Store backed by a directory tree.
type Store struct {
	root string
}

func New(root string) *Store {
	return &Store{root: root}
}

var _ snapstore.Store = (*Store)(nil)

func (s *Store) deviceDir(device string) string { return filepath.Join(s.root, device) }

func (s *Store) kindDir(device string, kind snapstore.Kind) string {
	return filepath.Join(s.deviceDir(device), string(kind))
}

func (s *Store) diffsDir(device string) string {
	return filepath.Join(s.deviceDir(device), "diffs")
}

func latestName(vrf, afi string) string { return fmt.Sprintf("%s.%s.latest.json", vrf, afi) }

func archiveName(vrf, afi, ts string) string { return fmt.Sprintf("%s.%s.%s.json.gz", vrf, afi, ts) }

func (s *Store) ReadLatest(ctx context.Context, device string, kind snapstore.Kind, vrf, afi string) ([]byte, bool, error) {
	path := filepath.Join(s.kindDir(device, kind), latestName(vrf, afi))
	body, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("fsstore: read latest %s: %w", path, err)
	}
	return body, true, nil
}

func (s *Store) WriteLatestAndArchive(ctx context.Context, device string, kind snapstore.Kind, vrf, afi string, latestJSON, archiveJSON []byte, ts time.Time) error {
	dir := s.kindDir(device, kind)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("fsstore: mkdir %s: %w", dir, err)
	}

	if _, err := writeArchive(dir, vrf, afi, snapstore.FormatTimestamp(ts), archiveJSON); err != nil {
		return fmt.Errorf("fsstore: write archive: %w", err)
	}

	if err := atomicWrite(filepath.Join(dir, latestName(vrf, afi)), latestJSON); err != nil {
		return fmt.Errorf("fsstore: replace latest (archive already durable): %w", err)
	}
	return nil
}

// writeArchive gzip-compresses payload and writes it under a name
// derived from (vrf, afi, ts), retrying with a "-N" suffix on a
// same-second collision (spec §4.4: "MUST NOT be renamed over an
// existing timestamp; a same-second collision retries with a suffix").
func writeArchive(dir, vrf, afi, ts string, payload []byte) (string, error) {
	compressed, err := gzipCompress(payload)
	if err != nil {
		return "", err
	}

	for attempt := 0; ; attempt++ {
		name := archiveName(vrf, afi, ts)
		if attempt > 0 {
			name = archiveName(vrf, afi, fmt.Sprintf("%s-%d", ts, attempt))
		}
		path := filepath.Join(dir, name)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if os.IsExist(err) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("open %s: %w", path, err)
		}
		_, werr := f.Write(compressed)
		cerr := f.Close()
		if werr != nil {
			return "", fmt.Errorf("write %s: %w", path, werr)
		}
		if cerr != nil {
			return "", fmt.Errorf("close %s: %w", path, cerr)
		}
		return path, nil
	}
}

func gzipCompress(payload []byte) ([]byte, error) {
	w := gzipWriterPool.Get().(*gzip.Writer)
	defer gzipWriterPool.Put(w)

	var buf bytes.Buffer
	w.Reset(&buf)
	if _, err := w.Write(payload); err != nil {
		return nil, fmt.Errorf("gzip write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("gzip close: %w", err)
	}
	return buf.Bytes(), nil
}

// atomicWrite writes to a temporary sibling and renames over path, so
// readers never observe a partial or empty file (spec §4.4).
func atomicWrite(path string, body []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename %s -> %s: %w", tmpPath, path, err)
	}
	return nil
}

func (s *Store) ListArchiveTimestamps(ctx context.Context, device string, kind snapstore.Kind, vrf, afi string) ([]string, error) {
	entries, err := os.ReadDir(s.kindDir(device, kind))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fsstore: list %s/%s: %w", device, kind, err)
	}

	var out []string
	prefix := vrf + "." + afi + "."
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".json.gz") {
			continue
		}
		ts := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".json.gz")
		out = append(out, ts)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) ReadArchive(ctx context.Context, device string, kind snapstore.Kind, vrf, afi, ts string) ([]byte, error) {
	path := filepath.Join(s.kindDir(device, kind), archiveName(vrf, afi, ts))
	return readGzipFile(path)
}

func readGzipFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("fsstore: open %s: %w", path, err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("fsstore: gzip reader %s: %w", path, err)
	}
	defer zr.Close()

	body, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("fsstore: decompress %s: %w", path, err)
	}
	return body, nil
}

// WriteDiff ignores the precomputed summary; fsstore derives it from the
// payload on read (ListDiffs), since a gzip archive is already the
// cheapest source of truth and the filesystem backend keeps no index.
func (s *Store) WriteDiff(ctx context.Context, device string, vrf, afi string, ts time.Time, payload []byte, summary snapstore.DiffSummary) error {
	dir := s.diffsDir(device)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("fsstore: mkdir %s: %w", dir, err)
	}
	if _, err := writeArchive(dir, vrf, afi, snapstore.FormatTimestamp(ts), payload); err != nil {
		return fmt.Errorf("fsstore: write diff: %w", err)
	}
	return nil
}

func (s *Store) ListDiffs(ctx context.Context, device string, vrf, afi string) ([]snapstore.DiffEntry, error) {
	timestamps, err := s.ListArchiveTimestamps(ctx, device, snapstore.Kind("diffs"), vrf, afi)
	if err != nil {
		return nil, err
	}
	out := make([]snapstore.DiffEntry, 0, len(timestamps))
	for _, ts := range timestamps {
		payload, err := s.ReadDiff(ctx, device, vrf, afi, ts)
		if err != nil {
			return nil, err
		}
		summary, err := summarizeDiffPayload(payload)
		if err != nil {
			return nil, fmt.Errorf("fsstore: summarize diff %s/%s/%s@%s: %w", device, vrf, afi, ts, err)
		}
		out = append(out, snapstore.DiffEntry{Timestamp: ts, Summary: summary})
	}
	return out, nil
}

func (s *Store) ReadDiff(ctx context.Context, device string, vrf, afi, ts string) ([]byte, error) {
	path := filepath.Join(s.diffsDir(device), archiveName(vrf, afi, ts))
	return readGzipFile(path)
}

func (s *Store) EnumerateDevices(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fsstore: list root %s: %w", s.root, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) EnumerateCoordinates(ctx context.Context, device string) (snapstore.Coordinates, error) {
	rib, err := s.enumerateKindCoordinates(device, snapstore.KindRIB)
	if err != nil {
		return snapstore.Coordinates{}, err
	}
	bgp, err := s.enumerateKindCoordinates(device, snapstore.KindBGP)
	if err != nil {
		return snapstore.Coordinates{}, err
	}
	return snapstore.Coordinates{RIB: rib, BGP: bgp}, nil
}

func (s *Store) enumerateKindCoordinates(device string, kind snapstore.Kind) ([]snapstore.Coordinate, error) {
	entries, err := os.ReadDir(s.kindDir(device, kind))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fsstore: list %s/%s: %w", device, kind, err)
	}

	var out []snapstore.Coordinate
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		vrf, afi, ok := parseLatestName(e.Name())
		if !ok {
			continue
		}
		out = append(out, snapstore.Coordinate{VRF: vrf, AFI: afi})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].VRF != out[j].VRF {
			return out[i].VRF < out[j].VRF
		}
		return out[i].AFI < out[j].AFI
	})
	return out, nil
}

func parseLatestName(name string) (vrf, afi string, ok bool) {
	const suffix = ".latest.json"
	if !strings.HasSuffix(name, suffix) {
		return "", "", false
	}
	trimmed := strings.TrimSuffix(name, suffix)
	idx := strings.LastIndex(trimmed, ".")
	if idx < 0 {
		return "", "", false
	}
	return trimmed[:idx], trimmed[idx+1:], true
}

func summarizeDiffPayload(payload []byte) (snapstore.DiffSummary, error) {
	var doc struct {
		RIB struct {
			Adds []any `json:"adds"`
			Rems []any `json:"rems"`
			Chgs []any `json:"chgs"`
		} `json:"rib"`
		BGP struct {
			Adds []any `json:"adds"`
			Rems []any `json:"rems"`
			Chgs []any `json:"chgs"`
		} `json:"bgp"`
	}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return snapstore.DiffSummary{}, err
	}
	return snapstore.DiffSummary{
		Added:   len(doc.RIB.Adds) + len(doc.BGP.Adds),
		Removed: len(doc.RIB.Rems) + len(doc.BGP.Rems),
		Changed: len(doc.RIB.Chgs) + len(doc.BGP.Chgs),
	}, nil
}
