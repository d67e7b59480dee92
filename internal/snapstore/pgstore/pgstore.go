package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/route-beacon/routecache/internal/snapstore"
)

// Store is a snapstore.Store backed by Postgres: snapshot_latest holds
// one row per coordinate, snapshot_archive and diff_archive are daily-
// partitioned append-only tables (see PartitionManager).
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

var _ snapstore.Store = (*Store)(nil)

func (s *Store) ReadLatest(ctx context.Context, device string, kind snapstore.Kind, vrf, afi string) ([]byte, bool, error) {
	var body string
	err := s.pool.QueryRow(ctx,
		`SELECT body FROM snapshot_latest WHERE device=$1 AND kind=$2 AND vrf=$3 AND afi=$4`,
		device, string(kind), vrf, afi,
	).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("pgstore: read latest: %w", err)
	}
	return []byte(body), true, nil
}

func (s *Store) WriteLatestAndArchive(ctx context.Context, device string, kind snapstore.Kind, vrf, afi string, latestJSON, archiveJSON []byte, ts time.Time) error {
	tsStr := snapstore.FormatTimestamp(ts)

	if err := s.insertArchiveRow(ctx, device, kind, vrf, afi, tsStr, archiveJSON, ts); err != nil {
		return fmt.Errorf("pgstore: write archive (latest untouched): %w", err)
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO snapshot_latest (device, kind, vrf, afi, body, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (device, kind, vrf, afi)
		DO UPDATE SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at`,
		device, string(kind), vrf, afi, string(latestJSON),
	)
	if err != nil {
		return fmt.Errorf("pgstore: replace latest (archive already durable): %w", err)
	}
	return nil
}

// insertArchiveRow retries with a "-N" timestamp suffix on a same-second
// collision, matching fsstore's filename-collision policy (spec §4.4).
func (s *Store) insertArchiveRow(ctx context.Context, device string, kind snapstore.Kind, vrf, afi, tsStr string, payload []byte, createdAt time.Time) error {
	createdAt = createdAt.Truncate(time.Second)
	for attempt := 0; ; attempt++ {
		ts := tsStr
		if attempt > 0 {
			ts = fmt.Sprintf("%s-%d", tsStr, attempt)
		}
		_, err := s.pool.Exec(ctx, `
			INSERT INTO snapshot_archive (device, kind, vrf, afi, ts, body, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			device, string(kind), vrf, afi, ts, string(payload), createdAt,
		)
		if err == nil {
			return nil
		}
		if isUniqueViolation(err) {
			continue
		}
		return err
	}
}

func isUniqueViolation(err error) bool {
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}

func (s *Store) ListArchiveTimestamps(ctx context.Context, device string, kind snapstore.Kind, vrf, afi string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT ts FROM snapshot_archive WHERE device=$1 AND kind=$2 AND vrf=$3 AND afi=$4 ORDER BY ts ASC`,
		device, string(kind), vrf, afi,
	)
	if err != nil {
		return nil, fmt.Errorf("pgstore: list archive timestamps: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var ts string
		if err := rows.Scan(&ts); err != nil {
			return nil, fmt.Errorf("pgstore: scan archive timestamp: %w", err)
		}
		out = append(out, ts)
	}
	return out, rows.Err()
}

func (s *Store) ReadArchive(ctx context.Context, device string, kind snapstore.Kind, vrf, afi, ts string) ([]byte, error) {
	var body string
	err := s.pool.QueryRow(ctx,
		`SELECT body FROM snapshot_archive WHERE device=$1 AND kind=$2 AND vrf=$3 AND afi=$4 AND ts=$5`,
		device, string(kind), vrf, afi, ts,
	).Scan(&body)
	if err != nil {
		return nil, fmt.Errorf("pgstore: read archive: %w", err)
	}
	return []byte(body), nil
}

func (s *Store) WriteDiff(ctx context.Context, device string, vrf, afi string, ts time.Time, payload []byte, summary snapstore.DiffSummary) error {
	tsStr := snapstore.FormatTimestamp(ts)
	for attempt := 0; ; attempt++ {
		candidate := tsStr
		if attempt > 0 {
			candidate = fmt.Sprintf("%s-%d", tsStr, attempt)
		}
		_, err := s.pool.Exec(ctx, `
			INSERT INTO diff_archive (device, vrf, afi, ts, body, added, removed, changed, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			device, vrf, afi, candidate, string(payload), summary.Added, summary.Removed, summary.Changed, ts.Truncate(time.Second),
		)
		if err == nil {
			return nil
		}
		if isUniqueViolation(err) {
			continue
		}
		return fmt.Errorf("pgstore: write diff: %w", err)
	}
}

func (s *Store) ListDiffs(ctx context.Context, device string, vrf, afi string) ([]snapstore.DiffEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT ts, added, removed, changed FROM diff_archive WHERE device=$1 AND vrf=$2 AND afi=$3 ORDER BY ts ASC`,
		device, vrf, afi,
	)
	if err != nil {
		return nil, fmt.Errorf("pgstore: list diffs: %w", err)
	}
	defer rows.Close()

	var out []snapstore.DiffEntry
	for rows.Next() {
		var e snapstore.DiffEntry
		if err := rows.Scan(&e.Timestamp, &e.Summary.Added, &e.Summary.Removed, &e.Summary.Changed); err != nil {
			return nil, fmt.Errorf("pgstore: scan diff entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) ReadDiff(ctx context.Context, device string, vrf, afi, ts string) ([]byte, error) {
	var body string
	err := s.pool.QueryRow(ctx,
		`SELECT body FROM diff_archive WHERE device=$1 AND vrf=$2 AND afi=$3 AND ts=$4`,
		device, vrf, afi, ts,
	).Scan(&body)
	if err != nil {
		return nil, fmt.Errorf("pgstore: read diff: %w", err)
	}
	return []byte(body), nil
}

func (s *Store) EnumerateDevices(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT device FROM snapshot_latest ORDER BY device`)
	if err != nil {
		return nil, fmt.Errorf("pgstore: enumerate devices: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("pgstore: scan device: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) EnumerateCoordinates(ctx context.Context, device string) (snapstore.Coordinates, error) {
	rib, err := s.enumerateKindCoordinates(ctx, device, snapstore.KindRIB)
	if err != nil {
		return snapstore.Coordinates{}, err
	}
	bgp, err := s.enumerateKindCoordinates(ctx, device, snapstore.KindBGP)
	if err != nil {
		return snapstore.Coordinates{}, err
	}
	return snapstore.Coordinates{RIB: rib, BGP: bgp}, nil
}

func (s *Store) enumerateKindCoordinates(ctx context.Context, device string, kind snapstore.Kind) ([]snapstore.Coordinate, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT vrf, afi FROM snapshot_latest WHERE device=$1 AND kind=$2 ORDER BY vrf, afi`,
		device, string(kind),
	)
	if err != nil {
		return nil, fmt.Errorf("pgstore: enumerate coordinates: %w", err)
	}
	defer rows.Close()

	var out []snapstore.Coordinate
	for rows.Next() {
		var c snapstore.Coordinate
		if err := rows.Scan(&c.VRF, &c.AFI); err != nil {
			return nil, fmt.Errorf("pgstore: scan coordinate: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

