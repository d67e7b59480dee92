package pgstore

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var validPartitionName = regexp.MustCompile(`^(snapshot_archive|diff_archive)_\d{8}$`)

// PartitionManager creates and retires the daily partitions backing
// snapshot_archive and diff_archive, mirroring the teacher's
// route_events partitioning scheme.
type PartitionManager struct {
	pool          *pgxpool.Pool
	retentionDays int
	timezone      string
	logger        *zap.Logger
}

func NewPartitionManager(pool *pgxpool.Pool, retentionDays int, timezone string, logger *zap.Logger) *PartitionManager {
	return &PartitionManager{pool: pool, retentionDays: retentionDays, timezone: timezone, logger: logger}
}

// Run ensures today's and tomorrow's partitions exist, drops partitions
// past the retention window, and refreshes the coordinate summary view.
func (pm *PartitionManager) Run(ctx context.Context) error {
	if err := pm.CreatePartitions(ctx); err != nil {
		return fmt.Errorf("pgstore: creating partitions: %w", err)
	}
	if err := pm.DropOldPartitions(ctx); err != nil {
		return fmt.Errorf("pgstore: dropping old partitions: %w", err)
	}
	if err := pm.RefreshSummary(ctx); err != nil {
		return fmt.Errorf("pgstore: refreshing coordinate summary: %w", err)
	}
	return nil
}

// RefreshSummary refreshes the coordinate_summary materialized view.
// Nothing in this package reads the view: EnumerateCoordinates queries
// snapshot_latest directly.
func (pm *PartitionManager) RefreshSummary(ctx context.Context) error {
	if _, err := pm.pool.Exec(ctx, "REFRESH MATERIALIZED VIEW CONCURRENTLY coordinate_summary"); err != nil {
		pm.logger.Warn("failed to refresh coordinate_summary (may not exist yet)", zap.Error(err))
	}
	return nil
}

// CreatePartitions creates today's and tomorrow's partitions for both
// partitioned tables, in the configured timezone.
func (pm *PartitionManager) CreatePartitions(ctx context.Context) error {
	loc, err := time.LoadLocation(pm.timezone)
	if err != nil {
		return fmt.Errorf("pgstore: loading timezone %s: %w", pm.timezone, err)
	}

	now := time.Now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	tomorrow := today.AddDate(0, 0, 1)
	dayAfter := today.AddDate(0, 0, 2)

	for _, parent := range []string{"snapshot_archive", "diff_archive"} {
		if err := pm.createPartition(ctx, parent, today, tomorrow); err != nil {
			return err
		}
		if err := pm.createPartition(ctx, parent, tomorrow, dayAfter); err != nil {
			return err
		}
	}
	return nil
}

func (pm *PartitionManager) createPartition(ctx context.Context, parent string, from, to time.Time) error {
	name := fmt.Sprintf("%s_%s", parent, from.Format("20060102"))
	safeName := pgx.Identifier{name}.Sanitize()
	safeParent := pgx.Identifier{parent}.Sanitize()
	fromStr := from.UTC().Format("2006-01-02 15:04:05+00")
	toStr := to.UTC().Format("2006-01-02 15:04:05+00")

	createSQL := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s PARTITION OF %s FOR VALUES FROM ('%s') TO ('%s')`,
		safeName, safeParent, fromStr, toStr,
	)
	if _, err := pm.pool.Exec(ctx, createSQL); err != nil {
		return fmt.Errorf("pgstore: creating partition %s: %w", name, err)
	}
	pm.logger.Info("partition ensured", zap.String("partition", name))

	safeIdx := pgx.Identifier{fmt.Sprintf("idx_%s_coord", name)}.Sanitize()
	idxSQL := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (device, vrf, afi, ts)`, safeIdx, safeName)
	if _, err := pm.pool.Exec(ctx, idxSQL); err != nil {
		return fmt.Errorf("pgstore: creating coordinate index on %s: %w", name, err)
	}
	return nil
}

// DropOldPartitions drops partitions of both tables older than the
// configured retention period.
func (pm *PartitionManager) DropOldPartitions(ctx context.Context) error {
	loc, err := time.LoadLocation(pm.timezone)
	if err != nil {
		return fmt.Errorf("pgstore: loading timezone %s: %w", pm.timezone, err)
	}

	cutoff := time.Now().In(loc).AddDate(0, 0, -pm.retentionDays)
	cutoffDate := time.Date(cutoff.Year(), cutoff.Month(), cutoff.Day(), 0, 0, 0, 0, loc)

	for _, parent := range []string{"snapshot_archive", "diff_archive"} {
		if err := pm.dropOldPartitionsOf(ctx, parent, cutoffDate, loc); err != nil {
			return err
		}
	}
	return nil
}

func (pm *PartitionManager) dropOldPartitionsOf(ctx context.Context, parent string, cutoffDate time.Time, loc *time.Location) error {
	rows, err := pm.pool.Query(ctx,
		`SELECT inhrelid::regclass::text FROM pg_inherits WHERE inhparent = $1::regclass`, parent)
	if err != nil {
		return fmt.Errorf("pgstore: listing partitions of %s: %w", parent, err)
	}
	defer rows.Close()

	var partitions []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("pgstore: scanning partition name: %w", err)
		}
		partitions = append(partitions, name)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("pgstore: iterating partitions of %s: %w", parent, err)
	}

	for _, name := range partitions {
		if !validPartitionName.MatchString(name) {
			pm.logger.Warn("skipping partition with unexpected name", zap.String("partition", name))
			continue
		}

		dateStr := name[len(name)-8:]
		partDate, err := time.ParseInLocation("20060102", dateStr, loc)
		if err != nil {
			pm.logger.Warn("cannot parse partition date", zap.String("partition", name))
			continue
		}

		if partDate.Before(cutoffDate) {
			safeName := pgx.Identifier{name}.Sanitize()
			if _, err := pm.pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", safeName)); err != nil {
				return fmt.Errorf("pgstore: dropping partition %s: %w", name, err)
			}
			pm.logger.Info("dropped old partition", zap.String("partition", name), zap.Time("cutoff", cutoffDate))
		}
	}
	return nil
}
