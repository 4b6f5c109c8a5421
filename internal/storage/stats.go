package storage

import (
	"context"
	"os"
)

// TableCounts holds row counts per telemetry table.
type TableCounts struct {
	Resources          int64
	ResourceAttributes int64
	Traces             int64
	Spans              int64
	SpanAttributes     int64
	Metrics            int64
	MetricAttributes   int64
}

// StorageStats is a snapshot of database size, row counts and retention
// activity for the stats endpoint.
type StorageStats struct {
	DBPath      string
	DBSizeBytes int64
	Tables      TableCounts
	LastCleanup *CleanupResult
}

// Stats collects current storage statistics.
func (s *Storage) Stats(ctx context.Context) (*StorageStats, error) {
	stats := &StorageStats{DBPath: s.dbPath, LastCleanup: s.LastCleanup()}

	counts := []struct {
		table string
		dst   *int64
	}{
		{"resources", &stats.Tables.Resources},
		{"resource_attributes", &stats.Tables.ResourceAttributes},
		{"traces", &stats.Tables.Traces},
		{"spans", &stats.Tables.Spans},
		{"span_attributes", &stats.Tables.SpanAttributes},
		{"metrics", &stats.Tables.Metrics},
		{"metric_attributes", &stats.Tables.MetricAttributes},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+c.table).Scan(c.dst); err != nil {
			return nil, err
		}
	}

	if s.dbPath != ":memory:" {
		if fi, err := os.Stat(s.dbPath); err == nil {
			stats.DBSizeBytes = fi.Size()
		}
	}

	return stats, nil
}
