package storage

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// CleanupConfig holds retention configuration.
type CleanupConfig struct {
	RetentionHours      int
	CleanupIntervalMins int
}

// CleanupResult contains the outcome of a cleanup run.
type CleanupResult struct {
	Timestamp               time.Time
	Duration                time.Duration
	SpanAttributesDeleted   int64
	SpansDeleted            int64
	TracesDeleted           int64
	MetricAttributesDeleted int64
	MetricsDeleted          int64
}

// StartCleanupWorker starts the periodic cleanup goroutine.
// Returns immediately if retention is disabled (hours=0).
// Stops when ctx is cancelled.
func (s *Storage) StartCleanupWorker(ctx context.Context, cfg CleanupConfig) {
	if cfg.RetentionHours == 0 {
		s.logger.Info("retention disabled, cleanup worker not started")
		return
	}

	if cfg.CleanupIntervalMins < 1 {
		cfg.CleanupIntervalMins = 1
	}

	s.logger.Info("cleanup worker started",
		zap.Int("retention_hours", cfg.RetentionHours),
		zap.Int("interval_mins", cfg.CleanupIntervalMins))

	// Run once at startup
	s.runCleanup(ctx, cfg.RetentionHours)

	ticker := time.NewTicker(time.Duration(cfg.CleanupIntervalMins) * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("cleanup worker stopped")
			return
		case <-ticker.C:
			s.runCleanup(ctx, cfg.RetentionHours)
		}
	}
}

// runCleanup executes a single cleanup cycle. Deletes walk the foreign-key
// order: attribute tables before their owners, spans before traces. Traces
// are only removed once none of their spans remain, and resources are never
// deleted here.
func (s *Storage) runCleanup(ctx context.Context, retentionHours int) {
	// Try to acquire semaphore (non-blocking)
	select {
	case s.cleanupRunning <- struct{}{}:
		defer func() { <-s.cleanupRunning }()
	default:
		s.logger.Warn("cleanup already in progress, skipping")
		return
	}

	start := time.Now()
	cutoff := start.Add(-time.Duration(retentionHours) * time.Hour)

	result := &CleanupResult{Timestamp: start}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("cleanup failed to start transaction", zap.Error(err))
		return
	}

	steps := []struct {
		stmt    string
		deleted *int64
	}{
		{
			"DELETE FROM span_attributes WHERE span_uuid IN (SELECT id FROM spans WHERE start_time < ?)",
			&result.SpanAttributesDeleted,
		},
		{
			"DELETE FROM spans WHERE start_time < ?",
			&result.SpansDeleted,
		},
		{
			"DELETE FROM traces WHERE start_time < ? AND id NOT IN (SELECT DISTINCT trace_uuid FROM spans)",
			&result.TracesDeleted,
		},
		{
			"DELETE FROM metric_attributes WHERE metric_id IN (SELECT id FROM metrics WHERE timestamp < ?)",
			&result.MetricAttributesDeleted,
		},
		{
			"DELETE FROM metrics WHERE timestamp < ?",
			&result.MetricsDeleted,
		},
	}

	for _, step := range steps {
		res, err := tx.ExecContext(ctx, step.stmt, cutoff)
		if err != nil {
			s.logger.Error("cleanup delete failed", zap.Error(err))
			tx.Rollback()
			return
		}
		*step.deleted, _ = res.RowsAffected()
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("cleanup failed to commit", zap.Error(err))
		return
	}

	// Checkpoint to flush WAL
	if _, err := s.db.ExecContext(ctx, "CHECKPOINT"); err != nil {
		s.logger.Warn("cleanup checkpoint failed", zap.Error(err))
	}

	result.Duration = time.Since(start)

	s.mu.Lock()
	s.lastCleanup = result
	s.mu.Unlock()

	total := result.SpansDeleted + result.SpanAttributesDeleted + result.TracesDeleted +
		result.MetricsDeleted + result.MetricAttributesDeleted

	if total > 0 {
		s.logger.Info("cleanup completed",
			zap.Duration("duration", result.Duration),
			zap.Int64("spans", result.SpansDeleted),
			zap.Int64("span_attributes", result.SpanAttributesDeleted),
			zap.Int64("traces", result.TracesDeleted),
			zap.Int64("metrics", result.MetricsDeleted),
			zap.Int64("metric_attributes", result.MetricAttributesDeleted))
	} else {
		s.logger.Info("cleanup completed, no old data to delete",
			zap.Duration("duration", result.Duration))
	}
}

// LastCleanup returns the most recent cleanup result, or nil if none has run.
func (s *Storage) LastCleanup() *CleanupResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCleanup
}
