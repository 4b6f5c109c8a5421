package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"mirador/internal/otlp"
)

// Canonical metric types derived from the OTLP data oneof.
const (
	MetricTypeGauge     = "gauge"
	MetricTypeCounter   = "counter"
	MetricTypeHistogram = "histogram"
)

// storeMetrics walks one resourceMetrics entry's scopeMetrics and flattens
// every data point into one metric row. Metrics carrying none of the known
// data shapes write no rows; they are tallied as skipped so callers can
// surface the count without changing the silent-skip behavior.
func (s *Storage) storeMetrics(ctx context.Context, tx *sql.Tx, res *Resource, tokenID string, scopeMetrics []otlp.ScopeMetrics) (stored, skipped int, err error) {
	for _, sm := range scopeMetrics {
		var scopeName, scopeVersion string
		if sm.Scope != nil {
			scopeName = sm.Scope.Name
			scopeVersion = sm.Scope.Version
		}

		for i := range sm.Metrics {
			m := &sm.Metrics[i]
			metricType, points := classifyMetric(m)
			if metricType == "" {
				skipped++
				continue
			}

			for j := range points {
				if err := s.storeDataPoint(ctx, tx, res, tokenID, m, metricType, scopeName, scopeVersion, &points[j]); err != nil {
					return 0, 0, err
				}
				stored++
			}
		}
	}
	return stored, skipped, nil
}

// classifyMetric maps the populated data oneof to a canonical type, first
// match winning in the order gauge, sum, histogram. An empty type means the
// metric has no recognized shape.
func classifyMetric(m *otlp.Metric) (string, []otlp.DataPoint) {
	switch {
	case m.Gauge != nil:
		return MetricTypeGauge, m.Gauge.DataPoints
	case m.Sum != nil:
		return MetricTypeCounter, m.Sum.DataPoints
	case m.Histogram != nil:
		return MetricTypeHistogram, m.Histogram.DataPoints
	default:
		return "", nil
	}
}

func (s *Storage) storeDataPoint(ctx context.Context, tx *sql.Tx, res *Resource, tokenID string, m *otlp.Metric, metricType, scopeName, scopeVersion string, dp *otlp.DataPoint) error {
	ts, err := otlp.UnixNanoToTime(dp.TimeUnixNano)
	if err != nil {
		return NewInvalidDataError("metric "+m.Name+": bad timestamp", err)
	}

	now := time.Now().UTC()
	metricID := uuid.New().String()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO metrics (id, resource_id, token_id, name, description, unit,
			metric_type, timestamp, value, scope_name, scope_version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, metricID, res.ID, tokenID, m.Name, m.Description, m.Unit,
		metricType, ts, dp.Value(), scopeName, scopeVersion, now, now)
	if err != nil {
		return err
	}

	return storeAttributes(ctx, tx, metricAttrs, metricID, dp.Attributes)
}
