package storage

import (
	"context"
	"time"

	"go.uber.org/zap"

	"mirador/internal/otlp"
)

// ingestTimeout bounds one ingestion transaction. OTLP payloads can carry
// thousands of spans and a slow transaction holds a pooled connection for
// its entire duration.
const ingestTimeout = 15 * time.Second

// IngestResult reports what one ingestion call wrote.
type IngestResult struct {
	SpansProcessed   int `json:"spansProcessed"`
	MetricsProcessed int `json:"metricsProcessed"`
	MetricsSkipped   int `json:"-"`
}

// Ingest processes one OTLP export request in a single transaction: for each
// resourceSpans/resourceMetrics entry the resource is resolved once, then its
// nested spans or metrics are flattened into rows. All rows written by one
// call share the same ingest token and owning principal. Any failure rolls
// the whole request back; there is no partial commit.
func (s *Storage) Ingest(ctx context.Context, principalID, tokenID string, req *otlp.ExportRequest) (*IngestResult, error) {
	ctx, cancel := context.WithTimeout(ctx, ingestTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, NewInfrastructureError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	result := &IngestResult{}

	for _, rs := range req.ResourceSpans {
		var attrs []otlp.KeyValue
		if rs.Resource != nil {
			attrs = rs.Resource.Attributes
		}
		res, err := s.resolveResource(ctx, tx, principalID, attrs)
		if err != nil {
			return nil, err
		}

		n, err := s.storeSpans(ctx, tx, res, tokenID, rs.ScopeSpans)
		if err != nil {
			return nil, err
		}
		result.SpansProcessed += n
	}

	for _, rm := range req.ResourceMetrics {
		var attrs []otlp.KeyValue
		if rm.Resource != nil {
			attrs = rm.Resource.Attributes
		}
		res, err := s.resolveResource(ctx, tx, principalID, attrs)
		if err != nil {
			return nil, err
		}

		stored, skipped, err := s.storeMetrics(ctx, tx, res, tokenID, rm.ScopeMetrics)
		if err != nil {
			return nil, err
		}
		result.MetricsProcessed += stored
		result.MetricsSkipped += skipped
	}

	if err := tx.Commit(); err != nil {
		return nil, NewInfrastructureError("failed to commit ingestion", err)
	}

	if result.MetricsSkipped > 0 {
		s.logger.Debug("skipped metrics without a recognized data shape",
			zap.Int("count", result.MetricsSkipped),
			zap.String("token_id", tokenID))
	}

	return result, nil
}
