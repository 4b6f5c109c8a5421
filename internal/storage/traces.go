package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"mirador/internal/otlp"
)

// Trace status values derived from OTLP span status codes.
const (
	TraceStatusOK    = "ok"
	TraceStatusError = "error"
)

const otlpStatusCodeError = 2

// storeSpans walks one resourceSpans entry's scopeSpans and persists every
// span, grouping them into Trace rows keyed by the span's OTLP trace ID
// scoped to (resource, token). Returns the number of spans stored.
//
// Any malformed span (missing or unparsable start timestamp) fails the whole
// batch; the caller rolls back the enclosing transaction.
func (s *Storage) storeSpans(ctx context.Context, tx *sql.Tx, res *Resource, tokenID string, scopeSpans []otlp.ScopeSpans) (int, error) {
	stored := 0
	for _, ss := range scopeSpans {
		for i := range ss.Spans {
			if err := s.storeSpan(ctx, tx, res, tokenID, &ss.Spans[i]); err != nil {
				return 0, err
			}
			stored++
		}
	}
	return stored, nil
}

func (s *Storage) storeSpan(ctx context.Context, tx *sql.Tx, res *Resource, tokenID string, span *otlp.Span) error {
	start, err := otlp.UnixNanoToTime(span.StartTimeUnixNano)
	if err != nil {
		return NewInvalidDataError("span "+span.SpanID+": bad start time", err)
	}
	end, err := otlp.OptionalUnixNano(span.EndTimeUnixNano)
	if err != nil {
		return NewInvalidDataError("span "+span.SpanID+": bad end time", err)
	}

	var durationMs *int64
	if end != nil {
		d := end.UnixMilli() - start.UnixMilli()
		durationMs = &d
	}

	status := TraceStatusOK
	var statusCode int
	var statusMessage string
	if span.Status != nil {
		statusCode = span.Status.Code
		statusMessage = span.Status.Message
		if span.Status.Code == otlpStatusCodeError {
			status = TraceStatusError
		}
	}

	traceUUID, err := s.findOrCreateTrace(ctx, tx, res, tokenID, span, start, status)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	spanUUID := uuid.New().String()

	var parentSpanID *string
	if span.ParentSpanID != "" {
		// Stored verbatim; a dangling parent reference is accepted.
		parentSpanID = &span.ParentSpanID
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO spans (id, trace_uuid, span_id, parent_span_id, operation_name,
			start_time, end_time, duration_ms, status_code, status_message,
			span_kind, service_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, spanUUID, traceUUID, span.SpanID, parentSpanID, span.Name,
		start, end, durationMs, statusCode, statusMessage,
		span.Kind, res.ServiceName, now, now)
	if err != nil {
		return err
	}

	if err := storeAttributes(ctx, tx, spanAttrs, spanUUID, span.Attributes); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE traces SET span_count = span_count + 1, updated_at = ? WHERE id = ?",
		now, traceUUID)
	return err
}

// findOrCreateTrace resolves the Trace row for (resource, token, trace ID),
// creating it from the first span seen when absent. The end_time and status
// of later spans do not rewrite the trace; span_count is bumped separately
// per span.
func (s *Storage) findOrCreateTrace(ctx context.Context, tx *sql.Tx, res *Resource, tokenID string, span *otlp.Span, start time.Time, status string) (string, error) {
	var id string
	err := tx.QueryRowContext(ctx,
		"SELECT id FROM traces WHERE resource_id = ? AND token_id = ? AND trace_id = ?",
		res.ID, tokenID, span.TraceID,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return "", err
	}

	end, err := otlp.OptionalUnixNano(span.EndTimeUnixNano)
	if err != nil {
		return "", NewInvalidDataError("span "+span.SpanID+": bad end time", err)
	}

	now := time.Now().UTC()
	id = uuid.New().String()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO traces (id, resource_id, token_id, trace_id, start_time, end_time,
			service_name, operation_name, status, span_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?) ON CONFLICT DO NOTHING
	`, id, res.ID, tokenID, span.TraceID, start, end,
		res.ServiceName, span.Name, status, now, now)
	if err != nil {
		return "", err
	}

	// Re-query to cover the conflict path.
	err = tx.QueryRowContext(ctx,
		"SELECT id FROM traces WHERE resource_id = ? AND token_id = ? AND trace_id = ?",
		res.ID, tokenID, span.TraceID,
	).Scan(&id)
	return id, err
}
