package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

const queryRowLimit = 1000

// TimeRange bounds a query to [Start, End].
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// AttributeRecord is one attribute in a query response, its value decoded
// from whichever typed column matches value_type.
type AttributeRecord struct {
	Key   string `json:"key"`
	Type  string `json:"type"`
	Value any    `json:"value"`
}

// ResourceRecord is a resource row with its attributes nested.
type ResourceRecord struct {
	ID               string            `json:"id"`
	ServiceName      string            `json:"service_name"`
	ServiceVersion   *string           `json:"service_version,omitempty"`
	ServiceNamespace *string           `json:"service_namespace,omitempty"`
	FirstSeen        time.Time         `json:"first_seen"`
	LastSeen         time.Time         `json:"last_seen"`
	Attributes       []AttributeRecord `json:"attributes"`
}

// ListResources returns the principal's resources seen within the range.
func (s *Storage) ListResources(ctx context.Context, principalID string, tr TimeRange) ([]ResourceRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, service_name, service_version, service_namespace, first_seen, last_seen
		FROM resources
		WHERE principal_id = ? AND last_seen >= ? AND last_seen <= ?
		ORDER BY last_seen DESC LIMIT ?
	`, principalID, tr.Start, tr.End, queryRowLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ResourceRecord
	var ids []string
	for rows.Next() {
		var r ResourceRecord
		if err := rows.Scan(&r.ID, &r.ServiceName, &r.ServiceVersion, &r.ServiceNamespace, &r.FirstSeen, &r.LastSeen); err != nil {
			return nil, err
		}
		out = append(out, r)
		ids = append(ids, r.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	attrs, err := s.loadAttributes(ctx, resourceAttrs, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Attributes = attrs[out[i].ID]
	}
	return out, nil
}

// TraceRecord is a trace row in a query response.
type TraceRecord struct {
	ID            string     `json:"id"`
	TraceID       string     `json:"trace_id"`
	ResourceID    string     `json:"resource_id"`
	ServiceName   string     `json:"service_name"`
	OperationName string     `json:"operation_name"`
	Status        string     `json:"status"`
	StartTime     time.Time  `json:"start_time"`
	EndTime       *time.Time `json:"end_time,omitempty"`
	SpanCount     int        `json:"span_count"`
}

// ListTraces returns the principal's traces starting within the range.
func (s *Storage) ListTraces(ctx context.Context, principalID string, tr TimeRange) ([]TraceRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.trace_id, t.resource_id, t.service_name, t.operation_name, t.status,
			t.start_time, t.end_time, t.span_count
		FROM traces t
		JOIN resources r ON r.id = t.resource_id
		WHERE r.principal_id = ? AND t.start_time >= ? AND t.start_time <= ?
		ORDER BY t.start_time DESC LIMIT ?
	`, principalID, tr.Start, tr.End, queryRowLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TraceRecord
	for rows.Next() {
		var t TraceRecord
		if err := rows.Scan(&t.ID, &t.TraceID, &t.ResourceID, &t.ServiceName, &t.OperationName,
			&t.Status, &t.StartTime, &t.EndTime, &t.SpanCount); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// SpanRecord is a span row with its attributes nested.
type SpanRecord struct {
	ID            string            `json:"id"`
	TraceUUID     string            `json:"trace_uuid"`
	SpanID        string            `json:"span_id"`
	ParentSpanID  *string           `json:"parent_span_id,omitempty"`
	OperationName string            `json:"operation_name"`
	ServiceName   string            `json:"service_name"`
	StartTime     time.Time         `json:"start_time"`
	EndTime       *time.Time        `json:"end_time,omitempty"`
	DurationMs    *int64            `json:"duration_ms,omitempty"`
	StatusCode    int               `json:"status_code"`
	StatusMessage string            `json:"status_message,omitempty"`
	SpanKind      int               `json:"span_kind"`
	Attributes    []AttributeRecord `json:"attributes"`
}

// ListSpans returns the principal's spans starting within the range.
func (s *Storage) ListSpans(ctx context.Context, principalID string, tr TimeRange) ([]SpanRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sp.id, sp.trace_uuid, sp.span_id, sp.parent_span_id, sp.operation_name,
			sp.service_name, sp.start_time, sp.end_time, sp.duration_ms,
			sp.status_code, sp.status_message, sp.span_kind
		FROM spans sp
		JOIN traces t ON t.id = sp.trace_uuid
		JOIN resources r ON r.id = t.resource_id
		WHERE r.principal_id = ? AND sp.start_time >= ? AND sp.start_time <= ?
		ORDER BY sp.start_time DESC LIMIT ?
	`, principalID, tr.Start, tr.End, queryRowLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SpanRecord
	var ids []string
	for rows.Next() {
		var sp SpanRecord
		var statusMessage sql.NullString
		if err := rows.Scan(&sp.ID, &sp.TraceUUID, &sp.SpanID, &sp.ParentSpanID, &sp.OperationName,
			&sp.ServiceName, &sp.StartTime, &sp.EndTime, &sp.DurationMs,
			&sp.StatusCode, &statusMessage, &sp.SpanKind); err != nil {
			return nil, err
		}
		sp.StatusMessage = statusMessage.String
		out = append(out, sp)
		ids = append(ids, sp.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	attrs, err := s.loadAttributes(ctx, spanAttrs, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Attributes = attrs[out[i].ID]
	}
	return out, nil
}

// MetricRecord is a metric data point row with its attributes nested.
type MetricRecord struct {
	ID           string            `json:"id"`
	ResourceID   string            `json:"resource_id"`
	Name         string            `json:"name"`
	Description  string            `json:"description,omitempty"`
	Unit         string            `json:"unit,omitempty"`
	MetricType   string            `json:"metric_type"`
	Timestamp    time.Time         `json:"timestamp"`
	Value        float64           `json:"value"`
	ScopeName    string            `json:"scope_name,omitempty"`
	ScopeVersion string            `json:"scope_version,omitempty"`
	Attributes   []AttributeRecord `json:"attributes"`
}

// ListMetrics returns the principal's metric data points within the range.
func (s *Storage) ListMetrics(ctx context.Context, principalID string, tr TimeRange) ([]MetricRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.resource_id, m.name, m.description, m.unit, m.metric_type,
			m.timestamp, m.value, m.scope_name, m.scope_version
		FROM metrics m
		JOIN resources r ON r.id = m.resource_id
		WHERE r.principal_id = ? AND m.timestamp >= ? AND m.timestamp <= ?
		ORDER BY m.timestamp DESC LIMIT ?
	`, principalID, tr.Start, tr.End, queryRowLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MetricRecord
	var ids []string
	for rows.Next() {
		var m MetricRecord
		var description, unit, scopeName, scopeVersion sql.NullString
		if err := rows.Scan(&m.ID, &m.ResourceID, &m.Name, &description, &unit, &m.MetricType,
			&m.Timestamp, &m.Value, &scopeName, &scopeVersion); err != nil {
			return nil, err
		}
		m.Description = description.String
		m.Unit = unit.String
		m.ScopeName = scopeName.String
		m.ScopeVersion = scopeVersion.String
		out = append(out, m)
		ids = append(ids, m.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	attrs, err := s.loadAttributes(ctx, metricAttrs, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Attributes = attrs[out[i].ID]
	}
	return out, nil
}

// loadAttributes fetches the attributes of many owner rows in one query and
// groups them by owner ID.
func (s *Storage) loadAttributes(ctx context.Context, t attributeTable, ownerIDs []string) (map[string][]AttributeRecord, error) {
	result := make(map[string][]AttributeRecord, len(ownerIDs))
	if len(ownerIDs) == 0 {
		return result, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ownerIDs)), ",")
	args := make([]any, len(ownerIDs))
	for i, id := range ownerIDs {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+t.ownerCol+", key, value_type, value_string, value_int, value_double, value_bool FROM "+
			t.table+" WHERE "+t.ownerCol+" IN ("+placeholders+") ORDER BY key",
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var ownerID, key, valueType string
		var valueString sql.NullString
		var valueInt sql.NullInt64
		var valueDouble sql.NullFloat64
		var valueBool sql.NullBool

		if err := rows.Scan(&ownerID, &key, &valueType, &valueString, &valueInt, &valueDouble, &valueBool); err != nil {
			return nil, err
		}

		rec := AttributeRecord{Key: key, Type: valueType}
		switch valueType {
		case "int":
			rec.Value = valueInt.Int64
		case "double":
			rec.Value = valueDouble.Float64
		case "bool":
			rec.Value = valueBool.Bool
		default:
			rec.Value = valueString.String
		}
		result[ownerID] = append(result[ownerID], rec)
	}
	return result, rows.Err()
}
