package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"mirador/internal/otlp"
)

// attributeTable names one of the three attribute side-tables and its
// owner-reference column.
type attributeTable struct {
	table    string
	ownerCol string
}

var (
	resourceAttrs = attributeTable{"resource_attributes", "resource_id"}
	spanAttrs     = attributeTable{"span_attributes", "span_uuid"}
	metricAttrs   = attributeTable{"metric_attributes", "metric_id"}
)

// findOrCreateAttribute persists one attribute keyed on (owner, key).
// First write wins: an existing row with the same key is left unchanged,
// so re-ingested attribute values are not reflected.
func findOrCreateAttribute(ctx context.Context, tx *sql.Tx, t attributeTable, ownerID, key string, val otlp.Value) error {
	var existing string
	err := tx.QueryRowContext(ctx,
		"SELECT id FROM "+t.table+" WHERE "+t.ownerCol+" = ? AND key = ?",
		ownerID, key,
	).Scan(&existing)
	if err == nil {
		return nil
	}
	if err != sql.ErrNoRows {
		return err
	}

	var (
		valueString *string
		valueInt    *int64
		valueDouble *float64
		valueBool   *bool
	)
	switch val.Type {
	case otlp.TypeInt:
		valueInt = &val.Int
	case otlp.TypeDouble:
		valueDouble = &val.Double
	case otlp.TypeBool:
		valueBool = &val.Bool
	default:
		// string and array both land in the string column
		valueString = &val.Str
	}

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		"INSERT INTO "+t.table+" (id, "+t.ownerCol+", key, value_type, value_string, value_int, value_double, value_bool, created_at, updated_at)"+
			" VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT DO NOTHING",
		uuid.New().String(), ownerID, key, string(val.Type),
		valueString, valueInt, valueDouble, valueBool, now, now)
	return err
}

// storeAttributes runs findOrCreateAttribute for every key/value in the list.
func storeAttributes(ctx context.Context, tx *sql.Tx, t attributeTable, ownerID string, kvs []otlp.KeyValue) error {
	for _, kv := range kvs {
		if err := findOrCreateAttribute(ctx, tx, t, ownerID, kv.Key, otlp.Normalize(kv.Value)); err != nil {
			return err
		}
	}
	return nil
}
