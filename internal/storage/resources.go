package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"mirador/internal/otlp"
)

// Resource is one instrumented service instance owned by a principal.
type Resource struct {
	ID               string
	PrincipalID      string
	ServiceName      string
	ServiceVersion   *string
	ServiceNamespace *string
	FirstSeen        time.Time
	LastSeen         time.Time
}

// Well-known resource attribute keys carrying service identity.
const (
	attrServiceName      = "service.name"
	attrServiceVersion   = "service.version"
	attrServiceNamespace = "service.namespace"
)

const defaultServiceName = "unknown"

// resolveResource finds or creates the Resource row for the identity tuple
// carried by the attribute list, refreshes last_seen unconditionally, and
// persists every attribute (service.* keys included, redundantly with the
// identity columns).
//
// The identity tuple is guarded by a UNIQUE index; a concurrent insert of the
// same tuple surfaces as a conflict and is resolved by re-querying.
func (s *Storage) resolveResource(ctx context.Context, tx *sql.Tx, principalID string, attrs []otlp.KeyValue) (*Resource, error) {
	name, version, namespace := serviceIdentity(attrs)
	now := time.Now().UTC()

	res, err := findResource(ctx, tx, principalID, name, version, namespace)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}

	if res == nil {
		created := &Resource{
			ID:               uuid.New().String(),
			PrincipalID:      principalID,
			ServiceName:      name,
			ServiceVersion:   version,
			ServiceNamespace: namespace,
			FirstSeen:        now,
			LastSeen:         now,
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO resources (id, principal_id, service_name, service_version, service_namespace,
				first_seen, last_seen, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT DO NOTHING
		`, created.ID, principalID, name, version, namespace, now, now, now, now)
		if err != nil {
			return nil, err
		}

		// Re-query: either our row or the one a concurrent request won with.
		res, err = findResource(ctx, tx, principalID, name, version, namespace)
		if err != nil {
			return nil, fmt.Errorf("resource vanished after insert: %w", err)
		}
	}

	// Every ingestion touching a resource refreshes its liveness timestamp.
	_, err = tx.ExecContext(ctx,
		"UPDATE resources SET last_seen = ?, updated_at = ? WHERE id = ?",
		now, now, res.ID)
	if err != nil {
		return nil, err
	}
	res.LastSeen = now

	if err := storeAttributes(ctx, tx, resourceAttrs, res.ID, attrs); err != nil {
		return nil, err
	}

	return res, nil
}

func findResource(ctx context.Context, tx *sql.Tx, principalID, name string, version, namespace *string) (*Resource, error) {
	// IS NOT DISTINCT FROM so NULL version/namespace still match.
	row := tx.QueryRowContext(ctx, `
		SELECT id, principal_id, service_name, service_version, service_namespace, first_seen, last_seen
		FROM resources
		WHERE principal_id = ? AND service_name = ?
		  AND service_version IS NOT DISTINCT FROM ?
		  AND service_namespace IS NOT DISTINCT FROM ?
	`, principalID, name, version, namespace)

	var res Resource
	err := row.Scan(&res.ID, &res.PrincipalID, &res.ServiceName,
		&res.ServiceVersion, &res.ServiceNamespace, &res.FirstSeen, &res.LastSeen)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// serviceIdentity scans attributes for the service.* identity keys.
// A missing or empty service.name falls back to "unknown".
func serviceIdentity(attrs []otlp.KeyValue) (name string, version, namespace *string) {
	name = defaultServiceName
	for _, kv := range attrs {
		val := otlp.Normalize(kv.Value)
		switch kv.Key {
		case attrServiceName:
			if v := val.String(); v != "" {
				name = v
			}
		case attrServiceVersion:
			v := val.String()
			version = &v
		case attrServiceNamespace:
			v := val.String()
			namespace = &v
		}
	}
	return name, version, namespace
}
