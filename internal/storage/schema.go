package storage

// SQL schema for normalized OTLP storage.
// 7 tables: resources, resource_attributes, traces, spans, span_attributes,
// metrics, metric_attributes. Attribute tables carry a value_type tag plus
// four parallel nullable typed columns; only the column matching the tag is
// populated.

const resourcesSchema = `
CREATE TABLE IF NOT EXISTS resources (
    id VARCHAR PRIMARY KEY,
    principal_id VARCHAR NOT NULL,

    -- Identity tuple (unique per principal)
    service_name VARCHAR NOT NULL,
    service_version VARCHAR,
    service_namespace VARCHAR,

    -- Liveness
    first_seen TIMESTAMP NOT NULL,
    last_seen TIMESTAMP NOT NULL,

    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    UNIQUE (principal_id, service_name, service_version, service_namespace)
);
`

const resourcesIndexes = `
CREATE INDEX IF NOT EXISTS idx_resources_principal ON resources(principal_id);
CREATE INDEX IF NOT EXISTS idx_resources_last_seen ON resources(last_seen);
`

const resourceAttributesSchema = `
CREATE TABLE IF NOT EXISTS resource_attributes (
    id VARCHAR PRIMARY KEY,
    resource_id VARCHAR NOT NULL,
    key VARCHAR NOT NULL,

    value_type VARCHAR NOT NULL,
    value_string VARCHAR,
    value_int BIGINT,
    value_double DOUBLE,
    value_bool BOOLEAN,

    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    UNIQUE (resource_id, key)
);
`

const resourceAttributesIndexes = `
CREATE INDEX IF NOT EXISTS idx_resource_attributes_resource ON resource_attributes(resource_id);
`

const tracesSchema = `
CREATE TABLE IF NOT EXISTS traces (
    id VARCHAR PRIMARY KEY,
    resource_id VARCHAR NOT NULL,
    token_id VARCHAR NOT NULL,

    -- OTLP trace identity (hex-encoded 16 bytes)
    trace_id VARCHAR NOT NULL,

    start_time TIMESTAMP NOT NULL,
    end_time TIMESTAMP,
    service_name VARCHAR NOT NULL,
    operation_name VARCHAR NOT NULL,
    status VARCHAR NOT NULL,
    span_count INTEGER NOT NULL,

    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    UNIQUE (resource_id, token_id, trace_id)
);
`

const tracesIndexes = `
CREATE INDEX IF NOT EXISTS idx_traces_start_time ON traces(start_time);
CREATE INDEX IF NOT EXISTS idx_traces_resource ON traces(resource_id);
`

const spansSchema = `
CREATE TABLE IF NOT EXISTS spans (
    id VARCHAR PRIMARY KEY,
    trace_uuid VARCHAR NOT NULL,

    -- OTLP identities (hex); parent_span_id is stored verbatim and is not
    -- validated to reference an ingested span
    span_id VARCHAR,
    parent_span_id VARCHAR,

    operation_name VARCHAR NOT NULL,
    start_time TIMESTAMP NOT NULL,
    end_time TIMESTAMP,
    duration_ms BIGINT,
    status_code INTEGER,
    status_message VARCHAR,
    span_kind INTEGER,
    service_name VARCHAR NOT NULL,

    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

const spansIndexes = `
CREATE INDEX IF NOT EXISTS idx_spans_trace ON spans(trace_uuid);
CREATE INDEX IF NOT EXISTS idx_spans_start_time ON spans(start_time);
`

const spanAttributesSchema = `
CREATE TABLE IF NOT EXISTS span_attributes (
    id VARCHAR PRIMARY KEY,
    span_uuid VARCHAR NOT NULL,
    key VARCHAR NOT NULL,

    value_type VARCHAR NOT NULL,
    value_string VARCHAR,
    value_int BIGINT,
    value_double DOUBLE,
    value_bool BOOLEAN,

    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    UNIQUE (span_uuid, key)
);
`

const spanAttributesIndexes = `
CREATE INDEX IF NOT EXISTS idx_span_attributes_span ON span_attributes(span_uuid);
`

const metricsSchema = `
CREATE TABLE IF NOT EXISTS metrics (
    id VARCHAR PRIMARY KEY,
    resource_id VARCHAR NOT NULL,
    token_id VARCHAR NOT NULL,

    name VARCHAR NOT NULL,
    description VARCHAR,
    unit VARCHAR,
    metric_type VARCHAR NOT NULL,
    timestamp TIMESTAMP NOT NULL,
    value DOUBLE NOT NULL,
    scope_name VARCHAR,
    scope_version VARCHAR,

    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

const metricsIndexes = `
CREATE INDEX IF NOT EXISTS idx_metrics_timestamp ON metrics(timestamp);
CREATE INDEX IF NOT EXISTS idx_metrics_name ON metrics(name);
CREATE INDEX IF NOT EXISTS idx_metrics_resource ON metrics(resource_id);
`

const metricAttributesSchema = `
CREATE TABLE IF NOT EXISTS metric_attributes (
    id VARCHAR PRIMARY KEY,
    metric_id VARCHAR NOT NULL,
    key VARCHAR NOT NULL,

    value_type VARCHAR NOT NULL,
    value_string VARCHAR,
    value_int BIGINT,
    value_double DOUBLE,
    value_bool BOOLEAN,

    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    UNIQUE (metric_id, key)
);
`

const metricAttributesIndexes = `
CREATE INDEX IF NOT EXISTS idx_metric_attributes_metric ON metric_attributes(metric_id);
`
