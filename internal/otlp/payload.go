package otlp

import (
	"bytes"
	"strconv"
)

// Payload types for OTLP/JSON export requests.
// Field names follow the OTLP JSON encoding (camelCase, oneof members as
// optional sibling fields). A single ExportRequest may carry traces, metrics,
// both, or neither.

// ExportRequest is the union body accepted by the ingest endpoint.
type ExportRequest struct {
	ResourceSpans   []ResourceSpans   `json:"resourceSpans,omitempty"`
	ResourceMetrics []ResourceMetrics `json:"resourceMetrics,omitempty"`
}

// ResourceSpans groups spans produced by one resource.
type ResourceSpans struct {
	Resource   *Resource    `json:"resource,omitempty"`
	ScopeSpans []ScopeSpans `json:"scopeSpans,omitempty"`
}

// ResourceMetrics groups metrics produced by one resource.
type ResourceMetrics struct {
	Resource     *Resource      `json:"resource,omitempty"`
	ScopeMetrics []ScopeMetrics `json:"scopeMetrics,omitempty"`
}

// Resource identifies the entity producing telemetry via its attributes.
type Resource struct {
	Attributes []KeyValue `json:"attributes,omitempty"`
}

// Scope is the instrumentation scope that produced a batch of telemetry.
type Scope struct {
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
}

// ScopeSpans holds the spans of one instrumentation scope.
type ScopeSpans struct {
	Scope *Scope `json:"scope,omitempty"`
	Spans []Span `json:"spans,omitempty"`
}

// Span is one OTLP span. Timestamps are decimal-string nanoseconds.
type Span struct {
	TraceID           string     `json:"traceId,omitempty"`
	SpanID            string     `json:"spanId,omitempty"`
	ParentSpanID      string     `json:"parentSpanId,omitempty"`
	Name              string     `json:"name,omitempty"`
	Kind              int        `json:"kind,omitempty"`
	StartTimeUnixNano string     `json:"startTimeUnixNano,omitempty"`
	EndTimeUnixNano   string     `json:"endTimeUnixNano,omitempty"`
	Status            *Status    `json:"status,omitempty"`
	Attributes        []KeyValue `json:"attributes,omitempty"`
}

// Status carries the OTLP span status. Code 2 means error.
type Status struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// ScopeMetrics holds the metrics of one instrumentation scope.
type ScopeMetrics struct {
	Scope   *Scope   `json:"scope,omitempty"`
	Metrics []Metric `json:"metrics,omitempty"`
}

// Metric is one OTLP metric definition. Exactly one of Gauge, Sum or
// Histogram is expected; a metric with none of them carries no data points.
type Metric struct {
	Name        string     `json:"name,omitempty"`
	Description string     `json:"description,omitempty"`
	Unit        string     `json:"unit,omitempty"`
	Gauge       *Gauge     `json:"gauge,omitempty"`
	Sum         *Sum       `json:"sum,omitempty"`
	Histogram   *Histogram `json:"histogram,omitempty"`
}

// Gauge holds gauge data points.
type Gauge struct {
	DataPoints []DataPoint `json:"dataPoints,omitempty"`
}

// Sum holds monotonic or non-monotonic sum data points.
type Sum struct {
	DataPoints             []DataPoint `json:"dataPoints,omitempty"`
	IsMonotonic            bool        `json:"isMonotonic,omitempty"`
	AggregationTemporality int         `json:"aggregationTemporality,omitempty"`
}

// Histogram holds histogram data points.
type Histogram struct {
	DataPoints             []DataPoint `json:"dataPoints,omitempty"`
	AggregationTemporality int         `json:"aggregationTemporality,omitempty"`
}

// DataPoint is one sample of a gauge, sum or histogram metric. Number and
// histogram fields share one struct since rows are flattened to a single
// value either way.
type DataPoint struct {
	TimeUnixNano      string     `json:"timeUnixNano,omitempty"`
	StartTimeUnixNano string     `json:"startTimeUnixNano,omitempty"`
	AsDouble          *float64   `json:"asDouble,omitempty"`
	AsInt             *Int64     `json:"asInt,omitempty"`
	Sum               *float64   `json:"sum,omitempty"`
	Count             *Int64     `json:"count,omitempty"`
	Attributes        []KeyValue `json:"attributes,omitempty"`
}

// Value extracts the data point's single stored value using the fallback
// chain asDouble, asInt, sum, count, then zero.
func (dp *DataPoint) Value() float64 {
	switch {
	case dp.AsDouble != nil:
		return *dp.AsDouble
	case dp.AsInt != nil:
		return float64(*dp.AsInt)
	case dp.Sum != nil:
		return *dp.Sum
	case dp.Count != nil:
		return float64(*dp.Count)
	default:
		return 0
	}
}

// KeyValue is one OTLP attribute.
type KeyValue struct {
	Key   string   `json:"key"`
	Value AnyValue `json:"value"`
}

// AnyValue is OTLP's tagged-union attribute value. At most one field is
// expected to be set; payloads violating that are not rejected.
type AnyValue struct {
	StringValue *string     `json:"stringValue,omitempty"`
	IntValue    *Int64      `json:"intValue,omitempty"`
	DoubleValue *float64    `json:"doubleValue,omitempty"`
	BoolValue   *bool       `json:"boolValue,omitempty"`
	ArrayValue  *ArrayValue `json:"arrayValue,omitempty"`
}

// ArrayValue is a list of AnyValues.
type ArrayValue struct {
	Values []AnyValue `json:"values,omitempty"`
}

// Int64 decodes an OTLP/JSON 64-bit integer, which the canonical encoding
// emits as a decimal string but many clients emit as a bare number.
type Int64 int64

func (i *Int64) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*i = 0
		return nil
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return err
	}
	*i = Int64(n)
	return nil
}

func (i Int64) MarshalJSON() ([]byte, error) {
	return []byte(`"` + strconv.FormatInt(int64(i), 10) + `"`), nil
}
