package otlp

import (
	"encoding/hex"
	"strconv"

	collectormetricsv1 "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	collectortracev1 "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	commonv1 "go.opentelemetry.io/proto/otlp/common/v1"
	metricsv1 "go.opentelemetry.io/proto/otlp/metrics/v1"
	resourcev1 "go.opentelemetry.io/proto/otlp/resource/v1"
	tracev1 "go.opentelemetry.io/proto/otlp/trace/v1"
)

// Conversion from OTLP protobuf export requests into the JSON payload types.
// SDK exporters default to protobuf on /v1/traces and /v1/metrics; the ingest
// pipeline only speaks ExportRequest, so protobuf bodies are converted here.

// FromTraceProto converts a protobuf trace export request.
func FromTraceProto(req *collectortracev1.ExportTraceServiceRequest) *ExportRequest {
	out := &ExportRequest{}
	for _, rs := range req.GetResourceSpans() {
		entry := ResourceSpans{Resource: resourceFromProto(rs.GetResource())}
		for _, ss := range rs.GetScopeSpans() {
			scope := ScopeSpans{Scope: scopeFromProto(ss.GetScope())}
			for _, span := range ss.GetSpans() {
				scope.Spans = append(scope.Spans, spanFromProto(span))
			}
			entry.ScopeSpans = append(entry.ScopeSpans, scope)
		}
		out.ResourceSpans = append(out.ResourceSpans, entry)
	}
	return out
}

// FromMetricsProto converts a protobuf metrics export request.
func FromMetricsProto(req *collectormetricsv1.ExportMetricsServiceRequest) *ExportRequest {
	out := &ExportRequest{}
	for _, rm := range req.GetResourceMetrics() {
		entry := ResourceMetrics{Resource: resourceFromProto(rm.GetResource())}
		for _, sm := range rm.GetScopeMetrics() {
			scope := ScopeMetrics{Scope: scopeFromProto(sm.GetScope())}
			for _, m := range sm.GetMetrics() {
				scope.Metrics = append(scope.Metrics, metricFromProto(m))
			}
			entry.ScopeMetrics = append(entry.ScopeMetrics, scope)
		}
		out.ResourceMetrics = append(out.ResourceMetrics, entry)
	}
	return out
}

func resourceFromProto(r *resourcev1.Resource) *Resource {
	if r == nil {
		return nil
	}
	return &Resource{Attributes: attributesFromProto(r.Attributes)}
}

func scopeFromProto(s *commonv1.InstrumentationScope) *Scope {
	if s == nil {
		return nil
	}
	return &Scope{Name: s.Name, Version: s.Version}
}

func spanFromProto(s *tracev1.Span) Span {
	span := Span{
		TraceID:           hexEncode(s.TraceId),
		SpanID:            hexEncode(s.SpanId),
		ParentSpanID:      hexEncode(s.ParentSpanId),
		Name:              s.Name,
		Kind:              int(s.Kind),
		StartTimeUnixNano: formatUnixNano(s.StartTimeUnixNano),
		EndTimeUnixNano:   formatUnixNano(s.EndTimeUnixNano),
		Attributes:        attributesFromProto(s.Attributes),
	}
	if s.Status != nil {
		span.Status = &Status{Code: int(s.Status.Code), Message: s.Status.Message}
	}
	return span
}

func metricFromProto(m *metricsv1.Metric) Metric {
	metric := Metric{Name: m.Name, Description: m.Description, Unit: m.Unit}
	switch data := m.Data.(type) {
	case *metricsv1.Metric_Gauge:
		metric.Gauge = &Gauge{DataPoints: numberPointsFromProto(data.Gauge.GetDataPoints())}
	case *metricsv1.Metric_Sum:
		metric.Sum = &Sum{
			DataPoints:  numberPointsFromProto(data.Sum.GetDataPoints()),
			IsMonotonic: data.Sum.GetIsMonotonic(),
		}
	case *metricsv1.Metric_Histogram:
		metric.Histogram = &Histogram{DataPoints: histogramPointsFromProto(data.Histogram.GetDataPoints())}
	}
	return metric
}

func numberPointsFromProto(points []*metricsv1.NumberDataPoint) []DataPoint {
	out := make([]DataPoint, 0, len(points))
	for _, dp := range points {
		point := DataPoint{
			TimeUnixNano:      formatUnixNano(dp.TimeUnixNano),
			StartTimeUnixNano: formatUnixNano(dp.StartTimeUnixNano),
			Attributes:        attributesFromProto(dp.Attributes),
		}
		switch v := dp.Value.(type) {
		case *metricsv1.NumberDataPoint_AsDouble:
			d := v.AsDouble
			point.AsDouble = &d
		case *metricsv1.NumberDataPoint_AsInt:
			i := Int64(v.AsInt)
			point.AsInt = &i
		}
		out = append(out, point)
	}
	return out
}

func histogramPointsFromProto(points []*metricsv1.HistogramDataPoint) []DataPoint {
	out := make([]DataPoint, 0, len(points))
	for _, dp := range points {
		point := DataPoint{
			TimeUnixNano:      formatUnixNano(dp.TimeUnixNano),
			StartTimeUnixNano: formatUnixNano(dp.StartTimeUnixNano),
			Attributes:        attributesFromProto(dp.Attributes),
		}
		if dp.Sum != nil {
			s := dp.GetSum()
			point.Sum = &s
		}
		count := Int64(dp.Count)
		point.Count = &count
		out = append(out, point)
	}
	return out
}

func attributesFromProto(kvs []*commonv1.KeyValue) []KeyValue {
	if len(kvs) == 0 {
		return nil
	}
	out := make([]KeyValue, 0, len(kvs))
	for _, kv := range kvs {
		if kv == nil || kv.Key == "" {
			continue
		}
		out = append(out, KeyValue{Key: kv.Key, Value: anyValueFromProto(kv.Value)})
	}
	return out
}

func anyValueFromProto(v *commonv1.AnyValue) AnyValue {
	if v == nil {
		return AnyValue{}
	}
	switch val := v.Value.(type) {
	case *commonv1.AnyValue_StringValue:
		s := val.StringValue
		return AnyValue{StringValue: &s}
	case *commonv1.AnyValue_IntValue:
		i := Int64(val.IntValue)
		return AnyValue{IntValue: &i}
	case *commonv1.AnyValue_DoubleValue:
		d := val.DoubleValue
		return AnyValue{DoubleValue: &d}
	case *commonv1.AnyValue_BoolValue:
		b := val.BoolValue
		return AnyValue{BoolValue: &b}
	case *commonv1.AnyValue_ArrayValue:
		arr := &ArrayValue{}
		if val.ArrayValue != nil {
			for _, elem := range val.ArrayValue.Values {
				arr.Values = append(arr.Values, anyValueFromProto(elem))
			}
		}
		return AnyValue{ArrayValue: arr}
	case *commonv1.AnyValue_BytesValue:
		s := hex.EncodeToString(val.BytesValue)
		return AnyValue{StringValue: &s}
	default:
		return AnyValue{}
	}
}

// hexEncode converts a byte slice to hex string. Used for trace_id (16 bytes
// to 32 chars) and span_id (8 bytes to 16 chars).
func hexEncode(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return hex.EncodeToString(b)
}

func formatUnixNano(n uint64) string {
	if n == 0 {
		return ""
	}
	return strconv.FormatUint(n, 10)
}
