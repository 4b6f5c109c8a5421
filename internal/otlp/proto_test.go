package otlp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	collectormetricsv1 "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	collectortracev1 "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	commonv1 "go.opentelemetry.io/proto/otlp/common/v1"
	metricsv1 "go.opentelemetry.io/proto/otlp/metrics/v1"
	resourcev1 "go.opentelemetry.io/proto/otlp/resource/v1"
	tracev1 "go.opentelemetry.io/proto/otlp/trace/v1"
)

func TestFromTraceProto(t *testing.T) {
	req := &collectortracev1.ExportTraceServiceRequest{
		ResourceSpans: []*tracev1.ResourceSpans{{
			Resource: &resourcev1.Resource{
				Attributes: []*commonv1.KeyValue{{
					Key:   "service.name",
					Value: &commonv1.AnyValue{Value: &commonv1.AnyValue_StringValue{StringValue: "checkout"}},
				}},
			},
			ScopeSpans: []*tracev1.ScopeSpans{{
				Scope: &commonv1.InstrumentationScope{Name: "otel-sdk", Version: "1.0"},
				Spans: []*tracev1.Span{{
					TraceId:           []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10},
					SpanId:            []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08},
					Name:              "POST /pay",
					Kind:              tracev1.Span_SPAN_KIND_SERVER,
					StartTimeUnixNano: 1000000000000,
					EndTimeUnixNano:   1000050000000,
					Status:            &tracev1.Status{Code: tracev1.Status_STATUS_CODE_ERROR, Message: "boom"},
				}},
			}},
		}},
	}

	got := FromTraceProto(req)
	require.Len(t, got.ResourceSpans, 1)
	rs := got.ResourceSpans[0]
	require.NotNil(t, rs.Resource)
	require.Len(t, rs.Resource.Attributes, 1)
	assert.Equal(t, "service.name", rs.Resource.Attributes[0].Key)
	require.Len(t, rs.ScopeSpans, 1)
	assert.Equal(t, "otel-sdk", rs.ScopeSpans[0].Scope.Name)

	require.Len(t, rs.ScopeSpans[0].Spans, 1)
	span := rs.ScopeSpans[0].Spans[0]
	assert.Equal(t, "0102030405060708090a0b0c0d0e0f10", span.TraceID)
	assert.Equal(t, "0102030405060708", span.SpanID)
	assert.Empty(t, span.ParentSpanID)
	assert.Equal(t, "1000000000000", span.StartTimeUnixNano)
	assert.Equal(t, "1000050000000", span.EndTimeUnixNano)
	assert.Equal(t, int(tracev1.Span_SPAN_KIND_SERVER), span.Kind)
	require.NotNil(t, span.Status)
	assert.Equal(t, 2, span.Status.Code)
}

func TestFromMetricsProto(t *testing.T) {
	req := &collectormetricsv1.ExportMetricsServiceRequest{
		ResourceMetrics: []*metricsv1.ResourceMetrics{{
			ScopeMetrics: []*metricsv1.ScopeMetrics{{
				Metrics: []*metricsv1.Metric{
					{
						Name: "requests_total",
						Unit: "1",
						Data: &metricsv1.Metric_Sum{Sum: &metricsv1.Sum{
							IsMonotonic: true,
							DataPoints: []*metricsv1.NumberDataPoint{{
								TimeUnixNano: 2000000000,
								Value:        &metricsv1.NumberDataPoint_AsInt{AsInt: 5},
							}},
						}},
					},
					{
						Name: "latency",
						Data: &metricsv1.Metric_Histogram{Histogram: &metricsv1.Histogram{
							DataPoints: []*metricsv1.HistogramDataPoint{{
								TimeUnixNano: 3000000000,
								Count:        10,
							}},
						}},
					},
				},
			}},
		}},
	}

	got := FromMetricsProto(req)
	require.Len(t, got.ResourceMetrics, 1)
	metrics := got.ResourceMetrics[0].ScopeMetrics[0].Metrics
	require.Len(t, metrics, 2)

	require.NotNil(t, metrics[0].Sum)
	assert.True(t, metrics[0].Sum.IsMonotonic)
	require.Len(t, metrics[0].Sum.DataPoints, 1)
	assert.Equal(t, float64(5), metrics[0].Sum.DataPoints[0].Value())

	require.NotNil(t, metrics[1].Histogram)
	require.Len(t, metrics[1].Histogram.DataPoints, 1)
	assert.Equal(t, float64(10), metrics[1].Histogram.DataPoints[0].Value())
}
