package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
	collectormetricsv1 "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	collectortracev1 "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	"google.golang.org/protobuf/proto"

	"mirador/internal/auth"
	"mirador/internal/otlp"
	"mirador/internal/storage"
)

const (
	contentTypeJSON     = "application/json"
	contentTypeProtobuf = "application/x-protobuf"
)

// identity resolves the ingest token from context. When auth is disabled the
// anonymous placeholders keep ingestion usable for local development.
func identity(r *http.Request) (principalID, tokenID string) {
	if info := auth.TokenFromContext(r.Context()); info != nil {
		return info.PrincipalID, info.ID
	}
	return "anonymous", "anonymous"
}

// handleTelemetry handles POST /v1/telemetry: the union JSON endpoint whose
// body may carry resourceSpans, resourceMetrics, both, or neither.
func handleTelemetry(store *storage.Storage, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqID := RequestID(r.Context())

		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		if !strings.HasPrefix(r.Header.Get("Content-Type"), contentTypeJSON) {
			logger.Warn("telemetry: unsupported content type",
				zap.String("request_id", reqID),
				zap.String("content_type", r.Header.Get("Content-Type")))
			w.WriteHeader(http.StatusUnsupportedMediaType)
			return
		}

		var req otlp.ExportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Warn("telemetry: failed to decode body",
				zap.String("request_id", reqID), zap.Error(err))
			writeJSONError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		principalID, tokenID := identity(r)
		result, err := store.Ingest(r.Context(), principalID, tokenID, &req)
		if err != nil {
			writeIngestError(w, logger, reqID, err)
			return
		}

		logger.Info("telemetry ingested",
			zap.String("request_id", reqID),
			zap.Int("spans", result.SpansProcessed),
			zap.Int("metrics", result.MetricsProcessed),
			zap.Int("metrics_skipped", result.MetricsSkipped))

		w.Header().Set("Content-Type", contentTypeJSON)
		json.NewEncoder(w).Encode(result)
	}
}

// handleTraces handles POST /v1/traces, the standard OTLP/HTTP endpoint.
// SDK exporters send protobuf by default; JSON is accepted as well.
func handleTraces(store *storage.Storage, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqID := RequestID(r.Context())

		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		req, proto_, done := decodeExportBody(w, r, logger, "traces", func(body []byte) (*otlp.ExportRequest, error) {
			pb := &collectortracev1.ExportTraceServiceRequest{}
			if err := proto.Unmarshal(body, pb); err != nil {
				return nil, err
			}
			return otlp.FromTraceProto(pb), nil
		})
		if done {
			return
		}

		principalID, tokenID := identity(r)
		result, err := store.Ingest(r.Context(), principalID, tokenID, req)
		if err != nil {
			writeIngestError(w, logger, reqID, err)
			return
		}

		logger.Info("traces ingested",
			zap.String("request_id", reqID),
			zap.Int("spans", result.SpansProcessed))

		if proto_ {
			writeProtoResponse(w, logger, reqID, &collectortracev1.ExportTraceServiceResponse{})
			return
		}
		w.Header().Set("Content-Type", contentTypeJSON)
		json.NewEncoder(w).Encode(result)
	}
}

// handleMetrics handles POST /v1/metrics, the standard OTLP/HTTP endpoint.
func handleMetrics(store *storage.Storage, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqID := RequestID(r.Context())

		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		req, proto_, done := decodeExportBody(w, r, logger, "metrics", func(body []byte) (*otlp.ExportRequest, error) {
			pb := &collectormetricsv1.ExportMetricsServiceRequest{}
			if err := proto.Unmarshal(body, pb); err != nil {
				return nil, err
			}
			return otlp.FromMetricsProto(pb), nil
		})
		if done {
			return
		}

		principalID, tokenID := identity(r)
		result, err := store.Ingest(r.Context(), principalID, tokenID, req)
		if err != nil {
			writeIngestError(w, logger, reqID, err)
			return
		}

		logger.Info("metrics ingested",
			zap.String("request_id", reqID),
			zap.Int("metrics", result.MetricsProcessed),
			zap.Int("metrics_skipped", result.MetricsSkipped))

		if proto_ {
			writeProtoResponse(w, logger, reqID, &collectormetricsv1.ExportMetricsServiceResponse{})
			return
		}
		w.Header().Set("Content-Type", contentTypeJSON)
		json.NewEncoder(w).Encode(result)
	}
}

// decodeExportBody reads the request body and decodes it as protobuf or JSON
// depending on Content-Type. The bool return values are (was protobuf,
// response already written).
func decodeExportBody(w http.ResponseWriter, r *http.Request, logger *zap.Logger, signal string, fromProto func([]byte) (*otlp.ExportRequest, error)) (*otlp.ExportRequest, bool, bool) {
	reqID := RequestID(r.Context())
	contentType := r.Header.Get("Content-Type")

	switch {
	case strings.HasPrefix(contentType, contentTypeProtobuf):
		body, err := io.ReadAll(r.Body)
		if err != nil {
			logger.Warn(signal+": failed to read body",
				zap.String("request_id", reqID), zap.Error(err))
			w.WriteHeader(http.StatusBadRequest)
			return nil, true, true
		}
		req, err := fromProto(body)
		if err != nil {
			logger.Warn(signal+": failed to unmarshal protobuf",
				zap.String("request_id", reqID), zap.Error(err))
			w.WriteHeader(http.StatusBadRequest)
			return nil, true, true
		}
		return req, true, false

	case strings.HasPrefix(contentType, contentTypeJSON):
		var req otlp.ExportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Warn(signal+": failed to decode json",
				zap.String("request_id", reqID), zap.Error(err))
			writeJSONError(w, http.StatusBadRequest, "invalid request body")
			return nil, false, true
		}
		return &req, false, false

	default:
		logger.Warn(signal+": unsupported content type",
			zap.String("request_id", reqID),
			zap.String("content_type", contentType))
		w.WriteHeader(http.StatusUnsupportedMediaType)
		return nil, false, true
	}
}

// writeIngestError maps pipeline failures to HTTP statuses: infrastructure
// errors are retryable (503), everything else is an opaque 500. No structured
// detail leaves the server; diagnostics go to the log.
func writeIngestError(w http.ResponseWriter, logger *zap.Logger, reqID string, err error) {
	var storageErr *storage.StorageError
	if errors.As(err, &storageErr) && storageErr.Type == storage.ErrorTypeInfrastructure {
		logger.Error("ingest: storage unavailable",
			zap.String("request_id", reqID), zap.Error(err))
		writeJSONError(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}
	logger.Error("ingest failed",
		zap.String("request_id", reqID), zap.Error(err))
	writeJSONError(w, http.StatusInternalServerError, "ingestion failed")
}

func writeProtoResponse(w http.ResponseWriter, logger *zap.Logger, reqID string, resp proto.Message) {
	respBytes, err := proto.Marshal(resp)
	if err != nil {
		logger.Error("BUG: failed to marshal proto response",
			zap.String("request_id", reqID), zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentTypeProtobuf)
	w.WriteHeader(http.StatusOK)
	w.Write(respBytes)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
