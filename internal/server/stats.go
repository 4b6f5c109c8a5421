package server

import (
	"encoding/json"
	"net/http"
	"time"

	"mirador/internal/storage"
)

// StatsResponse is the JSON response for storage stats.
type StatsResponse struct {
	Database  DatabaseStats  `json:"database"`
	Tables    TableStats     `json:"tables"`
	Retention RetentionStats `json:"retention"`
	Cleanup   *CleanupStats  `json:"cleanup,omitempty"`
}

type DatabaseStats struct {
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
}

type TableStats struct {
	Resources          int64 `json:"resources"`
	ResourceAttributes int64 `json:"resource_attributes"`
	Traces             int64 `json:"traces"`
	Spans              int64 `json:"spans"`
	SpanAttributes     int64 `json:"span_attributes"`
	Metrics            int64 `json:"metrics"`
	MetricAttributes   int64 `json:"metric_attributes"`
}

type RetentionStats struct {
	Enabled             bool `json:"enabled"`
	Hours               int  `json:"hours"`
	CleanupIntervalMins int  `json:"cleanup_interval_mins"`
}

type CleanupStats struct {
	LastRun        string        `json:"last_run"`
	LastDurationMs int64         `json:"last_duration_ms"`
	LastResult     CleanupCounts `json:"last_result"`
}

type CleanupCounts struct {
	SpansDeleted            int64 `json:"spans_deleted"`
	SpanAttributesDeleted   int64 `json:"span_attributes_deleted"`
	TracesDeleted           int64 `json:"traces_deleted"`
	MetricsDeleted          int64 `json:"metrics_deleted"`
	MetricAttributesDeleted int64 `json:"metric_attributes_deleted"`
}

func handleStats(store *storage.Storage, retentionCfg storage.CleanupConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		stats, err := store.Stats(r.Context())
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}

		resp := StatsResponse{
			Database: DatabaseStats{
				Path:      stats.DBPath,
				SizeBytes: stats.DBSizeBytes,
			},
			Tables: TableStats{
				Resources:          stats.Tables.Resources,
				ResourceAttributes: stats.Tables.ResourceAttributes,
				Traces:             stats.Tables.Traces,
				Spans:              stats.Tables.Spans,
				SpanAttributes:     stats.Tables.SpanAttributes,
				Metrics:            stats.Tables.Metrics,
				MetricAttributes:   stats.Tables.MetricAttributes,
			},
			Retention: RetentionStats{
				Enabled:             retentionCfg.RetentionHours > 0,
				Hours:               retentionCfg.RetentionHours,
				CleanupIntervalMins: retentionCfg.CleanupIntervalMins,
			},
		}

		if stats.LastCleanup != nil {
			resp.Cleanup = &CleanupStats{
				LastRun:        stats.LastCleanup.Timestamp.Format(time.RFC3339),
				LastDurationMs: stats.LastCleanup.Duration.Milliseconds(),
				LastResult: CleanupCounts{
					SpansDeleted:            stats.LastCleanup.SpansDeleted,
					SpanAttributesDeleted:   stats.LastCleanup.SpanAttributesDeleted,
					TracesDeleted:           stats.LastCleanup.TracesDeleted,
					MetricsDeleted:          stats.LastCleanup.MetricsDeleted,
					MetricAttributesDeleted: stats.LastCleanup.MetricAttributesDeleted,
				},
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}
