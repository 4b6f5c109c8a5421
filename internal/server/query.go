package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"mirador/internal/auth"
	"mirador/internal/storage"
)

const queryTimeout = 5 * time.Second

// parseTimeRange reads start/end query params as RFC 3339 timestamps.
// Defaults to the trailing hour when absent.
func parseTimeRange(r *http.Request) (storage.TimeRange, error) {
	tr := storage.TimeRange{
		Start: time.Now().Add(-time.Hour).UTC(),
		End:   time.Now().UTC(),
	}

	if s := r.URL.Query().Get("start"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return tr, err
		}
		tr.Start = t
	}
	if e := r.URL.Query().Get("end"); e != "" {
		t, err := time.Parse(time.RFC3339, e)
		if err != nil {
			return tr, err
		}
		tr.End = t
	}
	return tr, nil
}

// principalID resolves the authenticated principal for query scoping.
func principalID(r *http.Request) string {
	if info := auth.TokenFromContext(r.Context()); info != nil {
		return info.PrincipalID
	}
	return "anonymous"
}

// listHandler wraps the shared method/range/error plumbing of the four
// entity list endpoints.
func listHandler[T any](logger *zap.Logger, list func(ctx context.Context, principalID string, tr storage.TimeRange) ([]T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentTypeJSON)

		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		tr, err := parseTimeRange(r)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid time range, expected RFC 3339")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
		defer cancel()

		items, err := list(ctx, principalID(r), tr)
		if err != nil {
			logger.Error("query failed",
				zap.String("request_id", RequestID(r.Context())),
				zap.Error(err))
			writeJSONError(w, http.StatusInternalServerError, "query failed")
			return
		}
		if items == nil {
			items = []T{}
		}

		json.NewEncoder(w).Encode(map[string]any{
			"items": items,
			"count": len(items),
		})
	}
}

func handleListResources(store *storage.Storage, logger *zap.Logger) http.HandlerFunc {
	return listHandler(logger, store.ListResources)
}

func handleListTraces(store *storage.Storage, logger *zap.Logger) http.HandlerFunc {
	return listHandler(logger, store.ListTraces)
}

func handleListSpans(store *storage.Storage, logger *zap.Logger) http.HandlerFunc {
	return listHandler(logger, store.ListSpans)
}

func handleListMetrics(store *storage.Storage, logger *zap.Logger) http.HandlerFunc {
	return listHandler(logger, store.ListMetrics)
}
