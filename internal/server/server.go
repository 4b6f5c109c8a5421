package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"mirador/internal/auth"
	"mirador/internal/storage"
)

// Config holds server configuration.
type Config struct {
	Port                int
	RetentionCfg        storage.CleanupConfig
	MaxConcurrentIngest int
	MaxConcurrentQuery  int
}

// New creates a new HTTP server with ingest, query and admin endpoints.
// authProvider may be nil, which mounts everything unauthenticated (local
// development only).
func New(cfg Config, store *storage.Storage, authProvider *auth.Auth, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()

	// Semaphores for backpressure
	ingestSem := NewSemaphore(cfg.MaxConcurrentIngest)
	querySem := NewSemaphore(cfg.MaxConcurrentQuery)

	// Health endpoint (always public)
	mux.HandleFunc("/health", handleHealth(store))

	ingest := func(h http.Handler) http.Handler {
		h = ingestSem.Middleware(h)
		if authProvider != nil {
			h = authProvider.Middleware(auth.RequireScope(auth.ScopeIngest)(h))
		}
		return h
	}
	read := func(h http.Handler) http.Handler {
		h = querySem.Middleware(h)
		if authProvider != nil {
			h = authProvider.Middleware(auth.RequireScope(auth.ScopeRead)(h))
		}
		return h
	}

	// Ingest endpoints
	mux.Handle("/v1/telemetry", ingest(handleTelemetry(store, logger)))
	mux.Handle("/v1/traces", ingest(handleTraces(store, logger)))
	mux.Handle("/v1/metrics", ingest(handleMetrics(store, logger)))

	// Query endpoints
	mux.Handle("/api/resources", read(handleListResources(store, logger)))
	mux.Handle("/api/traces", read(handleListTraces(store, logger)))
	mux.Handle("/api/spans", read(handleListSpans(store, logger)))
	mux.Handle("/api/metrics", read(handleListMetrics(store, logger)))

	// Stats
	mux.Handle("/stats", read(handleStats(store, cfg.RetentionCfg)))

	// Admin endpoints (token management)
	if authProvider != nil {
		admin := func(h http.Handler) http.Handler {
			return authProvider.Middleware(auth.RequireScope(auth.ScopeAdmin)(h))
		}
		mux.Handle("/admin/tokens", admin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				handleListTokens(authProvider)(w, r)
			case http.MethodPost:
				handleCreateToken(authProvider)(w, r)
			default:
				w.WriteHeader(http.StatusMethodNotAllowed)
			}
		})))
		mux.Handle("/admin/tokens/", admin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/admin/tokens/") {
				handleRevokeToken(authProvider)(w, r)
			} else {
				w.WriteHeader(http.StatusMethodNotAllowed)
			}
		})))
	}

	// Middleware execution order (request path):
	// requestID -> recovery -> sizeLimit -> gzip -> handler
	handler := chain(mux,
		requestIDMiddleware,
		recoveryMiddleware(logger),
		sizeLimitMiddleware,
		gzipMiddleware(logger),
	)

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}
