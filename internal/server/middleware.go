package server

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxRequestSize = 10 * 1024 * 1024 // 10MB

// requestIDKey is the context key for request ID.
type requestIDKey struct{}

// RequestID returns the request ID from context, or empty string if not set.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// chain applies middleware in the order they execute (first to last).
// Given: chain(handler, A, B, C)
// Execution order: A -> B -> C -> handler -> C -> B -> A
//
// The middlewares are applied by wrapping from right to left,
// so the first middleware in the list executes first on the request path.
func chain(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// requestIDMiddleware assigns a UUID to each request and stores it in context.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// recoveryMiddleware catches panics and returns 503.
func recoveryMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic recovered",
						zap.String("request_id", RequestID(r.Context())),
						zap.Any("panic", err))
					w.WriteHeader(http.StatusServiceUnavailable)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// sizeLimitMiddleware enforces max request body size.
func sizeLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestSize)
		next.ServeHTTP(w, r)
	})
}

// gzipMiddleware decompresses gzip-encoded request bodies.
// Rejects unsupported Content-Encoding values with 415.
// Removes Content-Encoding header after successful decompression.
func gzipMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			encoding := r.Header.Get("Content-Encoding")
			if encoding == "" {
				next.ServeHTTP(w, r)
				return
			}

			if !strings.EqualFold(encoding, "gzip") {
				logger.Warn("unsupported content encoding",
					zap.String("request_id", RequestID(r.Context())),
					zap.String("encoding", encoding))
				w.WriteHeader(http.StatusUnsupportedMediaType)
				return
			}

			gz, err := gzip.NewReader(r.Body)
			if err != nil {
				logger.Warn("gzip decompression failed",
					zap.String("request_id", RequestID(r.Context())),
					zap.Error(err))
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			defer gz.Close()

			r.Body = io.NopCloser(gz)
			r.Header.Del("Content-Encoding")
			next.ServeHTTP(w, r)
		})
	}
}

// Semaphore bounds concurrent requests through a handler group.
type Semaphore struct {
	slots chan struct{}
}

// NewSemaphore creates a semaphore with n slots. n <= 0 disables limiting.
func NewSemaphore(n int) *Semaphore {
	if n <= 0 {
		return &Semaphore{}
	}
	return &Semaphore{slots: make(chan struct{}, n)}
}

// Middleware rejects requests with 503 when all slots are taken.
func (s *Semaphore) Middleware(next http.Handler) http.Handler {
	if s.slots == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case s.slots <- struct{}{}:
			defer func() { <-s.slots }()
			next.ServeHTTP(w, r)
		default:
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	})
}
