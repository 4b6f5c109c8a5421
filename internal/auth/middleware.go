package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

type tokenInfoKey struct{}

// TokenFromContext returns the TokenInfo from context.
func TokenFromContext(ctx context.Context) *TokenInfo {
	if v, ok := ctx.Value(tokenInfoKey{}).(*TokenInfo); ok {
		return v
	}
	return nil
}

// Middleware returns an auth middleware that validates bearer tokens and
// attaches the resolved TokenInfo (and with it the owning principal) to the
// request context.
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			authError(w, "missing authorization", http.StatusUnauthorized)
			return
		}

		if !strings.HasPrefix(token, "mrd_") {
			authError(w, "invalid token format", http.StatusUnauthorized)
			return
		}

		info, err := a.ValidateToken(r.Context(), token)
		if err != nil {
			a.logger.Warn("auth failed", zap.Error(err))

			switch {
			case errors.Is(err, ErrTokenRevoked):
				authError(w, "token revoked", http.StatusUnauthorized)
			case errors.Is(err, ErrTokenExpired):
				authError(w, "token expired", http.StatusUnauthorized)
			default:
				authError(w, "invalid token", http.StatusUnauthorized)
			}
			return
		}

		ctx := context.WithValue(r.Context(), tokenInfoKey{}, info)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireScope returns middleware that checks for required scope.
func RequireScope(scope Scope) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info := TokenFromContext(r.Context())
			if info == nil {
				authError(w, "missing authorization", http.StatusUnauthorized)
				return
			}

			if !info.Scopes.Has(scope) {
				authError(w, "insufficient permissions", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func extractToken(r *http.Request) string {
	// Try Authorization: Bearer <token>
	if auth := r.Header.Get("Authorization"); auth != "" {
		if strings.HasPrefix(auth, "Bearer ") {
			return strings.TrimPrefix(auth, "Bearer ")
		}
	}

	// Fallback: X-API-Key header
	if token := r.Header.Get("X-API-Key"); token != "" {
		return token
	}

	return ""
}

func authError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
