package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"mirador/internal/auth"
)

func handleListTokens(a *auth.Auth) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		tokens, err := a.ListTokens(r.Context())
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}

		type tokenResponse struct {
			ID          string  `json:"id"`
			PrincipalID string  `json:"principal_id"`
			Name        string  `json:"name"`
			Prefix      string  `json:"prefix"`
			Scopes      string  `json:"scopes"`
			CreatedAt   string  `json:"created_at"`
			ExpiresAt   *string `json:"expires_at,omitempty"`
			LastUsedAt  *string `json:"last_used_at,omitempty"`
			Revoked     bool    `json:"revoked"`
		}

		resp := make([]tokenResponse, len(tokens))
		for i, t := range tokens {
			resp[i] = tokenResponse{
				ID:          t.ID,
				PrincipalID: t.PrincipalID,
				Name:        t.Name,
				Prefix:      t.Prefix,
				Scopes:      t.Scopes.String(),
				CreatedAt:   t.CreatedAt.Format(time.RFC3339),
				Revoked:     t.Revoked,
			}
			if t.ExpiresAt != nil {
				s := t.ExpiresAt.Format(time.RFC3339)
				resp[i].ExpiresAt = &s
			}
			if t.LastUsedAt != nil {
				s := t.LastUsedAt.Format(time.RFC3339)
				resp[i].LastUsedAt = &s
			}
		}

		json.NewEncoder(w).Encode(resp)
	}
}

func handleCreateToken(a *auth.Auth) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		var req struct {
			PrincipalID string `json:"principal_id"`
			Name        string `json:"name"`
			Scopes      string `json:"scopes"` // comma-separated: "ingest,read"
		}

		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if req.Name == "" {
			writeJSONError(w, http.StatusBadRequest, "name is required")
			return
		}

		scopes := auth.ParseScopes(req.Scopes)
		if scopes == 0 {
			writeJSONError(w, http.StatusBadRequest, "at least one scope required (ingest, read, admin)")
			return
		}

		createdBy := ""
		principalID := req.PrincipalID
		if info := auth.TokenFromContext(r.Context()); info != nil {
			createdBy = info.ID
			// Default to the caller's own principal.
			if principalID == "" {
				principalID = info.PrincipalID
			}
		}
		if principalID == "" {
			writeJSONError(w, http.StatusBadRequest, "principal_id is required")
			return
		}

		token, info, err := a.CreateToken(r.Context(), principalID, req.Name, scopes, nil, createdBy)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"id":           info.ID,
			"principal_id": info.PrincipalID,
			"name":         info.Name,
			"token":        token, // Only time the full token is returned
			"scopes":       info.Scopes.String(),
		})
	}
}

func handleRevokeToken(a *auth.Auth) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		// Extract token ID from path: /admin/tokens/{id}
		path := strings.TrimPrefix(r.URL.Path, "/admin/tokens/")
		if path == "" || path == r.URL.Path {
			writeJSONError(w, http.StatusBadRequest, "token id required")
			return
		}

		err := a.RevokeToken(r.Context(), path)
		if errors.Is(err, auth.ErrTokenNotFound) {
			writeJSONError(w, http.StatusNotFound, "token not found")
			return
		}
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}

		json.NewEncoder(w).Encode(map[string]string{"status": "revoked"})
	}
}
