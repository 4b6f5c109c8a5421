package auth

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// TokenInfo contains ingest token metadata (no secrets).
type TokenInfo struct {
	ID          string
	PrincipalID string
	Name        string
	Prefix      string
	Scopes      Scope
	CreatedAt   time.Time
	ExpiresAt   *time.Time
	LastUsedAt  *time.Time
	Revoked     bool
}

// generateToken creates a new ingest token: mrd_<32 random hex chars>
func generateToken() string {
	b := make([]byte, 16)
	rand.Read(b)
	return "mrd_" + hex.EncodeToString(b)
}

// generateID creates a new UUID.
func generateID() string {
	return uuid.New().String()
}
