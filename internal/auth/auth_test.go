package auth

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestAuth(t *testing.T) *Auth {
	t.Helper()
	a, err := New(":memory:", "test-pepper", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestCreateAndValidateToken(t *testing.T) {
	a := newTestAuth(t)
	ctx := context.Background()

	p, err := a.CreatePrincipal(ctx, "acme")
	require.NoError(t, err)

	token, info, err := a.CreateToken(ctx, p.ID, "ci-ingest", ScopeIngest, nil, "")
	require.NoError(t, err)
	assert.True(t, len(token) > 10)
	assert.Equal(t, token[:10], info.Prefix)

	got, err := a.ValidateToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, info.ID, got.ID)
	assert.Equal(t, p.ID, got.PrincipalID)
	assert.True(t, got.Scopes.Has(ScopeIngest))
	assert.False(t, got.Scopes.Has(ScopeRead))
}

func TestValidateUnknownToken(t *testing.T) {
	a := newTestAuth(t)

	_, err := a.ValidateToken(context.Background(), "mrd_deadbeef")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRevokedToken(t *testing.T) {
	a := newTestAuth(t)
	ctx := context.Background()

	p, err := a.CreatePrincipal(ctx, "acme")
	require.NoError(t, err)

	token, info, err := a.CreateToken(ctx, p.ID, "to-revoke", ScopeIngest, nil, "")
	require.NoError(t, err)

	require.NoError(t, a.RevokeToken(ctx, info.ID))

	_, err = a.ValidateToken(ctx, token)
	assert.ErrorIs(t, err, ErrTokenRevoked)

	// Revoking twice reports not found.
	assert.ErrorIs(t, a.RevokeToken(ctx, info.ID), ErrTokenNotFound)
}

func TestExpiredToken(t *testing.T) {
	a := newTestAuth(t)
	ctx := context.Background()

	p, err := a.CreatePrincipal(ctx, "acme")
	require.NoError(t, err)

	past := time.Now().Add(-time.Hour)
	token, _, err := a.CreateToken(ctx, p.ID, "expired", ScopeIngest, &past, "")
	require.NoError(t, err)

	_, err = a.ValidateToken(ctx, token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestBootstrap(t *testing.T) {
	a := newTestAuth(t)
	ctx := context.Background()

	require.NoError(t, a.Bootstrap(ctx, "mrd_bootstrap0000000000000000000000"))

	info, err := a.ValidateToken(ctx, "mrd_bootstrap0000000000000000000000")
	require.NoError(t, err)
	assert.True(t, info.Scopes.Has(ScopeAdmin))
	assert.True(t, info.Scopes.Has(ScopeIngest), "admin implies all scopes")

	// Second bootstrap is a no-op once tokens exist.
	require.NoError(t, a.Bootstrap(ctx, "mrd_other000000000000000000000000"))
	_, err = a.ValidateToken(ctx, "mrd_other000000000000000000000000")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestLastUsedPersistsAcrossClose(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "auth.db")
	ctx := context.Background()

	a, err := New(dbPath, "test-pepper", zap.NewNop())
	require.NoError(t, err)

	p, err := a.CreatePrincipal(ctx, "acme")
	require.NoError(t, err)
	token, info, err := a.CreateToken(ctx, p.ID, "ci", ScopeIngest, nil, "")
	require.NoError(t, err)

	_, err = a.ValidateToken(ctx, token)
	require.NoError(t, err)

	// Close drains the background last_used_at write before the DB goes away.
	require.NoError(t, a.Close())

	a, err = New(dbPath, "test-pepper", zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	tokens, err := a.ListTokens(ctx)
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, info.ID, tokens[0].ID)
	assert.NotNil(t, tokens[0].LastUsedAt)
}

func TestScopeParsing(t *testing.T) {
	assert.Equal(t, ScopeIngest|ScopeRead, ParseScopes("ingest,read"))
	assert.Equal(t, Scope(0), ParseScopes("bogus"))
	assert.Equal(t, "ingest,read", (ScopeIngest | ScopeRead).String())
	assert.Equal(t, "none", Scope(0).String())
}
