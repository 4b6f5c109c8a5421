package auth

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	_ "github.com/mattn/go-sqlite3"
)

// Auth manages principals and the ingest tokens scoped to them. Tokens are
// stored hashed (SHA-256 over token plus pepper); the plaintext is returned
// exactly once, at creation.
type Auth struct {
	db     *sql.DB
	pepper string
	logger *zap.Logger

	// In-flight last_used_at updates; drained before the DB closes.
	updates sync.WaitGroup
}

// New opens the principal/token store at dbPath.
func New(dbPath, pepper string, logger *zap.Logger) (*Auth, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open auth db: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping auth db: %w", err)
	}

	a := &Auth{db: db, pepper: pepper, logger: logger}

	if err := a.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init auth schema: %w", err)
	}

	return a, nil
}

// Close waits for in-flight usage updates and closes the auth database.
func (a *Auth) Close() error {
	a.updates.Wait()
	return a.db.Close()
}

func (a *Auth) initSchema(ctx context.Context) error {
	_, err := a.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS principals (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			created_at TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS ingest_tokens (
			id TEXT PRIMARY KEY,
			principal_id TEXT NOT NULL REFERENCES principals(id),
			name TEXT NOT NULL,
			token_hash TEXT NOT NULL UNIQUE,
			token_prefix TEXT NOT NULL,
			scopes INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			expires_at TEXT,
			revoked_at TEXT,
			last_used_at TEXT,
			created_by TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_ingest_tokens_hash ON ingest_tokens(token_hash);
		CREATE INDEX IF NOT EXISTS idx_ingest_tokens_principal ON ingest_tokens(principal_id);
	`)
	return err
}

// hashToken computes SHA-256(token + pepper).
func (a *Auth) hashToken(token string) string {
	h := sha256.Sum256([]byte(token + a.pepper))
	return hex.EncodeToString(h[:])
}

// Bootstrap creates a default principal and an admin token on first start,
// when bootstrapToken is provided and no tokens exist yet.
func (a *Auth) Bootstrap(ctx context.Context, bootstrapToken string) error {
	if bootstrapToken == "" {
		return nil
	}

	var count int
	if err := a.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM ingest_tokens").Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	principal, err := a.CreatePrincipal(ctx, "default")
	if err != nil {
		return err
	}

	_, _, err = a.createTokenInternal(ctx, principal.ID, "bootstrap-admin", ScopeAdmin, nil, bootstrapToken, "system")
	if err != nil {
		return err
	}

	a.logger.Info("bootstrap admin token created, unset MIRADOR_BOOTSTRAP_TOKEN for security",
		zap.String("principal_id", principal.ID))
	return nil
}

// Principal is one owning tenant of telemetry data.
type Principal struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// CreatePrincipal creates a principal; the name must be unique.
func (a *Auth) CreatePrincipal(ctx context.Context, name string) (*Principal, error) {
	p := &Principal{ID: generateID(), Name: name, CreatedAt: time.Now().UTC()}
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO principals (id, name, created_at) VALUES (?, ?, ?)
	`, p.ID, p.Name, p.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ValidateToken verifies an ingest token and returns its info, or one of the
// sentinel errors when the token is unknown, revoked or expired.
func (a *Auth) ValidateToken(ctx context.Context, token string) (*TokenInfo, error) {
	hash := a.hashToken(token)

	var info TokenInfo
	var expiresAt, revokedAt sql.NullString

	err := a.db.QueryRowContext(ctx, `
		SELECT id, principal_id, name, scopes, expires_at, revoked_at
		FROM ingest_tokens WHERE token_hash = ?
	`, hash).Scan(&info.ID, &info.PrincipalID, &info.Name, &info.Scopes, &expiresAt, &revokedAt)

	if err == sql.ErrNoRows {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}

	if revokedAt.Valid {
		return nil, ErrTokenRevoked
	}

	if expiresAt.Valid {
		t, _ := time.Parse(time.RFC3339, expiresAt.String)
		if time.Now().After(t) {
			return nil, ErrTokenExpired
		}
	}

	// Update last_used_at off the request path. The update never fails a
	// validation, but it must not outlive the DB handle.
	a.updates.Add(1)
	go func() {
		defer a.updates.Done()
		if _, err := a.db.Exec("UPDATE ingest_tokens SET last_used_at = ? WHERE id = ?",
			time.Now().UTC().Format(time.RFC3339), info.ID); err != nil {
			a.logger.Warn("failed to update token last_used_at",
				zap.String("token_id", info.ID), zap.Error(err))
		}
	}()

	return &info, nil
}

// CreateToken mints a new ingest token for a principal. Returns the plaintext
// token and its metadata.
func (a *Auth) CreateToken(ctx context.Context, principalID, name string, scopes Scope, expiresAt *time.Time, createdBy string) (string, *TokenInfo, error) {
	token := generateToken()
	return a.createTokenInternal(ctx, principalID, name, scopes, expiresAt, token, createdBy)
}

func (a *Auth) createTokenInternal(ctx context.Context, principalID, name string, scopes Scope, expiresAt *time.Time, token, createdBy string) (string, *TokenInfo, error) {
	id := generateID()
	hash := a.hashToken(token)
	prefix := token
	if len(prefix) > 10 {
		prefix = prefix[:10] // "mrd_" + 6 chars
	}

	var expiresAtStr *string
	if expiresAt != nil {
		s := expiresAt.Format(time.RFC3339)
		expiresAtStr = &s
	}

	_, err := a.db.ExecContext(ctx, `
		INSERT INTO ingest_tokens (id, principal_id, name, token_hash, token_prefix, scopes, created_at, expires_at, created_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, principalID, name, hash, prefix, scopes, time.Now().UTC().Format(time.RFC3339), expiresAtStr, createdBy)

	if err != nil {
		return "", nil, err
	}

	return token, &TokenInfo{ID: id, PrincipalID: principalID, Name: name, Scopes: scopes, Prefix: prefix}, nil
}

// RevokeToken revokes an ingest token.
func (a *Auth) RevokeToken(ctx context.Context, tokenID string) error {
	res, err := a.db.ExecContext(ctx, `
		UPDATE ingest_tokens SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL
	`, time.Now().UTC().Format(time.RFC3339), tokenID)
	if err != nil {
		return err
	}

	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrTokenNotFound
	}
	return nil
}

// ListTokens returns all ingest tokens (without sensitive data).
func (a *Auth) ListTokens(ctx context.Context) ([]TokenInfo, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT id, principal_id, name, token_prefix, scopes, created_at, expires_at, revoked_at, last_used_at
		FROM ingest_tokens ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []TokenInfo
	for rows.Next() {
		var t TokenInfo
		var createdAt string
		var expiresAt, revokedAt, lastUsedAt sql.NullString

		err := rows.Scan(&t.ID, &t.PrincipalID, &t.Name, &t.Prefix, &t.Scopes, &createdAt, &expiresAt, &revokedAt, &lastUsedAt)
		if err != nil {
			return nil, err
		}

		t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		if expiresAt.Valid {
			ts, _ := time.Parse(time.RFC3339, expiresAt.String)
			t.ExpiresAt = &ts
		}
		t.Revoked = revokedAt.Valid
		if lastUsedAt.Valid {
			ts, _ := time.Parse(time.RFC3339, lastUsedAt.String)
			t.LastUsedAt = &ts
		}

		tokens = append(tokens, t)
	}

	return tokens, rows.Err()
}
