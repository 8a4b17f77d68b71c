package authrequest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	migrations "github.com/dropDatabas3/whoisit/migrations/postgres"

	"github.com/dropDatabas3/whoisit/internal/security/tokens"
)

// PGStore is a Store backed by PostgreSQL, for deployments that already carry
// a relational database and want durable correlation across restarts.
type PGStore struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

// NewPGStore wraps an existing pgx pool. ttl <= 0 uses DefaultTTL.
func NewPGStore(pool *pgxpool.Pool, ttl time.Duration) *PGStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &PGStore{pool: pool, ttl: ttl}
}

// OpenPGStore connects with the given DSN and ensures the schema exists.
func OpenPGStore(ctx context.Context, dsn string, ttl time.Duration) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("authrequest: pg connect: %w", err)
	}
	s := NewPGStore(pool, ttl)
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// EnsureSchema applies the embedded migrations in lexical order. They are
// written with IF NOT EXISTS, so re-running them is safe.
func (s *PGStore) EnsureSchema(ctx context.Context) error {
	entries, err := fs.ReadDir(migrations.FS, migrations.Dir)
	if err != nil {
		return fmt.Errorf("authrequest: read migrations: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		sql, err := fs.ReadFile(migrations.FS, migrations.Dir+"/"+name)
		if err != nil {
			return fmt.Errorf("authrequest: read migration %s: %w", name, err)
		}
		if _, err := s.pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("authrequest: apply migration %s: %w", name, err)
		}
	}
	return nil
}

// Save upserts the request. Re-saving the same state refreshes the payload
// and its expiry, matching the semantics of the other backends.
func (s *PGStore) Save(ctx context.Context, sessionID string, req *AuthorizationRequest) error {
	raw, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("authrequest: marshal: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO authorization_request (session_id, state_hash, payload, expires_at)
		VALUES ($1, $2, $3, now() + make_interval(secs => $4))
		ON CONFLICT (session_id, state_hash)
		DO UPDATE SET payload = EXCLUDED.payload, expires_at = EXCLUDED.expires_at
	`, sessionID, hashedState(req.State), raw, s.ttl.Seconds())
	if err != nil {
		return fmt.Errorf("authrequest: pg save: %w", err)
	}
	return nil
}

// Consume deletes the row and returns its payload in one statement.
// DELETE ... RETURNING makes the find-and-invalidate atomic: of two callbacks
// racing on the same state, exactly one gets the row back.
func (s *PGStore) Consume(ctx context.Context, sessionID, state string) (*AuthorizationRequest, error) {
	if state == "" {
		return nil, ErrNotFound
	}

	var raw []byte
	err := s.pool.QueryRow(ctx, `
		DELETE FROM authorization_request
		WHERE session_id = $1 AND state_hash = $2 AND expires_at > now()
		RETURNING payload
	`, sessionID, hashedState(state)).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("authrequest: pg consume: %w", err)
	}

	var req AuthorizationRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("authrequest: unmarshal: %w", err)
	}
	if req.State != state {
		return nil, ErrNotFound
	}
	return &req, nil
}

// PurgeExpired removes rows past their expiry. Call periodically; Consume
// already filters on expires_at, so this is housekeeping, not correctness.
func (s *PGStore) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM authorization_request WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("authrequest: purge: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Close releases the pool.
func (s *PGStore) Close() {
	s.pool.Close()
}

func hashedState(state string) string {
	// The session id is its own column, so only the state is hashed here.
	return tokens.SHA256Base64URL(state)
}
