package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/af-corp/pulseboard/internal/types"
)

const redisCacheTTL = 5 * time.Minute
const redisKeyPrefix = "pulse:session:"

// Store looks up session metadata by token hash.
type Store interface {
	Lookup(ctx context.Context, tokenHash string) (*Metadata, error)
}

// cachedSession is the Redis representation of a session row. Provider
// credentials are deliberately absent: their tokens stay in Postgres and are
// re-read on every lookup.
type cachedSession struct {
	ID        string    `json:"id"`
	User      string    `json:"user"`
	ExpiresAt time.Time `json:"expires_at"`
}

// expired reports whether the cached row has outlived the session itself.
// The DB query filters on expires_at, but a row cached just before expiry
// would otherwise stay usable for the whole cache TTL.
func (c cachedSession) expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// CachedStore implements Store with PostgreSQL + a Redis cache for the
// session row itself.
type CachedStore struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func NewCachedStore(db *pgxpool.Pool, rdb *redis.Client) *CachedStore {
	return &CachedStore{db: db, redis: rdb}
}

func (s *CachedStore) Lookup(ctx context.Context, tokenHash string) (*Metadata, error) {
	meta, err := s.lookupSession(ctx, tokenHash)
	if err != nil || meta == nil {
		return nil, err
	}

	creds, err := s.loadCredentials(ctx, meta.ID)
	if err != nil {
		return nil, err
	}
	meta.Credentials = creds
	return meta, nil
}

func (s *CachedStore) lookupSession(ctx context.Context, tokenHash string) (*Metadata, error) {
	if s.redis != nil {
		cached, err := s.redis.Get(ctx, redisKeyPrefix+tokenHash).Bytes()
		if err == nil {
			var row cachedSession
			if err := json.Unmarshal(cached, &row); err == nil && !row.expired(time.Now()) {
				return &Metadata{ID: row.ID, User: row.User, ExpiresAt: row.ExpiresAt}, nil
			}
		}
	}

	var meta Metadata
	err := s.db.QueryRow(ctx, `
		SELECT id, user_name, expires_at
		FROM sessions
		WHERE token_hash = $1
		  AND status = 'active'
		  AND expires_at > NOW()
	`, tokenHash).Scan(&meta.ID, &meta.User, &meta.ExpiresAt)
	if err != nil {
		if err.Error() == "no rows in result set" {
			return nil, nil
		}
		return nil, fmt.Errorf("query sessions: %w", err)
	}

	if s.redis != nil {
		data, err := json.Marshal(cachedSession{ID: meta.ID, User: meta.User, ExpiresAt: meta.ExpiresAt})
		if err == nil {
			s.redis.Set(ctx, redisKeyPrefix+tokenHash, data, redisCacheTTL)
		}
	}

	// Update last_used_at asynchronously (fire-and-forget)
	go func(id string) {
		bgCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.db.Exec(bgCtx, `UPDATE sessions SET last_used_at = NOW() WHERE id = $1`, id)
	}(meta.ID)

	return &meta, nil
}

func (s *CachedStore) loadCredentials(ctx context.Context, sessionID string) ([]types.Credential, error) {
	rows, err := s.db.Query(ctx, `
		SELECT provider, identity, token, expires_at
		FROM provider_credentials
		WHERE session_id = $1
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query provider_credentials: %w", err)
	}
	defer rows.Close()

	var creds []types.Credential
	for rows.Next() {
		var c types.Credential
		var expiresAt *time.Time
		if err := rows.Scan(&c.Provider, &c.Identity, &c.Token, &expiresAt); err != nil {
			return nil, fmt.Errorf("scan provider_credentials: %w", err)
		}
		if expiresAt != nil {
			c.ExpiresAt = *expiresAt
		}
		creds = append(creds, c)
	}
	return creds, rows.Err()
}
