package authrequest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dropDatabas3/whoisit/internal/security/secretbox"
)

// RedisStore is a Store backed by Redis, for deployments where callbacks may
// land on any instance behind a load balancer.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration

	// seal cifra los payloads en reposo (SECRETBOX_MASTER_KEY requerida).
	seal bool
}

// RedisConfig configures a RedisStore.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string        // prefix for all keys, e.g. "whoisit"
	TTL      time.Duration // 0 uses DefaultTTL
	Seal     bool          // encrypt payloads at rest with secretbox
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("authrequest: redis ping failed: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &RedisStore{
		client: rdb,
		prefix: cfg.Prefix,
		ttl:    ttl,
		seal:   cfg.Seal,
	}, nil
}

func (s *RedisStore) key(k string) string {
	if s.prefix == "" {
		return "authreq:" + k
	}
	return s.prefix + ":authreq:" + k
}

// Save persists req as JSON (sealed when configured) with the store TTL.
func (s *RedisStore) Save(ctx context.Context, sessionID string, req *AuthorizationRequest) error {
	raw, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("authrequest: marshal: %w", err)
	}

	payload := string(raw)
	if s.seal {
		payload, err = secretbox.Seal(raw)
		if err != nil {
			return fmt.Errorf("authrequest: seal: %w", err)
		}
	}

	return s.client.Set(ctx, s.key(storageKey(sessionID, req.State)), payload, s.ttl).Err()
}

// Consume uses GETDEL so retrieval and invalidation are a single Redis
// operation: concurrent duplicate callbacks cannot both observe the request.
func (s *RedisStore) Consume(ctx context.Context, sessionID, state string) (*AuthorizationRequest, error) {
	if state == "" {
		return nil, ErrNotFound
	}

	payload, err := s.client.GetDel(ctx, s.key(storageKey(sessionID, state))).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("authrequest: redis getdel: %w", err)
	}

	raw := []byte(payload)
	if s.seal {
		raw, err = secretbox.Open(payload)
		if err != nil {
			return nil, fmt.Errorf("authrequest: open sealed payload: %w", err)
		}
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

// Close releases the underlying Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
