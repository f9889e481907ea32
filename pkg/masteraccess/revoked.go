package masteraccess

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevokedTokenStore tracks individually revoked master tokens by JTI.
type RevokedTokenStore interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// InMemoryRevokedStore is the default store, suitable for a single process.
type InMemoryRevokedStore struct {
	mu      sync.RWMutex
	revoked map[string]time.Time
}

func NewInMemoryRevokedStore() *InMemoryRevokedStore {
	return &InMemoryRevokedStore{revoked: make(map[string]time.Time)}
}

func (s *InMemoryRevokedStore) Revoke(_ context.Context, tokenID string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[tokenID] = expiresAt
	return nil
}

func (s *InMemoryRevokedStore) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	expiresAt, ok := s.revoked[tokenID]
	if !ok {
		return false, nil
	}
	if time.Now().After(expiresAt) {
		// Token is expired anyway; let it age out lazily.
		return false, nil
	}
	return true, nil
}

// RedisRevokedStore shares revocations across replicas. Entries expire with
// the token itself via key TTLs.
type RedisRevokedStore struct {
	client    *redis.Client
	keyPrefix string
}

func NewRedisRevokedStore(client *redis.Client) *RedisRevokedStore {
	return &RedisRevokedStore{client: client, keyPrefix: "aegis:revoked:"}
}

func (s *RedisRevokedStore) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, s.keyPrefix+tokenID, "1", ttl).Err()
}

func (s *RedisRevokedStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	_, err := s.client.Get(ctx, s.keyPrefix+tokenID).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
