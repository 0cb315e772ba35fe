package auth

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationStore remembers ended session IDs until their expiry.
type RevocationStore interface {
	Revoke(ctx context.Context, id string, until time.Time) error
	IsRevoked(ctx context.Context, id string) (bool, error)
}

// MemoryRevocationStore keeps revoked IDs in process memory.
type MemoryRevocationStore struct {
	mu  sync.Mutex
	ids map[string]time.Time
	now func() time.Time
}

func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{
		ids: make(map[string]time.Time),
		now: time.Now,
	}
}

func (s *MemoryRevocationStore) Revoke(_ context.Context, id string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, exp := range s.ids {
		if !now.Before(exp) {
			delete(s.ids, k)
		}
	}
	if now.Before(until) {
		s.ids[id] = until
	}
	return nil
}

func (s *MemoryRevocationStore) IsRevoked(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exp, ok := s.ids[id]
	if !ok {
		return false, nil
	}
	if !s.now().Before(exp) {
		delete(s.ids, id)
		return false, nil
	}
	return true, nil
}

const revokedKeyPrefix = "budgetbee:session:revoked:"

// RedisRevocationStore keeps revoked IDs in redis with a TTL, so several
// server processes share one view of logged-out sessions.
type RedisRevocationStore struct {
	rdb redis.Cmdable
	now func() time.Time
}

func NewRedisRevocationStore(rdb redis.Cmdable) *RedisRevocationStore {
	return &RedisRevocationStore{rdb: rdb, now: time.Now}
}

func (s *RedisRevocationStore) Revoke(ctx context.Context, id string, until time.Time) error {
	ttl := until.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	return s.rdb.Set(ctx, revokedKeyPrefix+id, "1", ttl).Err()
}

func (s *RedisRevocationStore) IsRevoked(ctx context.Context, id string) (bool, error) {
	n, err := s.rdb.Exists(ctx, revokedKeyPrefix+id).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
