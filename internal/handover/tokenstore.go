package handover

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type MemoryTokenStore struct {
	mu       sync.Mutex
	consumed map[string]struct{}
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{consumed: make(map[string]struct{})}
}

func (m *MemoryTokenStore) Consume(ctx context.Context, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.consumed[token]; ok {
		return false, nil
	}
	m.consumed[token] = struct{}{}
	return true, nil
}

// RedisTokenStore shares consumption state across API replicas. SETNX gives
// the exactly-once guarantee; the TTL only bounds memory, it must outlive the
// longest plausible handover window.
type RedisTokenStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisTokenStore(addr, password string, ttl time.Duration) *RedisTokenStore {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisTokenStore{client: c, ttl: ttl}
}

func (r *RedisTokenStore) Consume(ctx context.Context, token string) (bool, error) {
	return r.client.SetNX(ctx, "handover:token:"+token, time.Now().Unix(), r.ttl).Result()
}
