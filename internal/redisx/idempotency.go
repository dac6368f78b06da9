package redisx

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Idempotency remembers which order a client-supplied key produced.
type Idempotency interface {
	// Lookup returns the order id stored for key, or "" if none.
	Lookup(ctx context.Context, userID, key string) (string, error)
	Remember(ctx context.Context, userID, key, orderID string) error
}

// RedisIdempotency keeps keys in Redis with TTLIdempotency.
type RedisIdempotency struct {
	Client *redis.Client
}

func (r *RedisIdempotency) Lookup(ctx context.Context, userID, key string) (string, error) {
	id, err := r.Client.Get(ctx, fmt.Sprintf(KeyIdemOrderCreate, userID, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return id, err
}

func (r *RedisIdempotency) Remember(ctx context.Context, userID, key, orderID string) error {
	return r.Client.Set(ctx, fmt.Sprintf(KeyIdemOrderCreate, userID, key), orderID, TTLIdempotency).Err()
}

// MemoryIdempotency is the in-process variant used when Redis is not configured.
type MemoryIdempotency struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	orderID string
	expires time.Time
}

func NewMemoryIdempotency() *MemoryIdempotency {
	return &MemoryIdempotency{entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *MemoryIdempotency) Lookup(_ context.Context, userID, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := fmt.Sprintf(KeyIdemOrderCreate, userID, key)
	e, ok := m.entries[k]
	if !ok {
		return "", nil
	}
	if m.now().After(e.expires) {
		delete(m.entries, k)
		return "", nil
	}
	return e.orderID, nil
}

func (m *MemoryIdempotency) Remember(_ context.Context, userID, key, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[fmt.Sprintf(KeyIdemOrderCreate, userID, key)] = memoryEntry{orderID: orderID, expires: m.now().Add(TTLIdempotency)}
	return nil
}
