package cart

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"storefront/internal/redisx"
)

// Slot is a single durable value holding a serialised cart. Load returns nil
// when the slot is empty.
type Slot interface {
	Load(ctx context.Context) ([]byte, error)
	Store(ctx context.Context, raw []byte) error
	Clear(ctx context.Context) error
}

// MemorySlot keeps the cart in process memory.
type MemorySlot struct {
	mu  sync.Mutex
	raw []byte
}

func (s *MemorySlot) Load(context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.raw...), nil
}

func (s *MemorySlot) Store(_ context.Context, raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw = append([]byte(nil), raw...)
	return nil
}

func (s *MemorySlot) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw = nil
	return nil
}

// FileSlot keeps the cart in a file, replaced atomically on every write.
type FileSlot struct {
	Path string
}

func (s FileSlot) Load(context.Context) ([]byte, error) {
	raw, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return raw, err
}

func (s FileSlot) Store(_ context.Context, raw []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.Path), filepath.Base(s.Path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.Path)
}

func (s FileSlot) Clear(context.Context) error {
	err := os.Remove(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// RedisSlot keeps the cart under a Redis key, refreshed to TTL on every write.
type RedisSlot struct {
	Client *redis.Client
	Key    string
	TTL    time.Duration
}

func (s RedisSlot) Load(ctx context.Context) ([]byte, error) {
	raw, err := s.Client.Get(ctx, s.Key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return raw, err
}

func (s RedisSlot) Store(ctx context.Context, raw []byte) error {
	return s.Client.Set(ctx, s.Key, raw, s.TTL).Err()
}

func (s RedisSlot) Clear(ctx context.Context) error {
	return s.Client.Del(ctx, s.Key).Err()
}

// Slots hands out the slot that holds a user's server-side cart.
type Slots interface {
	For(userID string) Slot
}

// RedisSlots stores each user's cart under redisx.KeyCart.
type RedisSlots struct {
	Client *redis.Client
}

func (r RedisSlots) For(userID string) Slot {
	return RedisSlot{Client: r.Client, Key: fmt.Sprintf(redisx.KeyCart, userID), TTL: redisx.TTLCart}
}

// MemorySlots keeps one MemorySlot per user for the life of the process.
type MemorySlots struct {
	mu    sync.Mutex
	slots map[string]*MemorySlot
}

func NewMemorySlots() *MemorySlots { return &MemorySlots{slots: make(map[string]*MemorySlot)} }

func (m *MemorySlots) For(userID string) Slot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[userID]
	if !ok {
		s = &MemorySlot{}
		m.slots[userID] = s
	}
	return s
}
