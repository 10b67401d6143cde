package repositories

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"ineed/internal/database"

	"github.com/valkey-io/valkey-go"
)

// keyValueStore persists small JSON values. The valkey store survives restarts; the
// memory store backs single-process runs and tests.
type keyValueStore interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type valkeyStore struct {
	client valkey.Client
}

func newValkeyStore(client valkey.Client) keyValueStore {
	return &valkeyStore{client: client}
}

func (s *valkeyStore) Get(ctx context.Context, key string, result any) (bool, error) {
	return database.NewCacheBuilder(s.client, key).WithContext(ctx).Get(result)
}

func (s *valkeyStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return database.NewCacheBuilder(s.client, key).
		WithContext(ctx).
		WithStruct(value).
		WithTTL(ttl).
		Set()
}

func (s *valkeyStore) Delete(ctx context.Context, key string) error {
	return database.NewCacheBuilder(s.client, key).WithContext(ctx).Delete()
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

type memoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func newMemoryStore() *memoryStore {
	return &memoryStore{entries: make(map[string]memoryEntry), now: time.Now}
}

func (s *memoryStore) Get(_ context.Context, key string, result any) (bool, error) {
	s.mu.Lock()
	entry, ok := s.entries[key]
	if ok && !entry.expiresAt.IsZero() && s.now().After(entry.expiresAt) {
		delete(s.entries, key)
		ok = false
	}
	s.mu.Unlock()

	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(entry.data, result); err != nil {
		return false, err
	}
	return true, nil
}

func (s *memoryStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	entry := memoryEntry{data: data}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}

	s.mu.Lock()
	s.entries[key] = entry
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}
