package tokenstore

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryStore keeps the token for the lifetime of the process.
type MemoryStore struct {
	cache *ttlcache.Cache[string, record]
	Now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cache: ttlcache.New[string, record](
			ttlcache.WithDisableTouchOnHit[string, record](),
		),
		Now: time.Now,
	}
}

func (m *MemoryStore) Get(ctx context.Context) (string, error) {
	item := m.cache.Get(Key)
	if item == nil {
		return "", ErrNoToken
	}
	rec := item.Value()
	// ttlcache only evicts lazily, and Now can be moved in tests
	if item.IsExpired() || rec.expired(m.Now()) {
		m.cache.Delete(Key)
		return "", ErrNoToken
	}
	return rec.Token, nil
}

func (m *MemoryStore) Set(ctx context.Context, token string, ttl time.Duration) error {
	m.cache.Set(Key, newRecord(token, m.Now(), ttl), ttl)
	return nil
}

func (m *MemoryStore) Clear(ctx context.Context) error {
	m.cache.Delete(Key)
	return nil
}

func (m *MemoryStore) Close() error {
	m.cache.DeleteAll()
	return nil
}
