package cache

import (
	"context"
	"github.com/puzpuzpuz/xsync/v3"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is an in-process Cache. Expired entries are dropped on read.
type Memory struct {
	entries *xsync.MapOf[string, memoryEntry]
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		entries: xsync.NewMapOf[string, memoryEntry](),
		now:     time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}

	e, ok := m.entries.Load(key)
	if !ok {
		return nil, ErrNotFound
	}

	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		m.entries.Delete(key)
		return nil, ErrNotFound
	}

	return e.value, nil
}

// Set stores value; a zero ttl keeps it until deleted.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return ErrInvalidKey
	}

	e := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}

	m.entries.Store(key, e)
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.entries.Delete(key)
	return nil
}

func (m *Memory) Close() error {
	m.entries.Clear()
	return nil
}
