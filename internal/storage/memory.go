package storage

import (
	"context"

	"github.com/patrickmn/go-cache"
)

// Memory keeps values in process memory. Values never expire.
type Memory struct {
	c *cache.Cache
}

var _ Storage = (*Memory)(nil)

// NewMemory returns an empty in-memory medium.
func NewMemory() *Memory {
	return &Memory{c: cache.New(cache.NoExpiration, 0)}
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return "", ErrNotFound
	}
	s, ok := v.(string)
	if !ok {
		return "", ErrNotFound
	}
	return s, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.c.Set(key, value, cache.NoExpiration)
	return nil
}

func (m *Memory) Remove(_ context.Context, key string) error {
	m.c.Delete(key)
	return nil
}

// Len reports how many keys are stored.
func (m *Memory) Len() int { return m.c.ItemCount() }
