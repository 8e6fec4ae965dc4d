package cachestore

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// MemoryStore is a process-local cache bounded by entry count. Eviction is
// LRU; Purge drops everything.
type MemoryStore struct {
	entries *lru.Cache[string, []byte]
	codec   *Codec
}

// NewMemoryStore creates a bounded in-memory store.
func NewMemoryStore(maxEntries int, codec *Codec) (*MemoryStore, error) {
	c, err := lru.New[string, []byte](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("memory store: %w", err)
	}
	return &MemoryStore{entries: c, codec: codec}, nil
}

func (s *MemoryStore) Get(ctx context.Context, key string) (*Entry, error) {
	data, ok := s.entries.Get(key)
	if !ok {
		return nil, nil
	}
	return s.codec.Decode(data)
}

func (s *MemoryStore) Put(ctx context.Context, key string, entry *Entry) error {
	data, err := s.codec.Encode(entry)
	if err != nil {
		return err
	}
	s.entries.Add(key, data)
	return nil
}

func (s *MemoryStore) Purge(ctx context.Context) error {
	s.entries.Purge()
	return nil
}
