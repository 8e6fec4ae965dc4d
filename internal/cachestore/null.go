package cachestore

import "context"

// NullStore caches nothing. It is the default store.
type NullStore struct{}

// NewNullStore returns the no-op store.
func NewNullStore() *NullStore { return &NullStore{} }

func (*NullStore) Get(ctx context.Context, key string) (*Entry, error) { return nil, nil }

func (*NullStore) Put(ctx context.Context, key string, entry *Entry) error { return nil }

func (*NullStore) Purge(ctx context.Context) error { return nil }
