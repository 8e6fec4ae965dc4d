package cachestore

import (
	"fmt"

	"github.com/graphfront/sparql-proxy/internal/compress"
	"github.com/graphfront/sparql-proxy/internal/config"
)

// New selects the store variant from cfg.CacheStore.
func New(cfg *config.Config, comp compress.Compressor) (Store, error) {
	codec := NewCodec(comp)

	switch cfg.CacheStore {
	case "null":
		return NewNullStore(), nil
	case "memory":
		return NewMemoryStore(cfg.MemoryCacheMaxEntries, codec)
	case "file":
		return NewFileStore(cfg.CacheStorePath, codec)
	case "sqlite":
		return OpenSqliteStore(cfg.CacheStorePath+".db", codec)
	default:
		return nil, fmt.Errorf("unknown CACHE_STORE: %s", cfg.CacheStore)
	}
}
