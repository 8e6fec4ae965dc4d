// Package cachestore provides the keyed blob store for query results.
//
// Stores move opaque bytes; serialization of entries and value compression
// live in the shared codec so each variant stays small.
package cachestore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/graphfront/sparql-proxy/internal/compress"
)

// Entry is one cached response.
type Entry struct {
	ContentType string `json:"contentType"`
	Body        []byte `json:"body"`
}

// Store is a keyed blob store. Get returns (nil, nil) on a miss.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Put(ctx context.Context, key string, entry *Entry) error
	Purge(ctx context.Context) error
}

// Codec turns entries into store bytes and back, applying the compressor.
type Codec struct {
	comp compress.Compressor
}

// NewCodec wraps a compressor.
func NewCodec(comp compress.Compressor) *Codec {
	return &Codec{comp: comp}
}

// Encode serializes and compresses an entry.
func (c *Codec) Encode(entry *Entry) ([]byte, error) {
	raw, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("serialize entry: %w", err)
	}
	out, err := c.comp.Encode(raw)
	if err != nil {
		return nil, fmt.Errorf("compress entry: %w", err)
	}
	return out, nil
}

// Decode inverts Encode.
func (c *Codec) Decode(data []byte) (*Entry, error) {
	raw, err := c.comp.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decompress entry: %w", err)
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("deserialize entry: %w", err)
	}
	return &entry, nil
}
