package cachestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore keeps one file per key under a two-level fan-out:
// <root>/<key[0:2]>/<key[2:4]>/<key>. Writes go to a temp file in the final
// directory and are renamed into place so a concurrent reader never observes
// a partial entry.
type FileStore struct {
	root  string
	codec *Codec
}

// NewFileStore creates a filesystem store rooted at root.
func NewFileStore(root string, codec *Codec) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("file store root: %w", err)
	}
	return &FileStore{root: root, codec: codec}, nil
}

func (s *FileStore) path(key string) string {
	if len(key) < 4 {
		return filepath.Join(s.root, key)
	}
	return filepath.Join(s.root, key[0:2], key[2:4], key)
}

func (s *FileStore) Get(ctx context.Context, key string) (*Entry, error) {
	data, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cache file: %w", err)
	}
	return s.codec.Decode(data)
}

func (s *FileStore) Put(ctx context.Context, key string, entry *Entry) error {
	data, err := s.codec.Encode(entry)
	if err != nil {
		return err
	}

	path := s.path(key)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+key+".tmp*")
	if err != nil {
		return fmt.Errorf("cache temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("publish cache file: %w", err)
	}
	return nil
}

func (s *FileStore) Purge(ctx context.Context) error {
	if err := os.RemoveAll(s.root); err != nil {
		return fmt.Errorf("purge cache root: %w", err)
	}
	return os.MkdirAll(s.root, 0o755)
}
