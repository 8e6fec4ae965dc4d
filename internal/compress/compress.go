// Package compress provides the value codecs used by the cache stores.
//
// A Compressor's ID is part of every cache key, so switching codecs moves the
// key namespace and stale entries written by a previous codec are never
// decoded.
package compress

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

// Compressor is a reversible byte transform applied to serialized cache
// entries before they reach a store.
type Compressor interface {
	// ID is a short stable identifier included in cache keys.
	ID() string
	Encode(data []byte) ([]byte, error)
	Decode(data []byte) ([]byte, error)
}

// ByID returns the compressor registered under id.
func ByID(id string) (Compressor, error) {
	switch id {
	case "raw":
		return Raw{}, nil
	case "deflate":
		return Deflate{}, nil
	default:
		return nil, fmt.Errorf("unknown compressor: %s", id)
	}
}

// Raw is the identity transform.
type Raw struct{}

func (Raw) ID() string { return "raw" }

func (Raw) Encode(data []byte) ([]byte, error) { return data, nil }

func (Raw) Decode(data []byte) ([]byte, error) { return data, nil }

// Deflate compresses values with DEFLATE at the default level.
type Deflate struct{}

func (Deflate) ID() string { return "deflate" }

func (Deflate) Encode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, fmt.Errorf("deflate writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("deflate write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("deflate close: %w", err)
	}
	return buf.Bytes(), nil
}

func (Deflate) Decode(data []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("inflate: %w", err)
	}
	return out, nil
}
