// Package sparql normalizes SPARQL queries for cache keying and rewrites
// SELECT queries for paged execution.
package sparql

import (
	"crypto/md5"
	"encoding/hex"
)

// DefaultAccept is the media type assumed when a request carries no Accept
// header, and the one forced on paged sub-queries.
const DefaultAccept = "application/sparql-results+json"

// Normalized is a query bound to its accept type, ready for cache lookup.
type Normalized struct {
	*Query
	Accept      string
	Fingerprint string
}

// Normalize parses raw, canonicalizes it and computes the fingerprint.
// The fingerprint covers the accept type so a JSON result is never served
// to a client that negotiated XML.
func Normalize(raw, accept string) (*Normalized, error) {
	if accept == "" {
		accept = DefaultAccept
	}
	q, err := Parse(raw)
	if err != nil {
		return nil, err
	}

	h := md5.New()
	h.Write([]byte(q.Canonical()))
	h.Write([]byte{0})
	h.Write([]byte(accept))

	return &Normalized{
		Query:       q,
		Accept:      accept,
		Fingerprint: hex.EncodeToString(h.Sum(nil)),
	}, nil
}

// CacheKey namespaces the fingerprint by the value codec.
func (n *Normalized) CacheKey(compressorID string) string {
	return n.Fingerprint + "." + compressorID
}
