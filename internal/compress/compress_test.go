package compress

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByID(t *testing.T) {
	for _, id := range []string{"raw", "deflate"} {
		c, err := ByID(id)
		require.NoError(t, err)
		assert.Equal(t, id, c.ID())
	}

	_, err := ByID("gzip")
	assert.Error(t, err)
}

func TestRoundTrip(t *testing.T) {
	payloads := [][]byte{
		nil,
		[]byte(""),
		[]byte("SELECT ?s WHERE { ?s ?p ?o }"),
		bytes.Repeat([]byte("abcdefgh"), 4096),
	}

	for _, id := range []string{"raw", "deflate"} {
		c, err := ByID(id)
		require.NoError(t, err)
		for _, p := range payloads {
			enc, err := c.Encode(p)
			require.NoError(t, err)
			dec, err := c.Decode(enc)
			require.NoError(t, err)
			assert.Equal(t, len(p), len(dec))
			assert.True(t, bytes.Equal(p, dec))
		}
	}
}

func TestDeflateShrinksRepetitiveInput(t *testing.T) {
	in := bytes.Repeat([]byte("binding"), 1024)
	enc, err := Deflate{}.Encode(in)
	require.NoError(t, err)
	assert.Less(t, len(enc), len(in))
}
