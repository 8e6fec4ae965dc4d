package sparql

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Forms(t *testing.T) {
	cases := map[string]Form{
		"SELECT ?s WHERE { ?s ?p ?o }":          FormSelect,
		"select ?s where { ?s ?p ?o }":          FormSelect,
		"ASK { ?s ?p ?o }":                      FormAsk,
		"CONSTRUCT { ?s ?p ?o } WHERE { ?s ?p ?o }": FormConstruct,
		"DESCRIBE <http://example.org/resource>":    FormDescribe,
	}
	for raw, form := range cases {
		q, err := Parse(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, form, q.Form, raw)
	}
}

func TestParse_RejectsUpdates(t *testing.T) {
	updates := []string{
		"INSERT DATA { <a> <b> <c> }",
		"DELETE WHERE { ?s ?p ?o }",
		"LOAD <http://example.org/graph>",
		"CLEAR ALL",
		"DROP GRAPH <http://example.org/g>",
		"WITH <http://example.org/g> DELETE { ?s ?p ?o } WHERE { ?s ?p ?o }",
	}
	for _, raw := range updates {
		_, err := Parse(raw)
		assert.ErrorIs(t, err, ErrNotAQuery, raw)
	}
}

func TestParse_Errors(t *testing.T) {
	bad := []string{
		"",
		"   # only a comment",
		"SELEKT ?x WHERE { ?x ?p ?o }",
		"SELECT ?s WHERE { ?s ?p ?o",
		"SELECT ?s WHERE { ?s ?p ?o } }",
		"SELECT ?s WHERE { ?s ?p \"unterminated }",
		"SELECT ?s WHERE { ?s ?p ?o } LIMIT ?x",
	}
	for _, raw := range bad {
		_, err := Parse(raw)
		require.Error(t, err, raw)
		var pe *ParseError
		assert.True(t, errors.As(err, &pe), "want ParseError for %q, got %v", raw, err)
	}
}

func TestParse_Preamble(t *testing.T) {
	raw := "PREFIX foaf: <http://xmlns.com/foaf/0.1/>\nBASE <http://example.org/>\nSELECT ?name WHERE { ?x foaf:name ?name }"
	q, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "PREFIX foaf: <http://xmlns.com/foaf/0.1/>\nBASE <http://example.org/>", q.Preamble)
}

func TestParse_Modifiers(t *testing.T) {
	q, err := Parse("SELECT ?s WHERE { ?s ?p ?o } ORDER BY ?s LIMIT 10 OFFSET 5")
	require.NoError(t, err)

	limit, ok := q.Limit()
	require.True(t, ok)
	assert.Equal(t, int64(10), limit)
	assert.Equal(t, int64(5), q.Offset())
	assert.True(t, q.HasOrderBy())
}

func TestParse_SubqueryLimitUntouched(t *testing.T) {
	q, err := Parse("SELECT ?s WHERE { { SELECT ?s WHERE { ?s ?p ?o } LIMIT 3 } }")
	require.NoError(t, err)

	_, ok := q.Limit()
	assert.False(t, ok, "inner LIMIT must not be hoisted")
	assert.Contains(t, q.Canonical(), "LIMIT 3")
}

func TestParse_NoModifiers(t *testing.T) {
	q, err := Parse("SELECT ?s WHERE { ?s ?p ?o }")
	require.NoError(t, err)

	_, ok := q.Limit()
	assert.False(t, ok)
	assert.Equal(t, int64(0), q.Offset())
	assert.False(t, q.HasOrderBy())
}

func TestParse_CommentsAndIRIs(t *testing.T) {
	raw := "# leading comment\nSELECT ?s # trailing comment\nWHERE { ?s ?p <http://example.org/o#frag> }"
	q, err := Parse(raw)
	require.NoError(t, err)
	assert.Contains(t, q.Canonical(), "<http://example.org/o#frag>")
	assert.NotContains(t, q.Canonical(), "comment")
}

func TestParse_FilterLessThanIsNotIRI(t *testing.T) {
	q, err := Parse("SELECT ?s WHERE { ?s ?p ?o FILTER(?o < 10) }")
	require.NoError(t, err)
	assert.Contains(t, q.Canonical(), "< 10")
}
