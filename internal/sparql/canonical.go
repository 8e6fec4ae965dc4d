package sparql

import (
	"strconv"
	"strings"
)

// keywords are the case-insensitive words of the SPARQL 1.1 grammar, written
// uppercase in canonical output. "a" and the boolean literals are the only
// bare words excluded: "a" must stay lowercase, booleans canonicalize to
// lowercase.
var keywords = map[string]bool{
	"SELECT": true, "DISTINCT": true, "REDUCED": true, "AS": true,
	"WHERE": true, "FROM": true, "NAMED": true, "ORDER": true, "BY": true,
	"ASC": true, "DESC": true, "LIMIT": true, "OFFSET": true,
	"GROUP": true, "HAVING": true, "VALUES": true, "UNDEF": true,
	"OPTIONAL": true, "FILTER": true, "UNION": true, "MINUS": true,
	"GRAPH": true, "SERVICE": true, "SILENT": true, "BIND": true,
	"NOT": true, "IN": true, "EXISTS": true,
	"ASK": true, "CONSTRUCT": true, "DESCRIBE": true,
	"PREFIX": true, "BASE": true,
	"STR": true, "LANG": true, "LANGMATCHES": true, "DATATYPE": true,
	"BOUND": true, "IRI": true, "URI": true, "BNODE": true, "RAND": true,
	"ABS": true, "CEIL": true, "FLOOR": true, "ROUND": true, "CONCAT": true,
	"STRLEN": true, "UCASE": true, "LCASE": true, "ENCODE_FOR_URI": true,
	"CONTAINS": true, "STRSTARTS": true, "STRENDS": true,
	"STRBEFORE": true, "STRAFTER": true,
	"YEAR": true, "MONTH": true, "DAY": true, "HOURS": true,
	"MINUTES": true, "SECONDS": true, "TIMEZONE": true, "TZ": true,
	"NOW": true, "UUID": true, "STRUUID": true,
	"MD5": true, "SHA1": true, "SHA256": true, "SHA384": true, "SHA512": true,
	"COALESCE": true, "IF": true, "STRLANG": true, "STRDT": true,
	"SAMETERM": true, "ISIRI": true, "ISURI": true, "ISBLANK": true,
	"ISLITERAL": true, "ISNUMERIC": true, "REGEX": true, "SUBSTR": true,
	"REPLACE": true,
	"COUNT": true, "SUM": true, "MIN": true, "MAX": true, "AVG": true,
	"SAMPLE": true, "GROUP_CONCAT": true, "SEPARATOR": true,
}

func canonText(t token) string {
	if t.kind != tokWord {
		return t.text
	}
	if t.text == "a" {
		return "a"
	}
	upper := strings.ToUpper(t.text)
	if keywords[upper] {
		return upper
	}
	if lower := strings.ToLower(t.text); lower == "true" || lower == "false" {
		return lower
	}
	return t.text
}

// needSpace decides whether a separator goes between prev and cur. The rules
// only need to be deterministic and merge-safe; re-lexing the output must
// yield the same token sequence.
func needSpace(prev, cur token) bool {
	if cur.kind == tokLang {
		return false
	}
	if prev.text == "^^" || cur.text == "^^" {
		return false
	}
	switch cur.text {
	case ",", ";", ")", "]":
		return false
	}
	switch prev.text {
	case "(", "[":
		return false
	}
	if cur.text == "(" && prev.kind == tokWord {
		return false
	}
	return true
}

func serialize(toks []token) string {
	var b strings.Builder
	for i, t := range toks {
		if i > 0 && needSpace(toks[i-1], t) {
			b.WriteByte(' ')
		}
		b.WriteString(canonText(t))
	}
	return b.String()
}

func (q *Query) assemble(limit, offset *int64) string {
	toks := make([]token, 0, len(q.head)+len(q.tail)+4)
	toks = append(toks, q.head...)
	if limit != nil {
		toks = append(toks,
			token{tokWord, "LIMIT"},
			token{tokNumber, strconv.FormatInt(*limit, 10)})
	}
	if offset != nil {
		toks = append(toks,
			token{tokWord, "OFFSET"},
			token{tokNumber, strconv.FormatInt(*offset, 10)})
	}
	toks = append(toks, q.tail...)

	body := serialize(toks)
	if q.Preamble == "" {
		return body
	}
	return q.Preamble + "\n" + body
}

// Canonical returns the normalized query text: the verbatim preamble followed
// by the re-serialized body with modifiers in canonical LIMIT-then-OFFSET
// order. Canonical is a fixed point: parsing and canonicalizing its own
// output reproduces it byte for byte.
func (q *Query) Canonical() string {
	return q.assemble(q.limit, q.offset)
}

// Rewrite returns the query text with the given LIMIT and OFFSET in place of
// any user-supplied ones. OFFSET is omitted when zero.
func (q *Query) Rewrite(limit, offset int64) string {
	var off *int64
	if offset > 0 {
		off = &offset
	}
	return q.assemble(&limit, off)
}
