package sparql

import (
	"errors"
	"strconv"
	"strings"
)

// ErrNotAQuery is returned for update and management operations, which the
// proxy never forwards.
var ErrNotAQuery = errors.New("query type not allowed")

// Form is the operation form of an admitted query.
type Form string

const (
	FormSelect    Form = "SELECT"
	FormAsk       Form = "ASK"
	FormConstruct Form = "CONSTRUCT"
	FormDescribe  Form = "DESCRIBE"
)

// updateKeywords start SPARQL Update operations (and WITH, which only occurs
// in updates). Any of these as the first keyword rejects the request.
var updateKeywords = map[string]bool{
	"INSERT": true, "DELETE": true, "LOAD": true, "CLEAR": true,
	"CREATE": true, "DROP": true, "COPY": true, "MOVE": true,
	"ADD": true, "WITH": true,
}

// Query is one parsed, canonicalizable SPARQL query.
//
// head holds the query body up to (but excluding) any top-level LIMIT/OFFSET
// clauses; tail holds the trailing VALUES clause when present. Canonical and
// Rewrite re-assemble head + modifiers + tail, which is what makes LIMIT and
// OFFSET injection safe for paging.
type Query struct {
	Raw      string
	Preamble string
	Form     Form

	head []token
	tail []token

	limit      *int64
	offset     *int64
	hasOrderBy bool
}

// Parse splits the preamble, tokenizes the remainder, gates the operation
// type and extracts the top-level solution modifiers.
func Parse(raw string) (*Query, error) {
	preamble, rest := splitPreamble(raw)

	toks, err := lexAll(rest)
	if err != nil {
		return nil, err
	}
	if len(toks) == 0 {
		return nil, parseErrorf("empty query")
	}

	form, err := queryForm(toks[0])
	if err != nil {
		return nil, err
	}
	if err := checkBalanced(toks); err != nil {
		return nil, err
	}

	q := &Query{Raw: raw, Preamble: preamble, Form: form}
	if err := q.extractModifiers(toks); err != nil {
		return nil, err
	}
	return q, nil
}

// splitPreamble consumes leading PREFIX/BASE declarations and returns them
// verbatim along with the remaining text.
func splitPreamble(raw string) (preamble, rest string) {
	s := &scanner{src: raw}
	end := 0
	for {
		mark := s.pos
		t, _, _, ok, err := s.next()
		if err != nil || !ok || t.kind != tokWord {
			break
		}
		switch strings.ToUpper(t.text) {
		case "PREFIX":
			ns, _, _, ok1, err1 := s.next()
			iri, _, e, ok2, err2 := s.next()
			if err1 != nil || err2 != nil || !ok1 || !ok2 ||
				ns.kind != tokName || !strings.HasSuffix(ns.text, ":") || iri.kind != tokIRI {
				s.pos = mark
				goto done
			}
			end = e
		case "BASE":
			iri, _, e, ok1, err1 := s.next()
			if err1 != nil || !ok1 || iri.kind != tokIRI {
				s.pos = mark
				goto done
			}
			end = e
		default:
			goto done
		}
	}
done:
	return strings.TrimSpace(raw[:end]), raw[end:]
}

func queryForm(first token) (Form, error) {
	if first.kind != tokWord {
		return "", parseErrorf("expected a query form, got %q", first.text)
	}
	switch strings.ToUpper(first.text) {
	case "SELECT":
		return FormSelect, nil
	case "ASK":
		return FormAsk, nil
	case "CONSTRUCT":
		return FormConstruct, nil
	case "DESCRIBE":
		return FormDescribe, nil
	}
	if updateKeywords[strings.ToUpper(first.text)] {
		return "", ErrNotAQuery
	}
	return "", parseErrorf("unknown query form %q", first.text)
}

func checkBalanced(toks []token) error {
	var stack []string
	pairs := map[string]string{")": "(", "]": "[", "}": "{"}
	for _, t := range toks {
		if t.kind != tokPunct {
			continue
		}
		switch t.text {
		case "(", "[", "{":
			stack = append(stack, t.text)
		case ")", "]", "}":
			if len(stack) == 0 || stack[len(stack)-1] != pairs[t.text] {
				return parseErrorf("unbalanced %q", t.text)
			}
			stack = stack[:len(stack)-1]
		}
	}
	if len(stack) > 0 {
		return parseErrorf("unclosed %q", stack[len(stack)-1])
	}
	return nil
}

// extractModifiers removes top-level LIMIT/OFFSET clauses into q.limit and
// q.offset, records ORDER BY presence, and splits off the trailing VALUES
// clause. Depth tracking keeps subquery modifiers (always inside braces)
// untouched.
func (q *Query) extractModifiers(toks []token) error {
	depth := 0
	valuesAt := -1
	type clause struct{ from, to int }
	var drop []clause

	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if t.kind == tokPunct {
			switch t.text {
			case "(", "[", "{":
				depth++
			case ")", "]", "}":
				depth--
			}
			continue
		}
		if depth != 0 || t.kind != tokWord {
			continue
		}
		switch strings.ToUpper(t.text) {
		case "LIMIT", "OFFSET":
			if i+1 >= len(toks) || toks[i+1].kind != tokNumber {
				return parseErrorf("%s requires an integer argument", strings.ToUpper(t.text))
			}
			n, err := strconv.ParseInt(toks[i+1].text, 10, 64)
			if err != nil || n < 0 {
				return parseErrorf("%s requires a non-negative integer, got %q", strings.ToUpper(t.text), toks[i+1].text)
			}
			if strings.ToUpper(t.text) == "LIMIT" {
				q.limit = &n
			} else {
				q.offset = &n
			}
			drop = append(drop, clause{i, i + 2})
			i++
		case "ORDER":
			if i+1 < len(toks) && toks[i+1].kind == tokWord && strings.EqualFold(toks[i+1].text, "BY") {
				q.hasOrderBy = true
			}
		case "VALUES":
			if valuesAt < 0 {
				valuesAt = i
			}
		}
	}

	keep := func(i int) bool {
		for _, c := range drop {
			if i >= c.from && i < c.to {
				return false
			}
		}
		return true
	}
	for i, t := range toks {
		if !keep(i) {
			continue
		}
		if valuesAt >= 0 && i >= valuesAt {
			q.tail = append(q.tail, t)
		} else {
			q.head = append(q.head, t)
		}
	}
	return nil
}

// Limit returns the user LIMIT when present.
func (q *Query) Limit() (int64, bool) {
	if q.limit == nil {
		return 0, false
	}
	return *q.limit, true
}

// Offset returns the user OFFSET, zero when absent.
func (q *Query) Offset() int64 {
	if q.offset == nil {
		return 0
	}
	return *q.offset
}

// HasOrderBy reports whether the query carries a top-level ORDER BY.
func (q *Query) HasOrderBy() bool { return q.hasOrderBy }

// IsSelect reports whether the query is a SELECT.
func (q *Query) IsSelect() bool { return q.Form == FormSelect }
