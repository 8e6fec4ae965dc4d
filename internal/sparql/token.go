package sparql

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// tokKind classifies lexer output. The lexer is deliberately permissive: it
// recognises the token shapes of the SPARQL 1.1 grammar without enforcing
// where they may appear. Structure is checked by Parse.
type tokKind int

const (
	tokWord   tokKind = iota // bare word: keyword, function name, "a"
	tokName                  // prefixed name or blank node label (contains ':')
	tokVar                   // ?x or $x
	tokIRI                   // <...>
	tokString                // quoted literal, quotes included
	tokNumber                // integer, decimal or double
	tokLang                  // @en, @en-GB
	tokPunct                 // everything else: braces, operators, dots
)

type token struct {
	kind tokKind
	text string
}

// ParseError is surfaced to clients with the lexer/parser message attached.
type ParseError struct {
	Msg string
}

func (e *ParseError) Error() string { return e.Msg }

func parseErrorf(format string, args ...any) error {
	return &ParseError{Msg: fmt.Sprintf(format, args...)}
}

type scanner struct {
	src string
	pos int
}

// skipTrivia advances past whitespace and '#' comments.
func (s *scanner) skipTrivia() {
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			s.pos++
		case c == '#':
			for s.pos < len(s.src) && s.src[s.pos] != '\n' {
				s.pos++
			}
		default:
			return
		}
	}
}

// next returns the next token plus its byte offsets in src.
// At end of input it returns ok=false.
func (s *scanner) next() (tok token, start, end int, ok bool, err error) {
	s.skipTrivia()
	if s.pos >= len(s.src) {
		return token{}, s.pos, s.pos, false, nil
	}
	start = s.pos
	c := s.src[s.pos]

	switch {
	case c == '<':
		if t, n, isIRI := s.tryIRI(); isIRI {
			s.pos = n
			return t, start, s.pos, true, nil
		}
		// Comparison operator.
		if s.peekAt(s.pos+1) == '=' {
			s.pos += 2
			return token{tokPunct, "<="}, start, s.pos, true, nil
		}
		s.pos++
		return token{tokPunct, "<"}, start, s.pos, true, nil

	case c == '"' || c == '\'':
		t, err := s.lexString()
		if err != nil {
			return token{}, start, s.pos, false, err
		}
		return t, start, s.pos, true, nil

	case c == '?' || c == '$':
		if t, isVar := s.lexVar(); isVar {
			return t, start, s.pos, true, nil
		}
		// Bare '?' is the zero-or-one property path modifier.
		s.pos++
		return token{tokPunct, "?"}, start, s.pos, true, nil

	case c == '@':
		t, err := s.lexLangTag()
		if err != nil {
			return token{}, start, s.pos, false, err
		}
		return t, start, s.pos, true, nil

	case isDigit(c),
		c == '.' && isDigit(s.peekAt(s.pos+1)),
		(c == '+' || c == '-') && (isDigit(s.peekAt(s.pos+1)) ||
			(s.peekAt(s.pos+1) == '.' && isDigit(s.peekAt(s.pos+2)))):
		// The grammar lexes a leading sign into the numeric token
		// (NumericLiteralPositive/Negative), so "-5" must stay one token.
		return s.lexNumber(), start, s.pos, true, nil

	case c == '^':
		if s.peekAt(s.pos+1) == '^' {
			s.pos += 2
			return token{tokPunct, "^^"}, start, s.pos, true, nil
		}
		s.pos++
		return token{tokPunct, "^"}, start, s.pos, true, nil

	case c == '&' && s.peekAt(s.pos+1) == '&':
		s.pos += 2
		return token{tokPunct, "&&"}, start, s.pos, true, nil

	case c == '|' && s.peekAt(s.pos+1) == '|':
		s.pos += 2
		return token{tokPunct, "||"}, start, s.pos, true, nil

	case (c == '!' || c == '>' || c == '=') && s.peekAt(s.pos+1) == '=':
		s.pos += 2
		return token{tokPunct, s.src[start : start+2]}, start, s.pos, true, nil

	case strings.ContainsRune("(){}[],;.*/+-=!>|&", rune(c)):
		s.pos++
		return token{tokPunct, string(c)}, start, s.pos, true, nil
	}

	if t, isName := s.lexName(); isName {
		return t, start, s.pos, true, nil
	}

	r, _ := utf8.DecodeRuneInString(s.src[s.pos:])
	return token{}, start, s.pos, false, parseErrorf("unexpected character %q at offset %d", r, s.pos)
}

func (s *scanner) peekAt(i int) byte {
	if i < len(s.src) {
		return s.src[i]
	}
	return 0
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// tryIRI scans an IRIREF from s.pos. IRIs may not contain whitespace, angle
// brackets, quotes, braces, carets or control characters; hitting one of
// those means the '<' was an operator instead.
func (s *scanner) tryIRI() (token, int, bool) {
	for i := s.pos + 1; i < len(s.src); i++ {
		c := s.src[i]
		switch {
		case c == '>':
			return token{tokIRI, s.src[s.pos : i+1]}, i + 1, true
		case c <= ' ' || c == '<' || c == '"' || c == '{' || c == '}' || c == '|' || c == '^' || c == '\\' || c == '`':
			return token{}, 0, false
		}
	}
	return token{}, 0, false
}

func (s *scanner) lexString() (token, error) {
	start := s.pos
	quote := s.src[s.pos]
	long := strings.HasPrefix(s.src[s.pos:], strings.Repeat(string(quote), 3))

	if long {
		s.pos += 3
		closer := strings.Repeat(string(quote), 3)
		idx := strings.Index(s.src[s.pos:], closer)
		if idx < 0 {
			return token{}, parseErrorf("unterminated long string at offset %d", start)
		}
		s.pos += idx + 3
		return token{tokString, s.src[start:s.pos]}, nil
	}

	s.pos++
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch c {
		case '\\':
			s.pos += 2
		case quote:
			s.pos++
			return token{tokString, s.src[start:s.pos]}, nil
		case '\n':
			return token{}, parseErrorf("unterminated string at offset %d", start)
		default:
			s.pos++
		}
	}
	return token{}, parseErrorf("unterminated string at offset %d", start)
}

func (s *scanner) lexVar() (token, bool) {
	start := s.pos
	i := s.pos + 1
	for i < len(s.src) {
		r, n := utf8.DecodeRuneInString(s.src[i:])
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			i += n
			continue
		}
		break
	}
	if i == s.pos+1 {
		return token{}, false
	}
	s.pos = i
	return token{tokVar, s.src[start:s.pos]}, true
}

func (s *scanner) lexLangTag() (token, error) {
	start := s.pos
	i := s.pos + 1
	for i < len(s.src) {
		c := s.src[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '-' {
			i++
			continue
		}
		break
	}
	if i == s.pos+1 {
		return token{}, parseErrorf("dangling '@' at offset %d", start)
	}
	s.pos = i
	return token{tokLang, s.src[start:s.pos]}, nil
}

func (s *scanner) lexNumber() token {
	start := s.pos
	if c := s.peekAt(s.pos); c == '+' || c == '-' {
		s.pos++
	}
	digits := func() {
		for s.pos < len(s.src) && isDigit(s.src[s.pos]) {
			s.pos++
		}
	}
	digits()
	if s.peekAt(s.pos) == '.' && isDigit(s.peekAt(s.pos+1)) {
		s.pos++
		digits()
	}
	if c := s.peekAt(s.pos); c == 'e' || c == 'E' {
		next := s.peekAt(s.pos + 1)
		if isDigit(next) || ((next == '+' || next == '-') && isDigit(s.peekAt(s.pos+2))) {
			s.pos++
			if next == '+' || next == '-' {
				s.pos++
			}
			digits()
		}
	}
	return token{tokNumber, s.src[start:s.pos]}
}

// lexName scans a bare word, prefixed name or blank node label. A '.' is part
// of the name only when followed by another name character, so the statement
// terminator never gets swallowed.
func (s *scanner) lexName() (token, bool) {
	start := s.pos
	i := s.pos
	for i < len(s.src) {
		r, n := utf8.DecodeRuneInString(s.src[i:])
		if r == '_' || r == '-' || r == ':' || r == '%' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			i += n
			continue
		}
		if r == '.' && i+n < len(s.src) {
			nr, _ := utf8.DecodeRuneInString(s.src[i+n:])
			if nr == '_' || unicode.IsLetter(nr) || unicode.IsDigit(nr) {
				i += n
				continue
			}
		}
		break
	}
	if i == start {
		return token{}, false
	}
	s.pos = i
	text := s.src[start:i]
	if strings.ContainsRune(text, ':') {
		return token{tokName, text}, true
	}
	return token{tokWord, text}, true
}

// lexAll tokenizes src completely.
func lexAll(src string) ([]token, error) {
	s := &scanner{src: src}
	var out []token
	for {
		t, _, _, ok, err := s.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, t)
	}
}
