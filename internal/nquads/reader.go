// Package nquads reads N-Quads documents line by line into quads. N-Triples
// input is accepted as well; its statements land in the default graph.
package nquads

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aleksaelezovic/sparqlexec/pkg/rdf"
	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/iter"
)

// SyntaxError reports a malformed statement.
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// Reader streams the statements of a document. It implements
// iter.Iteration[*rdf.Quad].
type Reader struct {
	*iter.Lookahead[*rdf.Quad]
	scanner *bufio.Scanner
	line    int
}

// NewReader reads statements from r. Closing the reader closes r if it is
// an io.Closer.
func NewReader(r io.Reader) *Reader {
	rd := &Reader{scanner: bufio.NewScanner(r)}
	rd.scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	rd.Lookahead = iter.NewLookahead(rd.fetch, func() error {
		if c, ok := r.(io.Closer); ok {
			return c.Close()
		}
		return nil
	})
	return rd
}

func (rd *Reader) fetch() (*rdf.Quad, bool, error) {
	for rd.scanner.Scan() {
		rd.line++
		q, err := parseLine(rd.scanner.Text())
		if err != nil {
			return nil, false, &SyntaxError{Line: rd.line, Msg: err.Error()}
		}
		if q != nil {
			return q, true, nil
		}
	}
	if err := rd.scanner.Err(); err != nil {
		return nil, false, fmt.Errorf("reading n-quads: %w", err)
	}
	return nil, false, nil
}

// ReadAll parses a whole document.
func ReadAll(r io.Reader) ([]*rdf.Quad, error) {
	return iter.Collect[*rdf.Quad](NewReader(r))
}

// lexer walks one statement.
type lexer struct {
	s   string
	pos int
}

// parseLine parses one statement, or returns nil for blank and comment
// lines.
func parseLine(line string) (*rdf.Quad, error) {
	l := &lexer{s: line}
	l.skipSpace()
	if l.done() || l.peek() == '#' {
		return nil, nil
	}

	subject, err := l.term()
	if err != nil {
		return nil, fmt.Errorf("subject: %w", err)
	}
	if _, ok := subject.(*rdf.Literal); ok {
		return nil, fmt.Errorf("subject: literal not allowed")
	}
	predicate, err := l.term()
	if err != nil {
		return nil, fmt.Errorf("predicate: %w", err)
	}
	if _, ok := predicate.(*rdf.NamedNode); !ok {
		return nil, fmt.Errorf("predicate: IRI expected")
	}
	object, err := l.term()
	if err != nil {
		return nil, fmt.Errorf("object: %w", err)
	}

	var graph rdf.Term
	if !l.done() && l.peek() != '.' {
		if graph, err = l.term(); err != nil {
			return nil, fmt.Errorf("graph: %w", err)
		}
		if _, ok := graph.(*rdf.Literal); ok {
			return nil, fmt.Errorf("graph: literal not allowed")
		}
	}

	if l.done() || l.peek() != '.' {
		return nil, fmt.Errorf("expected '.' at end of statement")
	}
	l.pos++
	l.skipSpace()
	if !l.done() && l.peek() != '#' {
		return nil, fmt.Errorf("unexpected %q after statement", l.s[l.pos:])
	}
	return rdf.NewQuad(subject, predicate, object, graph), nil
}

func (l *lexer) done() bool { return l.pos >= len(l.s) }

func (l *lexer) peek() byte { return l.s[l.pos] }

func (l *lexer) skipSpace() {
	for !l.done() && (l.peek() == ' ' || l.peek() == '\t') {
		l.pos++
	}
}

// term reads one term and the space after it.
func (l *lexer) term() (rdf.Term, error) {
	if l.done() {
		return nil, fmt.Errorf("unexpected end of line")
	}
	var t rdf.Term
	var err error
	switch l.peek() {
	case '<':
		var iri string
		if iri, err = l.iri(); err == nil {
			t = rdf.NewNamedNode(iri)
		}
	case '_':
		t, err = l.blankNode()
	case '"':
		t, err = l.literal()
	default:
		err = fmt.Errorf("unexpected character %q at column %d", l.peek(), l.pos+1)
	}
	if err != nil {
		return nil, err
	}
	l.skipSpace()
	return t, nil
}

func (l *lexer) iri() (string, error) {
	l.pos++ // <
	end := strings.IndexByte(l.s[l.pos:], '>')
	if end < 0 {
		return "", fmt.Errorf("unclosed IRI")
	}
	raw := l.s[l.pos : l.pos+end]
	l.pos += end + 1
	if strings.ContainsAny(raw, " \t\"{}|^`") {
		return "", fmt.Errorf("invalid character in IRI <%s>", raw)
	}
	return unescape(raw, false)
}

func (l *lexer) blankNode() (rdf.Term, error) {
	if !strings.HasPrefix(l.s[l.pos:], "_:") {
		return nil, fmt.Errorf("expected '_:' at start of blank node")
	}
	l.pos += 2
	start := l.pos
	for !l.done() {
		ch := l.peek()
		if ch == ' ' || ch == '\t' || ch == '<' || ch == '"' {
			break
		}
		l.pos++
	}
	// A label never ends with '.', which terminates the statement.
	for l.pos > start && l.s[l.pos-1] == '.' {
		l.pos--
	}
	if l.pos == start {
		return nil, fmt.Errorf("empty blank node label")
	}
	return rdf.NewBlankNode(l.s[start:l.pos]), nil
}

func (l *lexer) literal() (rdf.Term, error) {
	l.pos++ // "
	start := l.pos
	for !l.done() && l.peek() != '"' {
		if l.peek() == '\\' {
			l.pos++
		}
		l.pos++
	}
	if l.done() {
		return nil, fmt.Errorf("unclosed string literal")
	}
	value, err := unescape(l.s[start:l.pos], true)
	if err != nil {
		return nil, err
	}
	l.pos++ // "

	switch {
	case strings.HasPrefix(l.s[l.pos:], "@"):
		l.pos++
		start := l.pos
		for !l.done() && (isAlnum(l.peek()) || l.peek() == '-') {
			l.pos++
		}
		if l.pos == start {
			return nil, fmt.Errorf("empty language tag")
		}
		return rdf.NewLiteralWithLanguage(value, strings.ToLower(l.s[start:l.pos])), nil
	case strings.HasPrefix(l.s[l.pos:], "^^<"):
		l.pos += 2
		dt, err := l.iri()
		if err != nil {
			return nil, fmt.Errorf("datatype: %w", err)
		}
		return rdf.NewLiteralWithDatatype(value, rdf.NewNamedNode(dt)), nil
	default:
		return rdf.NewLiteral(value), nil
	}
}

func isAlnum(ch byte) bool {
	return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch >= '0' && ch <= '9'
}

// unescape resolves \u and \U escapes, and in strings the character
// escapes as well.
func unescape(s string, str bool) (string, error) {
	if !strings.Contains(s, `\`) {
		return s, nil
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' {
			b.WriteByte(s[i])
			continue
		}
		i++
		if i >= len(s) {
			return "", fmt.Errorf("dangling escape")
		}
		switch c := s[i]; {
		case c == 'u' || c == 'U':
			n := 4
			if c == 'U' {
				n = 8
			}
			if i+1+n > len(s) {
				return "", fmt.Errorf("short \\%c escape", c)
			}
			r, err := strconv.ParseUint(s[i+1:i+1+n], 16, 32)
			if err != nil {
				return "", fmt.Errorf("invalid \\%c escape: %w", c, err)
			}
			b.WriteRune(rune(r)) // #nosec G115 - parsed with bitSize 32
			i += n
		case str && c == 't':
			b.WriteByte('\t')
		case str && c == 'n':
			b.WriteByte('\n')
		case str && c == 'r':
			b.WriteByte('\r')
		case str && c == 'b':
			b.WriteByte('\b')
		case str && c == 'f':
			b.WriteByte('\f')
		case str && (c == '"' || c == '\'' || c == '\\'):
			b.WriteByte(c)
		default:
			return "", fmt.Errorf("invalid escape \\%c", c)
		}
	}
	return b.String(), nil
}
