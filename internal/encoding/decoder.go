package encoding

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/aleksaelezovic/sparqlexec/pkg/rdf"
	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/binding"
	"github.com/golang/snappy"
)

// ErrTruncated is returned when an encoding ends in the middle of a term.
var ErrTruncated = errors.New("truncated encoding")

var datatypesByCode = func() map[rdf.TermType]*rdf.NamedNode {
	m := make(map[rdf.TermType]*rdf.NamedNode, len(datatypeCodes))
	for iri, code := range datatypeCodes {
		m[code] = rdf.NewNamedNode(iri)
	}
	return m
}()

// TermDecoder reads the encodings produced by TermEncoder.
type TermDecoder struct {
	compressed bool
}

// NewTermDecoder creates a new term decoder
func NewTermDecoder() *TermDecoder {
	return &TermDecoder{}
}

// NewDecompressingDecoder reads solutions written by NewCompressingEncoder.
func NewDecompressingDecoder() *TermDecoder {
	return &TermDecoder{compressed: true}
}

// DecodeTerm decodes one term from the front of buf and returns it with
// the number of bytes consumed. An unbound slot decodes as nil.
func (d *TermDecoder) DecodeTerm(buf []byte) (rdf.Term, int, error) {
	if len(buf) == 0 {
		return nil, 0, ErrTruncated
	}
	termType := rdf.TermType(buf[0])
	pos := 1

	if termType == termTypeUnbound {
		return nil, pos, nil
	}

	value, n, err := readString(buf[pos:])
	if err != nil {
		return nil, 0, err
	}
	pos += n

	switch termType {
	case rdf.TermTypeNamedNode:
		return rdf.NewNamedNode(value), pos, nil

	case rdf.TermTypeBlankNode:
		return rdf.NewBlankNode(value), pos, nil

	case rdf.TermTypeStringLiteral:
		return rdf.NewLiteral(value), pos, nil

	case rdf.TermTypeLangStringLiteral:
		lang, n, err := readString(buf[pos:])
		if err != nil {
			return nil, 0, err
		}
		return rdf.NewLiteralWithLanguage(value, lang), pos + n, nil

	case rdf.TermTypeTypedLiteral:
		iri, n, err := readString(buf[pos:])
		if err != nil {
			return nil, 0, err
		}
		return rdf.NewLiteralWithDatatype(value, rdf.NewNamedNode(iri)), pos + n, nil

	default:
		dt, ok := datatypesByCode[termType]
		if !ok {
			return nil, 0, fmt.Errorf("unknown term type: %d", termType)
		}
		return rdf.NewLiteralWithDatatype(value, dt), pos, nil
	}
}

// DecodeKey decodes a key written by EncodeKey.
func (d *TermDecoder) DecodeKey(buf []byte) ([]rdf.Term, error) {
	var terms []rdf.Term
	for len(buf) > 0 {
		t, n, err := d.DecodeTerm(buf)
		if err != nil {
			return nil, err
		}
		terms = append(terms, t)
		buf = buf[n:]
	}
	return terms, nil
}

// DecodeSolution decodes a solution written by EncodeSolution.
func (d *TermDecoder) DecodeSolution(buf []byte) (binding.Solution, error) {
	if d.compressed {
		raw, err := snappy.Decode(nil, buf)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress solution: %w", err)
		}
		buf = raw
	}

	count, n := binary.Uvarint(buf)
	if n <= 0 {
		return nil, ErrTruncated
	}
	buf = buf[n:]

	b := binding.NewBuilder()
	for i := uint64(0); i < count; i++ {
		name, n, err := readString(buf)
		if err != nil {
			return nil, err
		}
		buf = buf[n:]

		term, n, err := d.DecodeTerm(buf)
		if err != nil {
			return nil, fmt.Errorf("failed to decode ?%s: %w", name, err)
		}
		buf = buf[n:]
		b.Set(name, term)
	}
	if len(buf) != 0 {
		return nil, fmt.Errorf("%d trailing bytes after solution", len(buf))
	}
	return b.Build(), nil
}

func readString(buf []byte) (string, int, error) {
	size, n := binary.Uvarint(buf)
	if n <= 0 {
		return "", 0, ErrTruncated
	}
	end := n + int(size) // #nosec G115 - bounded by the check below
	if size > uint64(len(buf)) || end > len(buf) {
		return "", 0, ErrTruncated
	}
	return string(buf[n:end]), end, nil
}
