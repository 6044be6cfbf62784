package encoding

import (
	"encoding/binary"
	"fmt"

	"github.com/aleksaelezovic/sparqlexec/pkg/rdf"
	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/binding"
	"github.com/golang/snappy"
)

// termTypeUnbound marks an empty slot in an encoded key.
const termTypeUnbound rdf.TermType = 0

// datatypeCodes maps common datatypes to a type byte so their IRI is not
// repeated in every encoded literal.
var datatypeCodes = map[string]rdf.TermType{
	rdf.XSDInteger.IRI:  rdf.TermTypeIntegerLiteral,
	rdf.XSDDecimal.IRI:  rdf.TermTypeDecimalLiteral,
	rdf.XSDDouble.IRI:   rdf.TermTypeDoubleLiteral,
	rdf.XSDBoolean.IRI:  rdf.TermTypeBooleanLiteral,
	rdf.XSDDateTime.IRI: rdf.TermTypeDateTimeLiteral,
	rdf.XSDDate.IRI:     rdf.TermTypeDateLiteral,
	rdf.XSDTime.IRI:     rdf.TermTypeTimeLiteral,
	rdf.XSDDuration.IRI: rdf.TermTypeDurationLiteral,
}

// TermEncoder writes terms and solutions in a compact, lossless binary
// form. Every term is a type byte followed by length-prefixed strings, so
// concatenated encodings are unambiguous.
type TermEncoder struct {
	compress bool
}

func NewTermEncoder() *TermEncoder {
	return &TermEncoder{}
}

// NewCompressingEncoder returns an encoder whose EncodeSolution output is
// snappy-compressed.
func NewCompressingEncoder() *TermEncoder {
	return &TermEncoder{compress: true}
}

// AppendTerm appends the encoding of term to buf. A nil term encodes as an
// unbound slot.
func (e *TermEncoder) AppendTerm(buf []byte, term rdf.Term) ([]byte, error) {
	switch t := term.(type) {
	case nil:
		return append(buf, byte(termTypeUnbound)), nil
	case *rdf.NamedNode:
		buf = append(buf, byte(rdf.TermTypeNamedNode))
		return appendString(buf, t.IRI), nil
	case *rdf.BlankNode:
		buf = append(buf, byte(rdf.TermTypeBlankNode))
		return appendString(buf, t.ID), nil
	case *rdf.Literal:
		return e.appendLiteral(buf, t), nil
	default:
		return buf, fmt.Errorf("unknown term type: %T", term)
	}
}

func (e *TermEncoder) appendLiteral(buf []byte, lit *rdf.Literal) []byte {
	if lit.Language != "" {
		buf = append(buf, byte(rdf.TermTypeLangStringLiteral))
		buf = appendString(buf, lit.Value)
		return appendString(buf, lit.Language)
	}

	if lit.Datatype == nil || lit.Datatype.IRI == rdf.XSDString.IRI {
		buf = append(buf, byte(rdf.TermTypeStringLiteral))
		return appendString(buf, lit.Value)
	}

	if code, ok := datatypeCodes[lit.Datatype.IRI]; ok {
		buf = append(buf, byte(code))
		return appendString(buf, lit.Value)
	}

	buf = append(buf, byte(rdf.TermTypeTypedLiteral))
	buf = appendString(buf, lit.Value)
	return appendString(buf, lit.Datatype.IRI)
}

func appendString(buf []byte, s string) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

// EncodeKey encodes a fixed sequence of terms, such as grouping values.
// Keys of equal term sequences are byte-identical.
func (e *TermEncoder) EncodeKey(terms ...rdf.Term) ([]byte, error) {
	var buf []byte
	var err error
	for _, t := range terms {
		if buf, err = e.AppendTerm(buf, t); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// EncodeSolution encodes every binding of s in variable-name order.
func (e *TermEncoder) EncodeSolution(s binding.Solution) ([]byte, error) {
	names := s.Names()
	buf := binary.AppendUvarint(nil, uint64(len(names)))
	var err error
	for _, name := range names {
		buf = appendString(buf, name)
		if buf, err = e.AppendTerm(buf, s[name]); err != nil {
			return nil, fmt.Errorf("failed to encode ?%s: %w", name, err)
		}
	}
	if e.compress {
		return snappy.Encode(nil, buf), nil
	}
	return buf, nil
}

// GetTermType extracts the type from an encoded term
func GetTermType(encoded []byte) rdf.TermType {
	if len(encoded) == 0 {
		return termTypeUnbound
	}
	return rdf.TermType(encoded[0])
}
