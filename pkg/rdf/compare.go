package rdf

import (
	"cmp"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/zeebo/xxh3"
)

// ErrIncomparable is returned by Compare when two terms have no defined
// SPARQL ordering relative to each other.
var ErrIncomparable = errors.New("incomparable terms")

// NumericKind classifies numeric literals, in promotion order.
type NumericKind int

const (
	NotNumeric NumericKind = iota
	NumericInteger
	NumericDecimal
	NumericFloat
	NumericDouble
)

// literalClass groups literals whose values compare with each other.
type literalClass int

const (
	classNumeric literalClass = iota
	classBoolean
	classDateTime
	classDate
	classString
	classLangString
	classOther
)

// NumericValue extracts the numeric value of a literal. The second result is
// NotNumeric for anything that is not a well-formed numeric literal.
func NumericValue(term Term) (float64, NumericKind) {
	lit, ok := term.(*Literal)
	if !ok || lit.Datatype == nil {
		return 0, NotNumeric
	}

	switch lit.Datatype.IRI {
	case XSDInteger.IRI, XSDInt.IRI, XSDLong.IRI:
		v, err := strconv.ParseInt(strings.TrimSpace(lit.Value), 10, 64)
		if err != nil {
			f, ferr := strconv.ParseFloat(strings.TrimSpace(lit.Value), 64)
			if ferr != nil || f != math.Trunc(f) {
				return 0, NotNumeric
			}
			return f, NumericInteger
		}
		return float64(v), NumericInteger
	case XSDDecimal.IRI:
		v, err := strconv.ParseFloat(strings.TrimSpace(lit.Value), 64)
		if err != nil {
			return 0, NotNumeric
		}
		return v, NumericDecimal
	case XSDFloat.IRI, XSDDouble.IRI:
		v, err := parseXSDFloat(lit.Value)
		if err != nil {
			return 0, NotNumeric
		}
		if lit.Datatype.IRI == XSDFloat.IRI {
			return v, NumericFloat
		}
		return v, NumericDouble
	default:
		return 0, NotNumeric
	}
}

func parseXSDFloat(s string) (float64, error) {
	switch strings.TrimSpace(s) {
	case "INF", "+INF":
		return math.Inf(1), nil
	case "-INF":
		return math.Inf(-1), nil
	case "NaN":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// IsNumeric reports whether term is a well-formed numeric literal.
func IsNumeric(term Term) bool {
	_, kind := NumericValue(term)
	return kind != NotNumeric
}

// IsNumericDatatype reports whether iri names one of the numeric XSD types.
func IsNumericDatatype(iri string) bool {
	switch iri {
	case XSDInteger.IRI, XSDInt.IRI, XSDLong.IRI, XSDDecimal.IRI, XSDFloat.IRI, XSDDouble.IRI:
		return true
	}
	return false
}

// NewNumericLiteral creates a literal of the given numeric kind.
func NewNumericLiteral(value float64, kind NumericKind) *Literal {
	switch kind {
	case NumericInteger:
		return NewIntegerLiteral(int64(value))
	case NumericDecimal:
		return NewDecimalLiteral(value)
	case NumericFloat:
		return NewLiteralWithDatatype(strconv.FormatFloat(value, 'g', -1, 32), XSDFloat)
	default:
		return NewDoubleLiteral(value)
	}
}

func parseDateTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", "2006-01-02Z07:00"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func classify(lit *Literal) literalClass {
	if lit.Language != "" {
		return classLangString
	}
	if lit.Datatype == nil {
		return classString
	}
	switch lit.Datatype.IRI {
	case XSDString.IRI:
		return classString
	case XSDBoolean.IRI:
		if _, err := strconv.ParseBool(lit.Value); err == nil {
			return classBoolean
		}
	case XSDDateTime.IRI:
		if _, ok := parseDateTime(lit.Value); ok {
			return classDateTime
		}
	case XSDDate.IRI:
		if _, ok := parseDate(lit.Value); ok {
			return classDate
		}
	}
	if IsNumeric(lit) {
		return classNumeric
	}
	return classOther
}

// compareSameClass compares two literals of the same class by value.
func compareSameClass(class literalClass, a, b *Literal) int {
	switch class {
	case classNumeric:
		av, _ := NumericValue(a)
		bv, _ := NumericValue(b)
		return cmp.Compare(av, bv)
	case classBoolean:
		av, _ := strconv.ParseBool(a.Value)
		bv, _ := strconv.ParseBool(b.Value)
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		default:
			return 1
		}
	case classDateTime:
		at, _ := parseDateTime(a.Value)
		bt, _ := parseDateTime(b.Value)
		return at.Compare(bt)
	case classDate:
		at, _ := parseDate(a.Value)
		bt, _ := parseDate(b.Value)
		return at.Compare(bt)
	case classLangString:
		if c := strings.Compare(a.Language, b.Language); c != 0 {
			return c
		}
		return strings.Compare(a.Value, b.Value)
	case classString:
		return strings.Compare(a.Value, b.Value)
	default:
		if c := strings.Compare(a.DatatypeIRI(), b.DatatypeIRI()); c != 0 {
			return c
		}
		return strings.Compare(a.Value, b.Value)
	}
}

// Compare compares two terms by value as SPARQL relational operators do.
// It returns ErrIncomparable when the operands have no defined order, for
// example a number and a string, or two IRIs.
func Compare(a, b Term) (int, error) {
	if a == nil || b == nil {
		return 0, ErrIncomparable
	}
	la, aok := a.(*Literal)
	lb, bok := b.(*Literal)
	if aok && bok {
		ca, cb := classify(la), classify(lb)
		if ca == cb && ca != classOther {
			if ca == classLangString && la.Language != lb.Language {
				return 0, ErrIncomparable
			}
			return compareSameClass(ca, la, lb), nil
		}
	}
	if a.Equals(b) {
		return 0, nil
	}
	return 0, ErrIncomparable
}

// ValueEquals reports SPARQL value equality: numerically equal numbers are
// equal even when their lexical forms differ.
func ValueEquals(a, b Term) bool {
	if a == nil || b == nil {
		return a == b
	}
	c, err := Compare(a, b)
	return err == nil && c == 0
}

func termRank(t Term) int {
	switch t.(type) {
	case nil:
		return 0
	case *BlankNode:
		return 1
	case *NamedNode:
		return 2
	case *Literal:
		return 3
	default:
		return 4
	}
}

// OrderCompare defines the total order used by ORDER BY and MIN/MAX:
// unbound (nil) < blank nodes < IRIs < literals. Literals are ordered by
// value class, then value, then lexical form, so that distinct terms never
// compare equal.
func OrderCompare(a, b Term) int {
	ra, rb := termRank(a), termRank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}

	switch ta := a.(type) {
	case nil:
		return 0
	case *BlankNode:
		return strings.Compare(ta.ID, b.(*BlankNode).ID)
	case *NamedNode:
		return strings.Compare(ta.IRI, b.(*NamedNode).IRI)
	case *Literal:
		tb := b.(*Literal)
		ca, cb := classify(ta), classify(tb)
		if ca != cb {
			return cmp.Compare(ca, cb)
		}
		if c := compareSameClass(ca, ta, tb); c != 0 {
			return c
		}
		if c := strings.Compare(ta.DatatypeIRI(), tb.DatatypeIRI()); c != 0 {
			return c
		}
		if c := strings.Compare(ta.Language, tb.Language); c != 0 {
			return c
		}
		return strings.Compare(ta.Value, tb.Value)
	default:
		return strings.Compare(a.String(), b.String())
	}
}

// ValueHash hashes a term consistently with ValueEquals: terms that are
// equal by value hash to the same value.
func ValueHash(t Term) uint64 {
	if t == nil {
		return 0
	}
	if v, kind := NumericValue(t); kind != NotNumeric {
		if v == 0 {
			v = 0 // fold -0
		}
		return xxh3.HashString("n:" + strconv.FormatFloat(v, 'g', -1, 64))
	}
	if lit, ok := t.(*Literal); ok {
		switch classify(lit) {
		case classBoolean:
			b, _ := strconv.ParseBool(lit.Value)
			return xxh3.HashString("b:" + strconv.FormatBool(b))
		case classDateTime:
			ts, _ := parseDateTime(lit.Value)
			return xxh3.HashString("dt:" + strconv.FormatInt(ts.UnixNano(), 10))
		}
	}
	return xxh3.HashString(t.String())
}
