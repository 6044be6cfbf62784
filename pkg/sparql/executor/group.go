package executor

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/aleksaelezovic/sparqlexec/internal/encoding"
	"github.com/aleksaelezovic/sparqlexec/pkg/rdf"
	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/aggregate"
	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/binding"
	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/collection"
	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/iter"
	"github.com/sirupsen/logrus"
)

// GroupSpec describes a GROUP BY with its aggregates.
type GroupSpec struct {
	Input      Step
	GroupVars  []string
	Aggregates []*aggregate.Spec
}

// groupEntry is the state of one group: the grouping values of the first
// row seen and one collector per aggregate.
type groupEntry struct {
	prototype  binding.Solution
	collectors []*aggregate.Collector
}

type groupIteration struct {
	ctx  context.Context
	ec   *Context
	spec GroupSpec
	in   binding.Solution
	enc  *encoding.TermEncoder

	input  iter.Iteration[binding.Solution]
	groups *collection.Map[*groupEntry]
	seen   *collection.Set
	out    iter.Iteration[*groupEntry]

	filled  bool
	zeroRow bool
}

// NewGroupIteration groups the rows of spec.Input in a single pass and
// yields one row per group, in the order groups were first seen. Without
// grouping variables an empty input still yields one row of aggregate
// defaults. Group state lives in collections of the context and spills
// with them.
func NewGroupIteration(ctx context.Context, ec *Context, spec GroupSpec, in binding.Solution) (iter.Iteration[binding.Solution], error) {
	for _, a := range spec.Aggregates {
		if a.Arg == nil && a.Kind != aggregate.Count {
			return nil, fmt.Errorf("aggregate %v requires an argument", a)
		}
	}
	g := &groupIteration{
		ctx:  ctx,
		ec:   ec,
		spec: spec,
		in:   in,
		enc:  encoding.NewTermEncoder(),
	}
	return iter.NewLookahead(g.fetch, g.close), nil
}

func (g *groupIteration) fetch() (binding.Solution, bool, error) {
	if !g.filled {
		g.filled = true
		if err := g.fill(); err != nil {
			return nil, false, err
		}
	}
	if g.zeroRow {
		g.zeroRow = false
		return g.result(&groupEntry{collectors: g.newCollectors()}), true, nil
	}
	e, ok, err := pull(g.out)
	if err != nil {
		return nil, false, evaluationError("group", err)
	}
	if !ok {
		return nil, false, nil
	}
	return g.result(e), true, nil
}

func (g *groupIteration) fill() error {
	span, ctx := g.ec.startSpan(g.ctx, "group fill")
	defer span.Finish()

	input, err := g.spec.Input.Evaluate(ctx, g.in)
	if err != nil {
		return err
	}
	g.input = input
	g.groups = collection.NewMap[*groupEntry](g.ec.Collections, groupEntryCodec{})
	for _, a := range g.spec.Aggregates {
		if a.Distinct {
			g.seen = g.ec.Collections.NewSet()
			break
		}
	}

	rows := 0
	for {
		row, ok, err := pull(input)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		rows++
		if err := g.add(row); err != nil {
			return evaluationError("group", err)
		}
	}
	err = input.Close()
	g.input = nil
	if err != nil {
		return err
	}

	if g.groups.Len() == 0 && len(g.spec.GroupVars) == 0 && len(g.spec.Aggregates) > 0 {
		g.zeroRow = true
	}
	if g.out, err = g.groups.Values(); err != nil {
		return evaluationError("group", err)
	}

	span.SetTag("rows", rows)
	span.SetTag("groups", g.groups.Len())
	metrics.groups.Add(float64(g.groups.Len()))
	g.ec.log("group").WithFields(logrus.Fields{
		"rows":   rows,
		"groups": g.groups.Len(),
	}).Debug("grouped input")
	return nil
}

func (g *groupIteration) newCollectors() []*aggregate.Collector {
	out := make([]*aggregate.Collector, len(g.spec.Aggregates))
	for i, a := range g.spec.Aggregates {
		out[i] = aggregate.NewCollector(a)
	}
	return out
}

func (g *groupIteration) add(row binding.Solution) error {
	values := make([]rdf.Term, len(g.spec.GroupVars))
	for i, name := range g.spec.GroupVars {
		values[i] = row[name]
	}
	key, err := g.enc.EncodeKey(values...)
	if err != nil {
		return err
	}

	entry, ok, err := g.groups.Get(key)
	if err != nil {
		return err
	}
	if !ok {
		entry = &groupEntry{prototype: row.Project(g.spec.GroupVars), collectors: g.newCollectors()}
	}

	for i, a := range g.spec.Aggregates {
		var v rdf.Term
		if a.Arg != nil {
			if v, err = a.Arg.Evaluate(row); err != nil {
				// The row does not contribute to this aggregate.
				continue
			}
		} else if row.Len() == 0 {
			continue
		}
		if a.Distinct {
			fresh, err := g.firstValue(key, i, row, v)
			if err != nil {
				return err
			}
			if !fresh {
				continue
			}
		}
		entry.collectors[i].Add(v)
	}
	return g.groups.Put(key, entry)
}

// firstValue reports whether v is new for aggregate i of the group. COUNT(*)
// compares whole rows.
func (g *groupIteration) firstValue(group []byte, i int, row binding.Solution, v rdf.Term) (bool, error) {
	key := binary.AppendUvarint(nil, uint64(len(group)))
	key = append(key, group...)
	key = binary.AppendUvarint(key, uint64(i)) // #nosec G115 - index is never negative
	var err error
	if v == nil {
		var encoded []byte
		if encoded, err = g.enc.EncodeSolution(row); err != nil {
			return false, err
		}
		key = append(key, encoded...)
	} else if key, err = g.enc.AppendTerm(key, v); err != nil {
		return false, err
	}
	return g.seen.Add(key)
}

// result builds the output row of a group. An aggregate whose value cannot
// be computed stays unbound.
func (g *groupIteration) result(e *groupEntry) binding.Solution {
	b := binding.NewBuilderFrom(g.in)
	for name, t := range e.prototype {
		b.Set(name, t)
	}
	for i, a := range g.spec.Aggregates {
		v, err := e.collectors[i].Value()
		if err != nil {
			g.ec.log("group").WithError(err).WithField("aggregate", a.String()).Debug("aggregate left unbound")
			continue
		}
		g.ec.Setter(a.Var)(b, v)
	}
	return b.Build()
}

// resources lists what the iteration holds, in acquisition order.
func (g *groupIteration) resources() []io.Closer {
	var closers []io.Closer
	if g.input != nil {
		closers = append(closers, g.input)
	}
	if g.groups != nil {
		closers = append(closers, g.groups)
	}
	if g.seen != nil {
		closers = append(closers, g.seen)
	}
	if g.out != nil {
		closers = append(closers, g.out)
	}
	return closers
}

// close releases resources in reverse acquisition order.
func (g *groupIteration) close() error {
	return iter.CloseAll(g.resources()...)
}

// groupEntryCodec writes a group entry as its encoded prototype followed by
// the length-prefixed state of each collector.
type groupEntryCodec struct{}

var errCorruptGroup = errors.New("corrupt group entry")

func (groupEntryCodec) Encode(e *groupEntry) ([]byte, error) {
	proto, err := encoding.NewTermEncoder().EncodeSolution(e.prototype)
	if err != nil {
		return nil, err
	}
	buf := binary.AppendUvarint(nil, uint64(len(proto)))
	buf = append(buf, proto...)
	buf = binary.AppendUvarint(buf, uint64(len(e.collectors)))
	for _, c := range e.collectors {
		state, err := c.MarshalBinary()
		if err != nil {
			return nil, err
		}
		buf = binary.AppendUvarint(buf, uint64(len(state)))
		buf = append(buf, state...)
	}
	return buf, nil
}

func (groupEntryCodec) Decode(data []byte) (*groupEntry, error) {
	proto, data, err := readChunk(data)
	if err != nil {
		return nil, err
	}
	e := &groupEntry{}
	if e.prototype, err = encoding.NewTermDecoder().DecodeSolution(proto); err != nil {
		return nil, err
	}
	n, size := binary.Uvarint(data)
	if size <= 0 || n > uint64(len(data)) {
		return nil, errCorruptGroup
	}
	data = data[size:]
	e.collectors = make([]*aggregate.Collector, n)
	for i := range e.collectors {
		var state []byte
		if state, data, err = readChunk(data); err != nil {
			return nil, err
		}
		c := &aggregate.Collector{}
		if err := c.UnmarshalBinary(state); err != nil {
			return nil, err
		}
		e.collectors[i] = c
	}
	return e, nil
}

func readChunk(data []byte) ([]byte, []byte, error) {
	n, size := binary.Uvarint(data)
	if size <= 0 || n > uint64(len(data)-size) {
		return nil, nil, errCorruptGroup
	}
	end := size + int(n) // #nosec G115 - bounded by the check above
	return data[size:end], data[end:], nil
}
