package executor

import (
	"context"
	"fmt"

	"github.com/aleksaelezovic/sparqlexec/internal/encoding"
	"github.com/aleksaelezovic/sparqlexec/pkg/rdf"
	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/binding"
	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/iter"
	"github.com/aleksaelezovic/sparqlexec/pkg/store"
	"github.com/sirupsen/logrus"
)

// PathSegment is the single step of an arbitrary-length path.
type PathSegment interface {
	// Compile returns a step matching one step from subject to object.
	// Both endpoints are an rdf.Term or a *store.Variable.
	Compile(subject, object any) (Step, error)
}

// PredicateSegment steps along one predicate, backwards if Inverse is set.
type PredicateSegment struct {
	Source    store.TripleSource
	Predicate rdf.Term
	Graph     any
	Inverse   bool
}

func (s *PredicateSegment) Compile(subject, object any) (Step, error) {
	if s.Inverse {
		subject, object = object, subject
	}
	return &ScanStep{
		Source: s.Source,
		Pattern: store.Pattern{
			Subject:   subject,
			Predicate: s.Predicate,
			Object:    object,
			Graph:     s.Graph,
		},
	}, nil
}

// PathSpec describes Segment* (MinLength 0) or Segment+ (MinLength 1)
// between Subject and Object, each an rdf.Term or a *store.Variable.
type PathSpec struct {
	Subject   any
	Object    any
	Segment   PathSegment
	MinLength int
}

// Internal variables of compiled segments.
const (
	pathAnchorVar = "_path_anchor"
	pathBridgeVar = "_path_bridge"
)

// pathPair is a discovered path from anchor, the endpoint expansion starts
// at, to reached.
type pathPair struct {
	anchor  rdf.Term
	reached rdf.Term
}

type pathIteration struct {
	ctx  context.Context
	ec   *Context
	spec PathSpec
	in   binding.Solution
	enc  *encoding.TermEncoder

	startVar, endVar string
	start, end       rdf.Term
	setStart, setEnd func(*binding.Builder, rdf.Term)

	// reverse expands from the object towards the subject.
	reverse bool

	length        int
	current       iter.Iteration[binding.Solution]
	currentAnchor rdf.Term
	pending       []binding.Solution
	done          bool

	// Visitation state. Sets and queue hold indexes into pairs.
	pairs      []pathPair
	ids        map[string]int
	reported   map[int]struct{}
	unreported map[int]struct{}
	queue      []int
}

// NewPathIteration evaluates an arbitrary-length path breadth first. Every
// (start, end) pair is reported at most once, and expansion stops when no
// new pair is discovered, so cyclic graphs terminate.
func NewPathIteration(ctx context.Context, ec *Context, spec PathSpec, in binding.Solution) (iter.Iteration[binding.Solution], error) {
	if spec.MinLength != 0 && spec.MinLength != 1 {
		return nil, fmt.Errorf("path minimum length must be 0 or 1, got %d", spec.MinLength)
	}
	p := &pathIteration{
		ctx:        ctx,
		ec:         ec,
		spec:       spec,
		in:         in,
		enc:        encoding.NewTermEncoder(),
		length:     spec.MinLength,
		ids:        make(map[string]int),
		reported:   make(map[int]struct{}),
		unreported: make(map[int]struct{}),
	}
	var err error
	if p.start, p.startVar, err = p.resolve(spec.Subject); err != nil {
		return nil, err
	}
	if p.end, p.endVar, err = p.resolve(spec.Object); err != nil {
		return nil, err
	}
	if p.startVar != "" {
		p.setStart = ec.Setter(p.startVar)
	}
	if p.endVar != "" {
		p.setEnd = ec.Setter(p.endVar)
	}
	p.reverse = p.start == nil && p.end != nil
	return iter.NewLookahead(p.fetch, p.close), nil
}

// resolve returns the term at an endpoint, taken from the input when the
// endpoint is a bound variable, or the variable name when it is unbound.
func (p *pathIteration) resolve(pos any) (rdf.Term, string, error) {
	switch v := pos.(type) {
	case *store.Variable:
		if t := p.ec.Getter(v.Name)(p.in); t != nil {
			return t, "", nil
		}
		return nil, v.Name, nil
	case rdf.Term:
		return v, "", nil
	default:
		return nil, "", fmt.Errorf("invalid path endpoint %T", pos)
	}
}

func (p *pathIteration) bothBound() bool {
	return p.start != nil && p.end != nil
}

// anchorTerm is the fixed endpoint expansion starts from, or nil.
func (p *pathIteration) anchorTerm() rdf.Term {
	if p.reverse {
		return p.end
	}
	return p.start
}

func (p *pathIteration) fetch() (binding.Solution, bool, error) {
	for {
		if len(p.pending) > 0 {
			row := p.pending[0]
			p.pending = p.pending[1:]
			return row, true, nil
		}
		if p.done {
			return nil, false, p.finish()
		}

		if p.current != nil {
			row, ok, err := pull(p.current)
			if err != nil {
				return nil, false, err
			}
			if ok {
				if err := p.expand(row); err != nil {
					return nil, false, err
				}
				continue
			}
			err = p.current.Close()
			p.current = nil
			if err != nil {
				return nil, false, err
			}
		}

		switch p.length {
		case 0:
			p.length = 1
			if err := p.zeroLength(); err != nil {
				return nil, false, err
			}
		case 1:
			p.length = 2
			var from any = store.NewVariable(pathAnchorVar)
			if a := p.anchorTerm(); a != nil {
				from = a
			}
			p.currentAnchor = p.anchorTerm()
			if err := p.evaluate(from); err != nil {
				return nil, false, err
			}
		default:
			if len(p.queue) == 0 {
				p.done = true
				continue
			}
			if err := p.ctx.Err(); err != nil {
				return nil, false, err
			}
			idx := p.queue[0]
			p.queue = p.queue[1:]
			pair := p.pairs[idx]
			p.currentAnchor = pair.anchor
			p.length++
			if err := p.evaluate(pair.reached); err != nil {
				return nil, false, err
			}
		}
	}
}

// zeroLength reports the empty path when an endpoint is fixed. Without
// fixed endpoints every term touched by the segment is reported while the
// first step is evaluated.
func (p *pathIteration) zeroLength() error {
	switch {
	case p.bothBound():
		if p.start.Equals(p.end) {
			return p.visit(pathPair{anchor: p.start, reached: p.end})
		}
	case p.anchorTerm() != nil:
		a := p.anchorTerm()
		return p.visit(pathPair{anchor: a, reached: a})
	}
	return nil
}

func (p *pathIteration) evaluate(from any) error {
	bridge := store.NewVariable(pathBridgeVar)
	var step Step
	var err error
	if p.reverse {
		step, err = p.spec.Segment.Compile(bridge, from)
	} else {
		step, err = p.spec.Segment.Compile(from, bridge)
	}
	if err != nil {
		return err
	}
	p.current, err = step.Evaluate(p.ctx, p.in)
	return err
}

// expand turns one segment result into new pairs.
func (p *pathIteration) expand(row binding.Solution) error {
	anchor := p.currentAnchor
	if anchor == nil {
		anchor = row[pathAnchorVar]
	}
	reached := row[pathBridgeVar]
	if anchor == nil || reached == nil {
		return nil
	}
	if p.currentAnchor == nil && p.spec.MinLength == 0 {
		// Zero-length pairs of every term the segment touches.
		if err := p.visit(pathPair{anchor: anchor, reached: anchor}); err != nil {
			return err
		}
		if err := p.visit(pathPair{anchor: reached, reached: reached}); err != nil {
			return err
		}
	}
	return p.visit(pathPair{anchor: anchor, reached: reached})
}

// visit records a pair. A pair seen before closes a cycle and is dropped. A
// new pair is reported if it satisfies the fixed endpoints and queued for
// expansion unless it leads back to its anchor.
func (p *pathIteration) visit(pair pathPair) error {
	if p.done {
		return nil
	}
	key, err := p.enc.EncodeKey(pair.anchor, pair.reached)
	if err != nil {
		return err
	}
	idx, ok := p.ids[string(key)]
	if !ok {
		idx = len(p.pairs)
		p.pairs = append(p.pairs, pair)
		p.ids[string(key)] = idx
		metrics.pathPairs.Inc()
	}
	if _, seen := p.reported[idx]; seen {
		return nil
	}
	if _, seen := p.unreported[idx]; seen {
		return nil
	}

	if !pair.anchor.Equals(pair.reached) {
		p.queue = append(p.queue, idx)
	}
	if !p.satisfies(pair) {
		p.unreported[idx] = struct{}{}
		return nil
	}
	p.reported[idx] = struct{}{}
	p.pending = append(p.pending, p.row(pair))
	if p.bothBound() {
		p.done = true
	}
	return nil
}

func (p *pathIteration) satisfies(pair pathPair) bool {
	switch {
	case p.bothBound():
		return pair.reached.Equals(p.end)
	case p.startVar != "" && p.startVar == p.endVar:
		return pair.anchor.Equals(pair.reached)
	default:
		return true
	}
}

func (p *pathIteration) row(pair pathPair) binding.Solution {
	s, o := pair.anchor, pair.reached
	if p.reverse {
		s, o = o, s
	}
	b := binding.NewBuilderFrom(p.in)
	if p.setStart != nil {
		p.setStart(b, s)
	}
	if p.setEnd != nil && p.endVar != p.startVar {
		p.setEnd(b, o)
	}
	return b.Build()
}

// finish drops the visitation state once the path is exhausted.
func (p *pathIteration) finish() error {
	p.ec.log("path").WithFields(logrus.Fields{
		"pairs":    len(p.pairs),
		"reported": len(p.reported),
		"length":   p.length,
	}).Debug("path exhausted")
	p.pairs = nil
	p.ids = nil
	p.reported = nil
	p.unreported = nil
	p.queue = nil
	return p.closeCurrent()
}

func (p *pathIteration) closeCurrent() error {
	if p.current == nil {
		return nil
	}
	err := p.current.Close()
	p.current = nil
	return err
}

func (p *pathIteration) close() error {
	p.pending = nil
	return p.closeCurrent()
}
