// Package executor implements the streaming operators of the query engine:
// joins, property paths, grouping, ordering and prefetching. Every operator
// is an iter.Iteration over solutions and owns the iterations it opens.
package executor

import (
	"context"

	"github.com/aleksaelezovic/sparqlexec/pkg/config"
	"github.com/aleksaelezovic/sparqlexec/pkg/rdf"
	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/binding"
	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/collection"
	"github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"
)

// Context carries what operators need besides their inputs. It is shared
// by all operators of one query and is not modified during evaluation.
type Context struct {
	// Compare orders terms for ORDER BY and merge joins.
	Compare func(a, b rdf.Term) int

	// Collections creates the sets, maps and sorted bags of materializing
	// operators.
	Collections *collection.Factory

	Log    logrus.FieldLogger
	Config *config.Config
	Tracer opentracing.Tracer
}

// NewContext returns a context with in-memory collections, the default
// configuration and the global logger and tracer.
func NewContext() *Context {
	return &Context{
		Compare:     rdf.OrderCompare,
		Collections: collection.NewMemoryFactory(),
		Log:         logrus.StandardLogger(),
		Config:      config.Default(),
		Tracer:      opentracing.GlobalTracer(),
	}
}

// Open builds a context from cfg, opening the spill store it asks for. The
// caller must Close the context.
func Open(cfg *config.Config, log logrus.FieldLogger) (*Context, error) {
	if log == nil {
		l := logrus.New()
		l.SetLevel(cfg.Level())
		log = l
	}
	collections, err := collection.Open(cfg.Spill, log)
	if err != nil {
		return nil, err
	}
	return &Context{
		Compare:     rdf.OrderCompare,
		Collections: collections,
		Log:         log,
		Config:      cfg,
		Tracer:      opentracing.GlobalTracer(),
	}, nil
}

// Close releases the collection factory.
func (ec *Context) Close() error {
	return ec.Collections.Close()
}

// Getter returns a function reading name from a solution.
func (ec *Context) Getter(name string) func(binding.Solution) rdf.Term {
	return func(s binding.Solution) rdf.Term {
		return s[name]
	}
}

// Setter returns a function binding name in a builder.
func (ec *Context) Setter(name string) func(*binding.Builder, rdf.Term) {
	return func(b *binding.Builder, t rdf.Term) {
		b.Set(name, t)
	}
}

func (ec *Context) compare(a, b rdf.Term) int {
	if ec.Compare == nil {
		return rdf.OrderCompare(a, b)
	}
	return ec.Compare(a, b)
}

func (ec *Context) config() *config.Config {
	if ec.Config == nil {
		return config.Default()
	}
	return ec.Config
}

func (ec *Context) log(op string) logrus.FieldLogger {
	log := ec.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return log.WithField("op", op)
}

func (ec *Context) startSpan(ctx context.Context, name string) (opentracing.Span, context.Context) {
	tracer := ec.Tracer
	if tracer == nil {
		tracer = opentracing.GlobalTracer()
	}
	return opentracing.StartSpanFromContextWithTracer(ctx, tracer, name)
}
