package executor

import (
	"context"
	"errors"
	"sync"

	"github.com/aleksaelezovic/sparqlexec/pkg/config"
	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/binding"
	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/iter"
)

// prefetchIteration reports the errors of a background reader as query
// evaluation errors.
type prefetchIteration struct {
	it        iter.Iteration[binding.Solution]
	policy    string
	cancel    context.CancelFunc
	closeOnce sync.Once
	closeErr  error
}

// NewPrefetch evaluates step and reads its output on a background
// goroutine, using the policy named in the context configuration. Closing
// the result cancels the step's context, so an upstream blocked on it is
// interrupted, then stops the goroutine and closes the step's iteration.
func NewPrefetch(ctx context.Context, ec *Context, step Step, in binding.Solution) (iter.Iteration[binding.Solution], error) {
	ctx, cancel := context.WithCancel(ctx)
	src, err := step.Evaluate(ctx, in)
	if err != nil {
		cancel()
		return nil, err
	}
	cfg := ec.config().Prefetch

	var it iter.Iteration[binding.Solution]
	switch cfg.Policy {
	case config.PrefetchNone:
		it = src
	case config.PrefetchDirect:
		it = iter.NewDirect(ctx, src)
	case config.PrefetchReadAhead:
		it = iter.NewReadAhead(ctx, src, cfg.InitialBatch, cfg.MaxBatch)
	default:
		it = iter.NewBuffered(ctx, src)
	}
	metrics.prefetchActive.Inc()
	ec.log("prefetch").WithField("policy", cfg.Policy).Debug("started prefetch")
	return &prefetchIteration{it: it, policy: cfg.Policy, cancel: cancel}, nil
}

func (p *prefetchIteration) HasNext() (bool, error) {
	ok, err := p.it.HasNext()
	return ok, evaluationError("prefetch "+p.policy, err)
}

func (p *prefetchIteration) Next() (binding.Solution, error) {
	row, err := p.it.Next()
	if errors.Is(err, iter.ErrNoMoreElements) {
		return nil, err
	}
	return row, evaluationError("prefetch "+p.policy, err)
}

func (p *prefetchIteration) Close() error {
	p.closeOnce.Do(func() {
		p.cancel()
		p.closeErr = p.it.Close()
		metrics.prefetchActive.Dec()
	})
	return p.closeErr
}
