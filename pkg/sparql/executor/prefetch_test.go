package executor

import (
	"context"
	"testing"
	"time"

	"github.com/aleksaelezovic/sparqlexec/pkg/config"
	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/binding"
	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/iter"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func prefetchContext(policy string) *Context {
	ec := NewContext()
	ec.Config.Prefetch.Policy = policy
	ec.Config.Prefetch.InitialBatch = 2
	ec.Config.Prefetch.MaxBatch = 8
	return ec
}

var policies = []string{
	config.PrefetchNone,
	config.PrefetchBuffered,
	config.PrefetchDirect,
	config.PrefetchReadAhead,
}

func TestPrefetch_Policies(t *testing.T) {
	var rows []binding.Solution
	for i := int64(0); i < 100; i++ {
		rows = append(rows, sol("x", num(i)))
	}
	for _, policy := range policies {
		t.Run(policy, func(t *testing.T) {
			before := testutil.ToFloat64(metrics.prefetchActive)
			input := track(values(rows...))

			it, err := NewPrefetch(context.Background(), prefetchContext(policy), input, binding.Empty)
			require.NoError(t, err)
			assert.Equal(t, before+1, testutil.ToFloat64(metrics.prefetchActive))

			got, err := iter.Collect(it)
			require.NoError(t, err)
			assert.Equal(t, rows, got, "order is preserved")
			require.NoError(t, it.Close())

			input.closedOnce(t)
			assert.Equal(t, before, testutil.ToFloat64(metrics.prefetchActive))
		})
	}
}

// blockingStep yields one row, then waits for its context to end.
func blockingStep() Step {
	return StepFunc(func(ctx context.Context, _ binding.Solution) (iter.Iteration[binding.Solution], error) {
		sent := false
		return iter.NewLookahead(func() (binding.Solution, bool, error) {
			if !sent {
				sent = true
				return sol("x", num(1)), true, nil
			}
			<-ctx.Done()
			return nil, false, ctx.Err()
		}, nil), nil
	})
}

func TestPrefetch_CloseInterruptsUpstream(t *testing.T) {
	for _, policy := range policies {
		t.Run(policy, func(t *testing.T) {
			it, err := NewPrefetch(context.Background(), prefetchContext(policy), blockingStep(), binding.Empty)
			require.NoError(t, err)

			row, err := it.Next()
			require.NoError(t, err)
			assert.Equal(t, sol("x", num(1)), row)

			closed := make(chan error, 1)
			go func() { closed <- it.Close() }()
			select {
			case err := <-closed:
				require.NoError(t, err)
			case <-time.After(2 * time.Second):
				t.Fatal("close blocked on a waiting upstream")
			}
		})
	}
}

func TestPrefetch_ErrorsAreWrapped(t *testing.T) {
	for _, policy := range policies {
		t.Run(policy, func(t *testing.T) {
			it, err := NewPrefetch(context.Background(), prefetchContext(policy), failing(sol("x", num(1))), binding.Empty)
			require.NoError(t, err)

			rows, err := iter.Collect(it)
			var qe *QueryEvaluationError
			require.ErrorAs(t, err, &qe)
			assert.Equal(t, "prefetch "+policy, qe.Op)
			assert.ErrorIs(t, err, errBroken)
			assert.LessOrEqual(t, len(rows), 1)
		})
	}
}

func TestPrefetch_EarlyClose(t *testing.T) {
	var rows []binding.Solution
	for i := int64(0); i < 1000; i++ {
		rows = append(rows, sol("x", num(i)))
	}
	for _, policy := range policies {
		t.Run(policy, func(t *testing.T) {
			input := track(values(rows...))
			it, err := NewPrefetch(context.Background(), prefetchContext(policy), input, binding.Empty)
			require.NoError(t, err)

			_, err = it.Next()
			require.NoError(t, err)
			require.NoError(t, it.Close())
			require.NoError(t, it.Close())
			input.closedOnce(t)
		})
	}
}

func TestPrefetchStep(t *testing.T) {
	ec := prefetchContext(config.PrefetchDirect)
	step := &PrefetchStep{Context: ec, Input: values(sol("x", num(1)))}
	it, err := NewNestedLoopJoin(context.Background(), ec, values(sol("y", num(2)), sol("y", num(3))), step, binding.Empty)
	assert.Len(t, collect(t, it, err), 2)
}
