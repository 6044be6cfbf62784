package executor

import (
	"context"

	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/binding"
	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/iter"
)

// The step types below wrap the operator constructors so that a planner
// can compose operators as plain Steps.

// NestedLoopJoinStep evaluates Right once per row of Left.
type NestedLoopJoinStep struct {
	Context *Context
	Left    Step
	Right   Step
}

func (s *NestedLoopJoinStep) Evaluate(ctx context.Context, in binding.Solution) (iter.Iteration[binding.Solution], error) {
	return NewNestedLoopJoin(ctx, s.Context, s.Left, s.Right, in)
}

// NestedJoinStep evaluates Outer and joins it with Inner through
// NewNestedJoin.
type NestedJoinStep struct {
	Context *Context
	Outer   Step
	Inner   Step
}

func (s *NestedJoinStep) Evaluate(ctx context.Context, in binding.Solution) (iter.Iteration[binding.Solution], error) {
	outer, err := s.Outer.Evaluate(ctx, in)
	if err != nil {
		return nil, err
	}
	return NewNestedJoin(ctx, s.Context, outer, s.Inner)
}

// LeftJoinStep is the optional join of NewLeftJoin.
type LeftJoinStep struct {
	Context *Context
	LeftJoinSpec
}

func (s *LeftJoinStep) Evaluate(ctx context.Context, in binding.Solution) (iter.Iteration[binding.Solution], error) {
	return NewLeftJoin(ctx, s.Context, s.LeftJoinSpec, in)
}

// HashJoinStep joins through NewHashJoin.
type HashJoinStep struct {
	Context *Context
	HashJoinSpec
}

func (s *HashJoinStep) Evaluate(ctx context.Context, in binding.Solution) (iter.Iteration[binding.Solution], error) {
	return NewHashJoin(ctx, s.Context, s.HashJoinSpec, in)
}

// BulkHashJoinStep joins through NewBulkHashJoin.
//
// Deprecated: use HashJoinStep.
type BulkHashJoinStep struct {
	Context *Context
	HashJoinSpec
}

func (s *BulkHashJoinStep) Evaluate(ctx context.Context, in binding.Solution) (iter.Iteration[binding.Solution], error) {
	return NewBulkHashJoin(ctx, s.Context, s.HashJoinSpec, in)
}

// MergeJoinStep joins inputs sorted on one variable.
type MergeJoinStep struct {
	Context *Context
	MergeJoinSpec
}

func (s *MergeJoinStep) Evaluate(ctx context.Context, in binding.Solution) (iter.Iteration[binding.Solution], error) {
	return NewMergeJoin(ctx, s.Context, s.MergeJoinSpec, in)
}

// PathStep evaluates a transitive property path.
type PathStep struct {
	Context *Context
	PathSpec
}

func (s *PathStep) Evaluate(ctx context.Context, in binding.Solution) (iter.Iteration[binding.Solution], error) {
	return NewPathIteration(ctx, s.Context, s.PathSpec, in)
}

// GroupStep groups its input and computes aggregates.
type GroupStep struct {
	Context *Context
	GroupSpec
}

func (s *GroupStep) Evaluate(ctx context.Context, in binding.Solution) (iter.Iteration[binding.Solution], error) {
	return NewGroupIteration(ctx, s.Context, s.GroupSpec, in)
}

// OrderStep sorts its input, optionally bounded by a limit.
type OrderStep struct {
	Context *Context
	OrderSpec
}

func (s *OrderStep) Evaluate(ctx context.Context, in binding.Solution) (iter.Iteration[binding.Solution], error) {
	return NewOrderIteration(ctx, s.Context, s.OrderSpec, in)
}

// PrefetchStep reads Input on a background goroutine.
type PrefetchStep struct {
	Context *Context
	Input   Step
}

func (s *PrefetchStep) Evaluate(ctx context.Context, in binding.Solution) (iter.Iteration[binding.Solution], error) {
	return NewPrefetch(ctx, s.Context, s.Input, in)
}
