package executor

import (
	"errors"
	"fmt"
)

// QueryEvaluationError is a fatal error raised while evaluating a query,
// such as a failed spill store or an interrupted background read.
type QueryEvaluationError struct {
	// Op names the operator that failed.
	Op  string
	Err error
}

func (e *QueryEvaluationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *QueryEvaluationError) Unwrap() error {
	return e.Err
}

// evaluationError wraps err for op unless it already is an evaluation
// error.
func evaluationError(op string, err error) error {
	if err == nil {
		return nil
	}
	var qe *QueryEvaluationError
	if errors.As(err, &qe) {
		return err
	}
	return &QueryEvaluationError{Op: op, Err: err}
}
