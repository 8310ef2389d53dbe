package solver

import (
	"errors"
	"fmt"
)

// ErrSolverFailure matches every error surfaced by a solver implementation.
var ErrSolverFailure = errors.New("solver failure")

// SolverError records the solver operation that failed.
type SolverError struct {
	Op  string
	Err error
}

func (e *SolverError) Error() string { return fmt.Sprintf("solver %s: %v", e.Op, e.Err) }

func (e *SolverError) Unwrap() error { return e.Err }

// Is makes every SolverError match ErrSolverFailure.
func (e *SolverError) Is(target error) bool { return target == ErrSolverFailure }

// Wrap returns err as a SolverError for op. Nil stays nil and errors that
// already are SolverErrors are returned unchanged.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *SolverError
	if errors.As(err, &se) {
		return err
	}
	return &SolverError{Op: op, Err: err}
}
