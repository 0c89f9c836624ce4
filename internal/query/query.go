package query

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type Request struct {
	SQL      string
	RowLimit int
	Timeout  time.Duration
}

type Result struct {
	Columns   []string
	Rows      [][]any
	RowCount  int
	Truncated bool
	Duration  time.Duration
}

type Engine interface {
	Execute(ctx context.Context, request Request) (Result, error)
}

// ExecutionError wraps any failure raised while running a validated
// statement. Execution failures are terminal for a turn: the statement
// already passed validation, so retrying the translation cannot help.
type ExecutionError struct {
	Timeout bool
	Detail  string
	Err     error
}

func (e *ExecutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Detail, e.Err)
	}
	return e.Detail
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether err is an execution failure caused by the
// statement deadline.
func IsTimeout(err error) bool {
	var execErr *ExecutionError
	return errors.As(err, &execErr) && execErr.Timeout
}
