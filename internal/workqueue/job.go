package workqueue

import (
	"context"
	"errors"
)

// Job is a unit of work executed by an Executor.
type Job interface {
	Run(ctx context.Context) error
}

// JobFunc adapts a function to a Job.
type JobFunc func(ctx context.Context) error

func (f JobFunc) Run(ctx context.Context) error { return f(ctx) }

// IsRetryable reports whether err, or anything it wraps, asks to be retried
// through a Retryable() bool method.
func IsRetryable(err error) bool {
	var r interface{ Retryable() bool }
	return errors.As(err, &r) && r.Retryable()
}
