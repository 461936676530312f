package workqueue

import (
	"errors"
	"fmt"
)

var (
	ErrExecutorClosed = errors.New("workqueue: executor closed")
	ErrQueueFull      = errors.New("workqueue: queue full")
)

// QueueFullError is returned by Submit when a shard stays full for longer
// than the enqueue timeout.
type QueueFullError struct {
	Shard    int
	Length   int
	Capacity int
}

func (e *QueueFullError) Error() string {
	return fmt.Sprintf("workqueue: shard %d full (%d/%d)", e.Shard, e.Length, e.Capacity)
}

func (e *QueueFullError) Unwrap() error { return ErrQueueFull }

// a full queue clears up on its own
func (e *QueueFullError) Retryable() bool { return true }

// PanicError carries a recovered job panic.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string { return fmt.Sprintf("workqueue: job panic: %v", e.Value) }
