package queue

import (
	"context"
	"time"
)

// Task is a unit of deferred work with scheduling metadata. Higher
// Priority dequeues first; ties break FIFO by submission order.
type Task struct {
	ID         string
	Priority   int
	MaxRetries int
	CreatedAt  time.Time
	Run        func(ctx context.Context) error

	attempts int
	seq      uint64
}

// Attempts returns how many times the task has been executed.
func (t *Task) Attempts() int { return t.attempts }
