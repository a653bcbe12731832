package port

import (
	"context"
	"time"
)

// Task is a background job with a stable type identifier and an opaque
// payload. Payload encoding is up to the callers on both ends.
type Task struct {
	Type    string
	Payload []byte
}

// Handler processes one task. A non-nil error signals retry per the adapter's
// policy, so handlers must be idempotent.
type Handler func(ctx context.Context, task Task) error

// Option controls enqueue behavior. Zero values mean "unspecified"; adapters
// map the fields to the backend best-effort.
type Option struct {
	Queue     string
	ProcessIn time.Duration
	MaxRetry  int
	UniqueTTL time.Duration
}

// Client enqueues tasks for background processing.
type Client interface {
	Enqueue(ctx context.Context, t Task, opts ...Option) (id string, err error)
	Close() error
}

// Server runs the workers. Run blocks until the context is canceled.
type Server interface {
	Register(taskType string, h Handler)
	Run(ctx context.Context) error
}
