package worker

import "errors"

// Common errors
var (
	ErrPoolClosed = errors.New("worker pool closed")
	ErrQueueFull  = errors.New("task queue full")
)
