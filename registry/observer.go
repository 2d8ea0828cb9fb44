package registry

import (
	"context"
	"time"
)

// InvokeObservation describes one tool execution.
type InvokeObservation struct {
	ToolID   string
	Duration time.Duration
	Err      error
}

// Observer receives tool execution observations.
type Observer interface {
	ObserveInvoke(ctx context.Context, o InvokeObservation)
}
