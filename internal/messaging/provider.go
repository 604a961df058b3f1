package messaging

import (
	"context"
	"time"

	"github.com/acme/broadcast-dispatch/internal/queue"
)

// Result describes the outcome of one delivery attempt.
type Result struct {
	Status    string
	Duration  time.Duration
	Retryable bool
	Error     string
}

// Provider delivers a single message through an external channel.
type Provider interface {
	Send(ctx context.Context, msg queue.DispatchMessage) (Result, error)
}

// Delivery statuses reported by providers.
const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)
