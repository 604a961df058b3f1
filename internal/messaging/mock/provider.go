package mock

import (
	"context"
	"math/rand"
	"time"

	"github.com/acme/broadcast-dispatch/internal/config"
	"github.com/acme/broadcast-dispatch/internal/messaging"
	"github.com/acme/broadcast-dispatch/internal/queue"
)

// Provider simulates message delivery.
type Provider struct {
	successRate float64
	timeout     time.Duration
	rng         *rand.Rand
}

// NewProvider constructs a mock provider with deterministic randomness.
func NewProvider(cfg config.MessagingConfig) *Provider {
	seed := time.Now().UnixNano()
	return &Provider{
		successRate: 0.9,
		timeout:     cfg.RequestTimeout,
		rng:         rand.New(rand.NewSource(seed)),
	}
}

// Send simulates a delivery attempt.
func (p *Provider) Send(ctx context.Context, msg queue.DispatchMessage) (messaging.Result, error) {
	duration := time.Duration(100+p.rng.Intn(400)) * time.Millisecond

	select {
	case <-ctx.Done():
		return messaging.Result{Status: messaging.StatusFailed, Duration: duration, Retryable: true, Error: ctx.Err().Error()}, ctx.Err()
	case <-time.After(duration):
	}

	if p.rng.Float64() <= p.successRate {
		return messaging.Result{Status: messaging.StatusSent, Duration: duration}, nil
	}

	retryable := p.rng.Float64() < 0.7
	return messaging.Result{Status: messaging.StatusFailed, Duration: duration, Retryable: retryable, Error: "simulated failure"}, nil
}
