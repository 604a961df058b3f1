package queue

import (
	"time"

	"github.com/google/uuid"
)

// DispatchMessage instructs a send worker to deliver one queue item.
type DispatchMessage struct {
	ItemID           uuid.UUID `json:"item_id"`
	CampaignID       uuid.UUID `json:"campaign_id"`
	InstanceID       uuid.UUID `json:"instance_id"`
	Phone            string    `json:"phone"`
	Name             string    `json:"name"`
	Body             string    `json:"body"`
	Attempt          int       `json:"attempt"`
	MaxAttempts      int       `json:"max_attempts"`
	RetryBaseMs      int64     `json:"retry_base_ms"`
	RetryMaxMs       int64     `json:"retry_max_ms"`
	RetryJitter      float64   `json:"retry_jitter"`
	ConcurrencyLimit int       `json:"concurrency_limit"`
	ScheduledFor     time.Time `json:"scheduled_for"`
	EnqueuedAt       time.Time `json:"enqueued_at"`
}

// StatusMessage reports the outcome of a send attempt.
type StatusMessage struct {
	ItemID     uuid.UUID `json:"item_id"`
	CampaignID uuid.UUID `json:"campaign_id"`
	InstanceID uuid.UUID `json:"instance_id"`
	Phone      string    `json:"phone"`
	// Name and Body ride along so a retry can be rebuilt without a
	// round trip to the queue store.
	Name             string     `json:"name,omitempty"`
	Body             string     `json:"body,omitempty"`
	Status           string     `json:"status"`
	Attempt          int        `json:"attempt"`
	MaxAttempts      int        `json:"max_attempts"`
	Retryable        bool       `json:"retryable"`
	RetryBaseMs      int64      `json:"retry_base_ms"`
	RetryMaxMs       int64      `json:"retry_max_ms"`
	RetryJitter      float64    `json:"retry_jitter"`
	ConcurrencyLimit int        `json:"concurrency_limit"`
	DurationMs       int64      `json:"duration_ms"`
	Error            string     `json:"error,omitempty"`
	OccurredAt       time.Time  `json:"occurred_at"`
	NextAttempt      *time.Time `json:"next_attempt,omitempty"`
}

// RetryMessage carries a redelivery instruction for a failed send.
type RetryMessage struct {
	DispatchMessage
	NextAttempt time.Time `json:"next_attempt"`
}
