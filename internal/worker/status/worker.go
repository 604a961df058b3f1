package status

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/acme/broadcast-dispatch/internal/app"
	"github.com/acme/broadcast-dispatch/internal/domain"
	"github.com/acme/broadcast-dispatch/internal/messaging"
	"github.com/acme/broadcast-dispatch/internal/queue"
	"github.com/acme/broadcast-dispatch/internal/repository"
	apperrors "github.com/acme/broadcast-dispatch/pkg/errors"
)

// Worker consumes send outcome events and persists them: queue item state,
// campaign counters, the delivery log, retry scheduling and campaign
// completion all hang off this one consumer.
type Worker struct {
	container *app.Container
}

// New creates a new status worker.
func New(container *app.Container) *Worker {
	return &Worker{container: container}
}

// Run processes status events until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	cfg := w.container.Config
	groupID := cfg.Kafka.ConsumerGroupID + "-status"
	reader := w.container.Kafka.NewReader(cfg.Kafka.StatusTopic, groupID)
	defer reader.Close()

	logger := w.container.Logger

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Error("status worker: fetch", zap.Error(err))
			continue
		}

		var status queue.StatusMessage
		if err := json.Unmarshal(msg.Value, &status); err != nil {
			logger.Error("status worker: unmarshal", zap.Error(err))
			_ = reader.CommitMessages(ctx, msg)
			continue
		}

		w.handle(ctx, status)

		if err := reader.CommitMessages(ctx, msg); err != nil {
			logger.Error("status worker: commit", zap.Error(err))
		}
	}
}

func (w *Worker) handle(ctx context.Context, status queue.StatusMessage) {
	repos := w.container.Repositories()
	logger := w.container.Logger

	tracer := otel.Tracer("broadcast.statusworker")
	sctx, span := tracer.Start(ctx, "message.status", trace.WithAttributes(
		attribute.String("item.id", status.ItemID.String()),
		attribute.String("campaign.id", status.CampaignID.String()),
		attribute.Int("attempt", status.Attempt),
	))
	defer span.End()

	itemStatus := domain.QueueItemStatusSent
	if status.Status != messaging.StatusSent {
		itemStatus = domain.QueueItemStatusFailed
	}

	// a retryable failure keeps the item scheduled; only the terminal
	// outcome flips its row
	terminal := itemStatus == domain.QueueItemStatusSent || !status.Retryable
	if terminal {
		if err := repos.Items.SetStatus(sctx, status.ItemID, itemStatus, optionalString(status.Error)); err != nil {
			span.RecordError(err)
			logger.Error("status worker: update item", zap.Error(err))
		}
	}

	attempt := domain.DeliveryAttempt{
		ID:         uuid.New(),
		ItemID:     status.ItemID,
		CampaignID: status.CampaignID,
		InstanceID: status.InstanceID,
		Phone:      status.Phone,
		Attempt:    status.Attempt,
		Status:     itemStatus,
		Error:      status.Error,
		Duration:   time.Duration(status.DurationMs) * time.Millisecond,
		OccurredAt: status.OccurredAt,
	}
	if err := repos.DeliveryLog.Append(sctx, attempt); err != nil {
		span.RecordError(err)
		logger.Error("status worker: append attempt", zap.Error(err))
	}

	if status.CampaignID != uuid.Nil {
		delta := repository.StatsDelta{}
		if status.Attempt > 1 {
			delta.RetriesDelta++
		}
		switch {
		case itemStatus == domain.QueueItemStatusSent:
			delta.SentDelta++
		case terminal:
			delta.FailedDelta++
		}
		if err := repos.Stats.ApplyDelta(sctx, status.CampaignID, delta); err != nil {
			span.RecordError(err)
			logger.Error("status worker: apply stats", zap.Error(err))
		}
	}

	if status.Retryable && status.NextAttempt != nil {
		w.scheduleRetry(sctx, status)
	}

	if terminal {
		w.maybeComplete(sctx, status.CampaignID)
	}
}

func (w *Worker) scheduleRetry(ctx context.Context, status queue.StatusMessage) {
	logger := w.container.Logger

	retryMsg := queue.RetryMessage{
		DispatchMessage: queue.DispatchMessage{
			ItemID:           status.ItemID,
			CampaignID:       status.CampaignID,
			InstanceID:       status.InstanceID,
			Phone:            status.Phone,
			Name:             status.Name,
			Body:             status.Body,
			Attempt:          status.Attempt + 1,
			MaxAttempts:      status.MaxAttempts,
			RetryBaseMs:      status.RetryBaseMs,
			RetryMaxMs:       status.RetryMaxMs,
			RetryJitter:      status.RetryJitter,
			ConcurrencyLimit: status.ConcurrencyLimit,
			EnqueuedAt:       *status.NextAttempt,
		},
		NextAttempt: *status.NextAttempt,
	}
	if err := w.container.Publishers().Retry.ScheduleRetry(ctx, status.Attempt, retryMsg); err != nil {
		logger.Error("status worker: schedule retry", zap.Error(err))
	}
}

// maybeComplete transitions the campaign to completed once no deliverable
// items remain. Cancelled and paused campaigns are left alone.
func (w *Worker) maybeComplete(ctx context.Context, campaignID uuid.UUID) {
	if campaignID == uuid.Nil {
		return
	}
	repos := w.container.Repositories()
	logger := w.container.Logger

	remaining, err := repos.Items.CountRemaining(ctx, campaignID)
	if err != nil {
		logger.Error("status worker: count remaining", zap.Error(err))
		return
	}
	if remaining > 0 {
		return
	}

	err = w.container.Services().Campaign.Complete(ctx, campaignID)
	if err != nil && !apperrors.Is(err, apperrors.ErrInvalidTransition) {
		logger.Error("status worker: complete campaign", zap.Error(err))
	}
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
