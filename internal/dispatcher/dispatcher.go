package dispatcher

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/acme/broadcast-dispatch/internal/app"
	"github.com/acme/broadcast-dispatch/internal/domain"
	"github.com/acme/broadcast-dispatch/internal/queue"
)

// Dispatcher periodically hands due queue items to the send workers. The
// schedule itself is computed at campaign start; the dispatcher only moves
// items whose scheduled_for has arrived onto the wire.
type Dispatcher struct {
	container *app.Container
}

// New constructs a dispatcher.
func New(container *app.Container) *Dispatcher {
	return &Dispatcher{container: container}
}

// Run executes the dispatch loop until cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	cfg := d.container.Config
	interval := cfg.Dispatcher.TickInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := d.tick(ctx); err != nil && ctx.Err() == nil {
			d.container.Logger.Error("dispatcher tick failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (d *Dispatcher) tick(ctx context.Context) error {
	repos := d.container.Repositories()
	logger := d.container.Logger
	cfg := d.container.Config

	tracer := otel.Tracer("broadcast.dispatcher")
	sctx, span := tracer.Start(ctx, "dispatcher.tick")
	defer span.End()

	now := d.container.Clock.Now()
	campaigns, err := repos.Campaigns.ListByStatus(sctx, domain.CampaignStatusRunning, d.campaignFetchLimit())
	if err != nil {
		span.RecordError(err)
		return err
	}
	span.SetAttributes(attribute.Int("campaign.count", len(campaigns)))

	for _, campaign := range campaigns {
		cctx, cspan := tracer.Start(sctx, "dispatcher.campaign", trace.WithAttributes(
			attribute.String("campaign.id", campaign.ID.String()),
		))

		due, err := repos.Items.NextDue(cctx, campaign.ID, now, cfg.Dispatcher.MaxBatchSize)
		if err != nil {
			cspan.RecordError(err)
			logger.Error("dispatcher: fetch due items", zap.Error(err), zap.String("campaign_id", campaign.ID.String()))
			cspan.End()
			continue
		}
		cspan.SetAttributes(attribute.Int("items.due", len(due)))
		if len(due) == 0 {
			cspan.End()
			continue
		}

		ids := make([]uuid.UUID, 0, len(due))
		for _, item := range due {
			ids = append(ids, item.ID)
		}
		if err := repos.Items.MarkDispatched(cctx, campaign.ID, ids, now); err != nil {
			cspan.RecordError(err)
			logger.Error("dispatcher: mark dispatched", zap.Error(err), zap.String("campaign_id", campaign.ID.String()))
			cspan.End()
			continue
		}

		var failed []uuid.UUID
		for _, item := range due {
			if err := d.publish(cctx, item); err != nil {
				failed = append(failed, item.ID)
				cspan.RecordError(err)
				logger.Error("dispatcher: publish item",
					zap.Error(err),
					zap.String("campaign_id", campaign.ID.String()),
					zap.String("item_id", item.ID.String()))
			}
		}

		// failed publishes get their dispatched_at cleared so the next
		// tick retries them
		if len(failed) > 0 {
			if err := repos.Items.ResetDispatched(cctx, campaign.ID, failed); err != nil {
				cspan.RecordError(err)
				logger.Error("dispatcher: reset dispatched", zap.Error(err), zap.String("campaign_id", campaign.ID.String()))
			}
		}

		logger.Info("dispatcher: batch handed off",
			zap.String("campaign_id", campaign.ID.String()),
			zap.Int("dispatched", len(due)-len(failed)),
			zap.Int("failed", len(failed)))
		cspan.End()
	}

	return nil
}

func (d *Dispatcher) publish(ctx context.Context, item domain.QueueItem) error {
	cfg := d.container.Config

	scheduledFor := time.Time{}
	if item.ScheduledFor != nil {
		scheduledFor = *item.ScheduledFor
	}

	msg := queue.DispatchMessage{
		ItemID:           item.ID,
		CampaignID:       item.CampaignID,
		InstanceID:       item.InstanceID,
		Phone:            item.Phone,
		Name:             item.Name,
		Body:             item.Body,
		Attempt:          1,
		MaxAttempts:      cfg.Retry.MaxAttempts,
		RetryBaseMs:      cfg.Retry.BaseDelay.Milliseconds(),
		RetryMaxMs:       cfg.Retry.MaxDelay.Milliseconds(),
		RetryJitter:      cfg.Retry.Jitter,
		ConcurrencyLimit: cfg.Throttle.DefaultPerInstance,
		ScheduledFor:     scheduledFor,
		EnqueuedAt:       d.container.Clock.Now(),
	}

	return d.container.Publishers().Dispatch.Dispatch(ctx, msg)
}

func (d *Dispatcher) campaignFetchLimit() int {
	limit := d.container.Config.Dispatcher.CampaignFetchLimit
	if limit <= 0 {
		limit = 100
	}
	return limit
}
