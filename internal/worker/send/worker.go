package send

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/acme/broadcast-dispatch/internal/app"
	"github.com/acme/broadcast-dispatch/internal/domain"
	"github.com/acme/broadcast-dispatch/internal/instancelimit"
	"github.com/acme/broadcast-dispatch/internal/messaging"
	"github.com/acme/broadcast-dispatch/internal/queue"
	apperrors "github.com/acme/broadcast-dispatch/pkg/errors"
)

// Worker consumes dispatch events and delivers messages through the
// configured provider.
type Worker struct {
	container *app.Container
	rng       *rand.Rand
	limiter   *instancelimit.Limiter
}

// New creates a new send worker instance.
func New(container *app.Container) *Worker {
	return &Worker{
		container: container,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		limiter:   container.Limiters().Instance,
	}
}

// Run starts the worker loop.
func (w *Worker) Run(ctx context.Context) error {
	cfg := w.container.Config
	reader := w.container.Kafka.NewReader(cfg.Kafka.DispatchTopic, cfg.Kafka.ConsumerGroupID)
	defer reader.Close()

	for {
		m, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.container.Logger.Error("send worker: fetch message", zap.Error(err))
			continue
		}

		if err := w.processMessage(ctx, reader, m); err != nil {
			w.container.Logger.Error("send worker: process", zap.Error(err))
		}
	}
}

func (w *Worker) processMessage(ctx context.Context, reader *kafka.Reader, m kafka.Message) error {
	var dispatch queue.DispatchMessage
	if err := json.Unmarshal(m.Value, &dispatch); err != nil {
		_ = reader.CommitMessages(ctx, m)
		return fmt.Errorf("unmarshal dispatch: %w", err)
	}

	tracer := otel.Tracer("broadcast.sendworker")
	sctx, span := tracer.Start(ctx, "message.send", trace.WithAttributes(
		attribute.String("item.id", dispatch.ItemID.String()),
		attribute.String("campaign.id", dispatch.CampaignID.String()),
		attribute.Int("attempt", dispatch.Attempt),
	))
	defer span.End()

	// a cancel or pause racing the dispatcher may have landed after this
	// message was published; the campaign row is authoritative
	deliverable, err := w.stillDeliverable(sctx, dispatch)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if !deliverable {
		span.SetAttributes(attribute.Bool("skipped", true))
		return reader.CommitMessages(sctx, m)
	}

	release, err := w.waitForSlot(sctx, dispatch)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if release != nil {
		defer release()
	}

	cfg := w.container.Config
	provider := w.container.Providers().Messaging
	publisher := w.container.Publishers().Status

	timeout := cfg.Messaging.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	sendCtx, cancel := context.WithTimeout(sctx, timeout)
	result, sendErr := provider.Send(sendCtx, dispatch)
	cancel()

	statusMsg := queue.StatusMessage{
		ItemID:           dispatch.ItemID,
		CampaignID:       dispatch.CampaignID,
		InstanceID:       dispatch.InstanceID,
		Phone:            dispatch.Phone,
		Name:             dispatch.Name,
		Body:             dispatch.Body,
		Status:           result.Status,
		Attempt:          dispatch.Attempt,
		MaxAttempts:      dispatch.MaxAttempts,
		Retryable:        result.Retryable && dispatch.Attempt < dispatch.MaxAttempts,
		RetryBaseMs:      dispatch.RetryBaseMs,
		RetryMaxMs:       dispatch.RetryMaxMs,
		RetryJitter:      dispatch.RetryJitter,
		ConcurrencyLimit: dispatch.ConcurrencyLimit,
		Error:            result.Error,
		OccurredAt:       time.Now().UTC(),
	}

	if result.Duration > 0 {
		statusMsg.DurationMs = int64(result.Duration / time.Millisecond)
	}

	if sendErr != nil && statusMsg.Error == "" {
		statusMsg.Error = sendErr.Error()
		statusMsg.Retryable = dispatch.Attempt < dispatch.MaxAttempts
		statusMsg.Status = messaging.StatusFailed
		span.RecordError(sendErr)
	}

	if statusMsg.Retryable {
		next := w.computeNextAttempt(dispatch)
		statusMsg.NextAttempt = &next
	}

	if err := publisher.PublishStatus(sctx, statusMsg); err != nil {
		span.RecordError(err)
		w.container.Logger.Error("send worker: publish status", zap.Error(err))
	}

	if err := reader.CommitMessages(sctx, m); err != nil {
		span.RecordError(err)
		return fmt.Errorf("commit message: %w", err)
	}
	return nil
}

func (w *Worker) stillDeliverable(ctx context.Context, dispatch queue.DispatchMessage) (bool, error) {
	repos := w.container.Repositories()

	campaign, err := repos.Campaigns.Get(ctx, dispatch.CampaignID)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("load campaign: %w", err)
	}

	switch campaign.Status {
	case domain.CampaignStatusRunning:
		return true, nil
	case domain.CampaignStatusPaused:
		// hand the item back to the dispatcher for after the resume
		if err := repos.Items.ResetDispatched(ctx, dispatch.CampaignID, []uuid.UUID{dispatch.ItemID}); err != nil {
			return false, fmt.Errorf("reset dispatched: %w", err)
		}
		return false, nil
	default:
		return false, nil
	}
}

func (w *Worker) waitForSlot(ctx context.Context, dispatch queue.DispatchMessage) (func(), error) {
	limiter := w.limiter
	if limiter == nil || dispatch.InstanceID == uuid.Nil {
		return nil, nil
	}

	limit := dispatch.ConcurrencyLimit
	if limit <= 0 {
		limit = w.container.Config.Throttle.DefaultPerInstance
	}
	if limit <= 0 {
		return nil, nil
	}

	for {
		acquired, err := limiter.Acquire(ctx, dispatch.InstanceID, limit)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
		if acquired {
			release := func() {
				if err := limiter.Release(context.Background(), dispatch.InstanceID); err != nil {
					w.container.Logger.Warn("send worker: release slot", zap.Error(err))
				}
			}
			return release, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func (w *Worker) computeNextAttempt(msg queue.DispatchMessage) time.Time {
	base := time.Duration(msg.RetryBaseMs) * time.Millisecond
	if base <= 0 {
		base = 2 * time.Second
	}
	maxDelay := time.Duration(msg.RetryMaxMs) * time.Millisecond
	if maxDelay <= 0 {
		maxDelay = 2 * time.Minute
	}

	exponent := math.Pow(2, float64(msg.Attempt-1))
	delay := time.Duration(exponent) * base
	if delay > maxDelay {
		delay = maxDelay
	}

	if msg.RetryJitter > 0 {
		jitterFraction := w.rng.Float64()*msg.RetryJitter - (msg.RetryJitter / 2)
		jitter := time.Duration(float64(delay) * jitterFraction)
		delay += jitter
		if delay < base {
			delay = base
		}
	}

	return time.Now().UTC().Add(delay)
}
