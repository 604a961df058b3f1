package retry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/acme/broadcast-dispatch/internal/app"
	"github.com/acme/broadcast-dispatch/internal/queue"
)

// Worker drains the per-attempt retry topics and redispatches failed
// sends once their backoff has elapsed.
type Worker struct {
	container *app.Container
}

// New creates a retry worker instance.
func New(container *app.Container) *Worker {
	return &Worker{container: container}
}

// Run consumes every configured retry topic until cancelled.
func (w *Worker) Run(ctx context.Context) error {
	cfg := w.container.Config
	if len(cfg.Kafka.RetryTopics) == 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, len(cfg.Kafka.RetryTopics))
	var wg sync.WaitGroup

	for idx, topic := range cfg.Kafka.RetryTopics {
		wg.Add(1)
		go func(topic string, attemptIndex int) {
			defer wg.Done()
			if err := w.consumeTopic(ctx, topic, attemptIndex); err != nil && ctx.Err() == nil {
				errCh <- err
			}
		}(topic, idx+1)
	}

	select {
	case <-ctx.Done():
		wg.Wait()
		return ctx.Err()
	case err := <-errCh:
		cancel()
		wg.Wait()
		return err
	}
}

func (w *Worker) consumeTopic(ctx context.Context, topic string, attemptIndex int) error {
	cfg := w.container.Config
	groupID := cfg.Kafka.RetryConsumerGroupID
	if groupID == "" {
		groupID = fmt.Sprintf("%s-retry-%d", cfg.Kafka.ConsumerGroupID, attemptIndex)
	} else {
		groupID = fmt.Sprintf("%s-%d", groupID, attemptIndex)
	}

	// Explicit commits only. The worker sleeps out each message's backoff
	// before redispatching, so an interval-based commit could acknowledge a
	// retry that was never re-published.
	reader := w.container.Kafka.NewReaderWithConfig(kafka.ReaderConfig{
		Brokers:        cfg.Kafka.Brokers,
		Topic:          topic,
		GroupID:        groupID,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: 0,
		MinBytes:       1,
		MaxBytes:       10e6,
	})
	defer reader.Close()

	dispatcher := w.container.Publishers().Dispatch
	logger := w.container.Logger

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Error("retry worker: fetch", zap.Error(err))
			continue
		}

		var retryMsg queue.RetryMessage
		if err := json.Unmarshal(msg.Value, &retryMsg); err != nil {
			logger.Error("retry worker: unmarshal", zap.Error(err))
			_ = reader.CommitMessages(ctx, msg)
			continue
		}

		tracer := otel.Tracer("broadcast.retryworker")
		sctx, span := tracer.Start(ctx, "retry.dispatch", trace.WithAttributes(
			attribute.String("item.id", retryMsg.ItemID.String()),
			attribute.String("campaign.id", retryMsg.CampaignID.String()),
			attribute.Int("attempt", retryMsg.DispatchMessage.Attempt),
		))

		if sleepErr := w.sleepUntil(sctx, retryMsg.NextAttempt); sleepErr != nil {
			span.RecordError(sleepErr)
			span.End()
			logger.Error("retry worker: wait", zap.Error(sleepErr))
			_ = reader.CommitMessages(sctx, msg)
			continue
		}

		dispatch := retryMsg.DispatchMessage
		dispatch.EnqueuedAt = time.Now().UTC()

		if err := dispatcher.Dispatch(sctx, dispatch); err != nil {
			span.RecordError(err)
			span.End()
			logger.Error("retry worker: dispatch", zap.Error(err))
			continue
		}

		if err := reader.CommitMessages(sctx, msg); err != nil {
			span.RecordError(err)
			logger.Error("retry worker: commit", zap.Error(err))
		}
		span.End()
	}
}

func (w *Worker) sleepUntil(ctx context.Context, t time.Time) error {
	d := time.Until(t)
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
