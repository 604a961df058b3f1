package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// MessageDispatcher publishes send instructions to Kafka.
type MessageDispatcher struct {
	writer *kafka.Writer
}

// NewMessageDispatcher constructs a dispatcher for the given topic.
func NewMessageDispatcher(k *Kafka, topic string) *MessageDispatcher {
	return &MessageDispatcher{writer: k.NewWriter(topic)}
}

// Dispatch writes the dispatch message to Kafka, keyed by item so retries
// of the same message land on the same partition.
func (d *MessageDispatcher) Dispatch(ctx context.Context, msg DispatchMessage) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("message dispatcher: marshal message: %w", err)
	}

	record := kafka.Message{
		Key:   msg.ItemID[:],
		Value: value,
		Time:  time.Now().UTC(),
	}

	if err := d.writer.WriteMessages(ctx, record); err != nil {
		return fmt.Errorf("message dispatcher: write message: %w", err)
	}
	return nil
}

// Close closes the underlying writer.
func (d *MessageDispatcher) Close() error {
	return d.writer.Close()
}
