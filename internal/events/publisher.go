// Package events publishes batch lifecycle notifications to Kafka.
// Publishing is optional: without configured brokers the publisher is
// disabled and every publish is a no-op.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// DefaultTopic is the topic batch completion events are published to.
const DefaultTopic = "orders.batch-completed"

type (
	// BatchCompleted is emitted after a batch load reaches COMPLETED.
	// Downstream consumers (reporting, fulfilment) react to it; the upload
	// response does not depend on delivery.
	BatchCompleted struct {
		BatchLoadID    string    `json:"batchLoadId"`
		IdempotencyKey string    `json:"idempotencyKey"`
		FileDigest     string    `json:"fileDigest"`
		TotalProcessed int       `json:"totalProcessed"`
		StoredCount    int       `json:"storedCount"`
		ErrorCount     int       `json:"errorCount"`
		CompletedAt    time.Time `json:"completedAt"`
	}

	// Publisher writes batch events to Kafka. The zero value and the nil
	// pointer are both disabled publishers.
	Publisher struct {
		writer *kafka.Writer
		logger *slog.Logger
	}
)

// NewPublisher creates a Kafka publisher for the given brokers and topic.
// An empty broker list returns a disabled publisher.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	if len(brokers) == 0 {
		return nil
	}

	if topic == "" {
		topic = DefaultTopic
	}

	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 50 * time.Millisecond,
		},
		logger: logger,
	}
}

// Enabled reports whether events will actually be published.
func (p *Publisher) Enabled() bool {
	return p != nil && p.writer != nil
}

// PublishBatchCompleted publishes a batch completion event, keyed by batch
// load ID so all events of one batch land on the same partition. Disabled
// publishers return nil immediately.
func (p *Publisher) PublishBatchCompleted(ctx context.Context, event BatchCompleted) error {
	if !p.Enabled() {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode batch completed event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.BatchLoadID),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("failed to publish batch completed event: %w", err)
	}

	p.logger.Debug("published batch completed event",
		slog.String("batch_load_id", event.BatchLoadID),
		slog.String("topic", p.writer.Topic),
	)

	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	if !p.Enabled() {
		return nil
	}

	return p.writer.Close()
}
