package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/prudhivi99/order-tracking/internal/models"
)

// Publisher writes order domain events to Kafka. Delivery is
// at-least-once: consumers must tolerate duplicates.
type Publisher struct {
	writer *kafka.Writer
}

func NewPublisher(brokers []string) *Publisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{}, // same key, same partition
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}

	log.Printf("✅ Kafka publisher ready (brokers: %v)", brokers)
	return &Publisher{writer: writer}
}

// publish sends one JSON-encoded event keyed by order ID, with the
// event type and an ISO-8601 emission timestamp in the headers.
func (p *Publisher) publish(ctx context.Context, topic, orderID, eventType string, payload interface{}) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(orderID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "timestamp", Value: []byte(time.Now().UTC().Format(time.RFC3339))},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}

	log.Printf("📤 Published %s event for order %s", eventType, orderID)
	return nil
}

// PublishOrderCreated publishes the full order projection to order.created.
func (p *Publisher) PublishOrderCreated(ctx context.Context, order *models.Order) error {
	return p.publish(ctx, TopicOrderCreated, order.OrderID, EventTypeOrderCreated, order)
}

// PublishStatusChanged publishes a status delta to order.status.changed.
func (p *Publisher) PublishStatusChanged(ctx context.Context, event models.StatusChangedEvent) error {
	return p.publish(ctx, TopicStatusChanged, event.OrderID, EventTypeStatusChanged, event)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// Handler processes one consumed message. A non-nil error is logged
// and the message is skipped; it never stops the consumer.
type Handler func(ctx context.Context, topic string, key, value []byte) error

// Consumer reads one or more topics as part of a consumer group.
// Kafka delivers every event for a given order ID to the group in
// publish order; ordering across different orders is not guaranteed.
type Consumer struct {
	reader *kafka.Reader
}

func NewConsumer(brokers []string, groupID string, topics []string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		GroupTopics: topics,
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})

	log.Printf("👂 Kafka consumer %s listening on %v", groupID, topics)
	return &Consumer{reader: reader}
}

// Run consumes until ctx is cancelled. A failing handler must not
// stall delivery for unrelated orders sharing the group, so its
// message is committed anyway and processing continues.
func (c *Consumer) Run(ctx context.Context, handler Handler) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to fetch message: %w", err)
		}

		log.Printf("📥 Received event from %s (order %s)", msg.Topic, string(msg.Key))

		if err := handler(ctx, msg.Topic, msg.Key, msg.Value); err != nil {
			log.Printf("❌ Failed to process message from %s: %v", msg.Topic, err)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			log.Printf("⚠️ Failed to commit offset: %v", err)
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
