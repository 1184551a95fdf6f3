package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher implements the Publisher interface on a Kafka topic.
// Messages are keyed by account id so one account's updates stay ordered.
type KafkaPublisher struct {
	w MessageWriter
}

// NewKafkaWriter returns a hash-balanced writer for topic.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
}

// NewKafkaPublisher wraps a writer.
func NewKafkaPublisher(w MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{w: w}
}

// Make sure we conform to the interface
var _ Publisher = (*KafkaPublisher)(nil)

// Publish writes the message to the topic.
func (k *KafkaPublisher) Publish(ctx context.Context, message Message) error {
	b, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message for kafka: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(partitionKey(message)),
		Value: b,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(message.Type)},
		},
	}
	if err := k.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (k *KafkaPublisher) Close() error {
	return k.w.Close()
}
