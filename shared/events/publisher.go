package events

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/pavitra93/go-gym-booking/shared/models"
)

// Publisher delivers one outbox event to the message broker
type Publisher interface {
	Publish(ctx context.Context, evt models.BookingEvent) error
	Close() error
}

// KafkaPublisher writes booking events to a Kafka topic, keyed by tenant
type KafkaPublisher struct {
	writer *kafka.Writer
	topic  string
}

// NewKafkaPublisher creates a publisher for broker and topic
func NewKafkaPublisher(broker, topic string) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(broker),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		BatchSize:              100,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: writer, topic: topic}
}

// buildMessage keys by tenant so one tenant's events stay ordered within a partition
func buildMessage(topic string, evt models.BookingEvent) kafka.Message {
	return kafka.Message{
		Topic: topic,
		Key:   []byte(evt.TenantID.String()),
		Value: []byte(evt.Payload),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(evt.Type)},
			{Key: "event_id", Value: []byte(evt.ID.String())},
			{Key: "tenant_id", Value: []byte(evt.TenantID.String())},
			{Key: "member_id", Value: []byte(evt.MemberID)},
		},
		Time: evt.CreatedAt,
	}
}

// Publish writes evt synchronously
func (p *KafkaPublisher) Publish(ctx context.Context, evt models.BookingEvent) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, buildMessage(p.topic, evt)); err != nil {
		return fmt.Errorf("failed to write booking event to Kafka: %w", err)
	}
	return nil
}

// Close flushes pending writes and closes the writer
func (p *KafkaPublisher) Close() error {
	logrus.Info("Closing Kafka publisher")
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka writer: %w", err)
	}
	return nil
}
