package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/pavitra93/go-gym-booking/shared/models"
)

// Delivery is a booking event read back from the topic
type Delivery struct {
	EventID   uuid.UUID
	TenantID  uuid.UUID
	MemberID  string
	Type      models.BookingEventType
	Payload   json.RawMessage
	Partition int
	Offset    int64
	Time      time.Time
}

// Consumer reads booking events from Kafka
type Consumer struct {
	reader *kafka.Reader
}

// NewConsumer creates a consumer in the given group. An empty group reads
// partition 0 without committing offsets.
func NewConsumer(broker, topic, groupID string) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        []string{broker},
			Topic:          topic,
			GroupID:        groupID,
			MinBytes:       1,
			MaxBytes:       10e6,
			CommitInterval: time.Second,
		}),
	}
}

// decodeMessage rebuilds a Delivery from the headers written by buildMessage
func decodeMessage(msg kafka.Message) (Delivery, error) {
	d := Delivery{
		Payload:   json.RawMessage(msg.Value),
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Time:      msg.Time,
	}
	if !json.Valid(msg.Value) {
		return d, fmt.Errorf("message at offset %d has a non-JSON payload", msg.Offset)
	}

	for _, h := range msg.Headers {
		value := string(h.Value)
		switch h.Key {
		case "event_type":
			d.Type = models.BookingEventType(value)
		case "event_id":
			id, err := uuid.Parse(value)
			if err != nil {
				return d, fmt.Errorf("invalid event_id header: %w", err)
			}
			d.EventID = id
		case "tenant_id":
			id, err := uuid.Parse(value)
			if err != nil {
				return d, fmt.Errorf("invalid tenant_id header: %w", err)
			}
			d.TenantID = id
		case "member_id":
			d.MemberID = value
		}
	}
	if d.Type == "" || d.TenantID == uuid.Nil {
		return d, fmt.Errorf("message at offset %d is missing booking event headers", msg.Offset)
	}
	return d, nil
}

// Consume calls handle for every booking event until ctx is done.
// Messages that are not booking events are logged and skipped.
func (c *Consumer) Consume(ctx context.Context, handle func(Delivery) error) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("failed to read booking event: %w", err)
		}

		d, err := decodeMessage(msg)
		if err != nil {
			logrus.WithError(err).WithField("partition", msg.Partition).Warn("Skipping malformed booking event")
			continue
		}
		if err := handle(d); err != nil {
			return err
		}
	}
}

// Close closes the reader
func (c *Consumer) Close() error {
	if err := c.reader.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka reader: %w", err)
	}
	return nil
}
