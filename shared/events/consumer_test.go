package events

import (
	"testing"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavitra93/go-gym-booking/shared/models"
)

func TestDecodeMessage_RoundTrip(t *testing.T) {
	evt := models.BookingEvent{
		ID:       uuid.New(),
		TenantID: uuid.New(),
		MemberID: "member-7",
		Type:     models.EventBookingCreated,
		Payload:  `{"bookedCount":3}`,
	}
	msg := buildMessage("booking-events", evt)
	msg.Partition = 2
	msg.Offset = 41

	d, err := decodeMessage(msg)
	require.NoError(t, err)
	assert.Equal(t, evt.ID, d.EventID)
	assert.Equal(t, evt.TenantID, d.TenantID)
	assert.Equal(t, "member-7", d.MemberID)
	assert.Equal(t, models.EventBookingCreated, d.Type)
	assert.JSONEq(t, evt.Payload, string(d.Payload))
	assert.Equal(t, 2, d.Partition)
	assert.Equal(t, int64(41), d.Offset)
}

func TestDecodeMessage_Malformed(t *testing.T) {
	tests := []struct {
		name string
		msg  kafka.Message
	}{
		{"no headers", kafka.Message{Value: []byte(`{}`)}},
		{"bad payload", kafka.Message{Value: []byte(`not json`), Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("booking_created")},
			{Key: "tenant_id", Value: []byte(uuid.NewString())},
		}}},
		{"bad tenant", kafka.Message{Value: []byte(`{}`), Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("booking_created")},
			{Key: "tenant_id", Value: []byte("gym-1")},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeMessage(tt.msg)
			assert.Error(t, err)
		})
	}
}
