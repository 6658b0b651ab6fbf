package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BookingEventType string

const (
	EventBookingCreated   BookingEventType = "booking_created"
	EventBookingCancelled BookingEventType = "booking_cancelled"
)

type EventStatus string

const (
	EventPending   EventStatus = "pending"
	EventPublished EventStatus = "published"
	EventFailed    EventStatus = "failed"
)

// BookingEvent is an outbox row written in the same transaction as the booking change
type BookingEvent struct {
	ID                uuid.UUID        `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID          uuid.UUID        `json:"tenantId" gorm:"type:uuid;not null;index"`
	MemberID          string           `json:"memberId" gorm:"type:varchar(255);not null"`
	SessionInstanceID uuid.UUID        `json:"sessionInstanceId" gorm:"type:uuid;not null"`
	BookingID         uuid.UUID        `json:"bookingId" gorm:"type:uuid;not null;index"`
	Type              BookingEventType `json:"type" gorm:"type:varchar(40);not null"`
	Payload           string           `json:"payload" gorm:"type:text;not null"`
	Status            EventStatus      `json:"status" gorm:"type:varchar(20);not null;default:pending;index:idx_booking_events_due,priority:1"`
	Attempts          int              `json:"attempts" gorm:"not null;default:0"`
	NextAttemptAt     time.Time        `json:"nextAttemptAt" gorm:"not null;index:idx_booking_events_due,priority:2"`
	LastError         string           `json:"lastError,omitempty" gorm:"type:text"`
	CreatedAt         time.Time        `json:"createdAt"`
	PublishedAt       *time.Time       `json:"publishedAt,omitempty"`
}

// TableName returns the table name for the BookingEvent model
func (BookingEvent) TableName() string {
	return "booking_events"
}

// BeforeCreate assigns an id and makes the event due immediately
func (e *BookingEvent) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Status == "" {
		e.Status = EventPending
	}
	if e.NextAttemptAt.IsZero() {
		e.NextAttemptAt = time.Now().UTC()
	}
	return nil
}
