package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BookingStatus string

const (
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

// Booking records one member's reservation of one seat on a session instance.
// Cancelled bookings are kept; only confirmed ones take a seat.
type Booking struct {
	ID                uuid.UUID     `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID          uuid.UUID     `json:"tenantId" gorm:"type:uuid;not null;index:idx_bookings_tenant_member,priority:1"`
	MemberID          string        `json:"memberId" gorm:"type:varchar(255);not null;index:idx_bookings_tenant_member,priority:2;uniqueIndex:idx_bookings_one_confirmed,where:status = 'confirmed'"`
	SessionInstanceID uuid.UUID     `json:"sessionInstanceId" gorm:"type:uuid;not null;index;uniqueIndex:idx_bookings_one_confirmed"`
	Status            BookingStatus `json:"status" gorm:"type:varchar(20);not null;default:confirmed"`
	Notes             string        `json:"notes,omitempty" gorm:"type:varchar(500)"`
	CreatedAt         time.Time     `json:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt"`
	CancelledAt       *time.Time    `json:"cancelledAt,omitempty"`

	SessionInstance *SessionInstance `json:"sessionInstance,omitempty" gorm:"foreignKey:SessionInstanceID"`
}

// TableName returns the table name for the Booking model
func (Booking) TableName() string {
	return "bookings"
}

// BeforeCreate assigns an id when the caller did not
func (b *Booking) BeforeCreate(*gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

func (b *Booking) IsConfirmed() bool {
	return b.Status == BookingConfirmed
}
