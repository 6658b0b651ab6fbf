package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SessionStatus is the lifecycle state of a session instance
type SessionStatus string

const (
	SessionScheduled SessionStatus = "scheduled"
	SessionCancelled SessionStatus = "cancelled"
	SessionCompleted SessionStatus = "completed"
)

// Valid checks whether the status is a known SessionStatus
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionScheduled, SessionCancelled, SessionCompleted:
		return true
	}
	return false
}

// SessionInstance is a concrete occurrence of a SessionType at a Location.
// Capacity is a snapshot taken at creation; BookedCount is written only by the booking engine.
type SessionInstance struct {
	ID            uuid.UUID     `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID      uuid.UUID     `json:"tenantId" gorm:"type:uuid;not null;index:idx_instances_tenant_start,priority:1"`
	SessionTypeID uuid.UUID     `json:"sessionTypeId" gorm:"type:uuid;not null;index"`
	LocationID    uuid.UUID     `json:"locationId" gorm:"type:uuid;not null;index"`
	StartTime     time.Time     `json:"startTime" gorm:"not null;index:idx_instances_tenant_start,priority:2"`
	EndTime       time.Time     `json:"endTime" gorm:"not null"`
	Instructor    string        `json:"instructor" gorm:"type:varchar(100)"`
	Notes         string        `json:"notes,omitempty" gorm:"type:varchar(1000)"`
	Capacity      int           `json:"capacity" gorm:"not null"`
	BookedCount   int           `json:"bookedCount" gorm:"not null;default:0"`
	Status        SessionStatus `json:"status" gorm:"type:varchar(20);not null;default:'scheduled';index"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`

	SessionType *SessionType `json:"sessionType,omitempty" gorm:"foreignKey:SessionTypeID"`
	Location    *Location    `json:"location,omitempty" gorm:"foreignKey:LocationID"`
}

// TableName returns the table name for the SessionInstance model
func (SessionInstance) TableName() string {
	return "session_instances"
}

// BeforeCreate assigns an id when the caller did not
func (s *SessionInstance) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// SpotsAvailable returns the number of seats still open
func (s *SessionInstance) SpotsAvailable() int {
	if s.BookedCount >= s.Capacity {
		return 0
	}
	return s.Capacity - s.BookedCount
}

// IsFull checks whether every seat is taken
func (s *SessionInstance) IsFull() bool {
	return s.BookedCount >= s.Capacity
}

// IsScheduled checks whether the instance still accepts bookings
func (s *SessionInstance) IsScheduled() bool {
	return s.Status == SessionScheduled
}

// HasStarted checks whether the session start is at or before now
func (s *SessionInstance) HasStarted(now time.Time) bool {
	return !s.StartTime.After(now)
}
