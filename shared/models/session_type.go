package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SessionCategory tags what kind of activity a session type is
type SessionCategory string

const (
	CategoryClass    SessionCategory = "class"
	CategoryPT       SessionCategory = "pt"
	CategoryGroup    SessionCategory = "group"
	CategoryWorkshop SessionCategory = "workshop"
)

// SessionType is a reusable template. It is never booked directly.
type SessionType struct {
	ID          uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID    uuid.UUID       `json:"tenantId" gorm:"type:uuid;not null;index"`
	Name        string          `json:"name" gorm:"type:varchar(100);not null"`
	Description string          `json:"description" gorm:"type:varchar(1000)"`
	DurationMin int             `json:"durationMin" gorm:"not null"`
	MaxCapacity int             `json:"maxCapacity" gorm:"not null"`
	Category    SessionCategory `json:"category" gorm:"type:varchar(20);not null;index"`
	Difficulty  string          `json:"difficulty,omitempty" gorm:"type:varchar(20)"`
	IsActive    bool            `json:"isActive" gorm:"not null;default:true"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// TableName returns the table name for the SessionType model
func (SessionType) TableName() string {
	return "session_types"
}

// BeforeCreate assigns an id when the caller did not
func (s *SessionType) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// Duration returns the default length of an instance of this type
func (s *SessionType) Duration() time.Duration {
	return time.Duration(s.DurationMin) * time.Minute
}
