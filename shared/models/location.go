package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Location represents a studio or facility where sessions take place
type Location struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID  uuid.UUID `json:"tenantId" gorm:"type:uuid;not null;index;uniqueIndex:idx_locations_tenant_name,priority:1"`
	Name      string    `json:"name" gorm:"type:varchar(100);not null;uniqueIndex:idx_locations_tenant_name,priority:2"`
	Address   string    `json:"address" gorm:"type:varchar(500)"`
	Capacity  *int      `json:"capacity"` // advisory, not enforced against instances
	Timezone  string    `json:"timezone" gorm:"type:varchar(64)"`
	IsActive  bool      `json:"isActive" gorm:"not null;default:true"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName returns the table name for the Location model
func (Location) TableName() string {
	return "locations"
}

// BeforeCreate assigns an id when the caller did not
func (l *Location) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
