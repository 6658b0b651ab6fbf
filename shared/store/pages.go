package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pavitra93/go-gym-booking/shared/apperr"
	"github.com/pavitra93/go-gym-booking/shared/models"
)

// AvailableFilter narrows the session listings. Zero values match everything.
type AvailableFilter struct {
	Category   models.SessionCategory
	LocationID uuid.UUID
	// Date selects instances starting on this UTC calendar day
	Date time.Time
}

// InstanceCursor is the last row of the previous availability page
type InstanceCursor struct {
	StartTime time.Time
	ID        uuid.UUID
}

// BookingCursor is the last row of the previous bookings page
type BookingCursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// filterInstances applies the listing filters shared by the availability and schedule listings
func (s *Scoped) filterInstances(q *gorm.DB, f AvailableFilter, after *InstanceCursor) *gorm.DB {
	if f.Category != "" {
		types := s.db.Model(&models.SessionType{}).
			Select("id").
			Where("tenant_id = ? AND category = ?", s.tenantID, f.Category)
		q = q.Where("session_type_id IN (?)", types)
	}
	if f.LocationID != uuid.Nil {
		q = q.Where("location_id = ?", f.LocationID)
	}
	if !f.Date.IsZero() {
		day := f.Date.UTC().Truncate(24 * time.Hour)
		q = q.Where("start_time >= ? AND start_time < ?", day, day.Add(24*time.Hour))
	}
	if after != nil {
		q = q.Where("(start_time > ? OR (start_time = ? AND id > ?))", after.StartTime.UTC(), after.StartTime.UTC(), after.ID)
	}
	return q.Order("start_time ASC").Order("id ASC")
}

// AvailablePage returns up to limit bookable instances after the cursor,
// ordered by start time then id. Only scheduled instances with a free seat qualify.
func (s *Scoped) AvailablePage(ctx context.Context, now time.Time, f AvailableFilter, after *InstanceCursor, limit int) ([]models.SessionInstance, error) {
	q := withCatalog(s.scope(ctx)).
		Where("status = ? AND start_time > ? AND booked_count < capacity", models.SessionScheduled, now.UTC())

	instances := []models.SessionInstance{}
	if err := s.filterInstances(q, f, after).Limit(limit).Find(&instances).Error; err != nil {
		return nil, apperr.Internal(err, "failed to list available sessions")
	}
	return instances, nil
}

// InstancesPage returns up to limit instances in the given status after the cursor,
// past and full ones included, ordered by start time then id
func (s *Scoped) InstancesPage(ctx context.Context, status models.SessionStatus, f AvailableFilter, after *InstanceCursor, limit int) ([]models.SessionInstance, error) {
	q := withCatalog(s.scope(ctx)).Where("status = ?", status)

	instances := []models.SessionInstance{}
	if err := s.filterInstances(q, f, after).Limit(limit).Find(&instances).Error; err != nil {
		return nil, apperr.Internal(err, "failed to list sessions")
	}
	return instances, nil
}

// MemberBookingsPage returns up to limit of the member's bookings after the cursor,
// newest first. An empty status matches every status.
func (s *Scoped) MemberBookingsPage(ctx context.Context, memberID string, status models.BookingStatus, after *BookingCursor, limit int) ([]models.Booking, error) {
	q := withInstance(s.scope(ctx)).Where("member_id = ?", memberID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if after != nil {
		q = q.Where("(created_at < ? OR (created_at = ? AND id < ?))", after.CreatedAt.UTC(), after.CreatedAt.UTC(), after.ID)
	}

	bookings := []models.Booking{}
	if err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&bookings).Error; err != nil {
		return nil, apperr.Internal(err, "failed to list bookings")
	}
	return bookings, nil
}
