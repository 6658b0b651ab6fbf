package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pavitra93/go-gym-booking/shared/apperr"
	"github.com/pavitra93/go-gym-booking/shared/models"
)

func withInstance(db *gorm.DB) *gorm.DB {
	return db.Preload("SessionInstance.SessionType").Preload("SessionInstance.Location")
}

// Booking returns one booking of this tenant with its instance
func (s *Scoped) Booking(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	var b models.Booking
	if err := withInstance(s.scope(ctx)).First(&b, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "Booking", id)
	}
	return &b, nil
}

// HasConfirmedBooking reports whether the member already holds a seat on the instance
func (s *Scoped) HasConfirmedBooking(ctx context.Context, memberID string, instanceID uuid.UUID) (bool, error) {
	var count int64
	err := s.scope(ctx).Model(&models.Booking{}).
		Where("member_id = ? AND session_instance_id = ? AND status = ?", memberID, instanceID, models.BookingConfirmed).
		Count(&count).Error
	if err != nil {
		return false, apperr.Internal(err, "failed to check existing booking")
	}
	return count > 0, nil
}

// CountConfirmed returns the number of confirmed bookings on an instance
func (s *Scoped) CountConfirmed(ctx context.Context, instanceID uuid.UUID) (int, error) {
	var count int64
	err := s.scope(ctx).Model(&models.Booking{}).
		Where("session_instance_id = ? AND status = ?", instanceID, models.BookingConfirmed).
		Count(&count).Error
	if err != nil {
		return 0, apperr.Internal(err, "failed to count bookings")
	}
	return int(count), nil
}

// CreateBooking inserts a confirmed booking. A second confirmed booking for the
// same member and instance is rejected by the unique index as AlreadyBooked.
func (s *Scoped) CreateBooking(ctx context.Context, b *models.Booking) error {
	b.TenantID = s.tenantID
	b.Status = models.BookingConfirmed
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(b).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperr.New(apperr.KindAlreadyBooked, "You have already booked this session")
		}
		return apperr.Internal(err, "failed to create booking")
	}
	return nil
}

// MarkCancelled moves a confirmed booking to cancelled.
// It returns false when the booking was not confirmed.
func (s *Scoped) MarkCancelled(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := s.scope(ctx).Model(&models.Booking{}).
		Where("id = ? AND status = ?", id, models.BookingConfirmed).
		Updates(map[string]interface{}{
			"status":       models.BookingCancelled,
			"cancelled_at": at.UTC(),
			"updated_at":   utcNow(),
		})
	if res.Error != nil {
		return false, apperr.Internal(res.Error, "failed to cancel booking %s", id)
	}
	return res.RowsAffected == 1, nil
}

// AppendEvent writes an outbox event for this tenant
func (s *Scoped) AppendEvent(ctx context.Context, evt *models.BookingEvent) error {
	evt.TenantID = s.tenantID
	if err := s.db.WithContext(ctx).Create(evt).Error; err != nil {
		return apperr.Internal(err, "failed to record booking event")
	}
	return nil
}
