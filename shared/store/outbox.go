package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pavitra93/go-gym-booking/shared/apperr"
	"github.com/pavitra93/go-gym-booking/shared/models"
)

// DueEvents returns pending outbox events whose next attempt is due, oldest first.
// The relay spans tenants, so this is not tenant scoped.
func (s *Store) DueEvents(ctx context.Context, now time.Time, limit int) ([]models.BookingEvent, error) {
	var events []models.BookingEvent
	err := s.db.WithContext(ctx).
		Where("status = ? AND next_attempt_at <= ?", models.EventPending, now.UTC()).
		Order("created_at ASC").Order("id ASC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, apperr.Internal(err, "failed to load due events")
	}
	return events, nil
}

// MarkPublished records a successful publish
func (s *Store) MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error {
	err := s.db.WithContext(ctx).Model(&models.BookingEvent{}).
		Where("id = ? AND status = ?", id, models.EventPending).
		Updates(map[string]interface{}{
			"status":       models.EventPublished,
			"published_at": at.UTC(),
			"last_error":   "",
		}).Error
	if err != nil {
		return apperr.Internal(err, "failed to mark event %s published", id)
	}
	return nil
}

// MarkAttempt records a failed publish. When giveUp is set the event is marked failed
// and will not be retried.
func (s *Store) MarkAttempt(ctx context.Context, id uuid.UUID, attempts int, next time.Time, lastErr string, giveUp bool) error {
	status := models.EventPending
	if giveUp {
		status = models.EventFailed
	}
	err := s.db.WithContext(ctx).Model(&models.BookingEvent{}).
		Where("id = ? AND status = ?", id, models.EventPending).
		Updates(map[string]interface{}{
			"status":          status,
			"attempts":        attempts,
			"next_attempt_at": next.UTC(),
			"last_error":      lastErr,
		}).Error
	if err != nil {
		return apperr.Internal(err, "failed to record attempt for event %s", id)
	}
	return nil
}

// CountEvents returns how many outbox events have the given status
func (s *Store) CountEvents(ctx context.Context, status models.EventStatus) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.BookingEvent{}).Where("status = ?", status).Count(&count).Error
	if err != nil {
		return 0, apperr.Internal(err, "failed to count events")
	}
	return count, nil
}
