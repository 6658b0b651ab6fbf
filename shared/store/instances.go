package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pavitra93/go-gym-booking/shared/apperr"
	"github.com/pavitra93/go-gym-booking/shared/models"
)

func withCatalog(db *gorm.DB) *gorm.DB {
	return db.Preload("SessionType").Preload("Location")
}

// Instance returns one session instance with its type and location
func (s *Scoped) Instance(ctx context.Context, id uuid.UUID) (*models.SessionInstance, error) {
	var inst models.SessionInstance
	if err := withCatalog(s.scope(ctx)).First(&inst, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "Session instance", id)
	}
	return &inst, nil
}

// LockInstance re-reads the instance row inside a transaction, taking a row lock where the database supports it
func (s *Scoped) LockInstance(ctx context.Context, id uuid.UUID) (*models.SessionInstance, error) {
	var inst models.SessionInstance
	err := s.scope(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&inst, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, "Session instance", id)
	}
	return &inst, nil
}

// HasOverlap reports whether a non-cancelled instance at the location intersects [start, end)
func (s *Scoped) HasOverlap(ctx context.Context, locationID uuid.UUID, start, end time.Time) (bool, error) {
	var count int64
	err := s.scope(ctx).Model(&models.SessionInstance{}).
		Where("location_id = ? AND start_time < ? AND end_time > ?", locationID, end.UTC(), start.UTC()).
		Where("status <> ?", models.SessionCancelled).
		Count(&count).Error
	if err != nil {
		return false, apperr.Internal(err, "failed to check schedule overlap")
	}
	return count > 0, nil
}

// CreateInstance inserts a scheduled session instance for this tenant with no seats booked
func (s *Scoped) CreateInstance(ctx context.Context, inst *models.SessionInstance) error {
	inst.TenantID = s.tenantID
	inst.BookedCount = 0
	inst.Status = models.SessionScheduled
	inst.StartTime = inst.StartTime.UTC()
	inst.EndTime = inst.EndTime.UTC()
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(inst).Error; err != nil {
		return apperr.Internal(err, "failed to create session instance")
	}
	return nil
}

// SetInstanceStatus moves the instance to status when its current status is one of from.
// It returns false when the instance was in any other status.
func (s *Scoped) SetInstanceStatus(ctx context.Context, instanceID uuid.UUID, status models.SessionStatus, from ...models.SessionStatus) (bool, error) {
	res := s.scope(ctx).Model(&models.SessionInstance{}).
		Where("id = ? AND status IN ?", instanceID, from).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": utcNow(),
		})
	if res.Error != nil {
		return false, apperr.Internal(res.Error, "failed to mark session %s %s", instanceID, status)
	}
	return res.RowsAffected == 1, nil
}

// ReserveSeat increments booked_count unless the instance is full.
// It returns false when no seat was left.
func (s *Scoped) ReserveSeat(ctx context.Context, instanceID uuid.UUID) (bool, error) {
	res := s.scope(ctx).Model(&models.SessionInstance{}).
		Where("id = ? AND booked_count < capacity", instanceID).
		Updates(map[string]interface{}{
			"booked_count": gorm.Expr("booked_count + 1"),
			"updated_at":   utcNow(),
		})
	if res.Error != nil {
		return false, apperr.Internal(res.Error, "failed to reserve seat on %s", instanceID)
	}
	return res.RowsAffected == 1, nil
}

// ReleaseSeat decrements booked_count, never below zero.
// It returns false when the count was already zero.
func (s *Scoped) ReleaseSeat(ctx context.Context, instanceID uuid.UUID) (bool, error) {
	res := s.scope(ctx).Model(&models.SessionInstance{}).
		Where("id = ? AND booked_count > 0", instanceID).
		Updates(map[string]interface{}{
			"booked_count": gorm.Expr("booked_count - 1"),
			"updated_at":   utcNow(),
		})
	if res.Error != nil {
		return false, apperr.Internal(res.Error, "failed to release seat on %s", instanceID)
	}
	return res.RowsAffected == 1, nil
}

// SetBookedCount overwrites booked_count, used by the reconciler
func (s *Scoped) SetBookedCount(ctx context.Context, instanceID uuid.UUID, count int) error {
	res := s.scope(ctx).Model(&models.SessionInstance{}).
		Where("id = ? AND capacity >= ?", instanceID, count).
		Updates(map[string]interface{}{
			"booked_count": count,
			"updated_at":   utcNow(),
		})
	if res.Error != nil {
		return apperr.Internal(res.Error, "failed to set booked count on %s", instanceID)
	}
	if res.RowsAffected == 0 {
		return apperr.Internal(nil, "booked count %d rejected for %s", count, instanceID)
	}
	return nil
}

// OccupancyDrift is an instance whose booked_count disagrees with its confirmed bookings
type OccupancyDrift struct {
	TenantID    uuid.UUID
	InstanceID  uuid.UUID
	BookedCount int
	Confirmed   int
}

// FindDrift lists instances ending after since whose booked_count differs from
// their confirmed booking count. It spans all tenants.
func (s *Store) FindDrift(ctx context.Context, since time.Time) ([]OccupancyDrift, error) {
	var drift []OccupancyDrift
	err := s.db.WithContext(ctx).Raw(`
		SELECT si.tenant_id AS tenant_id, si.id AS instance_id, si.booked_count AS booked_count, COUNT(b.id) AS confirmed
		FROM session_instances si
		LEFT JOIN bookings b
			ON b.session_instance_id = si.id AND b.tenant_id = si.tenant_id AND b.status = ?
		WHERE si.end_time > ?
		GROUP BY si.tenant_id, si.id, si.booked_count
		HAVING si.booked_count <> COUNT(b.id)`,
		models.BookingConfirmed, since.UTC(),
	).Scan(&drift).Error
	if err != nil {
		return nil, apperr.Internal(err, "failed to scan occupancy")
	}
	return drift, nil
}
