package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pavitra93/go-gym-booking/shared/apperr"
	"github.com/pavitra93/go-gym-booking/shared/lock"
	"github.com/pavitra93/go-gym-booking/shared/models"
	"github.com/pavitra93/go-gym-booking/shared/store"
)

// InstanceRequest describes a session instance to schedule.
// EndTime defaults to StartTime plus the type's duration, Capacity to its max capacity.
type InstanceRequest struct {
	SessionTypeID uuid.UUID
	LocationID    uuid.UUID
	StartTime     time.Time
	EndTime       *time.Time
	Capacity      *int
	Instructor    string
	Notes         string
}

// Scheduler materializes session instances from session types
type Scheduler struct {
	store    *store.Store
	locker   lock.Locker
	lockWait time.Duration
	now      func() time.Time
}

func NewScheduler(s *store.Store, locker lock.Locker, opts Options) *Scheduler {
	opts = opts.withDefaults()
	return &Scheduler{store: s, locker: locker, lockWait: opts.LockWait, now: opts.Now}
}

// CreateInstance schedules a new instance with a capacity snapshot and no bookings
func (s *Scheduler) CreateInstance(ctx context.Context, tenantID uuid.UUID, req InstanceRequest) (inst *models.SessionInstance, err error) {
	defer func() { observe("create_instance", err) }()

	scoped := s.store.ForTenant(tenantID)

	sessionType, err := scoped.SessionType(ctx, req.SessionTypeID)
	if err != nil {
		return nil, err
	}
	location, err := scoped.Location(ctx, req.LocationID)
	if err != nil {
		return nil, err
	}

	start := req.StartTime.UTC()
	if !start.After(s.now()) {
		return nil, apperr.New(apperr.KindInvalidSchedule, "Start time must be in the future")
	}

	end := start.Add(sessionType.Duration())
	if req.EndTime != nil {
		end = req.EndTime.UTC()
		if !end.After(start) {
			return nil, apperr.New(apperr.KindInvalidSchedule, "End time must be after start time")
		}
	}

	capacity := sessionType.MaxCapacity
	if req.Capacity != nil {
		if *req.Capacity <= 0 {
			return nil, apperr.New(apperr.KindValidation, "capacity must be positive")
		}
		capacity = *req.Capacity
	}

	release, err := acquire(ctx, s.locker, lock.LocationKey(location.ID), s.lockWait, "create_instance")
	if err != nil {
		return nil, err
	}
	defer release()

	created := &models.SessionInstance{
		SessionTypeID: sessionType.ID,
		LocationID:    location.ID,
		StartTime:     start,
		EndTime:       end,
		Instructor:    req.Instructor,
		Notes:         req.Notes,
		Capacity:      capacity,
	}
	err = scoped.Tx(ctx, func(tx *store.Scoped) error {
		overlap, err := tx.HasOverlap(ctx, location.ID, start, end)
		if err != nil {
			return err
		}
		if overlap {
			return apperr.New(apperr.KindScheduleConflict, "Location already has a session scheduled in this time slot")
		}
		return tx.CreateInstance(ctx, created)
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"tenant_id":   tenantID,
		"instance_id": created.ID,
		"location_id": location.ID,
		"start_time":  start,
	}).Info("Session instance scheduled")

	return scoped.Instance(ctx, created.ID)
}

// Instance returns one session instance of the tenant
func (s *Scheduler) Instance(ctx context.Context, tenantID, id uuid.UUID) (*models.SessionInstance, error) {
	return s.store.ForTenant(tenantID).Instance(ctx, id)
}

// CancelInstance cancels a scheduled instance. Confirmed bookings stay as they are;
// the instance just stops accepting new ones and frees its slot at the location.
// Cancelling an already cancelled instance returns it unchanged.
func (s *Scheduler) CancelInstance(ctx context.Context, tenantID, id uuid.UUID) (*models.SessionInstance, error) {
	return s.transition(ctx, tenantID, id, "cancel_instance", models.SessionCancelled,
		"Cannot cancel a completed session", models.SessionScheduled, models.SessionCancelled)
}

// CompleteInstance marks a scheduled instance as completed
func (s *Scheduler) CompleteInstance(ctx context.Context, tenantID, id uuid.UUID) (*models.SessionInstance, error) {
	return s.transition(ctx, tenantID, id, "complete_instance", models.SessionCompleted,
		"Only scheduled sessions can be marked as completed", models.SessionScheduled)
}

// transition moves the instance to status under its instance lock
func (s *Scheduler) transition(ctx context.Context, tenantID, id uuid.UUID, operation string, status models.SessionStatus, rejected string, from ...models.SessionStatus) (inst *models.SessionInstance, err error) {
	defer func() { observe(operation, err) }()

	scoped := s.store.ForTenant(tenantID)
	if _, err := scoped.Instance(ctx, id); err != nil {
		return nil, err
	}

	release, err := acquire(ctx, s.locker, lock.InstanceKey(id), s.lockWait, operation)
	if err != nil {
		return nil, err
	}
	defer release()

	var previous models.SessionStatus
	err = scoped.Tx(ctx, func(tx *store.Scoped) error {
		locked, err := tx.LockInstance(ctx, id)
		if err != nil {
			return err
		}
		previous = locked.Status

		moved, err := tx.SetInstanceStatus(ctx, id, status, from...)
		if err != nil {
			return err
		}
		if !moved {
			return apperr.New(apperr.KindSessionNotOpen, "%s", rejected)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if previous != status {
		logrus.WithFields(logrus.Fields{
			"tenant_id":   tenantID,
			"instance_id": id,
			"from":        previous,
			"to":          status,
		}).Info("Session instance status changed")
	}

	return scoped.Instance(ctx, id)
}
