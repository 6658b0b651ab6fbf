package booking

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pavitra93/go-gym-booking/shared/apperr"
	"github.com/pavitra93/go-gym-booking/shared/lock"
	"github.com/pavitra93/go-gym-booking/shared/models"
	"github.com/pavitra93/go-gym-booking/shared/store"
)

const defaultLockWait = 2 * time.Second

// Options tunes the engine and scheduler
type Options struct {
	// LockWait bounds how long an operation waits for an instance; past it the caller gets Busy
	LockWait time.Duration
	// CancelCutoff closes cancellation this long before the session starts. Zero disables it.
	CancelCutoff time.Duration
	Now          func() time.Time
}

func (o Options) withDefaults() Options {
	if o.LockWait <= 0 {
		o.LockWait = defaultLockWait
	}
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
	return o
}

// Engine is the only writer of booked_count
type Engine struct {
	store        *store.Store
	locker       lock.Locker
	lockWait     time.Duration
	cancelCutoff time.Duration
	now          func() time.Time
}

func NewEngine(s *store.Store, locker lock.Locker, opts Options) *Engine {
	opts = opts.withDefaults()
	return &Engine{
		store:        s,
		locker:       locker,
		lockWait:     opts.LockWait,
		cancelCutoff: opts.CancelCutoff,
		now:          opts.Now,
	}
}

type eventPayload struct {
	BookingID         uuid.UUID            `json:"bookingId"`
	TenantID          uuid.UUID            `json:"tenantId"`
	MemberID          string               `json:"memberId"`
	SessionInstanceID uuid.UUID            `json:"sessionInstanceId"`
	Status            models.BookingStatus `json:"status"`
	StartTime         time.Time            `json:"startTime"`
	BookedCount       int                  `json:"bookedCount"`
	Capacity          int                  `json:"capacity"`
	OccurredAt        time.Time            `json:"occurredAt"`
}

func newEvent(eventType models.BookingEventType, b *models.Booking, inst *models.SessionInstance, bookedCount int, at time.Time) (*models.BookingEvent, error) {
	payload, err := json.Marshal(eventPayload{
		BookingID:         b.ID,
		TenantID:          b.TenantID,
		MemberID:          b.MemberID,
		SessionInstanceID: inst.ID,
		Status:            b.Status,
		StartTime:         inst.StartTime,
		BookedCount:       bookedCount,
		Capacity:          inst.Capacity,
		OccurredAt:        at,
	})
	if err != nil {
		return nil, apperr.Internal(err, "failed to encode booking event")
	}
	return &models.BookingEvent{
		MemberID:          b.MemberID,
		SessionInstanceID: inst.ID,
		BookingID:         b.ID,
		Type:              eventType,
		Payload:           string(payload),
		NextAttemptAt:     at,
	}, nil
}

// checkBookable rejects instances that are no longer scheduled or have already started
func checkBookable(inst *models.SessionInstance, now time.Time) error {
	if !inst.IsScheduled() {
		return apperr.New(apperr.KindSessionNotOpen, "Session is %s and cannot be booked", inst.Status)
	}
	if inst.HasStarted(now) {
		return apperr.New(apperr.KindSessionInPast, "Cannot book a session that has already started")
	}
	return nil
}

// Book reserves one seat on the instance for the member
func (e *Engine) Book(ctx context.Context, tenantID uuid.UUID, memberID string, instanceID uuid.UUID, notes string) (booking *models.Booking, err error) {
	defer func() { observe("book", err) }()

	scoped := e.store.ForTenant(tenantID)

	inst, err := scoped.Instance(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if err := checkBookable(inst, e.now()); err != nil {
		return nil, err
	}

	release, err := acquire(ctx, e.locker, lock.InstanceKey(inst.ID), e.lockWait, "book")
	if err != nil {
		return nil, err
	}
	defer release()

	created := &models.Booking{
		MemberID:          memberID,
		SessionInstanceID: inst.ID,
		Notes:             notes,
	}
	var bookedCount int
	err = scoped.Tx(ctx, func(tx *store.Scoped) error {
		locked, err := tx.LockInstance(ctx, inst.ID)
		if err != nil {
			return err
		}
		if err := checkBookable(locked, e.now()); err != nil {
			return err
		}

		booked, err := tx.HasConfirmedBooking(ctx, memberID, inst.ID)
		if err != nil {
			return err
		}
		if booked {
			return apperr.New(apperr.KindAlreadyBooked, "You have already booked this session")
		}

		reserved, err := tx.ReserveSeat(ctx, inst.ID)
		if err != nil {
			return err
		}
		if !reserved {
			return apperr.New(apperr.KindSessionFull, "Session is fully booked")
		}

		if err := tx.CreateBooking(ctx, created); err != nil {
			return err
		}

		bookedCount = locked.BookedCount + 1
		evt, err := newEvent(models.EventBookingCreated, created, locked, bookedCount, e.now())
		if err != nil {
			return err
		}
		return tx.AppendEvent(ctx, evt)
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"tenant_id":   tenantID,
		"instance_id": inst.ID,
		"booking_id":  created.ID,
		"member_id":   memberID,
	}).Info("Session booked")

	b, err := scoped.Booking(ctx, created.ID)
	if err != nil {
		logrus.WithError(err).WithField("booking_id", created.ID).Warn("Failed to reload committed booking")
		inst.BookedCount = bookedCount
		created.SessionInstance = inst
		return created, nil
	}
	return b, nil
}

// Cancel releases the seat held by a confirmed booking. The owner and tenant operators may cancel.
func (e *Engine) Cancel(ctx context.Context, identity models.Identity, bookingID uuid.UUID) (booking *models.Booking, err error) {
	defer func() { observe("cancel", err) }()

	scoped := e.store.ForTenant(identity.TenantID)

	b, err := scoped.Booking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !identity.CanManageBooking(b) {
		return nil, apperr.New(apperr.KindForbidden, "You can only cancel your own bookings")
	}
	if !b.IsConfirmed() {
		return nil, apperr.New(apperr.KindAlreadyCancelled, "Booking is already cancelled")
	}

	inst := b.SessionInstance
	if inst == nil {
		if inst, err = scoped.Instance(ctx, b.SessionInstanceID); err != nil {
			return nil, err
		}
	}
	now := e.now()
	if e.cancelCutoff > 0 && inst.StartTime.Sub(now) < e.cancelCutoff {
		return nil, apperr.New(apperr.KindCancellationClosed,
			"Cannot cancel less than %s before the session starts", e.cancelCutoff)
	}

	release, err := acquire(ctx, e.locker, lock.InstanceKey(inst.ID), e.lockWait, "cancel")
	if err != nil {
		return nil, err
	}
	defer release()

	var bookedCount int
	err = scoped.Tx(ctx, func(tx *store.Scoped) error {
		locked, err := tx.LockInstance(ctx, inst.ID)
		if err != nil {
			return err
		}

		cancelled, err := tx.MarkCancelled(ctx, b.ID, now)
		if err != nil {
			return err
		}
		if !cancelled {
			return apperr.New(apperr.KindAlreadyCancelled, "Booking is already cancelled")
		}

		released, err := tx.ReleaseSeat(ctx, inst.ID)
		if err != nil {
			return err
		}
		bookedCount = locked.BookedCount - 1
		if !released {
			bookedCount = 0
			logrus.WithFields(logrus.Fields{
				"tenant_id":   identity.TenantID,
				"instance_id": inst.ID,
				"booking_id":  b.ID,
			}).Warn("Cancelled a confirmed booking on an instance with no booked seats")
		}

		b.Status = models.BookingCancelled
		b.CancelledAt = &now
		evt, err := newEvent(models.EventBookingCancelled, b, locked, bookedCount, now)
		if err != nil {
			return err
		}
		return tx.AppendEvent(ctx, evt)
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"tenant_id":    identity.TenantID,
		"instance_id":  inst.ID,
		"booking_id":   b.ID,
		"cancelled_by": identity.MemberID,
	}).Info("Booking cancelled")

	reloaded, err := scoped.Booking(ctx, b.ID)
	if err != nil {
		logrus.WithError(err).WithField("booking_id", b.ID).Warn("Failed to reload cancelled booking")
		inst.BookedCount = bookedCount
		b.SessionInstance = inst
		return b, nil
	}
	return reloaded, nil
}

// Booking returns a booking visible to the identity: its owner or a tenant operator.
// Anyone else gets NotFound.
func (e *Engine) Booking(ctx context.Context, identity models.Identity, id uuid.UUID) (*models.Booking, error) {
	b, err := e.store.ForTenant(identity.TenantID).Booking(ctx, id)
	if err != nil {
		return nil, err
	}
	if !identity.CanManageBooking(b) {
		return nil, apperr.New(apperr.KindNotFound, "Booking not found")
	}
	return b, nil
}
