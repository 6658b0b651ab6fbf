package booking_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/pavitra93/go-gym-booking/shared/apperr"
	"github.com/pavitra93/go-gym-booking/shared/booking"
	"github.com/pavitra93/go-gym-booking/shared/lock"
	"github.com/pavitra93/go-gym-booking/shared/models"
	"github.com/pavitra93/go-gym-booking/shared/store"
	"github.com/pavitra93/go-gym-booking/shared/store/storetest"
)

type fixture struct {
	store    *store.Store
	locker   *lock.LocalLocker
	engine   *booking.Engine
	tenant   *models.Tenant
	location *models.Location
	hiit     *models.SessionType
	now      time.Time
}

func newFixture(t *testing.T, opts booking.Options) *fixture {
	t.Helper()
	s := storetest.Open(t)
	tenant := storetest.Tenant(t, s, "Iron Temple")
	loc, st := storetest.Catalog(t, s, tenant.ID, "HIIT Training", 20)

	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	if opts.Now == nil {
		opts.Now = func() time.Time { return now }
	}
	if opts.LockWait == 0 {
		opts.LockWait = 5 * time.Second
	}

	locker := lock.NewLocalLocker()
	return &fixture{
		store:    s,
		locker:   locker,
		engine:   booking.NewEngine(s, locker, opts),
		tenant:   tenant,
		location: loc,
		hiit:     st,
		now:      now,
	}
}

func (f *fixture) instance(t *testing.T, startIn time.Duration, capacity int) *models.SessionInstance {
	return storetest.Instance(t, f.store, f.location, f.hiit, f.now.Add(startIn), capacity)
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) *models.SessionInstance {
	inst, err := f.store.ForTenant(f.tenant.ID).Instance(context.Background(), id)
	require.NoError(t, err)
	return inst
}

func (f *fixture) member(id string) models.Identity {
	return models.Identity{MemberID: id, Role: models.RoleMember, TenantID: f.tenant.ID}
}

func TestEngine_Book(t *testing.T) {
	f := newFixture(t, booking.Options{})
	inst := f.instance(t, 24*time.Hour, 5)

	b, err := f.engine.Book(context.Background(), f.tenant.ID, "member-1", inst.ID, "front row")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, b.ID)
	assert.Equal(t, models.BookingConfirmed, b.Status)
	assert.Equal(t, "member-1", b.MemberID)
	assert.Equal(t, f.tenant.ID, b.TenantID)
	assert.Equal(t, "front row", b.Notes)
	require.NotNil(t, b.SessionInstance)
	assert.Equal(t, 1, b.SessionInstance.BookedCount)

	assert.Equal(t, 1, f.reload(t, inst.ID).BookedCount)

	var events []models.BookingEvent
	require.NoError(t, f.store.DB().Where("booking_id = ?", b.ID).Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventBookingCreated, events[0].Type)
	assert.Equal(t, models.EventPending, events[0].Status)
	assert.Equal(t, "member-1", events[0].MemberID)
	assert.Contains(t, events[0].Payload, `"bookedCount":1`)
}

func TestEngine_Book_AlreadyBooked(t *testing.T) {
	f := newFixture(t, booking.Options{})
	inst := f.instance(t, 24*time.Hour, 5)
	ctx := context.Background()

	_, err := f.engine.Book(ctx, f.tenant.ID, "member-1", inst.ID, "")
	require.NoError(t, err)

	_, err = f.engine.Book(ctx, f.tenant.ID, "member-1", inst.ID, "")
	assert.True(t, apperr.Is(err, apperr.KindAlreadyBooked), "got %v", err)
	assert.Equal(t, 1, f.reload(t, inst.ID).BookedCount)
}

func TestEngine_Book_SessionFull(t *testing.T) {
	f := newFixture(t, booking.Options{})
	inst := f.instance(t, 24*time.Hour, 1)
	ctx := context.Background()

	_, err := f.engine.Book(ctx, f.tenant.ID, "member-1", inst.ID, "")
	require.NoError(t, err)

	_, err = f.engine.Book(ctx, f.tenant.ID, "member-2", inst.ID, "")
	assert.True(t, apperr.Is(err, apperr.KindSessionFull), "got %v", err)
	assert.Equal(t, 1, f.reload(t, inst.ID).BookedCount)
}

func TestEngine_Book_NotFound(t *testing.T) {
	f := newFixture(t, booking.Options{})

	_, err := f.engine.Book(context.Background(), f.tenant.ID, "member-1", uuid.New(), "")
	assert.True(t, apperr.Is(err, apperr.KindNotFound), "got %v", err)
}

func TestEngine_Book_SessionInPast(t *testing.T) {
	f := newFixture(t, booking.Options{})
	ctx := context.Background()

	started := f.instance(t, -30*time.Minute, 5)
	_, err := f.engine.Book(ctx, f.tenant.ID, "member-1", started.ID, "")
	assert.True(t, apperr.Is(err, apperr.KindSessionInPast), "got %v", err)

	startingNow := f.instance(t, 0, 5)
	_, err = f.engine.Book(ctx, f.tenant.ID, "member-1", startingNow.ID, "")
	assert.True(t, apperr.Is(err, apperr.KindSessionInPast), "got %v", err)

	assert.Equal(t, 0, f.reload(t, started.ID).BookedCount)
}

func TestEngine_Book_Busy(t *testing.T) {
	f := newFixture(t, booking.Options{LockWait: 50 * time.Millisecond})
	inst := f.instance(t, 24*time.Hour, 5)
	ctx := context.Background()

	release, err := f.locker.Acquire(ctx, lock.InstanceKey(inst.ID), time.Second)
	require.NoError(t, err)

	_, err = f.engine.Book(ctx, f.tenant.ID, "member-1", inst.ID, "")
	assert.True(t, apperr.Is(err, apperr.KindBusy), "got %v", err)
	assert.True(t, apperr.Retryable(err))

	release()
	_, err = f.engine.Book(ctx, f.tenant.ID, "member-1", inst.ID, "")
	assert.NoError(t, err)
}

func TestEngine_Book_ConcurrentCapacity(t *testing.T) {
	const capacity, extra = 10, 6

	f := newFixture(t, booking.Options{})
	inst := f.instance(t, 24*time.Hour, capacity)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		booked   int
		full     int
		otherErr []error
	)
	start := make(chan struct{})
	for i := 0; i < capacity+extra; i++ {
		wg.Add(1)
		go func(member string) {
			defer wg.Done()
			<-start
			_, err := f.engine.Book(context.Background(), f.tenant.ID, member, inst.ID, "")

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				booked++
			case apperr.Is(err, apperr.KindSessionFull):
				full++
			default:
				otherErr = append(otherErr, err)
			}
		}(fmt.Sprintf("member-%d", i))
	}
	close(start)
	wg.Wait()

	assert.Empty(t, otherErr)
	assert.Equal(t, capacity, booked)
	assert.Equal(t, extra, full)

	reloaded := f.reload(t, inst.ID)
	assert.Equal(t, capacity, reloaded.BookedCount)

	confirmed, err := f.store.ForTenant(f.tenant.ID).CountConfirmed(context.Background(), inst.ID)
	require.NoError(t, err)
	assert.Equal(t, capacity, confirmed)
}

func TestEngine_ConcurrentCancelAndBook(t *testing.T) {
	const capacity, freed, extra = 8, 3, 4

	f := newFixture(t, booking.Options{})
	inst := f.instance(t, 24*time.Hour, capacity)
	ctx := context.Background()

	held := make([]*models.Booking, 0, capacity)
	for i := 0; i < capacity; i++ {
		b, err := f.engine.Book(ctx, f.tenant.ID, fmt.Sprintf("early-%d", i), inst.ID, "")
		require.NoError(t, err)
		held = append(held, b)
	}

	var (
		wg       sync.WaitGroup
		cancelWG sync.WaitGroup
		mu       sync.Mutex
		booked   int
		full     int
		otherErr []error
	)
	start := make(chan struct{})
	cancelled := make(chan struct{})

	for i := 0; i < freed; i++ {
		wg.Add(1)
		cancelWG.Add(1)
		go func(b *models.Booking) {
			defer wg.Done()
			defer cancelWG.Done()
			<-start
			if _, err := f.engine.Cancel(ctx, f.member(b.MemberID), b.ID); err != nil {
				mu.Lock()
				otherErr = append(otherErr, err)
				mu.Unlock()
			}
		}(held[i])
	}
	go func() {
		cancelWG.Wait()
		close(cancelled)
	}()

	// a booker retries while cancellations are still in flight, then makes one last attempt
	for i := 0; i < freed+extra; i++ {
		wg.Add(1)
		go func(member string) {
			defer wg.Done()
			<-start
			for {
				done := false
				select {
				case <-cancelled:
					done = true
				default:
				}

				_, err := f.engine.Book(ctx, f.tenant.ID, member, inst.ID, "")
				if apperr.Is(err, apperr.KindSessionFull) && !done {
					time.Sleep(time.Millisecond)
					continue
				}

				mu.Lock()
				switch {
				case err == nil:
					booked++
				case apperr.Is(err, apperr.KindSessionFull):
					full++
				default:
					otherErr = append(otherErr, err)
				}
				mu.Unlock()
				return
			}
		}(fmt.Sprintf("late-%d", i))
	}
	close(start)
	wg.Wait()

	assert.Empty(t, otherErr)
	assert.Equal(t, freed, booked, "each freed seat is booked exactly once")
	assert.Equal(t, extra, full)

	reloaded := f.reload(t, inst.ID)
	assert.Equal(t, capacity, reloaded.BookedCount)
	confirmed, err := f.store.ForTenant(f.tenant.ID).CountConfirmed(ctx, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, reloaded.BookedCount, confirmed)
}

func TestEngine_Book_StartPassesWhileWaiting(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	start := now.Add(time.Minute)

	var calls atomic.Int32
	f := newFixture(t, booking.Options{Now: func() time.Time {
		// the first reading happens before the instance lock, the rest after it
		if calls.Add(1) == 1 {
			return now
		}
		return start.Add(time.Second)
	}})
	inst := storetest.Instance(t, f.store, f.location, f.hiit, start, 5)

	_, err := f.engine.Book(context.Background(), f.tenant.ID, "member-1", inst.ID, "")
	assert.True(t, apperr.Is(err, apperr.KindSessionInPast), "got %v", err)
	assert.Equal(t, 0, f.reload(t, inst.ID).BookedCount)

	var events int64
	require.NoError(t, f.store.DB().Model(&models.BookingEvent{}).Count(&events).Error)
	assert.Zero(t, events)
}

// failBookingReadsAfterEvent makes every bookings read fail once an outbox event
// has been written, until disarm is called
func failBookingReadsAfterEvent(t *testing.T, f *fixture) (disarm func()) {
	t.Helper()
	var armed atomic.Bool
	cb := f.store.DB().Callback()
	require.NoError(t, cb.Create().After("gorm:create").Register("test:arm_on_event", func(db *gorm.DB) {
		if db.Error == nil && db.Statement.Table == "booking_events" {
			armed.Store(true)
		}
	}))
	require.NoError(t, cb.Query().After("gorm:query").Register("test:fail_booking_reads", func(db *gorm.DB) {
		if armed.Load() && db.Statement.Table == "bookings" {
			db.AddError(errors.New("connection reset by peer"))
		}
	}))
	return func() { armed.Store(false) }
}

func TestEngine_ReturnsCommittedBookingWhenReloadFails(t *testing.T) {
	f := newFixture(t, booking.Options{})
	inst := f.instance(t, 24*time.Hour, 5)
	ctx := context.Background()
	disarm := failBookingReadsAfterEvent(t, f)

	b, err := f.engine.Book(ctx, f.tenant.ID, "member-1", inst.ID, "")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, b.ID)
	assert.Equal(t, models.BookingConfirmed, b.Status)
	require.NotNil(t, b.SessionInstance)
	assert.Equal(t, 1, b.SessionInstance.BookedCount)

	disarm()
	assert.Equal(t, 1, f.reload(t, inst.ID).BookedCount)

	cancelled, err := f.engine.Cancel(ctx, f.member("member-1"), b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, cancelled.ID)
	assert.Equal(t, models.BookingCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)
	require.NotNil(t, cancelled.SessionInstance)
	assert.Equal(t, 0, cancelled.SessionInstance.BookedCount)

	disarm()
	assert.Equal(t, 0, f.reload(t, inst.ID).BookedCount)
	got, err := f.engine.Booking(ctx, f.member("member-1"), b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingCancelled, got.Status)
}

func TestEngine_BookCancelBook(t *testing.T) {
	f := newFixture(t, booking.Options{})
	inst := f.instance(t, 24*time.Hour, 5)
	ctx := context.Background()
	member := f.member("member-1")

	first, err := f.engine.Book(ctx, f.tenant.ID, member.MemberID, inst.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 1, f.reload(t, inst.ID).BookedCount)

	cancelled, err := f.engine.Cancel(ctx, member, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, 0, f.reload(t, inst.ID).BookedCount)

	second, err := f.engine.Book(ctx, f.tenant.ID, member.MemberID, inst.ID, "")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 1, f.reload(t, inst.ID).BookedCount)

	var types []models.BookingEventType
	require.NoError(t, f.store.DB().Model(&models.BookingEvent{}).
		Where("session_instance_id = ?", inst.ID).
		Order("created_at ASC").
		Pluck("type", &types).Error)
	assert.Equal(t, []models.BookingEventType{
		models.EventBookingCreated,
		models.EventBookingCancelled,
		models.EventBookingCreated,
	}, types)
}

func TestEngine_Cancel_AlreadyCancelled(t *testing.T) {
	f := newFixture(t, booking.Options{})
	inst := f.instance(t, 24*time.Hour, 5)
	ctx := context.Background()
	member := f.member("member-1")

	b, err := f.engine.Book(ctx, f.tenant.ID, member.MemberID, inst.ID, "")
	require.NoError(t, err)
	_, err = f.engine.Cancel(ctx, member, b.ID)
	require.NoError(t, err)

	_, err = f.engine.Cancel(ctx, member, b.ID)
	assert.True(t, apperr.Is(err, apperr.KindAlreadyCancelled), "got %v", err)
	assert.Equal(t, 0, f.reload(t, inst.ID).BookedCount)
}

func TestEngine_Cancel_Permissions(t *testing.T) {
	f := newFixture(t, booking.Options{})
	inst := f.instance(t, 24*time.Hour, 5)
	ctx := context.Background()

	b, err := f.engine.Book(ctx, f.tenant.ID, "member-1", inst.ID, "")
	require.NoError(t, err)

	_, err = f.engine.Cancel(ctx, f.member("member-2"), b.ID)
	assert.True(t, apperr.Is(err, apperr.KindForbidden), "got %v", err)

	trainer := models.Identity{MemberID: "trainer-1", Role: models.RoleTrainer, TenantID: f.tenant.ID}
	_, err = f.engine.Cancel(ctx, trainer, b.ID)
	assert.True(t, apperr.Is(err, apperr.KindForbidden), "got %v", err)

	staff := models.Identity{MemberID: "staff-1", Role: models.RoleStaff, TenantID: f.tenant.ID}
	cancelled, err := f.engine.Cancel(ctx, staff, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "member-1", cancelled.MemberID)
	assert.Equal(t, 0, f.reload(t, inst.ID).BookedCount)
}

func TestEngine_Cancel_Cutoff(t *testing.T) {
	f := newFixture(t, booking.Options{CancelCutoff: 2 * time.Hour})
	ctx := context.Background()
	member := f.member("member-1")

	soon := f.instance(t, time.Hour, 5)
	b, err := f.engine.Book(ctx, f.tenant.ID, member.MemberID, soon.ID, "")
	require.NoError(t, err)

	_, err = f.engine.Cancel(ctx, member, b.ID)
	assert.True(t, apperr.Is(err, apperr.KindCancellationClosed), "got %v", err)
	assert.Equal(t, 1, f.reload(t, soon.ID).BookedCount)

	later := f.instance(t, 3*time.Hour, 5)
	b, err = f.engine.Book(ctx, f.tenant.ID, member.MemberID, later.ID, "")
	require.NoError(t, err)
	_, err = f.engine.Cancel(ctx, member, b.ID)
	assert.NoError(t, err)
}

func TestEngine_TenantIsolation(t *testing.T) {
	f := newFixture(t, booking.Options{})
	ctx := context.Background()
	inst := f.instance(t, 24*time.Hour, 5)

	other := storetest.Tenant(t, f.store, "Other Gym")
	outsider := models.Identity{MemberID: "member-1", Role: models.RoleOwner, TenantID: other.ID}

	_, err := f.engine.Book(ctx, other.ID, outsider.MemberID, inst.ID, "")
	assert.True(t, apperr.Is(err, apperr.KindNotFound), "got %v", err)

	b, err := f.engine.Book(ctx, f.tenant.ID, "member-1", inst.ID, "")
	require.NoError(t, err)

	_, err = f.engine.Booking(ctx, outsider, b.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound), "got %v", err)

	_, err = f.engine.Cancel(ctx, outsider, b.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound), "got %v", err)

	assert.Equal(t, 1, f.reload(t, inst.ID).BookedCount)
}

func TestEngine_Booking_Visibility(t *testing.T) {
	f := newFixture(t, booking.Options{})
	ctx := context.Background()
	inst := f.instance(t, 24*time.Hour, 5)

	b, err := f.engine.Book(ctx, f.tenant.ID, "member-1", inst.ID, "")
	require.NoError(t, err)

	got, err := f.engine.Booking(ctx, f.member("member-1"), b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)

	_, err = f.engine.Booking(ctx, f.member("member-2"), b.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound), "got %v", err)

	owner := models.Identity{MemberID: "owner-1", Role: models.RoleOwner, TenantID: f.tenant.ID}
	got, err = f.engine.Booking(ctx, owner, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)
}
