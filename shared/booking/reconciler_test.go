package booking_test

import (
	"context"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavitra93/go-gym-booking/shared/booking"
	"github.com/pavitra93/go-gym-booking/shared/models"
)

func TestReconciler_RepairsDrift(t *testing.T) {
	f := newFixture(t, booking.Options{})
	ctx := context.Background()

	drifted := f.instance(t, 24*time.Hour, 10)
	healthy := f.instance(t, 48*time.Hour, 10)
	ended := f.instance(t, -3*time.Hour, 10)

	for _, member := range []string{"member-1", "member-2", "member-3"} {
		_, err := f.engine.Book(ctx, f.tenant.ID, member, drifted.ID, "")
		require.NoError(t, err)
	}
	_, err := f.engine.Book(ctx, f.tenant.ID, "member-1", healthy.ID, "")
	require.NoError(t, err)

	corrupt := func(id interface{}, count int) {
		require.NoError(t, f.store.DB().Model(&models.SessionInstance{}).
			Where("id = ?", id).
			Update("booked_count", count).Error)
	}
	corrupt(drifted.ID, 7)
	corrupt(ended.ID, 4)

	r := booking.NewReconciler(f.store, f.locker, booking.Options{Now: func() time.Time { return f.now }})

	repaired, err := r.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, repaired)

	assert.Equal(t, 3, f.reload(t, drifted.ID).BookedCount)
	assert.Equal(t, 1, f.reload(t, healthy.ID).BookedCount)
	// finished sessions are left alone
	assert.Equal(t, 4, f.reload(t, ended.ID).BookedCount)

	repaired, err = r.Reconcile(ctx)
	require.NoError(t, err)
	assert.Zero(t, repaired)
}

func TestReconciler_Register(t *testing.T) {
	f := newFixture(t, booking.Options{})
	r := booking.NewReconciler(f.store, f.locker, booking.Options{})

	c := cron.New()
	_, err := r.Register(c, "@every 5m")
	assert.NoError(t, err)
	assert.Len(t, c.Entries(), 1)

	_, err = r.Register(c, "not a schedule")
	assert.Error(t, err)
}
