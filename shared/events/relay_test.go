package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavitra93/go-gym-booking/shared/models"
	"github.com/pavitra93/go-gym-booking/shared/store"
	"github.com/pavitra93/go-gym-booking/shared/store/storetest"
	"github.com/pavitra93/go-gym-booking/shared/utils"
)

type fakePublisher struct {
	mu        sync.Mutex
	err       error
	published []uuid.UUID
	calls     int
}

func (p *fakePublisher) Publish(_ context.Context, evt models.BookingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, evt.ID)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

type relayFixture struct {
	store *store.Store
	pub   *fakePublisher
	now   time.Time
}

func newRelayFixture(t *testing.T, n int) (*relayFixture, []uuid.UUID) {
	t.Helper()
	s := storetest.Open(t)
	tenant := storetest.Tenant(t, s, "Iron Temple")
	f := &relayFixture{
		store: s,
		pub:   &fakePublisher{},
		now:   time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}

	var ids []uuid.UUID
	for i := 0; i < n; i++ {
		evt := &models.BookingEvent{
			MemberID:          "member-1",
			SessionInstanceID: uuid.New(),
			BookingID:         uuid.New(),
			Type:              models.EventBookingCreated,
			Payload:           `{"status":"confirmed"}`,
			NextAttemptAt:     f.now.Add(-time.Minute),
		}
		require.NoError(t, s.ForTenant(tenant.ID).AppendEvent(context.Background(), evt))
		ids = append(ids, evt.ID)
		time.Sleep(2 * time.Millisecond)
	}
	return f, ids
}

func (f *relayFixture) relay(breaker *utils.CircuitBreaker, maxAttempts int) *Relay {
	return NewRelay(f.store, f.pub, breaker, RelayConfig{
		BatchSize:   10,
		MaxAttempts: maxAttempts,
		Now:         func() time.Time { return f.now },
	})
}

func (f *relayFixture) event(t *testing.T, id uuid.UUID) models.BookingEvent {
	var evt models.BookingEvent
	require.NoError(t, f.store.DB().First(&evt, "id = ?", id).Error)
	return evt
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, 30*time.Second, Backoff(0))
	assert.Equal(t, 30*time.Second, Backoff(1))
	assert.Equal(t, time.Minute, Backoff(2))
	assert.Equal(t, 2*time.Minute, Backoff(3))
	assert.Equal(t, 64*time.Minute/2, Backoff(7))
	assert.Equal(t, time.Hour, Backoff(8))
	assert.Equal(t, time.Hour, Backoff(50))
}

func TestRelayOnce_Publishes(t *testing.T) {
	f, ids := newRelayFixture(t, 3)
	r := f.relay(nil, 5)

	stats, err := r.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RelayStats{Published: 3}, stats)
	assert.Equal(t, ids, f.pub.published)

	evt := f.event(t, ids[0])
	assert.Equal(t, models.EventPublished, evt.Status)
	require.NotNil(t, evt.PublishedAt)

	stats, err = r.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RelayStats{}, stats)
}

func TestRelayOnce_RetriesWithBackoff(t *testing.T) {
	f, ids := newRelayFixture(t, 1)
	f.pub.err = errors.New("broker unavailable")
	r := f.relay(utils.NewCircuitBreaker("test", 100, time.Minute), 3)
	ctx := context.Background()

	stats, err := r.RelayOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, RelayStats{Retried: 1}, stats)

	evt := f.event(t, ids[0])
	assert.Equal(t, models.EventPending, evt.Status)
	assert.Equal(t, 1, evt.Attempts)
	assert.Equal(t, "broker unavailable", evt.LastError)
	assert.True(t, evt.NextAttemptAt.Equal(f.now.Add(30*time.Second)), "next attempt %s", evt.NextAttemptAt)

	// not due yet
	stats, err = r.RelayOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, RelayStats{}, stats)

	f.now = f.now.Add(31 * time.Second)
	stats, err = r.RelayOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, RelayStats{Retried: 1}, stats)
	evt = f.event(t, ids[0])
	assert.Equal(t, 2, evt.Attempts)
	assert.True(t, evt.NextAttemptAt.Equal(f.now.Add(time.Minute)))

	f.now = f.now.Add(time.Hour)
	stats, err = r.RelayOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, RelayStats{Failed: 1}, stats)
	assert.Equal(t, models.EventFailed, f.event(t, ids[0]).Status)

	f.now = f.now.Add(24 * time.Hour)
	stats, err = r.RelayOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, RelayStats{}, stats)
	assert.Equal(t, 3, f.pub.calls)
}

func TestRelayOnce_OpenBreakerDefers(t *testing.T) {
	f, ids := newRelayFixture(t, 3)
	f.pub.err = errors.New("broker unavailable")
	breaker := utils.NewCircuitBreaker("test", 1, time.Minute).WithClock(func() time.Time { return f.now })
	r := f.relay(breaker, 5)
	ctx := context.Background()

	stats, err := r.RelayOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, RelayStats{Retried: 1, Deferred: 2}, stats)
	assert.Equal(t, 1, f.pub.calls)

	for _, id := range ids[1:] {
		evt := f.event(t, id)
		assert.Equal(t, models.EventPending, evt.Status)
		assert.Zero(t, evt.Attempts)
	}

	// once the breaker lets a trial request through the backlog drains
	f.pub.err = nil
	f.now = f.now.Add(2 * time.Minute)
	stats, err = r.RelayOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Published)
	assert.Equal(t, utils.StateClosed, breaker.GetState())
}

func TestRelay_Stats(t *testing.T) {
	f, _ := newRelayFixture(t, 2)
	r := f.relay(nil, 5)

	counts, err := r.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[models.EventPending])
	assert.Zero(t, counts[models.EventPublished])

	_, err = r.RelayOnce(context.Background())
	require.NoError(t, err)

	counts, err = r.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, counts[models.EventPending])
	assert.Equal(t, int64(2), counts[models.EventPublished])
}

func TestRelay_Register(t *testing.T) {
	f, _ := newRelayFixture(t, 0)
	c := cron.New()

	_, err := f.relay(nil, 5).Register(c, "@every 5s")
	assert.NoError(t, err)
	assert.Len(t, c.Entries(), 1)
}
