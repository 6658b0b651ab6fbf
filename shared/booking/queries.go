package booking

import (
	"context"
	"iter"
	"time"

	"github.com/google/uuid"

	"github.com/pavitra93/go-gym-booking/shared/models"
	"github.com/pavitra93/go-gym-booking/shared/store"
)

const defaultQueryPageSize = 50

// Queries serves the read-only listings. Each sequence pages through the
// database lazily and can be ranged over again to restart from the beginning.
type Queries struct {
	store    *store.Store
	pageSize int
}

func NewQueries(s *store.Store) *Queries {
	return &Queries{store: s, pageSize: defaultQueryPageSize}
}

// WithPageSize sets how many rows each database round trip fetches
func (q *Queries) WithPageSize(n int) *Queries {
	if n > 0 {
		q.pageSize = n
	}
	return q
}

// Available yields the tenant's future scheduled instances with free seats, earliest first
func (q *Queries) Available(ctx context.Context, tenantID uuid.UUID, now time.Time, filter store.AvailableFilter) iter.Seq2[models.SessionInstance, error] {
	scoped := q.store.ForTenant(tenantID)
	return q.instances(func(after *store.InstanceCursor, limit int) ([]models.SessionInstance, error) {
		return scoped.AvailablePage(ctx, now, filter, after, limit)
	})
}

// Sessions yields every instance of the tenant in the given status, earliest first,
// whether or not it has started or still has seats
func (q *Queries) Sessions(ctx context.Context, tenantID uuid.UUID, status models.SessionStatus, filter store.AvailableFilter) iter.Seq2[models.SessionInstance, error] {
	scoped := q.store.ForTenant(tenantID)
	return q.instances(func(after *store.InstanceCursor, limit int) ([]models.SessionInstance, error) {
		return scoped.InstancesPage(ctx, status, filter, after, limit)
	})
}

func (q *Queries) instances(fetch func(after *store.InstanceCursor, limit int) ([]models.SessionInstance, error)) iter.Seq2[models.SessionInstance, error] {
	return func(yield func(models.SessionInstance, error) bool) {
		var cursor *store.InstanceCursor
		for {
			page, err := fetch(cursor, q.pageSize)
			if err != nil {
				yield(models.SessionInstance{}, err)
				return
			}
			for _, inst := range page {
				if !yield(inst, nil) {
					return
				}
			}
			if len(page) < q.pageSize {
				return
			}
			last := page[len(page)-1]
			cursor = &store.InstanceCursor{StartTime: last.StartTime, ID: last.ID}
		}
	}
}

// Mine yields the member's bookings of every status, newest first.
// An empty status matches every status.
func (q *Queries) Mine(ctx context.Context, tenantID uuid.UUID, memberID string, status models.BookingStatus) iter.Seq2[models.Booking, error] {
	scoped := q.store.ForTenant(tenantID)
	return func(yield func(models.Booking, error) bool) {
		var cursor *store.BookingCursor
		for {
			page, err := scoped.MemberBookingsPage(ctx, memberID, status, cursor, q.pageSize)
			if err != nil {
				yield(models.Booking{}, err)
				return
			}
			for _, b := range page {
				if !yield(b, nil) {
					return
				}
			}
			if len(page) < q.pageSize {
				return
			}
			last := page[len(page)-1]
			cursor = &store.BookingCursor{CreatedAt: last.CreatedAt, ID: last.ID}
		}
	}
}

// Collect skips offset items of seq and gathers up to limit of the rest
func Collect[T any](seq iter.Seq2[T, error], offset, limit int) ([]T, error) {
	out := make([]T, 0, max(limit, 0))
	if limit <= 0 {
		return out, nil
	}
	skipped := 0
	for item, err := range seq {
		if err != nil {
			return nil, err
		}
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, item)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
