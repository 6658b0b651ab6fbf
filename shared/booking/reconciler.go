package booking

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/pavitra93/go-gym-booking/shared/lock"
	"github.com/pavitra93/go-gym-booking/shared/store"
)

// Reconciler repairs instances whose booked_count no longer matches their confirmed bookings
type Reconciler struct {
	store    *store.Store
	locker   lock.Locker
	lockWait time.Duration
	now      func() time.Time
}

func NewReconciler(s *store.Store, locker lock.Locker, opts Options) *Reconciler {
	opts = opts.withDefaults()
	return &Reconciler{store: s, locker: locker, lockWait: opts.LockWait, now: opts.Now}
}

// Reconcile checks instances that have not ended yet and returns how many it corrected
func (r *Reconciler) Reconcile(ctx context.Context) (int, error) {
	drifts, err := r.store.FindDrift(ctx, r.now())
	if err != nil {
		return 0, err
	}

	repaired := 0
	for _, d := range drifts {
		log := logrus.WithFields(logrus.Fields{
			"tenant_id":   d.TenantID,
			"instance_id": d.InstanceID,
		})

		fixed, err := r.repair(ctx, d)
		if err != nil {
			log.WithError(err).Error("Failed to reconcile booked count")
			continue
		}
		if fixed {
			repaired++
		}
	}
	return repaired, nil
}

func (r *Reconciler) repair(ctx context.Context, d store.OccupancyDrift) (bool, error) {
	release, err := acquire(ctx, r.locker, lock.InstanceKey(d.InstanceID), r.lockWait, "reconcile")
	if err != nil {
		return false, err
	}
	defer release()

	fixed := false
	err = r.store.ForTenant(d.TenantID).Tx(ctx, func(tx *store.Scoped) error {
		inst, err := tx.LockInstance(ctx, d.InstanceID)
		if err != nil {
			return err
		}
		confirmed, err := tx.CountConfirmed(ctx, d.InstanceID)
		if err != nil {
			return err
		}
		// the drift may have been an in-flight booking that has since committed
		if inst.BookedCount == confirmed {
			return nil
		}
		if err := tx.SetBookedCount(ctx, d.InstanceID, confirmed); err != nil {
			return err
		}

		logrus.WithFields(logrus.Fields{
			"tenant_id":    d.TenantID,
			"instance_id":  d.InstanceID,
			"booked_count": inst.BookedCount,
			"confirmed":    confirmed,
		}).Warn("Corrected booked count drift")
		driftCounter.Inc()
		fixed = true
		return nil
	})
	return fixed, err
}

// Register schedules Reconcile on c with a cron spec such as "@every 5m"
func (r *Reconciler) Register(c *cron.Cron, spec string) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		repaired, err := r.Reconcile(ctx)
		if err != nil {
			logrus.WithError(err).Error("Occupancy reconciliation failed")
			return
		}
		if repaired > 0 {
			logrus.WithField("repaired", repaired).Info("Occupancy reconciliation finished")
		}
	})
}
