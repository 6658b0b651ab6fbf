package events

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/pavitra93/go-gym-booking/shared/models"
	"github.com/pavitra93/go-gym-booking/shared/store"
	"github.com/pavitra93/go-gym-booking/shared/utils"
)

const (
	defaultBatchSize   = 100
	defaultMaxAttempts = 8
	baseDelay          = 30 * time.Second
	maxDelay           = time.Hour
)

// RelayConfig tunes the outbox relay
type RelayConfig struct {
	BatchSize   int
	MaxAttempts int
	Now         func() time.Time
}

// RelayStats summarizes one relay pass
type RelayStats struct {
	Published int `json:"published"`
	Retried   int `json:"retried"`
	Failed    int `json:"failed"`
	Deferred  int `json:"deferred"`
}

// Relay moves pending outbox events to the broker
type Relay struct {
	store       *store.Store
	publisher   Publisher
	breaker     *utils.CircuitBreaker
	batchSize   int
	maxAttempts int
	now         func() time.Time
}

func NewRelay(s *store.Store, publisher Publisher, breaker *utils.CircuitBreaker, cfg RelayConfig) *Relay {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if breaker == nil {
		breaker = utils.NewCircuitBreaker("kafka", 5, 30*time.Second)
	}
	return &Relay{
		store:       s,
		publisher:   publisher,
		breaker:     breaker,
		batchSize:   cfg.BatchSize,
		maxAttempts: cfg.MaxAttempts,
		now:         cfg.Now,
	}
}

// Backoff returns the delay before retry number attempts (1-based): 30s doubling up to 1h
func Backoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	delay := baseDelay
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= maxDelay {
			return maxDelay
		}
	}
	return delay
}

// RelayOnce publishes one batch of due events
func (r *Relay) RelayOnce(ctx context.Context) (RelayStats, error) {
	var stats RelayStats

	due, err := r.store.DueEvents(ctx, r.now(), r.batchSize)
	if err != nil {
		return stats, err
	}

	for i, evt := range due {
		err := r.breaker.Call(func() error {
			start := time.Now()
			defer func() { publishHistogram.Observe(time.Since(start).Seconds()) }()
			return r.publisher.Publish(ctx, evt)
		})

		if utils.IsRejection(err) {
			// broker is down; leave the rest pending without spending attempts
			stats.Deferred = len(due) - i
			relayCounter.WithLabelValues("deferred").Add(float64(stats.Deferred))
			break
		}

		log := logrus.WithFields(logrus.Fields{
			"event_id":   evt.ID,
			"event_type": evt.Type,
			"tenant_id":  evt.TenantID,
			"booking_id": evt.BookingID,
		})

		if err == nil {
			if err := r.store.MarkPublished(ctx, evt.ID, r.now()); err != nil {
				return stats, err
			}
			stats.Published++
			relayCounter.WithLabelValues("published").Inc()
			continue
		}

		attempts := evt.Attempts + 1
		giveUp := attempts >= r.maxAttempts
		next := r.now().Add(Backoff(attempts))
		if err := r.store.MarkAttempt(ctx, evt.ID, attempts, next, err.Error(), giveUp); err != nil {
			return stats, err
		}

		if giveUp {
			stats.Failed++
			relayCounter.WithLabelValues("failed").Inc()
			log.WithError(err).WithField("attempts", attempts).Error("Booking event failed permanently")
		} else {
			stats.Retried++
			relayCounter.WithLabelValues("retried").Inc()
			log.WithError(err).WithFields(logrus.Fields{
				"attempts":        attempts,
				"next_attempt_at": next,
			}).Warn("Booking event publish failed, will retry")
		}
	}

	return stats, nil
}

// Stats counts outbox events per status
func (r *Relay) Stats(ctx context.Context) (map[models.EventStatus]int64, error) {
	out := make(map[models.EventStatus]int64, 3)
	for _, status := range []models.EventStatus{models.EventPending, models.EventPublished, models.EventFailed} {
		n, err := r.store.CountEvents(ctx, status)
		if err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, nil
}

// Register schedules RelayOnce on c with a cron spec such as "@every 5s"
func (r *Relay) Register(c *cron.Cron, spec string) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		stats, err := r.RelayOnce(ctx)
		if err != nil {
			logrus.WithError(err).Error("Booking event relay failed")
			return
		}
		if stats.Published+stats.Retried+stats.Failed+stats.Deferred > 0 {
			logrus.WithFields(logrus.Fields{
				"published": stats.Published,
				"retried":   stats.Retried,
				"failed":    stats.Failed,
				"deferred":  stats.Deferred,
			}).Info("Booking event relay pass finished")
		}
	})
}
