package booking

import (
	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/pavitra93/go-gym-booking/shared/apperr"
)

const (
	promNamespace = "gymbook"
	promSubsystem = "booking"
)

var (
	operationLabels  = []string{"operation", "result"}
	operationCounter = prom.NewCounterVec(prom.CounterOpts{
		Namespace: promNamespace,
		Subsystem: promSubsystem,
		Name:      "operations_total",
		Help:      "booking engine and scheduler operations by result kind",
	}, operationLabels)
	lockWaitHistogram = prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: promNamespace,
		Subsystem: promSubsystem,
		Name:      "lock_wait_seconds",
		Help:      "time spent waiting for instance and location locks",
		Buckets:   prom.DefBuckets,
	}, []string{"operation"})
	driftCounter = prom.NewCounter(prom.CounterOpts{
		Namespace: promNamespace,
		Subsystem: promSubsystem,
		Name:      "occupancy_repairs_total",
		Help:      "instances whose booked count was corrected by the reconciler",
	})
)

func init() {
	prom.MustRegister(operationCounter)
	prom.MustRegister(lockWaitHistogram)
	prom.MustRegister(driftCounter)
}

// observe counts one operation under its error kind, "ok" on success
func observe(operation string, err error) {
	result := "ok"
	if err != nil {
		result = string(apperr.KindOf(err))
	}
	operationCounter.WithLabelValues(operation, result).Inc()
}
