package events

import (
	prom "github.com/prometheus/client_golang/prometheus"
)

const (
	promNamespace = "gymbook"
	promSubsystem = "outbox"
)

var (
	relayCounter = prom.NewCounterVec(prom.CounterOpts{
		Namespace: promNamespace,
		Subsystem: promSubsystem,
		Name:      "events_total",
		Help:      "booking events handled by the relay by outcome",
	}, []string{"outcome"})
	publishHistogram = prom.NewHistogram(prom.HistogramOpts{
		Namespace: promNamespace,
		Subsystem: promSubsystem,
		Name:      "publish_seconds",
		Help:      "duration of broker publish calls",
		Buckets:   prom.DefBuckets,
	})
)

func init() {
	prom.MustRegister(relayCounter)
	prom.MustRegister(publishHistogram)
}
