package main

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	prom "github.com/prometheus/client_golang/prometheus"
)

const (
	promNamespace = "gymbook"
	promSubsystem = "http"
)

var (
	requestLabels    = []string{"method", "route", "status"}
	requestHistogram = prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: promNamespace,
		Subsystem: promSubsystem,
		Name:      "request_seconds",
		Help:      "duration of HTTP requests by route and status",
		Buckets:   prom.DefBuckets,
	}, requestLabels)
)

func init() {
	prom.MustRegister(requestHistogram)
}

// requestMetrics records every request under its route template, not the raw path
func requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		requestHistogram.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
