package apiclient

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pribylovaa/campus-sync/internal/clients"
)

type metrics struct {
	requests  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	refreshes *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "campus_sync",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Outgoing API requests by method and response status.",
		}, []string{"method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "campus_sync",
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "Outgoing API request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "campus_sync",
			Subsystem: "api",
			Name:      "token_refresh_total",
			Help:      "Token refresh outcomes.",
		}, []string{"result"}),
	}

	if reg != nil {
		reg.MustRegister(m.requests, m.duration, m.refreshes)
	}

	return m
}

func (m *metrics) observe(method string, resp *clients.Response, d time.Duration) {
	code := "error"
	if resp != nil {
		code = strconv.Itoa(resp.Status)
	}

	m.requests.WithLabelValues(method, code).Inc()
	m.duration.WithLabelValues(method).Observe(d.Seconds())
}
