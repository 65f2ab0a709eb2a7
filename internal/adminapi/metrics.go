package adminapi

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the gateway's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	Requests  *prometheus.CounterVec
	Latency   *prometheus.HistogramVec
	Refreshes *prometheus.CounterVec
	SignOuts  *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dtadmin_api_requests_total",
			Help: "Backend requests by method, route and status code",
		}, []string{"method", "route", "code"}),
		Latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dtadmin_api_request_duration_seconds",
			Help:    "Backend request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		Refreshes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dtadmin_token_refreshes_total",
			Help: "Access token refresh attempts by outcome",
		}, []string{"outcome"}),
		SignOuts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dtadmin_sign_outs_total",
			Help: "Session teardowns by reason",
		}, []string{"reason"}),
	}
}

func (m *Metrics) observe(method, route, code string, d time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(method, route, code).Inc()
	m.Latency.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) refreshed(outcome string) {
	if m == nil {
		return
	}
	m.Refreshes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) signedOut(r SignOutReason) {
	if m == nil {
		return
	}
	m.SignOuts.WithLabelValues(r.String()).Inc()
}
