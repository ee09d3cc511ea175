package relay

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tarancss/adminrelay/lib/upstream"
)

// Outcomes of an upstream call.
const (
	outcomeOK         = "ok"
	outcomeUpstream   = "upstream_error"
	outcomeNoResponse = "no_response"
	outcomeError      = "error"
)

// metrics counts upstream calls by operation and outcome and observes their latency.
type metrics struct {
	calls   *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relay",
			Name:      "upstream_requests_total",
			Help:      "Upstream calls by operation and outcome.",
		}, []string{"op", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "relay",
			Name:      "upstream_request_duration_seconds",
			Help:      "Latency of upstream calls by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
	}

	if reg != nil {
		reg.MustRegister(m.calls, m.latency)
	}

	return m
}

// observe starts timing an upstream call of op. The returned func records the call with its error.
func (m *metrics) observe(op string) func(error) {
	start := time.Now()

	return func(err error) {
		m.latency.WithLabelValues(op).Observe(time.Since(start).Seconds())
		m.calls.WithLabelValues(op, outcome(err)).Inc()
	}
}

func outcome(err error) string {
	var ue *upstream.Error

	switch {
	case err == nil:
		return outcomeOK
	case errors.As(err, &ue):
		return outcomeUpstream
	case errors.Is(err, upstream.ErrNoResponse):
		return outcomeNoResponse
	}

	return outcomeError
}
