// Package metrics exposes Prometheus metrics for the bridge.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kamafile/onboarding-bridge/internal/conversation"
	"github.com/kamafile/onboarding-bridge/internal/onboarding"
)

type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge
}

// New creates the metric set and registers it with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "onboarding_requests_total",
				Help: "Total requests issued to the onboarding service",
			},
			[]string{"op", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "onboarding_request_duration_seconds",
				Help:    "Duration of onboarding service requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		RequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "onboarding_requests_in_flight",
				Help: "Onboarding service requests currently in flight",
			},
		),
	}

	reg.MustRegister(m.RequestsTotal, m.RequestDuration, m.RequestsInFlight)
	return m
}

// InstrumentTransport wraps a Transport so every start and turn call is
// counted and timed.
func (m *Metrics) InstrumentTransport(next conversation.Transport) conversation.Transport {
	return &instrumentedTransport{next: next, metrics: m}
}

type instrumentedTransport struct {
	next    conversation.Transport
	metrics *Metrics
}

func (t *instrumentedTransport) StartSession(ctx context.Context, req onboarding.StartRequest) (*onboarding.StepResponse, error) {
	done := t.metrics.observe("start")
	resp, err := t.next.StartSession(ctx, req)
	done(err)
	return resp, err
}

func (t *instrumentedTransport) SubmitStep(ctx context.Context, req onboarding.StepRequest) (*onboarding.StepResponse, error) {
	done := t.metrics.observe("step")
	resp, err := t.next.SubmitStep(ctx, req)
	done(err)
	return resp, err
}

func (m *Metrics) observe(op string) func(error) {
	start := time.Now()
	m.RequestsInFlight.Inc()
	return func(err error) {
		m.RequestsInFlight.Dec()
		m.RequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		status := "ok"
		if err != nil {
			status = "error"
		}
		m.RequestsTotal.WithLabelValues(op, status).Inc()
	}
}
