// Package metrics provides Prometheus metrics for report runs and deliveries.
package metrics

import (
	"fmt"
	"time"

	"github.com/MacJediWizard/statsbot/internal/models"
	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric name.
const Namespace = "statsbot"

// PrometheusMetrics holds the bot's Prometheus collectors.
type PrometheusMetrics struct {
	ReportsTotal    *prometheus.CounterVec
	ReportDuration  *prometheus.HistogramVec
	LastSuccess     *prometheus.GaugeVec
	DeliveriesTotal *prometheus.CounterVec

	registry prometheus.Gatherer
}

// NewPrometheusMetrics creates the collectors and registers them with reg.
func NewPrometheusMetrics(reg prometheus.Registerer) (*PrometheusMetrics, error) {
	m := &PrometheusMetrics{
		ReportsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "reports_total",
				Help:      "Total number of report computations",
			},
			[]string{"kind", "status"},
		),
		ReportDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "report_duration_seconds",
				Help:      "Report computation duration in seconds",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"kind"},
		),
		LastSuccess: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "last_success_timestamp_seconds",
				Help:      "Unix time of the last successful report computation",
			},
			[]string{"kind"},
		),
		DeliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "deliveries_total",
				Help:      "Total number of report deliveries",
			},
			[]string{"channel", "status"},
		),
	}

	for _, c := range []prometheus.Collector{m.ReportsTotal, m.ReportDuration, m.LastSuccess, m.DeliveriesTotal} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metric: %w", err)
		}
	}

	if g, ok := reg.(prometheus.Gatherer); ok {
		m.registry = g
	}
	return m, nil
}

// Gatherer returns the registry the metrics were registered with, if it can
// be gathered from.
func (m *PrometheusMetrics) Gatherer() prometheus.Gatherer {
	if m.registry == nil {
		return prometheus.DefaultGatherer
	}
	return m.registry
}

// ObserveReport records the outcome of a report computation.
func (m *PrometheusMetrics) ObserveReport(kind models.ReportKind, status models.RunStatus, duration time.Duration) {
	m.ReportsTotal.WithLabelValues(string(kind), string(status)).Inc()
	m.ReportDuration.WithLabelValues(string(kind)).Observe(duration.Seconds())
	if status == models.RunStatusSucceeded {
		m.LastSuccess.WithLabelValues(string(kind)).SetToCurrentTime()
	}
}

// ObserveDelivery records a delivery attempt on channel.
func (m *PrometheusMetrics) ObserveDelivery(channel string, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	m.DeliveriesTotal.WithLabelValues(channel, status).Inc()
}
