package metrics

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Sink receives monitoring signals from the wind engine. Implementations
// must not panic and never report failures back to the caller.
type Sink interface {
	TrackEvent(name string, payload map[string]interface{})
	TrackMetric(name string, value float64)
	TrackError(name string, err error)
}

// PrometheusSink maps sink calls onto Prometheus collectors. Metric values
// are observed into a histogram and also exposed as the last seen value.
type PrometheusSink struct {
	events   *prometheus.CounterVec
	errors   *prometheus.CounterVec
	observed *prometheus.HistogramVec
	last     *prometheus.GaugeVec
	logger   *slog.Logger
}

// NewPrometheusSink registers its collectors with reg
func NewPrometheusSink(reg prometheus.Registerer, logger *slog.Logger) *PrometheusSink {
	if logger == nil {
		logger = slog.Default()
	}

	s := &PrometheusSink{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "velowind_events_total",
			Help: "Wind engine events by name",
		}, []string{"event"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "velowind_errors_total",
			Help: "Wind engine errors by name",
		}, []string{"error"}),
		observed: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "velowind_metric_value",
			Help:    "Distribution of tracked wind engine metrics (latencies in ms)",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}, []string{"metric"}),
		last: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "velowind_metric_last",
			Help: "Last tracked value of each wind engine metric",
		}, []string{"metric"}),
		logger: logger,
	}

	for _, c := range []prometheus.Collector{s.events, s.errors, s.observed, s.last} {
		if err := reg.Register(c); err != nil {
			logger.Warn("failed to register collector", "error", err)
		}
	}

	return s
}

func (s *PrometheusSink) TrackEvent(name string, payload map[string]interface{}) {
	defer s.guard("TrackEvent")
	s.events.WithLabelValues(name).Inc()
	s.logger.Debug("event", "name", name, "payload", payload)
}

func (s *PrometheusSink) TrackMetric(name string, value float64) {
	defer s.guard("TrackMetric")
	s.observed.WithLabelValues(name).Observe(value)
	s.last.WithLabelValues(name).Set(value)
}

func (s *PrometheusSink) TrackError(name string, err error) {
	defer s.guard("TrackError")
	s.errors.WithLabelValues(name).Inc()
}

func (s *PrometheusSink) guard(op string) {
	if r := recover(); r != nil {
		s.logger.Warn("metrics sink failure", "op", op, "panic", r)
	}
}

// NopSink discards everything
type NopSink struct{}

func (NopSink) TrackEvent(string, map[string]interface{}) {}
func (NopSink) TrackMetric(string, float64)               {}
func (NopSink) TrackError(string, error)                  {}

var (
	_ Sink = (*PrometheusSink)(nil)
	_ Sink = NopSink{}
)
