// Package metrics records test data generation statistics in Prometheus
// format. A Recorder satisfies both resolution.Observer and
// lifecycle.Observer so a single instance can follow a whole run.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Prometheus metric names.
const (
	MetricResolutionsTotal        = "testgen_resolutions_total"
	MetricStrategySelectionsTotal = "testgen_strategy_selections_total"
	MetricFallbacksTotal          = "testgen_fallbacks_total"
	MetricSchemaGapsTotal         = "testgen_schema_gaps_total"
	MetricCapturedValuesTotal     = "testgen_captured_values_total"
	MetricMemoryEntries           = "testgen_memory_entries"
)

// Recorder collects generation metrics on its own registry.
//
// Thread Safety: Safe for concurrent use by multiple goroutines.
type Recorder struct {
	registry *prometheus.Registry

	resolutionsTotal        *prometheus.CounterVec
	strategySelectionsTotal *prometheus.CounterVec
	fallbacksTotal          prometheus.Counter
	schemaGapsTotal         prometheus.Counter
	capturedValuesTotal     prometheus.Counter
	memoryEntries           prometheus.Gauge
}

// NewRecorder creates a Recorder with all metrics registered.
func NewRecorder() *Recorder {
	// Create a new registry to avoid conflicts with default metrics
	registry := prometheus.NewRegistry()

	r := &Recorder{
		registry: registry,
		resolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricResolutionsTotal,
				Help: "Total number of request resolutions by method and outcome.",
			},
			[]string{"method", "outcome"},
		),
		strategySelectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricStrategySelectionsTotal,
				Help: "Total number of body fields resolved per strategy.",
			},
			[]string{"strategy"},
		),
		fallbacksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricFallbacksTotal,
			Help: "Total number of resolutions that fell back to schema synthesis.",
		}),
		schemaGapsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricSchemaGapsTotal,
			Help: "Total number of unresolved schema references encountered.",
		}),
		capturedValuesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricCapturedValuesTotal,
			Help: "Total number of response values captured into execution memory.",
		}),
		memoryEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricMemoryEntries,
			Help: "Current number of keys in execution memory.",
		}),
	}

	registry.MustRegister(
		r.resolutionsTotal,
		r.strategySelectionsTotal,
		r.fallbacksTotal,
		r.schemaGapsTotal,
		r.capturedValuesTotal,
		r.memoryEntries,
	)
	return r
}

// ObserveResolution counts one resolution. Fallback outcomes also increment
// the fallback counter.
func (r *Recorder) ObserveResolution(method, outcome string) {
	r.resolutionsTotal.WithLabelValues(method, outcome).Inc()
	if outcome == "fallback" {
		r.fallbacksTotal.Inc()
	}
}

// ObserveStrategy counts one strategy selection.
func (r *Recorder) ObserveStrategy(strategy string) {
	r.strategySelectionsTotal.WithLabelValues(strategy).Inc()
}

// ObserveGaps adds unresolved references.
func (r *Recorder) ObserveGaps(count int) {
	if count > 0 {
		r.schemaGapsTotal.Add(float64(count))
	}
}

// ObserveCapture adds captured response values.
func (r *Recorder) ObserveCapture(captured int) {
	if captured > 0 {
		r.capturedValuesTotal.Add(float64(captured))
	}
}

// ObserveMemorySize sets the execution memory size.
func (r *Recorder) ObserveMemorySize(entries int) {
	r.memoryEntries.Set(float64(entries))
}

// WriteTextfile writes all metrics in the text exposition format, for the
// node exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}

// Registry returns the Prometheus registry (for testing).
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Gather collects all metrics from the registry.
func (r *Recorder) Gather() ([]*dto.MetricFamily, error) {
	return r.registry.Gather()
}
