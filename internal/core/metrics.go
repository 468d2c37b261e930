package core

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsConfig holds batch-run metrics settings.
type MetricsConfig struct {
	// Textfile is a .prom file for the node_exporter textfile collector.
	// Empty disables metrics output.
	Textfile string `yaml:"textfile"`
}

// RunMetrics collects the counters of a single detection run on a private
// registry. A batch process has no scrape endpoint, so the result is
// written out with WriteTextfile.
type RunMetrics struct {
	registry *prometheus.Registry

	Events             *prometheus.CounterVec
	ErrorEvents        *prometheus.CounterVec
	SourceFailures     *prometheus.CounterVec
	Findings           *prometheus.CounterVec
	FindingsNew        *prometheus.CounterVec
	FindingsSuppressed prometheus.Counter
	SeenStateEntries   prometheus.Gauge
	LastRun            prometheus.Gauge
	RunDuration        prometheus.Gauge
}

// NewRunMetrics registers the run metrics on a fresh registry.
func NewRunMetrics() *RunMetrics {
	m := &RunMetrics{
		registry: prometheus.NewRegistry(),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authburst_events_total",
			Help: "Records read from input files.",
		}, []string{"source"}),
		ErrorEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authburst_error_events_total",
			Help: "Records classified as error/authentication-failure events.",
		}, []string{"source"}),
		SourceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authburst_source_failures_total",
			Help: "Input files that could not be read or parsed.",
		}, []string{"source"}),
		Findings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authburst_findings_total",
			Help: "Findings produced by the rule engine before suppression.",
		}, []string{"source", "severity"}),
		FindingsNew: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authburst_findings_new_total",
			Help: "Findings that passed the seen-state cooldown.",
		}, []string{"source", "severity"}),
		FindingsSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authburst_findings_suppressed_total",
			Help: "Findings suppressed by the seen-state cooldown.",
		}),
		SeenStateEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "authburst_seen_state_entries",
			Help: "Keys held in the seen-state cache after the run.",
		}),
		LastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "authburst_last_run_timestamp_seconds",
			Help: "Unix time the last run started.",
		}),
		RunDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "authburst_run_duration_seconds",
			Help: "Wall time of the last run.",
		}),
	}
	m.registry.MustRegister(
		m.Events, m.ErrorEvents, m.SourceFailures,
		m.Findings, m.FindingsNew, m.FindingsSuppressed,
		m.SeenStateEntries, m.LastRun, m.RunDuration,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *RunMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes the metrics atomically in the Prometheus text format.
func (m *RunMetrics) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
