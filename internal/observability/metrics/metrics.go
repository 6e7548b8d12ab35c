// Package metrics exposes Prometheus collectors for audit runs.
package metrics

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/RowanDark/cipherscore/internal/observability/tracing"
)

var (
	registry = prometheus.NewRegistry()

	auditsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cipherscore_audits_total",
		Help: "Audit runs by outcome.",
	}, []string{"outcome"})

	stageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cipherscore_stage_duration_seconds",
		Help:    "Duration of each audit stage.",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{"stage"})

	cipherLoads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cipherscore_cipher_loads_total",
		Help: "Cipher resolutions by source (static or plugin) and result.",
	}, []string{"source", "result"})

	avalancheScore = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "cipherscore_avalanche_score",
		Help: "Most recent avalanche percentage per cipher.",
	}, []string{"cipher"})
)

func init() {
	registry.MustRegister(auditsTotal, stageDuration, cipherLoads, avalancheScore)
}

// Gatherer returns the registry backing this package.
func Gatherer() prometheus.Gatherer { return registry }

// Audit outcome labels.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

// RecordAudit counts a finished audit run under one of the Outcome labels.
func RecordAudit(outcome string) {
	auditsTotal.WithLabelValues(outcome).Inc()
}

// ObserveStageDuration records how long a stage took, attaching the trace id
// from ctx as an exemplar when one is present.
func ObserveStageDuration(ctx context.Context, stage string, dur time.Duration) {
	obs := stageDuration.WithLabelValues(stage)
	if traceID := tracing.TraceID(ctx); traceID != "" {
		if ex, ok := obs.(prometheus.ExemplarObserver); ok {
			ex.ObserveWithExemplar(dur.Seconds(), prometheus.Labels{"trace_id": traceID})
			return
		}
	}
	obs.Observe(dur.Seconds())
}

// RecordCipherLoad counts a cipher resolution.
func RecordCipherLoad(source, result string) {
	cipherLoads.WithLabelValues(source, result).Inc()
}

// SetAvalancheScore records the latest avalanche percentage for a cipher.
func SetAvalancheScore(cipher string, score float64) {
	avalancheScore.WithLabelValues(cipher).Set(score)
}

// WriteText writes every metric family in the Prometheus text format.
func WriteText(w io.Writer) error {
	families, err := registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metric %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
