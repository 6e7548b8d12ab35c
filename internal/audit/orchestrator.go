// Package audit sequences the avalanche analyzer, the performance profiler
// and the attack probe against one cipher and aggregates their results.
package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/RowanDark/cipherscore/internal/attack"
	"github.com/RowanDark/cipherscore/internal/avalanche"
	"github.com/RowanDark/cipherscore/internal/cipher"
	"github.com/RowanDark/cipherscore/internal/logging"
	"github.com/RowanDark/cipherscore/internal/observability/metrics"
	"github.com/RowanDark/cipherscore/internal/observability/tracing"
	"github.com/RowanDark/cipherscore/internal/perf"
)

// Orchestrator runs audits. It holds no cipher state between runs.
type Orchestrator struct {
	analyzer  *avalanche.Analyzer
	profiler  *perf.Profiler
	prober    attack.Prober
	proberSet bool
	journal   *logging.Journal
	clock     func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithProber injects the attack probe. A nil prober makes every run report
// the attack stage as Skipped. Without this option a built-in simulator is
// built per run from the configuration's attack parameters.
func WithProber(p attack.Prober) Option {
	return func(o *Orchestrator) {
		o.prober = p
		o.proberSet = true
	}
}

// WithAnalyzer replaces the avalanche analyzer.
func WithAnalyzer(a *avalanche.Analyzer) Option {
	return func(o *Orchestrator) {
		if a != nil {
			o.analyzer = a
		}
	}
}

// WithProfiler replaces the performance profiler.
func WithProfiler(p *perf.Profiler) Option {
	return func(o *Orchestrator) {
		if p != nil {
			o.profiler = p
		}
	}
}

// WithJournal records run events to j.
func WithJournal(j *logging.Journal) Option {
	return func(o *Orchestrator) {
		o.journal = j.Component("orchestrator")
	}
}

// WithClock overrides the wall clock used for report timestamps.
func WithClock(clock func() time.Time) Option {
	return func(o *Orchestrator) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// New constructs an Orchestrator.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		analyzer: avalanche.New(),
		profiler: perf.NewProfiler(),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run audits c under cfg. Any stage failure aborts the run with a
// *StageError and no report; only an unavailable attack probe produces a
// report with a Skipped classification.
func (o *Orchestrator) Run(ctx context.Context, c cipher.Cipher, cfg Configuration) (_ Report, err error) {
	if c == nil {
		return Report{}, errors.New("audit: cipher is required")
	}
	if err := cfg.Validate(); err != nil {
		return Report{}, fmt.Errorf("audit configuration: %w", err)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	cfg = cfg.normalized()
	guarded := cipher.Guard(c)

	started := o.clock()
	rep := Report{
		ID:         ulid.MustNew(ulid.Timestamp(started), ulid.DefaultEntropy()).String(),
		CipherName: guarded.Name(),
		StartedAt:  started,
	}

	run := logging.Run{ID: rep.ID, Cipher: rep.CipherName}

	ctx, span := tracing.StartSpan(ctx, "audit.run", tracing.WithAttributes(map[string]any{
		"cipherscore.run_id":     rep.ID,
		"cipherscore.cipher":     rep.CipherName,
		"cipherscore.rounds":     cfg.Rounds,
		"cipherscore.iterations": cfg.Iterations,
	}))
	defer func() {
		tracing.Finish(span, err)
		if err != nil {
			metrics.RecordAudit(outcomeFor(err))
			o.record(run.Failed(string(cipher.CategoryOf(err)), err))
		}
	}()

	o.record(run.Started(cfg.Rounds, cfg.Iterations, cfg.AttackTrials, cfg.Key))

	if err = o.stage(ctx, run, StageAvalanche, func(ctx context.Context) (map[string]any, error) {
		res, err := o.analyzer.Profile(ctx, guarded, cfg.Key, cfg.Rounds)
		if err != nil {
			return nil, err
		}
		rep.Avalanche = res
		rep.AvalanchePercentage = res.Percentage
		return map[string]any{"percentage": res.Percentage, "worst_bias": res.WorstBias}, nil
	}); err != nil {
		return Report{}, err
	}

	if err = o.stage(ctx, run, StagePerformance, func(ctx context.Context) (map[string]any, error) {
		m, err := o.profiler.Measure(ctx, guarded, cfg.Plaintext, cfg.Key, cfg.Iterations)
		if err != nil {
			return nil, err
		}
		rep.Performance = m
		rep.LatencyMs = m.LatencyMs
		rep.PeakMemoryKb = m.PeakMemoryKb
		return map[string]any{"latency_ms": m.LatencyMs, "peak_memory_kb": m.PeakMemoryKb}, nil
	}); err != nil {
		return Report{}, err
	}

	if err = o.stage(ctx, run, StageAttack, func(ctx context.Context) (map[string]any, error) {
		res, err := o.probe(ctx, guarded, cfg)
		if errors.Is(err, attack.ErrUnavailable) {
			rep.Attack = attack.Result{Classification: attack.Skipped}
			rep.AttackClassification = attack.Skipped
			o.record(run.AttackSkipped(err))
			return map[string]any{"classification": attack.Skipped.String()}, nil
		}
		if err != nil {
			return nil, err
		}
		rep.Attack = res
		rep.AttackClassification = res.Classification
		return map[string]any{"classification": res.Classification.String(), "probability": res.Probability}, nil
	}); err != nil {
		return Report{}, err
	}

	rep.Duration = o.clock().Sub(started)
	metrics.RecordAudit(metrics.OutcomeCompleted)
	metrics.SetAvalancheScore(rep.CipherName, rep.AvalanchePercentage)
	o.record(run.Completed(rep.Duration, rep.fieldMap()))
	return rep, nil
}

func (o *Orchestrator) stage(ctx context.Context, run logging.Run, stage Stage, fn func(context.Context) (map[string]any, error)) error {
	ctx, span := tracing.StartSpan(ctx, "audit."+string(stage), tracing.WithAttributes(map[string]any{
		"cipherscore.stage": string(stage),
	}))
	start := time.Now()
	meta, err := fn(ctx)
	elapsed := time.Since(start)
	metrics.ObserveStageDuration(ctx, string(stage), elapsed)
	if err != nil {
		tracing.Finish(span, err)
		return &StageError{Stage: stage, Err: err}
	}
	for k, v := range meta {
		span.SetAttribute("cipherscore."+k, v)
	}
	tracing.Finish(span, nil)
	o.record(run.StageCompleted(string(stage), elapsed, meta))
	return nil
}

func (o *Orchestrator) probe(ctx context.Context, c cipher.Cipher, cfg Configuration) (attack.Result, error) {
	prober := o.prober
	if !o.proberSet {
		sim, err := attack.New(
			attack.WithTrials(cfg.AttackTrials),
			attack.WithThreshold(cfg.AttackThreshold),
			attack.WithInputDelta(cfg.AttackInputDelta),
			attack.WithTargetDelta(cfg.AttackTargetDelta),
		)
		if err != nil {
			return attack.Result{}, err
		}
		prober = sim
	}
	if prober == nil {
		return attack.Result{Classification: attack.Skipped}, attack.ErrUnavailable
	}
	return prober.Probe(ctx, c)
}

func (o *Orchestrator) record(ev logging.AuditEvent) {
	_ = o.journal.Record(ev)
}

func outcomeFor(err error) string {
	if cipher.CategoryOf(err) == cipher.CategoryCancelled {
		return metrics.OutcomeCancelled
	}
	return metrics.OutcomeFailed
}

func (r Report) fieldMap() map[string]any {
	fields := r.Fields()
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
