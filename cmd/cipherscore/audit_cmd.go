package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/RowanDark/cipherscore/internal/attack"
	"github.com/RowanDark/cipherscore/internal/audit"
	"github.com/RowanDark/cipherscore/internal/cipher"
	"github.com/RowanDark/cipherscore/internal/cipher/builtin"
	"github.com/RowanDark/cipherscore/internal/config"
	"github.com/RowanDark/cipherscore/internal/history"
	"github.com/RowanDark/cipherscore/internal/loader"
	"github.com/RowanDark/cipherscore/internal/logging"
	"github.com/RowanDark/cipherscore/internal/observability/metrics"
	"github.com/RowanDark/cipherscore/internal/observability/tracing"
	"github.com/RowanDark/cipherscore/internal/perf"
	"github.com/RowanDark/cipherscore/internal/plugins/integrity"
)

func runAudit(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("audit", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		cipherID     string
		pluginPath   string
		configPath   string
		rounds       int
		iterations   int
		jsonOutput   bool
		outputPath   string
		baselinePath string
		threshold    float64
		record       bool
		metricsOut   string
		timeout      time.Duration
	)
	fs.StringVar(&cipherID, "cipher", "", "built-in cipher id (see `cipherscore list`)")
	fs.StringVar(&pluginPath, "plugin", "", "path to a round-function plugin source")
	fs.StringVar(&configPath, "config", "", "explicit configuration file")
	fs.IntVar(&rounds, "rounds", 0, "avalanche trials (0 keeps the configured value)")
	fs.IntVar(&iterations, "iterations", 0, "profiler iterations (0 keeps the configured value)")
	fs.BoolVar(&jsonOutput, "json", false, "print the report document as JSON")
	fs.StringVar(&outputPath, "out", "", "write the report document to this path")
	fs.StringVar(&baselinePath, "baseline", "", "optional baseline report document for regression detection")
	fs.Float64Var(&threshold, "threshold", 0.10, "maximum allowed regression expressed as a ratio (0.10 = 10%)")
	fs.BoolVar(&record, "record", false, "store the run in the history database")
	fs.StringVar(&metricsOut, "metrics-out", "", "write Prometheus metrics to this path after the run")
	fs.DurationVar(&timeout, "timeout", 0, "abort the audit after this long (0 disables)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if (cipherID == "") == (pluginPath == "") {
		fmt.Fprintln(stderr, "exactly one of -cipher or -plugin is required")
		return 2
	}
	if threshold <= 0 || threshold >= 1 {
		fmt.Fprintf(stderr, "threshold must be between 0 and 1 (got %.3f)\n", threshold)
		return 2
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return 1
	}
	if iterations > 0 {
		cfg.Audit.Iterations = iterations
	}
	if record {
		cfg.History.Record = true
	}

	sel := loader.Selector{ID: cipherID}
	if pluginPath != "" {
		src, err := os.ReadFile(pluginPath)
		if err != nil {
			fmt.Fprintf(stderr, "read plugin: %v\n", err)
			return 1
		}
		sel = loader.Selector{ID: loader.CustomID, Source: string(src)}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	env, err := newAuditEnv(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}
	defer env.close(stderr)

	out, err := env.service.Invoke(ctx, audit.Request{Selector: sel, Rounds: rounds})
	if err != nil && out.Report.ID == "" {
		fmt.Fprintf(stderr, "audit failed [%s]: %v\n", cipher.CategoryOf(err), err)
		return 1
	}
	if err != nil {
		fmt.Fprintf(stderr, "warning: %v\n", err)
	}

	doc, err := out.Report.Document()
	if err != nil {
		fmt.Fprintf(stderr, "render report: %v\n", err)
		return 1
	}
	if jsonOutput {
		fmt.Fprintln(stdout, string(doc))
	} else {
		printReport(stdout, out)
	}
	if outputPath != "" {
		if err := writeFile(outputPath, append(doc, '\n')); err != nil {
			fmt.Fprintf(stderr, "write report: %v\n", err)
			return 1
		}
	}
	if metricsOut != "" {
		if err := writeMetrics(metricsOut); err != nil {
			fmt.Fprintf(stderr, "write metrics: %v\n", err)
			return 1
		}
	}

	if baselinePath != "" {
		data, err := os.ReadFile(baselinePath)
		if err != nil {
			fmt.Fprintf(stderr, "load baseline: %v\n", err)
			return 1
		}
		baseline, err := audit.ParseDocument(data)
		if err != nil {
			fmt.Fprintf(stderr, "load baseline: %v\n", err)
			return 1
		}
		diff := perf.Compare(baseline, out.Report.Summary(), threshold)
		fmt.Fprint(stdout, diff.RenderText())
		if diff.HasRegressions() {
			fmt.Fprintf(stderr, "regressions detected (threshold %.1f%%)\n", threshold*100)
			return 1
		}
	}
	return 0
}

// auditEnv owns everything a single CLI audit needs.
type auditEnv struct {
	service  *audit.Service
	journal  *logging.Journal
	store    *history.Store
	shutdown func(context.Context) error
}

func newAuditEnv(ctx context.Context, cfg config.Config) (_ *auditEnv, err error) {
	env := &auditEnv{}
	defer func() {
		if err != nil {
			env.close(io.Discard)
		}
	}()

	if cfg.Tracing.FilePath != "" {
		env.shutdown, err = tracing.Setup(ctx, tracing.Config{
			ServiceName: cfg.Tracing.ServiceName,
			SampleRatio: cfg.Tracing.SampleRatio,
			FilePath:    cfg.Tracing.FilePath,
		})
		if err != nil {
			return nil, fmt.Errorf("setup tracing: %w", err)
		}
	}

	if env.journal, err = openJournal(cfg.Logging); err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}

	loaderOpts := []loader.Option{
		loader.WithPolicy(cfg.PluginPolicy()),
		loader.WithJournal(env.journal),
	}
	if cfg.Plugins.Allowlist != "" {
		allowlist, err := integrity.LoadAllowlist(cfg.Plugins.Allowlist)
		if err != nil {
			return nil, fmt.Errorf("load plugin allowlist: %w", err)
		}
		loaderOpts = append(loaderOpts, loader.WithAllowlist(allowlist))
	}
	l, err := loader.New(builtin.NewRegistry(), loaderOpts...)
	if err != nil {
		return nil, err
	}

	orchOpts := []audit.Option{audit.WithJournal(env.journal)}
	if cfg.Audit.AttackEnabled {
		sim, err := attack.New(cfg.AttackOptions()...)
		if err != nil {
			return nil, fmt.Errorf("configure attack probe: %w", err)
		}
		orchOpts = append(orchOpts, audit.WithProber(sim))
	} else {
		orchOpts = append(orchOpts, audit.WithProber(nil))
	}

	var svcOpts []audit.ServiceOption
	if cfg.History.Record {
		if env.store, err = history.Open(cfg.History.Path); err != nil {
			return nil, err
		}
		svcOpts = append(svcOpts, audit.WithRecorder(env.store))
	}

	env.service, err = audit.NewService(l, audit.New(orchOpts...), cfg.AuditConfiguration(), svcOpts...)
	if err != nil {
		return nil, err
	}
	return env, nil
}

func (e *auditEnv) close(stderr io.Writer) {
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			fmt.Fprintf(stderr, "close history: %v\n", err)
		}
	}
	if e.journal != nil {
		if err := e.journal.Close(); err != nil {
			fmt.Fprintf(stderr, "close audit log: %v\n", err)
		}
	}
	if e.shutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.shutdown(ctx); err != nil {
			fmt.Fprintf(stderr, "flush traces: %v\n", err)
		}
	}
}

// openJournal returns nil when the audit trail is switched off.
func openJournal(cfg config.LoggingConfig) (*logging.Journal, error) {
	var dests []logging.Destination
	if cfg.AuditLog != "" {
		dests = append(dests, logging.File(cfg.AuditLog))
	}
	if cfg.Stdout {
		dests = append(dests, logging.Stdout())
	}
	if len(dests) == 0 {
		return nil, nil
	}
	return logging.Open("cipherscore", dests...)
}

func loadConfig(path string) (config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

func printReport(w io.Writer, out audit.Outcome) {
	rep := out.Report
	fields := rep.Fields()
	fmt.Fprintf(w, "Audit %s: %s\n", rep.ID, out.CipherName)
	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, key := range []string{audit.KeyAvalanche, audit.KeySpeed, audit.KeyMemory, audit.KeyAttack} {
		fmt.Fprintf(writer, "%s\t%s\n", key, fields[key])
	}
	fmt.Fprintf(writer, "Avalanche spread\tσ=%.4f worst bit %d (bias %.3f)\n", rep.Avalanche.StdDev, rep.Avalanche.WorstBit, rep.Avalanche.WorstBias)
	fmt.Fprintf(writer, "Allocations\t%.2f KB total, %.2f allocs/op\n", rep.Performance.AllocatedKb, rep.Performance.AllocsPerOp)
	if rep.Attack.Trials > 0 {
		fmt.Fprintf(writer, "Probe hits\t%d/%d (p=%.3g)\n", rep.Attack.Hits, rep.Attack.Trials, rep.Attack.PValue)
	}
	if out.RecordID != "" {
		fmt.Fprintf(writer, "Recorded\t%s\n", out.RecordID)
	}
	_ = writer.Flush()
}

func writeMetrics(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := metrics.WriteText(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
