package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/RowanDark/cipherscore/internal/history"
)

func runHistory(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		configPath string
		dbPath     string
		cipherName string
		limit      int
		runID      string
		markdown   string
	)
	fs.StringVar(&configPath, "config", "", "explicit configuration file")
	fs.StringVar(&dbPath, "db", "", "history database (defaults to the configured path)")
	fs.StringVar(&cipherName, "cipher", "", "only show runs for this cipher display name")
	fs.IntVar(&limit, "limit", history.DefaultLimit, "maximum number of runs to show")
	fs.StringVar(&runID, "id", "", "print the stored report document of one run")
	fs.StringVar(&markdown, "markdown", "", "render a Markdown trend summary to this path")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if dbPath == "" {
		cfg, err := loadConfig(configPath)
		if err != nil {
			fmt.Fprintf(stderr, "load config: %v\n", err)
			return 1
		}
		dbPath = cfg.History.Path
	}

	store, err := history.Open(dbPath)
	if err != nil {
		fmt.Fprintf(stderr, "open history: %v\n", err)
		return 1
	}
	defer func() {
		_ = store.Close()
	}()

	ctx := context.Background()
	if runID != "" {
		rec, err := store.Get(ctx, runID)
		if err != nil {
			fmt.Fprintf(stderr, "load run %s: %v\n", runID, err)
			return 1
		}
		fmt.Fprintln(stdout, rec.Document)
		return 0
	}

	records, err := store.Recent(ctx, cipherName, limit)
	if err != nil {
		fmt.Fprintf(stderr, "query history: %v\n", err)
		return 1
	}
	printHistory(stdout, records)

	if markdown != "" {
		if err := history.SaveMarkdown(markdown, records); err != nil {
			fmt.Fprintf(stderr, "write history markdown: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "Rendered history markdown to %s\n", markdown)
	}
	return 0
}

func printHistory(w io.Writer, records []history.Record) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No audits recorded.")
		return
	}
	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "Run\tWhen\tCipher\tAvalanche\tLatency (ms)\tPeak (KB)\tAttack\n")
	for _, rec := range records {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%.2f%%\t%.4f\t%.2f\t%s\n",
			rec.ID,
			rec.CreatedAt.UTC().Format(time.RFC3339),
			rec.CipherName,
			rec.Avalanche,
			rec.LatencyMs,
			rec.PeakMemoryKb,
			rec.Attack,
		)
	}
	_ = writer.Flush()
}
