package history

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// SaveMarkdown renders records as Markdown to path.
func SaveMarkdown(path string, records []Record) error {
	summary := RenderMarkdown(records)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(summary), 0o644)
}

// RenderMarkdown converts the supplied runs into a Markdown report with
// per-cipher sparklines for avalanche score, latency and peak memory.
func RenderMarkdown(records []Record) string {
	if len(records) == 0 {
		return "# Audit history\n\n_No audits recorded yet._\n"
	}
	grouped := make(map[string][]Record)
	for _, rec := range records {
		grouped[rec.CipherName] = append(grouped[rec.CipherName], rec)
	}
	names := make([]string, 0, len(grouped))
	for name := range grouped {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	fmt.Fprintf(&b, "# Audit history\n\nGenerated %s with %d runs.\n\n", time.Now().UTC().Format(time.RFC3339), len(records))
	for _, name := range names {
		runs := grouped[name]
		sort.Slice(runs, func(i, j int) bool { return runs[i].CreatedAt.Before(runs[j].CreatedAt) })
		avalanche := make([]float64, 0, len(runs))
		latency := make([]float64, 0, len(runs))
		memory := make([]float64, 0, len(runs))
		for _, rec := range runs {
			avalanche = append(avalanche, rec.Avalanche)
			latency = append(latency, rec.LatencyMs)
			memory = append(memory, rec.PeakMemoryKb)
		}
		fmt.Fprintf(&b, "## %s\n\n", name)
		fmt.Fprintf(&b, "Avalanche (%%): `%s`\n\n", sparkline(avalanche))
		fmt.Fprintf(&b, "Latency (ms): `%s`\n\n", sparkline(latency))
		fmt.Fprintf(&b, "Peak memory (KB): `%s`\n\n", sparkline(memory))
		fmt.Fprintf(&b, "| Timestamp | Run | Avalanche | Latency (ms) | Peak memory (KB) | Attack |\n")
		fmt.Fprintf(&b, "| --- | --- | --- | --- | --- | --- |\n")
		for i := len(runs) - 1; i >= 0 && i >= len(runs)-10; i-- {
			rec := runs[i]
			fmt.Fprintf(&b, "| %s | %s | %.2f%% | %.4f | %.2f | %s |\n",
				rec.CreatedAt.UTC().Format(time.RFC3339),
				orDefault(rec.ID, "-"),
				rec.Avalanche,
				rec.LatencyMs,
				rec.PeakMemoryKb,
				orDefault(rec.Attack, "-"),
			)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	const charset = "▁▂▃▄▅▆▇█"
	runes := []rune(charset)
	lo := values[0]
	hi := values[0]
	for _, v := range values[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	if hi == lo {
		return strings.Repeat(string(runes[0]), len(values))
	}
	span := hi - lo
	var b strings.Builder
	for _, v := range values {
		idx := int((v - lo) / span * float64(len(runes)-1))
		idx = max(0, min(idx, len(runes)-1))
		b.WriteRune(runes[idx])
	}
	return b.String()
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
