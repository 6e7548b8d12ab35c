package perf

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Summary holds the headline figures of one audit run, as rendered in an audit
// document.
type Summary struct {
	Cipher              string  `json:"cipher"`
	AvalanchePercentage float64 `json:"avalanche_percentage"`
	LatencyMs           float64 `json:"latency_ms"`
	PeakMemoryKb        float64 `json:"peak_memory_kb"`
	Attack              string  `json:"attack"`
}

// MetricDelta summarises the difference between the baseline and a fresh run for
// a single metric.
type MetricDelta struct {
	Cipher        string  `json:"cipher"`
	Metric        string  `json:"metric"`
	Units         string  `json:"units"`
	Baseline      float64 `json:"baseline"`
	Current       float64 `json:"current"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
	BetterWhen    string  `json:"better_when"`
	Regression    bool    `json:"regression"`
	Threshold     float64 `json:"threshold"`
}

// DiffResult contains the computed deltas and indicates whether regressions
// were observed.
type DiffResult struct {
	Threshold   float64       `json:"threshold"`
	Deltas      []MetricDelta `json:"deltas"`
	Regressions []MetricDelta `json:"regressions"`
	// AttackChanged is set when the attack classification differs between runs.
	AttackChanged bool `json:"attack_changed"`
}

// HasRegressions reports whether any metric breached the supplied threshold.
func (d DiffResult) HasRegressions() bool {
	return len(d.Regressions) > 0
}

// RenderText returns a human-readable summary suitable for CI logs.
func (d DiffResult) RenderText() string {
	if len(d.Deltas) == 0 {
		return "No comparable metrics found between baseline and current run.\n"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Performance diff (threshold %.1f%%)\n", d.Threshold*100)
	current := ""
	for _, delta := range d.Deltas {
		if delta.Cipher != current {
			current = delta.Cipher
			fmt.Fprintf(&sb, "%s:\n", orDefault(current, "-"))
		}
		status := "OK"
		if delta.Regression {
			status = "REGRESSION"
		}
		fmt.Fprintf(&sb, "  • %s: %.4f %s → %.4f %s (%+.2f%%) [%s]\n",
			delta.Metric,
			delta.Baseline,
			delta.Units,
			delta.Current,
			delta.Units,
			delta.ChangePercent,
			status,
		)
	}
	if d.AttackChanged {
		sb.WriteString("  • attack classification changed\n")
	}
	return sb.String()
}

// Compare computes the metric deltas between a baseline audit and the current
// one. Latency and peak memory are better when lower; the avalanche score is
// compared by its distance from the 50% ideal.
func Compare(baseline, current Summary, threshold float64) DiffResult {
	if threshold < 0 || math.IsNaN(threshold) {
		threshold = 0
	}
	name := current.Cipher
	if name == "" {
		name = baseline.Cipher
	}
	deltas := []MetricDelta{
		makeDelta(name, "latency_ms", "ms", "lower", baseline.LatencyMs, current.LatencyMs, threshold),
		makeDelta(name, "peak_memory_kb", "KB", "lower", baseline.PeakMemoryKb, current.PeakMemoryKb, threshold),
		avalancheDelta(name, baseline.AvalanchePercentage, current.AvalanchePercentage, threshold),
	}
	sort.Slice(deltas, func(i, j int) bool { return deltas[i].Metric < deltas[j].Metric })
	regressions := make([]MetricDelta, 0)
	for _, delta := range deltas {
		if delta.Regression {
			regressions = append(regressions, delta)
		}
	}
	return DiffResult{
		Threshold:     threshold,
		Deltas:        deltas,
		Regressions:   regressions,
		AttackChanged: baseline.Attack != "" && current.Attack != "" && baseline.Attack != current.Attack,
	}
}

// avalancheDelta compares |score-50| in percentage points. A drift larger than
// threshold×50 points is a regression.
func avalancheDelta(cipherName string, base, curr, threshold float64) MetricDelta {
	b := math.Abs(base - 50)
	c := math.Abs(curr - 50)
	delta := MetricDelta{
		Cipher:     cipherName,
		Metric:     "avalanche_distance",
		Units:      "pp",
		Baseline:   b,
		Current:    c,
		BetterWhen: "lower",
		Threshold:  threshold,
		Change:     c - b,
	}
	if b != 0 {
		delta.ChangePercent = ((c - b) / b) * 100
	}
	delta.Regression = c > b+math.Max(0.01, threshold*50)
	return delta
}

func makeDelta(cipherName, metric, units, betterWhen string, base, curr, threshold float64) MetricDelta {
	delta := MetricDelta{
		Cipher:     cipherName,
		Metric:     metric,
		Units:      units,
		Baseline:   base,
		Current:    curr,
		BetterWhen: betterWhen,
		Threshold:  threshold,
		Change:     curr - base,
	}
	if base != 0 {
		delta.ChangePercent = ((curr - base) / base) * 100
	}
	switch betterWhen {
	case "higher":
		if base > 0 {
			delta.Regression = curr < base*(1-threshold)
		}
	case "lower":
		if base > 0 {
			delta.Regression = curr > base*(1+threshold)
		} else {
			// No baseline yet: treat any increase beyond the threshold as a regression.
			delta.Regression = curr > threshold
		}
	}
	return delta
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
