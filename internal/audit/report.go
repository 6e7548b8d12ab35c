package audit

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/RowanDark/cipherscore/internal/attack"
	"github.com/RowanDark/cipherscore/internal/avalanche"
	"github.com/RowanDark/cipherscore/internal/perf"
)

// Document keys, in rendering order.
const (
	KeyAvalanche = "Avalanche Score"
	KeySpeed     = "Encryption Speed (ms)"
	KeyMemory    = "Peak Memory (KB)"
	KeyAttack    = "Attack Status"
)

// Report is the immutable result of one run.
type Report struct {
	ID                   string                `json:"id"`
	CipherName           string                `json:"cipher_name"`
	AvalanchePercentage  float64               `json:"avalanche_percentage"`
	LatencyMs            float64               `json:"latency_ms"`
	PeakMemoryKb         float64               `json:"peak_memory_kb"`
	AttackClassification attack.Classification `json:"attack_classification"`

	Avalanche   avalanche.Result `json:"avalanche"`
	Performance perf.Measurement `json:"performance"`
	Attack      attack.Result    `json:"attack"`

	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Fields returns the formatted report values keyed by document key.
func (r Report) Fields() map[string]string {
	return map[string]string{
		KeyAvalanche: fmt.Sprintf("%.2f%%", r.AvalanchePercentage),
		KeySpeed:     fmt.Sprintf("%.4f ms", r.LatencyMs),
		KeyMemory:    fmt.Sprintf("%.2f KB", r.PeakMemoryKb),
		KeyAttack:    r.AttackClassification.String(),
	}
}

// Document renders the four-field report as a JSON object with keys in a
// stable order.
func (r Report) Document() ([]byte, error) {
	fields := r.Fields()
	doc := []byte(`{}`)
	var err error
	for _, key := range []string{KeyAvalanche, KeySpeed, KeyMemory, KeyAttack} {
		doc, err = sjson.SetBytes(doc, key, fields[key])
		if err != nil {
			return nil, fmt.Errorf("render %q: %w", key, err)
		}
	}
	return doc, nil
}

// Summary projects the report onto the fields used for baseline comparison.
func (r Report) Summary() perf.Summary {
	return perf.Summary{
		Cipher:              r.CipherName,
		AvalanchePercentage: r.AvalanchePercentage,
		LatencyMs:           r.LatencyMs,
		PeakMemoryKb:        r.PeakMemoryKb,
		Attack:              r.AttackClassification.String(),
	}
}

// Summary is the comparable subset of a rendered document.
type Summary = perf.Summary

// ParseDocument reads a rendered report document back into a Summary.
func ParseDocument(doc []byte) (Summary, error) {
	if !gjson.ValidBytes(doc) {
		return Summary{}, fmt.Errorf("parse report: invalid JSON")
	}
	var (
		out Summary
		err error
	)
	if out.AvalanchePercentage, err = parseField(doc, KeyAvalanche, "%"); err != nil {
		return Summary{}, err
	}
	if out.LatencyMs, err = parseField(doc, KeySpeed, "ms"); err != nil {
		return Summary{}, err
	}
	if out.PeakMemoryKb, err = parseField(doc, KeyMemory, "KB"); err != nil {
		return Summary{}, err
	}
	status := gjson.GetBytes(doc, KeyAttack)
	if !status.Exists() {
		return Summary{}, fmt.Errorf("parse report: missing %q", KeyAttack)
	}
	out.Attack = status.String()
	return out, nil
}

func parseField(doc []byte, key, unit string) (float64, error) {
	res := gjson.GetBytes(doc, key)
	if !res.Exists() {
		return 0, fmt.Errorf("parse report: missing %q", key)
	}
	raw := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(res.String()), unit))
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse report %q: %w", key, err)
	}
	return v, nil
}
