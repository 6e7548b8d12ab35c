package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RowanDark/cipherscore/internal/attack"
)

func TestDocumentFormatsAndOrdersFields(t *testing.T) {
	rep := Report{
		CipherName:           "Speck",
		AvalanchePercentage:  49.876,
		LatencyMs:            0.00123,
		PeakMemoryKb:         2.5,
		AttackClassification: attack.Strong,
	}
	doc, err := rep.Document()
	require.NoError(t, err)
	assert.Equal(t,
		`{"Avalanche Score":"49.88%","Encryption Speed (ms)":"0.0012 ms","Peak Memory (KB)":"2.50 KB","Attack Status":"Strong (Simulation)"}`,
		string(doc))
}

func TestParseDocumentRoundTrip(t *testing.T) {
	rep := Report{CipherName: "XOR", AvalanchePercentage: 1.5625, LatencyMs: 0.0004, PeakMemoryKb: 0, AttackClassification: attack.Skipped}
	doc, err := rep.Document()
	require.NoError(t, err)

	sum, err := ParseDocument(doc)
	require.NoError(t, err)
	assert.InDelta(t, 1.56, sum.AvalanchePercentage, 1e-9)
	assert.InDelta(t, 0.0004, sum.LatencyMs, 1e-9)
	assert.Equal(t, 0.0, sum.PeakMemoryKb)
	assert.Equal(t, "Skipped (Lib not found)", sum.Attack)

	full := rep.Summary()
	assert.Equal(t, "XOR", full.Cipher)
	assert.Equal(t, 1.5625, full.AvalanchePercentage)
}

func TestParseDocumentErrors(t *testing.T) {
	cases := map[string]string{
		"invalid json":   `{"Avalanche Score":`,
		"missing field":  `{"Avalanche Score":"1.00%","Encryption Speed (ms)":"1.0000 ms","Peak Memory (KB)":"1.00 KB"}`,
		"bad number":     `{"Avalanche Score":"high%","Encryption Speed (ms)":"1.0000 ms","Peak Memory (KB)":"1.00 KB","Attack Status":"Weak (Simulation)"}`,
		"missing memory": `{"Avalanche Score":"1.00%","Encryption Speed (ms)":"1.0000 ms","Attack Status":"Weak (Simulation)"}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseDocument([]byte(doc))
			require.Error(t, err)
		})
	}
}
