package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RowanDark/cipherscore/internal/attack"
	"github.com/RowanDark/cipherscore/internal/avalanche"
	"github.com/RowanDark/cipherscore/internal/cipher"
	"github.com/RowanDark/cipherscore/internal/logging"
	"github.com/RowanDark/cipherscore/internal/observability/metrics"
)

type identityCipher struct{}

func (identityCipher) Name() string                        { return "Identity" }
func (identityCipher) Encrypt(p, _ []byte) ([]byte, error) { return append([]byte(nil), p...), nil }
func (identityCipher) Decrypt(c, _ []byte) ([]byte, error) { return append([]byte(nil), c...), nil }

type panickyCipher struct{}

func (panickyCipher) Name() string { return "Panicky" }
func (panickyCipher) Encrypt([]byte, []byte) ([]byte, error) {
	panic("round function overflow")
}
func (panickyCipher) Decrypt([]byte, []byte) ([]byte, error) { return nil, nil }

type stubProber struct {
	res attack.Result
	err error
}

func (s stubProber) Probe(context.Context, cipher.Cipher) (attack.Result, error) {
	return s.res, s.err
}

func fastConfig() Configuration {
	cfg := DefaultConfiguration()
	cfg.Iterations = 500
	cfg.AttackTrials = 500
	return cfg
}

func TestRunIdentityEndToEnd(t *testing.T) {
	prober, err := attack.New(attack.WithSeed(1), attack.WithTargetDelta(uint64(attack.DefaultInputDelta)))
	require.NoError(t, err)
	o := New(WithAnalyzer(avalanche.New(avalanche.WithSeed(42))), WithProber(prober))

	rep, err := o.Run(context.Background(), identityCipher{}, fastConfig())
	require.NoError(t, err)

	assert.Equal(t, "Identity", rep.CipherName)
	assert.InDelta(t, 1.5625, rep.AvalanchePercentage, 1e-9)
	assert.Equal(t, attack.Weak, rep.AttackClassification)
	assert.Equal(t, 1000, rep.Avalanche.Trials)
	for _, v := range []float64{rep.LatencyMs, rep.PeakMemoryKb} {
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
		assert.GreaterOrEqual(t, v, 0.0)
	}
	assert.Len(t, rep.ID, 26)

	doc, err := rep.Document()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(doc), `{"Avalanche Score":"1.56%","Encryption Speed (ms)":"`))
	assert.True(t, strings.HasSuffix(string(doc), `"Attack Status":"Weak (Simulation)"}`))
}

func TestRunDefaultProbeOnIdentityIsStrong(t *testing.T) {
	// The reference target difference 0x0002 never matches an identity
	// cipher, whose output difference equals the input difference 0x0001.
	rep, err := New().Run(context.Background(), identityCipher{}, fastConfig())
	require.NoError(t, err)
	assert.Equal(t, attack.Strong, rep.AttackClassification)
	assert.Equal(t, 500, rep.Attack.Trials)
}

func TestRunWithoutProberIsSkipped(t *testing.T) {
	rep, err := New(WithProber(nil)).Run(context.Background(), identityCipher{}, fastConfig())
	require.NoError(t, err)
	assert.Equal(t, attack.Skipped, rep.AttackClassification)
	assert.Equal(t, "Skipped (Lib not found)", rep.Fields()[KeyAttack])
}

func TestRunUnavailableProberIsSkipped(t *testing.T) {
	o := New(WithProber(stubProber{err: attack.ErrUnavailable}))
	rep, err := o.Run(context.Background(), identityCipher{}, fastConfig())
	require.NoError(t, err)
	assert.Equal(t, attack.Skipped, rep.AttackClassification)
}

func TestRunFailsOnProbeError(t *testing.T) {
	o := New(WithProber(stubProber{err: errors.New("probe crashed")}))
	rep, err := o.Run(context.Background(), identityCipher{}, fastConfig())
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageAttack, stageErr.Stage)
	assert.Equal(t, Report{}, rep)
}

func TestRunCipherFaultAbortsWholeRun(t *testing.T) {
	rep, err := New().Run(context.Background(), panickyCipher{}, fastConfig())
	require.Error(t, err)
	assert.Equal(t, Report{}, rep)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageAvalanche, stageErr.Stage)
	assert.Equal(t, cipher.CategoryFault, cipher.CategoryOf(err))
}

func TestRunHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Run(ctx, identityCipher{}, fastConfig())
	assert.Equal(t, cipher.CategoryCancelled, cipher.CategoryOf(err))
}

func TestRunZeroRounds(t *testing.T) {
	cfg := fastConfig()
	cfg.Rounds = 0
	rep, err := New(WithProber(nil)).Run(context.Background(), identityCipher{}, cfg)
	require.NoError(t, err)
	assert.Equal(t, 0.0, rep.AvalanchePercentage)
}

func TestRunRejectsInvalidInput(t *testing.T) {
	_, err := New().Run(context.Background(), nil, fastConfig())
	require.Error(t, err)

	cfg := fastConfig()
	cfg.Iterations = 0
	_, err = New().Run(context.Background(), identityCipher{}, cfg)
	require.Error(t, err)
}

func TestRunEmitsAuditEvents(t *testing.T) {
	buf := &bytes.Buffer{}
	journal := logging.MustOpen("test", logging.Writer(buf))
	fixed := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	o := New(WithJournal(journal), WithProber(nil), WithClock(func() time.Time { return fixed }))

	rep, err := o.Run(context.Background(), identityCipher{}, fastConfig())
	require.NoError(t, err)
	assert.Equal(t, fixed, rep.StartedAt)

	var types []logging.EventType
	var started logging.AuditEvent
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var ev logging.AuditEvent
		require.NoError(t, json.Unmarshal([]byte(line), &ev))
		assert.Equal(t, rep.ID, ev.RunID)
		assert.Equal(t, rep.CipherName, ev.Cipher)
		assert.Equal(t, "orchestrator", ev.Component)
		if ev.EventType == logging.EventAuditStarted {
			started = ev
		}
		types = append(types, ev.EventType)
	}
	assert.Equal(t, float64(len(DefaultKey)), started.Metadata["key_bytes"])
	assert.Equal(t, []logging.EventType{
		logging.EventAuditStarted,
		logging.EventStageCompleted,
		logging.EventStageCompleted,
		logging.EventProbeSkipped,
		logging.EventStageCompleted,
		logging.EventAuditCompleted,
	}, types)
	assert.NotContains(t, buf.String(), "0123456789abcdef")
}

func TestRunEmitsFailure(t *testing.T) {
	buf := &bytes.Buffer{}
	journal := logging.MustOpen("test", logging.Writer(buf))
	_, err := New(WithJournal(journal)).Run(context.Background(), panickyCipher{}, fastConfig())
	require.Error(t, err)
	assert.Contains(t, buf.String(), `"event_type":"audit_failed"`)
	assert.Contains(t, buf.String(), `"category":"cipher_fault"`)
}

func TestRunCountsOutcomes(t *testing.T) {
	before := map[string]float64{}
	for _, outcome := range []string{metrics.OutcomeCompleted, metrics.OutcomeFailed, metrics.OutcomeCancelled} {
		before[outcome] = auditCount(t, outcome)
	}

	_, err := New(WithProber(nil)).Run(context.Background(), identityCipher{}, fastConfig())
	require.NoError(t, err)
	_, err = New().Run(context.Background(), panickyCipher{}, fastConfig())
	require.Error(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = New().Run(ctx, identityCipher{}, fastConfig())
	require.Error(t, err)

	for outcome, was := range before {
		assert.Equal(t, was+1, auditCount(t, outcome), outcome)
	}
}

// auditCount reads cipherscore_audits_total for one outcome label.
func auditCount(t *testing.T, outcome string) float64 {
	t.Helper()
	families, err := metrics.Gatherer().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "cipherscore_audits_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "outcome" && lp.GetValue() == outcome {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestConfigurationValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Configuration)
		ok     bool
	}{
		{"defaults", func(*Configuration) {}, true},
		{"zero rounds", func(c *Configuration) { c.Rounds = 0 }, true},
		{"negative rounds", func(c *Configuration) { c.Rounds = -1 }, false},
		{"zero iterations", func(c *Configuration) { c.Iterations = 0 }, false},
		{"zero trials", func(c *Configuration) { c.AttackTrials = 0 }, true},
		{"negative trials", func(c *Configuration) { c.AttackTrials = -1 }, false},
		{"zero threshold", func(c *Configuration) { c.AttackThreshold = 0 }, true},
		{"negative threshold", func(c *Configuration) { c.AttackThreshold = -0.1 }, false},
		{"threshold one", func(c *Configuration) { c.AttackThreshold = 1 }, true},
		{"threshold above one", func(c *Configuration) { c.AttackThreshold = 1.01 }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfiguration()
			tc.mutate(&cfg)
			if tc.ok {
				assert.NoError(t, cfg.Validate())
			} else {
				assert.Error(t, cfg.Validate())
			}
		})
	}
}

func TestNormalizedFillsDefaults(t *testing.T) {
	cfg := Configuration{}.normalized()
	assert.Equal(t, DefaultKey, cfg.Key)
	assert.Equal(t, DefaultPlaintext, cfg.Plaintext)
	assert.Equal(t, attack.DefaultTrials, cfg.AttackTrials)
	assert.Equal(t, attack.DefaultThreshold, cfg.AttackThreshold)
	assert.Equal(t, attack.DefaultInputDelta, cfg.AttackInputDelta)
	assert.Equal(t, attack.DefaultTargetDelta, cfg.AttackTargetDelta)
}

func TestMinimalConfigurationRuns(t *testing.T) {
	cfg := Configuration{Rounds: 20, Iterations: 50}
	require.NoError(t, cfg.Validate())

	rep, err := New(WithProber(nil)).Run(context.Background(), identityCipher{}, cfg)
	require.NoError(t, err)
	assert.Equal(t, attack.Skipped, rep.AttackClassification)
}

func TestConfiguredTargetDeltaFlagsIdentity(t *testing.T) {
	cfg := fastConfig()
	cfg.Rounds = 50
	rep, err := New().Run(context.Background(), identityCipher{}, cfg)
	require.NoError(t, err)
	assert.Equal(t, attack.Strong, rep.AttackClassification)

	cfg.AttackTargetDelta = uint64(cfg.AttackInputDelta)
	rep, err = New().Run(context.Background(), identityCipher{}, cfg)
	require.NoError(t, err)
	assert.Equal(t, attack.Weak, rep.AttackClassification)
	assert.InDelta(t, 1.0, rep.Attack.Probability, 1e-9)
}
