package perf

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/RowanDark/cipherscore/internal/cipher"
	"github.com/RowanDark/cipherscore/internal/cipher/builtin"
)

type countingCipher struct {
	mu    sync.Mutex
	calls int
	buf   int
}

func (*countingCipher) Name() string { return "counting" }

func (c *countingCipher) Encrypt(p, _ []byte) ([]byte, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	out := make([]byte, len(p)+c.buf)
	copy(out, p)
	return out, nil
}

func (*countingCipher) Decrypt(p, _ []byte) ([]byte, error) { return p, nil }

type failingCipher struct{ after int }

func (*failingCipher) Name() string { return "failing" }

func (f *failingCipher) Encrypt(p, _ []byte) ([]byte, error) {
	if f.after == 0 {
		return nil, errors.New("hardware fault")
	}
	f.after--
	return p, nil
}

func (*failingCipher) Decrypt(p, _ []byte) ([]byte, error) { return p, nil }

func TestMeasureInvokesEncryptExactly(t *testing.T) {
	c := &countingCipher{}
	m, err := NewProfiler().Measure(context.Background(), c, []byte("Hello World Data"), []byte("0123456789abcdef"), 1000)
	require.NoError(t, err)
	require.Equal(t, 1000, c.calls)
	require.Equal(t, 1000, m.Iterations)
	require.GreaterOrEqual(t, m.LatencyMs, 0.0)
	require.GreaterOrEqual(t, m.PeakMemoryKb, 0.0)
	require.GreaterOrEqual(t, m.AllocatedKb, 0.0)
	require.False(t, math.IsNaN(m.LatencyMs) || math.IsInf(m.LatencyMs, 0))
}

func TestMeasureUsesInjectedClock(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	ticks := 0
	p := &Profiler{now: func() time.Time {
		ticks++
		if ticks == 1 {
			return base
		}
		return base.Add(2 * time.Second)
	}}
	m, err := p.Measure(context.Background(), &countingCipher{}, []byte{1}, nil, 1000)
	require.NoError(t, err)
	require.Equal(t, 2*time.Second, m.Duration)
	require.InDelta(t, 2.0, m.LatencyMs, 1e-9)
}

func TestMeasureLatencyIsStableAcrossIterationCounts(t *testing.T) {
	reg := builtin.NewRegistry()
	c, err := reg.Resolve("speck")
	require.NoError(t, err)

	plaintext := []byte("Hello World Data")
	key := []byte("0123456789abcdef")
	p := NewProfiler()
	short, err := p.Measure(context.Background(), c, plaintext, key, 10000)
	require.NoError(t, err)
	long, err := p.Measure(context.Background(), c, plaintext, key, 20000)
	require.NoError(t, err)

	require.Positive(t, short.LatencyMs)
	require.Positive(t, long.LatencyMs)
	ratio := short.LatencyMs / long.LatencyMs
	require.Less(t, ratio, 10.0)
	require.Greater(t, ratio, 0.1)
}

func TestMeasureObservesHeapGrowth(t *testing.T) {
	c := &countingCipher{buf: 64 << 10}
	m, err := NewProfiler().Measure(context.Background(), c, make([]byte, 16), nil, 256)
	require.NoError(t, err)
	require.Greater(t, m.AllocatedKb, 0.0)
	require.Greater(t, m.AllocsPerOp, 0.0)
}

func TestMeasureRejectsInvalidInput(t *testing.T) {
	p := NewProfiler()
	_, err := p.Measure(context.Background(), &countingCipher{}, nil, nil, 0)
	require.Error(t, err)
	_, err = p.Measure(context.Background(), &countingCipher{}, nil, nil, -5)
	require.Error(t, err)
	_, err = p.Measure(context.Background(), nil, nil, nil, 10)
	require.Error(t, err)
}

func TestMeasureAbortsOnCipherFault(t *testing.T) {
	_, err := NewProfiler().Measure(context.Background(), &failingCipher{after: 10}, []byte{1}, nil, 100)
	var fault *cipher.RuntimeFault
	require.ErrorAs(t, err, &fault)
	require.Equal(t, cipher.CategoryFault, cipher.CategoryOf(err))
}

func TestMeasureHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewProfiler().Measure(ctx, &countingCipher{}, []byte{1}, nil, 1000)
	require.ErrorIs(t, err, context.Canceled)
}

func TestSafeDifference(t *testing.T) {
	require.Equal(t, 0.0, safeDifference(0, 5))
	require.Equal(t, 3.0, safeDifference(3, 0))
	require.Equal(t, 0.0, safeDifference(2, 5))
	require.Equal(t, 2.0, safeDifference(7, 5))
}
