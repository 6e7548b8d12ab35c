package history

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSaveAndGet(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	saved, err := store.Save(ctx, Record{
		CipherID:     "speck",
		CipherName:   "Speck64/128",
		Avalanche:    49.87,
		LatencyMs:    0.0012,
		PeakMemoryKb: 0.25,
		Attack:       "Strong (Simulation)",
		Rounds:       1000,
		Document:     `{"Avalanche Score":"49.87%"}`,
		CreatedAt:    created,
	})
	require.NoError(t, err)
	require.Len(t, saved.ID, 26)

	got, err := store.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, got.ID)
	assert.Equal(t, "speck", got.CipherID)
	assert.Equal(t, 49.87, got.Avalanche)
	assert.Equal(t, 1000, got.Rounds)
	assert.Equal(t, `{"Avalanche Score":"49.87%"}`, got.Document)
	assert.True(t, created.Equal(got.CreatedAt))
}

func TestGetMissing(t *testing.T) {
	store := openTestStore(t)
	_, err := store.Get(context.Background(), "01HZZZZZZZZZZZZZZZZZZZZZZZ")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSaveRequiresCipherName(t *testing.T) {
	store := openTestStore(t)
	_, err := store.Save(context.Background(), Record{CipherID: "xor"})
	require.Error(t, err)
}

func TestRecentOrdersNewestFirstAndFilters(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := range 5 {
		_, err := store.Save(ctx, Record{CipherID: "xor", CipherName: "XOR", Avalanche: float64(i), CreatedAt: base.Add(time.Duration(i) * time.Hour)})
		require.NoError(t, err)
	}
	// Sub-second timestamps must still sort correctly against whole seconds.
	_, err := store.Save(ctx, Record{CipherID: "aes", CipherName: "AES-128", Avalanche: 50, CreatedAt: base.Add(500 * time.Millisecond)})
	require.NoError(t, err)
	_, err = store.Save(ctx, Record{CipherID: "aes", CipherName: "AES-128", Avalanche: 49, CreatedAt: base})
	require.NoError(t, err)

	xor, err := store.Recent(ctx, "XOR", 3)
	require.NoError(t, err)
	require.Len(t, xor, 3)
	assert.Equal(t, []float64{4, 3, 2}, []float64{xor[0].Avalanche, xor[1].Avalanche, xor[2].Avalanche})

	aes, err := store.Recent(ctx, "AES-128", 0)
	require.NoError(t, err)
	require.Len(t, aes, 2)
	assert.Equal(t, 50.0, aes[0].Avalanche)

	all, err := store.Recent(ctx, "", 100)
	require.NoError(t, err)
	assert.Len(t, all, 7)
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := Open("  ")
	require.Error(t, err)
}

func TestRenderMarkdown(t *testing.T) {
	base := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	records := []Record{
		{ID: "b", CipherName: "XOR", Avalanche: 1.6, LatencyMs: 0.001, CreatedAt: base.Add(time.Hour), Attack: "Strong (Simulation)"},
		{ID: "a", CipherName: "XOR", Avalanche: 1.5, LatencyMs: 0.002, CreatedAt: base},
		{ID: "c", CipherName: "AES-128", Avalanche: 50.1, CreatedAt: base},
	}
	md := RenderMarkdown(records)
	for _, want := range []string{"# Audit history", "## AES-128", "## XOR", "| b |", "1.60%", "Strong (Simulation)"} {
		assert.Contains(t, md, want)
	}
	assert.Less(t, strings.Index(md, "## AES-128"), strings.Index(md, "## XOR"))
	// newest run is listed first in each table
	assert.Less(t, strings.Index(md, "| b |"), strings.Index(md, "| a |"))

	path := filepath.Join(t.TempDir(), "out", "history.md")
	require.NoError(t, SaveMarkdown(path, records))
}

func TestRenderMarkdownEmpty(t *testing.T) {
	assert.Contains(t, RenderMarkdown(nil), "No audits recorded yet")
}

func TestSparkline(t *testing.T) {
	line := sparkline([]float64{1, 2, 3, 4})
	require.Equal(t, 4, utf8.RuneCountInString(line))
	assert.Equal(t, '▁', []rune(line)[0])
	assert.Equal(t, '█', []rune(line)[3])
	assert.Equal(t, "▁▁", sparkline([]float64{5, 5}))
	assert.Empty(t, sparkline(nil))
}
