package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct{ name string }

func (f *fakeProvider) Name() string { return f.name }
func (f *fakeProvider) Generate(ctx context.Context, req Request) (string, error) {
	return "", nil
}
func (f *fakeProvider) Validate(ctx context.Context, code, language string) (string, error) {
	return "OK", nil
}

func TestSelectPrefersAccurateProvider(t *testing.T) {
	store := NewMemoryStats()
	stats := NewAccuracyStats(store)

	require.NoError(t, stats.Record("good", OutcomeApplied))
	require.NoError(t, stats.Record("good", OutcomeApplied))
	require.NoError(t, stats.Record("bad", OutcomeApplied))
	require.NoError(t, stats.Record("bad", OutcomeStale))
	require.NoError(t, stats.Record("bad", OutcomeRejected))

	bad := &fakeProvider{name: "bad"}
	good := &fakeProvider{name: "good"}
	picked := stats.Select([]Provider{bad, good})
	assert.Equal(t, "good", picked.Name())
}

func TestSelectDefaultsToFirstWithoutHistory(t *testing.T) {
	stats := NewAccuracyStats(NewMemoryStats())
	a := &fakeProvider{name: "a"}
	b := &fakeProvider{name: "b"}
	assert.Equal(t, "a", stats.Select([]Provider{a, b}).Name())
}

func TestNilStatsAreSafe(t *testing.T) {
	var stats *AccuracyStats
	assert.NoError(t, stats.Record("x", OutcomeApplied))
	p := &fakeProvider{name: "only"}
	assert.Equal(t, p, stats.Select([]Provider{p}))
}
