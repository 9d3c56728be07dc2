package llm

// Outcome records how a generated patch ended up.
type Outcome string

const (
	OutcomeApplied  Outcome = "applied"
	OutcomeStale    Outcome = "stale"
	OutcomeRejected Outcome = "rejected"
)

// StatsStore persists per-provider outcome counters. It is injected rather
// than module state so sessions and tests stay decoupled.
type StatsStore interface {
	RecordOutcome(provider string, outcome Outcome) error
	ProviderAccuracy(provider string) (float64, error)
}

// AccuracyStats is the explicitly-owned statistics object the selection
// logic consults.
type AccuracyStats struct {
	store StatsStore
}

// NewAccuracyStats wraps a store.
func NewAccuracyStats(store StatsStore) *AccuracyStats {
	return &AccuracyStats{store: store}
}

// Record logs one outcome for a provider. Failures are returned for the
// caller to log; accuracy tracking never blocks the apply path.
func (a *AccuracyStats) Record(provider string, outcome Outcome) error {
	if a == nil || a.store == nil {
		return nil
	}
	return a.store.RecordOutcome(provider, outcome)
}

// Select returns the provider with the best recorded accuracy, defaulting
// to the first when no history exists.
func (a *AccuracyStats) Select(providers []Provider) Provider {
	if len(providers) == 0 {
		return nil
	}
	best := providers[0]
	if a == nil || a.store == nil {
		return best
	}
	bestAcc := -1.0
	for _, p := range providers {
		acc, err := a.store.ProviderAccuracy(p.Name())
		if err != nil {
			continue
		}
		if acc > bestAcc {
			bestAcc = acc
			best = p
		}
	}
	return best
}

// memoryStats is an in-memory StatsStore for tests and stateless runs.
type memoryStats struct {
	applied map[string]int
	total   map[string]int
}

// NewMemoryStats creates a throwaway in-memory stats store.
func NewMemoryStats() StatsStore {
	return &memoryStats{applied: map[string]int{}, total: map[string]int{}}
}

func (m *memoryStats) RecordOutcome(provider string, outcome Outcome) error {
	m.total[provider]++
	if outcome == OutcomeApplied {
		m.applied[provider]++
	}
	return nil
}

func (m *memoryStats) ProviderAccuracy(provider string) (float64, error) {
	total := m.total[provider]
	if total == 0 {
		return 0, nil
	}
	return float64(m.applied[provider]) / float64(total), nil
}
