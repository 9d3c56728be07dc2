package patch

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inlay-dev/inlay/pkg/buffer"
	"github.com/inlay-dev/inlay/pkg/conflict"
	"github.com/inlay-dev/inlay/pkg/events"
	"github.com/inlay-dev/inlay/pkg/inject"
	"github.com/inlay-dev/inlay/pkg/llm"
)

const goSource = `package main

func old() {
	return
}`

func newTestManager() (*Manager, *buffer.Set) {
	set := buffer.NewSet()
	return NewManager(set, events.NewBus(), nil), set
}

func openBuffer(set *buffer.Set, name, text string) *buffer.Buffer {
	buf := buffer.New(name, text)
	set.Add(buf)
	return buf
}

func promptEvent(prompt string, src *buffer.Buffer, targetPath string) *events.PromptEvent {
	ev := events.NewPromptEvent(prompt, src, targetPath)
	ev.Language = "go"
	return ev
}

func TestCreateSearchReplaceBlocksAreAuthoritative(t *testing.T) {
	m, set := newTestManager()
	buf := openBuffer(set, "main.go", goSource)

	ev := promptEvent("fix the bug", buf, "main.go")
	ev.Override = &events.Override{Strategy: inject.StrategyInsert, Range: &buffer.Range{StartLine: 1, EndLine: 1}}

	code := "<<<<<<< SEARCH\n\treturn\n=======\n\treturn nil\n>>>>>>> REPLACE"
	p := m.Create(ev, code, 0.9, "ollama")

	assert.True(t, p.UseSearchReplace)
	assert.Equal(t, inject.StrategySearchReplace, p.Strategy)
	assert.Len(t, p.Blocks, 1)
}

func TestCreateOverrideBeatsIntent(t *testing.T) {
	m, set := newTestManager()
	buf := openBuffer(set, "main.go", goSource)

	ev := promptEvent("fix the bug", buf, "main.go")
	ev.ScopeRange = &buffer.Range{StartLine: 3, EndLine: 5}
	ev.Override = &events.Override{Strategy: inject.StrategyInsert, Range: &buffer.Range{StartLine: 2, EndLine: 2}}

	p := m.Create(ev, "// hi", 0.9, "ollama")
	assert.Equal(t, inject.StrategyInsert, p.Strategy)
	assert.Equal(t, 2, p.Range.StartLine)
}

func TestCreateInlineTagReplacesItsOwnLines(t *testing.T) {
	m, set := newTestManager()
	buf := openBuffer(set, "main.go", "package main\n\n/@ fix this @/\n")

	ev := promptEvent("fix this", buf, "main.go")
	ev.TagRange = &buffer.Range{StartLine: 3, EndLine: 3}

	p := m.Create(ev, "func fixed() {}", 0.8, "ollama")
	assert.Equal(t, inject.StrategyReplace, p.Strategy)
	require.NotNil(t, p.Range)
	assert.Equal(t, 3, p.Range.StartLine)
	assert.True(t, p.IsInlinePrompt)
}

func TestCreateIntentDrivesStrategy(t *testing.T) {
	m, set := newTestManager()
	openBuffer(set, "main.go", goSource)

	ev := promptEvent("fix the bug in this function", nil, "main.go")
	ev.ScopeRange = &buffer.Range{StartLine: 3, EndLine: 5}
	p := m.Create(ev, "func fixed() {\n}", 0.8, "ollama")
	assert.Equal(t, inject.StrategyReplace, p.Strategy)
	assert.Equal(t, 3, p.Range.StartLine)

	ev2 := promptEvent("helper routines please", nil, "main.go")
	p2 := m.Create(ev2, "func helper() {}", 0.5, "ollama")
	assert.Equal(t, inject.StrategyAppend, p2.Strategy)
	assert.Nil(t, p2.Range)
}

func TestIsStaleToleratesCounterOnlyBumps(t *testing.T) {
	m, set := newTestManager()
	buf := openBuffer(set, "main.go", goSource)

	ev := promptEvent("fix the bug", nil, "main.go")
	ev.ScopeRange = &buffer.Range{StartLine: 3, EndLine: 5}
	p := m.Create(ev, "func fixed() {\n}", 0.8, "ollama")

	buf.Touch()
	assert.False(t, m.IsStale(p), "counter bump without content change is not staleness")

	buf.AppendLines([]string{"", "// trailing comment"})
	assert.False(t, m.IsStale(p), "edits outside the range are not staleness")

	buf.SetLines(2, 3, []string{"func renamed() {"})
	assert.True(t, m.IsStale(p))
}

func TestApplySafetyGateDefersWithoutMutation(t *testing.T) {
	m, set := newTestManager()
	buf := openBuffer(set, "main.go", goSource)
	before := buf.Text()

	ev := promptEvent("fix the bug", nil, "main.go")
	ev.ScopeRange = &buffer.Range{StartLine: 3, EndLine: 5}
	p := m.Create(ev, "func fixed() {\n}", 0.8, "ollama")

	buf.SetMode(buffer.Mode{Insert: true})
	err := m.Apply(p)
	assert.ErrorIs(t, err, ErrUserTyping)
	assert.Equal(t, StatusPending, p.Status)
	assert.Equal(t, before, buf.Text())

	buf.SetMode(buffer.Mode{})
	require.NoError(t, m.Apply(p))
	assert.Equal(t, StatusApplied, p.Status)
	assert.Contains(t, buf.Text(), "func fixed()")
}

func TestApplyFollowsMarksThroughEditsAbove(t *testing.T) {
	m, set := newTestManager()
	buf := openBuffer(set, "main.go", goSource)

	ev := promptEvent("fix the bug", nil, "main.go")
	ev.ScopeRange = &buffer.Range{StartLine: 3, EndLine: 5}
	p := m.Create(ev, "func fixed() {\n\treturn\n}", 0.8, "ollama")

	// Edits above the region shift it but must not invalidate the patch.
	buf.InsertLines(2, []string{"// preamble", "// more"})

	require.NoError(t, m.Apply(p))
	text := buf.Text()
	assert.Contains(t, text, "// preamble")
	assert.Contains(t, text, "func fixed()")
	assert.NotContains(t, text, "func old()")
}

func TestApplyGoesStaleWhenRegionEdited(t *testing.T) {
	m, set := newTestManager()
	buf := openBuffer(set, "main.go", goSource)

	ev := promptEvent("fix the bug", nil, "main.go")
	ev.ScopeRange = &buffer.Range{StartLine: 3, EndLine: 5}
	p := m.Create(ev, "func fixed() {\n}", 0.8, "ollama")

	buf.SetLines(2, 3, []string{"func renamed() {"})

	err := m.Apply(p)
	assert.ErrorIs(t, err, ErrStale)
	assert.Equal(t, StatusStale, p.Status)
	assert.NotContains(t, buf.Text(), "func fixed()")

	// Terminal states absorb: a later apply is a no-op.
	assert.NoError(t, m.Apply(p))
	assert.Equal(t, StatusStale, p.Status)
}

func TestApplySearchReplaceEditsInPlace(t *testing.T) {
	m, set := newTestManager()
	buf := openBuffer(set, "main.go", goSource)

	ev := promptEvent("fix the bug", nil, "main.go")
	code := "<<<<<<< SEARCH\n\treturn\n=======\n\treturn nil\n>>>>>>> REPLACE"
	p := m.Create(ev, code, 0.9, "ollama")

	require.NoError(t, m.Apply(p))
	assert.Contains(t, buf.Text(), "return nil")
	assert.NotContains(t, buf.Text(), "<<<<<<<")
}

func TestApplyFallsBackToReplacementText(t *testing.T) {
	m, set := newTestManager()
	buf := openBuffer(set, "main.go", goSource)

	ev := promptEvent("fix the bug", nil, "main.go")
	code := "<<<<<<< SEARCH\nno such line anywhere\n=======\nfunc recovered() {}\n>>>>>>> REPLACE"
	p := m.Create(ev, code, 0.9, "ollama")

	require.NoError(t, m.Apply(p))
	text := buf.Text()
	assert.Contains(t, text, "func recovered()")
	assert.NotContains(t, text, "<<<<<<<", "unresolved markers must never reach the buffer")
	assert.NotContains(t, text, "no such line anywhere")
}

func TestApplyRemovesInlineTag(t *testing.T) {
	m, set := newTestManager()
	buf := openBuffer(set, "main.go", "package main\n\n/@ fix this @/\n")

	ev := promptEvent("fix this", buf, "main.go")
	ev.TagRange = &buffer.Range{StartLine: 3, EndLine: 3}
	p := m.Create(ev, "func fixed() {}", 0.8, "ollama")

	require.NoError(t, m.Apply(p))
	text := buf.Text()
	assert.Contains(t, text, "func fixed()")
	assert.NotContains(t, text, "/@")
	assert.NotContains(t, text, "@/")
}

func TestApplyRemovesCompanionTagFromSource(t *testing.T) {
	m, set := newTestManager()
	src := openBuffer(set, "main.go.coder", "/@ polish the formatting @/\n")
	target := openBuffer(set, "main.go", goSource)

	ev := promptEvent("polish the formatting", src, "main.go")
	p := m.Create(ev, "func polished() {}", 0.7, "ollama")

	require.NoError(t, m.Apply(p))
	assert.NotContains(t, src.Text(), "/@")
	assert.Contains(t, target.Text(), "func polished()")
}

func TestApplyRejectsUnloadableTarget(t *testing.T) {
	m, _ := newTestManager()

	ev := promptEvent("fix the bug", nil, "/nonexistent/nope.go")
	p := m.Create(ev, "func fixed() {}", 0.8, "ollama")

	err := m.Apply(p)
	assert.ErrorIs(t, err, ErrBufferNotFound)
	assert.Equal(t, StatusRejected, p.Status)
}

func TestApplyRecordsProviderOutcome(t *testing.T) {
	m, set := newTestManager()
	openBuffer(set, "main.go", goSource)
	store := llm.NewMemoryStats()
	m.Stats = llm.NewAccuracyStats(store)

	ev := promptEvent("helper routines please", nil, "main.go")
	p := m.Create(ev, "func helper() {}", 0.5, "ollama")
	require.NoError(t, m.Apply(p))

	acc, err := store.ProviderAccuracy("ollama")
	require.NoError(t, err)
	assert.Equal(t, 1.0, acc)
}

func TestFlushDefersThenApplies(t *testing.T) {
	m, set := newTestManager()
	buf := openBuffer(set, "main.go", goSource)

	ev := promptEvent("helper routines please", nil, "main.go")
	m.Create(ev, "func helper() {}", 0.5, "ollama")

	buf.SetMode(buffer.Mode{PopupVisible: true})
	c := m.Flush()
	assert.Equal(t, Counts{Deferred: 1}, c)

	buf.SetMode(buffer.Mode{})
	c = m.Flush()
	assert.Equal(t, Counts{Applied: 1}, c)

	// Idempotent: terminal patches are not re-applied.
	assert.Equal(t, Counts{}, m.Flush())
	assert.Equal(t, 1, strings.Count(buf.Text(), "func helper()"))
}

func TestCancelBufferLeavesDocumentUntouched(t *testing.T) {
	m, set := newTestManager()
	buf := openBuffer(set, "main.go", goSource)
	before := buf.Text()

	ev := promptEvent("helper routines please", nil, "main.go")
	p := m.Create(ev, "func helper() {}", 0.5, "ollama")

	assert.Equal(t, 1, m.CancelBuffer(buf))
	assert.Equal(t, StatusCancelled, p.Status)
	assert.Equal(t, before, buf.Text())
	assert.Equal(t, Counts{}, m.Flush())
}

func TestGCDropsOldTerminalPatches(t *testing.T) {
	m, set := newTestManager()
	buf := openBuffer(set, "main.go", goSource)

	ev := promptEvent("helper routines please", nil, "main.go")
	p := m.Create(ev, "func helper() {}", 0.5, "ollama")
	m.CancelBuffer(buf)
	p.FinishedAt = time.Now().Add(-time.Hour)

	pending := m.Create(promptEvent("more helpers please", nil, "main.go"), "func more() {}", 0.5, "ollama")

	assert.Equal(t, 1, m.GC(10*time.Minute))
	_, ok := m.Get(p.ID)
	assert.False(t, ok)
	_, ok = m.Get(pending.ID)
	assert.True(t, ok, "pending patches are never collected")
}

func TestStagePlacesConflictRegion(t *testing.T) {
	m, set := newTestManager()
	buf := openBuffer(set, "main.go", goSource)
	engine := conflict.NewEngine()
	m.Conflicts = engine

	ev := promptEvent("fix the bug", nil, "main.go")
	ev.ScopeRange = &buffer.Range{StartLine: 3, EndLine: 5}
	p := m.Create(ev, "func fixed() {\n\treturn\n}", 0.8, "ollama")

	require.NoError(t, m.Stage(p))
	assert.Equal(t, StatusApplied, p.Status)

	conflicts := conflict.Detect(buf)
	require.Len(t, conflicts, 1)
	assert.Contains(t, buf.Text(), "func old()", "current side preserved verbatim")
	assert.Contains(t, buf.Text(), "func fixed()")

	engine.Resolve(buf, conflicts[0], conflict.KeepIncoming)
	assert.Contains(t, buf.Text(), "func fixed()")
	assert.NotContains(t, buf.Text(), "func old()")
	assert.NotContains(t, buf.Text(), conflict.MarkerCurrent)
}

func TestStageSearchReplaceBlocksBecomeConflicts(t *testing.T) {
	m, set := newTestManager()
	buf := openBuffer(set, "main.go", goSource)
	m.Conflicts = conflict.NewEngine()

	ev := promptEvent("fix the bug", nil, "main.go")
	code := "<<<<<<< SEARCH\n\treturn\n=======\n\treturn nil\n>>>>>>> REPLACE"
	p := m.Create(ev, code, 0.9, "ollama")

	require.NoError(t, m.Stage(p))
	conflicts := conflict.Detect(buf)
	require.Len(t, conflicts, 1)
	assert.Contains(t, buf.Text(), "\treturn nil")
}

func TestApplyPublishesEvents(t *testing.T) {
	m, set := newTestManager()
	openBuffer(set, "main.go", goSource)
	ch := m.Bus.Subscribe("test")

	ev := promptEvent("helper routines please", nil, "main.go")
	p := m.Create(ev, "func helper() {}", 0.5, "ollama")
	require.NoError(t, m.Apply(p))

	select {
	case e := <-ch:
		assert.Equal(t, events.TypePatchApplied, e.Type)
	default:
		t.Fatal("no event published")
	}
}
