// Package patch owns the lifecycle of generated-code patches: creating a
// candidate when a generation completes, deciding how and where it lands,
// guarding application behind safety and staleness gates, and retrying
// deferred patches on a timer. All methods must run on the engine's
// dispatch goroutine.
package patch

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/inlay-dev/inlay/pkg/buffer"
	"github.com/inlay-dev/inlay/pkg/conflict"
	"github.com/inlay-dev/inlay/pkg/events"
	"github.com/inlay-dev/inlay/pkg/inject"
	"github.com/inlay-dev/inlay/pkg/intent"
	"github.com/inlay-dev/inlay/pkg/llm"
	"github.com/inlay-dev/inlay/pkg/searchreplace"
	"github.com/inlay-dev/inlay/pkg/snapshot"
	"github.com/inlay-dev/inlay/pkg/tags"
	"github.com/inlay-dev/inlay/pkg/utils"
)

// Status is a patch's lifecycle state. Terminal states absorb: once a patch
// leaves pending it never moves again.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApplied   Status = "applied"
	StatusStale     Status = "stale"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool { return s != StatusPending }

var (
	// ErrUserTyping defers application while the target buffer is in a
	// sensitive editing state. The patch stays pending and is retried.
	ErrUserTyping = errors.New("user is typing, apply deferred")

	// ErrStale means the snapshotted region changed under the patch.
	ErrStale = errors.New("patch target content changed")

	// ErrBufferNotFound means the target could be neither found nor
	// reloaded from disk.
	ErrBufferNotFound = errors.New("target buffer not found")
)

// Candidate is one generated patch waiting to land.
type Candidate struct {
	ID         string
	EventID    string
	Prompt     string
	Provider   string
	Confidence float64

	Source     *buffer.Buffer // buffer the prompt tag lives in, may be nil
	Target     *buffer.Buffer // may be nil until reloaded at apply time
	TargetPath string
	Filetype   string

	Code     string
	Strategy inject.Strategy
	Range    *buffer.Range // nil for append and search/replace

	UseSearchReplace bool
	Blocks           []searchreplace.Block

	IsInlinePrompt bool // prompt tag sits in the target buffer itself
	replacesTag    bool // injection range covers the tag, removal implicit

	Snapshot  snapshot.Snapshot
	StartMark buffer.MarkID
	EndMark   buffer.MarkID
	hasMarks  bool

	Status     Status
	CreatedAt  time.Time
	FinishedAt time.Time
}

// Recorder persists applied revisions so they can be reverted later.
// pkg/history implements it over sqlite.
type Recorder interface {
	RecordApplied(patchID, targetPath, originalText, newText, strategy, provider string) error
}

// Manager tracks every candidate in creation order and drives them through
// the gates. Not safe for concurrent use; the engine loop serializes it.
type Manager struct {
	Buffers     *buffer.Set
	Bus         *events.Bus
	Stats       *llm.AccuracyStats
	History     Recorder
	Conflicts   *conflict.Engine // non-nil routes Flush through conflict staging
	SortImports bool
	Logger      *utils.Logger

	patches []*Candidate
	byID    map[string]*Candidate
}

// NewManager creates a manager over the given buffer set.
func NewManager(buffers *buffer.Set, bus *events.Bus, logger *utils.Logger) *Manager {
	return &Manager{
		Buffers:     buffers,
		Bus:         bus,
		Logger:      logger,
		SortImports: true,
		byID:        make(map[string]*Candidate),
	}
}

// Create builds a pending candidate from a completed generation. The
// injection strategy is decided here, once, by precedence: search/replace
// blocks in the response are authoritative; then an explicit override; then
// the inline-tag rule (replace over the tag's own lines); then the
// classified intent; append as the default.
func (m *Manager) Create(event *events.PromptEvent, code string, confidence float64, provider string) *Candidate {
	p := &Candidate{
		ID:         ulid.Make().String(),
		EventID:    event.ID,
		Prompt:     event.Prompt,
		Provider:   provider,
		Confidence: confidence,
		Source:     event.SourceBuffer,
		TargetPath: event.TargetPath,
		Filetype:   event.Language,
		Code:       code,
		Status:     StatusPending,
		CreatedAt:  time.Now(),
	}

	if target, ok := m.Buffers.Lookup(event.TargetPath); ok {
		p.Target = target
	}
	p.IsInlinePrompt = event.TagRange != nil && p.Source != nil && p.Source == p.Target

	switch {
	case len(searchreplace.ParseBlocks(code)) > 0:
		p.UseSearchReplace = true
		p.Blocks = searchreplace.ParseBlocks(code)
		p.Strategy = inject.StrategySearchReplace

	case event.Override != nil:
		p.Strategy = event.Override.Strategy
		p.Range = event.Override.Range

	case p.IsInlinePrompt:
		r := *event.TagRange
		p.Strategy = inject.StrategyReplace
		p.Range = &r
		p.replacesTag = true

	default:
		p.Strategy, p.Range = strategyFromIntent(event)
	}

	if p.Target != nil {
		p.Snapshot = snapshot.Take(p.Target, p.Range)
		if p.Range != nil {
			p.StartMark = p.Target.PlaceMark(p.Range.StartLine)
			p.EndMark = p.Target.PlaceMark(p.Range.EndLine)
			p.hasMarks = true
		}
	}

	m.patches = append(m.patches, p)
	m.byID[p.ID] = p
	m.Logger.Logf("patch %s created: strategy=%s target=%s confidence=%.2f", p.ID, p.Strategy, p.TargetPath, confidence)
	return p
}

// strategyFromIntent maps the classified intent onto a strategy and range.
func strategyFromIntent(event *events.PromptEvent) (inject.Strategy, *buffer.Range) {
	it := intent.Detect(event.Prompt)
	switch it.Action {
	case intent.ActionReplace:
		if event.ScopeRange != nil {
			r := *event.ScopeRange
			return inject.StrategyReplace, &r
		}
		if event.TagRange != nil {
			r := *event.TagRange
			return inject.StrategyReplace, &r
		}
	case intent.ActionInsert:
		if event.TagRange != nil {
			return inject.StrategyInsert, &buffer.Range{
				StartLine: event.TagRange.StartLine,
				EndLine:   event.TagRange.StartLine,
			}
		}
	}
	return inject.StrategyAppend, nil
}

// Get looks a candidate up by ID.
func (m *Manager) Get(id string) (*Candidate, bool) {
	p, ok := m.byID[id]
	return p, ok
}

// Pending returns the pending candidates in creation order.
func (m *Manager) Pending() []*Candidate {
	var out []*Candidate
	for _, p := range m.patches {
		if p.Status == StatusPending {
			out = append(out, p)
		}
	}
	return out
}

// IsStale reports whether the snapshotted region no longer matches the live
// buffer. Change counters bump on non-content events, so an unchanged tick
// is trusted and a changed tick triggers a hash recompute over the same
// range before the patch is condemned.
func (m *Manager) IsStale(p *Candidate) bool {
	if p.Snapshot.Buffer == nil {
		return false
	}
	if !p.Snapshot.Buffer.Valid() {
		return true
	}
	if p.Snapshot.Buffer.Tick() == p.Snapshot.Tick {
		return false
	}
	return p.Snapshot.ContentChanged()
}

// Apply runs the candidate through the gates and injects it directly into
// the target buffer. ErrUserTyping leaves the patch pending for retry;
// every other failure is terminal.
func (m *Manager) Apply(p *Candidate) error {
	return m.land(p, false)
}

// Stage runs the same gates but materializes the generated code as a
// conflict region instead of mutating the document outright.
func (m *Manager) Stage(p *Candidate) error {
	return m.land(p, true)
}

func (m *Manager) land(p *Candidate, staged bool) (err error) {
	if p.Status.Terminal() {
		return nil
	}

	// Safety gate: never mutate under the user's fingers.
	gate := p.Target
	if gate == nil {
		gate = p.Source
	}
	if gate != nil && gate.Mode().Sensitive() {
		return ErrUserTyping
	}

	// Staleness gate. Live marks anchoring the range mean the edit target
	// moved but survived, so the patch is still placeable.
	if !m.marksAnchored(p) && m.IsStale(p) {
		m.finish(p, StatusStale, llm.OutcomeStale, events.TypePatchStale, nil)
		return ErrStale
	}

	if err := m.ensureTarget(p); err != nil {
		m.finish(p, StatusRejected, llm.OutcomeRejected, events.TypePatchRejected, err)
		return err
	}

	// A panic inside injection must not take the engine loop down.
	defer func() {
		if r := recover(); r != nil {
			perr := fmt.Errorf("injection panicked: %v", r)
			m.finish(p, StatusRejected, llm.OutcomeRejected, events.TypePatchRejected, perr)
			err = perr
		}
	}()

	originalText := p.Target.Text()

	if !p.replacesTag {
		m.removePromptTag(p)
	}
	rng := m.liveRange(p)

	var lines int
	if staged {
		lines, err = m.stageConflict(p, rng)
	} else {
		lines, err = m.injectDirect(p, rng)
	}
	if err != nil {
		m.finish(p, StatusRejected, llm.OutcomeRejected, events.TypePatchRejected, err)
		return err
	}

	m.finish(p, StatusApplied, llm.OutcomeApplied, eventTypeFor(staged), nil)
	m.record(p, originalText)
	m.Logger.Logf("patch %s landed: %d lines into %s (staged=%t)", p.ID, lines, p.TargetPath, staged)
	return nil
}

func eventTypeFor(staged bool) string {
	if staged {
		return events.TypeConflictStaged
	}
	return events.TypePatchApplied
}

// marksAnchored reports whether the range marks still delimit the
// snapshotted text. Surrounding edits shift the marks without touching the
// region, so a moved-but-intact region is still placeable; an edit inside
// the region breaks the anchor and the staleness gate takes over.
func (m *Manager) marksAnchored(p *Candidate) bool {
	if !p.hasMarks || p.Target == nil || !p.Target.Valid() {
		return false
	}
	s, ok1 := p.Target.MarkLine(p.StartMark)
	e, ok2 := p.Target.MarkLine(p.EndMark)
	if !ok1 || !ok2 || s > e {
		return false
	}
	live := buffer.Range{StartLine: s, EndLine: e}
	return snapshot.HashRange(p.Target, &live) == p.Snapshot.Hash
}

// liveRange resolves the injection range against the current buffer,
// preferring the marks since they track intervening edits.
func (m *Manager) liveRange(p *Candidate) *buffer.Range {
	if m.marksAnchored(p) {
		s, _ := p.Target.MarkLine(p.StartMark)
		e, _ := p.Target.MarkLine(p.EndMark)
		return &buffer.Range{StartLine: s, EndLine: e}
	}
	return p.Range
}

// ensureTarget makes sure p.Target is a live buffer, reloading from the
// target path when the editor no longer has it open.
func (m *Manager) ensureTarget(p *Candidate) error {
	if p.Target != nil && p.Target.Valid() {
		return nil
	}
	if reloaded, ok := m.Buffers.Lookup(p.TargetPath); ok && reloaded.Valid() {
		p.Target = reloaded
		return nil
	}
	reloaded, err := buffer.LoadFile(p.TargetPath)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBufferNotFound, p.TargetPath)
	}
	m.Buffers.Add(reloaded)
	p.Target = reloaded
	p.hasMarks = false
	return nil
}

// removePromptTag deletes the originating /@ ... @/ tag from the source
// buffer. The tag is re-found by prompt text since its lines may have
// shifted since submission.
func (m *Manager) removePromptTag(p *Candidate) {
	if p.Source == nil || !p.Source.Valid() {
		return
	}
	for _, t := range tags.Find(p.Source) {
		if t.Prompt == p.Prompt {
			tags.Remove(p.Source, t)
			return
		}
	}
}

func (m *Manager) injectDirect(p *Candidate, rng *buffer.Range) (int, error) {
	if p.UseSearchReplace {
		err := searchreplace.ApplyToBuffer(p.Target, p.Blocks)
		if err == nil {
			return len(p.Blocks), nil
		}
		// Degraded output: the replacement halves are still usable as
		// plain code, unresolved markers never are.
		m.Logger.Logf("patch %s: %v, falling back to replacement text", p.ID, err)
		p.Code = searchreplace.ReplaceHalves(p.Blocks)
		p.UseSearchReplace = false
		p.Strategy = inject.StrategyAppend
		rng = nil
	}

	res, err := inject.Inject(p.Target, p.Code, inject.Options{
		Strategy:    p.Strategy,
		Range:       rng,
		Filetype:    p.Filetype,
		SortImports: m.SortImports,
	})
	if err != nil {
		return 0, err
	}
	return res.BodyLines + res.ImportsAdded, nil
}

// stageConflict places the generated code as conflict regions for the user
// to resolve in place.
func (m *Manager) stageConflict(p *Candidate, rng *buffer.Range) (int, error) {
	if p.UseSearchReplace {
		return m.stageBlocks(p)
	}

	body := strings.Split(strings.Trim(p.Code, "\n"), "\n")
	var region buffer.Range
	switch {
	case p.Strategy == inject.StrategyReplace && rng != nil:
		region = *rng
	case p.Strategy == inject.StrategyInsert && rng != nil:
		// Zero-line CURRENT side at the insertion point.
		region = buffer.Range{StartLine: rng.StartLine, EndLine: rng.StartLine - 1}
	default:
		n := p.Target.LineCount()
		region = buffer.Range{StartLine: n + 1, EndLine: n}
	}
	conflict.Insert(p.Target, region, body)
	return len(body), nil
}

// stageBlocks converts each search/replace block into its own conflict
// region. Blocks that fail to match degrade to one appended region holding
// the replacement text.
func (m *Manager) stageBlocks(p *Candidate) (int, error) {
	total := 0
	for idx, block := range p.Blocks {
		r := searchreplace.FindMatch(p.Target.Text(), block.Search)
		repl := strings.Split(block.Replace, "\n")
		if block.Replace == "" {
			repl = nil
		}
		if r == nil {
			m.Logger.Logf("patch %s: block %d unmatched, staging replacement at end", p.ID, idx+1)
			n := p.Target.LineCount()
			r = &buffer.Range{StartLine: n + 1, EndLine: n}
		}
		conflict.Insert(p.Target, *r, repl)
		total += len(repl)
	}
	return total, nil
}

// finish moves a candidate into a terminal state and emits the side
// effects: accuracy bookkeeping and a bus event.
func (m *Manager) finish(p *Candidate, status Status, outcome llm.Outcome, eventType string, cause error) {
	p.Status = status
	p.FinishedAt = time.Now()
	m.clearMarks(p)

	if err := m.Stats.Record(p.Provider, outcome); err != nil {
		m.Logger.LogError(err)
	}
	data := map[string]any{
		"patch_id": p.ID,
		"target":   p.TargetPath,
		"strategy": string(p.Strategy),
	}
	if cause != nil {
		data["error"] = cause.Error()
		m.Logger.Logf("patch %s %s: %v", p.ID, status, cause)
	}
	if m.Bus != nil {
		m.Bus.Publish(eventType, data)
	}
}

func (m *Manager) clearMarks(p *Candidate) {
	if p.hasMarks && p.Target != nil {
		p.Target.RemoveMark(p.StartMark)
		p.Target.RemoveMark(p.EndMark)
	}
	p.hasMarks = false
}

func (m *Manager) record(p *Candidate, originalText string) {
	if m.History == nil {
		return
	}
	err := m.History.RecordApplied(p.ID, p.TargetPath, originalText, p.Target.Text(), string(p.Strategy), p.Provider)
	if err != nil {
		m.Logger.LogError(err)
	}
}

// Counts summarizes one Flush pass.
type Counts struct {
	Applied  int
	Stale    int
	Deferred int
}

// Flush walks pending candidates in creation order and tries to land each
// one, through conflict staging when a conflict engine is configured.
// Terminal patches are untouched, so flushing on a timer is harmless.
func (m *Manager) Flush() Counts {
	var c Counts
	for _, p := range m.patches {
		if p.Status != StatusPending {
			continue
		}
		var err error
		if m.Conflicts != nil {
			err = m.Stage(p)
		} else {
			err = m.Apply(p)
		}
		switch {
		case err == nil:
			c.Applied++
		case errors.Is(err, ErrUserTyping):
			c.Deferred++
		case errors.Is(err, ErrStale):
			c.Stale++
		}
	}
	return c
}

// CancelBuffer marks every pending patch targeting buf as cancelled. The
// document is never touched.
func (m *Manager) CancelBuffer(buf *buffer.Buffer) int {
	n := 0
	for _, p := range m.patches {
		if p.Status != StatusPending {
			continue
		}
		if p.Target == buf || p.TargetPath == buf.Name() {
			p.Status = StatusCancelled
			p.FinishedAt = time.Now()
			m.clearMarks(p)
			n++
		}
	}
	if n > 0 {
		m.Logger.Logf("cancelled %d pending patches for %s", n, buf.Name())
	}
	return n
}

// GC drops terminal candidates older than maxAge and returns how many were
// removed. Pending patches are never collected.
func (m *Manager) GC(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)
	kept := m.patches[:0]
	removed := 0
	for _, p := range m.patches {
		if p.Status.Terminal() && p.FinishedAt.Before(cutoff) {
			delete(m.byID, p.ID)
			removed++
			continue
		}
		kept = append(kept, p)
	}
	m.patches = kept
	return removed
}
