// Package engine runs the dispatch loop that owns every buffer. All
// mutation happens on one goroutine; LLM calls run concurrently and post
// their completions back as closures, so nothing between suspension points
// ever observes a half-applied state.
package engine

import (
	"context"
	"strings"
	"time"

	"github.com/inlay-dev/inlay/pkg/buffer"
	"github.com/inlay-dev/inlay/pkg/config"
	"github.com/inlay-dev/inlay/pkg/conflict"
	"github.com/inlay-dev/inlay/pkg/events"
	"github.com/inlay-dev/inlay/pkg/intent"
	"github.com/inlay-dev/inlay/pkg/lint"
	"github.com/inlay-dev/inlay/pkg/llm"
	"github.com/inlay-dev/inlay/pkg/patch"
	"github.com/inlay-dev/inlay/pkg/scope"
	"github.com/inlay-dev/inlay/pkg/tags"
	"github.com/inlay-dev/inlay/pkg/utils"
	"github.com/inlay-dev/inlay/pkg/workspace"
)

// Engine coordinates buffers, patches, and generation.
type Engine struct {
	Cfg      *config.Config
	Buffers  *buffer.Set
	Manager  *patch.Manager
	Provider llm.Provider
	Bus      *events.Bus
	Logger   *utils.Logger

	scopes    *scope.Resolver
	validator *lint.Validator

	tasks chan func()
	ctx   context.Context
}

// New wires an engine from configuration.
func New(cfg *config.Config, provider llm.Provider, logger *utils.Logger) *Engine {
	buffers := buffer.NewSet()
	bus := events.NewBus()

	manager := patch.NewManager(buffers, bus, logger)
	manager.SortImports = cfg.Patches.SortImports

	e := &Engine{
		Cfg:       cfg,
		Buffers:   buffers,
		Manager:   manager,
		Provider:  provider,
		Bus:       bus,
		Logger:    logger,
		scopes:    scope.NewResolver(),
		validator: lint.New(cfg.Lint.Command, logger),
		tasks:     make(chan func(), 64),
		ctx:       context.Background(),
	}

	if cfg.Conflicts.Enabled {
		ce := conflict.NewEngine()
		ce.AutoFollow = cfg.Conflicts.AutoFollow
		ce.Lint = func(buf *buffer.Buffer, start, end int) {
			e.validate(buf, start, end)
		}
		manager.Conflicts = ce
	}
	return e
}

// Run processes tasks until ctx is cancelled. A ticker retries deferred
// patches and collects old terminal ones.
func (e *Engine) Run(ctx context.Context) {
	e.ctx = ctx
	ticker := time.NewTicker(e.Cfg.FlushInterval())
	defer ticker.Stop()
	defer e.scopes.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-e.tasks:
			fn()
		case <-ticker.C:
			c := e.Manager.Flush()
			if c != (patch.Counts{}) {
				e.Logger.Logf("flush: applied=%d stale=%d deferred=%d", c.Applied, c.Stale, c.Deferred)
			}
			e.Manager.GC(e.Cfg.PatchMaxAge())
		}
	}
}

// Do posts fn onto the dispatch loop.
func (e *Engine) Do(fn func()) {
	e.tasks <- fn
}

// OpenBuffer registers a document. Loop-only.
func (e *Engine) OpenBuffer(name, text string) *buffer.Buffer {
	buf := buffer.New(name, text)
	e.Buffers.Add(buf)
	return buf
}

// CloseBuffer cancels the buffer's pending patches and drops it. Loop-only.
func (e *Engine) CloseBuffer(name string) {
	buf, ok := e.Buffers.Lookup(name)
	if !ok {
		return
	}
	e.Manager.CancelBuffer(buf)
	e.Buffers.Remove(buf)
}

// Submit classifies the prompt, resolves its scope, and fires the
// generation. Loop-only; the completion is posted back onto the loop.
func (e *Engine) Submit(ev *events.PromptEvent) {
	it := intent.Detect(ev.Prompt)
	e.resolveScope(ev, it)

	target, _ := e.Buffers.Lookup(ev.TargetPath)
	req := llm.Request{
		Prompt:   ev.Prompt,
		Language: ev.Language,
		FilePath: ev.TargetPath,
	}
	if target != nil {
		req.FileContent = target.Text()
	}

	e.Logger.Logf("prompt %s: intent=%s scope=%s confidence=%.2f", ev.ID, it.Type, it.ScopeHint, it.Confidence)

	go func() {
		text, err := e.Provider.Generate(e.ctx, req)
		e.Do(func() { e.complete(ev, it, text, err) })
	}()
}

// resolveScope fills ev.ScopeRange from the target's syntax tree when the
// intent wants a semantic region and one encloses the tag.
func (e *Engine) resolveScope(ev *events.PromptEvent, it intent.Intent) {
	if ev.ScopeRange != nil || ev.TagRange == nil || it.Action != intent.ActionReplace {
		return
	}
	target, ok := e.Buffers.Lookup(ev.TargetPath)
	if !ok {
		return
	}
	sc, found := e.scopes.Resolve(ev.Language, []byte(target.Text()), ev.TagRange.StartLine)
	if !found {
		return
	}
	ev.ScopeRange = &buffer.Range{StartLine: sc.StartLine, EndLine: sc.EndLine}
}

// complete handles a finished generation on the loop.
func (e *Engine) complete(ev *events.PromptEvent, it intent.Intent, text string, err error) {
	if err != nil {
		e.Logger.LogError(err)
		e.Bus.Publish(events.TypeGenerationErr, map[string]any{
			"event_id": ev.ID, "error": err.Error(),
		})
		return
	}
	text = stripFences(text)

	if it.Action == intent.ActionNone {
		// Explanations never touch the document.
		e.Bus.Publish(events.TypeExplanation, map[string]any{
			"event_id": ev.ID, "text": text,
		})
		return
	}

	p := e.Manager.Create(ev, text, it.Confidence, e.Provider.Name())
	var applyErr error
	if e.Manager.Conflicts != nil {
		applyErr = e.Manager.Stage(p)
	} else {
		applyErr = e.Manager.Apply(p)
		if applyErr == nil && p.Target != nil && e.Cfg.Lint.Command != nil {
			e.validate(p.Target, 1, p.Target.LineCount())
		}
	}
	if applyErr != nil {
		// ErrUserTyping stays pending for the flush ticker; terminal
		// failures were already recorded by the manager.
		e.Logger.Logf("patch %s not applied yet: %v", p.ID, applyErr)
	}
}

func (e *Engine) validate(buf *buffer.Buffer, start, end int) {
	e.validator.ValidateAfterInjection(buf, start, end, func(res lint.Result) {
		e.Do(func() {
			e.Bus.Publish(events.TypeLintResult, map[string]any{
				"target":     buf.Name(),
				"has_errors": res.HasErrors,
				"output":     res.Output,
			})
		})
	})
}

// SubmitBufferTags scans a buffer for completed prompt tags and submits
// each as an inline prompt. Loop-only.
func (e *Engine) SubmitBufferTags(name string) int {
	buf, ok := e.Buffers.Lookup(name)
	if !ok {
		return 0
	}
	found := tags.Find(buf)
	for _, t := range found {
		ev := events.NewPromptEvent(t.Prompt, buf, buf.Name())
		ev.Language = workspace.Language(buf.Name())
		r := t.Range
		ev.TagRange = &r
		e.Submit(ev)
	}
	return len(found)
}

// HandleCompanionChange reads a saved companion file and submits every
// prompt tag in it against the companion's target. Loop-only.
func (e *Engine) HandleCompanionChange(ch workspace.Change) int {
	text, err := workspace.ReadCompanion(ch.Path)
	if err != nil {
		e.Logger.LogError(err)
		return 0
	}
	src := buffer.New(ch.Path, text)
	found := tags.Find(src)
	for _, t := range found {
		ev := events.NewPromptEvent(t.Prompt, src, ch.Target)
		ev.Language = workspace.Language(ch.Target)
		r := t.Range
		ev.TagRange = &r
		e.Submit(ev)
	}
	return len(found)
}

// stripFences unwraps a response wrapped in a markdown code fence. Models
// add them even when told not to.
func stripFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return text
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return text
	}
	if strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines[1:], "\n")
}
