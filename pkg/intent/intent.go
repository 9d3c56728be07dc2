// Package intent classifies natural-language prompt text into a typed
// Intent that drives the default injection strategy.
package intent

import "strings"

// Type is the prompt's intent category.
type Type string

const (
	TypeComplete Type = "complete"
	TypeRefactor Type = "refactor"
	TypeFix      Type = "fix"
	TypeAdd      Type = "add"
	TypeDocument Type = "document"
	TypeTest     Type = "test"
	TypeOptimize Type = "optimize"
	TypeExplain  Type = "explain"
)

// Action is the buffer operation an intent maps to.
type Action string

const (
	ActionReplace Action = "replace"
	ActionInsert  Action = "insert"
	ActionAppend  Action = "append"
	ActionNone    Action = "none"
)

// ScopeHint suggests the semantic region a prompt targets.
type ScopeHint string

const (
	ScopeFunction  ScopeHint = "function"
	ScopeClass     ScopeHint = "class"
	ScopeBlock     ScopeHint = "block"
	ScopeFile      ScopeHint = "file"
	ScopeSelection ScopeHint = "selection"
	ScopeNone      ScopeHint = ""
)

// Intent is the classification result for one prompt. It is computed once
// per submission and never mutated.
type Intent struct {
	Type       Type
	ScopeHint  ScopeHint
	Action     Action
	Confidence float64
	Matched    []string
}

// category is one row of the classification table. Lower priority wins.
type category struct {
	typ      Type
	priority int
	action   Action
	scope    ScopeHint
	triggers []string
}

// The table is ordered for readability only; priority decides precedence.
var categories = []category{
	{TypeFix, 1, ActionReplace, ScopeFunction, []string{"fix", "bug", "broken", "error", "issue", "repair", "crash"}},
	{TypeComplete, 2, ActionReplace, ScopeFunction, []string{"complete", "finish", "implement", "fill in", "fill out"}},
	{TypeRefactor, 3, ActionReplace, ScopeFunction, []string{"refactor", "rewrite", "restructure", "clean up", "cleanup", "simplify", "rename"}},
	{TypeOptimize, 4, ActionReplace, ScopeFunction, []string{"optimize", "optimise", "faster", "performance", "speed up", "efficient"}},
	{TypeDocument, 5, ActionReplace, ScopeFunction, []string{"document", "docstring", "doc comment", "comment this", "add comments"}},
	{TypeTest, 6, ActionAppend, ScopeFile, []string{"test", "unit test", "test case", "coverage", "spec for"}},
	{TypeExplain, 7, ActionNone, ScopeFunction, []string{"explain", "what does", "why does", "describe", "how does"}},
	{TypeAdd, 8, ActionInsert, ScopeBlock, []string{"add", "create", "insert", "introduce", "include", "new "}},
}

// scopePhrases override the winning category's default scope hint.
var scopePhrases = []struct {
	phrase string
	scope  ScopeHint
}{
	{"this function", ScopeFunction},
	{"the function", ScopeFunction},
	{"this method", ScopeFunction},
	{"this class", ScopeClass},
	{"the class", ScopeClass},
	{"this struct", ScopeClass},
	{"this block", ScopeBlock},
	{"this loop", ScopeBlock},
	{"this file", ScopeFile},
	{"the whole file", ScopeFile},
	{"entire file", ScopeFile},
	{"the selection", ScopeSelection},
	{"selected code", ScopeSelection},
}

// Detect classifies promptText. It is total: unmatched prompts fall back to
// the "add" category, the least destructive action.
func Detect(promptText string) Intent {
	lower := strings.ToLower(promptText)

	var best *category
	var matched []string
	for i := range categories {
		c := &categories[i]
		for _, trigger := range c.triggers {
			if !strings.Contains(lower, trigger) {
				continue
			}
			if best == nil || c.priority < best.priority {
				best = c
				matched = []string{trigger}
			} else if c.priority == best.priority {
				matched = append(matched, trigger)
			}
		}
	}

	if best == nil {
		fallback := findCategory(TypeAdd)
		return Intent{
			Type:       fallback.typ,
			ScopeHint:  scopeFor(lower, fallback.scope),
			Action:     fallback.action,
			Confidence: confidence(0),
		}
	}

	return Intent{
		Type:       best.typ,
		ScopeHint:  scopeFor(lower, best.scope),
		Action:     best.action,
		Confidence: confidence(len(matched)),
		Matched:    matched,
	}
}

func findCategory(t Type) *category {
	for i := range categories {
		if categories[i].typ == t {
			return &categories[i]
		}
	}
	return &categories[len(categories)-1]
}

func scopeFor(lower string, fallback ScopeHint) ScopeHint {
	for _, p := range scopePhrases {
		if strings.Contains(lower, p.phrase) {
			return p.scope
		}
	}
	return fallback
}

// confidence grows with evidence and is capped: min(1.0, 0.5 + 0.15*n).
func confidence(matches int) float64 {
	c := 0.5 + 0.15*float64(matches)
	if c > 1.0 {
		return 1.0
	}
	return c
}
