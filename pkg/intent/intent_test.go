package intent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectCategories(t *testing.T) {
	cases := []struct {
		prompt string
		typ    Type
		action Action
	}{
		{"fix the off-by-one bug here", TypeFix, ActionReplace},
		{"implement the body of this function", TypeComplete, ActionReplace},
		{"refactor this to be readable", TypeRefactor, ActionReplace},
		{"optimize the inner loop", TypeOptimize, ActionReplace},
		{"add a docstring and comments", TypeDocument, ActionReplace},
		{"write a unit test for the parser", TypeTest, ActionAppend},
		{"explain what does this do", TypeExplain, ActionNone},
		{"add input validation", TypeAdd, ActionInsert},
	}
	for _, tc := range cases {
		got := Detect(tc.prompt)
		assert.Equal(t, tc.typ, got.Type, "prompt: %s", tc.prompt)
		assert.Equal(t, tc.action, got.Action, "prompt: %s", tc.prompt)
	}
}

func TestDetectIsTotal(t *testing.T) {
	for _, prompt := range []string{"", "zzzz qqqq", "????"} {
		got := Detect(prompt)
		assert.Equal(t, TypeAdd, got.Type)
		assert.Equal(t, ActionInsert, got.Action)
		assert.GreaterOrEqual(t, got.Confidence, 0.0)
		assert.LessOrEqual(t, got.Confidence, 1.0)
		assert.Empty(t, got.Matched)
	}
}

func TestLowerPriorityCategoryWinsOverWeaker(t *testing.T) {
	// "fix" (priority 1) must beat "add" (priority 8) even though both match.
	got := Detect("add a nil check to fix the crash")
	assert.Equal(t, TypeFix, got.Type)
}

func TestConfidenceAccumulatesAndCaps(t *testing.T) {
	one := Detect("fix this")
	two := Detect("fix this bug")
	assert.Greater(t, two.Confidence, one.Confidence)

	many := Detect(strings.Repeat("fix bug broken error issue repair crash ", 3))
	assert.Equal(t, 1.0, many.Confidence)
}

func TestScopeHintOverride(t *testing.T) {
	got := Detect("refactor this class for clarity")
	assert.Equal(t, ScopeClass, got.ScopeHint)

	got = Detect("refactor the parser")
	assert.Equal(t, ScopeFunction, got.ScopeHint, "category default when no phrase matches")

	got = Detect("document the whole file")
	assert.Equal(t, ScopeFile, got.ScopeHint)
}

func TestCaseInsensitive(t *testing.T) {
	got := Detect("FIX The Bug")
	assert.Equal(t, TypeFix, got.Type)
	assert.Len(t, got.Matched, 2)
}
