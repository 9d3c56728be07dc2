package tags

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inlay-dev/inlay/pkg/buffer"
)

func TestFindInlineTag(t *testing.T) {
	buf := buffer.New("a.go", "func main() {\n\t/@ add input validation @/\n}")
	got := Find(buf)
	require.Len(t, got, 1)
	assert.Equal(t, "add input validation", got[0].Prompt)
	assert.Equal(t, buffer.Range{StartLine: 2, EndLine: 2}, got[0].Range)
	assert.True(t, got[0].Inline)
}

func TestFindMultiLineTag(t *testing.T) {
	buf := buffer.New("a.go", "/@ rewrite this parser\nto handle unicode\n@/\nfunc parse() {}")
	got := Find(buf)
	require.Len(t, got, 1)
	assert.Equal(t, "rewrite this parser to handle unicode", got[0].Prompt)
	assert.Equal(t, buffer.Range{StartLine: 1, EndLine: 3}, got[0].Range)
	assert.False(t, got[0].Inline)
}

func TestUnterminatedTagIgnored(t *testing.T) {
	buf := buffer.New("a.go", "/@ still typing\nfunc main() {}")
	assert.Empty(t, Find(buf))
}

func TestFindMultipleTags(t *testing.T) {
	buf := buffer.New("a.go", "/@ first @/\ncode\n/@ second @/")
	got := Find(buf)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Prompt)
	assert.Equal(t, "second", got[1].Prompt)
}

func TestRemoveInlineTagCollapsesToRemainingText(t *testing.T) {
	buf := buffer.New("a.go", "x := 1 /@ explain @/ // note")
	tag := Find(buf)[0]
	Remove(buf, tag)
	assert.Equal(t, "x := 1  // note", buf.Text())
}

func TestRemoveInlineTagDeletesEmptyLine(t *testing.T) {
	buf := buffer.New("a.go", "before\n/@ prompt @/\nafter")
	tag := Find(buf)[0]
	Remove(buf, tag)
	assert.Equal(t, "before\nafter", buf.Text())
}

func TestRemoveMultiLineTagSplicesBoundaryText(t *testing.T) {
	buf := buffer.New("a.go", "head /@ long\nprompt body\n@/ tail\nrest")
	got := Find(buf)
	require.Len(t, got, 1)
	Remove(buf, got[0])
	assert.Equal(t, "head  tail\nrest", buf.Text())
}

func TestRemoveMultiLineTagNoBoundaryText(t *testing.T) {
	buf := buffer.New("a.go", "before\n/@\nprompt\n@/\nafter")
	got := Find(buf)
	require.Len(t, got, 1)
	Remove(buf, got[0])
	assert.Equal(t, "before\nafter", buf.Text())
}
