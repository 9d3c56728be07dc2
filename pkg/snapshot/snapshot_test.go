package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/inlay-dev/inlay/pkg/buffer"
)

func TestMutationInsideRangeChangesContent(t *testing.T) {
	buf := buffer.New("a.go", "l1\nl2\nl3\nl4")
	s := Take(buf, &buffer.Range{StartLine: 2, EndLine: 3})

	buf.ReplaceRange(buffer.Range{StartLine: 2, EndLine: 2}, []string{"edited"})

	assert.True(t, s.ContentChanged())
}

func TestMutationOutsideRangeLeavesContentIntact(t *testing.T) {
	buf := buffer.New("a.go", "l1\nl2\nl3\nl4")
	s := Take(buf, &buffer.Range{StartLine: 2, EndLine: 3})

	buf.ReplaceRange(buffer.Range{StartLine: 4, EndLine: 4}, []string{"edited"})

	assert.NotEqual(t, s.Tick, buf.Tick(), "counter moved")
	assert.False(t, s.ContentChanged(), "but snapshotted text did not")
}

func TestWholeDocumentSnapshot(t *testing.T) {
	buf := buffer.New("a.go", "l1\nl2")
	s := Take(buf, nil)

	buf.Touch()
	assert.False(t, s.ContentChanged())

	buf.AppendLines([]string{"l3"})
	assert.True(t, s.ContentChanged())
}
