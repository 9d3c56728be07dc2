// Package buffer models the live, line-oriented text buffers the assistant
// injects code into. A buffer carries a monotonic change counter, the
// editing-mode flags the safety gate inspects, and position marks that stay
// anchored to content as surrounding edits shift line numbers.
package buffer

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"
)

// Range is a 1-indexed, inclusive line range.
type Range struct {
	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line"`
}

// Lines returns the number of lines the range spans.
func (r Range) Lines() int {
	return r.EndLine - r.StartLine + 1
}

// Mode holds the editing-sensitive state flags for a buffer. While any of
// them is set, patch application must be deferred.
type Mode struct {
	Insert          bool
	SelectionActive bool
	PopupVisible    bool
}

// Sensitive reports whether the buffer is in any state that makes a
// programmatic mutation unsafe.
func (m Mode) Sensitive() bool {
	return m.Insert || m.SelectionActive || m.PopupVisible
}

// MarkID identifies a position mark placed on a buffer.
type MarkID int

type mark struct {
	line int // 1-indexed
}

var nextBufferID int64

// Buffer is a line-oriented document. It is not safe for concurrent use;
// all mutation is expected to happen on the engine's dispatch goroutine.
type Buffer struct {
	id    int64
	name  string
	lines []string
	tick  uint64
	valid bool
	mode  Mode

	marks    map[MarkID]*mark
	nextMark MarkID
}

// New creates a buffer named name (usually a file path) holding text.
func New(name, text string) *Buffer {
	return &Buffer{
		id:    atomic.AddInt64(&nextBufferID, 1),
		name:  name,
		lines: splitLines(text),
		valid: true,
		marks: make(map[MarkID]*mark),
	}
}

// LoadFile reads path from disk into a new buffer.
func LoadFile(path string) (*Buffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load buffer from %s: %w", path, err)
	}
	return New(path, string(data)), nil
}

func splitLines(text string) []string {
	if text == "" {
		return []string{""}
	}
	return strings.Split(text, "\n")
}

// ID returns the buffer's unique numeric handle.
func (b *Buffer) ID() int64 { return b.id }

// Name returns the buffer name (typically its file path).
func (b *Buffer) Name() string { return b.name }

// Valid reports whether the buffer handle still refers to a live document.
func (b *Buffer) Valid() bool { return b.valid }

// Invalidate marks the buffer handle dead, e.g. after the editor closed it.
func (b *Buffer) Invalidate() { b.valid = false }

// Tick returns the buffer's monotonic change counter.
func (b *Buffer) Tick() uint64 { return b.tick }

// Touch bumps the change counter without altering content. Editors bump
// their counters on events that are not content changes; staleness checks
// must tolerate this.
func (b *Buffer) Touch() { b.tick++ }

// Mode returns the current editing-mode flags.
func (b *Buffer) Mode() Mode { return b.mode }

// SetMode replaces the editing-mode flags.
func (b *Buffer) SetMode(m Mode) { b.mode = m }

// LineCount returns the number of lines in the buffer.
func (b *Buffer) LineCount() int { return len(b.lines) }

// Lines returns a copy of the buffer's lines.
func (b *Buffer) Lines() []string {
	out := make([]string, len(b.lines))
	copy(out, b.lines)
	return out
}

// Line returns the 1-indexed line, or false if out of range.
func (b *Buffer) Line(n int) (string, bool) {
	if n < 1 || n > len(b.lines) {
		return "", false
	}
	return b.lines[n-1], true
}

// Text returns the whole buffer joined with newlines.
func (b *Buffer) Text() string {
	return strings.Join(b.lines, "\n")
}

// TextRange returns the text of a 1-indexed inclusive range, clamped to the
// buffer bounds.
func (b *Buffer) TextRange(r Range) string {
	start, end := b.clamp(r)
	if start > end {
		return ""
	}
	return strings.Join(b.lines[start-1:end], "\n")
}

func (b *Buffer) clamp(r Range) (int, int) {
	start, end := r.StartLine, r.EndLine
	if start < 1 {
		start = 1
	}
	if end > len(b.lines) {
		end = len(b.lines)
	}
	return start, end
}

// SetLines replaces lines [start, end) (0-indexed, end-exclusive) with repl.
// It bumps the change counter and shifts marks: marks past the edited
// region move by the line delta, marks inside it collapse to its start.
func (b *Buffer) SetLines(start, end int, repl []string) {
	if start < 0 {
		start = 0
	}
	if end > len(b.lines) {
		end = len(b.lines)
	}
	if start > end {
		start = end
	}

	delta := len(repl) - (end - start)
	out := make([]string, 0, len(b.lines)+delta)
	out = append(out, b.lines[:start]...)
	out = append(out, repl...)
	out = append(out, b.lines[end:]...)
	if len(out) == 0 {
		out = []string{""}
	}
	b.lines = out
	b.tick++
	b.shiftMarks(start+1, end+1, delta)
}

// ReplaceRange replaces a 1-indexed inclusive range with repl.
func (b *Buffer) ReplaceRange(r Range, repl []string) {
	start, end := b.clamp(r)
	if start > end {
		b.InsertLines(start, repl)
		return
	}
	b.SetLines(start-1, end, repl)
}

// InsertLines inserts repl before the 1-indexed line n.
func (b *Buffer) InsertLines(n int, repl []string) {
	if n < 1 {
		n = 1
	}
	if n > len(b.lines)+1 {
		n = len(b.lines) + 1
	}
	b.SetLines(n-1, n-1, repl)
}

// AppendLines adds repl at the end of the buffer.
func (b *Buffer) AppendLines(repl []string) {
	b.SetLines(len(b.lines), len(b.lines), repl)
}

// SetText replaces the entire buffer content in a single edit.
func (b *Buffer) SetText(text string) {
	b.SetLines(0, len(b.lines), splitLines(text))
}

// PlaceMark registers a position mark at the 1-indexed line and returns its
// handle. The mark follows the line through subsequent edits.
func (b *Buffer) PlaceMark(line int) MarkID {
	b.nextMark++
	id := b.nextMark
	b.marks[id] = &mark{line: line}
	return id
}

// MarkLine resolves a mark back to its current 1-indexed line. Returns
// false when the mark was never placed or has been removed.
func (b *Buffer) MarkLine(id MarkID) (int, bool) {
	m, ok := b.marks[id]
	if !ok {
		return 0, false
	}
	return m.line, true
}

// RemoveMark deletes a mark.
func (b *Buffer) RemoveMark(id MarkID) {
	delete(b.marks, id)
}

// shiftMarks adjusts mark positions after lines [start, end) (1-indexed,
// end-exclusive) were replaced with a region delta lines longer or shorter.
func (b *Buffer) shiftMarks(start, end, delta int) {
	for _, m := range b.marks {
		switch {
		case m.line < start:
			// Before the edit, untouched.
		case m.line >= end:
			m.line += delta
		default:
			// Inside the replaced region: anchor to its start.
			m.line = start
		}
		if m.line < 1 {
			m.line = 1
		}
	}
}

// SaveFile writes the buffer content to path.
func (b *Buffer) SaveFile(path string) error {
	if err := os.WriteFile(path, []byte(b.Text()), 0644); err != nil {
		return fmt.Errorf("failed to save buffer to %s: %w", path, err)
	}
	return nil
}
