// Package conflict materializes generated code as git-style conflict
// regions in the buffer text itself. The literal markers are the persisted
// state: a buffer can be edited, saved, and reopened without losing
// unresolved conflicts, and resolution is driven purely by re-scanning.
package conflict

import (
	"github.com/inlay-dev/inlay/pkg/buffer"
)

const (
	// MarkerCurrent opens a conflict region.
	MarkerCurrent = "<<<<<<< CURRENT"
	// MarkerSeparator divides current from incoming.
	MarkerSeparator = "======="
	// MarkerIncoming closes a conflict region.
	MarkerIncoming = ">>>>>>> INCOMING"
)

// Conflict is one well-formed marker region, derived per scan and never
// stored. All line numbers are 1-indexed; a side with no lines has
// End < Start.
type Conflict struct {
	StartLine     int // the <<<<<<< CURRENT line
	CurrentStart  int
	CurrentEnd    int
	SeparatorLine int
	IncomingStart int
	IncomingEnd   int
	EndLine       int // the >>>>>>> INCOMING line
}

// Choice selects how a conflict resolves.
type Choice int

const (
	KeepCurrent Choice = iota
	KeepIncoming
	KeepBoth
	KeepNone
)

// LintFunc is invoked after a resolution that introduces generated code
// into the permanent document. Fire-and-forget; never blocks resolution.
type LintFunc func(buf *buffer.Buffer, startLine, endLine int)

// Engine resolves and navigates conflict regions.
type Engine struct {
	AutoFollow bool
	Lint       LintFunc
}

// NewEngine creates an engine with auto-follow enabled and no linter.
func NewEngine() *Engine {
	return &Engine{AutoFollow: true}
}

// Insert replaces rng with a conflict block: the original text of rng on
// the CURRENT side, newLines on the INCOMING side. The original text is
// preserved verbatim; this is construction, not a merge. An empty or
// inverted range yields a zero-line CURRENT side at rng.StartLine.
func Insert(buf *buffer.Buffer, rng buffer.Range, newLines []string) Conflict {
	var current []string
	if rng.StartLine <= rng.EndLine {
		for n := rng.StartLine; n <= rng.EndLine; n++ {
			if line, ok := buf.Line(n); ok {
				current = append(current, line)
			}
		}
	}

	block := make([]string, 0, len(current)+len(newLines)+3)
	block = append(block, MarkerCurrent)
	block = append(block, current...)
	block = append(block, MarkerSeparator)
	block = append(block, newLines...)
	block = append(block, MarkerIncoming)

	if rng.StartLine <= rng.EndLine {
		buf.ReplaceRange(rng, block)
	} else {
		buf.InsertLines(rng.StartLine, block)
	}

	start := rng.StartLine
	return Conflict{
		StartLine:     start,
		CurrentStart:  start + 1,
		CurrentEnd:    start + len(current),
		SeparatorLine: start + len(current) + 1,
		IncomingStart: start + len(current) + 2,
		IncomingEnd:   start + len(current) + 1 + len(newLines),
		EndLine:       start + len(current) + len(newLines) + 2,
	}
}

// Detect scans the buffer for well-formed conflict regions in order.
// Malformed or partial marker sequences are skipped, never an error. The
// scan is read-only: repeated calls on an unmutated buffer return the same
// result.
func Detect(buf *buffer.Buffer) []Conflict {
	var conflicts []Conflict
	lines := buf.Lines()

	for i := 0; i < len(lines); i++ {
		if lines[i] != MarkerCurrent {
			continue
		}
		sep := -1
		end := -1
		for j := i + 1; j < len(lines); j++ {
			switch lines[j] {
			case MarkerCurrent:
				// A new region opened before this one closed; the partial
				// one is malformed. Restart from here.
				j = len(lines)
			case MarkerSeparator:
				if sep < 0 {
					sep = j
				}
			case MarkerIncoming:
				if sep >= 0 {
					end = j
				}
				j = len(lines)
			}
			if end >= 0 {
				break
			}
		}
		if sep < 0 || end < 0 {
			// No complete region from this marker; skip it.
			continue
		}
		conflicts = append(conflicts, Conflict{
			StartLine:     i + 1,
			CurrentStart:  i + 2,
			CurrentEnd:    sep,
			SeparatorLine: sep + 1,
			IncomingStart: sep + 2,
			IncomingEnd:   end,
			EndLine:       end + 1,
		})
		i = end
	}
	return conflicts
}

// At returns the conflict whose region contains the cursor line.
func At(buf *buffer.Buffer, cursorLine int) (Conflict, bool) {
	for _, c := range Detect(buf) {
		if cursorLine >= c.StartLine && cursorLine <= c.EndLine {
			return c, true
		}
	}
	return Conflict{}, false
}

// currentLines and incomingLines extract the two sides from the live buffer.
func currentLines(buf *buffer.Buffer, c Conflict) []string {
	return bodyLines(buf, c.CurrentStart, c.CurrentEnd)
}

func incomingLines(buf *buffer.Buffer, c Conflict) []string {
	return bodyLines(buf, c.IncomingStart, c.IncomingEnd)
}

func bodyLines(buf *buffer.Buffer, start, end int) []string {
	var out []string
	for n := start; n <= end; n++ {
		if line, ok := buf.Line(n); ok {
			out = append(out, line)
		}
	}
	return out
}

// Resolve replaces the entire marked region of c with exactly the lines the
// choice selects, re-scans, and returns the remaining conflicts. Choices
// that introduce generated code (incoming, both) trigger the lint hook over
// the kept span.
func (e *Engine) Resolve(buf *buffer.Buffer, c Conflict, choice Choice) []Conflict {
	var kept []string
	switch choice {
	case KeepCurrent:
		kept = currentLines(buf, c)
	case KeepIncoming:
		kept = incomingLines(buf, c)
	case KeepBoth:
		kept = append(currentLines(buf, c), incomingLines(buf, c)...)
	case KeepNone:
		kept = nil
	}

	region := buffer.Range{StartLine: c.StartLine, EndLine: c.EndLine}
	buf.ReplaceRange(region, kept)

	if (choice == KeepIncoming || choice == KeepBoth) && e.Lint != nil && len(kept) > 0 {
		e.Lint(buf, c.StartLine, c.StartLine+len(kept)-1)
	}

	return Detect(buf)
}

// ResolveAtCursor resolves the conflict under the cursor. When auto-follow
// is on and conflicts remain, it returns the line of the next conflict to
// present; otherwise it returns 0.
func (e *Engine) ResolveAtCursor(buf *buffer.Buffer, cursorLine int, choice Choice) (nextLine int, resolved bool) {
	c, ok := At(buf, cursorLine)
	if !ok {
		return 0, false
	}
	remaining := e.Resolve(buf, c, choice)
	if e.AutoFollow && len(remaining) > 0 {
		return remaining[0].StartLine, true
	}
	return 0, true
}

// GotoNext returns the start line of the nearest conflict after cursorLine,
// wrapping to the first conflict past the end of the list.
func GotoNext(buf *buffer.Buffer, cursorLine int) (int, bool) {
	conflicts := Detect(buf)
	if len(conflicts) == 0 {
		return 0, false
	}
	for _, c := range conflicts {
		if c.StartLine > cursorLine {
			return c.StartLine, true
		}
	}
	return conflicts[0].StartLine, true
}

// GotoPrev returns the start line of the nearest conflict before
// cursorLine, wrapping to the last conflict past the start of the list.
func GotoPrev(buf *buffer.Buffer, cursorLine int) (int, bool) {
	conflicts := Detect(buf)
	if len(conflicts) == 0 {
		return 0, false
	}
	for i := len(conflicts) - 1; i >= 0; i-- {
		if conflicts[i].StartLine < cursorLine {
			return conflicts[i].StartLine, true
		}
	}
	return conflicts[len(conflicts)-1].StartLine, true
}
