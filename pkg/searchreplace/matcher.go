package searchreplace

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/inlay-dev/inlay/pkg/buffer"
)

// fuzzyThreshold is the minimum Levenshtein similarity for the last-resort
// matching stage.
const fuzzyThreshold = 0.8

// FindMatch locates searchText inside documentText and returns the matched
// line range (1-indexed inclusive), or nil when no stage matches. Stages:
// exact line match, whitespace-normalized line match, then fuzzy similarity
// over a sliding line window.
func FindMatch(documentText, searchText string) *buffer.Range {
	docLines := strings.Split(documentText, "\n")
	searchLines := trimTrailingEmpty(strings.Split(searchText, "\n"))
	if len(searchLines) == 0 {
		return nil
	}

	if r := windowMatch(docLines, searchLines, func(a, b string) bool { return a == b }); r != nil {
		return r
	}
	if r := windowMatch(docLines, searchLines, func(a, b string) bool {
		return collapseSpaces(strings.TrimSpace(a)) == collapseSpaces(strings.TrimSpace(b))
	}); r != nil {
		return r
	}
	return fuzzyMatch(docLines, searchLines)
}

func trimTrailingEmpty(lines []string) []string {
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func windowMatch(docLines, searchLines []string, eq func(a, b string) bool) *buffer.Range {
	n := len(searchLines)
	for i := 0; i+n <= len(docLines); i++ {
		ok := true
		for j := 0; j < n; j++ {
			if !eq(docLines[i+j], searchLines[j]) {
				ok = false
				break
			}
		}
		if ok {
			return &buffer.Range{StartLine: i + 1, EndLine: i + n}
		}
	}
	return nil
}

func fuzzyMatch(docLines, searchLines []string) *buffer.Range {
	n := len(searchLines)
	if n > len(docLines) {
		return nil
	}
	search := strings.Join(searchLines, "\n")

	var best *buffer.Range
	bestSim := 0.0
	for i := 0; i+n <= len(docLines); i++ {
		candidate := strings.Join(docLines[i:i+n], "\n")
		sim := similarity(candidate, search)
		if sim >= fuzzyThreshold && sim > bestSim {
			bestSim = sim
			best = &buffer.Range{StartLine: i + 1, EndLine: i + n}
		}
	}
	return best
}

// similarity is a Levenshtein-based ratio in [0,1] computed with go-diff.
func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(a, b, false)
	distance := dmp.DiffLevenshtein(diffs)
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	return 1.0 - float64(distance)/float64(maxLen)
}

func collapseSpaces(s string) string {
	var b strings.Builder
	inSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' {
			if !inSpace {
				b.WriteByte(' ')
				inSpace = true
			}
		} else {
			b.WriteRune(r)
			inSpace = false
		}
	}
	return b.String()
}

// UnmatchedBlockError reports which block of a multi-block edit could not
// be located in the target.
type UnmatchedBlockError struct {
	Index int // 0-based block index
}

func (e *UnmatchedBlockError) Error() string {
	return fmt.Sprintf("search/replace block %d: search text not found in target", e.Index+1)
}

// ApplyToBuffer applies every block to the buffer atomically: if any
// block's search text cannot be matched, the buffer is left untouched and
// the error names the failing block. Blocks are matched against the
// document as modified by earlier blocks.
func ApplyToBuffer(buf *buffer.Buffer, blocks []Block) error {
	working := buf.Lines()
	for idx, block := range blocks {
		r := FindMatch(strings.Join(working, "\n"), block.Search)
		if r == nil {
			return &UnmatchedBlockError{Index: idx}
		}
		repl := strings.Split(block.Replace, "\n")
		if block.Replace == "" {
			repl = nil
		}
		out := make([]string, 0, len(working)+len(repl))
		out = append(out, working[:r.StartLine-1]...)
		out = append(out, repl...)
		out = append(out, working[r.EndLine:]...)
		working = out
	}
	buf.SetLines(0, buf.LineCount(), working)
	return nil
}
