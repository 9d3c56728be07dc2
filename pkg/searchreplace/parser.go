// Package searchreplace parses fenced SEARCH/REPLACE edit blocks out of
// generation responses and applies them to buffers with matching tolerant
// of the whitespace drift LLM output tends to introduce.
package searchreplace

import "strings"

const (
	markerSearch  = "<<<<<<< SEARCH"
	markerDivider = "======="
	markerReplace = ">>>>>>> REPLACE"
)

// Block is one parsed edit instruction: text expected to exist in the
// target, and its replacement.
type Block struct {
	Search  string
	Replace string
}

// ParseBlocks extracts every well-formed SEARCH/REPLACE block from a
// response. Malformed or unterminated blocks are skipped; zero blocks is a
// normal outcome meaning the response is plain code, not an edit script.
func ParseBlocks(response string) []Block {
	var blocks []Block
	lines := strings.Split(response, "\n")
	i := 0

	for i < len(lines) {
		if !isMarker(lines[i], markerSearch) {
			i++
			continue
		}
		i++

		var search []string
		foundDivider := false
		for i < len(lines) {
			if isMarker(lines[i], markerDivider) {
				foundDivider = true
				i++
				break
			}
			if isMarker(lines[i], markerSearch) {
				// New block started before this one closed; restart there.
				break
			}
			search = append(search, lines[i])
			i++
		}
		if !foundDivider {
			continue
		}

		var replace []string
		foundEnd := false
		for i < len(lines) {
			if isMarker(lines[i], markerReplace) {
				foundEnd = true
				i++
				break
			}
			if isMarker(lines[i], markerSearch) {
				break
			}
			replace = append(replace, lines[i])
			i++
		}
		if !foundEnd {
			continue
		}

		blocks = append(blocks, Block{
			Search:  strings.Join(search, "\n"),
			Replace: strings.Join(replace, "\n"),
		})
	}
	return blocks
}

// ReplaceHalves concatenates the replacement sections of all blocks. It is
// the degraded-output fallback when matching fails: the replacement text is
// still useful as plain code, while unresolved markers never are.
func ReplaceHalves(blocks []Block) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		parts = append(parts, b.Replace)
	}
	return strings.Join(parts, "\n")
}

func isMarker(line, marker string) bool {
	return strings.TrimSpace(line) == marker
}
