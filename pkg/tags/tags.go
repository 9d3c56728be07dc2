// Package tags finds and removes the /@ ... @/ prompt tags users write
// into buffers. The tag text between the markers is the prompt; the marker
// span is what gets deleted (or replaced) once generation lands.
package tags

import (
	"strings"

	"github.com/inlay-dev/inlay/pkg/buffer"
)

const (
	// OpenTag starts an inline prompt.
	OpenTag = "/@"
	// CloseTag ends an inline prompt.
	CloseTag = "@/"
)

// Tag is one prompt tag found in a buffer.
type Tag struct {
	Prompt string
	Range  buffer.Range // lines spanned by the markers, 1-indexed inclusive
	Inline bool         // open and close markers on the same line
}

// Find scans the buffer for well-formed tags, in document order. An open
// marker with no close marker is ignored; the user is still typing it.
func Find(buf *buffer.Buffer) []Tag {
	var tags []Tag
	lines := buf.Lines()

	for i := 0; i < len(lines); i++ {
		openCol := strings.Index(lines[i], OpenTag)
		if openCol < 0 {
			continue
		}
		rest := lines[i][openCol+len(OpenTag):]

		if closeCol := strings.Index(rest, CloseTag); closeCol >= 0 {
			tags = append(tags, Tag{
				Prompt: strings.TrimSpace(rest[:closeCol]),
				Range:  buffer.Range{StartLine: i + 1, EndLine: i + 1},
				Inline: true,
			})
			continue
		}

		// Multi-line: collect until the close marker.
		var parts []string
		if p := strings.TrimSpace(rest); p != "" {
			parts = append(parts, p)
		}
		closed := false
		for j := i + 1; j < len(lines); j++ {
			if closeCol := strings.Index(lines[j], CloseTag); closeCol >= 0 {
				if p := strings.TrimSpace(lines[j][:closeCol]); p != "" {
					parts = append(parts, p)
				}
				tags = append(tags, Tag{
					Prompt: strings.Join(parts, " "),
					Range:  buffer.Range{StartLine: i + 1, EndLine: j + 1},
					Inline: false,
				})
				i = j
				closed = true
				break
			}
			if p := strings.TrimSpace(lines[j]); p != "" {
				parts = append(parts, p)
			}
		}
		if !closed {
			break
		}
	}
	return tags
}

// Remove deletes a tag's marker text from the buffer. Single-line tags
// collapse to the remaining non-tag text on that line (the line itself is
// deleted when nothing remains). Multi-line tags drop every interior line
// and splice the leading text of the open line together with the trailing
// text of the close line.
func Remove(buf *buffer.Buffer, tag Tag) {
	lines := buf.Lines()
	start, end := tag.Range.StartLine, tag.Range.EndLine
	if start < 1 || end > len(lines) {
		return
	}

	openLine := lines[start-1]
	openCol := strings.Index(openLine, OpenTag)
	if openCol < 0 {
		return
	}
	leading := openLine[:openCol]

	if tag.Inline {
		rest := openLine[openCol+len(OpenTag):]
		closeCol := strings.Index(rest, CloseTag)
		if closeCol < 0 {
			return
		}
		trailing := rest[closeCol+len(CloseTag):]
		remainder := leading + trailing
		if strings.TrimSpace(remainder) == "" {
			buf.ReplaceRange(tag.Range, nil)
		} else {
			buf.ReplaceRange(tag.Range, []string{remainder})
		}
		return
	}

	closeLine := lines[end-1]
	closeCol := strings.Index(closeLine, CloseTag)
	if closeCol < 0 {
		return
	}
	trailing := closeLine[closeCol+len(CloseTag):]
	remainder := leading + trailing
	if strings.TrimSpace(remainder) == "" {
		buf.ReplaceRange(tag.Range, nil)
	} else {
		buf.ReplaceRange(tag.Range, []string{remainder})
	}
}
