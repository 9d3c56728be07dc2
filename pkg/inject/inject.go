// Package inject performs the literal buffer mutations for a patch:
// placing generated code per strategy and folding import-style statements
// into the file's import region instead of leaving them mid-file.
package inject

import (
	"fmt"
	"sort"
	"strings"

	"github.com/inlay-dev/inlay/pkg/buffer"
)

// Strategy selects how generated code lands in the target buffer.
type Strategy string

const (
	StrategyAppend        Strategy = "append"
	StrategyReplace       Strategy = "replace"
	StrategyInsert        Strategy = "insert"
	StrategySearchReplace Strategy = "search_replace"
)

// Options configure one injection.
type Options struct {
	Strategy    Strategy
	Range       *buffer.Range // required for replace/insert
	Filetype    string
	SortImports bool
}

// Result summarizes what an injection did.
type Result struct {
	ImportsAdded  int // import lines newly added to the import region
	ImportsMerged int // import lines from the code that already existed
	BodyLines     int // non-import lines placed at the target position
}

// Inject splits code into import statements and body per the filetype,
// places the body per the strategy, and merges the imports into the top of
// the file when SortImports is set. It performs exactly one buffer edit for
// the body and at most one for the import region.
func Inject(buf *buffer.Buffer, code string, opts Options) (Result, error) {
	var res Result

	codeLines := strings.Split(code, "\n")
	var imports, body []string
	if opts.SortImports {
		imports, body = splitImports(codeLines, opts.Filetype)
	} else {
		body = codeLines
	}
	body = trimBlankEdges(body)
	res.BodyLines = len(body)

	switch opts.Strategy {
	case StrategyReplace:
		if opts.Range == nil {
			return res, fmt.Errorf("replace strategy requires a range")
		}
		buf.ReplaceRange(*opts.Range, body)
	case StrategyInsert:
		if opts.Range == nil {
			return res, fmt.Errorf("insert strategy requires a range")
		}
		buf.InsertLines(opts.Range.StartLine, body)
	case StrategyAppend:
		buf.AppendLines(body)
	default:
		return res, fmt.Errorf("unsupported injection strategy: %s", opts.Strategy)
	}

	if len(imports) > 0 {
		added, merged := mergeImports(buf, imports, opts.Filetype)
		res.ImportsAdded = added
		res.ImportsMerged = merged
	}
	return res, nil
}

func trimBlankEdges(lines []string) []string {
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// splitImports separates import-style lines from the rest of the code.
func splitImports(lines []string, filetype string) (imports, body []string) {
	inBlock := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case filetype == "go" && trimmed == "import (":
			inBlock = true
		case filetype == "go" && inBlock && trimmed == ")":
			inBlock = false
		case filetype == "go" && inBlock:
			if trimmed != "" {
				imports = append(imports, trimmed)
			}
		case isImportLine(trimmed, filetype):
			imports = append(imports, trimmed)
		default:
			body = append(body, line)
		}
	}
	return imports, body
}

func isImportLine(trimmed, filetype string) bool {
	switch filetype {
	case "go":
		return strings.HasPrefix(trimmed, "import ")
	case "python":
		return strings.HasPrefix(trimmed, "import ") || strings.HasPrefix(trimmed, "from ")
	case "javascript", "typescript":
		return strings.HasPrefix(trimmed, "import ") ||
			(strings.HasPrefix(trimmed, "const ") && strings.Contains(trimmed, "require("))
	default:
		return false
	}
}

// mergeImports folds new import lines into the buffer's import region at
// the top of the file, deduplicating and sorting. Returns how many lines
// were added vs already present.
func mergeImports(buf *buffer.Buffer, newImports []string, filetype string) (added, merged int) {
	lines := buf.Lines()
	regionStart, regionEnd, existing := importRegion(lines, filetype)

	seen := make(map[string]bool, len(existing))
	for _, imp := range existing {
		seen[normalizeImport(imp, filetype)] = true
	}

	all := append([]string{}, existing...)
	for _, imp := range newImports {
		imp = normalizeImport(imp, filetype)
		if seen[imp] {
			merged++
			continue
		}
		seen[imp] = true
		all = append(all, imp)
		added++
	}
	if added == 0 {
		return added, merged
	}
	sort.Strings(all)

	region := renderImportRegion(all, filetype)
	buf.SetLines(regionStart, regionEnd, region)
	return added, merged
}

// importRegion finds the contiguous import area near the top of the file
// (0-indexed start, end-exclusive) and the normalized statements in it. If
// none exists it returns the insertion point after the file preamble.
func importRegion(lines []string, filetype string) (start, end int, existing []string) {
	i := preambleEnd(lines, filetype)

	start = i
	inBlock := false
	for ; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		switch {
		case filetype == "go" && trimmed == "import (":
			inBlock = true
		case filetype == "go" && inBlock && trimmed == ")":
			inBlock = false
		case filetype == "go" && inBlock:
			if trimmed != "" {
				existing = append(existing, trimmed)
			}
		case isImportLine(trimmed, filetype):
			existing = append(existing, normalizeImport(trimmed, filetype))
		case trimmed == "" && (len(existing) == 0 || i == start):
			// Blank lines before any import shift the region start.
			start = i + 1
		case trimmed == "":
			// Blank line inside the import area; tolerated.
		default:
			return start, trimTrailingBlanks(lines, start, i), existing
		}
	}
	return start, trimTrailingBlanks(lines, start, i), existing
}

func trimTrailingBlanks(lines []string, start, end int) int {
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return end
}

// preambleEnd returns the first line index past the file preamble (package
// clause, shebang, leading comments) where imports may begin.
func preambleEnd(lines []string, filetype string) int {
	i := 0
	for ; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		switch {
		case trimmed == "":
		case filetype == "go" && strings.HasPrefix(trimmed, "package "):
		case strings.HasPrefix(trimmed, "#!"):
		case strings.HasPrefix(trimmed, "//"), strings.HasPrefix(trimmed, "#"):
		default:
			return i
		}
		if filetype == "go" && strings.HasPrefix(trimmed, "package ") {
			return i + 1
		}
	}
	return i
}

// normalizeImport strips the per-line "import " prefix Go uses inside
// blocks so dedup compares specs, not formatting.
func normalizeImport(line, filetype string) string {
	trimmed := strings.TrimSpace(line)
	if filetype == "go" {
		trimmed = strings.TrimPrefix(trimmed, "import ")
	}
	return trimmed
}

// renderImportRegion renders the merged statements back as file text.
func renderImportRegion(specs []string, filetype string) []string {
	if filetype != "go" {
		return specs
	}
	if len(specs) == 1 {
		return []string{"import " + specs[0]}
	}
	out := make([]string, 0, len(specs)+2)
	out = append(out, "import (")
	for _, s := range specs {
		out = append(out, "\t"+s)
	}
	out = append(out, ")")
	return out
}
