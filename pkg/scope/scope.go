// Package scope resolves the enclosing semantic construct (function, class,
// block) around a buffer line using tree-sitter. A miss is a normal result:
// callers fall back to the prompt tag range, never treat it as an error.
package scope

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
)

// Scope describes one enclosing construct, lines 1-indexed inclusive.
type Scope struct {
	Type      string // "function", "class", or "block"
	Name      string
	StartLine int
	EndLine   int
}

// nodeKinds maps tree-sitter node types to scope types, per language.
var nodeKinds = map[string]map[string]string{
	"go": {
		"function_declaration": "function",
		"method_declaration":   "function",
		"func_literal":         "function",
		"type_declaration":     "class",
		"block":                "block",
	},
	"python": {
		"function_definition": "function",
		"class_definition":    "class",
		"block":               "block",
	},
	"javascript": {
		"function_declaration": "function",
		"method_definition":    "function",
		"arrow_function":       "function",
		"class_declaration":    "class",
		"statement_block":      "block",
	},
}

// Resolver parses buffer text and walks the syntax tree for enclosing
// scopes. One parser per language, reused across calls.
type Resolver struct {
	parsers map[string]*sitter.Parser
}

// NewResolver creates a resolver for the supported languages.
func NewResolver() *Resolver {
	r := &Resolver{parsers: make(map[string]*sitter.Parser)}
	for lang, language := range map[string]*sitter.Language{
		"go":         golang.GetLanguage(),
		"python":     python.GetLanguage(),
		"javascript": javascript.GetLanguage(),
		"typescript": javascript.GetLanguage(),
	} {
		p := sitter.NewParser()
		p.SetLanguage(language)
		r.parsers[lang] = p
	}
	return r
}

// Close releases parser resources.
func (r *Resolver) Close() {
	for _, p := range r.parsers {
		p.Close()
	}
}

// Resolve finds the innermost function/class/block enclosing the 1-indexed
// line. Returns false for unsupported filetypes, parse failures, or when no
// enclosing construct exists.
func (r *Resolver) Resolve(filetype string, source []byte, line int) (Scope, bool) {
	parser, ok := r.parsers[filetype]
	if !ok {
		return Scope{}, false
	}
	kinds := nodeKinds[kindKey(filetype)]

	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil || tree == nil {
		return Scope{}, false
	}
	defer tree.Close()

	// Walk down the branch containing the line, remembering the deepest
	// named construct and the deepest bare block separately: a function's
	// own body block must not shadow the function.
	row := uint32(line - 1)
	var bestNamed, bestBlock *sitter.Node
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		for i := 0; i < int(n.ChildCount()); i++ {
			child := n.Child(i)
			if child.StartPoint().Row > row || child.EndPoint().Row < row {
				continue
			}
			switch kinds[child.Type()] {
			case "function", "class":
				bestNamed = child
			case "block":
				bestBlock = child
			}
			walk(child)
		}
	}
	walk(tree.RootNode())

	best := bestNamed
	if best == nil {
		best = bestBlock
	}
	if best == nil {
		return Scope{}, false
	}

	s := Scope{
		Type:      kinds[best.Type()],
		StartLine: int(best.StartPoint().Row) + 1,
		EndLine:   int(best.EndPoint().Row) + 1,
	}
	if nameNode := best.ChildByFieldName("name"); nameNode != nil {
		s.Name = nameNode.Content(source)
	}
	return s, true
}

func kindKey(filetype string) string {
	if filetype == "typescript" {
		return "javascript"
	}
	return filetype
}
