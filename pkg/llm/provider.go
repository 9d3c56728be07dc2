// Package llm defines the generation-provider capability set the core
// depends on, plus the ollama implementation and the accuracy bookkeeping
// used to pick between providers. The core never branches on vendor names;
// it only sees these interfaces.
package llm

import "context"

// Request carries one generation request. The core does not care which
// vendor serves it.
type Request struct {
	Prompt      string
	Language    string
	FilePath    string
	FileContent string
}

// Provider is the minimal capability set every vendor client implements.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
	Validate(ctx context.Context, code, language string) (string, error)
}

// ToolCapable is the optional extension for vendors that support tool use.
type ToolCapable interface {
	Provider
	GenerateWithTools(ctx context.Context, req Request, tools []ToolSpec) (string, error)
}

// ToolSpec describes one tool offered to a tool-capable provider.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]any
}

// Completion is the async completion callback: exactly one of text or err
// is meaningful.
type Completion func(text string, err error)
