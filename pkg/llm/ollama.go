package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	ollama "github.com/ollama/ollama/api"
)

// Ollama generates code through a local ollama server.
type Ollama struct {
	Model   string
	Timeout time.Duration
}

// NewOllama creates a provider for the given model with a default timeout.
func NewOllama(model string) *Ollama {
	return &Ollama{Model: model, Timeout: 120 * time.Second}
}

// Name returns the provider name.
func (o *Ollama) Name() string { return "ollama" }

// Generate sends the prompt with file context and accumulates the streamed
// response into a single string.
func (o *Ollama) Generate(ctx context.Context, req Request) (string, error) {
	system := fmt.Sprintf(
		"You are a code assistant embedded in an editor. The user is editing %s (%s). "+
			"Respond with code only, no prose, unless asked to explain.",
		req.FilePath, req.Language)
	user := req.Prompt
	if req.FileContent != "" {
		user = fmt.Sprintf("File content:\n```%s\n%s\n```\n\nTask: %s",
			req.Language, req.FileContent, req.Prompt)
	}
	return o.chat(ctx, []ollama.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	})
}

// Validate asks the model to review code for problems; returns its notes.
func (o *Ollama) Validate(ctx context.Context, code, language string) (string, error) {
	return o.chat(ctx, []ollama.Message{
		{Role: "system", Content: "Review the following code for defects. Reply 'OK' if none."},
		{Role: "user", Content: fmt.Sprintf("```%s\n%s\n```", language, code)},
	})
}

func (o *Ollama) chat(ctx context.Context, messages []ollama.Message) (string, error) {
	client, err := ollama.ClientFromEnvironment()
	if err != nil {
		return "", fmt.Errorf("could not create ollama client: %w", err)
	}

	// The model name may arrive with the "ollama:" routing prefix.
	model := strings.TrimPrefix(o.Model, "ollama:")

	totalChars := 0
	for _, m := range messages {
		totalChars += len(m.Content)
	}
	// num_ctx sized to the input with headroom, floored at 4096.
	numCtx := totalChars/4 + 1000
	if numCtx < 4096 {
		numCtx = 4096
	}

	req := &ollama.ChatRequest{
		Model:    model,
		Messages: messages,
		Options: map[string]interface{}{
			"temperature": 0.2,
			"num_ctx":     numCtx,
		},
	}

	ctx, cancel := context.WithTimeout(ctx, o.Timeout)
	defer cancel()

	var sb strings.Builder
	respFunc := func(res ollama.ChatResponse) error {
		sb.WriteString(res.Message.Content)
		return nil
	}
	if err := client.Chat(ctx, req, respFunc); err != nil {
		return "", fmt.Errorf("ollama chat failed: %w", err)
	}
	return sb.String(), nil
}
