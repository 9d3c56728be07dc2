// Package events defines the prompt events that flow into the engine and
// the bus that fans assistant events out to connected editors.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/inlay-dev/inlay/pkg/buffer"
	"github.com/inlay-dev/inlay/pkg/inject"
)

// Override is an explicit injection instruction attached to a prompt event
// (e.g. a cursor-insert transform), taking precedence over intent.
type Override struct {
	Strategy inject.Strategy
	Range    *buffer.Range
}

// PromptEvent is one prompt submission, inline or from a companion file.
type PromptEvent struct {
	ID           string
	Prompt       string
	SourceBuffer *buffer.Buffer
	TargetPath   string
	Language     string
	TagRange     *buffer.Range // span of the /@ ... @/ markers in the source
	ScopeRange   *buffer.Range // enclosing scope, when resolution succeeded
	Override     *Override
	SubmittedAt  time.Time
}

// NewPromptEvent creates an event with a fresh correlation ID.
func NewPromptEvent(prompt string, source *buffer.Buffer, targetPath string) *PromptEvent {
	return &PromptEvent{
		ID:           uuid.NewString(),
		Prompt:       prompt,
		SourceBuffer: source,
		TargetPath:   targetPath,
		SubmittedAt:  time.Now(),
	}
}

// Event types published on the bus.
const (
	TypePatchApplied   = "patch_applied"
	TypePatchStale     = "patch_stale"
	TypePatchRejected  = "patch_rejected"
	TypeConflictStaged = "conflict_staged"
	TypeGenerationErr  = "generation_error"
	TypeLintResult     = "lint_result"
	TypeExplanation    = "explanation"
)

// Event is one assistant-side occurrence forwarded to subscribers.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// Bus distributes events to subscribers. Slow subscribers are skipped, not
// waited for: the engine loop must never block on a consumer.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]chan Event
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[string]chan Event)}
}

// Subscribe registers a named subscriber and returns its channel.
func (b *Bus) Subscribe(name string) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, 100)
	b.subscribers[name] = ch
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subscribers[name]; ok {
		delete(b.subscribers, name)
		close(ch)
	}
}

// Publish broadcasts an event to all subscribers without blocking.
func (b *Bus) Publish(eventType string, data any) {
	event := Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}
	b.mu.RLock()
	subs := make([]chan Event, 0, len(b.subscribers))
	for _, ch := range b.subscribers {
		subs = append(subs, ch)
	}
	b.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- event:
		default:
			// Full channel: drop rather than stall the publisher.
		}
	}
}
