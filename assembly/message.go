// Package assembly builds the ordered list of role-tagged messages that Lucid
// sends to a model backend.
//
// Assembly is deterministic and network-free. In dev mode the list is the raw
// user message alone; otherwise it is the system prompt, then any retrieved
// context, then the user message. Nothing is reordered, deduplicated,
// truncated or validated.
package assembly

import (
	"context"
	"fmt"
	"strings"
)

// Role identifies the author of a message.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Message is a single role-tagged entry. Its position in a slice is
// significant: messages are transmitted in slice order.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Layout controls how context chunks are turned into system messages.
type Layout string

const (
	// LayoutChunks emits one system message per context chunk.
	LayoutChunks Layout = "chunks"

	// LayoutCombined emits a single system message holding every chunk,
	// prefixed by ContextLabel.
	LayoutCombined Layout = "combined"
)

// ContextLabel prefixes the combined context block.
const ContextLabel = "Context:\n"

// combinedSeparator joins chunks inside the combined block.
const combinedSeparator = "\n\n"

// ParseLayout maps a configuration string to a Layout. The empty string
// selects LayoutChunks.
func ParseLayout(s string) (Layout, error) {
	switch Layout(s) {
	case "", LayoutChunks:
		return LayoutChunks, nil
	case LayoutCombined:
		return LayoutCombined, nil
	default:
		return "", fmt.Errorf("unknown context layout %q", s)
	}
}

// Build returns the messages for input.
//
// With devMode set the result is exactly [{user, input}], whatever the
// system prompt and chunks are. Otherwise the system prompt always opens the
// list, even when empty, the chunks follow according to layout and the user
// message closes it.
func Build(input string, devMode bool, systemPrompt string, chunks []string, layout Layout) []Message {
	if devMode {
		return []Message{{Role: RoleUser, Content: input}}
	}

	messages := make([]Message, 0, len(chunks)+2)
	messages = append(messages, Message{Role: RoleSystem, Content: systemPrompt})

	switch {
	case len(chunks) == 0:
	case layout == LayoutCombined:
		messages = append(messages, Message{
			Role:    RoleSystem,
			Content: ContextLabel + strings.Join(chunks, combinedSeparator),
		})
	default:
		for _, chunk := range chunks {
			messages = append(messages, Message{Role: RoleSystem, Content: chunk})
		}
	}

	return append(messages, Message{Role: RoleUser, Content: input})
}

// Composer binds a system prompt, a context provider and a layout so that
// callers only supply the user input and the mode flag.
type Composer struct {
	SystemPrompt string
	Context      ContextProvider
	Layout       Layout
}

// Compose retrieves context for input and builds the message list. The
// context provider is not consulted in dev mode.
func (c Composer) Compose(ctx context.Context, input string, devMode bool) ([]Message, error) {
	if devMode {
		return Build(input, true, "", nil, c.Layout), nil
	}

	provider := c.Context
	if provider == nil {
		provider = NoContext{}
	}

	chunks, err := provider.Retrieve(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}

	return Build(input, false, c.SystemPrompt, chunks, c.Layout), nil
}

// Transcript flattens messages into newline-joined "role: content" lines.
// Role boundaries inside content are not escaped.
func Transcript(messages []Message) string {
	lines := make([]string, len(messages))
	for i, msg := range messages {
		lines[i] = string(msg.Role) + ": " + msg.Content
	}
	return strings.Join(lines, "\n")
}
