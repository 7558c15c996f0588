// Package transport carries narrative prompts to an AI provider and returns
// the free-text reply the engine parses for outcomes.
package transport

import "context"

// Role identifies who authored a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the conversation sent to the provider.
type Message struct {
	Role    Role
	Content string
}

// Invoker sends a conversation to a provider and returns its reply text.
type Invoker interface {
	Invoke(ctx context.Context, messages []Message) (string, error)
}
