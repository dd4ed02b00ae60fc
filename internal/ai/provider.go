// Package ai adapts chat-completion providers to the structured intent
// parser and the conversational tool loop. Providers are tried in a
// configured order; a failing candidate is never retried, the next one in
// the chain is used instead.
package ai

import (
	"context"
	"errors"
)

// Message roles.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one role-tagged entry of a conversation. For RoleTool the
// ToolName/ToolResult pair carries a dispatched tool's output back to the
// model; for RoleAssistant a non-empty ToolName echoes the call it made.
type Message struct {
	Role       Role
	Text       string
	ToolName   string
	ToolArgs   map[string]any
	ToolResult map[string]any
}

// ParamDecl describes one argument of a tool.
type ParamDecl struct {
	Type        string // "string", "number", "integer", "boolean"
	Description string
	Enum        []string
}

// ToolDecl declares a callable tool to the completion provider.
type ToolDecl struct {
	Name        string
	Description string
	Params      map[string]ParamDecl
	Required    []string
}

// ToolCall is a provider's request to execute a named tool.
type ToolCall struct {
	Name string
	Args map[string]any
}

// Completion is the provider's answer: plain text, tool-call requests,
// or both.
type Completion struct {
	Text      string
	ToolCalls []ToolCall
}

// StreamFunc receives incremental text chunks. Returning an error stops
// the upstream request.
type StreamFunc func(chunk string) error

// Provider is a chat-completion backend.
type Provider interface {
	Name() string
	Complete(ctx context.Context, model string, msgs []Message, tools []ToolDecl) (*Completion, error)
	Stream(ctx context.Context, model string, msgs []Message, fn StreamFunc) error
}

// Embedder turns text into a vector. Implementations must be usable
// concurrently.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ModelRef names one candidate in the fallback chain.
type ModelRef struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

var (
	// ErrToolsUnsupported is returned by providers that cannot run the
	// tool-call protocol; the chain moves on to the next candidate.
	ErrToolsUnsupported = errors.New("ai: provider does not support tools")

	// ErrUnavailable means every candidate in the chain failed.
	ErrUnavailable = errors.New("ai: no completion provider available")

	// ErrEmptyResponse is returned when a provider answers with no content.
	ErrEmptyResponse = errors.New("ai: empty response from model")
)
