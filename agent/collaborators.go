package agent

import "context"

// This file defines the narrow boundary interfaces the runtime
// consumes (spec §6). Concrete implementations — a SQLite-backed
// memory store, a provider-specific LLM driver, a sandboxed tool
// executor, a Telegram/Slack/etc. channel adapter — are deliberately
// out of scope; only the contracts live here.

// MemoryScope partitions an agent's memory substrate.
type MemoryScope int

const (
	ScopeStructured MemoryScope = iota
	ScopeSemantic
	ScopeGraph
)

// MemoryStore is the narrow interface the runtime uses to read and
// write an agent's persistent memory.
type MemoryStore interface {
	Put(ctx context.Context, scope MemoryScope, key string, value any) error
	Get(ctx context.Context, scope MemoryScope, key string) (any, bool, error)
	Search(ctx context.Context, scope MemoryScope, query string, limit int) ([]any, error)
	Delete(ctx context.Context, scope MemoryScope, key string) error
	Consolidate(ctx context.Context) error
}

// Message is one turn of conversation history fed to the LLM driver.
type Message struct {
	Role    string // "system" | "user" | "assistant" | "tool"
	Content string
}

// ToolDefinition is a provider-agnostic tool schema, normalized per
// provider before being handed to a driver (see NormalizeSchemaForProvider).
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// ToolCall is a single invocation the model requested.
type ToolCall struct {
	ID    string
	Name  string
	Input map[string]any
}

// LLMRequest is a single completion or streaming request.
type LLMRequest struct {
	Model    string
	Messages []Message
	Tools    []ToolDefinition
}

// LLMResponse is the driver's result: final text plus any tool calls
// the model requested, in the order it requested them.
type LLMResponse struct {
	Text      string
	ToolCalls []ToolCall
}

// StreamChunk is one increment of a streaming response.
type StreamChunk struct {
	TextDelta string
	ToolCalls []ToolCall // populated only on the final chunk
	Final     bool
}

// LLMDriver adapts one provider. Every call is expected to be wrapped
// by Retry at the call site (see LLMRetryConfig).
type LLMDriver interface {
	Complete(ctx context.Context, req LLMRequest) (LLMResponse, error)
	Stream(ctx context.Context, req LLMRequest, sink func(StreamChunk) error) (LLMResponse, error)
}

// ToolResult is what a tool invocation returns to the model.
type ToolResult struct {
	ToolUseID string
	Content   string
	IsError   bool
}

// ToolExecutor invokes a named tool. It owns its own sandboxing; the
// runtime only checks capability/taint/quota before calling it.
type ToolExecutor interface {
	Invoke(ctx context.Context, toolName string, args map[string]any) (ToolResult, error)
}

// ChannelMessage is a normalized inbound message from a channel
// adapter.
type ChannelMessage struct {
	UserID  string
	Content string
}

// ChannelAdapter is an asynchronous message source/sink for one chat
// platform.
type ChannelAdapter interface {
	Start(ctx context.Context) (<-chan ChannelMessage, error)
	Send(ctx context.Context, user, content string) error
	Stop(ctx context.Context) error
}
