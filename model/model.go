// Package model defines the minimal interface the runtime needs from a chat
// completion provider plus the normalized request/response structures shared
// by all vendor adapters. Concrete adapters live in subpackages (openai,
// anthropic); a MockModel is provided for tests and examples.
package model

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentrun/core"
)

// ToolCall represents a function call request surfaced by a model provider.
// Unified across vendors so downstream logic does not need per-provider branching.
type ToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"` // "function"
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction describes the concrete function target of a tool call.
type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON string of arguments
}

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the model.
// Parameters is a JSON Schema object (draft agnostic, minimal subset expected).
type FunctionDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"` // JSON Schema
}

// Request captures the normalized model input produced by the engine.
type Request struct {
	Instructions string           `json:"instructions"` // System prompt for the model
	Contents     []core.Content   `json:"contents"`     // Conversation history plus current turn
	Tools        []ToolDefinition `json:"tools,omitempty"`
	Stream       bool             `json:"stream,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a streaming model.
type Response struct {
	ID           string       `json:"id"`
	Partial      bool         `json:"partial"` // Indicates if this is a partial response
	Content      core.Content `json:"content"`
	FinishReason string       `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "deepseek", etc.
	SupportsTools bool   `json:"supports_tools"`
	// InputTokenLimit is the effective context budget the runtime should
	// assume for this binding. Zero means no declared limit.
	InputTokenLimit int `json:"input_token_limit,omitempty"`
}

// Model is the minimal interface required by the engine to drive generation.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// MockModel is a lightweight in-memory Model useful for tests & examples.
// Besides canned text completions it can stage tool call rounds: a staged
// round is emitted as a tool_calls response once, after which generation
// falls back to text completions.
type MockModel struct {
	info      Info
	responses map[string]string
	toolCalls [][]core.FunctionCall
	calls     int
}

// NewMockModel constructs a MockModel with basic tool support enabled.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info: Info{
			Name:          name,
			Provider:      provider,
			SupportsTools: true,
		},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) { m.responses[prompt] = response }

// StageToolCalls queues a round of function calls emitted by the next
// Generate invocation instead of a text completion.
func (m *MockModel) StageToolCalls(calls ...core.FunctionCall) {
	m.toolCalls = append(m.toolCalls, calls)
}

// Calls reports how many Generate invocations the mock has served.
func (m *MockModel) Calls() int { return m.calls }

// Generate implements Model; emits staged tool call rounds first, then
// canned (or echo) text completions.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)
	m.calls++

	var staged []core.FunctionCall
	if len(m.toolCalls) > 0 {
		staged = m.toolCalls[0]
		m.toolCalls = m.toolCalls[1:]
	}

	go func() {
		defer close(respCh)
		defer close(errCh)
		if len(req.Contents) == 0 {
			errCh <- fmt.Errorf("no contents provided")
			return
		}
		if len(staged) > 0 {
			parts := make([]core.Part, 0, len(staged))
			for _, fc := range staged {
				parts = append(parts, core.FunctionCallPart{FunctionCall: fc})
			}
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
			case respCh <- Response{
				Partial:      false,
				Content:      core.Content{Role: "assistant", Parts: parts},
				FinishReason: "tool_calls",
			}:
			}
			return
		}
		last := req.Contents[len(req.Contents)-1]
		inputText := last.Text()
		full := m.responses[inputText]
		if full == "" {
			full = fmt.Sprintf("Mock response to: %s", inputText)
		}
		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case respCh <- Response{
			Partial:      false,
			Content:      core.Content{Role: "assistant", Parts: []core.Part{core.TextPart{Text: full}}},
			FinishReason: "stop",
		}:
		}
	}()
	return respCh, errCh
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }
