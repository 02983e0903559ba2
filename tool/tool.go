// Package tool implements the function / tool calling subsystem that lets
// pipelines invoke structured capabilities (APIs, computations, side-effects)
// with schema validated arguments and consistent error handling.
package tool

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentrun/internal/util"
	"github.com/hupe1980/agentrun/logging"
	"github.com/hupe1980/agentrun/store"
)

// Context carries the per-invocation environment handed to every tool call:
// the cancellation context, the owning agent and thread identities, the
// function call id for correlation, skill-scoped persistence and a logger.
type Context struct {
	ctx      context.Context
	agentID  string
	threadID string
	callID   string
	skills   store.SkillStore
	logger   logging.Logger
}

// NewContext constructs a tool invocation context. A nil logger is replaced
// with a NoOpLogger.
func NewContext(ctx context.Context, agentID, threadID, callID string, skills store.SkillStore, logger logging.Logger) *Context {
	return &Context{
		ctx:      ctx,
		agentID:  agentID,
		threadID: threadID,
		callID:   callID,
		skills:   skills,
		logger:   logging.OrNoOp(logger),
	}
}

// Context returns the cancellation context of the surrounding invocation.
func (c *Context) Context() context.Context { return c.ctx }

// AgentID returns the identity of the agent owning this invocation.
func (c *Context) AgentID() string { return c.agentID }

// ThreadID returns the conversation thread of this invocation.
func (c *Context) ThreadID() string { return c.threadID }

// FunctionCallID correlates the model's function call with its execution.
func (c *Context) FunctionCallID() string { return c.callID }

// Skills exposes skill-scoped key/value persistence; nil when the runtime
// was assembled without a skill store.
func (c *Context) Skills() store.SkillStore { return c.skills }

// Logger returns the invocation logger (never nil).
func (c *Context) Logger() logging.Logger { return c.logger }

// Tool defines the interface for extending pipeline capabilities with
// external functions.
//
// Tools can be resolved into a pipeline to enable function calling, allowing
// the model to perform actions beyond text generation such as API calls,
// calculations or state mutations. Implementations should:
//   - Provide clear, descriptive names and descriptions
//   - Define proper JSON schema for parameters
//   - Handle errors gracefully
//   - Be thread-safe if used concurrently
type Tool interface {
	// Name returns the unique identifier for this tool.
	// Names should be descriptive and follow function naming conventions (snake_case recommended).
	Name() string

	// Description returns a human-readable description of what this tool does.
	// This description is provided to the LLM to help it understand when and how to use the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected input format.
	// This schema is used for parameter validation and LLM function calling.
	Parameters() map[string]interface{}

	// Call executes the tool with structured arguments and the invocation
	// Context. Arguments are parsed from JSON and validated against the
	// tool's schema before execution.
	Call(toolCtx *Context, args map[string]interface{}) (interface{}, error)
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string      `json:"tool"`              // Name of the tool that failed
	Message string      `json:"message"`           // Error message
	Code    string      `json:"code"`              // Error code for categorization
	Details interface{} `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}
