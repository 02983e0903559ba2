// Package engine is the agent runtime manager: it compiles stored agent
// configurations into executable pipelines, caches them process-wide with
// config-driven staleness detection, drives executions as streams of labeled,
// timed segments and purges persisted agent state on demand.
package engine

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentrun/logging"
	"github.com/hupe1980/agentrun/memory"
	"github.com/hupe1980/agentrun/model"
	"github.com/hupe1980/agentrun/skill"
	"github.com/hupe1980/agentrun/store"
	"github.com/hupe1980/agentrun/tool"
)

// Pipeline is the compiled, invocable unit for one agent: a bound model, a
// deduplicated toolset, a rendered system prompt and a handle to durable
// memory. A pipeline is never mutated after construction; rebuilds replace it
// wholesale.
type Pipeline struct {
	AgentID string
	Model   model.Model
	Tools   []tool.Tool
	Prompt  string
	Memory  memory.Store
}

// ToolDefinitions projects the toolset into the declarative form handed to
// the model.
func (p *Pipeline) ToolDefinitions() []model.ToolDefinition {
	if len(p.Tools) == 0 {
		return nil
	}
	defs := make([]model.ToolDefinition, 0, len(p.Tools))
	for _, t := range p.Tools {
		defs = append(defs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return defs
}

// findTool returns the tool with the given name, or nil.
func (p *Pipeline) findTool(name string) tool.Tool {
	for _, t := range p.Tools {
		if t.Name() == name {
			return t
		}
	}
	return nil
}

// BuilderOptions configures a Builder.
type BuilderOptions struct {
	// SystemPromptPrefix is a global prefix rendered ahead of every agent
	// prompt; empty disables it.
	SystemPromptPrefix string

	Logger logging.Logger
}

// Builder assembles compiled pipelines from stored configuration.
type Builder struct {
	store    store.Store
	skills   store.SkillStore
	memory   memory.Store
	resolver skill.Resolver
	binder   ModelBinder
	opts     BuilderOptions
}

// NewBuilder constructs a Builder over the given collaborators. The memory
// store is shared across all pipelines; thread scoping happens at execution
// time.
func NewBuilder(st store.Store, skills store.SkillStore, mem memory.Store, resolver skill.Resolver, binder ModelBinder, optFns ...func(o *BuilderOptions)) *Builder {
	opts := BuilderOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	return &Builder{
		store:    st,
		skills:   skills,
		memory:   mem,
		resolver: resolver,
		binder:   binder,
		opts:     opts,
	}
}

// Build compiles the pipeline for one agent. Configuration lookup failures
// abort the build; a capability that fails to resolve is logged and skipped.
func (b *Builder) Build(ctx context.Context, agentID string) (*Pipeline, error) {
	cfg, err := b.store.GetConfig(ctx, agentID)
	if err != nil {
		return nil, err
	}
	data, err := b.store.GetData(ctx, agentID)
	if err != nil {
		return nil, err
	}

	m, err := b.binder.Bind(cfg.Model, ModelParams{
		Temperature:      cfg.Temperature,
		FrequencyPenalty: cfg.FrequencyPenalty,
		PresencePenalty:  cfg.PresencePenalty,
	})
	if err != nil {
		return nil, fmt.Errorf("bind model %q: %w", cfg.Model, err)
	}
	info := m.Info()

	env := skill.Env{
		AgentID: agentID,
		Data:    data,
		Skills:  b.skills,
		Logger:  b.opts.Logger,
	}

	var (
		tools      []tool.Tool
		guidance   []string
		socialable bool
	)
	for _, c := range skill.FromConfig(cfg) {
		res, err := b.resolver.Resolve(ctx, c, env)
		if err != nil {
			b.opts.Logger.Warn("build.capability.skipped",
				"agent_id", agentID, "capability", c.Kind(), "error", err.Error())
			continue
		}
		tools = append(tools, res.Tools...)
		guidance = append(guidance, res.Guidance)
		if _, ok := c.(skill.Social); ok {
			socialable = true
		}

		// First-build artifacts land before the build returns. The write is
		// conditional so a duplicate concurrent build cannot clobber it.
		if res.Artifact != nil {
			written, err := b.store.SetDataOnce(ctx, agentID, *res.Artifact)
			if err != nil {
				return nil, err
			}
			if written {
				// Re-read so the prompt renders against the persisted state.
				if data, err = b.store.GetData(ctx, agentID); err != nil {
					return nil, err
				}
				env.Data = data
			}
		}
	}

	tools = dedupeTools(tools)

	prompt := renderPrompt(promptInput{
		prefix:     b.opts.SystemPromptPrefix,
		cfg:        cfg,
		data:       data,
		guidance:   guidance,
		hoistOnly:  info.Provider == "deepseek",
		socialable: socialable,
	})

	if !info.SupportsTools {
		tools = nil
	}

	return &Pipeline{
		AgentID: agentID,
		Model:   m,
		Tools:   tools,
		Prompt:  prompt,
		Memory:  b.memory,
	}, nil
}

// dedupeTools collapses the accumulated tool list to unique names, keeping
// the last occurrence and its position relative to surviving entries.
func dedupeTools(tools []tool.Tool) []tool.Tool {
	last := make(map[string]int, len(tools))
	for i, t := range tools {
		last[t.Name()] = i
	}
	out := make([]tool.Tool, 0, len(last))
	for i, t := range tools {
		if last[t.Name()] == i {
			out = append(out, t)
		}
	}
	return out
}
