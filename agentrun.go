// Package agentrun turns stored agent configurations into live conversational
// pipelines, caches them process-wide with config-driven staleness detection,
// executes them against inbound messages as streams of labeled, timed
// segments and purges persisted agent state on demand.
//
// The Runtime type is the façade wiring the pipeline builder, the runtime
// cache, the execution engine and the purger behind one constructor; the
// subpackages stay usable on their own.
package agentrun

import (
	"context"
	"os"

	"github.com/hupe1980/agentrun/config"
	"github.com/hupe1980/agentrun/engine"
	"github.com/hupe1980/agentrun/logging"
	"github.com/hupe1980/agentrun/memory"
	memorypg "github.com/hupe1980/agentrun/memory/postgres"
	"github.com/hupe1980/agentrun/skill"
	"github.com/hupe1980/agentrun/store"
	storepg "github.com/hupe1980/agentrun/store/postgres"
)

// Convenience aliases so façade callers rarely need the subpackages.
type (
	ExecuteRequest = engine.ExecuteRequest
	ExecuteResult  = engine.ExecuteResult
	Segment        = engine.Segment
	PurgeRequest   = store.PurgeRequest
)

// Options configure a Runtime.
type Options struct {
	// Logger receives structured runtime logs; nil disables logging.
	Logger logging.Logger

	// SystemPromptPrefix is rendered ahead of every agent prompt.
	SystemPromptPrefix string

	// Resolver resolves capability selections into toolsets. Defaults to a
	// skill.Registry with the built-in capabilities.
	Resolver skill.Resolver

	// Binder binds model selectors to live model handles. Defaults to the
	// vendor binder configured with Credentials.
	Binder engine.ModelBinder

	// Credentials configure the default vendor binder; ignored when Binder
	// is set explicitly.
	Credentials engine.Credentials
}

// Runtime is the agent runtime manager.
type Runtime struct {
	cache  *engine.Cache
	engine *engine.Engine
	purger store.Purger
	logger logging.Logger
}

// New wires a Runtime over its collaborators: the config store, the
// skill-data store, the shared conversational memory store and the purger.
func New(st store.Store, skills store.SkillStore, mem memory.Store, purger store.Purger, optFns ...func(o *Options)) *Runtime {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	if opts.Resolver == nil {
		opts.Resolver = skill.NewRegistry(func(o *skill.RegistryOptions) {
			o.Logger = opts.Logger
		})
	}
	if opts.Binder == nil {
		opts.Binder = engine.NewVendorBinder(opts.Credentials)
	}

	builder := engine.NewBuilder(st, skills, mem, opts.Resolver, opts.Binder, func(o *engine.BuilderOptions) {
		o.SystemPromptPrefix = opts.SystemPromptPrefix
		o.Logger = logging.WithComponent(opts.Logger, "builder")
	})
	cache := engine.NewCache(builder, logging.WithComponent(opts.Logger, "cache"))
	eng := engine.NewEngine(cache, skills, func(o *engine.EngineOptions) {
		o.Logger = logging.WithComponent(opts.Logger, "engine")
	})

	return &Runtime{
		cache:  cache,
		engine: eng,
		purger: purger,
		logger: opts.Logger,
	}
}

// NewFromConfig wires a Runtime from a loaded configuration document: the
// logger per the logging section, the Postgres-backed stores when a database
// URL is set (running pending migrations) or the in-memory stores otherwise,
// and provider credentials for the default vendor binder. Additional option
// functions run after the config mapping and may override any of it. The
// returned cleanup function releases the backing connection pool; it is always
// non-nil and safe to defer.
func NewFromConfig(ctx context.Context, cfg config.Config, optFns ...func(o *Options)) (*Runtime, func(), error) {
	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:  logging.ParseLevel(cfg.Logging.Level),
		Format: cfg.Logging.Format,
		Output: os.Stdout,
	})

	var (
		st      store.Store
		skills  store.SkillStore
		mem     memory.Store
		purger  store.Purger
		cleanup = func() {}
	)
	if cfg.Postgres.DatabaseURL != "" {
		pg, err := storepg.Open(ctx, cfg.Postgres.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		st, skills, purger = pg, pg, pg
		mem = memorypg.New(pg.Pool())
		cleanup = pg.Close
	} else {
		conv := memory.NewInMemoryStore()
		inmem := store.NewInMemory().WithConversationPurger(conv)
		st, skills, purger = inmem, inmem, inmem
		mem = conv
	}

	base := func(o *Options) {
		o.Logger = logger
		o.SystemPromptPrefix = cfg.Runtime.SystemPromptPrefix
		o.Credentials = engine.Credentials{
			OpenAIAPIKey:    cfg.Providers.OpenAIAPIKey,
			OpenAIBaseURL:   cfg.Providers.OpenAIBaseURL,
			AnthropicAPIKey: cfg.Providers.AnthropicAPIKey,
			DeepSeekAPIKey:  cfg.Providers.DeepSeekAPIKey,
			DeepSeekBaseURL: cfg.Providers.DeepSeekBaseURL,
		}
	}
	return New(st, skills, mem, purger, append([]func(o *Options){base}, optFns...)...), cleanup, nil
}

// Execute runs one message on one thread and returns the collected result.
func (r *Runtime) Execute(ctx context.Context, req ExecuteRequest) (*ExecuteResult, error) {
	return r.engine.Execute(ctx, req)
}

// Stream runs one message on one thread, emitting segments as steps complete.
func (r *Runtime) Stream(ctx context.Context, req ExecuteRequest) (<-chan Segment, <-chan error, error) {
	return r.engine.Stream(ctx, req)
}

// PurgeMemory deletes persisted conversational and/or skill-scoped state for
// an agent, optionally narrowed to one thread. Cached pipelines are not
// touched; a missing thread reads back as empty history on next use.
func (r *Runtime) PurgeMemory(ctx context.Context, req PurgeRequest) error {
	if err := r.purger.Purge(ctx, req); err != nil {
		return err
	}
	r.logger.Info("runtime.memory.purged",
		"agent_id", req.AgentID, "thread_id", req.ThreadID,
		"conversation", req.Conversation, "skill_data", req.SkillData)
	return nil
}

// Invalidate drops the cached pipeline for an agent, forcing a rebuild on its
// next execution.
func (r *Runtime) Invalidate(agentID string) {
	r.cache.Invalidate(agentID)
}
