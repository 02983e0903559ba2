package store

import (
	"context"
	"time"
)

// AgentConfig is an immutable-per-fetch snapshot of one agent's stored
// configuration. Any change to capability selection or prompt text advances
// UpdatedAt; the runtime cache relies on that timestamp to detect staleness
// and never diffs fields.
type AgentConfig struct {
	ID   string
	Name string

	// Model selection and behavioral parameters. Selectors prefixed with a
	// reserved vendor tag ("deepseek", "claude") route to alternate bindings.
	Model            string
	Temperature      float64
	FrequencyPenalty float64
	PresencePenalty  float64

	// Free-text prompt fragments. Prompt replaces the default instruction
	// block when set; PromptAppend is always placed last (or hoisted first
	// for vendors that only honor a leading system prompt).
	Prompt       string
	PromptAppend string

	// Wallet capability (on-chain actions).
	WalletEnabled bool
	WalletNetwork string
	WalletSkills  []string

	// Swap/route capability.
	SwapSkills []string
	SwapConfig map[string]any

	// Social-posting capability.
	SocialSkills []string
	SocialConfig map[string]any

	// Generic capability without per-skill options.
	CommonSkills []string

	// Pre-packaged capability bundles keyed by bundle name, each with an
	// opaque option payload handed to the resolver.
	SkillBundles map[string]map[string]any

	CreatedAt time.Time
	UpdatedAt time.Time
}

// AgentData is mutable side-state independent of config: externally issued
// credentials and identifiers obtained during the first successful build.
// It is not versioned; changes never invalidate a cached pipeline.
type AgentData struct {
	ID string

	// WalletData is the serialized wallet record generated on first build.
	WalletData string

	// Social account identity, filled in once the social capability links an
	// account.
	SocialID       string
	SocialUsername string
	SocialName     string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DataDelta is a partial update for AgentData. Nil fields are left untouched.
type DataDelta struct {
	WalletData     *string
	SocialID       *string
	SocialUsername *string
	SocialName     *string
}

// Store supplies agent configuration and runtime data.
//
// Error contract: GetConfig returns core.NotFoundError when no row exists and
// core.StoreError on backing-store failure; neither is retried by callers.
// GetData returns an empty AgentData (never an error) when no row exists.
type Store interface {
	// GetConfig fetches the full configuration snapshot for an agent.
	GetConfig(ctx context.Context, agentID string) (*AgentConfig, error)

	// GetVersion fetches only the configuration UpdatedAt timestamp. It is
	// the cheap staleness probe used on every execution.
	GetVersion(ctx context.Context, agentID string) (time.Time, error)

	// GetData fetches the mutable runtime data for an agent, returning an
	// empty record when none has been written yet.
	GetData(ctx context.Context, agentID string) (*AgentData, error)

	// SetData merges the non-nil fields of delta into the agent's runtime data.
	SetData(ctx context.Context, agentID string, delta DataDelta) error

	// SetDataOnce behaves like SetData but only writes fields that are
	// currently empty. It reports whether any field was written. Duplicate
	// builds racing on first-time artifacts rely on this being idempotent.
	SetDataOnce(ctx context.Context, agentID string, delta DataDelta) (bool, error)
}

// SkillStore persists skill-scoped key/value rows, keyed (agent, skill, key)
// for agent scope and (thread, skill, key) for thread scope. Thread rows also
// record the owning agent so purge can match by agent.
type SkillStore interface {
	// GetAgentData returns the stored value for an agent-scoped row, or nil
	// when absent.
	GetAgentData(ctx context.Context, agentID, skill, key string) (map[string]any, error)

	// SaveAgentData upserts an agent-scoped row.
	SaveAgentData(ctx context.Context, agentID, skill, key string, data map[string]any) error

	// GetThreadData returns the stored value for a thread-scoped row, or nil
	// when absent.
	GetThreadData(ctx context.Context, threadID, skill, key string) (map[string]any, error)

	// SaveThreadData upserts a thread-scoped row owned by agentID.
	SaveThreadData(ctx context.Context, threadID, agentID, skill, key string, data map[string]any) error
}

// PurgeRequest names the state to delete for one agent. ThreadID narrows
// thread-scoped rows to one thread; empty means all threads of the agent.
type PurgeRequest struct {
	AgentID      string
	ThreadID     string
	Conversation bool // checkpoint headers, pending writes, blobs
	SkillData    bool // agent- and thread-scoped skill rows
}

// Purger deletes persisted agent state. All deletions of a single call commit
// as one atomic unit; a partial failure must leave nothing deleted.
type Purger interface {
	Purge(ctx context.Context, req PurgeRequest) error
}
