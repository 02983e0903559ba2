// Package skill turns declarative capability selections from an agent
// configuration into concrete toolsets, prompt guidance and first-build
// artifacts. Resolution happens once per pipeline build; the resulting tools
// live for the lifetime of the cached pipeline.
package skill

import (
	"context"

	"github.com/hupe1980/agentrun/logging"
	"github.com/hupe1980/agentrun/store"
	"github.com/hupe1980/agentrun/tool"
)

// Capability is one declarative capability selection. The variant set is
// closed; resolvers switch on the concrete type.
type Capability interface {
	capability()

	// Kind returns a stable name for logging and warnings.
	Kind() string
}

// Wallet enables on-chain account tools on a named network, narrowed to the
// listed skill names.
type Wallet struct {
	Network string
	Skills  []string
}

func (Wallet) capability()  {}
func (Wallet) Kind() string { return "wallet" }

// Swap enables token swap and routing tools, one per listed skill name.
type Swap struct {
	Skills []string
	Config map[string]any
}

func (Swap) capability()  {}
func (Swap) Kind() string { return "swap" }

// Social enables social-posting tools, one per listed skill name.
type Social struct {
	Skills []string
	Config map[string]any
}

func (Social) capability()  {}
func (Social) Kind() string { return "social" }

// Common enables generic utility tools without per-skill options.
type Common struct {
	Skills []string
}

func (Common) capability()  {}
func (Common) Kind() string { return "common" }

// Bundle enables a pre-packaged named toolset with an opaque option payload.
type Bundle struct {
	Name    string
	Options map[string]any
}

func (b Bundle) capability()  {}
func (b Bundle) Kind() string { return "bundle:" + b.Name }

// FromConfig maps the capability columns of an agent configuration onto the
// closed variant set, in the fixed order wallet, swap, social, common,
// bundles. Bundle order follows the sorted bundle names so resolution is
// deterministic.
func FromConfig(cfg *store.AgentConfig) []Capability {
	var caps []Capability
	if cfg.WalletEnabled {
		caps = append(caps, Wallet{Network: cfg.WalletNetwork, Skills: cfg.WalletSkills})
	}
	if len(cfg.SwapSkills) > 0 {
		caps = append(caps, Swap{Skills: cfg.SwapSkills, Config: cfg.SwapConfig})
	}
	if len(cfg.SocialSkills) > 0 {
		caps = append(caps, Social{Skills: cfg.SocialSkills, Config: cfg.SocialConfig})
	}
	if len(cfg.CommonSkills) > 0 {
		caps = append(caps, Common{Skills: cfg.CommonSkills})
	}
	for _, name := range sortedKeys(cfg.SkillBundles) {
		caps = append(caps, Bundle{Name: name, Options: cfg.SkillBundles[name]})
	}
	return caps
}

// Env is the build-time environment a resolver may consult: the agent
// identity, its mutable runtime data snapshot and skill-scoped persistence.
type Env struct {
	AgentID string
	Data    *store.AgentData
	Skills  store.SkillStore
	Logger  logging.Logger
}

// Resolution is the outcome of resolving one capability.
type Resolution struct {
	// Tools to merge into the pipeline toolset, in resolver order.
	Tools []tool.Tool

	// Guidance is a static prompt block describing the capability to the
	// model; empty when the capability needs no prompt support.
	Guidance string

	// Artifact holds runtime data produced as a side effect of the first
	// build, written conditionally so later builds cannot clobber it.
	Artifact *store.DataDelta
}

// Resolver turns one capability selection into tools and guidance. A returned
// error marks the capability as unavailable; the build continues without it.
type Resolver interface {
	Resolve(ctx context.Context, cap Capability, env Env) (*Resolution, error)
}
