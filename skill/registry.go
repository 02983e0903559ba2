package skill

import (
	"context"
	"fmt"
	"sort"

	"github.com/hupe1980/agentrun/logging"
)

// BundleFactory builds the toolset and guidance of one named bundle from its
// configured option payload.
type BundleFactory func(options map[string]any) (*Resolution, error)

// Registry is the default Resolver. It carries the built-in wallet, swap,
// social and common toolsets and a table of registered bundles.
type Registry struct {
	bundles map[string]BundleFactory
	logger  logging.Logger
}

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	Logger logging.Logger
}

// NewRegistry constructs a Registry with the built-in capabilities and no
// bundles registered.
func NewRegistry(optFns ...func(o *RegistryOptions)) *Registry {
	opts := RegistryOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Registry{
		bundles: make(map[string]BundleFactory),
		logger:  logging.OrNoOp(opts.Logger),
	}
}

// RegisterBundle makes a named bundle resolvable. Registering the same name
// twice replaces the factory.
func (r *Registry) RegisterBundle(name string, factory BundleFactory) {
	r.bundles[name] = factory
}

// Resolve implements Resolver.
func (r *Registry) Resolve(ctx context.Context, cap Capability, env Env) (*Resolution, error) {
	env.Logger = logging.OrNoOp(env.Logger)
	switch c := cap.(type) {
	case Wallet:
		return resolveWallet(ctx, c, env)
	case Swap:
		return resolveSwap(c, env)
	case Social:
		return resolveSocial(c, env)
	case Common:
		return resolveCommon(c, env)
	case Bundle:
		factory, ok := r.bundles[c.Name]
		if !ok {
			return nil, fmt.Errorf("unknown bundle %q", c.Name)
		}
		return factory(c.Options)
	default:
		return nil, fmt.Errorf("unknown capability kind %q", cap.Kind())
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
