package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrun/memory"
	"github.com/hupe1980/agentrun/model"
	"github.com/hupe1980/agentrun/skill"
	"github.com/hupe1980/agentrun/store"
	"github.com/hupe1980/agentrun/tool"
)

// resolverFunc adapts a function to the skill.Resolver interface.
type resolverFunc func(ctx context.Context, c skill.Capability, env skill.Env) (*skill.Resolution, error)

func (f resolverFunc) Resolve(ctx context.Context, c skill.Capability, env skill.Env) (*skill.Resolution, error) {
	return f(ctx, c, env)
}

func namedTool(name, marker string) tool.Tool {
	return tool.NewFunctionTool(name, "test tool "+marker,
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(_ *tool.Context, _ map[string]any) (any, error) {
			return marker, nil
		})
}

func newBuilderUnderTest(st *store.InMemory, resolver skill.Resolver, bind ModelBinder) *Builder {
	return NewBuilder(st, st, memory.NewInMemoryStore(), resolver, bind)
}

func TestBuilderDedupLastWins(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemory()
	st.PutConfig(store.AgentConfig{ID: "agent1", Model: "gpt-4o-mini", CommonSkills: []string{"x"}})

	resolver := resolverFunc(func(_ context.Context, _ skill.Capability, _ skill.Env) (*skill.Resolution, error) {
		return &skill.Resolution{Tools: []tool.Tool{
			namedTool("lookup", "first"),
			namedTool("other", "keep"),
			namedTool("lookup", "second"),
		}}, nil
	})

	b := newBuilderUnderTest(st, resolver, staticBinder(model.NewMockModel("mock", "test")))
	pipe, err := b.Build(ctx, "agent1")
	require.NoError(t, err)

	require.Len(t, pipe.Tools, 2)
	assert.Equal(t, "other", pipe.Tools[0].Name())
	assert.Equal(t, "lookup", pipe.Tools[1].Name())

	// The surviving duplicate is the later-resolved one.
	out, err := pipe.Tools[1].Call(tool.NewContext(ctx, "agent1", "t1", "fc1", st, nil), map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "second", out)
}

func TestBuilderCapabilityFailureSkips(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemory()
	st.PutConfig(store.AgentConfig{
		ID:           "agent1",
		Model:        "gpt-4o-mini",
		CommonSkills: []string{"current_time"},
		SkillBundles: map[string]map[string]any{"ghost": {}},
	})

	b := newBuilderUnderTest(st, skill.NewRegistry(), staticBinder(model.NewMockModel("mock", "test")))
	pipe, err := b.Build(ctx, "agent1")
	require.NoError(t, err)

	// The unknown bundle is skipped; the common capability still resolves.
	require.Len(t, pipe.Tools, 1)
	assert.Equal(t, "current_time", pipe.Tools[0].Name())
}

func TestBuilderWalletArtifactPersistsOnce(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemory()
	st.PutConfig(store.AgentConfig{
		ID:            "agent1",
		Model:         "gpt-4o-mini",
		WalletEnabled: true,
		WalletSkills:  []string{"get_wallet_details"},
	})

	b := newBuilderUnderTest(st, skill.NewRegistry(), staticBinder(model.NewMockModel("mock", "test")))

	_, err := b.Build(ctx, "agent1")
	require.NoError(t, err)

	data, err := st.GetData(ctx, "agent1")
	require.NoError(t, err)
	require.NotEmpty(t, data.WalletData)
	wallet := data.WalletData

	// A rebuild reuses the persisted wallet instead of regenerating it.
	_, err = b.Build(ctx, "agent1")
	require.NoError(t, err)

	data, err = st.GetData(ctx, "agent1")
	require.NoError(t, err)
	assert.Equal(t, wallet, data.WalletData)
}

func TestBuilderSuppressesToolsWithoutVendorSupport(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemory()
	st.PutConfig(store.AgentConfig{
		ID:           "agent1",
		Model:        "deepseek-chat",
		CommonSkills: []string{"current_time"},
		Prompt:       "You run a help desk.",
	})

	m := model.NewMockModel("deepseek-chat", "deepseek")
	noTools := m.Info()
	noTools.SupportsTools = false
	bind := BinderFunc(func(string, ModelParams) (model.Model, error) {
		return &infoOverrideModel{Model: m, info: noTools}, nil
	})

	b := newBuilderUnderTest(st, skill.NewRegistry(), bind)
	pipe, err := b.Build(ctx, "agent1")
	require.NoError(t, err)

	assert.Empty(t, pipe.Tools)
	// The prompt text is retained even though tool binding is suppressed.
	assert.Contains(t, pipe.Prompt, "help desk")
}

func TestBuilderUnknownAgent(t *testing.T) {
	st := store.NewInMemory()
	b := newBuilderUnderTest(st, skill.NewRegistry(), staticBinder(model.NewMockModel("mock", "test")))

	_, err := b.Build(context.Background(), "ghost")
	assert.Error(t, err)
}

// infoOverrideModel wraps a model with replacement metadata.
type infoOverrideModel struct {
	model.Model
	info model.Info
}

func (m *infoOverrideModel) Info() model.Info { return m.info }
