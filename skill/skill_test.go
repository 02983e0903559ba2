package skill

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrun/store"
	"github.com/hupe1980/agentrun/tool"
)

func toolNames(tools []tool.Tool) []string {
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, t.Name())
	}
	return names
}

func TestFromConfig(t *testing.T) {
	cfg := &store.AgentConfig{
		ID:            "agent1",
		WalletEnabled: true,
		WalletNetwork: "base-sepolia",
		WalletSkills:  []string{"get_wallet_details"},
		CommonSkills:  []string{"current_time"},
		SkillBundles: map[string]map[string]any{
			"research": {"depth": 2.0},
			"alerts":   {},
		},
	}

	caps := FromConfig(cfg)
	require.Len(t, caps, 4)
	assert.Equal(t, "wallet", caps[0].Kind())
	assert.Equal(t, "common", caps[1].Kind())
	// Bundles resolve in sorted name order.
	assert.Equal(t, "bundle:alerts", caps[2].Kind())
	assert.Equal(t, "bundle:research", caps[3].Kind())
}

func TestRegistryWallet(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()

	t.Run("first build generates a wallet artifact", func(t *testing.T) {
		res, err := r.Resolve(ctx, Wallet{
			Network: "base-sepolia",
			Skills:  []string{"get_wallet_details", "get_balance"},
		}, Env{AgentID: "agent1", Data: &store.AgentData{ID: "agent1"}})
		require.NoError(t, err)

		require.NotNil(t, res.Artifact)
		require.NotNil(t, res.Artifact.WalletData)

		var record map[string]any
		require.NoError(t, json.Unmarshal([]byte(*res.Artifact.WalletData), &record))
		assert.Equal(t, "base-sepolia", record["network"])
		assert.NotEmpty(t, record["address"])

		assert.Equal(t, []string{"get_wallet_details", "get_balance"}, toolNames(res.Tools))
		assert.Contains(t, res.Guidance, "base-sepolia")
	})

	t.Run("existing wallet data is reused", func(t *testing.T) {
		res, err := r.Resolve(ctx, Wallet{Skills: []string{"get_wallet_details"}}, Env{
			AgentID: "agent1",
			Data: &store.AgentData{
				ID:         "agent1",
				WalletData: `{"id":"w1","address":"0xabc","network":"base-mainnet"}`,
			},
		})
		require.NoError(t, err)
		assert.Nil(t, res.Artifact)

		toolCtx := tool.NewContext(ctx, "agent1", "t1", "fc1", store.NewInMemory(), nil)
		out, err := res.Tools[0].Call(toolCtx, map[string]any{})
		require.NoError(t, err)
		assert.Equal(t, "0xabc", out.(map[string]any)["address"])
	})

	t.Run("unknown skill names are skipped", func(t *testing.T) {
		res, err := r.Resolve(ctx, Wallet{Skills: []string{"launch_rocket", "get_balance"}}, Env{
			AgentID: "agent1",
			Data:    &store.AgentData{ID: "agent1"},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"get_balance"}, toolNames(res.Tools))
	})
}

func TestRegistrySwap(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()
	skills := store.NewInMemory()

	res, err := r.Resolve(ctx, Swap{
		Skills: []string{"get_route", "execute_swap"},
		Config: map[string]any{"slippage_percent": 1.0},
	}, Env{AgentID: "agent1"})
	require.NoError(t, err)
	require.Len(t, res.Tools, 2)

	toolCtx := tool.NewContext(ctx, "agent1", "t1", "fc1", skills, nil)

	quote, err := res.Tools[0].Call(toolCtx, map[string]any{
		"token_in": "ETH", "token_out": "USDC", "amount_in": 100.0,
	})
	require.NoError(t, err)
	route := quote.(map[string]any)
	assert.Equal(t, 99.0, route["amount_out"])

	t.Run("executing an unquoted route fails", func(t *testing.T) {
		_, err := res.Tools[1].Call(toolCtx, map[string]any{"route_id": "bogus"})
		require.Error(t, err)
	})

	t.Run("executing the quoted route succeeds", func(t *testing.T) {
		out, err := res.Tools[1].Call(toolCtx, map[string]any{"route_id": route["route_id"]})
		require.NoError(t, err)
		assert.Equal(t, "confirmed", out.(map[string]any)["status"])
	})
}

func TestRegistrySocial(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()
	skills := store.NewInMemory()

	res, err := r.Resolve(ctx, Social{
		Skills: []string{"post", "get_timeline"},
		Config: map[string]any{"max_post_length": 10.0},
	}, Env{AgentID: "agent1"})
	require.NoError(t, err)
	require.Len(t, res.Tools, 2)

	toolCtx := tool.NewContext(ctx, "agent1", "t1", "fc1", skills, nil)

	t.Run("oversized post is rejected", func(t *testing.T) {
		_, err := res.Tools[0].Call(toolCtx, map[string]any{"text": "way too long for the limit"})
		require.Error(t, err)
	})

	t.Run("post lands on the timeline", func(t *testing.T) {
		_, err := res.Tools[0].Call(toolCtx, map[string]any{"text": "gm"})
		require.NoError(t, err)

		out, err := res.Tools[1].Call(toolCtx, map[string]any{})
		require.NoError(t, err)
		posts := out.(map[string]any)["posts"].([]any)
		require.Len(t, posts, 1)
		assert.Equal(t, "gm", posts[0].(map[string]any)["text"])
	})
}

func TestRegistryBundles(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()

	t.Run("unknown bundle fails resolution", func(t *testing.T) {
		_, err := r.Resolve(ctx, Bundle{Name: "research"}, Env{AgentID: "agent1"})
		assert.Error(t, err)
	})

	t.Run("registered bundle resolves with options", func(t *testing.T) {
		r.RegisterBundle("research", func(options map[string]any) (*Resolution, error) {
			return &Resolution{
				Tools: []tool.Tool{tool.NewFunctionTool("search", "Search the archive.",
					map[string]any{"type": "object", "properties": map[string]any{}},
					func(_ *tool.Context, _ map[string]any) (any, error) {
						return options["depth"], nil
					})},
			}, nil
		})

		res, err := r.Resolve(ctx, Bundle{Name: "research", Options: map[string]any{"depth": 2.0}}, Env{AgentID: "agent1"})
		require.NoError(t, err)
		assert.Equal(t, []string{"search"}, toolNames(res.Tools))
	})
}
