package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrun/core"
)

func TestInMemoryConfig(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()

	t.Run("missing config is not found", func(t *testing.T) {
		_, err := s.GetConfig(ctx, "ghost")
		assert.True(t, core.IsNotFound(err))

		_, err = s.GetVersion(ctx, "ghost")
		assert.True(t, core.IsNotFound(err))
	})

	t.Run("version matches config updated_at", func(t *testing.T) {
		s.PutConfig(AgentConfig{ID: "agent1", Name: "Ada"})

		cfg, err := s.GetConfig(ctx, "agent1")
		require.NoError(t, err)

		version, err := s.GetVersion(ctx, "agent1")
		require.NoError(t, err)
		assert.Equal(t, cfg.UpdatedAt, version)
	})

	t.Run("touch advances the version", func(t *testing.T) {
		before, err := s.GetVersion(ctx, "agent1")
		require.NoError(t, err)

		s.Touch("agent1")

		after, err := s.GetVersion(ctx, "agent1")
		require.NoError(t, err)
		assert.True(t, after.After(before))
	})
}

func TestInMemoryData(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()

	t.Run("absent data reads back empty", func(t *testing.T) {
		d, err := s.GetData(ctx, "agent1")
		require.NoError(t, err)
		assert.Equal(t, "agent1", d.ID)
		assert.Empty(t, d.WalletData)
	})

	t.Run("set data merges non-nil fields", func(t *testing.T) {
		wallet := "wallet-a"
		require.NoError(t, s.SetData(ctx, "agent1", DataDelta{WalletData: &wallet}))

		username := "ada"
		require.NoError(t, s.SetData(ctx, "agent1", DataDelta{SocialUsername: &username}))

		d, err := s.GetData(ctx, "agent1")
		require.NoError(t, err)
		assert.Equal(t, "wallet-a", d.WalletData)
		assert.Equal(t, "ada", d.SocialUsername)
	})

	t.Run("set data once never overwrites", func(t *testing.T) {
		wallet := "wallet-b"
		written, err := s.SetDataOnce(ctx, "agent1", DataDelta{WalletData: &wallet})
		require.NoError(t, err)
		assert.False(t, written)

		d, err := s.GetData(ctx, "agent1")
		require.NoError(t, err)
		assert.Equal(t, "wallet-a", d.WalletData)
	})

	t.Run("set data once fills empty fields", func(t *testing.T) {
		id := "soc-1"
		written, err := s.SetDataOnce(ctx, "agent1", DataDelta{SocialID: &id})
		require.NoError(t, err)
		assert.True(t, written)

		d, err := s.GetData(ctx, "agent1")
		require.NoError(t, err)
		assert.Equal(t, "soc-1", d.SocialID)
	})
}

func TestInMemorySkillData(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()

	t.Run("agent scope round trip", func(t *testing.T) {
		require.NoError(t, s.SaveAgentData(ctx, "agent1", "wallet", "balance:ETH", map[string]any{"amount": 2.5}))

		data, err := s.GetAgentData(ctx, "agent1", "wallet", "balance:ETH")
		require.NoError(t, err)
		assert.Equal(t, 2.5, data["amount"])
	})

	t.Run("thread scope records owning agent", func(t *testing.T) {
		require.NoError(t, s.SaveThreadData(ctx, "t1", "agent1", "swap", "last_route", map[string]any{"route_id": "r1"}))

		data, err := s.GetThreadData(ctx, "t1", "swap", "last_route")
		require.NoError(t, err)
		assert.Equal(t, "r1", data["route_id"])
		assert.Equal(t, 1, s.ThreadSkillCount("agent1", "t1"))
	})

	t.Run("absent rows read back nil", func(t *testing.T) {
		data, err := s.GetAgentData(ctx, "agent1", "wallet", "nope")
		require.NoError(t, err)
		assert.Nil(t, data)
	})
}

func TestInMemoryPurge(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T) *InMemory {
		t.Helper()
		s := NewInMemory()
		require.NoError(t, s.SaveAgentData(ctx, "A", "wallet", "k", map[string]any{"v": 1}))
		require.NoError(t, s.SaveThreadData(ctx, "T1", "A", "swap", "k", map[string]any{"v": 1}))
		require.NoError(t, s.SaveThreadData(ctx, "T2", "A", "swap", "k", map[string]any{"v": 1}))
		require.NoError(t, s.SaveAgentData(ctx, "B", "wallet", "k", map[string]any{"v": 1}))
		require.NoError(t, s.SaveThreadData(ctx, "T1", "B", "swap", "other", map[string]any{"v": 1}))
		return s
	}

	t.Run("both flags false is an invalid request", func(t *testing.T) {
		s := seed(t)
		err := s.Purge(ctx, PurgeRequest{AgentID: "A"})
		assert.True(t, core.IsInvalidRequest(err))
		assert.Equal(t, 1, s.AgentSkillCount("A"))
		assert.Equal(t, 2, s.ThreadSkillCount("A", ""))
	})

	t.Run("thread scoped purge leaves other threads and agents", func(t *testing.T) {
		s := seed(t)
		require.NoError(t, s.Purge(ctx, PurgeRequest{AgentID: "A", ThreadID: "T1", SkillData: true}))

		assert.Equal(t, 0, s.AgentSkillCount("A"))
		assert.Equal(t, 0, s.ThreadSkillCount("A", "T1"))
		assert.Equal(t, 1, s.ThreadSkillCount("A", "T2"))
		assert.Equal(t, 1, s.AgentSkillCount("B"))
		assert.Equal(t, 1, s.ThreadSkillCount("B", "T1"))
	})

	t.Run("agent wide purge removes all threads", func(t *testing.T) {
		s := seed(t)
		require.NoError(t, s.Purge(ctx, PurgeRequest{AgentID: "A", SkillData: true}))

		assert.Equal(t, 0, s.ThreadSkillCount("A", ""))
		assert.Equal(t, 1, s.ThreadSkillCount("B", ""))
	})
}
