package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrun/core"
	"github.com/hupe1980/agentrun/model"
	"github.com/hupe1980/agentrun/store"
)

func TestCacheGetOrBuild(t *testing.T) {
	ctx := context.Background()
	h := newTestHarness(t, staticBinder(model.NewMockModel("mock", "test")))
	h.store.PutConfig(store.AgentConfig{ID: "agent1", Model: "gpt-4o-mini"})

	t.Run("first access builds exactly once", func(t *testing.T) {
		pipe, outcome, err := h.cache.GetOrBuild(ctx, "agent1")
		require.NoError(t, err)
		assert.Equal(t, ColdStart, outcome)
		assert.NotNil(t, pipe)
		assert.Equal(t, int64(1), h.cache.Builds())
	})

	t.Run("unchanged config returns the identical pipeline", func(t *testing.T) {
		first, _, err := h.cache.GetOrBuild(ctx, "agent1")
		require.NoError(t, err)

		second, outcome, err := h.cache.GetOrBuild(ctx, "agent1")
		require.NoError(t, err)
		assert.Equal(t, Reused, outcome)
		assert.Same(t, first, second)
		assert.Equal(t, int64(1), h.cache.Builds())
	})

	t.Run("advancing updated_at forces exactly one rebuild", func(t *testing.T) {
		stale, _, err := h.cache.GetOrBuild(ctx, "agent1")
		require.NoError(t, err)

		h.store.Touch("agent1")

		rebuilt, outcome, err := h.cache.GetOrBuild(ctx, "agent1")
		require.NoError(t, err)
		assert.Equal(t, Rebuilt, outcome)
		assert.NotSame(t, stale, rebuilt)
		assert.Equal(t, int64(2), h.cache.Builds())

		_, outcome, err = h.cache.GetOrBuild(ctx, "agent1")
		require.NoError(t, err)
		assert.Equal(t, Reused, outcome)
		assert.Equal(t, int64(2), h.cache.Builds())
	})

	t.Run("invalidate forces a rebuild", func(t *testing.T) {
		h.cache.Invalidate("agent1")
		_, outcome, err := h.cache.GetOrBuild(ctx, "agent1")
		require.NoError(t, err)
		assert.Equal(t, ColdStart, outcome)
	})
}

func TestCacheUnknownAgent(t *testing.T) {
	h := newTestHarness(t, staticBinder(model.NewMockModel("mock", "test")))

	_, _, err := h.cache.GetOrBuild(context.Background(), "ghost")
	assert.True(t, core.IsNotFound(err))
	assert.Equal(t, int64(0), h.cache.Builds())
	assert.Equal(t, 0, h.cache.Len())
}

func TestCacheFailedBuildInstallsNothing(t *testing.T) {
	ctx := context.Background()
	h := newTestHarness(t, BinderFunc(func(string, ModelParams) (model.Model, error) {
		return nil, assert.AnError
	}))
	h.store.PutConfig(store.AgentConfig{ID: "agent1", Model: "gpt-4o-mini"})

	_, _, err := h.cache.GetOrBuild(ctx, "agent1")
	require.Error(t, err)
	assert.Equal(t, 0, h.cache.Len())
	assert.Equal(t, int64(0), h.cache.Builds())
}
