package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/agentrun/logging"
)

// Outcome describes how a cache lookup was satisfied.
type Outcome int

const (
	// Reused means the cached pipeline was fresh and returned unchanged.
	Reused Outcome = iota

	// ColdStart means no pipeline existed yet and one was built.
	ColdStart

	// Rebuilt means the cached pipeline was stale and replaced.
	Rebuilt
)

// String returns the user-visible lifecycle label.
func (o Outcome) String() string {
	switch o {
	case ColdStart:
		return "cold start"
	case Rebuilt:
		return "configuration changed, reinitialized"
	default:
		return "reused"
	}
}

// cacheEntry pairs a compiled pipeline with the config version it was built
// from.
type cacheEntry struct {
	pipeline *Pipeline
	version  time.Time
}

// Cache is the process-wide map from agent identity to compiled pipeline.
// Staleness is config-driven: every lookup probes the store's update
// timestamp and rebuilds when it differs from the cached build version. There
// is no TTL and no eviction.
//
// The check-then-act is deliberately not atomic per identity: concurrent
// lookups for the same agent may both build, and the slot resolves last
// writer wins. Builds are idempotent, the one first-build side effect is a
// conditional write, and no lock is ever held across a store or build call.
type Cache struct {
	builder *Builder
	logger  logging.Logger

	mu      sync.RWMutex
	entries map[string]cacheEntry

	builds atomic.Int64
}

// NewCache constructs an empty cache over a builder.
func NewCache(builder *Builder, logger logging.Logger) *Cache {
	return &Cache{
		builder: builder,
		logger:  logging.OrNoOp(logger),
		entries: make(map[string]cacheEntry),
	}
}

// GetOrBuild returns the pipeline for an agent, building or rebuilding it
// when absent or stale. A failed build installs nothing; the previous entry,
// if any, stays usable for callers that already hold it.
func (c *Cache) GetOrBuild(ctx context.Context, agentID string) (*Pipeline, Outcome, error) {
	version, err := c.builder.store.GetVersion(ctx, agentID)
	if err != nil {
		return nil, Reused, err
	}

	c.mu.RLock()
	entry, ok := c.entries[agentID]
	c.mu.RUnlock()

	if ok && entry.version.Equal(version) {
		return entry.pipeline, Reused, nil
	}

	outcome := ColdStart
	if ok {
		outcome = Rebuilt
	}

	pipeline, err := c.builder.Build(ctx, agentID)
	if err != nil {
		return nil, outcome, err
	}
	c.builds.Add(1)

	c.mu.Lock()
	c.entries[agentID] = cacheEntry{pipeline: pipeline, version: version}
	c.mu.Unlock()

	c.logger.Info("cache.pipeline.installed",
		"agent_id", agentID, "outcome", outcome.String(), "version", version)
	return pipeline, outcome, nil
}

// Invalidate drops the cached pipeline for an agent, forcing a rebuild on the
// next lookup.
func (c *Cache) Invalidate(agentID string) {
	c.mu.Lock()
	delete(c.entries, agentID)
	c.mu.Unlock()
}

// Builds reports how many pipeline builds the cache has performed.
func (c *Cache) Builds() int64 { return c.builds.Load() }

// Len reports the number of cached pipelines.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
