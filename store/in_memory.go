package store

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/agentrun/core"
)

// ConversationPurger is the narrow view of a conversational memory store the
// in-memory purger needs: deletion by exact thread key or by key prefix.
// memory.InMemoryStore satisfies it.
type ConversationPurger interface {
	PurgeExact(threadKey string)
	PurgePrefix(prefix string)
}

type agentSkillKey struct{ agentID, skill, key string }

type threadSkillKey struct{ threadID, skill, key string }

type threadSkillRow struct {
	agentID string
	data    map[string]any
}

// InMemory is a volatile Store + SkillStore + Purger implementation backed by
// process-local maps. It is safe for concurrent access and best suited for
// tests or ephemeral demo setups. Returned snapshots are cloned to prevent
// external mutation of internal state.
type InMemory struct {
	mu          sync.RWMutex
	configs     map[string]*AgentConfig
	data        map[string]*AgentData
	agentSkill  map[agentSkillKey]map[string]any
	threadSkill map[threadSkillKey]threadSkillRow

	// conv receives conversation deletions during Purge; nil disables them.
	conv ConversationPurger
}

// NewInMemory constructs an empty in-memory store.
func NewInMemory() *InMemory {
	return &InMemory{
		configs:     make(map[string]*AgentConfig),
		data:        make(map[string]*AgentData),
		agentSkill:  make(map[agentSkillKey]map[string]any),
		threadSkill: make(map[threadSkillKey]threadSkillRow),
	}
}

// WithConversationPurger wires a conversational memory store into Purge calls.
func (s *InMemory) WithConversationPurger(conv ConversationPurger) *InMemory {
	s.conv = conv
	return s
}

// PutConfig stores (or replaces) an agent configuration, stamping CreatedAt
// on first write and advancing UpdatedAt on every write.
func (s *InMemory) PutConfig(cfg AgentConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if prev, ok := s.configs[cfg.ID]; ok {
		cfg.CreatedAt = prev.CreatedAt
	} else {
		cfg.CreatedAt = now
	}
	cfg.UpdatedAt = now
	s.configs[cfg.ID] = &cfg
}

// Touch advances the UpdatedAt timestamp of an existing configuration,
// simulating an out-of-band config mutation.
func (s *InMemory) Touch(agentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg, ok := s.configs[agentID]; ok {
		cfg.UpdatedAt = cfg.UpdatedAt.Add(time.Microsecond)
		if now := time.Now().UTC(); now.After(cfg.UpdatedAt) {
			cfg.UpdatedAt = now
		}
	}
}

// GetConfig implements Store.
func (s *InMemory) GetConfig(_ context.Context, agentID string) (*AgentConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.configs[agentID]
	if !ok {
		return nil, core.NewNotFoundError(agentID)
	}
	clone := *cfg
	return &clone, nil
}

// GetVersion implements Store.
func (s *InMemory) GetVersion(_ context.Context, agentID string) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.configs[agentID]
	if !ok {
		return time.Time{}, core.NewNotFoundError(agentID)
	}
	return cfg.UpdatedAt, nil
}

// GetData implements Store. Absent rows yield an empty record, not an error.
func (s *InMemory) GetData(_ context.Context, agentID string) (*AgentData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if d, ok := s.data[agentID]; ok {
		clone := *d
		return &clone, nil
	}
	return &AgentData{ID: agentID}, nil
}

// SetData implements Store.
func (s *InMemory) SetData(_ context.Context, agentID string, delta DataDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyDelta(agentID, delta, false)
	return nil
}

// SetDataOnce implements Store; fields already populated are left untouched.
func (s *InMemory) SetDataOnce(_ context.Context, agentID string, delta DataDelta) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyDelta(agentID, delta, true), nil
}

func (s *InMemory) applyDelta(agentID string, delta DataDelta, onlyEmpty bool) bool {
	d, ok := s.data[agentID]
	if !ok {
		d = &AgentData{ID: agentID, CreatedAt: time.Now().UTC()}
		s.data[agentID] = d
	}
	written := false
	set := func(dst *string, src *string) {
		if src == nil {
			return
		}
		if onlyEmpty && *dst != "" {
			return
		}
		*dst = *src
		written = true
	}
	set(&d.WalletData, delta.WalletData)
	set(&d.SocialID, delta.SocialID)
	set(&d.SocialUsername, delta.SocialUsername)
	set(&d.SocialName, delta.SocialName)
	if written {
		d.UpdatedAt = time.Now().UTC()
	}
	return written
}

// GetAgentData implements SkillStore.
func (s *InMemory) GetAgentData(_ context.Context, agentID, skill, key string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneData(s.agentSkill[agentSkillKey{agentID, skill, key}]), nil
}

// SaveAgentData implements SkillStore.
func (s *InMemory) SaveAgentData(_ context.Context, agentID, skill, key string, data map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agentSkill[agentSkillKey{agentID, skill, key}] = cloneData(data)
	return nil
}

// GetThreadData implements SkillStore.
func (s *InMemory) GetThreadData(_ context.Context, threadID, skill, key string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.threadSkill[threadSkillKey{threadID, skill, key}]
	if !ok {
		return nil, nil
	}
	return cloneData(row.data), nil
}

// SaveThreadData implements SkillStore.
func (s *InMemory) SaveThreadData(_ context.Context, threadID, agentID, skill, key string, data map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threadSkill[threadSkillKey{threadID, skill, key}] = threadSkillRow{agentID: agentID, data: cloneData(data)}
	return nil
}

// AgentSkillCount reports the number of agent-scoped skill rows for an agent.
func (s *InMemory) AgentSkillCount(agentID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for k := range s.agentSkill {
		if k.agentID == agentID {
			n++
		}
	}
	return n
}

// ThreadSkillCount reports the number of thread-scoped skill rows owned by an
// agent, optionally narrowed to one thread.
func (s *InMemory) ThreadSkillCount(agentID, threadID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for k, row := range s.threadSkill {
		if row.agentID != agentID {
			continue
		}
		if threadID != "" && k.threadID != threadID {
			continue
		}
		n++
	}
	return n
}

// Purge implements Purger. The in-memory variant applies deletions under one
// lock; atomicity across the wired conversation purger is inherent since no
// operation here can fail.
func (s *InMemory) Purge(_ context.Context, req PurgeRequest) error {
	if !req.Conversation && !req.SkillData {
		return core.NewInvalidRequestError("at least one of skill data or conversation must be purged")
	}

	s.mu.Lock()
	if req.SkillData {
		for k := range s.agentSkill {
			if k.agentID == req.AgentID {
				delete(s.agentSkill, k)
			}
		}
		for k, row := range s.threadSkill {
			if row.agentID != req.AgentID {
				continue
			}
			if req.ThreadID != "" && k.threadID != req.ThreadID {
				continue
			}
			delete(s.threadSkill, k)
		}
	}
	s.mu.Unlock()

	if req.Conversation && s.conv != nil {
		if req.ThreadID != "" {
			s.conv.PurgeExact(core.ThreadKey(req.AgentID, req.ThreadID))
		} else {
			s.conv.PurgePrefix(core.ThreadKeyPrefix(req.AgentID))
		}
	}
	return nil
}

func cloneData(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	clone := make(map[string]any, len(data))
	for k, v := range data {
		clone[k] = v
	}
	return clone
}
