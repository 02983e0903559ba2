package core

import "github.com/google/uuid"

// NewID generates a new unique identifier used for step and function call
// correlation throughout the runtime.
func NewID() string { return uuid.NewString() }

// ThreadKey derives the persistence key for one conversation thread of one
// agent. All thread-scoped memory rows are stored under this key; purge by
// agent uses the ThreadKeyPrefix form to match every thread.
func ThreadKey(agentID, threadID string) string { return agentID + "-" + threadID }

// ThreadKeyPrefix returns the key prefix covering all threads of an agent.
func ThreadKeyPrefix(agentID string) string { return agentID + "-" }
