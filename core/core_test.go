package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestThreadKeys(t *testing.T) {
	assert.Equal(t, "agent1-t1", ThreadKey("agent1", "t1"))
	assert.Equal(t, "agent1-", ThreadKeyPrefix("agent1"))
}

func TestErrorTaxonomy(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		err := NewNotFoundError("agent1")
		assert.True(t, IsNotFound(err))
		assert.True(t, IsNotFound(fmt.Errorf("lookup: %w", err)))
		assert.False(t, IsNotFound(errors.New("other")))
	})

	t.Run("store error unwraps its cause", func(t *testing.T) {
		cause := errors.New("connection reset")
		err := NewStoreError("get config", cause)
		assert.True(t, IsStoreError(err))
		assert.ErrorIs(t, err, cause)
	})

	t.Run("invalid request", func(t *testing.T) {
		err := NewInvalidRequestError("missing flags")
		assert.True(t, IsInvalidRequest(err))
		assert.False(t, IsStoreError(err))
	})
}

func TestContentHelpers(t *testing.T) {
	content := NewUserContent("look at this", "https://a/1.png", "https://a/2.png")
	assert.Equal(t, "user", content.Role)
	assert.Equal(t, "look at this", content.Text())
	assert.Equal(t, []string{"https://a/1.png", "https://a/2.png"}, content.Images())

	response := NewFunctionResponseContent("fc1", "lookup", nil, errors.New("boom"))
	responses := response.FunctionResponses()
	assert.Len(t, responses, 1)
	assert.Equal(t, "boom", responses[0].Error)
}
