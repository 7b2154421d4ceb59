package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assistantCalling(ids ...string) Message {
	m := Message{Role: RoleAssistant}
	for _, id := range ids {
		m.ToolCalls = append(m.ToolCalls, ToolCall{ID: id, Name: "get-events", Arguments: json.RawMessage(`{}`)})
	}
	return m
}

func toolResult(id string) Message {
	return Message{Role: RoleTool, ToolCallID: id, Content: "ok"}
}

func TestValidateToolReferences(t *testing.T) {
	t.Run("valid history", func(t *testing.T) {
		msgs := []Message{
			{Role: RoleSystem, Content: "sys"},
			{Role: RoleUser, Content: "hi"},
			assistantCalling("c1", "c2"),
			toolResult("c2"),
			toolResult("c1"),
			{Role: RoleAssistant, Content: "done"},
		}
		assert.NoError(t, ValidateToolReferences(msgs))
	})

	t.Run("result before request", func(t *testing.T) {
		msgs := []Message{toolResult("c1"), assistantCalling("c1")}
		assert.Error(t, ValidateToolReferences(msgs))
	})

	t.Run("answered twice", func(t *testing.T) {
		msgs := []Message{assistantCalling("c1"), toolResult("c1"), toolResult("c1")}
		assert.Error(t, ValidateToolReferences(msgs))
	})

	t.Run("duplicate request id", func(t *testing.T) {
		msgs := []Message{assistantCalling("c1"), toolResult("c1"), assistantCalling("c1")}
		assert.Error(t, ValidateToolReferences(msgs))
	})
}

func TestTrimOrphanToolResults(t *testing.T) {
	// Window starts after the assistant request for c0.
	msgs := []Message{
		toolResult("c0"),
		{Role: RoleUser, Content: "again"},
		assistantCalling("c1"),
		toolResult("c1"),
		assistantCalling("c2"),
	}

	trimmed := TrimOrphanToolResults(msgs)
	require.Len(t, trimmed, 3)
	assert.Equal(t, RoleUser, trimmed[0].Role)
	assert.Equal(t, "c1", trimmed[1].ToolCalls[0].ID)
	assert.Equal(t, "c1", trimmed[2].ToolCallID)
	assert.NoError(t, ValidateToolReferences(trimmed))
}

func TestRunStatusIsTerminal(t *testing.T) {
	assert.False(t, RunStatusRunning.IsTerminal())
	assert.True(t, RunStatusExhausted.IsTerminal())
	assert.True(t, RunStatusCancelled.IsTerminal())
}
