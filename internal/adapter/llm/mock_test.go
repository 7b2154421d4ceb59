package llm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/orderdesk/internal/domain"
)

func TestMockOracleChecksCalendarThenAnswers(t *testing.T) {
	m := NewMockOracle()
	tools := []domain.ToolSignature{{Name: "get-events"}}

	first, err := m.Respond(context.Background(), []domain.Message{{Role: domain.RoleUser, Content: "hi"}}, tools)
	require.NoError(t, err)
	require.True(t, first.HasToolCalls())
	assert.Equal(t, "get-events", first.ToolCalls[0].Name)
	var args map[string]string
	require.NoError(t, json.Unmarshal(first.ToolCalls[0].Arguments, &args))
	assert.Contains(t, args, "q")
	assert.NotEmpty(t, args["timeMin"])
	assert.NotEmpty(t, args["timeMax"])

	second, err := m.Respond(context.Background(), []domain.Message{
		{Role: domain.RoleUser, Content: "hi"},
		first,
		{Role: domain.RoleTool, ToolCallID: first.ToolCalls[0].ID, Content: "No Events Found in Calendar"},
	}, tools)
	require.NoError(t, err)
	assert.False(t, second.HasToolCalls())
	assert.Contains(t, second.Content, "No Events Found in Calendar")
}

func TestScriptedOracle(t *testing.T) {
	boom := errors.New("boom")
	s := NewScriptedOracle(
		CallTools(domain.ToolCall{ID: "c1", Name: "get-events", Arguments: json.RawMessage(`{}`)}),
		Answer("done"),
		Fail(boom),
	)
	ctx := context.Background()
	msgs := []domain.Message{{Role: domain.RoleUser, Content: "go"}}

	m1, err := s.Respond(ctx, msgs, nil)
	require.NoError(t, err)
	assert.Equal(t, "c1", m1.ToolCalls[0].ID)

	m2, err := s.Respond(ctx, msgs, nil)
	require.NoError(t, err)
	assert.Equal(t, "done", m2.Content)

	_, err = s.Respond(ctx, msgs, nil)
	assert.ErrorIs(t, err, boom)
	_, err = s.Respond(ctx, msgs, nil)
	assert.ErrorIs(t, err, boom)

	assert.Len(t, s.Calls(), 4)
}

func TestScriptedOracleHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewScriptedOracle(Answer("x")).Respond(ctx, nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
