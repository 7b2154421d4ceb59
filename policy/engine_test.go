package policy

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/orderdesk/internal/domain"
)

var senders = []string{"orders@platform.example"}

func newDefaultEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(context.Background(), DefaultPolicy)
	require.NoError(t, err)
	return e
}

func TestDefaultPolicyAllowsReads(t *testing.T) {
	e := newDefaultEngine(t)

	d, _, err := e.Evaluate(context.Background(), Input{
		ToolName:     "get-events",
		Args:         json.RawMessage(`{"q":"Smith"}`),
		OrderSenders: senders,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PolicyAllow, d)
}

func TestDefaultPolicyAllowsGuest(t *testing.T) {
	e := newDefaultEngine(t)

	d, _, err := e.Evaluate(context.Background(), Input{
		ToolName:     "create-event",
		Args:         json.RawMessage(`{"summary":"x","attendees":[{"email":"smith@example.com","displayName":"Smith"}]}`),
		OrderSenders: senders,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PolicyAllow, d)
}

func TestDefaultPolicyBlocksSender(t *testing.T) {
	e := newDefaultEngine(t)

	d, reason, err := e.Evaluate(context.Background(), Input{
		ToolName: "create-event",
		Args: json.RawMessage(`{"summary":"x","attendees":[
			{"email":"smith@example.com","displayName":"Smith"},
			{"email":"Orders@Platform.example","displayName":"Platform"}
		]}`),
		OrderSenders: senders,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PolicyBlock, d)
	assert.Contains(t, reason, "Orders@Platform.example")
}

func TestDefaultPolicyAllowsEmptyGuestList(t *testing.T) {
	e := newDefaultEngine(t)

	for _, args := range []string{`{"summary":"x","attendees":[]}`, `{"summary":"x"}`} {
		d, reason, err := e.Evaluate(context.Background(), Input{
			ToolName:     "create-event",
			Args:         json.RawMessage(args),
			OrderSenders: senders,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.PolicyAllow, d, args)
		assert.Empty(t, reason)
	}
}

func TestStringDecision(t *testing.T) {
	e, err := NewEngine(context.Background(), `
package tool_policy

default decision := "allow"

decision := "block" if input.tool_name == "get-latest-gmail"
`)
	require.NoError(t, err)

	d, _, err := e.Evaluate(context.Background(), Input{ToolName: "get-latest-gmail"})
	require.NoError(t, err)
	assert.Equal(t, domain.PolicyBlock, d)

	d, _, err = e.Evaluate(context.Background(), Input{ToolName: "get-events"})
	require.NoError(t, err)
	assert.Equal(t, domain.PolicyAllow, d)
}

func TestUnknownDecision(t *testing.T) {
	e, err := NewEngine(context.Background(), `
package tool_policy

decision := "require_approval"
`)
	require.NoError(t, err)

	_, _, err = e.Evaluate(context.Background(), Input{ToolName: "create-event"})
	assert.Error(t, err)
}

func TestNewEngineRejectsInvalidPolicy(t *testing.T) {
	_, err := NewEngine(context.Background(), "package tool_policy\n\ndecision := {")
	assert.Error(t, err)
}
