package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// ToolCall is a tool invocation requested by the oracle.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Message is one turn in a conversation.
type Message struct {
	MessageID  string     `json:"message_id,omitempty"`
	ThreadID   string     `json:"thread_id,omitempty"`
	RunID      string     `json:"run_id,omitempty"`
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// HasToolCalls reports whether the message asks for tool execution.
func (m Message) HasToolCalls() bool {
	return m.Role == RoleAssistant && len(m.ToolCalls) > 0
}

// Thread is an independent conversation, keyed by an opaque id.
type Thread struct {
	ThreadID  string    `json:"thread_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ValidateToolReferences checks that every tool message answers exactly one
// tool call requested by an earlier assistant message.
func ValidateToolReferences(messages []Message) error {
	requested := make(map[string]bool)
	answered := make(map[string]bool)
	for i, m := range messages {
		switch m.Role {
		case RoleAssistant:
			for _, tc := range m.ToolCalls {
				if tc.ID == "" {
					return fmt.Errorf("message %d: tool call without id", i)
				}
				if requested[tc.ID] {
					return fmt.Errorf("message %d: duplicate tool call id %s", i, tc.ID)
				}
				requested[tc.ID] = true
			}
		case RoleTool:
			if !requested[m.ToolCallID] {
				return fmt.Errorf("message %d: tool result %q has no preceding request", i, m.ToolCallID)
			}
			if answered[m.ToolCallID] {
				return fmt.Errorf("message %d: tool call %s answered twice", i, m.ToolCallID)
			}
			answered[m.ToolCallID] = true
		}
	}
	return nil
}

// TrimOrphanToolResults drops tool messages whose request is not in the
// window, which happens when persisted history is loaded with a limit.
// Assistant messages whose tool calls were never answered are dropped too.
func TrimOrphanToolResults(messages []Message) []Message {
	requested := make(map[string]bool)
	answered := make(map[string]bool)
	for _, m := range messages {
		if m.Role == RoleTool {
			answered[m.ToolCallID] = true
		}
	}

	out := make([]Message, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleAssistant:
			complete := true
			for _, tc := range m.ToolCalls {
				if !answered[tc.ID] {
					complete = false
					break
				}
			}
			if !complete {
				continue
			}
			for _, tc := range m.ToolCalls {
				requested[tc.ID] = true
			}
		case RoleTool:
			if !requested[m.ToolCallID] {
				continue
			}
		}
		out = append(out, m)
	}
	return out
}

// ToolSignature is what the oracle is told about a tool: its name, what it
// does and the JSON schema of its arguments.
type ToolSignature struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}
