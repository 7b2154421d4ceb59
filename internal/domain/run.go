package domain

import (
	"encoding/json"
	"time"
)

// Run represents one pass of the orchestration loop for a user request.
type Run struct {
	RunID      string          `json:"run_id"`
	ThreadID   string          `json:"thread_id"`
	Status     RunStatus       `json:"status"`
	Iterations int             `json:"iterations"`
	StartedAt  time.Time       `json:"started_at"`
	EndedAt    *time.Time      `json:"ended_at,omitempty"`
	Error      json.RawMessage `json:"error,omitempty"`
}

// RunResult is what the caller of a conversation sees.
type RunResult struct {
	RunID      string    `json:"run_id"`
	ThreadID   string    `json:"thread_id"`
	Status     RunStatus `json:"status"`
	Answer     string    `json:"answer"`
	Iterations int       `json:"iterations"`
}

// Event represents a trace event for replay.
type Event struct {
	EventID string          `json:"event_id"`
	RunID   string          `json:"run_id"`
	Ts      int64           `json:"ts"` // Unix milliseconds
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ToolCallRecord is the persisted audit row of one tool execution.
type ToolCallRecord struct {
	ToolCallID  string          `json:"tool_call_id"`
	RunID       string          `json:"run_id"`
	ToolName    string          `json:"tool_name"`
	Status      ToolCallStatus  `json:"status"`
	Args        json.RawMessage `json:"args"`
	Result      string          `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}
