// Package domain defines the core domain models for orderdesk.
package domain

// Role is the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// RunStatus represents the status of a run.
type RunStatus string

const (
	RunStatusCreated   RunStatus = "CREATED"
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusDone      RunStatus = "DONE"
	RunStatusFailed    RunStatus = "FAILED"
	RunStatusCancelled RunStatus = "CANCELLED"
	// RunStatusExhausted marks a run stopped by its iteration or time budget.
	RunStatusExhausted RunStatus = "EXHAUSTED"
)

// IsTerminal reports whether no further transitions are possible.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusDone, RunStatusFailed, RunStatusCancelled, RunStatusExhausted:
		return true
	}
	return false
}

// LoopState is the state of the orchestration loop within one run.
type LoopState string

const (
	LoopStateAwaitingOracle   LoopState = "awaiting-oracle"
	LoopStateDispatchingTools LoopState = "dispatching-tools"
	LoopStateTerminal         LoopState = "terminal"
)

// EventType represents the type of an event.
type EventType string

const (
	EventTypeRunStarted   EventType = "run_started"
	EventTypeUserInput    EventType = "user_input"
	EventTypeRunDone      EventType = "run_done"
	EventTypeRunFailed    EventType = "run_failed"
	EventTypeRunCancelled EventType = "run_cancelled"
	EventTypeRunExhausted EventType = "run_exhausted"

	// Oracle call events
	EventTypeOracleCallStarted EventType = "oracle_call_started"
	EventTypeOracleCallDone    EventType = "oracle_call_done"

	// Tool events
	EventTypeToolCallCreated EventType = "tool_call_created"
	EventTypePolicyDecision  EventType = "policy_decision"
	EventTypeToolResult      EventType = "tool_result"
)

// ToolCallStatus represents the status of a tool call.
type ToolCallStatus string

const (
	ToolCallStatusRunning   ToolCallStatus = "RUNNING"
	ToolCallStatusSucceeded ToolCallStatus = "SUCCEEDED"
	ToolCallStatusFailed    ToolCallStatus = "FAILED"
	ToolCallStatusInvalid   ToolCallStatus = "INVALID"
	ToolCallStatusBlocked   ToolCallStatus = "BLOCKED"
	ToolCallStatusTimeout   ToolCallStatus = "TIMEOUT"
)

// PolicyDecision is the outcome of a tool policy evaluation.
type PolicyDecision string

const (
	PolicyAllow PolicyDecision = "allow"
	PolicyBlock PolicyDecision = "block"
)
