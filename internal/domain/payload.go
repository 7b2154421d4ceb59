package domain

import "encoding/json"

// RunStartedPayload is the payload for run_started event.
type RunStartedPayload struct {
	ThreadID      string `json:"thread_id"`
	HistoryLength int    `json:"history_length"`
}

// UserInputPayload is the payload for user_input event.
type UserInputPayload struct {
	MessageID string `json:"message_id"`
	Content   string `json:"content"`
}

// RunDonePayload is the payload for run_done event.
type RunDonePayload struct {
	Iterations   int    `json:"iterations"`
	FinalMessage string `json:"final_message,omitempty"`
}

// RunFailedPayload is the payload for run_failed, run_cancelled and run_exhausted events.
type RunFailedPayload struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Iterations int    `json:"iterations"`
}

// OracleCallStartedPayload is the payload for oracle_call_started event.
type OracleCallStartedPayload struct {
	RequestID string `json:"request_id"`
	Iteration int    `json:"iteration"`
	Messages  int    `json:"messages"`
}

// OracleCallDonePayload is the payload for oracle_call_done event.
type OracleCallDonePayload struct {
	RequestID string   `json:"request_id"`
	LatencyMs int64    `json:"latency_ms"`
	ToolCalls []string `json:"tool_calls,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// ToolCallCreatedPayload is the payload for tool_call_created event.
type ToolCallCreatedPayload struct {
	ToolCallID string          `json:"tool_call_id"`
	ToolName   string          `json:"tool_name"`
	Args       json.RawMessage `json:"args,omitempty"`
}

// PolicyDecisionPayload is the payload for policy_decision event.
type PolicyDecisionPayload struct {
	ToolCallID string         `json:"tool_call_id"`
	Decision   PolicyDecision `json:"decision"`
	Reason     string         `json:"reason,omitempty"`
}

// ToolResultPayload is the payload for tool_result event.
type ToolResultPayload struct {
	ToolCallID string         `json:"tool_call_id"`
	Status     ToolCallStatus `json:"status"`
	Result     string         `json:"result,omitempty"`
	LatencyMs  int64          `json:"latency_ms"`
}
