package domain

import "encoding/json"

// ConverseRequest is the body of a user request on a thread.
type ConverseRequest struct {
	Content string `json:"content"`
}

// ListMessagesResponse is the response for a thread's history.
type ListMessagesResponse struct {
	Messages []Message `json:"messages"`
	HasMore  bool      `json:"has_more"`
}

// ListEventsResponse is the response for a run's trace.
type ListEventsResponse struct {
	Events []Event `json:"events"`
}

// ListToolCallsResponse is the response for a run's tool calls.
type ListToolCallsResponse struct {
	ToolCalls []ToolCallRecord `json:"tool_calls"`
}

// ToolListItem represents a tool in the list response.
type ToolListItem struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Schema      json.RawMessage `json:"schema,omitempty"`
	TimeoutMs   int64           `json:"timeout_ms"`
}

// ListToolsResponse represents the response for listing tools.
type ListToolsResponse struct {
	Tools []ToolListItem `json:"tools"`
}

// ErrorResponse is the body of a failed HTTP request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Websocket frame types.
const (
	FrameUserMessage = "user_message"
	FrameAnswer      = "answer"
	FrameError       = "error"
)

// Frame is one websocket message between the chat client and the server.
type Frame struct {
	Type       string    `json:"type"`
	Ts         int64     `json:"ts"`
	ThreadID   string    `json:"thread_id,omitempty"`
	RunID      string    `json:"run_id,omitempty"`
	Content    string    `json:"content,omitempty"`
	Status     RunStatus `json:"status,omitempty"`
	Iterations int       `json:"iterations,omitempty"`
	Code       string    `json:"code,omitempty"`
}
