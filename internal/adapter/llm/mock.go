package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/xiaot623/orderdesk/internal/domain"
)

// MockOracle checks the calendar once and then answers. It lets the service
// run end to end without a model provider.
type MockOracle struct{}

// NewMockOracle creates a new mock oracle.
func NewMockOracle() *MockOracle {
	return &MockOracle{}
}

// Ensure MockOracle implements Oracle interface.
var _ Oracle = (*MockOracle)(nil)

// Respond asks for get-events on the first step and summarises its result
// on the next one.
func (m *MockOracle) Respond(ctx context.Context, messages []domain.Message, tools []domain.ToolSignature) (domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return domain.Message{}, err
	}

	if len(messages) == 0 {
		return domain.Message{Role: domain.RoleAssistant, Content: "[MOCK] Nothing to do."}, nil
	}
	last := messages[len(messages)-1]
	if last.Role == domain.RoleTool {
		return domain.Message{
			Role:    domain.RoleAssistant,
			Content: fmt.Sprintf("[MOCK] Calendar says: %s", truncate(last.Content, 200)),
		}, nil
	}

	for _, t := range tools {
		if t.Name == "get-events" {
			args, err := todayWindow(time.Now())
			if err != nil {
				return domain.Message{}, err
			}
			return domain.Message{
				Role: domain.RoleAssistant,
				ToolCalls: []domain.ToolCall{{
					ID:        "mock_call_1",
					Name:      t.Name,
					Arguments: args,
				}},
			}, nil
		}
	}
	return domain.Message{
		Role:    domain.RoleAssistant,
		Content: fmt.Sprintf("[MOCK] Received your message: %q.", truncate(last.Content, 100)),
	}, nil
}

// todayWindow builds get-events arguments covering the day of now.
func todayWindow(now time.Time) (json.RawMessage, error) {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return json.Marshal(map[string]string{
		"q":       "",
		"timeMin": start.Format(time.RFC3339),
		"timeMax": start.AddDate(0, 0, 1).Format(time.RFC3339),
	})
}

// Step produces one scripted oracle response from the conversation so far.
type Step func(messages []domain.Message) (domain.Message, error)

// ScriptedOracle replays steps in order and records what it was sent.
type ScriptedOracle struct {
	mu    sync.Mutex
	steps []Step
	calls [][]domain.Message
}

// Ensure ScriptedOracle implements Oracle interface.
var _ Oracle = (*ScriptedOracle)(nil)

// NewScriptedOracle creates an oracle that answers with steps, one per call.
func NewScriptedOracle(steps ...Step) *ScriptedOracle {
	return &ScriptedOracle{steps: steps}
}

// Respond runs the next step. Once the script is used up it keeps replaying
// the last step.
func (s *ScriptedOracle) Respond(ctx context.Context, messages []domain.Message, _ []domain.ToolSignature) (domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return domain.Message{}, err
	}

	s.mu.Lock()
	snapshot := append([]domain.Message(nil), messages...)
	s.calls = append(s.calls, snapshot)
	idx := len(s.calls) - 1
	if idx >= len(s.steps) {
		idx = len(s.steps) - 1
	}
	s.mu.Unlock()

	if idx < 0 {
		return domain.Message{Role: domain.RoleAssistant}, nil
	}
	msg, err := s.steps[idx](snapshot)
	if msg.Role == "" {
		msg.Role = domain.RoleAssistant
	}
	return msg, err
}

// Calls returns the message sequences the oracle has been sent.
func (s *ScriptedOracle) Calls() [][]domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]domain.Message(nil), s.calls...)
}

// Answer is a step that returns a final answer.
func Answer(text string) Step {
	return func([]domain.Message) (domain.Message, error) {
		return domain.Message{Role: domain.RoleAssistant, Content: text}, nil
	}
}

// CallTools is a step that requests the given tool calls.
func CallTools(calls ...domain.ToolCall) Step {
	return func([]domain.Message) (domain.Message, error) {
		return domain.Message{Role: domain.RoleAssistant, ToolCalls: calls}, nil
	}
}

// Fail is a step that returns err.
func Fail(err error) Step {
	return func([]domain.Message) (domain.Message, error) {
		return domain.Message{}, err
	}
}

// truncate truncates a string to the given length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
