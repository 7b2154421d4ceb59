package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai/jsonschema"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/orderdesk/internal/adapter/llm"
	"github.com/xiaot623/orderdesk/internal/domain"
	"github.com/xiaot623/orderdesk/internal/metrics"
	store "github.com/xiaot623/orderdesk/internal/repository"
	"github.com/xiaot623/orderdesk/internal/tools"
	"github.com/xiaot623/orderdesk/policy"
	"github.com/xiaot623/orderdesk/tests/helpers"
)

const platform = "orders@platform.example"

var testNow = time.Date(2024, 5, 3, 10, 30, 0, 0, time.UTC)

func testOptions() Options {
	return Options{
		MaxIterations: 10,
		RunTimeout:    5 * time.Second,
		OracleTimeout: 2 * time.Second,
		ToolTimeout:   2 * time.Second,
		HistoryLimit:  100,
		OrderSenders:  []string{platform},
		Location:      time.UTC,
	}
}

func newTestService(t *testing.T, oracle llm.Oracle, reg *tools.Registry, pol *policy.Engine, opts Options) (*Service, *store.SQLiteStore) {
	t.Helper()
	st := helpers.NewTestSQLiteStore(t)
	return New(st, oracle, reg, pol, metrics.New(), opts), st
}

func toolCall(id, name, args string) domain.ToolCall {
	return domain.ToolCall{ID: id, Name: name, Arguments: json.RawMessage(args)}
}

// echoTool returns its text, optionally after delayMs.
func echoTool() tools.Definition {
	return tools.Definition{
		Name:        "echo",
		Description: "Echo the text back",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"text":    {Type: jsonschema.String},
				"delayMs": {Type: jsonschema.Number},
			},
			Required: []string{"text"},
		},
		Execute: func(ctx context.Context, raw json.RawMessage) (string, error) {
			var args struct {
				Text    string `json:"text"`
				DelayMs int    `json:"delayMs"`
			}
			if err := json.Unmarshal(raw, &args); err != nil {
				return "", err
			}
			if args.DelayMs > 0 {
				select {
				case <-time.After(time.Duration(args.DelayMs) * time.Millisecond):
				case <-ctx.Done():
					return "", ctx.Err()
				}
			}
			return "echo:" + args.Text, nil
		},
	}
}

// waitTool blocks until its context ends. started is closed on first use.
func waitTool(started chan struct{}) tools.Definition {
	var once sync.Once
	return tools.Definition{
		Name:        "wait",
		Description: "Block until cancelled",
		Parameters:  jsonschema.Definition{Type: jsonschema.Object},
		Execute: func(ctx context.Context, _ json.RawMessage) (string, error) {
			once.Do(func() { close(started) })
			<-ctx.Done()
			return "", ctx.Err()
		},
	}
}

// orderAgent stands in for the oracle on the order workflow: read mail,
// check the calendar, create the event, report.
type orderAgent struct {
	mu       sync.Mutex
	guests   []domain.Attendee
	fallback []domain.Attendee
	calls    int
}

func (a *orderAgent) Respond(ctx context.Context, msgs []domain.Message, _ []domain.ToolSignature) (domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return domain.Message{}, err
	}
	a.mu.Lock()
	a.calls++
	a.mu.Unlock()

	last := msgs[len(msgs)-1]
	if last.Role != domain.RoleTool {
		return calling("c_mail", tools.NameGetLatestGmail, `{}`), nil
	}

	switch toolNameOf(msgs, last.ToolCallID) {
	case tools.NameGetLatestGmail:
		if last.Content == tools.ResultNoData {
			return answer("There are no upcoming orders for now."), nil
		}
		return calling("c_events", tools.NameGetEvents,
			`{"q":"Catering: Smith","timeMin":"2024-05-03T18:00:00Z","timeMax":"2024-05-03T19:00:00Z"}`), nil
	case tools.NameGetEvents:
		if last.Content != tools.ResultNoEvents {
			return answer("The order is already in the calendar."), nil
		}
		return calling("c_create", tools.NameCreateEvent, createArgs(a.guests)), nil
	case tools.NameCreateEvent:
		if strings.HasPrefix(last.Content, "Error:") && a.fallback != nil {
			guests := a.fallback
			a.fallback = nil
			return calling("c_create2", tools.NameCreateEvent, createArgs(guests)), nil
		}
		return answer(last.Content), nil
	}
	return answer("unexpected"), nil
}

func calling(id, name, args string) domain.Message {
	return domain.Message{Role: domain.RoleAssistant, ToolCalls: []domain.ToolCall{toolCall(id, name, args)}}
}

func answer(text string) domain.Message {
	return domain.Message{Role: domain.RoleAssistant, Content: text}
}

func toolNameOf(msgs []domain.Message, id string) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		for _, tc := range msgs[i].ToolCalls {
			if tc.ID == id {
				return tc.Name
			}
		}
	}
	return ""
}

func createArgs(guests []domain.Attendee) string {
	ev := domain.NewEvent{
		Summary:     "Catering: Smith",
		Description: "12 shawarma wraps",
		Start:       domain.EventDateTime{DateTime: "2024-05-03T18:00:00", TimeZone: "UTC"},
		End:         domain.EventDateTime{DateTime: "2024-05-03T19:00:00", TimeZone: "UTC"},
		Attendees:   guests,
	}
	data, _ := json.Marshal(ev)
	return string(data)
}

func orderMail(id string) *helpers.FakeMail {
	return &helpers.FakeMail{
		ID:       id,
		From:     platform,
		Subject:  "New catering order",
		Body:     "Customer: Smith\nPickup today 6pm\n12 shawarma wraps\nPlease invite chef@example.com",
		Unread:   true,
		Received: testNow.Add(-time.Hour),
	}
}

func orderRegistry(t *testing.T, mail tools.Mailbox, cal tools.Calendar) *tools.Registry {
	t.Helper()
	reg, err := tools.NewRegistry(tools.OrderTools(mail, cal, tools.Options{
		OrderSenders:   []string{platform},
		Location:       time.UTC,
		DuplicateGuard: true,
		Now:            func() time.Time { return testNow },
	})...)
	require.NoError(t, err)
	return reg
}
