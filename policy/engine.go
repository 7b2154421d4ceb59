package policy

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/open-policy-agent/opa/v1/rego"

	"github.com/xiaot623/orderdesk/internal/domain"
)

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// Input is what a policy sees for one tool call.
type Input struct {
	ToolName     string
	Args         json.RawMessage
	ThreadID     string
	RunID        string
	OrderSenders []string
}

func (in Input) document() (map[string]interface{}, error) {
	var args interface{}
	if len(in.Args) > 0 {
		if err := json.Unmarshal(in.Args, &args); err != nil {
			return nil, fmt.Errorf("failed to decode tool args: %w", err)
		}
	}
	senders := make([]interface{}, 0, len(in.OrderSenders))
	for _, s := range in.OrderSenders {
		senders = append(senders, s)
	}
	return map[string]interface{}{
		"tool_name":     in.ToolName,
		"args":          args,
		"thread_id":     in.ThreadID,
		"run_id":        in.RunID,
		"order_senders": senders,
	}, nil
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.tool_policy.decision"),
		rego.Module("tool_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Evaluate checks the tool policy.
// The policy may return a plain decision string or an object
// {"decision": "...", "reason": "..."}.
func (e *Engine) Evaluate(ctx context.Context, in Input) (domain.PolicyDecision, string, error) {
	doc, err := in.document()
	if err != nil {
		return "", "", err
	}
	results, err := e.query.Eval(ctx, rego.EvalInput(doc))
	if err != nil {
		return "", "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return domain.PolicyAllow, "no decision", nil
	}

	switch val := results[0].Expressions[0].Value.(type) {
	case string:
		return toDecision(val)
	case map[string]interface{}:
		decision, _ := val["decision"].(string)
		reason, _ := val["reason"].(string)
		d, _, err := toDecision(decision)
		return d, reason, err
	default:
		return "", "", fmt.Errorf("unexpected policy result type %T", val)
	}
}

func toDecision(s string) (domain.PolicyDecision, string, error) {
	switch d := domain.PolicyDecision(s); d {
	case domain.PolicyAllow, domain.PolicyBlock:
		return d, "", nil
	default:
		return "", "", fmt.Errorf("unknown policy decision %q", s)
	}
}

// DefaultPolicy is the default policy content. It keeps order platforms off
// the guest list.
const DefaultPolicy = `
package tool_policy

attendees := object.get(input.args, "attendees", [])

deny contains msg if {
	input.tool_name == "create-event"
	some attendee in attendees
	some sender in input.order_senders
	lower(attendee.email) == lower(sender)
	msg := sprintf("%s sent the order and must not be invited", [attendee.email])
}

default decision := {"decision": "allow", "reason": ""}

decision := {"decision": "block", "reason": concat("; ", sort(deny))} if {
	count(deny) > 0
}
`
