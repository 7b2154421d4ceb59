// Package tools holds the tool registry and the order-desk tools the oracle
// may call.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/xiaot623/orderdesk/internal/domain"
)

// ExecutorFunc runs a tool with arguments that already passed validation.
type ExecutorFunc func(ctx context.Context, args json.RawMessage) (string, error)

// Definition describes one tool.
type Definition struct {
	Name        string
	Description string
	Parameters  jsonschema.Definition
	// Timeout bounds one execution. Zero means the caller's default.
	Timeout time.Duration
	Execute ExecutorFunc
}

// Registry maps tool names to definitions. It is fixed at construction and
// safe for concurrent use.
type Registry struct {
	defs  map[string]Definition
	order []string
}

// NewRegistry creates a registry from defs. Names must be unique and
// non-empty.
func NewRegistry(defs ...Definition) (*Registry, error) {
	r := &Registry{defs: make(map[string]Definition, len(defs))}
	for _, d := range defs {
		if d.Name == "" {
			return nil, fmt.Errorf("tool name is required")
		}
		if d.Execute == nil {
			return nil, fmt.Errorf("executor is required for %s", d.Name)
		}
		if _, exists := r.defs[d.Name]; exists {
			return nil, fmt.Errorf("tool already registered: %s", d.Name)
		}
		r.defs[d.Name] = d
		r.order = append(r.order, d.Name)
	}
	return r, nil
}

// MustNewRegistry is like NewRegistry but panics on error.
func MustNewRegistry(defs ...Definition) *Registry {
	r, err := NewRegistry(defs...)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the definition registered under name.
func (r *Registry) Lookup(name string) (Definition, bool) {
	d, ok := r.defs[name]
	return d, ok
}

// Names returns the tool names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Signatures returns what the oracle is told about every tool.
func (r *Registry) Signatures() []domain.ToolSignature {
	out := make([]domain.ToolSignature, 0, len(r.order))
	for _, name := range r.order {
		d := r.defs[name]
		params, err := json.Marshal(d.Parameters)
		if err != nil {
			params = json.RawMessage(`{"type":"object"}`)
		}
		out = append(out, domain.ToolSignature{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  params,
		})
	}
	return out
}

// Validate checks that name is registered and args satisfy its schema.
func (r *Registry) Validate(name string, args json.RawMessage) error {
	d, ok := r.defs[name]
	if !ok {
		return &domain.ValidationError{Tool: name, Reason: "unknown tool"}
	}
	return checkArgs(d, args)
}

// Invoke validates args and runs the tool. Unknown tools and schema
// violations return *domain.ValidationError; execution failures return
// *domain.ExecutionError.
func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage) (string, error) {
	if err := r.Validate(name, args); err != nil {
		return "", err
	}
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}

	out, err := r.defs[name].Execute(ctx, args)
	if err == nil {
		return out, nil
	}
	var verr *domain.ValidationError
	var xerr *domain.ExecutionError
	if errors.As(err, &verr) || errors.As(err, &xerr) {
		return "", err
	}
	return "", &domain.ExecutionError{Tool: name, Err: err}
}

func checkArgs(d Definition, raw json.RawMessage) error {
	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil || data == nil {
		return &domain.ValidationError{Tool: d.Name, Reason: "arguments must be a JSON object"}
	}
	for _, field := range d.Parameters.Required {
		if _, ok := data[field]; !ok {
			return &domain.ValidationError{Tool: d.Name, Reason: fmt.Sprintf("missing required field %q", field)}
		}
	}
	if !jsonschema.Validate(d.Parameters, data) {
		return &domain.ValidationError{Tool: d.Name, Reason: "arguments do not match the tool schema"}
	}
	return nil
}
