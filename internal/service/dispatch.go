package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xiaot623/orderdesk/internal/domain"
	"github.com/xiaot623/orderdesk/policy"
)

// dispatch runs every call of one oracle step concurrently and returns the
// tool messages in request order, each carrying its call's id.
func (s *Service) dispatch(ctx context.Context, runID, threadID string, calls []domain.ToolCall) []domain.Message {
	results := make([]domain.Message, len(calls))

	var g errgroup.Group
	for i, call := range calls {
		g.Go(func() error {
			results[i] = domain.Message{
				Role:       domain.RoleTool,
				ToolCallID: call.ID,
				Content:    s.runToolCall(ctx, runID, threadID, call),
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// runToolCall executes one call and records it. Failures become the
// returned text; they never abort the run.
func (s *Service) runToolCall(ctx context.Context, runID, threadID string, call domain.ToolCall) string {
	args := call.Arguments
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	persistCtx := context.WithoutCancel(ctx)

	s.emit(ctx, runID, domain.EventTypeToolCallCreated, domain.ToolCallCreatedPayload{
		ToolCallID: call.ID,
		ToolName:   call.Name,
		Args:       validJSON(args),
	})
	record := &domain.ToolCallRecord{
		ToolCallID: call.ID,
		RunID:      runID,
		ToolName:   call.Name,
		Status:     domain.ToolCallStatusRunning,
		Args:       validJSON(args),
		CreatedAt:  s.now(),
	}
	if err := s.store.CreateToolCall(persistCtx, record); err != nil {
		log.Printf("WARN: failed to record tool call %s for run %s: %v", call.ID, runID, err)
	}

	started := time.Now()
	status, content, errMsg := s.execute(ctx, runID, threadID, call.ID, call.Name, args)
	latency := time.Since(started)

	result := ""
	if status == domain.ToolCallStatusSucceeded {
		result = content
	}
	if err := s.store.UpdateToolCallResult(persistCtx, runID, call.ID, status, result, errMsg); err != nil {
		log.Printf("WARN: failed to update tool call %s for run %s: %v", call.ID, runID, err)
	}
	s.metrics.ObserveToolCall(call.Name, string(status), latency)
	s.emit(ctx, runID, domain.EventTypeToolResult, domain.ToolResultPayload{
		ToolCallID: call.ID,
		Status:     status,
		Result:     content,
		LatencyMs:  latency.Milliseconds(),
	})

	if status != domain.ToolCallStatusSucceeded {
		log.Printf("WARN: tool %s (%s) in run %s ended %s: %s", call.Name, call.ID, runID, status, errMsg)
	}
	return content
}

type toolOutcome struct {
	out string
	err error
}

func (s *Service) execute(ctx context.Context, runID, threadID, callID, name string, args json.RawMessage) (domain.ToolCallStatus, string, string) {
	if err := s.registry.Validate(name, args); err != nil {
		return domain.ToolCallStatusInvalid, "Error: " + err.Error(), err.Error()
	}

	if decision, reason := s.checkPolicy(ctx, runID, threadID, callID, name, args); decision == domain.PolicyBlock {
		return domain.ToolCallStatusBlocked, fmt.Sprintf("Error: %s was blocked by policy: %s", name, reason), reason
	}

	def, _ := s.registry.Lookup(name)
	timeout := s.ToolTimeout(def)
	toolCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan toolOutcome, 1)
	go func() {
		out, err := s.registry.Invoke(toolCtx, name, args)
		done <- toolOutcome{out: out, err: err}
	}()

	var o toolOutcome
	select {
	case o = <-done:
	case <-toolCtx.Done():
		select {
		case o = <-done:
		default:
			o.err = toolCtx.Err()
		}
	}

	if o.err != nil && toolCtx.Err() != nil {
		if ctx.Err() != nil {
			return domain.ToolCallStatusFailed, fmt.Sprintf("Error: %s was cancelled", name), ctx.Err().Error()
		}
		return domain.ToolCallStatusTimeout, fmt.Sprintf("Error: %s timed out after %s", name, timeout), "timeout"
	}
	return classify(o)
}

func classify(o toolOutcome) (domain.ToolCallStatus, string, string) {
	if o.err == nil {
		return domain.ToolCallStatusSucceeded, o.out, ""
	}
	var verr *domain.ValidationError
	if errors.As(o.err, &verr) {
		return domain.ToolCallStatusInvalid, "Error: " + o.err.Error(), o.err.Error()
	}
	return domain.ToolCallStatusFailed, "Error: " + o.err.Error(), o.err.Error()
}

// checkPolicy asks the policy engine about a call. An evaluation error
// blocks the call.
func (s *Service) checkPolicy(ctx context.Context, runID, threadID, callID, name string, args json.RawMessage) (domain.PolicyDecision, string) {
	if s.policyEngine == nil {
		return domain.PolicyAllow, ""
	}

	decision, reason, err := s.policyEngine.Evaluate(ctx, policy.Input{
		ToolName:     name,
		Args:         args,
		ThreadID:     threadID,
		RunID:        runID,
		OrderSenders: s.opts.OrderSenders,
	})
	if err != nil {
		log.Printf("ERROR: policy evaluation failed for %s in run %s: %v", name, runID, err)
		decision, reason = domain.PolicyBlock, "policy evaluation failed"
	}

	s.emit(ctx, runID, domain.EventTypePolicyDecision, domain.PolicyDecisionPayload{
		ToolCallID: callID,
		Decision:   decision,
		Reason:     reason,
	})
	return decision, reason
}

// validJSON keeps malformed oracle arguments storable as JSON.
func validJSON(raw json.RawMessage) json.RawMessage {
	if json.Valid(raw) {
		return raw
	}
	quoted, _ := json.Marshal(string(raw))
	return quoted
}
