package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/xiaot623/orderdesk/internal/domain"
)

// Texts returned to the caller when a run ends without an answer.
const (
	MsgExhausted = "I could not complete the request within the allowed number of steps."
	MsgTimedOut  = "I could not complete the request within the allowed time."
	MsgCancelled = "The request was cancelled."
	MsgFailed    = "Something went wrong while processing the request. Please try again."
)

// loopOutcome is how one pass of the loop ended.
type loopOutcome struct {
	Status     domain.RunStatus
	Answer     string
	Iterations int
	// Added holds the assistant and tool messages appended during the run.
	Added []domain.Message
	Err   error
}

// runLoop drives the oracle until it answers without tool calls or a budget
// runs out. conv is the full sequence sent on the first call; it is never
// mutated in place.
func (s *Service) runLoop(ctx context.Context, runID, threadID string, conv []domain.Message) loopOutcome {
	conv = append([]domain.Message(nil), conv...)
	start := len(conv)
	seen := requestedIDs(conv)
	signatures := s.registry.Signatures()

	out := loopOutcome{}
	state := domain.LoopStateAwaitingOracle
	for state != domain.LoopStateTerminal {
		if err := ctx.Err(); err != nil {
			return s.interrupted(out, conv[start:], err)
		}

		switch state {
		case domain.LoopStateAwaitingOracle:
			if out.Iterations >= s.opts.MaxIterations {
				out.Status = domain.RunStatusExhausted
				out.Answer = MsgExhausted
				out.Err = fmt.Errorf("%w: %d oracle calls", domain.ErrBudgetExhausted, out.Iterations)
				out.Added = conv[start:]
				return out
			}
			out.Iterations++

			reply, err := s.askOracle(ctx, runID, out.Iterations, conv, signatures)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return s.interrupted(out, conv[start:], ctxErr)
				}
				out.Status = domain.RunStatusFailed
				out.Answer = MsgFailed
				out.Err = err
				out.Added = conv[start:]
				return out
			}
			reply.Role = domain.RoleAssistant
			reply.ToolCalls = normalizeToolCalls(reply.ToolCalls, seen)
			conv = append(conv, reply)

			if reply.HasToolCalls() {
				state = domain.LoopStateDispatchingTools
			} else {
				out.Status = domain.RunStatusDone
				out.Answer = reply.Content
				state = domain.LoopStateTerminal
			}

		case domain.LoopStateDispatchingTools:
			calls := conv[len(conv)-1].ToolCalls
			conv = append(conv, s.dispatch(ctx, runID, threadID, calls)...)
			state = domain.LoopStateAwaitingOracle
		}
	}

	out.Added = conv[start:]
	return out
}

func (s *Service) interrupted(out loopOutcome, added []domain.Message, err error) loopOutcome {
	out.Added = added
	if errors.Is(err, context.DeadlineExceeded) {
		out.Status = domain.RunStatusExhausted
		out.Answer = MsgTimedOut
		out.Err = fmt.Errorf("%w: run timeout", domain.ErrBudgetExhausted)
		return out
	}
	out.Status = domain.RunStatusCancelled
	out.Answer = MsgCancelled
	out.Err = err
	return out
}

func (s *Service) askOracle(ctx context.Context, runID string, iteration int, conv []domain.Message, signatures []domain.ToolSignature) (domain.Message, error) {
	requestID := "req_" + uuid.New().String()[:8]
	s.emit(ctx, runID, domain.EventTypeOracleCallStarted, domain.OracleCallStartedPayload{
		RequestID: requestID,
		Iteration: iteration,
		Messages:  len(conv),
	})

	callCtx, cancel := context.WithTimeout(ctx, s.opts.OracleTimeout)
	defer cancel()

	started := time.Now()
	reply, err := s.oracle.Respond(callCtx, conv, signatures)
	latency := time.Since(started)
	s.metrics.ObserveOracleCall(latency, err)

	done := domain.OracleCallDonePayload{RequestID: requestID, LatencyMs: latency.Milliseconds()}
	if err != nil {
		done.Error = err.Error()
	} else {
		for _, tc := range reply.ToolCalls {
			done.ToolCalls = append(done.ToolCalls, tc.Name)
		}
	}
	s.emit(ctx, runID, domain.EventTypeOracleCallDone, done)

	if err != nil {
		log.Printf("ERROR: oracle call %d failed for run %s: %v", iteration, runID, err)
		return domain.Message{}, fmt.Errorf("oracle call failed: %w", err)
	}
	return reply, nil
}

func requestedIDs(conv []domain.Message) map[string]bool {
	seen := make(map[string]bool)
	for _, m := range conv {
		for _, tc := range m.ToolCalls {
			seen[tc.ID] = true
		}
	}
	return seen
}

// normalizeToolCalls gives every call an id unique within the conversation
// and arguments that are valid JSON. Missing or repeated ids are replaced;
// malformed arguments are kept as a JSON string and fail validation.
func normalizeToolCalls(calls []domain.ToolCall, seen map[string]bool) []domain.ToolCall {
	if len(calls) == 0 {
		return calls
	}
	out := make([]domain.ToolCall, len(calls))
	for i, tc := range calls {
		if tc.ID == "" || seen[tc.ID] {
			tc.ID = "call_" + uuid.New().String()[:8]
		}
		seen[tc.ID] = true
		if len(tc.Arguments) == 0 {
			tc.Arguments = json.RawMessage(`{}`)
		}
		tc.Arguments = validJSON(tc.Arguments)
		out[i] = tc
	}
	return out
}
