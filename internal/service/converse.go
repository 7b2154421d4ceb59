package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/xiaot623/orderdesk/internal/domain"
)

// Converse runs one user request on a thread and returns the final answer.
// Requests on the same thread are serialised.
func (s *Service) Converse(ctx context.Context, threadID, content string) (*domain.RunResult, error) {
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		return nil, domain.ErrThreadRequired
	}
	if strings.TrimSpace(content) == "" {
		return nil, domain.ErrContentRequired
	}

	unlock := s.lockThread(threadID)
	defer unlock()

	if _, err := s.store.GetOrCreateThread(ctx, threadID); err != nil {
		return nil, fmt.Errorf("failed to get or create thread: %w", err)
	}
	history, err := s.store.ListMessages(ctx, threadID, s.opts.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	history = domain.TrimOrphanToolResults(history)

	instruction, err := RenderSystemPrompt(s.now(), s.opts.Location, s.opts.OrderSenders)
	if err != nil {
		return nil, err
	}

	runID := "run_" + uuid.New().String()[:8]
	run := &domain.Run{
		RunID:     runID,
		ThreadID:  threadID,
		Status:    domain.RunStatusRunning,
		StartedAt: s.now(),
	}
	if err := s.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	log.Printf("INFO: run %s started on thread %s with %d history messages", runID, threadID, len(history))

	s.emit(ctx, runID, domain.EventTypeRunStarted, domain.RunStartedPayload{
		ThreadID:      threadID,
		HistoryLength: len(history),
	})

	userMsg := domain.Message{
		MessageID: "msg_" + uuid.New().String()[:8],
		ThreadID:  threadID,
		RunID:     runID,
		Role:      domain.RoleUser,
		Content:   content,
		CreatedAt: s.now(),
	}
	s.emit(ctx, runID, domain.EventTypeUserInput, domain.UserInputPayload{
		MessageID: userMsg.MessageID,
		Content:   content,
	})

	runCtx, cancel := context.WithTimeout(ctx, s.opts.RunTimeout)
	defer cancel()
	untrack := s.trackRun(runID, cancel)
	defer untrack()

	conv := make([]domain.Message, 0, len(history)+2)
	conv = append(conv, domain.Message{Role: domain.RoleSystem, Content: instruction})
	conv = append(conv, history...)
	conv = append(conv, userMsg)

	outcome := s.runLoop(runCtx, runID, threadID, conv)

	if err := s.persistMessages(ctx, threadID, runID, userMsg, outcome.Added); err != nil {
		log.Printf("ERROR: failed to persist messages for run %s: %v", runID, err)
	}
	s.finishRun(ctx, runID, outcome)

	return &domain.RunResult{
		RunID:      runID,
		ThreadID:   threadID,
		Status:     outcome.Status,
		Answer:     outcome.Answer,
		Iterations: outcome.Iterations,
	}, nil
}

// persistMessages stores the user message and every message the loop
// appended. Bounded-failure texts are not part of the conversation.
func (s *Service) persistMessages(ctx context.Context, threadID, runID string, userMsg domain.Message, added []domain.Message) error {
	batch := make([]domain.Message, 0, len(added)+1)
	batch = append(batch, userMsg)
	for _, m := range added {
		if m.Role == domain.RoleSystem {
			continue
		}
		m.MessageID = "msg_" + uuid.New().String()[:8]
		m.ThreadID = threadID
		m.RunID = runID
		m.CreatedAt = s.now()
		batch = append(batch, m)
	}
	return s.store.AppendMessages(context.WithoutCancel(ctx), batch)
}

func (s *Service) finishRun(ctx context.Context, runID string, outcome loopOutcome) {
	var errData []byte
	eventType := domain.EventTypeRunDone
	var payload interface{} = domain.RunDonePayload{
		Iterations:   outcome.Iterations,
		FinalMessage: outcome.Answer,
	}

	if outcome.Status != domain.RunStatusDone {
		code := strings.ToLower(string(outcome.Status))
		message := outcome.Answer
		if outcome.Err != nil {
			message = outcome.Err.Error()
		}
		errData, _ = json.Marshal(map[string]string{"code": code, "message": message})
		payload = domain.RunFailedPayload{Code: code, Message: message, Iterations: outcome.Iterations}
		switch outcome.Status {
		case domain.RunStatusCancelled:
			eventType = domain.EventTypeRunCancelled
		case domain.RunStatusExhausted:
			eventType = domain.EventTypeRunExhausted
		default:
			eventType = domain.EventTypeRunFailed
		}
	}

	if err := s.store.UpdateRunCompleted(context.WithoutCancel(ctx), runID, outcome.Status, outcome.Iterations, errData); err != nil {
		log.Printf("ERROR: failed to complete run %s: %v", runID, err)
	}
	s.emit(ctx, runID, eventType, payload)
	s.metrics.ObserveRun(string(outcome.Status), outcome.Iterations)
	log.Printf("INFO: run %s finished: status=%s iterations=%d", runID, outcome.Status, outcome.Iterations)
}

// CancelRun cancels an in-flight run. The run stops before its next oracle
// call or dispatch.
func (s *Service) CancelRun(ctx context.Context, runID string) error {
	s.mu.Lock()
	cancel, ok := s.active[runID]
	s.mu.Unlock()
	if ok {
		cancel()
		log.Printf("INFO: run %s cancellation requested", runID)
		return nil
	}

	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to get run: %w", err)
	}
	if run == nil {
		return domain.ErrRunNotFound
	}
	return domain.ErrRunNotActive
}
