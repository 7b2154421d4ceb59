package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
)

const interruptedMessage = "interrupted by a restart"

// RecoverInterrupted closes out runs and tool calls a previous process left
// RUNNING. Call it before serving requests.
func (s *Service) RecoverInterrupted(ctx context.Context) error {
	cutoff := s.now()

	calls, err := s.store.TimeoutStaleToolCalls(ctx, cutoff, interruptedMessage)
	if err != nil {
		return fmt.Errorf("failed to time out stale tool calls: %w", err)
	}

	errData, _ := json.Marshal(map[string]string{"code": "interrupted", "message": interruptedMessage})
	runs, err := s.store.FailStaleRuns(ctx, cutoff, errData)
	if err != nil {
		return fmt.Errorf("failed to fail stale runs: %w", err)
	}

	if runs > 0 || calls > 0 {
		log.Printf("WARN: recovered %d interrupted runs and %d tool calls", runs, calls)
	}
	return nil
}
