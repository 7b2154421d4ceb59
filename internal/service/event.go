package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/xiaot623/orderdesk/internal/domain"
)

// recordEvent records an event to the store. Events are written even after
// the run's context was cancelled.
func (s *Service) recordEvent(ctx context.Context, runID string, eventType domain.EventType, payload interface{}) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	event := &domain.Event{
		EventID: "evt_" + uuid.New().String()[:8],
		RunID:   runID,
		Ts:      s.now().UnixMilli(),
		Type:    eventType,
		Payload: payloadBytes,
	}

	return s.store.CreateEvent(context.WithoutCancel(ctx), event)
}

// emit records an event and logs instead of failing the run.
func (s *Service) emit(ctx context.Context, runID string, eventType domain.EventType, payload interface{}) {
	if err := s.recordEvent(ctx, runID, eventType, payload); err != nil {
		log.Printf("WARN: failed to record %s event for run %s: %v", eventType, runID, err)
	}
}
