package service

import (
	"context"
	"fmt"

	"github.com/xiaot623/orderdesk/internal/domain"
)

func (s *Service) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if run == nil {
		return nil, domain.ErrRunNotFound
	}
	return run, nil
}

func (s *Service) GetRunEvents(ctx context.Context, runID string, afterTs int64, types []string, limit int) ([]domain.Event, error) {
	events, err := s.store.GetEvents(ctx, runID, afterTs, types, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get run events: %w", err)
	}
	return events, nil
}

func (s *Service) ListToolCalls(ctx context.Context, runID string) ([]domain.ToolCallRecord, error) {
	calls, err := s.store.ListToolCalls(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tool calls: %w", err)
	}
	return calls, nil
}

// GetMessages returns up to limit of the latest persisted messages of a
// thread. HasMore is set when older messages exist.
func (s *Service) GetMessages(ctx context.Context, threadID string, limit int) (*domain.ListMessagesResponse, error) {
	if limit <= 0 {
		limit = 100
	}
	msgs, err := s.store.ListMessages(ctx, threadID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	resp := &domain.ListMessagesResponse{Messages: msgs}
	if len(msgs) > limit {
		resp.Messages = msgs[len(msgs)-limit:]
		resp.HasMore = true
	}
	if resp.Messages == nil {
		resp.Messages = []domain.Message{}
	}
	return resp, nil
}

// ListTools returns the registered tools with their schemas.
func (s *Service) ListTools() []domain.ToolListItem {
	sigs := s.registry.Signatures()
	items := make([]domain.ToolListItem, 0, len(sigs))
	for _, sig := range sigs {
		item := domain.ToolListItem{
			Name:        sig.Name,
			Description: sig.Description,
			Schema:      sig.Parameters,
		}
		if def, ok := s.registry.Lookup(sig.Name); ok {
			item.TimeoutMs = s.ToolTimeout(def).Milliseconds()
		}
		items = append(items, item)
	}
	return items
}
