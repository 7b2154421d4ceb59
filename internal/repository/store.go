// Package store persists threads, messages, runs, events and tool calls.
package store

import (
	"context"
	"time"

	"github.com/xiaot623/orderdesk/internal/domain"
)

// Store defines the persistence operations the service needs.
type Store interface {
	// Threads
	GetOrCreateThread(ctx context.Context, threadID string) (*domain.Thread, error)
	GetThread(ctx context.Context, threadID string) (*domain.Thread, error)

	// Messages
	AppendMessages(ctx context.Context, messages []domain.Message) error
	ListMessages(ctx context.Context, threadID string, limit int) ([]domain.Message, error)

	// Runs
	CreateRun(ctx context.Context, run *domain.Run) error
	GetRun(ctx context.Context, runID string) (*domain.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status domain.RunStatus) error
	UpdateRunCompleted(ctx context.Context, runID string, status domain.RunStatus, iterations int, errData []byte) error

	// Events
	CreateEvent(ctx context.Context, event *domain.Event) error
	GetEvents(ctx context.Context, runID string, afterTs int64, types []string, limit int) ([]domain.Event, error)

	// Tool calls
	CreateToolCall(ctx context.Context, call *domain.ToolCallRecord) error
	UpdateToolCallResult(ctx context.Context, runID, toolCallID string, status domain.ToolCallStatus, result, errMsg string) error
	ListToolCalls(ctx context.Context, runID string) ([]domain.ToolCallRecord, error)

	// Recovery
	TimeoutStaleToolCalls(ctx context.Context, startedBefore time.Time, errMsg string) (int64, error)
	FailStaleRuns(ctx context.Context, startedBefore time.Time, errData []byte) (int64, error)

	Close() error
}

// Ensure SQLiteStore implements Store interface.
var _ Store = (*SQLiteStore)(nil)
