// Package llm provides the decision oracle the orchestration loop consults.
package llm

import (
	"context"
	"errors"

	"github.com/xiaot623/orderdesk/internal/domain"
)

// ErrEmptyResponse is returned when the provider answers without a choice.
var ErrEmptyResponse = errors.New("oracle returned no choices")

// Oracle decides the next assistant message for a conversation. The returned
// message either carries tool calls or is the final answer.
type Oracle interface {
	Respond(ctx context.Context, messages []domain.Message, tools []domain.ToolSignature) (domain.Message, error)
}

// Ensure Client implements Oracle interface.
var _ Oracle = (*Client)(nil)
