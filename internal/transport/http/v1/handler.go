// Package v1 provides the /v1 HTTP handlers.
package v1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/orderdesk/internal/domain"
	"github.com/xiaot623/orderdesk/internal/service"
)

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service) *Handler {
	return &Handler{
		service: service,
	}
}

// RegisterRoutes registers the /v1 routes on g.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	// Conversations
	g.POST("/threads/:thread_id/messages", h.PostMessage)
	g.GET("/threads/:thread_id/messages", h.GetThreadMessages)
	g.GET("/ws", h.ChatSocket)

	// Runs
	g.GET("/runs/:run_id", h.GetRun)
	g.GET("/runs/:run_id/events", h.GetRunEvents)
	g.GET("/runs/:run_id/events/stream", h.StreamRunEvents)
	g.GET("/runs/:run_id/tool_calls", h.GetRunToolCalls)
	g.POST("/runs/:run_id/cancel", h.CancelRun)

	// Tools
	g.GET("/tools", h.ListTools)
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrThreadRequired), errors.Is(err, domain.ErrContentRequired):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrRunNotActive):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c echo.Context, err error) error {
	return c.JSON(errorStatus(err), domain.ErrorResponse{Error: err.Error()})
}
