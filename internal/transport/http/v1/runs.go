package v1

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/orderdesk/internal/domain"
)

// GetRun retrieves a run.
// GET /v1/runs/:run_id
func (h *Handler) GetRun(c echo.Context) error {
	run, err := h.service.GetRun(c.Request().Context(), c.Param("run_id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, run)
}

// GetRunEvents retrieves events for a run.
// GET /v1/runs/:run_id/events?after_ts=&types=a,b&limit=
func (h *Handler) GetRunEvents(c echo.Context) error {
	runID := c.Param("run_id")
	limit := 100
	if l := c.QueryParam("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil {
			limit = val
		}
	}
	afterTs := int64(0)
	if t := c.QueryParam("after_ts"); t != "" {
		if val, err := strconv.ParseInt(t, 10, 64); err == nil {
			afterTs = val
		}
	}
	var types []string
	for _, t := range strings.Split(c.QueryParam("types"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			types = append(types, t)
		}
	}

	ctx := c.Request().Context()
	if _, err := h.service.GetRun(ctx, runID); err != nil {
		return writeError(c, err)
	}

	events, err := h.service.GetRunEvents(ctx, runID, afterTs, types, limit)
	if err != nil {
		return writeError(c, err)
	}
	if events == nil {
		events = []domain.Event{}
	}
	return c.JSON(http.StatusOK, domain.ListEventsResponse{Events: events})
}

// GetRunToolCalls lists the tool calls of a run.
// GET /v1/runs/:run_id/tool_calls
func (h *Handler) GetRunToolCalls(c echo.Context) error {
	runID := c.Param("run_id")
	ctx := c.Request().Context()
	if _, err := h.service.GetRun(ctx, runID); err != nil {
		return writeError(c, err)
	}

	calls, err := h.service.ListToolCalls(ctx, runID)
	if err != nil {
		return writeError(c, err)
	}
	if calls == nil {
		calls = []domain.ToolCallRecord{}
	}
	return c.JSON(http.StatusOK, domain.ListToolCallsResponse{ToolCalls: calls})
}

// CancelRun cancels an in-flight run.
// POST /v1/runs/:run_id/cancel
func (h *Handler) CancelRun(c echo.Context) error {
	runID := c.Param("run_id")
	if err := h.service.CancelRun(c.Request().Context(), runID); err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"run_id":  runID,
		"message": "cancellation requested",
	})
}
