package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/orderdesk/internal/domain"
)

// PostMessage runs one user request on a thread.
// POST /v1/threads/:thread_id/messages
func (h *Handler) PostMessage(c echo.Context) error {
	var req domain.ConverseRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, domain.ErrorResponse{Error: "invalid request body"})
	}

	res, err := h.service.Converse(c.Request().Context(), c.Param("thread_id"), req.Content)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// GetThreadMessages retrieves the persisted history of a thread.
// GET /v1/threads/:thread_id/messages
func (h *Handler) GetThreadMessages(c echo.Context) error {
	limit := 50
	if l := c.QueryParam("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil {
			limit = val
		}
	}

	resp, err := h.service.GetMessages(c.Request().Context(), c.Param("thread_id"), limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}
