package v1

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/orderdesk/internal/domain"
)

const (
	streamPollInterval = 100 * time.Millisecond
	streamMaxDuration  = 10 * time.Minute
)

// StreamRunEvents streams the trace of a run via SSE until the run reaches a
// terminal state.
// GET /v1/runs/:run_id/events/stream
func (h *Handler) StreamRunEvents(c echo.Context) error {
	ctx := c.Request().Context()
	runID := c.Param("run_id")

	if _, err := h.service.GetRun(ctx, runID); err != nil {
		return writeError(c, err)
	}

	// Set SSE headers
	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Flush()

	// Events sharing a millisecond may arrive across two polls, so the
	// cursor trails by one and ids already sent are skipped.
	sent := make(map[string]bool)
	lastTs := int64(0)
	deadline := time.Now().Add(streamMaxDuration)
	ticker := time.NewTicker(streamPollInterval)
	defer ticker.Stop()

	for {
		// Read the status before the events so nothing written before the
		// terminal transition is missed.
		run, err := h.service.GetRun(ctx, runID)
		if err != nil {
			log.Printf("ERROR: failed to get run status: %v", err)
			return nil
		}

		events, err := h.service.GetRunEvents(ctx, runID, lastTs-1, nil, 0)
		if err != nil {
			log.Printf("ERROR: failed to get events: %v", err)
			return nil
		}
		for _, event := range events {
			if sent[event.EventID] {
				continue
			}
			if err := sendSSEEvent(c, event); err != nil {
				return nil
			}
			sent[event.EventID] = true
			if event.Ts > lastTs {
				lastTs = event.Ts
			}
		}

		if run.Status.IsTerminal() {
			log.Printf("INFO: run %s reached terminal state: %s", runID, run.Status)
			return nil
		}
		if time.Now().After(deadline) {
			log.Printf("INFO: event stream for run %s exceeded max duration", runID)
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// sendSSEEvent writes one event as "event: <type>\ndata: <json>\n\n".
func sendSSEEvent(c echo.Context, event domain.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(c.Response(), "event: %s\ndata: %s\n\n", event.Type, data); err != nil {
		return err
	}
	c.Response().Flush()
	return nil
}
