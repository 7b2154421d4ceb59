package v1

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/xiaot623/orderdesk/internal/domain"
)

const maxFrameSize = 64 * 1024

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ChatSocket serves the chat client. Each user_message frame runs one
// request and is answered by exactly one answer or error frame.
// GET /v1/ws
func (h *Handler) ChatSocket(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("WARN: failed to upgrade websocket: %v", err)
		return err
	}
	defer conn.Close()
	conn.SetReadLimit(maxFrameSize)

	ctx := c.Request().Context()
	defaultThread := c.QueryParam("thread_id")
	if defaultThread == "" {
		defaultThread = "ws_" + uuid.New().String()[:8]
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WARN: websocket read error: %v", err)
			}
			return nil
		}

		var in domain.Frame
		if err := json.Unmarshal(data, &in); err != nil {
			if err := writeFrame(conn, errorFrame("", "invalid_message", "invalid JSON frame")); err != nil {
				return nil
			}
			continue
		}
		if in.Type != domain.FrameUserMessage {
			if err := writeFrame(conn, errorFrame(in.ThreadID, "invalid_message", "unknown frame type: "+in.Type)); err != nil {
				return nil
			}
			continue
		}

		threadID := in.ThreadID
		if threadID == "" {
			threadID = defaultThread
		}

		out := errorFrame(threadID, "", "")
		res, err := h.service.Converse(ctx, threadID, in.Content)
		if err != nil {
			out.Code = "request_failed"
			out.Content = err.Error()
			if errorStatus(err) == http.StatusInternalServerError {
				log.Printf("ERROR: websocket request on thread %s failed: %v", threadID, err)
				out.Content = "the request could not be processed"
			}
		} else {
			out = domain.Frame{
				Type:       domain.FrameAnswer,
				Ts:         time.Now().UnixMilli(),
				ThreadID:   res.ThreadID,
				RunID:      res.RunID,
				Content:    res.Answer,
				Status:     res.Status,
				Iterations: res.Iterations,
			}
		}
		if err := writeFrame(conn, out); err != nil {
			log.Printf("WARN: websocket write error: %v", err)
			return nil
		}
	}
}

func errorFrame(threadID, code, message string) domain.Frame {
	return domain.Frame{
		Type:     domain.FrameError,
		Ts:       time.Now().UnixMilli(),
		ThreadID: threadID,
		Code:     code,
		Content:  message,
	}
}

func writeFrame(conn *websocket.Conn, f domain.Frame) error {
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteJSON(f)
}
