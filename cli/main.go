// Package main provides the orderdesk chat client. It reads requests from
// stdin, sends them over the websocket chat endpoint and prints the answers.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xiaot623/orderdesk/internal/domain"
	"github.com/xiaot623/orderdesk/internal/service"
)

// Client is a websocket chat client bound to one thread.
type Client struct {
	conn     *websocket.Conn
	threadID string
}

// NewClient connects to the chat endpoint at addr.
func NewClient(addr, threadID, token string) (*Client, error) {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, _, err := websocket.DefaultDialer.Dial(addr, header)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	return &Client{conn: conn, threadID: threadID}, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	return c.conn.Close()
}

// Ask sends one request and waits for its answer.
func (c *Client) Ask(content string) (string, error) {
	msg := domain.Frame{
		Type:     domain.FrameUserMessage,
		Ts:       time.Now().UnixMilli(),
		ThreadID: c.threadID,
		Content:  content,
	}
	if err := c.conn.WriteJSON(msg); err != nil {
		return "", fmt.Errorf("write: %w", err)
	}

	var reply domain.Frame
	if err := c.conn.ReadJSON(&reply); err != nil {
		return "", fmt.Errorf("read: %w", err)
	}
	if reply.Type == domain.FrameError {
		return "", fmt.Errorf("%s: %s", reply.Code, reply.Content)
	}
	return reply.Content, nil
}

type asker interface {
	Ask(content string) (string, error)
}

// repl prompts with "YOU: " and prints "AI: " answers until "bye" or EOF.
// "check" or an empty line sends the standing order request.
func repl(in io.Reader, out io.Writer, c asker) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "YOU: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "bye" {
			return nil
		}
		if input == "" || input == "check" {
			input = service.DefaultOrderRequest
		}

		answer, err := c.Ask(input)
		if err != nil {
			fmt.Fprintf(out, "ERROR: %v\n", err)
			continue
		}
		fmt.Fprintf(out, "AI: %s\n", answer)
	}
}

func main() {
	addr := flag.String("addr", "ws://localhost:8080/v1/ws", "WebSocket chat address")
	thread := flag.String("thread", "1", "Conversation thread id")
	token := flag.String("token", os.Getenv("ORDERDESK_TOKEN"), "Bearer token when the API requires one")
	flag.Parse()

	log.SetFlags(log.Ltime)

	client, err := NewClient(*addr, *thread, *token)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer client.Close()

	if err := repl(os.Stdin, os.Stdout, client); err != nil {
		log.Fatalf("Input error: %v", err)
	}
}
