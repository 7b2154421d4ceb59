// Package gmail reads order mail through the Gmail API.
package gmail

import (
	"context"
	"fmt"
	"strings"
	"time"

	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/xiaot623/orderdesk/internal/adapter/retry"
	"github.com/xiaot623/orderdesk/internal/domain"
)

const labelUnread = "UNREAD"

// Query selects candidate order messages.
type Query struct {
	Since      time.Time
	Senders    []string
	MaxResults int64
	UnreadOnly bool
}

// String renders the query in Gmail search syntax, e.g.
// "from:a@x.com OR from:b@x.com after:2024/05/01 is:unread".
func (q Query) String() string {
	var parts []string
	if len(q.Senders) > 0 {
		from := make([]string, 0, len(q.Senders))
		for _, s := range q.Senders {
			from = append(from, "from:"+s)
		}
		parts = append(parts, strings.Join(from, " OR "))
	}
	if !q.Since.IsZero() {
		parts = append(parts, "after:"+q.Since.Format("2006/01/02"))
	}
	if q.UnreadOnly {
		parts = append(parts, "is:unread")
	}
	return strings.Join(parts, " ")
}

// Gateway is a mailbox backed by the Gmail API.
type Gateway struct {
	svc    *gmailapi.Service
	userID string
	retry  retry.Policy
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithUserID overrides the mailbox owner. Defaults to "me".
func WithUserID(id string) Option {
	return func(g *Gateway) { g.userID = id }
}

// WithRetryPolicy overrides the retry policy for transient failures.
func WithRetryPolicy(p retry.Policy) Option {
	return func(g *Gateway) { g.retry = p }
}

// NewGateway creates a Gmail gateway. Authentication is supplied through
// client options, usually option.WithHTTPClient.
func NewGateway(ctx context.Context, clientOpts []option.ClientOption, opts ...Option) (*Gateway, error) {
	svc, err := gmailapi.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}
	g := &Gateway{svc: svc, userID: "me", retry: retry.DefaultPolicy}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// ListCandidateMessages returns the ids of messages matching q.
// It returns domain.ErrNoData when nothing matches.
func (g *Gateway) ListCandidateMessages(ctx context.Context, q Query) ([]string, error) {
	call := g.svc.Users.Messages.List(g.userID).Q(q.String()).Context(ctx)
	if q.MaxResults > 0 {
		call = call.MaxResults(q.MaxResults)
	}
	resp, err := retry.Do(ctx, g.retry, func() (*gmailapi.ListMessagesResponse, error) {
		return call.Do()
	})
	if err != nil {
		return nil, &domain.GatewayError{Op: "gmail.list", Err: err}
	}

	ids := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		if m != nil && m.Id != "" {
			ids = append(ids, m.Id)
		}
	}
	if len(ids) == 0 {
		return nil, domain.ErrNoData
	}
	return ids, nil
}

// FetchMessage reads one message in full and decodes its body.
// It returns domain.ErrNoData when the message carries no headers.
func (g *Gateway) FetchMessage(ctx context.Context, id string) (*domain.EmailRecord, error) {
	call := g.svc.Users.Messages.Get(g.userID, id).Format("full").Context(ctx)
	msg, err := retry.Do(ctx, g.retry, func() (*gmailapi.Message, error) {
		return call.Do()
	})
	if err != nil {
		return nil, &domain.GatewayError{Op: "gmail.get", Err: err}
	}
	if msg.Payload == nil || len(msg.Payload.Headers) == 0 {
		return nil, domain.ErrNoData
	}

	body := ParseBody(msg.Payload)
	return &domain.EmailRecord{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Snippet:  msg.Snippet,
		Labels:   msg.LabelIds,
		Subject:  header(msg.Payload.Headers, "Subject"),
		From:     header(msg.Payload.Headers, "From"),
		Date:     header(msg.Payload.Headers, "Date"),
		Body:     domain.EmailBody{Plain: FlattenText(body.Plain)},
	}, nil
}

// MarkRead removes the unread label. Marking an already-read message is a
// no-op.
func (g *Gateway) MarkRead(ctx context.Context, id string) error {
	req := &gmailapi.ModifyMessageRequest{RemoveLabelIds: []string{labelUnread}}
	call := g.svc.Users.Messages.Modify(g.userID, id, req).Context(ctx)
	_, err := retry.Do(ctx, g.retry, func() (*gmailapi.Message, error) {
		return call.Do()
	})
	if err != nil {
		return &domain.GatewayError{Op: "gmail.modify", Err: err}
	}
	return nil
}

func header(headers []*gmailapi.MessagePartHeader, name string) string {
	for _, h := range headers {
		if h != nil && strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}
