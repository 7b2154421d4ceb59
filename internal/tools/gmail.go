package tools

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/sashabaranov/go-openai/jsonschema"
	"golang.org/x/sync/errgroup"

	"github.com/xiaot623/orderdesk/internal/adapter/gmail"
	"github.com/xiaot623/orderdesk/internal/domain"
)

type latestGmailArgs struct {
	MaxResults *float64 `json:"maxResults"`
	From       string   `json:"from"`
}

func latestGmail(mail Mailbox, opts Options) Definition {
	return Definition{
		Name:        NameGetLatestGmail,
		Description: "Fetch the latest emails from Gmail. You can optionally specify `maxResults` and `from` email address.",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"maxResults": {Type: jsonschema.Number, Description: "How many emails to return. Defaults to 1."},
				"from":       {Type: jsonschema.String, Description: "Only return emails sent from this address."},
			},
		},
		Timeout: opts.Timeout,
		Execute: func(ctx context.Context, raw json.RawMessage) (string, error) {
			var args latestGmailArgs
			if err := json.Unmarshal(raw, &args); err != nil {
				return "", &domain.ValidationError{Tool: NameGetLatestGmail, Reason: err.Error()}
			}
			return fetchLatest(ctx, mail, opts, args)
		},
	}
}

func fetchLatest(ctx context.Context, mail Mailbox, opts Options, args latestGmailArgs) (string, error) {
	now := opts.now().In(opts.location())
	q := gmail.Query{
		Since:      time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()),
		Senders:    opts.OrderSenders,
		MaxResults: 1,
		UnreadOnly: true,
	}
	if args.From != "" {
		q.Senders = []string{args.From}
	}
	if args.MaxResults != nil && *args.MaxResults >= 1 {
		q.MaxResults = int64(*args.MaxResults)
	}

	ids, err := mail.ListCandidateMessages(ctx, q)
	if errors.Is(err, domain.ErrNoData) {
		return ResultNoData, nil
	}
	if err != nil {
		return "", &domain.ExecutionError{Tool: NameGetLatestGmail, Message: msgEmailFailure, Err: err}
	}

	records := make([]*domain.EmailRecord, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		g.Go(func() error {
			rec, err := mail.FetchMessage(gctx, id)
			if errors.Is(err, domain.ErrNoData) {
				return nil
			}
			if err != nil {
				return err
			}
			records[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", &domain.ExecutionError{Tool: NameGetLatestGmail, Message: msgEmailFailure, Err: err}
	}

	// Every listed message is marked read once the whole batch was fetched.
	g, gctx = errgroup.WithContext(ctx)
	for _, id := range ids {
		g.Go(func() error {
			return mail.MarkRead(gctx, id)
		})
	}
	if err := g.Wait(); err != nil {
		log.Printf("WARN: failed to mark emails read: %v", err)
	}

	out := make([]*domain.EmailRecord, 0, len(records))
	for _, rec := range records {
		if rec != nil {
			out = append(out, rec)
		}
	}
	if len(out) == 0 {
		return ResultNoData, nil
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "", &domain.ExecutionError{Tool: NameGetLatestGmail, Message: msgEmailFailure, Err: err}
	}
	return string(data), nil
}
