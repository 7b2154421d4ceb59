package helpers

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/xiaot623/orderdesk/internal/adapter/calendar"
	"github.com/xiaot623/orderdesk/internal/adapter/gmail"
	"github.com/xiaot623/orderdesk/internal/domain"
)

// FakeMail is one message held by FakeMailbox.
type FakeMail struct {
	ID       string
	From     string
	Subject  string
	Body     string
	Unread   bool
	Received time.Time
}

// FakeMailbox is an in-memory mailbox for tests.
type FakeMailbox struct {
	mu       sync.Mutex
	mails    []*FakeMail
	Queries  []gmail.Query
	ListErr  error
	FetchErr error
}

// NewFakeMailbox creates a mailbox holding mails, all unread unless stated.
func NewFakeMailbox(mails ...*FakeMail) *FakeMailbox {
	return &FakeMailbox{mails: mails}
}

// Unread reports whether the message id is still unread.
func (f *FakeMailbox) Unread(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.mails {
		if m.ID == id {
			return m.Unread
		}
	}
	return false
}

func (f *FakeMailbox) ListCandidateMessages(_ context.Context, q gmail.Query) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Queries = append(f.Queries, q)
	if f.ListErr != nil {
		return nil, f.ListErr
	}

	var ids []string
	for _, m := range f.mails {
		if q.UnreadOnly && !m.Unread {
			continue
		}
		if !q.Since.IsZero() && !m.Received.IsZero() && m.Received.Before(q.Since) {
			continue
		}
		if len(q.Senders) > 0 && !containsFold(q.Senders, m.From) {
			continue
		}
		ids = append(ids, m.ID)
		if q.MaxResults > 0 && int64(len(ids)) >= q.MaxResults {
			break
		}
	}
	if len(ids) == 0 {
		return nil, domain.ErrNoData
	}
	return ids, nil
}

func (f *FakeMailbox) FetchMessage(_ context.Context, id string) (*domain.EmailRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FetchErr != nil {
		return nil, f.FetchErr
	}
	for _, m := range f.mails {
		if m.ID == id {
			labels := []string{"INBOX"}
			if m.Unread {
				labels = append(labels, "UNREAD")
			}
			return &domain.EmailRecord{
				ID:       m.ID,
				ThreadID: "t-" + m.ID,
				Snippet:  m.Subject,
				Labels:   labels,
				Subject:  m.Subject,
				From:     m.From,
				Body:     domain.EmailBody{Plain: gmail.FlattenText(m.Body)},
			}, nil
		}
	}
	return nil, &domain.GatewayError{Op: "gmail.get", Err: fmt.Errorf("message %s not found", id)}
}

func (f *FakeMailbox) MarkRead(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.mails {
		if m.ID == id {
			m.Unread = false
		}
	}
	return nil
}

// FakeCalendar is an in-memory calendar for tests.
type FakeCalendar struct {
	mu        sync.Mutex
	events    []domain.CalendarEvent
	Inserts   []domain.NewEvent
	Queries   []calendar.EventQuery
	ListErr   error
	CreateErr error
	// CreateStatusOK is what CreateEvent reports on success. Defaults to true.
	CreateStatusOK *bool
}

// NewFakeCalendar creates a calendar holding events.
func NewFakeCalendar(events ...domain.CalendarEvent) *FakeCalendar {
	return &FakeCalendar{events: events}
}

// Events returns a copy of the stored events.
func (f *FakeCalendar) Events() []domain.CalendarEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.CalendarEvent(nil), f.events...)
}

// InsertCount returns how many events were written.
func (f *FakeCalendar) InsertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Inserts)
}

func (f *FakeCalendar) ListEvents(_ context.Context, q calendar.EventQuery) ([]domain.CalendarEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Queries = append(f.Queries, q)
	if f.ListErr != nil {
		return nil, f.ListErr
	}

	var out []domain.CalendarEvent
	for _, e := range f.events {
		if q.Q != "" && !matches(e, q.Q) {
			continue
		}
		if !overlaps(e, q.TimeMin, q.TimeMax) {
			continue
		}
		out = append(out, e)
	}
	if len(out) == 0 {
		return nil, domain.ErrNoEvents
	}
	return out, nil
}

func (f *FakeCalendar) CreateEvent(_ context.Context, ev domain.NewEvent) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		return false, f.CreateErr
	}
	f.Inserts = append(f.Inserts, ev)
	if f.CreateStatusOK != nil && !*f.CreateStatusOK {
		return false, nil
	}

	start, end := ev.Start, ev.End
	f.events = append(f.events, domain.CalendarEvent{
		ID:        fmt.Sprintf("evt%d", len(f.Inserts)),
		Summary:   ev.Summary,
		Status:    "confirmed",
		StartTime: &start,
		EndTime:   &end,
		Attendees: ev.Attendees,
	})
	return true, nil
}

func matches(e domain.CalendarEvent, q string) bool {
	q = strings.ToLower(q)
	if strings.Contains(strings.ToLower(e.Summary), q) {
		return true
	}
	for _, a := range e.Attendees {
		if strings.Contains(strings.ToLower(a.Email), q) || strings.Contains(strings.ToLower(a.DisplayName), q) {
			return true
		}
	}
	return false
}

func overlaps(e domain.CalendarEvent, from, to time.Time) bool {
	start, okStart := eventTime(e.StartTime)
	end, okEnd := eventTime(e.EndTime)
	if !to.IsZero() && okStart && !start.Before(to) {
		return false
	}
	if !from.IsZero() && okEnd && !end.After(from) {
		return false
	}
	return true
}

func eventTime(dt *domain.EventDateTime) (time.Time, bool) {
	if dt == nil {
		return time.Time{}, false
	}
	loc := time.UTC
	if dt.TimeZone != "" {
		if l, err := time.LoadLocation(dt.TimeZone); err == nil {
			loc = l
		}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, dt.DateTime, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
