// Package calendar reads and writes events through the Google Calendar API.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	calendarapi "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/xiaot623/orderdesk/internal/adapter/retry"
	"github.com/xiaot623/orderdesk/internal/domain"
)

// EventQuery selects events on the calendar.
type EventQuery struct {
	Q       string
	TimeMin time.Time
	TimeMax time.Time
}

// Gateway is a calendar backed by the Google Calendar API.
type Gateway struct {
	svc        *calendarapi.Service
	calendarID string
	retry      retry.Policy
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithCalendarID overrides the target calendar. Defaults to "primary".
func WithCalendarID(id string) Option {
	return func(g *Gateway) {
		if id != "" {
			g.calendarID = id
		}
	}
}

// WithRetryPolicy overrides the retry policy for transient failures.
func WithRetryPolicy(p retry.Policy) Option {
	return func(g *Gateway) { g.retry = p }
}

// NewGateway creates a Calendar gateway.
func NewGateway(ctx context.Context, clientOpts []option.ClientOption, opts ...Option) (*Gateway, error) {
	svc, err := calendarapi.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	g := &Gateway{svc: svc, calendarID: "primary", retry: retry.DefaultPolicy}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// ListEvents returns the events matching q, recurring events expanded and
// ordered by start time. It returns domain.ErrNoEvents when nothing matches.
func (g *Gateway) ListEvents(ctx context.Context, q EventQuery) ([]domain.CalendarEvent, error) {
	call := g.svc.Events.List(g.calendarID).SingleEvents(true).OrderBy("startTime").Context(ctx)
	if q.Q != "" {
		call = call.Q(q.Q)
	}
	if !q.TimeMin.IsZero() {
		call = call.TimeMin(q.TimeMin.Format(time.RFC3339))
	}
	if !q.TimeMax.IsZero() {
		call = call.TimeMax(q.TimeMax.Format(time.RFC3339))
	}

	resp, err := retry.Do(ctx, g.retry, func() (*calendarapi.Events, error) {
		return call.Do()
	})
	if err != nil {
		return nil, &domain.GatewayError{Op: "calendar.list", Err: err}
	}
	if len(resp.Items) == 0 {
		return nil, domain.ErrNoEvents
	}

	events := make([]domain.CalendarEvent, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item != nil {
			events = append(events, toRecord(item))
		}
	}
	return events, nil
}

// CreateEvent inserts ev and notifies every attendee. It reports true when
// the provider answered with status 200. The event id is chosen here so a
// retried insert cannot create a second copy: a conflict on a retry means an
// earlier attempt was stored.
func (g *Gateway) CreateEvent(ctx context.Context, ev domain.NewEvent) (bool, error) {
	body := &calendarapi.Event{
		Id:          newEventID(),
		Summary:     ev.Summary,
		Description: ev.Description,
		Start:       &calendarapi.EventDateTime{DateTime: ev.Start.DateTime, TimeZone: ev.Start.TimeZone},
		End:         &calendarapi.EventDateTime{DateTime: ev.End.DateTime, TimeZone: ev.End.TimeZone},
	}
	for _, a := range ev.Attendees {
		body.Attendees = append(body.Attendees, &calendarapi.EventAttendee{
			Email:       a.Email,
			DisplayName: a.DisplayName,
		})
	}

	call := g.svc.Events.Insert(g.calendarID, body).
		SendUpdates("all").
		ConferenceDataVersion(1).
		Context(ctx)
	attempt := 0
	created, err := retry.Do(ctx, g.retry, func() (*calendarapi.Event, error) {
		attempt++
		out, err := call.Do()
		if attempt > 1 && isConflict(err) {
			log.Printf("WARN: event %s already stored by an earlier attempt", body.Id)
			return &calendarapi.Event{
				Id:             body.Id,
				ServerResponse: googleapi.ServerResponse{HTTPStatusCode: http.StatusOK},
			}, nil
		}
		return out, err
	})
	if err != nil {
		return false, &domain.GatewayError{Op: "calendar.insert", Err: err}
	}
	return created.HTTPStatusCode == http.StatusOK, nil
}

// newEventID returns an id in the base32hex alphabet Calendar accepts.
func newEventID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

func isConflict(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusConflict
}

func toRecord(e *calendarapi.Event) domain.CalendarEvent {
	rec := domain.CalendarEvent{
		ID:         e.Id,
		Summary:    e.Summary,
		Status:     e.Status,
		StartTime:  toDateTime(e.Start),
		EndTime:    toDateTime(e.End),
		MeetingURL: e.HangoutLink,
		EventType:  e.EventType,
	}
	if e.Creator != nil {
		rec.Creator = &domain.Person{Email: e.Creator.Email, DisplayName: e.Creator.DisplayName, Self: e.Creator.Self}
	}
	if e.Organizer != nil {
		rec.Organizer = &domain.Person{Email: e.Organizer.Email, DisplayName: e.Organizer.DisplayName, Self: e.Organizer.Self}
	}
	for _, a := range e.Attendees {
		if a != nil {
			rec.Attendees = append(rec.Attendees, domain.Attendee{Email: a.Email, DisplayName: a.DisplayName})
		}
	}
	return rec
}

// toDateTime keeps all-day events usable by reporting their date.
func toDateTime(dt *calendarapi.EventDateTime) *domain.EventDateTime {
	if dt == nil {
		return nil
	}
	value := dt.DateTime
	if value == "" {
		value = dt.Date
	}
	return &domain.EventDateTime{DateTime: value, TimeZone: dt.TimeZone}
}
