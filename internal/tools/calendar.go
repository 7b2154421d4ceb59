package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/xiaot623/orderdesk/internal/adapter/calendar"
	"github.com/xiaot623/orderdesk/internal/domain"
)

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTime reads an oracle-supplied time. Times without an offset are read
// in loc.
func parseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", s)
}

type getEventsArgs struct {
	Q       string `json:"q"`
	TimeMin string `json:"timeMin"`
	TimeMax string `json:"timeMax"`
}

func getEvents(cal Calendar, opts Options) Definition {
	return Definition{
		Name:        NameGetEvents,
		Description: "this tool can be used to check the meetings in the calendar",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"q": {
					Type: jsonschema.String,
					Description: "Free text matched against events: summary, description, location, " +
						"attendee's displayName or email, organizer's displayName or email",
				},
				"timeMin": {Type: jsonschema.String, Description: "The from datetime to get the events"},
				"timeMax": {Type: jsonschema.String, Description: "The to datetime to get events."},
			},
			Required: []string{"q", "timeMin", "timeMax"},
		},
		Timeout: opts.Timeout,
		Execute: func(ctx context.Context, raw json.RawMessage) (string, error) {
			var args getEventsArgs
			if err := json.Unmarshal(raw, &args); err != nil {
				return "", &domain.ValidationError{Tool: NameGetEvents, Reason: err.Error()}
			}

			q := calendar.EventQuery{Q: args.Q}
			var err error
			if args.TimeMin != "" {
				if q.TimeMin, err = parseTime(args.TimeMin, opts.location()); err != nil {
					return "", &domain.ValidationError{Tool: NameGetEvents, Reason: "timeMin: " + err.Error()}
				}
			}
			if args.TimeMax != "" {
				if q.TimeMax, err = parseTime(args.TimeMax, opts.location()); err != nil {
					return "", &domain.ValidationError{Tool: NameGetEvents, Reason: "timeMax: " + err.Error()}
				}
			}

			events, err := cal.ListEvents(ctx, q)
			if errors.Is(err, domain.ErrNoEvents) {
				return ResultNoEvents, nil
			}
			if err != nil {
				log.Printf("ERROR: get-events failed: %v", err)
				return ResultCalendarUnavailable, nil
			}
			data, err := json.Marshal(events)
			if err != nil {
				return "", err
			}
			return string(data), nil
		},
	}
}

func dateTimeSchema(what string) jsonschema.Definition {
	return jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"dateTime": {Type: jsonschema.String, Description: "The date time of the " + what + " of the event."},
			"timeZone": {Type: jsonschema.String, Description: "Current IANA timezone string"},
		},
		Required: []string{"dateTime", "timeZone"},
	}
}

func createEvent(cal Calendar, opts Options) Definition {
	return Definition{
		Name:        NameCreateEvent,
		Description: "this tool can be used to create events and schedule meeting",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"summary":     {Type: jsonschema.String, Description: "This is the title of the event"},
				"description": {Type: jsonschema.String, Description: "Details of the order"},
				"start":       dateTimeSchema("start"),
				"end":         dateTimeSchema("end"),
				"attendees": {
					Type: jsonschema.Array,
					Items: &jsonschema.Definition{
						Type: jsonschema.Object,
						Properties: map[string]jsonschema.Definition{
							"email":       {Type: jsonschema.String, Description: "This is the email of the attendees"},
							"displayName": {Type: jsonschema.String, Description: "This is the name of the attendees"},
						},
						Required: []string{"email", "displayName"},
					},
				},
			},
			Required: []string{"summary", "start", "end", "attendees"},
		},
		Timeout: opts.Timeout,
		Execute: func(ctx context.Context, raw json.RawMessage) (string, error) {
			var ev domain.NewEvent
			if err := json.Unmarshal(raw, &ev); err != nil {
				return "", &domain.ValidationError{Tool: NameCreateEvent, Reason: err.Error()}
			}

			if opts.DuplicateGuard {
				dup, err := hasDuplicate(ctx, cal, ev, opts.location())
				if err != nil {
					log.Printf("WARN: duplicate check for %q skipped: %v", ev.Summary, err)
				}
				if dup {
					return ResultDuplicateEvent, nil
				}
			}

			ok, err := cal.CreateEvent(ctx, ev)
			if err != nil {
				log.Printf("ERROR: create-event failed: %v", err)
				return ResultEventFailed, nil
			}
			if !ok {
				return ResultEventFailed, nil
			}
			return ResultEventCreated, nil
		},
	}
}

// hasDuplicate reports whether an event with the same summary overlaps the
// new event's time range.
func hasDuplicate(ctx context.Context, cal Calendar, ev domain.NewEvent, fallback *time.Location) (bool, error) {
	start, err := parseTime(ev.Start.DateTime, zone(ev.Start.TimeZone, fallback))
	if err != nil {
		return false, err
	}
	end, err := parseTime(ev.End.DateTime, zone(ev.End.TimeZone, fallback))
	if err != nil {
		return false, err
	}

	existing, err := cal.ListEvents(ctx, calendar.EventQuery{Q: ev.Summary, TimeMin: start, TimeMax: end})
	if errors.Is(err, domain.ErrNoEvents) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	want := strings.TrimSpace(ev.Summary)
	for _, e := range existing {
		if e.Status != "cancelled" && strings.EqualFold(strings.TrimSpace(e.Summary), want) {
			return true, nil
		}
	}
	return false, nil
}

func zone(name string, fallback *time.Location) *time.Location {
	if name == "" {
		return fallback
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return fallback
	}
	return loc
}
