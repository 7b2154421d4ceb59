package tools

import (
	"context"
	"time"

	"github.com/xiaot623/orderdesk/internal/adapter/calendar"
	"github.com/xiaot623/orderdesk/internal/adapter/gmail"
	"github.com/xiaot623/orderdesk/internal/domain"
)

// Tool names exposed to the oracle.
const (
	NameGetLatestGmail = "get-latest-gmail"
	NameGetEvents      = "get-events"
	NameCreateEvent    = "create-event"
)

// Tool result texts the oracle relies on.
const (
	ResultNoData              = "No Data Found"
	ResultNoEvents            = "No Events Found in Calendar"
	ResultCalendarUnavailable = "Failed to connect to calendar"
	ResultEventCreated        = "The meeting has been scheduled successfully."
	ResultEventFailed         = "Unable to create a meeting"
	ResultDuplicateEvent      = "An event with this summary already exists at that time; it was not created again."

	msgEmailFailure = "An error occurred while trying to retrieve emails."
)

// Mailbox is the email gateway the tools read from.
type Mailbox interface {
	ListCandidateMessages(ctx context.Context, q gmail.Query) ([]string, error)
	FetchMessage(ctx context.Context, id string) (*domain.EmailRecord, error)
	MarkRead(ctx context.Context, id string) error
}

// Calendar is the calendar gateway the tools read from and write to.
type Calendar interface {
	ListEvents(ctx context.Context, q calendar.EventQuery) ([]domain.CalendarEvent, error)
	CreateEvent(ctx context.Context, ev domain.NewEvent) (bool, error)
}

// Options tune the order tools.
type Options struct {
	// OrderSenders is the allow-list used when the oracle names no sender.
	OrderSenders []string
	// Location is the zone "today" and zone-less times are read in.
	Location *time.Location
	// DuplicateGuard makes create-event refuse to insert an event whose
	// summary already exists in the same time range.
	DuplicateGuard bool
	// Timeout is applied to every tool. Zero leaves it to the caller.
	Timeout time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

func (o Options) location() *time.Location {
	if o.Location == nil {
		return time.Local
	}
	return o.Location
}

func (o Options) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

// OrderTools returns the three order-desk tools bound to the given gateways.
func OrderTools(mail Mailbox, cal Calendar, opts Options) []Definition {
	return []Definition{
		latestGmail(mail, opts),
		getEvents(cal, opts),
		createEvent(cal, opts),
	}
}
