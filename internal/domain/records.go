package domain

// EmailBody holds the decoded body of an email.
type EmailBody struct {
	Plain string `json:"plain"`
}

// EmailRecord is a read-only snapshot of one mailbox message.
type EmailRecord struct {
	ID       string    `json:"id"`
	ThreadID string    `json:"threadId"`
	Snippet  string    `json:"snippet"`
	Labels   []string  `json:"labels"`
	Subject  string    `json:"subject"`
	From     string    `json:"from,omitempty"`
	Date     string    `json:"date,omitempty"`
	Body     EmailBody `json:"body"`
}

// EventDateTime is an ISO-8601 date-time with its IANA zone.
type EventDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone,omitempty"`
}

// Person is a calendar creator or organizer.
type Person struct {
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	Self        bool   `json:"self,omitempty"`
}

// Attendee is an event guest.
type Attendee struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

// CalendarEvent is a read-only snapshot of one calendar event.
type CalendarEvent struct {
	ID         string         `json:"id"`
	Summary    string         `json:"summary"`
	Status     string         `json:"status"`
	Creator    *Person        `json:"creator,omitempty"`
	Organizer  *Person        `json:"organizer,omitempty"`
	StartTime  *EventDateTime `json:"startTime,omitempty"`
	EndTime    *EventDateTime `json:"endTime,omitempty"`
	MeetingURL string         `json:"meetingUrl,omitempty"`
	EventType  string         `json:"eventType,omitempty"`
	Attendees  []Attendee     `json:"attendees,omitempty"`
}

// NewEvent is the input of a calendar insert.
type NewEvent struct {
	Summary     string        `json:"summary"`
	Description string        `json:"description,omitempty"`
	Start       EventDateTime `json:"start"`
	End         EventDateTime `json:"end"`
	Attendees   []Attendee    `json:"attendees"`
}
