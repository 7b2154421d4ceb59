package service

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"
)

// DefaultOrderRequest is the standing request an operator sends to process
// today's order mail.
const DefaultOrderRequest = "Check whether I have any new catering orders in my inbox and list the ones for upcoming dates, " +
	"including today. For every upcoming order, add an event to the calendar and tell me once it has been added. " +
	"Before adding, check the calendar: if the event for that order is already there, do not create it again. " +
	"When scheduling from an order email, add the guests the order asks for, " +
	"but never invite the email address the order came from or any client address mentioned in the body. " +
	"If there are no upcoming orders, just say that there are no upcoming orders for now."

const systemTemplate = `You are an assistant that processes restaurant order emails. Your goal is to extract the key information of each order and keep the calendar in sync with it.

Directives:
1. Read the whole email to understand the context of the order.
2. Decide whether the email is a new order, a confirmation, an update or a cancellation.
3. Extract these details:
   * "order_description": a one-sentence summary of the order.
   * "event_type": the reason for the order, for example "Pickup", "Delivery" or "Catering Event".
   * "event_date": the date of the delivery or pickup in YYYY-MM-DD format, with the time if one is given.
   * "customer_name": the person or company placing the order, if available.
   * "source_email": the email address of the sender.
4. Before creating an event, list the calendar events at that time and make sure the order is not scheduled twice.
5. Invite the guests the order asks for. Never invite the sender of the order email{{if .Senders}} ({{.Senders}}){{end}}.

Current DateTime: {{.Now}}
Current timeZone: {{.Zone}}

When you report an order, the report for it must be a single JSON object with the fields above, without markdown fences. Example:
{
  "order_description": "Order for 2 dozen assorted bagels and coffee service.",
  "event_type": "Delivery",
  "event_date": "2025-09-26 08:00 AM",
  "customer_name": "Jane Doe",
  "source_email": "jane.doe@example.com"
}`

var systemPrompt = template.Must(template.New("system").Parse(systemTemplate))

type promptData struct {
	Now     string
	Zone    string
	Senders string
}

// RenderSystemPrompt renders the system instruction for a run starting at now.
func RenderSystemPrompt(now time.Time, loc *time.Location, senders []string) (string, error) {
	if loc == nil {
		loc = time.Local
	}
	data := promptData{
		Now:     now.In(loc).Format("2006-01-02T15:04:05"),
		Zone:    loc.String(),
		Senders: strings.Join(senders, ", "),
	}
	var buf bytes.Buffer
	if err := systemPrompt.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render system prompt: %w", err)
	}
	return buf.String(), nil
}
