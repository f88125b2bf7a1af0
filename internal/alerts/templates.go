package alerts

import (
	"bytes"
	"fmt"
	"text/template"
	"time"

	"fulfillment_backend/internal/sla"

	"github.com/google/uuid"
)

const (
	subjectPrimaryFmt    = "SLA breach: %s deadline missed"
	subjectEscalationFmt = "ESCALATION: %s breach unacknowledged"
)

var breachDescriptions = map[sla.BreachType]string{
	sla.BreachAssignment:   "no chef has been assigned",
	sla.BreachConfirmation: "the assigned chef has not confirmed",
	sla.BreachPrep:         "preparation has not started",
	sla.BreachArrival:      "the chef has not arrived",
}

var alertTemplates = template.Must(template.New("alerts").Parse(`
{{- define "primary" -}}
Booking {{.BookingID}}: {{.Description}}. Deadline was {{.Deadline}}. Event at {{.EventAt}}.
{{- end -}}
{{- define "escalation" -}}
Booking {{.BookingID}} still breached after {{.Window}}: {{.Description}}. Deadline was {{.Deadline}}. Event at {{.EventAt}}. Please acknowledge.
{{- end -}}`))

// MessageData is the input for alert rendering.
type MessageData struct {
	BookingID  uuid.UUID
	BreachType sla.BreachType
	Deadline   time.Time
	EventAt    time.Time
	Window     time.Duration
	Location   *time.Location
}

type messageView struct {
	BookingID   string
	Description string
	Deadline    string
	EventAt     string
	Window      string
}

// RenderMessage builds the subject and body for an alert kind.
func RenderMessage(kind Kind, data MessageData) (Message, error) {
	loc := data.Location
	if loc == nil {
		loc = time.UTC
	}

	view := messageView{
		BookingID:   data.BookingID.String(),
		Description: breachDescriptions[data.BreachType],
		Deadline:    data.Deadline.In(loc).Format("Mon 02 Jan 15:04 MST"),
		EventAt:     data.EventAt.In(loc).Format("Mon 02 Jan 15:04 MST"),
		Window:      data.Window.String(),
	}

	name := "primary"
	subject := fmt.Sprintf(subjectPrimaryFmt, data.BreachType)
	if kind == KindEscalation {
		name = "escalation"
		subject = fmt.Sprintf(subjectEscalationFmt, data.BreachType)
	}

	var buf bytes.Buffer
	if err := alertTemplates.ExecuteTemplate(&buf, name, view); err != nil {
		return Message{}, fmt.Errorf("render %s alert: %w", name, err)
	}
	return Message{Subject: subject, Body: buf.String()}, nil
}
