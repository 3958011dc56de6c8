package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/clock"
)

const timeLayout = "Monday, January 02, 2006 at 03:04 PM"

// FormatTime renders t in clinic time, e.g. "Monday, March 10, 2025 at 02:30 PM".
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(clock.IST).Format(timeLayout)
}

// Message is a rendered email.
type Message struct {
	To      string
	ToName  string
	Subject string
	HTML    string
}

type view struct {
	Recipient    string
	Doctor       string
	Patient      string
	Actor        string
	Time         string
	OriginalTime string
	ProposedTime string
	Reason       string
	Link         string
	SenderName   string
}

type eventTemplate struct {
	subject func(v view) string
	body    string
	path    string
}

var eventTemplates = map[appointment.EventType]eventTemplate{
	appointment.EventBookingRequested: {
		subject: func(v view) string { return "New Appointment Request from " + v.Patient },
		body:    "booked",
		path:    "/practitioner/appointments",
	},
	appointment.EventConfirmed: {
		subject: func(view) string { return "Your Appointment is Confirmed" },
		body:    "confirmed",
		path:    "/patient/appointments",
	},
	appointment.EventCancelled: {
		subject: func(view) string { return "Appointment Cancelled" },
		body:    "cancelled",
	},
	appointment.EventPatientRescheduleRequested: {
		subject: func(v view) string { return "Reschedule Request from " + v.Patient },
		body:    "patient_reschedule",
		path:    "/practitioner/appointments",
	},
	appointment.EventDoctorRescheduleProposed: {
		subject: func(v view) string { return v.Doctor + " Proposed a New Appointment Time" },
		body:    "doctor_reschedule",
		path:    "/patient/appointments",
	},
	appointment.EventRescheduleAccepted: {
		subject: func(v view) string { return v.Actor + " Accepted Reschedule" },
		body:    "accepted",
	},
	appointment.EventRescheduleRejected: {
		subject: func(v view) string { return v.Actor + " Rejected Reschedule" },
		body:    "rejected",
	},
	appointment.EventCompleted: {
		subject: func(view) string { return "Your Appointment is Complete" },
		body:    "completed",
		path:    "/patient/appointments",
	},
}

const layout = `<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
{{template "content" .}}
{{if .Link}}<a href="{{.Link}}" style="display: inline-block; background: #2563eb; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; margin: 20px 0;">View Appointments</a>{{end}}
<p style="color: #6b7280; font-size: 14px; margin-top: 30px;">This is an automated message from {{.SenderName}}.</p>
</div>
</body>
</html>`

var bodies = map[string]string{
	"booked": `<h2 style="color: #2563eb;">New Appointment Request</h2>
<p>Dear {{.Recipient}},</p>
<p>You have received a new appointment request:</p>
<div style="background: #f3f4f6; padding: 15px; border-radius: 8px; margin: 20px 0;">
<p><strong>Patient:</strong> {{.Patient}}</p>
<p><strong>Date &amp; Time:</strong> {{.Time}}</p>
<p><strong>Status:</strong> Pending Your Confirmation</p>
</div>
<p>Please log in to your dashboard to confirm or reject this appointment.</p>`,

	"confirmed": `<h2 style="color: #10b981;">Appointment Confirmed</h2>
<p>Dear {{.Recipient}},</p>
<p>Your appointment with {{.Doctor}} has been confirmed.</p>
<div style="background: #ecfdf5; padding: 15px; border-radius: 8px; margin: 20px 0;">
<p><strong>Date &amp; Time:</strong> {{.Time}}</p>
</div>`,

	"cancelled": `<h2 style="color: #ef4444;">Appointment Cancelled</h2>
<p>Dear {{.Recipient}},</p>
<p>Your appointment scheduled for {{.Time}} has been cancelled by {{.Actor}}.</p>
{{if .Reason}}<p><strong>Reason:</strong> {{.Reason}}</p>{{end}}`,

	"patient_reschedule": `<h2 style="color: #f59e0b;">Reschedule Request</h2>
<p>Dear {{.Recipient}},</p>
<p>{{.Patient}} has requested to move their appointment.</p>
<div style="background: #fffbeb; padding: 15px; border-radius: 8px; margin: 20px 0;">
<p><strong>Current Time:</strong> {{.OriginalTime}}</p>
<p><strong>Requested Time:</strong> {{.ProposedTime}}</p>
</div>
<p>Please confirm or reject the new time.</p>`,

	"doctor_reschedule": `<h2 style="color: #f59e0b;">Appointment Time Change Requested</h2>
<p>Dear {{.Recipient}},</p>
<p>{{.Doctor}} has proposed a new time for your appointment.</p>
<div style="background: #fffbeb; padding: 15px; border-radius: 8px; margin: 20px 0;">
<p><strong>Original Time:</strong> <span style="text-decoration: line-through;">{{.OriginalTime}}</span></p>
<p><strong>Proposed Time:</strong> {{.ProposedTime}}</p>
{{if .Reason}}<p><strong>Reason:</strong> {{.Reason}}</p>{{end}}
</div>
<p><strong>Please accept or reject this change.</strong></p>`,

	"accepted": `<h2 style="color: #10b981;">Reschedule Accepted</h2>
<p>Dear {{.Recipient}},</p>
<p>{{.Actor}} accepted the new appointment time.</p>
<div style="background: #ecfdf5; padding: 15px; border-radius: 8px; margin: 20px 0;">
<p><strong>New Time:</strong> {{.Time}}</p>
</div>`,

	"rejected": `<h2 style="color: #ef4444;">Reschedule Rejected</h2>
<p>Dear {{.Recipient}},</p>
<p>{{.Actor}} rejected the proposed appointment time. The appointment stays at its original time.</p>
<div style="background: #f3f4f6; padding: 15px; border-radius: 8px; margin: 20px 0;">
<p><strong>Original Time:</strong> {{.OriginalTime}}</p>
<p><strong>Rejected Time:</strong> <span style="text-decoration: line-through;">{{.ProposedTime}}</span></p>
</div>`,

	"completed": `<h2 style="color: #2563eb;">Appointment Complete</h2>
<p>Dear {{.Recipient}},</p>
<p>Your appointment with {{.Doctor}} on {{.Time}} is now complete. Thank you for visiting.</p>`,
}

// compiled holds one template per body, each wrapped in the shared layout.
var compiled = func() map[string]*template.Template {
	out := make(map[string]*template.Template, len(bodies))
	for name, body := range bodies {
		out[name] = template.Must(template.New(name).Parse(layout + `{{define "content"}}` + body + `{{end}}`))
	}
	return out
}()

// Renderer turns notifications into emails.
type Renderer struct {
	baseURL    string
	senderName string
}

func NewRenderer(baseURL, senderName string) *Renderer {
	return &Renderer{baseURL: baseURL, senderName: senderName}
}

func (r *Renderer) Render(n appointment.Notification) (Message, error) {
	tpl, ok := eventTemplates[n.Event]
	if !ok {
		return Message{}, fmt.Errorf("no email template for event %s", n.Event)
	}

	actor := n.Patient.Name
	if n.ActorRole == appointment.RoleDoctor {
		actor = n.Doctor.Name
	}
	v := view{
		Recipient:    n.Recipient.Name,
		Doctor:       n.Doctor.Name,
		Patient:      n.Patient.Name,
		Actor:        actor,
		Time:         FormatTime(n.Appointment.StartTime),
		OriginalTime: FormatTime(n.OriginalStart),
		ProposedTime: FormatTime(n.ProposedStart),
		Reason:       n.Reason,
		SenderName:   r.senderName,
	}
	if tpl.path != "" && r.baseURL != "" {
		v.Link = r.baseURL + tpl.path
	}

	var buf bytes.Buffer
	if err := compiled[tpl.body].Execute(&buf, v); err != nil {
		return Message{}, fmt.Errorf("render %s email: %w", n.Event, err)
	}

	return Message{
		To:      n.Recipient.Email,
		ToName:  n.Recipient.Name,
		Subject: tpl.subject(v),
		HTML:    buf.String(),
	}, nil
}
