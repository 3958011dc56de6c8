package appointment

import (
	"context"
	"time"
)

type EventType string

const (
	EventBookingRequested           EventType = "APPOINTMENT_BOOKED"
	EventConfirmed                  EventType = "APPOINTMENT_CONFIRMED"
	EventCancelled                  EventType = "APPOINTMENT_CANCELLED"
	EventPatientRescheduleRequested EventType = "PATIENT_RESCHEDULE_REQUESTED"
	EventDoctorRescheduleProposed   EventType = "DOCTOR_RESCHEDULE_PROPOSED"
	EventRescheduleAccepted         EventType = "RESCHEDULE_ACCEPTED"
	EventRescheduleRejected         EventType = "RESCHEDULE_REJECTED"
	EventCompleted                  EventType = "APPOINTMENT_COMPLETED"
)

// Notification is one message for one recipient about an appointment change.
type Notification struct {
	Event       EventType
	Recipient   Party
	Doctor      Party
	Patient     Party
	Appointment Appointment
	// ActorRole is the role of whoever triggered the change.
	ActorRole Role

	// OriginalStart is the appointment time before the change, where relevant.
	OriginalStart time.Time
	// ProposedStart is the staged or rejected reschedule time, where relevant.
	ProposedStart time.Time
	Reason        string
}

// Notifier delivers notifications. Delivery is best effort: the lifecycle never
// rolls back a committed change because a notification failed.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Notification) error { return nil }

// NopNotifier discards every notification.
func NopNotifier() Notifier {
	return nopNotifier{}
}
