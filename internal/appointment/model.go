package appointment

import (
	"time"

	"github.com/google/uuid"
)

// SlotDuration is the fixed length of every appointment.
const SlotDuration = 30 * time.Minute

type Status string

const (
	StatusPending                   Status = "pending"
	StatusConfirmed                 Status = "confirmed"
	StatusDoctorRescheduledPending  Status = "doctor_rescheduled_pending"
	StatusPatientRescheduledPending Status = "patient_rescheduled_pending"
	StatusCancelled                 Status = "cancelled"
	StatusCompleted                 Status = "completed"
)

// AllStatuses lists the closed set of appointment statuses.
var AllStatuses = []Status{
	StatusPending,
	StatusConfirmed,
	StatusDoctorRescheduledPending,
	StatusPatientRescheduledPending,
	StatusCancelled,
	StatusCompleted,
}

// ActiveStatuses are the statuses that occupy a doctor's slot.
var ActiveStatuses = []Status{
	StatusPending,
	StatusConfirmed,
	StatusDoctorRescheduledPending,
	StatusPatientRescheduledPending,
}

func (s Status) Valid() bool {
	for _, candidate := range AllStatuses {
		if s == candidate {
			return true
		}
	}
	return false
}

// Active reports whether an appointment in this status blocks its slot.
func (s Status) Active() bool {
	for _, candidate := range ActiveStatuses {
		if s == candidate {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

func (s Status) ReschedulePending() bool {
	return s == StatusDoctorRescheduledPending || s == StatusPatientRescheduledPending
}

// Proposer identifies which party staged a reschedule. The zero value means none.
type Proposer string

const (
	ProposerNone    Proposer = ""
	ProposerPatient Proposer = "patient"
	ProposerDoctor  Proposer = "doctor"
)

// Role is the role of an authenticated actor.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

// Party is a read-only view of a doctor or patient used for names and emails.
type Party struct {
	ID    string
	Name  string
	Email string
}

type Appointment struct {
	ID          uuid.UUID
	DoctorID    string
	PatientID   string
	DoctorName  string
	PatientName string

	StartTime time.Time
	EndTime   time.Time
	Status    Status

	ProposedStartTime *time.Time
	ProposedEndTime   *time.Time
	RescheduledBy     Proposer
	RescheduleReason  *string

	CancelReason *string
	Notes        string

	// Version increments on every committed update and guards concurrent writers.
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Participant reports whether actorID is the doctor or the patient of the appointment.
func (a *Appointment) Participant(actorID string) bool {
	return actorID != "" && (actorID == a.DoctorID || actorID == a.PatientID)
}

func (a *Appointment) stage(by Proposer, start time.Time, reason *string) {
	end := start.Add(SlotDuration)
	a.ProposedStartTime = &start
	a.ProposedEndTime = &end
	a.RescheduledBy = by
	a.RescheduleReason = reason
}

// applyProposal moves the staged time onto the appointment and clears staging.
func (a *Appointment) applyProposal() {
	if a.ProposedStartTime != nil {
		a.StartTime = *a.ProposedStartTime
		a.EndTime = a.ProposedStartTime.Add(SlotDuration)
	}
	a.clearStaging()
}

func (a *Appointment) clearStaging() {
	a.ProposedStartTime = nil
	a.ProposedEndTime = nil
	a.RescheduledBy = ProposerNone
	a.RescheduleReason = nil
}

// Clone returns a deep copy so callers can mutate without aliasing store state.
func (a Appointment) Clone() Appointment {
	out := a
	if a.ProposedStartTime != nil {
		t := *a.ProposedStartTime
		out.ProposedStartTime = &t
	}
	if a.ProposedEndTime != nil {
		t := *a.ProposedEndTime
		out.ProposedEndTime = &t
	}
	if a.RescheduleReason != nil {
		r := *a.RescheduleReason
		out.RescheduleReason = &r
	}
	if a.CancelReason != nil {
		r := *a.CancelReason
		out.CancelReason = &r
	}
	return out
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// ListFilter narrows appointment queries. Empty fields do not filter.
type ListFilter struct {
	DoctorID    string
	PatientID   string
	Statuses    []Status
	StartFrom   *time.Time
	StartBefore *time.Time
	EndBefore   *time.Time
}
