package appointment

import "errors"

// Kind classifies errors for callers that need to map them onto a transport.
type Kind int

const (
	KindUnexpected Kind = iota
	KindInvalidInput
	KindNotFound
	KindUnauthorized
	KindConflict
	KindInvalidState
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindConflict:
		return "conflict"
	case KindInvalidState:
		return "invalid_state"
	default:
		return "unexpected"
	}
}

// Error is a domain error with a stable kind and a short user-facing message.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

var (
	ErrInvalidTimestamp = newError(KindInvalidInput, "invalid date format")
	ErrMissingField     = newError(KindInvalidInput, "missing required fields")

	ErrAppointmentNotFound = newError(KindNotFound, "appointment not found")
	ErrDoctorNotFound      = newError(KindNotFound, "doctor not found")
	ErrPatientNotFound     = newError(KindNotFound, "patient not found")

	ErrNotDoctor              = newError(KindUnauthorized, "only the appointment's doctor can perform this action")
	ErrNotPatient             = newError(KindUnauthorized, "only the appointment's patient can perform this action")
	ErrNotParticipant         = newError(KindUnauthorized, "not a participant of this appointment")
	ErrManualCompleteDisabled = newError(KindUnauthorized, "manual completion is disabled; appointments complete automatically after their end time")

	ErrSlotTaken         = newError(KindConflict, "time slot is already booked for this doctor")
	ErrSlotBeingBooked   = newError(KindConflict, "slot is currently being booked, please retry shortly")
	ErrConcurrentUpdate  = newError(KindConflict, "appointment was modified concurrently, please retry")
	ErrAlreadyCancelled  = newError(KindInvalidState, "appointment is already cancelled")
	ErrInvalidTransition = newError(KindInvalidState, "invalid status transition")

	ErrNoPendingReschedule   = newError(KindInvalidState, "no pending reschedule request")
	ErrMissingProposedTime   = newError(KindInvalidState, "no proposed time to apply")
	ErrPatientRescheduleOnly = newError(KindInvalidState, "only confirmed appointments can be rescheduled by the patient")
	ErrDoctorRescheduleOnly  = newError(KindInvalidState, "only pending or confirmed appointments can be rescheduled by the doctor")
)

// KindOf reports the kind of err. Errors that are not domain errors are unexpected.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}

// MessageOf returns the user-facing message of a domain error, or "" for anything else.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return ""
}
