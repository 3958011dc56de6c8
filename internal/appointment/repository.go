package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the appointment store. Implementations must enforce that at most
// one active appointment exists per (doctor, start) and return ErrSlotTaken when a
// write would violate it.
type Repository interface {
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// For conflict checks
	FindActiveAtSlot(ctx context.Context, doctorID string, start time.Time) ([]Appointment, error)

	ListAppointments(ctx context.Context, filter ListFilter) ([]Appointment, error)

	// Creation and updates
	CreateAppointment(ctx context.Context, a *Appointment) (*Appointment, error)
	// UpdateAppointment writes a only if the stored row still has the given status and
	// version. It returns ErrConcurrentUpdate when the guard does not match.
	UpdateAppointment(ctx context.Context, a *Appointment, prevStatus Status, prevVersion int) (*Appointment, error)

	// Auto-completion
	FindExpiredConfirmed(ctx context.Context, now time.Time) ([]Appointment, error)
	// CompleteIfConfirmed moves a confirmed appointment to completed. It returns
	// ErrConcurrentUpdate when the appointment is no longer confirmed.
	CompleteIfConfirmed(ctx context.Context, id uuid.UUID, now time.Time) (*Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}

// Directory resolves doctors and patients. The appointment core never writes to it.
type Directory interface {
	GetDoctor(ctx context.Context, id string) (*Party, error)
	GetPatient(ctx context.Context, id string) (*Party, error)
}
