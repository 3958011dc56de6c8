package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/clock"
	redisclient "github.com/hackgods/clinic-booking/internal/redis"
)

// Service is the only writer of appointments. Every operation validates the actor
// and the current status before mutating, then notifies the other party on a best
// effort basis.
type Service struct {
	repo      Repository
	directory Directory
	conflicts *ConflictChecker
	locker    redisclient.Locker
	notifier  Notifier
	clock     clock.Clock
	log       zerolog.Logger
}

func NewService(repo Repository, directory Directory, locker redisclient.Locker, notifier Notifier, clk clock.Clock, logger zerolog.Logger) *Service {
	if locker == nil {
		locker = redisclient.NewLocalLocker()
	}
	if notifier == nil {
		notifier = NopNotifier()
	}
	if clk == nil {
		clk = clock.System()
	}
	return &Service{
		repo:      repo,
		directory: directory,
		conflicts: NewConflictChecker(repo),
		locker:    locker,
		notifier:  notifier,
		clock:     clk,
		log:       logger.With().Str("component", "appointment_service").Logger(),
	}
}

type BookRequest struct {
	PatientID string
	DoctorID  string
	Start     time.Time
	Notes     string
}

// Book creates a pending appointment for the patient with the doctor.
// The slot is locked for the duration of the check-then-insert, and the store's
// uniqueness guarantee backs the check if the lock is lost.
func (s *Service) Book(ctx context.Context, req BookRequest) (*Appointment, error) {
	if req.PatientID == "" || req.DoctorID == "" {
		return nil, ErrMissingField
	}
	if req.Start.IsZero() {
		return nil, ErrInvalidTimestamp
	}

	patient, err := s.directory.GetPatient(ctx, req.PatientID)
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}
	doctor, err := s.directory.GetDoctor(ctx, req.DoctorID)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	start := req.Start.In(clock.IST)
	var created *Appointment

	err = s.locker.WithSlotLock(ctx, doctor.ID, start, func(lockCtx context.Context) error {
		taken, err := s.conflicts.HasConflict(lockCtx, doctor.ID, start, uuid.Nil)
		if err != nil {
			return err
		}
		if taken {
			return ErrSlotTaken
		}

		now := s.clock.Now()
		appt, err := s.repo.CreateAppointment(lockCtx, &Appointment{
			ID:          uuid.New(),
			DoctorID:    doctor.ID,
			PatientID:   patient.ID,
			DoctorName:  doctor.Name,
			PatientName: patient.Name,
			StartTime:   start,
			EndTime:     start.Add(SlotDuration),
			Status:      StatusPending,
			Notes:       req.Notes,
			Version:     1,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if err != nil {
			if errors.Is(err, ErrSlotTaken) {
				return err
			}
			return fmt.Errorf("create appointment: %w", err)
		}
		created = appt
		return nil
	})
	if err != nil {
		return nil, lockError(err)
	}

	s.log.Info().
		Str("appointment_id", created.ID.String()).
		Str("doctor_id", created.DoctorID).
		Str("patient_id", created.PatientID).
		Time("start", created.StartTime).
		Msg("appointment booked")

	s.logEvent(ctx, created.ID, EventBookingRequested, map[string]any{
		"doctor_id":  created.DoctorID,
		"patient_id": created.PatientID,
		"start":      created.StartTime,
		"status":     created.Status,
	})

	s.notify(ctx, Notification{
		Event:       EventBookingRequested,
		Recipient:   *doctor,
		Doctor:      *doctor,
		Patient:     *patient,
		Appointment: *created,
		ActorRole:   RolePatient,
	})

	return created, nil
}

// Confirm is the doctor confirming an appointment. When the patient has a
// reschedule request outstanding, confirming commits the requested time.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID, actorID string) (*Appointment, error) {
	before, updated, err := s.mutate(ctx, id, func(a *Appointment) error {
		if a.DoctorID != actorID {
			return ErrNotDoctor
		}
		if err := checkTransition(a.Status, StatusConfirmed); err != nil {
			return err
		}
		switch a.Status {
		case StatusPatientRescheduledPending:
			if a.ProposedStartTime == nil {
				return ErrMissingProposedTime
			}
			a.applyProposal()
		case StatusDoctorRescheduledPending:
			a.clearStaging()
		}
		a.Status = StatusConfirmed
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, before, updated, RoleDoctor, EventConfirmed, nil)
	doctor, patient := s.parties(ctx, updated)
	s.notify(ctx, Notification{
		Event:         EventConfirmed,
		Recipient:     patient,
		Doctor:        doctor,
		Patient:       patient,
		Appointment:   *updated,
		ActorRole:     RoleDoctor,
		OriginalStart: before.StartTime,
	})
	return updated, nil
}

// Cancel cancels the appointment on behalf of either participant. Cancelling an
// appointment twice is an error, not a no-op.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, actorID, reason string) (*Appointment, error) {
	var role Role
	before, updated, err := s.mutate(ctx, id, func(a *Appointment) error {
		if !a.Participant(actorID) {
			return ErrNotParticipant
		}
		if a.Status == StatusCancelled {
			return ErrAlreadyCancelled
		}
		if err := checkTransition(a.Status, StatusCancelled); err != nil {
			return err
		}
		role = roleOf(a, actorID)
		if reason == "" {
			if role == RoleDoctor {
				reason = "Cancelled by Doctor"
			} else {
				reason = "Cancelled by Patient"
			}
		}
		r := reason
		a.CancelReason = &r
		a.clearStaging()
		a.Status = StatusCancelled
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, before, updated, role, EventCancelled, map[string]any{"reason": reason})
	doctor, patient := s.parties(ctx, updated)
	s.notify(ctx, Notification{
		Event:       EventCancelled,
		Recipient:   counterpart(role, doctor, patient),
		Doctor:      doctor,
		Patient:     patient,
		Appointment: *updated,
		ActorRole:   role,
		Reason:      reason,
	})
	return updated, nil
}

// ProposeRescheduleByPatient stages a new time requested by the patient. Only
// confirmed appointments qualify.
func (s *Service) ProposeRescheduleByPatient(ctx context.Context, id uuid.UUID, actorID string, newStart time.Time) (*Appointment, error) {
	if newStart.IsZero() {
		return nil, ErrInvalidTimestamp
	}
	newStart = newStart.In(clock.IST)

	before, updated, err := s.mutate(ctx, id, func(a *Appointment) error {
		if a.PatientID != actorID {
			return ErrNotPatient
		}
		if a.Status != StatusConfirmed {
			return ErrPatientRescheduleOnly
		}
		if err := checkTransition(a.Status, StatusPatientRescheduledPending); err != nil {
			return err
		}
		a.stage(ProposerPatient, newStart, nil)
		a.Status = StatusPatientRescheduledPending
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, before, updated, RolePatient, EventPatientRescheduleRequested, map[string]any{
		"proposed_start": newStart,
	})
	doctor, patient := s.parties(ctx, updated)
	s.notify(ctx, Notification{
		Event:         EventPatientRescheduleRequested,
		Recipient:     doctor,
		Doctor:        doctor,
		Patient:       patient,
		Appointment:   *updated,
		ActorRole:     RolePatient,
		OriginalStart: updated.StartTime,
		ProposedStart: newStart,
	})
	return updated, nil
}

// ProposeRescheduleByDoctor stages a new time proposed by the doctor. Pending
// appointments qualify as well as confirmed ones; this edge is specific to the
// doctor's proposal and is not part of the general transition table.
func (s *Service) ProposeRescheduleByDoctor(ctx context.Context, id uuid.UUID, actorID string, newStart time.Time, reason string) (*Appointment, error) {
	if newStart.IsZero() {
		return nil, ErrInvalidTimestamp
	}
	newStart = newStart.In(clock.IST)

	before, updated, err := s.mutate(ctx, id, func(a *Appointment) error {
		if a.DoctorID != actorID {
			return ErrNotDoctor
		}
		if a.Status != StatusPending && a.Status != StatusConfirmed {
			return ErrDoctorRescheduleOnly
		}
		var r *string
		if reason != "" {
			r = &reason
		}
		a.stage(ProposerDoctor, newStart, r)
		a.Status = StatusDoctorRescheduledPending
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, before, updated, RoleDoctor, EventDoctorRescheduleProposed, map[string]any{
		"proposed_start": newStart,
		"reason":         reason,
	})
	doctor, patient := s.parties(ctx, updated)
	s.notify(ctx, Notification{
		Event:         EventDoctorRescheduleProposed,
		Recipient:     patient,
		Doctor:        doctor,
		Patient:       patient,
		Appointment:   *updated,
		ActorRole:     RoleDoctor,
		OriginalStart: updated.StartTime,
		ProposedStart: newStart,
		Reason:        reason,
	})
	return updated, nil
}

// AcceptReschedule commits a staged time. Only the counterpart of the proposer
// may accept.
func (s *Service) AcceptReschedule(ctx context.Context, id uuid.UUID, actorID string) (*Appointment, error) {
	var role Role
	var proposed time.Time
	var reason string
	before, updated, err := s.mutate(ctx, id, func(a *Appointment) error {
		if !a.Participant(actorID) {
			return ErrNotParticipant
		}
		switch a.Status {
		case StatusDoctorRescheduledPending:
			if a.PatientID != actorID {
				return ErrNotPatient
			}
			role = RolePatient
		case StatusPatientRescheduledPending:
			if a.DoctorID != actorID {
				return ErrNotDoctor
			}
			role = RoleDoctor
		default:
			return ErrNoPendingReschedule
		}
		if a.ProposedStartTime == nil {
			return ErrMissingProposedTime
		}
		proposed = *a.ProposedStartTime
		if a.RescheduleReason != nil {
			reason = *a.RescheduleReason
		}
		a.applyProposal()
		a.Status = StatusConfirmed
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, before, updated, role, EventRescheduleAccepted, map[string]any{
		"previous_start": before.StartTime,
		"new_start":      proposed,
		"reason":         reason,
	})
	doctor, patient := s.parties(ctx, updated)
	s.notify(ctx, Notification{
		Event:         EventRescheduleAccepted,
		Recipient:     counterpart(role, doctor, patient),
		Doctor:        doctor,
		Patient:       patient,
		Appointment:   *updated,
		ActorRole:     role,
		OriginalStart: before.StartTime,
		ProposedStart: proposed,
	})
	return updated, nil
}

// RejectReschedule discards a staged time and returns the appointment to
// confirmed at its original time. Either participant may reject, so a proposer
// can also withdraw their own proposal.
func (s *Service) RejectReschedule(ctx context.Context, id uuid.UUID, actorID string) (*Appointment, error) {
	var role Role
	var rejected time.Time
	var reason string
	before, updated, err := s.mutate(ctx, id, func(a *Appointment) error {
		if !a.Participant(actorID) {
			return ErrNotParticipant
		}
		if !a.Status.ReschedulePending() {
			return ErrNoPendingReschedule
		}
		if err := checkTransition(a.Status, StatusConfirmed); err != nil {
			return err
		}
		role = roleOf(a, actorID)
		if a.ProposedStartTime != nil {
			rejected = *a.ProposedStartTime
		}
		if a.RescheduleReason != nil {
			reason = *a.RescheduleReason
		}
		a.clearStaging()
		a.Status = StatusConfirmed
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, before, updated, role, EventRescheduleRejected, map[string]any{
		"rejected_start": rejected,
		"proposed_by":    before.RescheduledBy,
		"reason":         reason,
	})
	doctor, patient := s.parties(ctx, updated)
	s.notify(ctx, Notification{
		Event:         EventRescheduleRejected,
		Recipient:     counterpart(role, doctor, patient),
		Doctor:        doctor,
		Patient:       patient,
		Appointment:   *updated,
		ActorRole:     role,
		OriginalStart: updated.StartTime,
		ProposedStart: rejected,
	})
	return updated, nil
}

// Complete always fails: completion is driven by time only, see AutoCompleteExpired.
func (s *Service) Complete(ctx context.Context, id uuid.UUID, actorID string) (*Appointment, error) {
	return nil, ErrManualCompleteDisabled
}

// ListForActor returns the actor's appointments ordered by start time, after
// promoting any that have already ended.
func (s *Service) ListForActor(ctx context.Context, actorID string, role Role) ([]Appointment, error) {
	if actorID == "" {
		return nil, ErrMissingField
	}
	s.sweepBeforeRead(ctx)

	filter := ListFilter{PatientID: actorID}
	if role == RoleDoctor {
		filter = ListFilter{DoctorID: actorID}
	}
	appointments, err := s.repo.ListAppointments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appointments, nil
}

// ListDoctorUpcoming returns the doctor's pending and confirmed appointments.
func (s *Service) ListDoctorUpcoming(ctx context.Context, doctorID string) ([]Appointment, error) {
	if doctorID == "" {
		return nil, ErrMissingField
	}
	s.sweepBeforeRead(ctx)

	appointments, err := s.repo.ListAppointments(ctx, ListFilter{
		DoctorID: doctorID,
		Statuses: []Status{StatusPending, StatusConfirmed},
	})
	if err != nil {
		return nil, fmt.Errorf("list upcoming appointments: %w", err)
	}
	return appointments, nil
}

// mutate loads an appointment, applies change to a copy, and writes it back
// guarded by the status and version that were read. If change moves the
// appointment onto a new slot, or stages a new proposed slot, that slot is locked
// and checked for conflicts first.
func (s *Service) mutate(ctx context.Context, id uuid.UUID, change func(a *Appointment) error) (Appointment, *Appointment, error) {
	current, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return Appointment{}, nil, err
		}
		return Appointment{}, nil, fmt.Errorf("load appointment: %w", err)
	}

	before := current.Clone()
	next := current.Clone()
	if err := change(&next); err != nil {
		return before, nil, err
	}
	next.UpdatedAt = s.clock.Now()

	write := func(ctx context.Context) (*Appointment, error) {
		updated, err := s.repo.UpdateAppointment(ctx, &next, before.Status, before.Version)
		if err != nil {
			if errors.Is(err, ErrConcurrentUpdate) || errors.Is(err, ErrSlotTaken) || errors.Is(err, ErrAppointmentNotFound) {
				return nil, err
			}
			return nil, fmt.Errorf("update appointment: %w", err)
		}
		return updated, nil
	}

	slot, claimsSlot := claimedSlot(before, next)
	if !claimsSlot {
		updated, err := write(ctx)
		return before, updated, err
	}

	var updated *Appointment
	err = s.locker.WithSlotLock(ctx, next.DoctorID, slot, func(lockCtx context.Context) error {
		taken, err := s.conflicts.HasConflict(lockCtx, next.DoctorID, slot, next.ID)
		if err != nil {
			return err
		}
		if taken {
			return ErrSlotTaken
		}
		updated, err = write(lockCtx)
		return err
	})
	if err != nil {
		return before, nil, lockError(err)
	}
	return before, updated, nil
}

// claimedSlot reports the slot a change newly occupies or proposes, if any.
func claimedSlot(before, next Appointment) (time.Time, bool) {
	if !next.StartTime.Equal(before.StartTime) && next.Status.Active() {
		return next.StartTime, true
	}
	if next.ProposedStartTime != nil {
		if before.ProposedStartTime == nil || !before.ProposedStartTime.Equal(*next.ProposedStartTime) {
			return *next.ProposedStartTime, true
		}
	}
	return time.Time{}, false
}

func lockError(err error) error {
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return ErrSlotBeingBooked
	}
	return err
}

func (s *Service) afterTransition(ctx context.Context, before Appointment, after *Appointment, role Role, event EventType, extra map[string]any) {
	s.log.Info().
		Str("appointment_id", after.ID.String()).
		Str("from", string(before.Status)).
		Str("to", string(after.Status)).
		Str("actor_role", string(role)).
		Int("version", after.Version).
		Msg("appointment transition")

	payload := map[string]any{
		"from":       before.Status,
		"to":         after.Status,
		"actor_role": role,
		"start":      after.StartTime,
	}
	for k, v := range extra {
		payload[k] = v
	}
	s.logEvent(ctx, after.ID, event, payload)
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType EventType, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn().Err(err).Str("event", string(eventType)).Msg("failed to marshal event payload")
		data = nil
	}

	apptID := appointmentID
	ev := EventLog{
		EventType:     string(eventType),
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.clock.Now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Warn().Err(err).
			Str("event", string(eventType)).
			Str("appointment_id", appointmentID.String()).
			Msg("failed to insert event log")
	}
}

// parties resolves both participants for notifications, falling back to the
// names snapshotted on the appointment when the directory lookup fails.
func (s *Service) parties(ctx context.Context, a *Appointment) (doctor, patient Party) {
	doctor = Party{ID: a.DoctorID, Name: a.DoctorName}
	patient = Party{ID: a.PatientID, Name: a.PatientName}

	if d, err := s.directory.GetDoctor(ctx, a.DoctorID); err != nil {
		s.log.Warn().Err(err).Str("doctor_id", a.DoctorID).Msg("doctor lookup for notification failed")
	} else {
		doctor.Email = d.Email
	}
	if p, err := s.directory.GetPatient(ctx, a.PatientID); err != nil {
		s.log.Warn().Err(err).Str("patient_id", a.PatientID).Msg("patient lookup for notification failed")
	} else {
		patient.Email = p.Email
	}
	return doctor, patient
}

func (s *Service) notify(ctx context.Context, n Notification) {
	if n.Recipient.Email == "" {
		s.log.Debug().
			Str("event", string(n.Event)).
			Str("recipient_id", n.Recipient.ID).
			Msg("no email on file, skipping notification")
		return
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.log.Warn().Err(err).
			Str("event", string(n.Event)).
			Str("appointment_id", n.Appointment.ID.String()).
			Msg("notification failed")
	}
}

func roleOf(a *Appointment, actorID string) Role {
	if actorID == a.DoctorID {
		return RoleDoctor
	}
	return RolePatient
}

func counterpart(actor Role, doctor, patient Party) Party {
	if actor == RoleDoctor {
		return patient
	}
	return doctor
}
