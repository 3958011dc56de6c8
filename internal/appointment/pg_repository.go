package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-booking/internal/clock"
)

// activeSlotIndex is the partial unique index over (doctor_id, start_ts) for
// active statuses. See internal/db/migrations.
const activeSlotIndex = "appointments_active_slot_uq"

const appointmentColumns = `id, doctor_id, patient_id, doctor_name, patient_name,
	start_ts, end_ts, status,
	proposed_start_ts, proposed_end_ts, rescheduled_by, reschedule_reason,
	cancel_reason, notes, version, created_at, updated_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var rescheduledBy *string

	err := row.Scan(
		&a.ID,
		&a.DoctorID,
		&a.PatientID,
		&a.DoctorName,
		&a.PatientName,
		&a.StartTime,
		&a.EndTime,
		&a.Status,
		&a.ProposedStartTime,
		&a.ProposedEndTime,
		&rescheduledBy,
		&a.RescheduleReason,
		&a.CancelReason,
		&a.Notes,
		&a.Version,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	if rescheduledBy != nil {
		a.RescheduledBy = Proposer(*rescheduledBy)
	}
	a.StartTime = a.StartTime.In(clock.IST)
	a.EndTime = a.EndTime.In(clock.IST)
	if a.ProposedStartTime != nil {
		t := a.ProposedStartTime.In(clock.IST)
		a.ProposedStartTime = &t
	}
	if a.ProposedEndTime != nil {
		t := a.ProposedEndTime.In(clock.IST)
		a.ProposedEndTime = &t
	}
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func isActiveSlotViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" && pgErr.ConstraintName == activeSlotIndex
}

func nullableProposer(p Proposer) *string {
	if p == ProposerNone {
		return nil
	}
	s := string(p)
	return &s
}

// Interface methods

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) FindActiveAtSlot(ctx context.Context, doctorID string, start time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
		  AND start_ts = $2
		  AND status IN ('pending', 'confirmed', 'doctor_rescheduled_pending', 'patient_rescheduled_pending')
	`, doctorID, start)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListAppointments(ctx context.Context, filter ListFilter) ([]Appointment, error) {
	var where []string
	var args []any
	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if filter.DoctorID != "" {
		add("doctor_id = $%d", filter.DoctorID)
	}
	if filter.PatientID != "" {
		add("patient_id = $%d", filter.PatientID)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		add("status = ANY($%d)", statuses)
	}
	if filter.StartFrom != nil {
		add("start_ts >= $%d", *filter.StartFrom)
	}
	if filter.StartBefore != nil {
		add("start_ts < $%d", *filter.StartBefore)
	}
	if filter.EndBefore != nil {
		add("end_ts < $%d", *filter.EndBefore)
	}

	query := `SELECT ` + appointmentColumns + ` FROM appointments`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY start_ts, created_at`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) CreateAppointment(ctx context.Context, a *Appointment) (*Appointment, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Version == 0 {
		a.Version = 1
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (
			id, doctor_id, patient_id, doctor_name, patient_name,
			start_ts, end_ts, status,
			proposed_start_ts, proposed_end_ts, rescheduled_by, reschedule_reason,
			cancel_reason, notes, version, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			COALESCE($16, now()), COALESCE($17, now()))
		RETURNING `+appointmentColumns,
		a.ID, a.DoctorID, a.PatientID, a.DoctorName, a.PatientName,
		a.StartTime, a.EndTime, a.Status,
		a.ProposedStartTime, a.ProposedEndTime, nullableProposer(a.RescheduledBy), a.RescheduleReason,
		a.CancelReason, a.Notes, a.Version, nullableTime(a.CreatedAt), nullableTime(a.UpdatedAt),
	)

	created, err := scanAppointment(row)
	if err != nil {
		if isActiveSlotViolation(err) {
			return nil, ErrSlotTaken
		}
		return nil, err
	}
	return created, nil
}

func (r *PgRepository) UpdateAppointment(ctx context.Context, a *Appointment, prevStatus Status, prevVersion int) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET start_ts = $2,
		    end_ts = $3,
		    status = $4,
		    proposed_start_ts = $5,
		    proposed_end_ts = $6,
		    rescheduled_by = $7,
		    reschedule_reason = $8,
		    cancel_reason = $9,
		    notes = $10,
		    version = version + 1,
		    updated_at = COALESCE($11, now())
		WHERE id = $1
		  AND status = $12
		  AND version = $13
		RETURNING `+appointmentColumns,
		a.ID, a.StartTime, a.EndTime, a.Status,
		a.ProposedStartTime, a.ProposedEndTime, nullableProposer(a.RescheduledBy), a.RescheduleReason,
		a.CancelReason, a.Notes, nullableTime(a.UpdatedAt),
		prevStatus, prevVersion,
	)

	updated, err := scanAppointment(row)
	if err == nil {
		return updated, nil
	}
	if isActiveSlotViolation(err) {
		return nil, ErrSlotTaken
	}
	if !errors.Is(err, ErrAppointmentNotFound) {
		return nil, err
	}

	// No row matched: either the appointment is gone or the guard failed.
	if _, getErr := r.GetAppointmentByID(ctx, a.ID); getErr != nil {
		return nil, getErr
	}
	return nil, ErrConcurrentUpdate
}

func (r *PgRepository) FindExpiredConfirmed(ctx context.Context, now time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'confirmed'
		  AND end_ts < $1
		ORDER BY start_ts
	`, now)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) CompleteIfConfirmed(ctx context.Context, id uuid.UUID, now time.Time) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'completed',
		    version = version + 1,
		    updated_at = $2
		WHERE id = $1
		  AND status = 'confirmed'
		RETURNING `+appointmentColumns,
		id, now)

	completed, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// GetAppointmentByID distinguishes missing from already moved on.
			if _, getErr := r.GetAppointmentByID(ctx, id); getErr != nil {
				return nil, getErr
			}
			return nil, ErrConcurrentUpdate
		}
		return nil, err
	}
	return completed, nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointment_events (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert appointment event: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// PgDirectory resolves doctors and patients from their tables.
type PgDirectory struct {
	pool *pgxpool.Pool
}

func NewPgDirectory(pool *pgxpool.Pool) *PgDirectory {
	return &PgDirectory{pool: pool}
}

func scanParty(row pgx.Row, notFound error) (*Party, error) {
	var p Party
	var email *string

	if err := row.Scan(&p.ID, &p.Name, &email); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound
		}
		return nil, err
	}
	if email != nil {
		p.Email = *email
	}
	return &p, nil
}

func (d *PgDirectory) GetDoctor(ctx context.Context, id string) (*Party, error) {
	row := d.pool.QueryRow(ctx, `
		SELECT id, name, email
		FROM doctors
		WHERE id = $1
	`, id)
	return scanParty(row, ErrDoctorNotFound)
}

func (d *PgDirectory) GetPatient(ctx context.Context, id string) (*Party, error) {
	row := d.pool.QueryRow(ctx, `
		SELECT id, name, email
		FROM patients
		WHERE id = $1
	`, id)
	return scanParty(row, ErrPatientNotFound)
}

// UpsertDoctor inserts or refreshes a doctor row. Used by seeding.
func (d *PgDirectory) UpsertDoctor(ctx context.Context, p Party) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO doctors (id, name, email, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), now(), now())
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, email = EXCLUDED.email, updated_at = now()
	`, p.ID, p.Name, p.Email)
	if err != nil {
		return fmt.Errorf("upsert doctor: %w", err)
	}
	return nil
}

// UpsertPatient inserts or refreshes a patient row. Used by seeding.
func (d *PgDirectory) UpsertPatient(ctx context.Context, p Party) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO patients (id, name, email, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), now(), now())
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, email = EXCLUDED.email, updated_at = now()
	`, p.ID, p.Name, p.Email)
	if err != nil {
		return fmt.Errorf("upsert patient: %w", err)
	}
	return nil
}
