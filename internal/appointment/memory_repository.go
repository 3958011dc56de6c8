package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-process Repository. It enforces the same active-slot
// uniqueness and status/version guard as the Postgres store, so the service
// behaves identically on either.
type MemoryRepository struct {
	mu           sync.RWMutex
	appointments map[uuid.UUID]Appointment
	events       []EventLog

	// allowDuplicateSlots disables the uniqueness guard. Only tests set it, to
	// show what the conflict pre-check alone does under concurrency.
	allowDuplicateSlots bool
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{appointments: make(map[uuid.UUID]Appointment)}
}

func (r *MemoryRepository) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	out := a.Clone()
	return &out, nil
}

func (r *MemoryRepository) FindActiveAtSlot(_ context.Context, doctorID string, start time.Time) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Appointment
	for _, a := range r.appointments {
		if a.DoctorID == doctorID && a.StartTime.Equal(start) && a.Status.Active() {
			result = append(result, a.Clone())
		}
	}
	return result, nil
}

func (r *MemoryRepository) ListAppointments(_ context.Context, filter ListFilter) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Appointment
	for _, a := range r.appointments {
		if matches(a, filter) {
			result = append(result, a.Clone())
		}
	}
	sortByStart(result)
	return result, nil
}

func (r *MemoryRepository) CreateAppointment(_ context.Context, a *Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Version == 0 {
		a.Version = 1
	}
	if a.Status.Active() && r.slotTaken(a.DoctorID, a.StartTime, a.ID) {
		return nil, ErrSlotTaken
	}

	stored := a.Clone()
	r.appointments[stored.ID] = stored
	out := stored.Clone()
	return &out, nil
}

func (r *MemoryRepository) UpdateAppointment(_ context.Context, a *Appointment, prevStatus Status, prevVersion int) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.appointments[a.ID]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if current.Status != prevStatus || current.Version != prevVersion {
		return nil, ErrConcurrentUpdate
	}
	if a.Status.Active() && r.slotTaken(a.DoctorID, a.StartTime, a.ID) {
		return nil, ErrSlotTaken
	}

	stored := a.Clone()
	stored.Version = prevVersion + 1
	r.appointments[stored.ID] = stored
	out := stored.Clone()
	return &out, nil
}

func (r *MemoryRepository) FindExpiredConfirmed(_ context.Context, now time.Time) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Appointment
	for _, a := range r.appointments {
		if a.Status == StatusConfirmed && a.EndTime.Before(now) {
			result = append(result, a.Clone())
		}
	}
	sortByStart(result)
	return result, nil
}

func (r *MemoryRepository) CompleteIfConfirmed(_ context.Context, id uuid.UUID, now time.Time) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if a.Status != StatusConfirmed {
		return nil, ErrConcurrentUpdate
	}
	a.Status = StatusCompleted
	a.UpdatedAt = now
	a.Version++
	r.appointments[id] = a
	out := a.Clone()
	return &out, nil
}

func (r *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev.ID = int64(len(r.events) + 1)
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of the event log.
func (r *MemoryRepository) Events() []EventLog {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]EventLog, len(r.events))
	copy(out, r.events)
	return out
}

func (r *MemoryRepository) slotTaken(doctorID string, start time.Time, self uuid.UUID) bool {
	if r.allowDuplicateSlots {
		return false
	}
	for id, other := range r.appointments {
		if id == self {
			continue
		}
		if other.DoctorID == doctorID && other.StartTime.Equal(start) && other.Status.Active() {
			return true
		}
	}
	return false
}

func matches(a Appointment, f ListFilter) bool {
	if f.DoctorID != "" && a.DoctorID != f.DoctorID {
		return false
	}
	if f.PatientID != "" && a.PatientID != f.PatientID {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if a.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.StartFrom != nil && a.StartTime.Before(*f.StartFrom) {
		return false
	}
	if f.StartBefore != nil && !a.StartTime.Before(*f.StartBefore) {
		return false
	}
	if f.EndBefore != nil && !a.EndTime.Before(*f.EndBefore) {
		return false
	}
	return true
}

func sortByStart(list []Appointment) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].StartTime.Equal(list[j].StartTime) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return list[i].StartTime.Before(list[j].StartTime)
	})
}

// MemoryDirectory is an in-process Directory.
type MemoryDirectory struct {
	mu       sync.RWMutex
	doctors  map[string]Party
	patients map[string]Party
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		doctors:  make(map[string]Party),
		patients: make(map[string]Party),
	}
}

func (d *MemoryDirectory) AddDoctor(p Party) {
	d.mu.Lock()
	d.doctors[p.ID] = p
	d.mu.Unlock()
}

func (d *MemoryDirectory) AddPatient(p Party) {
	d.mu.Lock()
	d.patients[p.ID] = p
	d.mu.Unlock()
}

func (d *MemoryDirectory) GetDoctor(_ context.Context, id string) (*Party, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	p, ok := d.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return &p, nil
}

func (d *MemoryDirectory) GetPatient(_ context.Context, id string) (*Party, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	p, ok := d.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}
