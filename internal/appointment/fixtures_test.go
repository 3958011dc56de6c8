package appointment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-booking/internal/clock"
	redisclient "github.com/hackgods/clinic-booking/internal/redis"
)

const (
	doctorID   = "doc-x"
	patientID  = "pat-1"
	strangerID = "someone-else"
)

var (
	slot0900 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	slot1000 = time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	slot1100 = time.Date(2025, 3, 10, 11, 0, 0, 0, time.UTC)
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []Notification
	fail bool
}

func (n *recordingNotifier) Notify(_ context.Context, msg Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	if n.fail {
		return errors.New("smtp unavailable")
	}
	return nil
}

func (n *recordingNotifier) events() []EventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]EventType, len(n.sent))
	for i, msg := range n.sent {
		out[i] = msg.Event
	}
	return out
}

func (n *recordingNotifier) last() Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sent[len(n.sent)-1]
}

// passthroughLocker takes no lock at all.
type passthroughLocker struct{}

func (passthroughLocker) WithSlotLock(ctx context.Context, _ string, _ time.Time, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// gatedRepo lets a test park callers right after a read to force interleavings.
type gatedRepo struct {
	*MemoryRepository
	afterGet  func()
	afterFind func()
}

func (g *gatedRepo) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := g.MemoryRepository.GetAppointmentByID(ctx, id)
	if g.afterGet != nil {
		g.afterGet()
	}
	return a, err
}

func (g *gatedRepo) FindActiveAtSlot(ctx context.Context, doctor string, start time.Time) ([]Appointment, error) {
	list, err := g.MemoryRepository.FindActiveAtSlot(ctx, doctor, start)
	if g.afterFind != nil {
		g.afterFind()
	}
	return list, err
}

// barrier releases its callers only once n of them have arrived.
func barrier(n int) func() {
	var wg sync.WaitGroup
	wg.Add(n)
	return func() {
		wg.Done()
		wg.Wait()
	}
}

type harness struct {
	svc      *Service
	repo     *MemoryRepository
	dir      *MemoryDirectory
	notifier *recordingNotifier
	clock    *clock.Manual
}

func newDirectory() *MemoryDirectory {
	dir := NewMemoryDirectory()
	dir.AddDoctor(Party{ID: doctorID, Name: "Dr. X", Email: "dr.x@clinic.test"})
	dir.AddDoctor(Party{ID: "doc-y", Name: "Dr. Y", Email: "dr.y@clinic.test"})
	dir.AddPatient(Party{ID: patientID, Name: "Asha", Email: "asha@example.test"})
	dir.AddPatient(Party{ID: "pat-2", Name: "Ravi", Email: "ravi@example.test"})
	return dir
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		repo:     NewMemoryRepository(),
		dir:      newDirectory(),
		notifier: &recordingNotifier{},
		clock:    clock.NewManual(time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)),
	}
	h.svc = NewService(h.repo, h.dir, redisclient.NewLocalLocker(), h.notifier, h.clock, zerolog.Nop())
	return h
}

func (h *harness) book(t *testing.T, start time.Time) *Appointment {
	t.Helper()
	a, err := h.svc.Book(context.Background(), BookRequest{PatientID: patientID, DoctorID: doctorID, Start: start})
	require.NoError(t, err)
	return a
}

func (h *harness) bookConfirmed(t *testing.T, start time.Time) *Appointment {
	t.Helper()
	a := h.book(t, start)
	a, err := h.svc.Confirm(context.Background(), a.ID, doctorID)
	require.NoError(t, err)
	return a
}
