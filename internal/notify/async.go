package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/appointment"
)

var (
	ErrQueueFull = errors.New("notification queue full")
	ErrClosed    = errors.New("notifier closed")
)

// Async delivers notifications on background workers so a slow mail relay never
// holds up a request. Notify only enqueues; delivery errors are logged.
type Async struct {
	next    appointment.Notifier
	log     zerolog.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan appointment.Notification
	wg     sync.WaitGroup
}

func NewAsync(next appointment.Notifier, workers, buffer int, timeout time.Duration, log zerolog.Logger) *Async {
	if workers < 1 {
		workers = 1
	}
	a := &Async{
		next:    next,
		log:     log.With().Str("component", "notifier").Logger(),
		timeout: timeout,
		queue:   make(chan appointment.Notification, buffer),
	}
	for i := 0; i < workers; i++ {
		a.wg.Add(1)
		go a.run()
	}
	return a
}

func (a *Async) Notify(_ context.Context, n appointment.Notification) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}

	select {
	case a.queue <- n:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting notifications and waits for queued ones to be delivered
// or for ctx to end.
func (a *Async) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Async) run() {
	defer a.wg.Done()
	for n := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		if err := a.next.Notify(ctx, n); err != nil {
			a.log.Warn().Err(err).
				Str("event", string(n.Event)).
				Str("appointment_id", n.Appointment.ID.String()).
				Msg("notification delivery failed")
		}
		cancel()
	}
}
