package appointment

import (
	"context"
	"errors"
	"fmt"
)

// AutoCompleteExpired promotes every confirmed appointment whose end time has
// passed to completed, and notifies each patient. It returns how many
// appointments this call completed. A completed appointment is never matched
// again, so calling it repeatedly is safe; failures are isolated per record.
func (s *Service) AutoCompleteExpired(ctx context.Context) (int, error) {
	now := s.clock.Now()
	candidates, err := s.repo.FindExpiredConfirmed(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("find expired confirmed appointments: %w", err)
	}

	count := 0
	for _, appt := range candidates {
		if err := ctx.Err(); err != nil {
			return count, err
		}

		updated, err := s.repo.CompleteIfConfirmed(ctx, appt.ID, now)
		if err != nil {
			if errors.Is(err, ErrConcurrentUpdate) || errors.Is(err, ErrAppointmentNotFound) {
				// another sweep or a concurrent transition got there first
				continue
			}
			s.log.Error().Err(err).Str("appointment_id", appt.ID.String()).Msg("failed to auto-complete appointment")
			continue
		}
		count++

		s.afterTransition(ctx, appt, updated, "", EventCompleted, map[string]any{"reason": "end_time_passed"})
		doctor, patient := s.parties(ctx, updated)
		s.notify(ctx, Notification{
			Event:       EventCompleted,
			Recipient:   patient,
			Doctor:      doctor,
			Patient:     patient,
			Appointment: *updated,
		})
	}

	if count > 0 {
		s.log.Info().Int("completed", count).Msg("auto-completed expired appointments")
	}
	return count, nil
}

// sweepBeforeRead runs the auto-completion pass ahead of a list read so that the
// read reflects every appointment that has already ended. A failed sweep does not
// fail the read.
func (s *Service) sweepBeforeRead(ctx context.Context) {
	if _, err := s.AutoCompleteExpired(ctx); err != nil {
		s.log.Warn().Err(err).Msg("auto-completion sweep before read failed")
	}
}
