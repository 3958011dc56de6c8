package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ConflictChecker decides whether a doctor's slot is already occupied.
//
// A slot is identified by its exact start instant; the system books on a fixed
// grid of SlotDuration, so overlapping-but-unequal starts are not detected.
type ConflictChecker struct {
	repo Repository
}

func NewConflictChecker(repo Repository) *ConflictChecker {
	return &ConflictChecker{repo: repo}
}

// HasConflict reports whether an active appointment other than exclude starts at
// start for doctorID. Pass uuid.Nil to exclude nothing.
func (c *ConflictChecker) HasConflict(ctx context.Context, doctorID string, start time.Time, exclude uuid.UUID) (bool, error) {
	existing, err := c.repo.FindActiveAtSlot(ctx, doctorID, start)
	if err != nil {
		return false, fmt.Errorf("find active appointments at slot: %w", err)
	}
	for _, a := range existing {
		if exclude != uuid.Nil && a.ID == exclude {
			continue
		}
		if a.Status.Active() && a.StartTime.Equal(start) {
			return true, nil
		}
	}
	return false, nil
}
