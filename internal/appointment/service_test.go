package appointment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookCreatesPendingAppointment(t *testing.T) {
	h := newHarness(t)

	a, err := h.svc.Book(context.Background(), BookRequest{
		PatientID: patientID,
		DoctorID:  doctorID,
		Start:     slot0900,
		Notes:     "first visit",
	})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, a.ID)
	assert.Equal(t, StatusPending, a.Status)
	assert.True(t, a.StartTime.Equal(slot0900))
	assert.True(t, a.EndTime.Equal(slot0900.Add(30*time.Minute)))
	assert.Equal(t, "Dr. X", a.DoctorName)
	assert.Equal(t, "Asha", a.PatientName)
	assert.Equal(t, "first visit", a.Notes)
	assert.Equal(t, 1, a.Version)
	assert.Nil(t, a.ProposedStartTime)
	assert.Equal(t, ProposerNone, a.RescheduledBy)

	require.Len(t, h.notifier.sent, 1)
	sent := h.notifier.last()
	assert.Equal(t, EventBookingRequested, sent.Event)
	assert.Equal(t, "dr.x@clinic.test", sent.Recipient.Email)

	events := h.repo.Events()
	require.Len(t, events, 1)
	assert.Equal(t, string(EventBookingRequested), events[0].EventType)
	assert.Equal(t, a.ID, *events[0].AppointmentID)
}

func TestBookValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  BookRequest
		want error
	}{
		{"missing doctor", BookRequest{PatientID: patientID, Start: slot0900}, ErrMissingField},
		{"missing patient", BookRequest{DoctorID: doctorID, Start: slot0900}, ErrMissingField},
		{"zero start", BookRequest{PatientID: patientID, DoctorID: doctorID}, ErrInvalidTimestamp},
		{"unknown doctor", BookRequest{PatientID: patientID, DoctorID: "nobody", Start: slot0900}, ErrDoctorNotFound},
		{"unknown patient", BookRequest{PatientID: "nobody", DoctorID: doctorID, Start: slot0900}, ErrPatientNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.Book(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.Empty(t, h.notifier.sent)
}

func TestBookSameSlotConflicts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.book(t, slot0900)

	_, err := h.svc.Book(ctx, BookRequest{PatientID: "pat-2", DoctorID: doctorID, Start: slot0900})
	require.ErrorIs(t, err, ErrSlotTaken)
	assert.Equal(t, KindConflict, KindOf(err))

	// same instant expressed in another zone is the same slot
	_, err = h.svc.Book(ctx, BookRequest{PatientID: "pat-2", DoctorID: doctorID, Start: slot0900.In(time.FixedZone("X", -3600))})
	assert.ErrorIs(t, err, ErrSlotTaken)

	_, err = h.svc.Book(ctx, BookRequest{PatientID: "pat-2", DoctorID: doctorID, Start: slot1000})
	assert.NoError(t, err)

	_, err = h.svc.Book(ctx, BookRequest{PatientID: "pat-2", DoctorID: "doc-y", Start: slot0900})
	assert.NoError(t, err)
}

func TestBookFreedSlotAfterCancel(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first := h.book(t, slot0900)
	_, err := h.svc.Cancel(ctx, first.ID, patientID, "")
	require.NoError(t, err)

	second, err := h.svc.Book(ctx, BookRequest{PatientID: "pat-2", DoctorID: doctorID, Start: slot0900})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, second.Status)
}

func TestConfirm(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.book(t, slot0900)

	_, err := h.svc.Confirm(ctx, a.ID, patientID)
	assert.ErrorIs(t, err, ErrNotDoctor)
	assert.Equal(t, KindUnauthorized, KindOf(err))

	_, err = h.svc.Confirm(ctx, uuid.New(), doctorID)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	confirmed, err := h.svc.Confirm(ctx, a.ID, doctorID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, confirmed.Status)
	assert.True(t, confirmed.EndTime.Equal(slot0900.Add(30*time.Minute)))
	assert.Equal(t, 2, confirmed.Version)
	assert.Equal(t, EventConfirmed, h.notifier.last().Event)
	assert.Equal(t, "asha@example.test", h.notifier.last().Recipient.Email)

	_, err = h.svc.Confirm(ctx, a.ID, doctorID)
	assert.Equal(t, KindInvalidState, KindOf(err))
}

func TestCancel(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	t.Run("default reason by patient", func(t *testing.T) {
		a := h.book(t, slot0900)
		cancelled, err := h.svc.Cancel(ctx, a.ID, patientID, "")
		require.NoError(t, err)
		assert.Equal(t, StatusCancelled, cancelled.Status)
		require.NotNil(t, cancelled.CancelReason)
		assert.Equal(t, "Cancelled by Patient", *cancelled.CancelReason)
		assert.Equal(t, "dr.x@clinic.test", h.notifier.last().Recipient.Email)
	})

	t.Run("given reason by doctor", func(t *testing.T) {
		a := h.bookConfirmed(t, slot1000)
		cancelled, err := h.svc.Cancel(ctx, a.ID, doctorID, "doctor unwell")
		require.NoError(t, err)
		require.NotNil(t, cancelled.CancelReason)
		assert.Equal(t, "doctor unwell", *cancelled.CancelReason)
		assert.Equal(t, "asha@example.test", h.notifier.last().Recipient.Email)
	})

	t.Run("default reason by doctor", func(t *testing.T) {
		a := h.book(t, slot1100)
		cancelled, err := h.svc.Cancel(ctx, a.ID, doctorID, "")
		require.NoError(t, err)
		assert.Equal(t, "Cancelled by Doctor", *cancelled.CancelReason)
	})

	t.Run("twice is an error", func(t *testing.T) {
		a := h.book(t, slot0900)
		_, err := h.svc.Cancel(ctx, a.ID, patientID, "")
		require.NoError(t, err)

		_, err = h.svc.Cancel(ctx, a.ID, patientID, "")
		assert.ErrorIs(t, err, ErrAlreadyCancelled)
		assert.Equal(t, KindInvalidState, KindOf(err))
	})

	t.Run("stranger", func(t *testing.T) {
		a := h.book(t, slot0900)
		_, err := h.svc.Cancel(ctx, a.ID, strangerID, "")
		assert.ErrorIs(t, err, ErrNotParticipant)

		stored, err := h.repo.GetAppointmentByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusPending, stored.Status)
	})

	t.Run("clears staging", func(t *testing.T) {
		a := h.bookConfirmed(t, slot1000.Add(24*time.Hour))
		_, err := h.svc.ProposeRescheduleByDoctor(ctx, a.ID, doctorID, slot1100.Add(24*time.Hour), "clinic closed")
		require.NoError(t, err)

		cancelled, err := h.svc.Cancel(ctx, a.ID, patientID, "")
		require.NoError(t, err)
		assert.Nil(t, cancelled.ProposedStartTime)
		assert.Nil(t, cancelled.ProposedEndTime)
		assert.Nil(t, cancelled.RescheduleReason)
		assert.Equal(t, ProposerNone, cancelled.RescheduledBy)
	})
}

func TestCancelCompletedIsInvalidState(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	a := h.bookConfirmed(t, slot0900)
	h.clock.Set(slot1000)
	n, err := h.svc.AutoCompleteExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = h.svc.Cancel(ctx, a.ID, patientID, "")
	assert.Equal(t, KindInvalidState, KindOf(err))
	assert.False(t, errors.Is(err, ErrAlreadyCancelled))
}

func TestProposeRescheduleByPatient(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	t.Run("pending is rejected", func(t *testing.T) {
		a := h.book(t, slot0900)
		_, err := h.svc.ProposeRescheduleByPatient(ctx, a.ID, patientID, slot1000)
		assert.ErrorIs(t, err, ErrPatientRescheduleOnly)
		assert.Equal(t, KindInvalidState, KindOf(err))
		_, err = h.svc.Cancel(ctx, a.ID, patientID, "")
		require.NoError(t, err)
	})

	t.Run("doctor cannot use it", func(t *testing.T) {
		a := h.bookConfirmed(t, slot0900)
		_, err := h.svc.ProposeRescheduleByPatient(ctx, a.ID, doctorID, slot1000)
		assert.ErrorIs(t, err, ErrNotPatient)
		_, err = h.svc.Cancel(ctx, a.ID, patientID, "")
		require.NoError(t, err)
	})

	t.Run("zero start", func(t *testing.T) {
		a := h.bookConfirmed(t, slot0900)
		_, err := h.svc.ProposeRescheduleByPatient(ctx, a.ID, patientID, time.Time{})
		assert.ErrorIs(t, err, ErrInvalidTimestamp)
		_, err = h.svc.Cancel(ctx, a.ID, patientID, "")
		require.NoError(t, err)
	})

	t.Run("conflicting slot", func(t *testing.T) {
		a := h.bookConfirmed(t, slot0900)
		_, err := h.svc.Book(ctx, BookRequest{PatientID: "pat-2", DoctorID: doctorID, Start: slot1100})
		require.NoError(t, err)

		_, err = h.svc.ProposeRescheduleByPatient(ctx, a.ID, patientID, slot1100)
		assert.ErrorIs(t, err, ErrSlotTaken)

		stored, err := h.repo.GetAppointmentByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusConfirmed, stored.Status)
		assert.Nil(t, stored.ProposedStartTime)
	})

	t.Run("stages the new time", func(t *testing.T) {
		h := newHarness(t)
		a := h.bookConfirmed(t, slot0900)

		staged, err := h.svc.ProposeRescheduleByPatient(ctx, a.ID, patientID, slot1000)
		require.NoError(t, err)
		assert.Equal(t, StatusPatientRescheduledPending, staged.Status)
		assert.Equal(t, ProposerPatient, staged.RescheduledBy)
		require.NotNil(t, staged.ProposedStartTime)
		assert.True(t, staged.ProposedStartTime.Equal(slot1000))
		assert.True(t, staged.ProposedEndTime.Equal(slot1000.Add(30*time.Minute)))
		assert.True(t, staged.StartTime.Equal(slot0900))

		sent := h.notifier.last()
		assert.Equal(t, EventPatientRescheduleRequested, sent.Event)
		assert.Equal(t, "dr.x@clinic.test", sent.Recipient.Email)
		assert.True(t, sent.OriginalStart.Equal(slot0900))
		assert.True(t, sent.ProposedStart.Equal(slot1000))
	})

	t.Run("own slot is not a conflict", func(t *testing.T) {
		h := newHarness(t)
		a := h.bookConfirmed(t, slot0900)

		_, err := h.svc.ProposeRescheduleByPatient(ctx, a.ID, patientID, slot0900)
		assert.NoError(t, err)
	})
}

func TestProposeRescheduleByDoctor(t *testing.T) {
	ctx := context.Background()

	for _, confirm := range []bool{false, true} {
		h := newHarness(t)
		a := h.book(t, slot0900)
		if confirm {
			var err error
			a, err = h.svc.Confirm(ctx, a.ID, doctorID)
			require.NoError(t, err)
		}

		staged, err := h.svc.ProposeRescheduleByDoctor(ctx, a.ID, doctorID, slot1000, "clinic closed")
		require.NoError(t, err)
		assert.Equal(t, StatusDoctorRescheduledPending, staged.Status)
		assert.Equal(t, ProposerDoctor, staged.RescheduledBy)
		require.NotNil(t, staged.RescheduleReason)
		assert.Equal(t, "clinic closed", *staged.RescheduleReason)

		sent := h.notifier.last()
		assert.Equal(t, EventDoctorRescheduleProposed, sent.Event)
		assert.Equal(t, "asha@example.test", sent.Recipient.Email)
		assert.Equal(t, "clinic closed", sent.Reason)
	}

	t.Run("patient cannot use it", func(t *testing.T) {
		h := newHarness(t)
		a := h.book(t, slot0900)
		_, err := h.svc.ProposeRescheduleByDoctor(ctx, a.ID, patientID, slot1000, "")
		assert.ErrorIs(t, err, ErrNotDoctor)
	})

	t.Run("not from a staged state", func(t *testing.T) {
		h := newHarness(t)
		a := h.bookConfirmed(t, slot0900)
		_, err := h.svc.ProposeRescheduleByPatient(ctx, a.ID, patientID, slot1000)
		require.NoError(t, err)

		_, err = h.svc.ProposeRescheduleByDoctor(ctx, a.ID, doctorID, slot1100, "")
		assert.ErrorIs(t, err, ErrDoctorRescheduleOnly)
	})

	t.Run("empty reason stays null", func(t *testing.T) {
		h := newHarness(t)
		a := h.book(t, slot0900)
		staged, err := h.svc.ProposeRescheduleByDoctor(ctx, a.ID, doctorID, slot1000, "")
		require.NoError(t, err)
		assert.Nil(t, staged.RescheduleReason)
	})
}

func TestAcceptPatientReschedule(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	a := h.bookConfirmed(t, slot0900)
	staged, err := h.svc.ProposeRescheduleByPatient(ctx, a.ID, patientID, slot1000)
	require.NoError(t, err)
	proposedStart, proposedEnd := *staged.ProposedStartTime, *staged.ProposedEndTime

	_, err = h.svc.AcceptReschedule(ctx, a.ID, patientID)
	assert.ErrorIs(t, err, ErrNotDoctor)

	_, err = h.svc.AcceptReschedule(ctx, a.ID, strangerID)
	assert.ErrorIs(t, err, ErrNotParticipant)

	accepted, err := h.svc.AcceptReschedule(ctx, a.ID, doctorID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, accepted.Status)
	assert.True(t, accepted.StartTime.Equal(proposedStart))
	assert.True(t, accepted.EndTime.Equal(proposedEnd))
	assert.Nil(t, accepted.ProposedStartTime)
	assert.Nil(t, accepted.ProposedEndTime)
	assert.Equal(t, ProposerNone, accepted.RescheduledBy)
	assert.Nil(t, accepted.RescheduleReason)

	sent := h.notifier.last()
	assert.Equal(t, EventRescheduleAccepted, sent.Event)
	assert.Equal(t, "asha@example.test", sent.Recipient.Email)

	// the old slot is free again
	_, err = h.svc.Book(ctx, BookRequest{PatientID: "pat-2", DoctorID: doctorID, Start: slot0900})
	assert.NoError(t, err)
}

func TestAcceptDoctorReschedule(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	a := h.book(t, slot0900)
	_, err := h.svc.ProposeRescheduleByDoctor(ctx, a.ID, doctorID, slot1000, "clinic closed")
	require.NoError(t, err)

	_, err = h.svc.AcceptReschedule(ctx, a.ID, doctorID)
	assert.ErrorIs(t, err, ErrNotPatient)

	accepted, err := h.svc.AcceptReschedule(ctx, a.ID, patientID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, accepted.Status)
	assert.True(t, accepted.StartTime.Equal(slot1000))
	assert.Nil(t, accepted.RescheduleReason)
	assert.Equal(t, "dr.x@clinic.test", h.notifier.last().Recipient.Email)
}

func TestAcceptWithoutPendingReschedule(t *testing.T) {
	h := newHarness(t)
	a := h.bookConfirmed(t, slot0900)

	_, err := h.svc.AcceptReschedule(context.Background(), a.ID, doctorID)
	assert.ErrorIs(t, err, ErrNoPendingReschedule)
	assert.Equal(t, KindInvalidState, KindOf(err))

	_, err = h.svc.RejectReschedule(context.Background(), a.ID, patientID)
	assert.ErrorIs(t, err, ErrNoPendingReschedule)
}

func TestAcceptMissingProposedTime(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.book(t, slot0900)

	// an inconsistent row written behind the service's back
	broken := a.Clone()
	broken.Status = StatusDoctorRescheduledPending
	broken.RescheduledBy = ProposerDoctor
	_, err := h.repo.UpdateAppointment(ctx, &broken, a.Status, a.Version)
	require.NoError(t, err)

	_, err = h.svc.AcceptReschedule(ctx, a.ID, patientID)
	assert.ErrorIs(t, err, ErrMissingProposedTime)
}

func TestRejectDoctorReschedule(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	a := h.bookConfirmed(t, slot0900)
	_, err := h.svc.ProposeRescheduleByDoctor(ctx, a.ID, doctorID, slot1000, "clinic closed")
	require.NoError(t, err)

	rejected, err := h.svc.RejectReschedule(ctx, a.ID, patientID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, rejected.Status)
	assert.True(t, rejected.StartTime.Equal(slot0900))
	assert.True(t, rejected.EndTime.Equal(slot0900.Add(30*time.Minute)))
	assert.Nil(t, rejected.ProposedStartTime)
	assert.Nil(t, rejected.ProposedEndTime)
	assert.Nil(t, rejected.RescheduleReason)

	sent := h.notifier.last()
	assert.Equal(t, EventRescheduleRejected, sent.Event)
	assert.Equal(t, "dr.x@clinic.test", sent.Recipient.Email)
	assert.True(t, sent.OriginalStart.Equal(slot0900))
	assert.True(t, sent.ProposedStart.Equal(slot1000))

	// the reason is kept in the audit trail
	events := h.repo.Events()
	last := events[len(events)-1]
	assert.Equal(t, string(EventRescheduleRejected), last.EventType)
	assert.Contains(t, string(last.Payload), "clinic closed")
}

func TestProposerCanWithdraw(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	a := h.bookConfirmed(t, slot0900)
	_, err := h.svc.ProposeRescheduleByPatient(ctx, a.ID, patientID, slot1000)
	require.NoError(t, err)

	withdrawn, err := h.svc.RejectReschedule(ctx, a.ID, patientID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, withdrawn.Status)
	assert.True(t, withdrawn.StartTime.Equal(slot0900))

	_, err = h.svc.RejectReschedule(ctx, a.ID, strangerID)
	assert.ErrorIs(t, err, ErrNotParticipant)
}

func TestConfirmDoctorProposalKeepsOriginalTime(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	a := h.book(t, slot0900)
	_, err := h.svc.ProposeRescheduleByDoctor(ctx, a.ID, doctorID, slot1000, "")
	require.NoError(t, err)

	confirmed, err := h.svc.Confirm(ctx, a.ID, doctorID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, confirmed.Status)
	assert.True(t, confirmed.StartTime.Equal(slot0900))
	assert.Nil(t, confirmed.ProposedStartTime)
}

func TestManualCompleteDisabled(t *testing.T) {
	h := newHarness(t)
	a := h.bookConfirmed(t, slot0900)

	_, err := h.svc.Complete(context.Background(), a.ID, doctorID)
	assert.ErrorIs(t, err, ErrManualCompleteDisabled)
	assert.Equal(t, KindUnauthorized, KindOf(err))
}

func TestNotificationFailureDoesNotFailTransition(t *testing.T) {
	h := newHarness(t)
	h.notifier.fail = true

	a := h.book(t, slot0900)
	confirmed, err := h.svc.Confirm(context.Background(), a.ID, doctorID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, confirmed.Status)
	assert.Len(t, h.notifier.sent, 2)
}

func TestNotificationSkippedWithoutEmail(t *testing.T) {
	h := newHarness(t)
	h.dir.AddPatient(Party{ID: "pat-quiet", Name: "No Mail"})

	a, err := h.svc.Book(context.Background(), BookRequest{PatientID: "pat-quiet", DoctorID: doctorID, Start: slot0900})
	require.NoError(t, err)
	require.Len(t, h.notifier.sent, 1)

	_, err = h.svc.Confirm(context.Background(), a.ID, doctorID)
	require.NoError(t, err)
	assert.Len(t, h.notifier.sent, 1)
}

func TestBookedStartThenConfirmThenPatientReschedule(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	a, err := h.svc.Book(ctx, BookRequest{PatientID: patientID, DoctorID: doctorID, Start: slot0900})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, a.Status)

	a, err = h.svc.Confirm(ctx, a.ID, doctorID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, a.Status)
	assert.True(t, a.EndTime.Equal(time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)))

	a, err = h.svc.ProposeRescheduleByPatient(ctx, a.ID, patientID, slot1000)
	require.NoError(t, err)
	assert.Equal(t, StatusPatientRescheduledPending, a.Status)
	require.NotNil(t, a.ProposedStartTime)
	assert.True(t, a.ProposedStartTime.Equal(slot1000))

	a, err = h.svc.Confirm(ctx, a.ID, doctorID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, a.Status)
	assert.True(t, a.StartTime.Equal(slot1000))
	assert.True(t, a.EndTime.Equal(slot1000.Add(30*time.Minute)))
	assert.Nil(t, a.ProposedStartTime)
	assert.Nil(t, a.ProposedEndTime)
	assert.Equal(t, ProposerNone, a.RescheduledBy)

	assert.Equal(t, []EventType{
		EventBookingRequested,
		EventConfirmed,
		EventPatientRescheduleRequested,
		EventConfirmed,
	}, h.notifier.events())
}

func TestDoctorProposalOnPendingThenPatientRejects(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	a := h.book(t, slot0900)

	a, err := h.svc.ProposeRescheduleByDoctor(ctx, a.ID, doctorID, slot1000, "clinic closed")
	require.NoError(t, err)
	assert.Equal(t, StatusDoctorRescheduledPending, a.Status)
	require.NotNil(t, a.RescheduleReason)
	assert.Equal(t, "clinic closed", *a.RescheduleReason)

	a, err = h.svc.RejectReschedule(ctx, a.ID, patientID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, a.Status)
	assert.True(t, a.StartTime.Equal(slot0900))
	assert.Nil(t, a.ProposedStartTime)
	assert.Nil(t, a.ProposedEndTime)
}

func TestListForActor(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	later := h.book(t, slot1100)
	earlier := h.bookConfirmed(t, slot0900)
	_, err := h.svc.Book(ctx, BookRequest{PatientID: "pat-2", DoctorID: "doc-y", Start: slot1000})
	require.NoError(t, err)

	mine, err := h.svc.ListForActor(ctx, patientID, RolePatient)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, earlier.ID, mine[0].ID)
	assert.Equal(t, later.ID, mine[1].ID)

	doctors, err := h.svc.ListForActor(ctx, doctorID, RoleDoctor)
	require.NoError(t, err)
	assert.Len(t, doctors, 2)

	_, err = h.svc.ListForActor(ctx, "", RolePatient)
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestListForActorSweepsFirst(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	a := h.bookConfirmed(t, slot0900)
	h.clock.Set(slot1000)

	mine, err := h.svc.ListForActor(ctx, patientID, RolePatient)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, a.ID, mine[0].ID)
	assert.Equal(t, StatusCompleted, mine[0].Status)
}

func TestListDoctorUpcoming(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	pending := h.book(t, slot0900)
	confirmed := h.bookConfirmed(t, slot1000)
	staged := h.bookConfirmed(t, slot1100)
	_, err := h.svc.ProposeRescheduleByPatient(ctx, staged.ID, patientID, slot1100.Add(time.Hour))
	require.NoError(t, err)
	cancelled := h.book(t, slot1100.Add(2*time.Hour))
	_, err = h.svc.Cancel(ctx, cancelled.ID, doctorID, "")
	require.NoError(t, err)

	upcoming, err := h.svc.ListDoctorUpcoming(ctx, doctorID)
	require.NoError(t, err)
	require.Len(t, upcoming, 2)
	assert.Equal(t, pending.ID, upcoming[0].ID)
	assert.Equal(t, confirmed.ID, upcoming[1].ID)

	none, err := h.svc.ListDoctorUpcoming(ctx, "doc-y")
	require.NoError(t, err)
	assert.Empty(t, none)
}
