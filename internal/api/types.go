package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking/internal/appointment"
)

type BookAppointmentRequest struct {
	DoctorID       string `json:"doctor_id" validate:"required,max=128"`
	StartTimestamp string `json:"startTimestamp" validate:"required"`
	Notes          string `json:"notes" validate:"max=2000"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type RescheduleRequest struct {
	NewStartTimestamp string `json:"newStartTimestamp" validate:"required"`
	Reason            string `json:"reason" validate:"max=500"`
}

type AppointmentResponse struct {
	ID                     uuid.UUID `json:"id"`
	DoctorID               string    `json:"doctorId"`
	PatientID              string    `json:"patientId"`
	DoctorName             string    `json:"doctorName"`
	PatientName            string    `json:"patientName"`
	StartTimestamp         string    `json:"startTimestamp"`
	EndTimestamp           string    `json:"endTimestamp"`
	Status                 string    `json:"status"`
	ProposedStartTimestamp *string   `json:"proposedStartTimestamp"`
	ProposedEndTimestamp   *string   `json:"proposedEndTimestamp"`
	RescheduledBy          *string   `json:"rescheduledBy"`
	RescheduleReason       *string   `json:"rescheduleReason"`
	CancelReason           *string   `json:"cancelReason"`
	Notes                  string    `json:"notes"`
	CreatedAt              string    `json:"createdAt"`
	UpdatedAt              string    `json:"updatedAt"`
}

// BookedSlotResponse is the reduced view clients use to grey out taken slots.
type BookedSlotResponse struct {
	ID             uuid.UUID `json:"id"`
	DoctorID       string    `json:"doctorId"`
	StartTimestamp string    `json:"startTimestamp"`
	EndTimestamp   string    `json:"endTimestamp"`
	Status         string    `json:"status"`
}

type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	resp := AppointmentResponse{
		ID:                     a.ID,
		DoctorID:               a.DoctorID,
		PatientID:              a.PatientID,
		DoctorName:             a.DoctorName,
		PatientName:            a.PatientName,
		StartTimestamp:         appointment.FormatTimestamp(a.StartTime),
		EndTimestamp:           appointment.FormatTimestamp(a.EndTime),
		Status:                 string(a.Status),
		ProposedStartTimestamp: optionalTimestamp(a.ProposedStartTime),
		ProposedEndTimestamp:   optionalTimestamp(a.ProposedEndTime),
		RescheduleReason:       a.RescheduleReason,
		CancelReason:           a.CancelReason,
		Notes:                  a.Notes,
		CreatedAt:              appointment.FormatTimestamp(a.CreatedAt),
		UpdatedAt:              appointment.FormatTimestamp(a.UpdatedAt),
	}
	if a.RescheduledBy != appointment.ProposerNone {
		by := string(a.RescheduledBy)
		resp.RescheduledBy = &by
	}
	return resp
}

func toAppointmentList(list []appointment.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(list))
	for i := range list {
		out = append(out, toAppointmentResponse(&list[i]))
	}
	return out
}

func toBookedSlots(list []appointment.Appointment) []BookedSlotResponse {
	out := make([]BookedSlotResponse, 0, len(list))
	for _, a := range list {
		out = append(out, BookedSlotResponse{
			ID:             a.ID,
			DoctorID:       a.DoctorID,
			StartTimestamp: appointment.FormatTimestamp(a.StartTime),
			EndTimestamp:   appointment.FormatTimestamp(a.EndTime),
			Status:         string(a.Status),
		})
	}
	return out
}

func optionalTimestamp(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := appointment.FormatTimestamp(*t)
	return &s
}
