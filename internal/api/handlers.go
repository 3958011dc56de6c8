package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/auth"
)

const maxBodyBytes = 64 << 10

var errInvalidBody = errors.New("invalid request body")

type appointmentHandler struct {
	svc      *appointment.Service
	validate *Validator
	log      zerolog.Logger
}

func newAppointmentHandler(svc *appointment.Service, validate *Validator, log zerolog.Logger) *appointmentHandler {
	return &appointmentHandler{svc: svc, validate: validate, log: log}
}

func (h *appointmentHandler) book(w http.ResponseWriter, r *http.Request) {
	actor := mustActor(r)
	if actor.Role != appointment.RolePatient {
		h.writeError(w, r, appointment.ErrNotPatient)
		return
	}

	var req BookAppointmentRequest
	if !h.decode(w, r, &req, false) {
		return
	}
	start, err := appointment.ParseTimestamp(req.StartTimestamp)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	appt, err := h.svc.Book(r.Context(), appointment.BookRequest{
		PatientID: actor.ID,
		DoctorID:  req.DoctorID,
		Start:     start,
		Notes:     req.Notes,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
}

func (h *appointmentHandler) listMine(w http.ResponseWriter, r *http.Request) {
	actor := mustActor(r)
	list, err := h.svc.ListForActor(r.Context(), actor.ID, actor.Role)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentList(list))
}

func (h *appointmentHandler) doctorUpcoming(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListDoctorUpcoming(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookedSlots(list))
}

func (h *appointmentHandler) confirm(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(id uuid.UUID, actor auth.Actor) (*appointment.Appointment, error) {
		return h.svc.Confirm(r.Context(), id, actor.ID)
	})
}

func (h *appointmentHandler) cancel(w http.ResponseWriter, r *http.Request) {
	var req CancelAppointmentRequest
	if !h.decode(w, r, &req, true) {
		return
	}
	h.transition(w, r, func(id uuid.UUID, actor auth.Actor) (*appointment.Appointment, error) {
		return h.svc.Cancel(r.Context(), id, actor.ID, req.Reason)
	})
}

func (h *appointmentHandler) reschedulePatient(w http.ResponseWriter, r *http.Request) {
	var req RescheduleRequest
	if !h.decode(w, r, &req, false) {
		return
	}
	start, err := appointment.ParseTimestamp(req.NewStartTimestamp)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.transition(w, r, func(id uuid.UUID, actor auth.Actor) (*appointment.Appointment, error) {
		return h.svc.ProposeRescheduleByPatient(r.Context(), id, actor.ID, start)
	})
}

func (h *appointmentHandler) rescheduleDoctor(w http.ResponseWriter, r *http.Request) {
	var req RescheduleRequest
	if !h.decode(w, r, &req, false) {
		return
	}
	start, err := appointment.ParseTimestamp(req.NewStartTimestamp)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.transition(w, r, func(id uuid.UUID, actor auth.Actor) (*appointment.Appointment, error) {
		return h.svc.ProposeRescheduleByDoctor(r.Context(), id, actor.ID, start, req.Reason)
	})
}

func (h *appointmentHandler) acceptReschedule(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(id uuid.UUID, actor auth.Actor) (*appointment.Appointment, error) {
		return h.svc.AcceptReschedule(r.Context(), id, actor.ID)
	})
}

func (h *appointmentHandler) rejectReschedule(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(id uuid.UUID, actor auth.Actor) (*appointment.Appointment, error) {
		return h.svc.RejectReschedule(r.Context(), id, actor.ID)
	})
}

func (h *appointmentHandler) complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(id uuid.UUID, actor auth.Actor) (*appointment.Appointment, error) {
		return h.svc.Complete(r.Context(), id, actor.ID)
	})
}

// transition parses the {id} URL param and runs op for the current actor.
func (h *appointmentHandler) transition(w http.ResponseWriter, r *http.Request, op func(uuid.UUID, auth.Actor) (*appointment.Appointment, error)) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid appointment id"})
		return
	}

	appt, err := op(id, mustActor(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

// decode reads a JSON body into dst and validates it. With optional set an empty
// body is accepted as the zero value.
func (h *appointmentHandler) decode(w http.ResponseWriter, r *http.Request, dst any, optional bool) bool {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst)
	if err != nil && !(optional && errors.Is(err, io.EOF)) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: errInvalidBody.Error()})
		return false
	}
	if err := h.validate.Validate(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:  appointment.ErrMissingField.Error(),
			Fields: h.validate.Fields(err),
		})
		return false
	}
	return true
}

func (h *appointmentHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := appointment.KindOf(err)
	status := statusForKind(kind)
	if kind == appointment.KindUnexpected {
		h.log.Error().Err(err).
			Str("request_id", GetRequestID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
		writeJSON(w, status, ErrorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, status, ErrorResponse{Error: appointment.MessageOf(err)})
}

func statusForKind(kind appointment.Kind) int {
	switch kind {
	case appointment.KindInvalidInput, appointment.KindInvalidState:
		return http.StatusBadRequest
	case appointment.KindNotFound:
		return http.StatusNotFound
	case appointment.KindUnauthorized:
		return http.StatusForbidden
	case appointment.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// mustActor returns the actor set by auth.Middleware. Routes using it are always
// mounted behind that middleware.
func mustActor(r *http.Request) auth.Actor {
	actor, _ := auth.ActorFromContext(r.Context())
	return actor
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
