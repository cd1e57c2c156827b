package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/vetcare-appointments/internal/appointment"
	"github.com/hackgods/vetcare-appointments/internal/identity"
)

func createAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := requireCaller(w, r)
		if !ok {
			return
		}

		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}

		petID, err := uuid.Parse(req.PetID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_pet_id", "pet_id must be a valid UUID")
			return
		}

		appt, err := svc.CreateAppointment(r.Context(), caller, appointment.CreateInput{
			DoctorID:        doctorID,
			PetID:           petID,
			AppointmentDate: req.AppointmentDate,
			AppointmentTime: req.AppointmentTime,
			AppointmentType: appointment.AppointmentType(req.AppointmentType),
			Charges:         req.Charges,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := requireCaller(w, r)
		if !ok {
			return
		}
		id, ok := pathID(w, r, "invalid_appointment_id")
		if !ok {
			return
		}

		detail, err := svc.GetAppointment(r.Context(), caller, id)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toDetailResponse(detail))
	}
}

// listAppointmentsHandler is the admin listing with optional filters.
func listAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := requireCaller(w, r)
		if !ok {
			return
		}

		q := r.URL.Query()
		var f appointment.Filter
		for _, p := range []struct {
			key string
			dst **uuid.UUID
		}{
			{"doctor_id", &f.DoctorID},
			{"owner_id", &f.OwnerID},
			{"pet_id", &f.PetID},
		} {
			raw := q.Get(p.key)
			if raw == "" {
				continue
			}
			id, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_"+p.key, p.key+" must be a valid UUID")
				return
			}
			*p.dst = &id
		}

		status, ok := queryStatus(w, r)
		if !ok {
			return
		}
		f.Status = status

		f.Limit, f.Offset, ok = pagination(w, r)
		if !ok {
			return
		}

		items, err := svc.ListAppointments(r.Context(), caller, f)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toListResponse(items, f.Limit, f.Offset))
	}
}

// listMyAppointmentsHandler serves both the owner and the doctor views.
func listMyAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := requireCaller(w, r)
		if !ok {
			return
		}

		status, ok := queryStatus(w, r)
		if !ok {
			return
		}
		limit, offset, ok := pagination(w, r)
		if !ok {
			return
		}

		var (
			items []appointment.AppointmentDetail
			err   error
		)
		switch {
		case caller.CanRespondAsDoctor():
			items, err = svc.ListDoctorAppointments(r.Context(), caller, status, limit, offset)
		default:
			items, err = svc.ListOwnerAppointments(r.Context(), caller, status, limit, offset)
		}
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toListResponse(items, limit, offset))
	}
}

func doctorResponseHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := requireCaller(w, r)
		if !ok {
			return
		}
		id, ok := pathID(w, r, "invalid_appointment_id")
		if !ok {
			return
		}

		var req DoctorResponseRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		status, err := appointment.ParseStatus(req.Status)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		var resched *appointment.RescheduleInput
		if status == appointment.StatusRescheduled {
			resched = &appointment.RescheduleInput{
				AppointmentDate: req.AppointmentDate,
				AppointmentTime: req.AppointmentTime,
			}
		}

		appt, err := svc.DoctorRespond(r.Context(), caller, id, status, resched)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func ownerResponseHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := requireCaller(w, r)
		if !ok {
			return
		}
		id, ok := pathID(w, r, "invalid_appointment_id")
		if !ok {
			return
		}

		var req OwnerResponseRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		status, err := appointment.ParseStatus(req.Status)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		appt, err := svc.OwnerRespond(r.Context(), caller, id, status)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func paymentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := requireCaller(w, r)
		if !ok {
			return
		}
		id, ok := pathID(w, r, "invalid_appointment_id")
		if !ok {
			return
		}

		var req PaymentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if req.IsPaid == nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:  "validation_failed",
				Fields: map[string]string{"is_paid": "is required"},
			})
			return
		}

		appt, err := svc.SetPaid(r.Context(), caller, id, *req.IsPaid)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func completeHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := requireCaller(w, r)
		if !ok {
			return
		}
		id, ok := pathID(w, r, "invalid_appointment_id")
		if !ok {
			return
		}

		var req CompleteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appt, rec, err := svc.CompleteAppointment(r.Context(), caller, id, appointment.CompleteInput{
			Diagnosis:     req.Diagnosis,
			Treatment:     req.Treatment,
			Prescriptions: req.Prescriptions,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, CompleteResponse{
			Appointment:    toAppointmentResponse(appt),
			MedicalHistory: rec,
		})
	}
}

func cancelHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := requireCaller(w, r)
		if !ok {
			return
		}
		id, ok := pathID(w, r, "invalid_appointment_id")
		if !ok {
			return
		}

		appt, err := svc.CancelAppointment(r.Context(), caller, id)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func petHistoryHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := requireCaller(w, r)
		if !ok {
			return
		}
		petID, ok := pathID(w, r, "invalid_pet_id")
		if !ok {
			return
		}

		records, err := svc.ListPetHistory(r.Context(), caller, petID)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, PetHistoryResponse{PetID: petID, Records: records})
	}
}

func requireCaller(w http.ResponseWriter, r *http.Request) (identity.Caller, bool) {
	caller, err := identity.FromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
		return nil, false
	}
	return caller, true
}

func pathID(w http.ResponseWriter, r *http.Request, code string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, code, "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func queryStatus(w http.ResponseWriter, r *http.Request) (*appointment.Status, bool) {
	raw := r.URL.Query().Get("status")
	if raw == "" {
		return nil, true
	}
	status, err := appointment.ParseStatus(raw)
	if err != nil {
		writeServiceError(w, err)
		return nil, false
	}
	return &status, true
}

func pagination(w http.ResponseWriter, r *http.Request) (limit, offset int, ok bool) {
	q := r.URL.Query()
	var err error
	if raw := q.Get("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
			return 0, 0, false
		}
	}
	if raw := q.Get("offset"); raw != "" {
		if offset, err = strconv.Atoi(raw); err != nil || offset < 0 {
			writeError(w, http.StatusBadRequest, "invalid_offset", "offset must be a non-negative integer")
			return 0, 0, false
		}
	}
	return limit, offset, true
}
