package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hackgods/vetcare-appointments/internal/appointment"
	"github.com/hackgods/vetcare-appointments/internal/identity"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// writeServiceError maps service errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	var verr *appointment.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_failed",
			Details: verr.Error(),
			Fields:  verr.Fields,
		})
	case errors.Is(err, appointment.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, identity.ErrMissingIdentity),
		errors.Is(err, identity.ErrInvalidToken),
		errors.Is(err, identity.ErrUnknownRole):
		writeError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
	case errors.Is(err, appointment.ErrPaymentRequired):
		writeError(w, http.StatusUnprocessableEntity, "payment_required", err.Error())
	case errors.Is(err, appointment.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrPetNotFound):
		writeError(w, http.StatusNotFound, "pet_not_found", err.Error())
	case errors.Is(err, appointment.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "user_not_found", err.Error())
	case errors.Is(err, appointment.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, appointment.ErrConflict):
		writeError(w, http.StatusConflict, "concurrent_update", err.Error())
	case errors.Is(err, appointment.ErrDependencyFailure):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, "dependency_failure", appointment.ErrDependencyFailure.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
