package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/vetcare-appointments/internal/appointment"
	"github.com/hackgods/vetcare-appointments/internal/history"
)

const dateLayout = "2006-01-02"

type CreateAppointmentRequest struct {
	DoctorID        string   `json:"doctor_id"`
	PetID           string   `json:"pet_id"`
	AppointmentDate string   `json:"appointment_date"`
	AppointmentTime string   `json:"appointment_time"`
	AppointmentType string   `json:"appointment_type"`
	Charges         *float64 `json:"charges"`
}

type DoctorResponseRequest struct {
	Status          string `json:"status"`
	AppointmentDate string `json:"appointment_date,omitempty"`
	AppointmentTime string `json:"appointment_time,omitempty"`
}

type OwnerResponseRequest struct {
	Status string `json:"status"`
}

type PaymentRequest struct {
	IsPaid *bool `json:"is_paid"`
}

type CompleteRequest struct {
	Diagnosis     string `json:"diagnosis"`
	Treatment     string `json:"treatment"`
	Prescriptions string `json:"prescriptions"`
}

type AppointmentResponse struct {
	ID              uuid.UUID                `json:"id"`
	DoctorID        uuid.UUID                `json:"doctor_id"`
	OwnerID         uuid.UUID                `json:"owner_id"`
	PetID           uuid.UUID                `json:"pet_id"`
	AppointmentDate string                   `json:"appointment_date"`
	AppointmentTime string                   `json:"appointment_time"`
	AppointmentType string                   `json:"appointment_type"`
	Charges         float64                  `json:"charges"`
	Status          string                   `json:"status"`
	IsPaid          bool                     `json:"is_paid"`
	Diagnosis       *string                  `json:"diagnosis,omitempty"`
	Treatment       *string                  `json:"treatment,omitempty"`
	Prescriptions   *string                  `json:"prescriptions,omitempty"`
	Doctor          *appointment.UserSummary `json:"doctor,omitempty"`
	Owner           *appointment.UserSummary `json:"owner,omitempty"`
	Pet             *appointment.PetSummary  `json:"pet,omitempty"`
	CreatedAt       time.Time                `json:"created_at"`
	UpdatedAt       time.Time                `json:"updated_at"`
}

type AppointmentListResponse struct {
	Appointments []AppointmentResponse `json:"appointments"`
	Limit        int                   `json:"limit"`
	Offset       int                   `json:"offset"`
}

type CompleteResponse struct {
	Appointment    AppointmentResponse `json:"appointment"`
	MedicalHistory *history.Record     `json:"medical_history"`
}

type PetHistoryResponse struct {
	PetID   uuid.UUID        `json:"pet_id"`
	Records []history.Record `json:"records"`
}

type ErrorResponse struct {
	Error   string            `json:"error"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:              a.ID,
		DoctorID:        a.DoctorID,
		OwnerID:         a.OwnerID,
		PetID:           a.PetID,
		AppointmentDate: a.AppointmentDate.Format(dateLayout),
		AppointmentTime: a.AppointmentTime,
		AppointmentType: string(a.AppointmentType),
		Charges:         a.Charges,
		Status:          string(a.Status),
		IsPaid:          a.IsPaid,
		Diagnosis:       a.Diagnosis,
		Treatment:       a.Treatment,
		Prescriptions:   a.Prescriptions,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

func toDetailResponse(d *appointment.AppointmentDetail) AppointmentResponse {
	resp := toAppointmentResponse(&d.Appointment)
	resp.Doctor = d.Doctor
	resp.Owner = d.Owner
	resp.Pet = d.Pet
	return resp
}

func toListResponse(items []appointment.AppointmentDetail, limit, offset int) AppointmentListResponse {
	out := make([]AppointmentResponse, 0, len(items))
	for i := range items {
		out = append(out, toDetailResponse(&items[i]))
	}
	return AppointmentListResponse{Appointments: out, Limit: limit, Offset: offset}
}
