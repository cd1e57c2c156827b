package history

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrRecordNotFound = errors.New("medical history record not found")

// Record is the permanent clinical entry written when an appointment completes.
type Record struct {
	ID            uuid.UUID `json:"id"`
	PetID         uuid.UUID `json:"pet_id"`
	DoctorID      uuid.UUID `json:"doctor_id"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	VisitDate     time.Time `json:"visit_date"`
	Diagnosis     string    `json:"diagnosis"`
	Treatment     string    `json:"treatment"`
	Prescriptions string    `json:"prescriptions"`
	CreatedAt     time.Time `json:"created_at"`
}

// Recorder persists medical history. RecordCompletion is idempotent per
// appointment: a second call keeps the record's id and creation time but
// takes the notes and visit date of the latest call.
type Recorder interface {
	RecordCompletion(ctx context.Context, rec Record) (*Record, error)
	GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Record, error)
	ListByPet(ctx context.Context, petID uuid.UUID) ([]Record, error)
}
