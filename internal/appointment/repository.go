package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/vetcare-appointments/internal/history"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrPetNotFound         = errors.New("pet not found")
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrStatusChanged is returned by UpdateAppointment when the stored
	// status no longer matches the expected one.
	ErrStatusChanged = errors.New("appointment status changed since read")
)

type Order int

const (
	// OrderSchedule sorts by appointment date then time, ascending.
	OrderSchedule Order = iota
	// OrderNewest sorts by creation time, newest first.
	OrderNewest
)

type Filter struct {
	DoctorID *uuid.UUID
	OwnerID  *uuid.UUID
	PetID    *uuid.UUID
	Status   *Status
	Order    Order
	Limit    int
	Offset   int
}

type NewAppointment struct {
	DoctorID        uuid.UUID
	OwnerID         uuid.UUID
	PetID           uuid.UUID
	AppointmentDate time.Time
	AppointmentTime string
	AppointmentType AppointmentType
	Charges         float64
}

// Patch lists the fields a lifecycle step may change. Nil fields are left alone.
type Patch struct {
	Status          *Status
	AppointmentDate *time.Time
	AppointmentTime *string
	IsPaid          *bool
	Diagnosis       *string
	Treatment       *string
	Prescriptions   *string
}

// Repository contains all store interactions needed by the service.
type Repository interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetPetByID(ctx context.Context, id uuid.UUID) (*Pet, error)

	CreateAppointment(ctx context.Context, in NewAppointment) (*Appointment, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error)

	// UpdateAppointment applies patch only if the row still has status expected.
	UpdateAppointment(ctx context.Context, id uuid.UUID, expected Status, patch Patch) (*Appointment, error)

	// CompleteAppointment moves the appointment from expected to Completed
	// with the clinical notes in patch and writes rec to the medical history
	// in the same unit of work. Either both are stored or neither is.
	CompleteAppointment(ctx context.Context, id uuid.UUID, expected Status, patch Patch, rec history.Record) (*Appointment, *history.Record, error)

	ListAppointments(ctx context.Context, f Filter) ([]AppointmentDetail, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
