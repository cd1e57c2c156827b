package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/vetcare-appointments/internal/identity"
)

type Status string

const (
	StatusScheduled   Status = "Scheduled"
	StatusRescheduled Status = "Rescheduled"
	StatusAccepted    Status = "Accepted"
	StatusCompleted   Status = "Completed"
	StatusCancelled   Status = "Cancelled"
)

// Statuses lists every persistable status.
var Statuses = []Status{
	StatusScheduled,
	StatusRescheduled,
	StatusAccepted,
	StatusCompleted,
	StatusCancelled,
}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type AppointmentType string

const (
	TypeHomeVisit AppointmentType = "HomeVisit"
	TypeVideoCall AppointmentType = "VideoCall"
	TypeOnClinic  AppointmentType = "OnClinic"
)

type User struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	Phone     *string
	Role      identity.Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Pet struct {
	ID        uuid.UUID
	OwnerID   uuid.UUID
	Name      string
	Species   string
	Breed     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Appointment struct {
	ID              uuid.UUID
	DoctorID        uuid.UUID
	OwnerID         uuid.UUID
	PetID           uuid.UUID
	AppointmentDate time.Time
	AppointmentTime string
	AppointmentType AppointmentType
	Charges         float64
	Status          Status
	IsPaid          bool
	Diagnosis       *string
	Treatment       *string
	Prescriptions   *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

type UserSummary struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email *string   `json:"email,omitempty"`
	Phone *string   `json:"phone,omitempty"`
}

type PetSummary struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Species string    `json:"species"`
	Breed   *string   `json:"breed,omitempty"`
}

// AppointmentDetail is an appointment joined with its doctor, owner and pet.
type AppointmentDetail struct {
	Appointment
	Doctor *UserSummary
	Owner  *UserSummary
	Pet    *PetSummary
}

func summarizeUser(u *User) *UserSummary {
	if u == nil {
		return nil
	}
	return &UserSummary{ID: u.ID, Name: u.Name, Email: u.Email, Phone: u.Phone}
}

func summarizePet(p *Pet) *PetSummary {
	if p == nil {
		return nil
	}
	return &PetSummary{ID: p.ID, Name: p.Name, Species: p.Species, Breed: p.Breed}
}
