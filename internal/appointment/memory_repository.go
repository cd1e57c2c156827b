package appointment

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/vetcare-appointments/internal/history"
)

// MemoryRepository is a process-local Repository. It backs the memory store
// backend and the tests; semantics match PgRepository. Completions are
// written to recorder.
type MemoryRepository struct {
	mu           sync.RWMutex
	recorder     history.Recorder
	users        map[uuid.UUID]User
	pets         map[uuid.UUID]Pet
	appointments map[uuid.UUID]Appointment
	events       []EventLog
	now          func() time.Time
}

func NewMemoryRepository(recorder history.Recorder) *MemoryRepository {
	return &MemoryRepository{
		recorder:     recorder,
		users:        make(map[uuid.UUID]User),
		pets:         make(map[uuid.UUID]Pet),
		appointments: make(map[uuid.UUID]Appointment),
		now:          time.Now,
	}
}

func (m *MemoryRepository) PutUser(u User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = m.now()
		u.UpdatedAt = u.CreatedAt
	}
	m.users[u.ID] = u
}

func (m *MemoryRepository) PutPet(p Pet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = m.now()
		p.UpdatedAt = p.CreatedAt
	}
	m.pets[p.ID] = p
}

// Events returns a copy of the event log.
func (m *MemoryRepository) Events() []EventLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]EventLog, len(m.events))
	copy(out, m.events)
	return out
}

func (m *MemoryRepository) GetUserByID(_ context.Context, id uuid.UUID) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (m *MemoryRepository) GetPetByID(_ context.Context, id uuid.UUID) (*Pet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pets[id]
	if !ok {
		return nil, ErrPetNotFound
	}
	return &p, nil
}

func (m *MemoryRepository) CreateAppointment(_ context.Context, in NewAppointment) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	a := Appointment{
		ID:              uuid.New(),
		DoctorID:        in.DoctorID,
		OwnerID:         in.OwnerID,
		PetID:           in.PetID,
		AppointmentDate: in.AppointmentDate,
		AppointmentTime: in.AppointmentTime,
		AppointmentType: in.AppointmentType,
		Charges:         in.Charges,
		Status:          StatusScheduled,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	m.appointments[a.ID] = a
	return &a, nil
}

func (m *MemoryRepository) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (m *MemoryRepository) GetAppointmentDetail(_ context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	d := m.detail(a)
	return &d, nil
}

func (m *MemoryRepository) UpdateAppointment(_ context.Context, id uuid.UUID, expected Status, patch Patch) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if a.Status != expected {
		return nil, ErrStatusChanged
	}

	a = m.applyPatch(a, patch)
	return &a, nil
}

// CompleteAppointment holds m.mu across the status check, the history write
// and the status change.
func (m *MemoryRepository) CompleteAppointment(ctx context.Context, id uuid.UUID, expected Status, patch Patch, rec history.Record) (*Appointment, *history.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appointments[id]
	if !ok {
		return nil, nil, ErrAppointmentNotFound
	}
	if a.Status != expected {
		return nil, nil, ErrStatusChanged
	}

	written, err := m.recorder.RecordCompletion(ctx, rec)
	if err != nil {
		return nil, nil, fmt.Errorf("record medical history: %w", err)
	}

	completed := StatusCompleted
	patch.Status = &completed
	a = m.applyPatch(a, patch)
	return &a, written, nil
}

// applyPatch must be called with m.mu held.
func (m *MemoryRepository) applyPatch(a Appointment, patch Patch) Appointment {
	if patch.Status != nil {
		a.Status = *patch.Status
	}
	if patch.AppointmentDate != nil {
		a.AppointmentDate = *patch.AppointmentDate
	}
	if patch.AppointmentTime != nil {
		a.AppointmentTime = *patch.AppointmentTime
	}
	if patch.IsPaid != nil {
		a.IsPaid = *patch.IsPaid
	}
	if patch.Diagnosis != nil {
		a.Diagnosis = copyString(patch.Diagnosis)
	}
	if patch.Treatment != nil {
		a.Treatment = copyString(patch.Treatment)
	}
	if patch.Prescriptions != nil {
		a.Prescriptions = copyString(patch.Prescriptions)
	}
	a.UpdatedAt = m.now()

	m.appointments[a.ID] = a
	return a
}

func (m *MemoryRepository) ListAppointments(_ context.Context, f Filter) ([]AppointmentDetail, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []Appointment
	for _, a := range m.appointments {
		if f.DoctorID != nil && a.DoctorID != *f.DoctorID {
			continue
		}
		if f.OwnerID != nil && a.OwnerID != *f.OwnerID {
			continue
		}
		if f.PetID != nil && a.PetID != *f.PetID {
			continue
		}
		if f.Status != nil && a.Status != *f.Status {
			continue
		}
		matched = append(matched, a)
	}

	switch f.Order {
	case OrderNewest:
		sort.Slice(matched, func(i, j int) bool {
			if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
				return matched[i].CreatedAt.After(matched[j].CreatedAt)
			}
			return matched[i].ID.String() < matched[j].ID.String()
		})
	default:
		sort.Slice(matched, func(i, j int) bool {
			ai, aj := matched[i], matched[j]
			if !ai.AppointmentDate.Equal(aj.AppointmentDate) {
				return ai.AppointmentDate.Before(aj.AppointmentDate)
			}
			if ai.AppointmentTime != aj.AppointmentTime {
				return ai.AppointmentTime < aj.AppointmentTime
			}
			return ai.ID.String() < aj.ID.String()
		})
	}

	if f.Offset > 0 {
		if f.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[f.Offset:]
		}
	}
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}

	result := make([]AppointmentDetail, 0, len(matched))
	for _, a := range matched {
		result = append(result, m.detail(a))
	}
	return result, nil
}

func (m *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev.ID = int64(len(m.events) + 1)
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = m.now()
	}
	m.events = append(m.events, ev)
	return nil
}

// detail must be called with m.mu held.
func (m *MemoryRepository) detail(a Appointment) AppointmentDetail {
	d := AppointmentDetail{Appointment: a}
	if u, ok := m.users[a.DoctorID]; ok {
		d.Doctor = summarizeUser(&u)
	}
	if u, ok := m.users[a.OwnerID]; ok {
		d.Owner = summarizeUser(&u)
	}
	if p, ok := m.pets[a.PetID]; ok {
		d.Pet = summarizePet(&p)
	}
	return d
}

func copyString(s *string) *string {
	v := *s
	return &v
}
