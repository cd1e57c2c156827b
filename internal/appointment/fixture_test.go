package appointment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/vetcare-appointments/internal/history"
	"github.com/hackgods/vetcare-appointments/internal/identity"
	"github.com/hackgods/vetcare-appointments/internal/metrics"
	redisclient "github.com/hackgods/vetcare-appointments/internal/redis"
)

type fixture struct {
	repo     *MemoryRepository
	recorder *history.MemoryRecorder
	locker   *redisclient.LocalLocker
	svc      *Service

	owner       identity.Caller
	otherOwner  identity.Caller
	doctor      identity.Caller
	otherDoctor identity.Caller
	admin       identity.Caller

	pet      Pet
	otherPet Pet
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	recorder := history.NewMemoryRecorder()
	f := &fixture{
		repo:     NewMemoryRepository(recorder),
		recorder: recorder,
		locker:   redisclient.NewLocalLocker(),
	}
	f.repo.now = steppingClock(time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC))
	f.svc = NewService(f.repo, f.recorder, f.locker, metrics.NewCollector(), zerolog.Nop())

	f.owner = f.addUser(t, "Olive Owner", identity.RoleOwner)
	f.otherOwner = f.addUser(t, "Oscar Owner", identity.RoleOwner)
	f.doctor = f.addUser(t, "Dana Doctor", identity.RoleDoctor)
	f.otherDoctor = f.addUser(t, "Drew Doctor", identity.RoleDoctor)
	f.admin = f.addUser(t, "Ada Admin", identity.RoleAdmin)

	f.pet = Pet{ID: uuid.New(), OwnerID: f.owner.UserID(), Name: "Rex", Species: "Dog"}
	f.otherPet = Pet{ID: uuid.New(), OwnerID: f.otherOwner.UserID(), Name: "Tom", Species: "Cat"}
	f.repo.PutPet(f.pet)
	f.repo.PutPet(f.otherPet)

	return f
}

// failCompletions makes the next n completion writes fail with err while
// every other call reaches the memory store.
func (f *fixture) failCompletions(n int, err error) {
	f.svc = NewService(&flakyRepository{MemoryRepository: f.repo, remaining: n, err: err},
		f.recorder, f.locker, metrics.NewCollector(), zerolog.Nop())
}

type flakyRepository struct {
	*MemoryRepository

	mu        sync.Mutex
	remaining int
	err       error
}

func (r *flakyRepository) CompleteAppointment(ctx context.Context, id uuid.UUID, expected Status, patch Patch, rec history.Record) (*Appointment, *history.Record, error) {
	r.mu.Lock()
	if r.remaining > 0 {
		r.remaining--
		r.mu.Unlock()
		return nil, nil, r.err
	}
	r.mu.Unlock()
	return r.MemoryRepository.CompleteAppointment(ctx, id, expected, patch, rec)
}

func (f *fixture) addUser(t *testing.T, name string, role identity.Role) identity.Caller {
	t.Helper()
	id := uuid.New()
	f.repo.PutUser(User{ID: id, Name: name, Role: role})
	c, err := identity.NewCaller(id, role)
	require.NoError(t, err)
	return c
}

func (f *fixture) createInput() CreateInput {
	return CreateInput{
		DoctorID:        f.doctor.UserID(),
		PetID:           f.pet.ID,
		AppointmentDate: "2024-04-20",
		AppointmentTime: "10:00",
		AppointmentType: TypeOnClinic,
		Charges:         ptr(1500.0),
	}
}

func (f *fixture) book(t *testing.T) *Appointment {
	t.Helper()
	appt, err := f.svc.CreateAppointment(context.Background(), f.owner, f.createInput())
	require.NoError(t, err)
	return appt
}

// accepted books an appointment and has the doctor accept it.
func (f *fixture) accepted(t *testing.T) *Appointment {
	t.Helper()
	appt := f.book(t)
	appt, err := f.svc.DoctorRespond(context.Background(), f.doctor, appt.ID, StatusAccepted, nil)
	require.NoError(t, err)
	return appt
}

// completed walks an appointment through payment and completion.
func (f *fixture) completed(t *testing.T) *Appointment {
	t.Helper()
	ctx := context.Background()
	appt := f.accepted(t)
	_, err := f.svc.SetPaid(ctx, f.owner, appt.ID, true)
	require.NoError(t, err)
	appt, _, err = f.svc.CompleteAppointment(ctx, f.doctor, appt.ID, CompleteInput{Diagnosis: "Healthy"})
	require.NoError(t, err)
	return appt
}

func (f *fixture) cancelled(t *testing.T) *Appointment {
	t.Helper()
	appt := f.book(t)
	appt, err := f.svc.CancelAppointment(context.Background(), f.owner, appt.ID)
	require.NoError(t, err)
	return appt
}

func (f *fixture) eventTypes() []string {
	var types []string
	for _, ev := range f.repo.Events() {
		types = append(types, ev.EventType)
	}
	return types
}

func steppingClock(start time.Time) func() time.Time {
	var (
		mu  sync.Mutex
		cur = start
	)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		cur = cur.Add(time.Minute)
		return cur
	}
}

func ptr[T any](v T) *T { return &v }
