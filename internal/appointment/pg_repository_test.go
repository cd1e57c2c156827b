//go:build integration

package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/vetcare-appointments/internal/db/dbtest"
	"github.com/hackgods/vetcare-appointments/internal/history"
)

type pgFixture struct {
	pool   *pgxpool.Pool
	repo   *PgRepository
	doctor uuid.UUID
	owner  uuid.UUID
	pet    uuid.UUID
}

func newPgFixture(t *testing.T) *pgFixture {
	t.Helper()

	pool := dbtest.Pool(t, "appointment")
	f := &pgFixture{
		pool:   pool,
		repo:   NewPgRepository(pool),
		doctor: uuid.New(),
		owner:  uuid.New(),
		pet:    uuid.New(),
	}
	dbtest.InsertUser(t, pool, f.doctor, "Dana Doctor", "doctor")
	dbtest.InsertUser(t, pool, f.owner, "Olive Owner", "owner")
	dbtest.InsertPet(t, pool, f.pet, f.owner, "Rex", "Dog")
	return f
}

func (f *pgFixture) create(t *testing.T, date time.Time, at string) *Appointment {
	t.Helper()
	appt, err := f.repo.CreateAppointment(context.Background(), NewAppointment{
		DoctorID:        f.doctor,
		OwnerID:         f.owner,
		PetID:           f.pet,
		AppointmentDate: date,
		AppointmentTime: at,
		AppointmentType: TypeOnClinic,
		Charges:         120.5,
	})
	require.NoError(t, err)
	return appt
}

func (f *pgFixture) accept(t *testing.T, appt *Appointment) *Appointment {
	t.Helper()
	accepted := StatusAccepted
	updated, err := f.repo.UpdateAppointment(context.Background(), appt.ID, StatusScheduled, Patch{Status: &accepted})
	require.NoError(t, err)
	return updated
}

func (f *pgFixture) record(appt *Appointment, diagnosis string) history.Record {
	return history.Record{
		PetID:         appt.PetID,
		DoctorID:      appt.DoctorID,
		AppointmentID: appt.ID,
		VisitDate:     appt.AppointmentDate,
		Diagnosis:     diagnosis,
	}
}

var pgDay = time.Date(2024, 4, 20, 0, 0, 0, 0, time.UTC)

func TestPgRepository_CreateAndGet(t *testing.T) {
	f := newPgFixture(t)
	ctx := context.Background()

	appt := f.create(t, pgDay, "10:00")
	assert.Equal(t, StatusScheduled, appt.Status)
	assert.False(t, appt.IsPaid)
	assert.Equal(t, 120.5, appt.Charges)
	assert.True(t, pgDay.Equal(appt.AppointmentDate))

	got, err := f.repo.GetAppointmentByID(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, appt.ID, got.ID)

	detail, err := f.repo.GetAppointmentDetail(ctx, appt.ID)
	require.NoError(t, err)
	require.NotNil(t, detail.Doctor)
	require.NotNil(t, detail.Pet)
	assert.Equal(t, "Dana Doctor", detail.Doctor.Name)
	assert.Equal(t, "Olive Owner", detail.Owner.Name)
	assert.Equal(t, "Rex", detail.Pet.Name)

	_, err = f.repo.GetAppointmentByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	user, err := f.repo.GetUserByID(ctx, f.doctor)
	require.NoError(t, err)
	assert.Equal(t, "doctor", string(user.Role))

	_, err = f.repo.GetPetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrPetNotFound)
}

func TestPgRepository_UpdateIsCompareAndSet(t *testing.T) {
	f := newPgFixture(t)
	ctx := context.Background()
	appt := f.create(t, pgDay, "10:00")

	rescheduled := StatusRescheduled
	newDate := pgDay.AddDate(0, 0, 3)
	newTime := "15:30"

	_, err := f.repo.UpdateAppointment(ctx, appt.ID, StatusAccepted, Patch{Status: &rescheduled})
	assert.ErrorIs(t, err, ErrStatusChanged)

	_, err = f.repo.UpdateAppointment(ctx, uuid.New(), StatusScheduled, Patch{Status: &rescheduled})
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	updated, err := f.repo.UpdateAppointment(ctx, appt.ID, StatusScheduled, Patch{
		Status:          &rescheduled,
		AppointmentDate: &newDate,
		AppointmentTime: &newTime,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusRescheduled, updated.Status)
	assert.True(t, newDate.Equal(updated.AppointmentDate))
	assert.Equal(t, "15:30", updated.AppointmentTime)
}

func TestPgRepository_CompleteIsAtomic(t *testing.T) {
	f := newPgFixture(t)
	ctx := context.Background()
	appt := f.accept(t, f.create(t, pgDay, "10:00"))
	diagnosis := "Mild otitis"
	histories := func() int {
		return dbtest.Count(t, f.pool, "medical_histories", "appointment_id = $1", appt.ID)
	}

	t.Run("stale status writes no history", func(t *testing.T) {
		_, _, err := f.repo.CompleteAppointment(ctx, appt.ID, StatusScheduled, Patch{Diagnosis: &diagnosis}, f.record(appt, diagnosis))
		assert.ErrorIs(t, err, ErrStatusChanged)
		assert.Zero(t, histories())
	})

	t.Run("failed history insert rolls back the status", func(t *testing.T) {
		rec := f.record(appt, diagnosis)
		rec.PetID = uuid.New()

		_, _, err := f.repo.CompleteAppointment(ctx, appt.ID, StatusAccepted, Patch{Diagnosis: &diagnosis}, rec)
		require.Error(t, err)

		stored, err := f.repo.GetAppointmentByID(ctx, appt.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusAccepted, stored.Status)
		assert.Nil(t, stored.Diagnosis)
		assert.Zero(t, histories())
	})

	t.Run("success", func(t *testing.T) {
		done, written, err := f.repo.CompleteAppointment(ctx, appt.ID, StatusAccepted, Patch{Diagnosis: &diagnosis}, f.record(appt, diagnosis))
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, done.Status)
		require.NotNil(t, done.Diagnosis)
		assert.Equal(t, diagnosis, *done.Diagnosis)
		assert.Equal(t, diagnosis, written.Diagnosis)
		assert.Equal(t, 1, histories())
	})
}

func TestPgRepository_ListAppointments(t *testing.T) {
	f := newPgFixture(t)
	ctx := context.Background()

	late := f.create(t, pgDay.AddDate(0, 0, 2), "09:00")
	early := f.create(t, pgDay, "16:00")
	middle := f.accept(t, f.create(t, pgDay, "17:30"))

	all, err := f.repo.ListAppointments(ctx, Filter{OwnerID: &f.owner, Order: OrderSchedule})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []uuid.UUID{early.ID, middle.ID, late.ID}, []uuid.UUID{all[0].ID, all[1].ID, all[2].ID})
	assert.Equal(t, "Rex", all[0].Pet.Name)

	accepted := StatusAccepted
	filtered, err := f.repo.ListAppointments(ctx, Filter{DoctorID: &f.doctor, Status: &accepted})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, middle.ID, filtered[0].ID)

	page, err := f.repo.ListAppointments(ctx, Filter{PetID: &f.pet, Order: OrderSchedule, Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, middle.ID, page[0].ID)

	newest, err := f.repo.ListAppointments(ctx, Filter{Order: OrderNewest, Limit: 1})
	require.NoError(t, err)
	require.Len(t, newest, 1)
	assert.Equal(t, middle.ID, newest[0].ID)

	stranger := uuid.New()
	none, err := f.repo.ListAppointments(ctx, Filter{OwnerID: &stranger})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestPgRepository_InsertEvent(t *testing.T) {
	f := newPgFixture(t)
	ctx := context.Background()
	appt := f.create(t, pgDay, "10:00")

	require.NoError(t, f.repo.InsertEvent(ctx, EventLog{
		EventType:     EventAppointmentCreated,
		AppointmentID: &appt.ID,
		Payload:       []byte(`{"charges":120.5}`),
	}))
	require.NoError(t, f.repo.InsertEvent(ctx, EventLog{EventType: EventPaymentUpdated, AppointmentID: &appt.ID}))

	assert.Equal(t, 2, dbtest.Count(t, f.pool, "event_logs", "appointment_id = $1", appt.ID))
}
