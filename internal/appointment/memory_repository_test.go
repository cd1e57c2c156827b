package appointment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/vetcare-appointments/internal/history"
)

func TestMemoryRepository_UpdateIsCompareAndSet(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(history.NewMemoryRecorder())

	appt, err := repo.CreateAppointment(ctx, NewAppointment{
		DoctorID:        uuid.New(),
		OwnerID:         uuid.New(),
		PetID:           uuid.New(),
		AppointmentDate: time.Date(2024, 4, 20, 0, 0, 0, 0, time.UTC),
		AppointmentTime: "10:00",
		AppointmentType: TypeVideoCall,
		Charges:         80,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusScheduled, appt.Status)

	accepted := StatusAccepted
	_, err = repo.UpdateAppointment(ctx, appt.ID, StatusRescheduled, Patch{Status: &accepted})
	assert.ErrorIs(t, err, ErrStatusChanged)

	diagnosis := "n/a"
	updated, err := repo.UpdateAppointment(ctx, appt.ID, StatusScheduled, Patch{Status: &accepted, Diagnosis: &diagnosis})
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, updated.Status)

	diagnosis = "mutated"
	stored, err := repo.GetAppointmentByID(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, "n/a", *stored.Diagnosis)

	_, err = repo.UpdateAppointment(ctx, uuid.New(), StatusScheduled, Patch{Status: &accepted})
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestMemoryRepository_DetailWithoutParticipants(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(history.NewMemoryRecorder())

	appt, err := repo.CreateAppointment(ctx, NewAppointment{DoctorID: uuid.New(), OwnerID: uuid.New(), PetID: uuid.New()})
	require.NoError(t, err)

	d, err := repo.GetAppointmentDetail(ctx, appt.ID)
	require.NoError(t, err)
	assert.Nil(t, d.Doctor)
	assert.Nil(t, d.Pet)

	_, err = repo.GetAppointmentDetail(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	require.NoError(t, repo.InsertEvent(ctx, EventLog{EventType: EventAppointmentCreated}))
	events := repo.Events()
	require.Len(t, events, 1)
	assert.Equal(t, int64(1), events[0].ID)
	assert.False(t, events[0].CreatedAt.IsZero())
}

func TestMemoryRepository_CompleteWritesStatusAndHistoryTogether(t *testing.T) {
	ctx := context.Background()
	recorder := history.NewMemoryRecorder()
	repo := NewMemoryRepository(recorder)

	appt, err := repo.CreateAppointment(ctx, NewAppointment{DoctorID: uuid.New(), OwnerID: uuid.New(), PetID: uuid.New()})
	require.NoError(t, err)
	rec := history.Record{PetID: appt.PetID, DoctorID: appt.DoctorID, AppointmentID: appt.ID, Diagnosis: "Healthy"}
	diagnosis := "Healthy"

	t.Run("stale status writes nothing", func(t *testing.T) {
		_, _, err := repo.CompleteAppointment(ctx, appt.ID, StatusAccepted, Patch{Diagnosis: &diagnosis}, rec)
		assert.ErrorIs(t, err, ErrStatusChanged)
		assert.Zero(t, recorder.Calls())
	})

	t.Run("history failure leaves status", func(t *testing.T) {
		boom := errors.New("boom")
		recorder.FailNext(boom)
		_, _, err := repo.CompleteAppointment(ctx, appt.ID, StatusScheduled, Patch{Diagnosis: &diagnosis}, rec)
		assert.ErrorIs(t, err, boom)

		stored, err := repo.GetAppointmentByID(ctx, appt.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusScheduled, stored.Status)
		assert.Nil(t, stored.Diagnosis)
	})

	t.Run("success", func(t *testing.T) {
		done, written, err := repo.CompleteAppointment(ctx, appt.ID, StatusScheduled, Patch{Diagnosis: &diagnosis}, rec)
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, done.Status)
		assert.Equal(t, appt.ID, written.AppointmentID)

		got, err := recorder.GetByAppointment(ctx, appt.ID)
		require.NoError(t, err)
		assert.Equal(t, written.ID, got.ID)
	})
}
