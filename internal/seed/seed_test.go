package seed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/vetcare-appointments/internal/appointment"
	"github.com/hackgods/vetcare-appointments/internal/history"
	"github.com/hackgods/vetcare-appointments/internal/identity"
)

func TestGenerate(t *testing.T) {
	ds := Generate(42, 4, 2, 3)

	assert.Len(t, ds.Owners, 4)
	assert.Len(t, ds.Doctors, 2)
	assert.Len(t, ds.Admins, 1)
	assert.Len(t, ds.Pets, 12)
	assert.Len(t, ds.Users(), 7)

	owners := map[string]bool{}
	for _, o := range ds.Owners {
		assert.Equal(t, identity.RoleOwner, o.Role)
		owners[o.ID.String()] = true
	}
	for _, d := range ds.Doctors {
		assert.Equal(t, identity.RoleDoctor, d.Role)
	}
	for _, p := range ds.Pets {
		assert.True(t, owners[p.OwnerID.String()], "pet %s has no generated owner", p.ID)
		assert.NotEmpty(t, p.Name)
		assert.Contains(t, species, p.Species)
	}
}

func TestLoadMemory(t *testing.T) {
	ctx := context.Background()
	ds := Generate(7, 2, 1, 1)
	repo := appointment.NewMemoryRepository(history.NewMemoryRecorder())

	LoadMemory(repo, ds)

	u, err := repo.GetUserByID(ctx, ds.Doctors[0].ID)
	require.NoError(t, err)
	assert.Equal(t, ds.Doctors[0].Name, u.Name)

	p, err := repo.GetPetByID(ctx, ds.Pets[0].ID)
	require.NoError(t, err)
	assert.Equal(t, ds.Pets[0].OwnerID, p.OwnerID)
}
