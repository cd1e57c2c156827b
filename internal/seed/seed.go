// Package seed generates fake owners, doctors and pets for local runs and
// load tests.
package seed

import (
	"context"
	"fmt"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/vetcare-appointments/internal/appointment"
	"github.com/hackgods/vetcare-appointments/internal/identity"
)

type Dataset struct {
	Owners  []appointment.User
	Doctors []appointment.User
	Admins  []appointment.User
	Pets    []appointment.Pet
}

var species = []string{"Dog", "Cat", "Rabbit", "Parrot", "Hamster", "Horse"}

// Generate builds a dataset. A zero seed picks a random one.
func Generate(seed uint64, owners, doctors, petsPerOwner int) Dataset {
	f := gofakeit.New(seed)
	var ds Dataset

	newUser := func(role identity.Role) appointment.User {
		email := f.Email()
		phone := f.Phone()
		return appointment.User{
			ID:    uuid.New(),
			Name:  f.Name(),
			Email: &email,
			Phone: &phone,
			Role:  role,
		}
	}

	for i := 0; i < doctors; i++ {
		ds.Doctors = append(ds.Doctors, newUser(identity.RoleDoctor))
	}
	ds.Admins = append(ds.Admins, newUser(identity.RoleAdmin))

	for i := 0; i < owners; i++ {
		owner := newUser(identity.RoleOwner)
		ds.Owners = append(ds.Owners, owner)

		for j := 0; j < petsPerOwner; j++ {
			sp := f.RandomString(species)
			var breed *string
			switch sp {
			case "Dog":
				b := f.Dog()
				breed = &b
			case "Cat":
				b := f.Cat()
				breed = &b
			}
			ds.Pets = append(ds.Pets, appointment.Pet{
				ID:      uuid.New(),
				OwnerID: owner.ID,
				Name:    f.PetName(),
				Species: sp,
				Breed:   breed,
			})
		}
	}

	return ds
}

// Users returns every generated user.
func (ds Dataset) Users() []appointment.User {
	all := make([]appointment.User, 0, len(ds.Owners)+len(ds.Doctors)+len(ds.Admins))
	all = append(all, ds.Doctors...)
	all = append(all, ds.Admins...)
	all = append(all, ds.Owners...)
	return all
}

// LoadMemory copies the dataset into an in-process repository.
func LoadMemory(repo *appointment.MemoryRepository, ds Dataset) {
	for _, u := range ds.Users() {
		repo.PutUser(u)
	}
	for _, p := range ds.Pets {
		repo.PutPet(p)
	}
}

// InsertPostgres writes the dataset in batches, one transaction per batch.
func InsertPostgres(ctx context.Context, pool *pgxpool.Pool, ds Dataset, batchSize int) error {
	if batchSize <= 0 {
		batchSize = 500
	}

	users := ds.Users()
	for offset := 0; offset < len(users); offset += batchSize {
		end := min(offset+batchSize, len(users))

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for _, u := range users[offset:end] {
			_, err := tx.Exec(ctx, `
				INSERT INTO users (id, name, email, phone, role, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, now(), now())
			`, u.ID, u.Name, u.Email, u.Phone, u.Role)
			if err != nil {
				_ = tx.Rollback(ctx)
				return fmt.Errorf("insert user %s: %w", u.ID, err)
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}
	}

	for offset := 0; offset < len(ds.Pets); offset += batchSize {
		end := min(offset+batchSize, len(ds.Pets))

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for _, p := range ds.Pets[offset:end] {
			_, err := tx.Exec(ctx, `
				INSERT INTO pets (id, owner_id, name, species, breed, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, now(), now())
			`, p.ID, p.OwnerID, p.Name, p.Species, p.Breed)
			if err != nil {
				_ = tx.Rollback(ctx)
				return fmt.Errorf("insert pet %s: %w", p.ID, err)
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}
	}

	return nil
}
