package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/vetcare-appointments/internal/history"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const appointmentColumns = `id, doctor_id, owner_id, pet_id, appointment_date, appointment_time,
	appointment_type, charges::float8, status, is_paid, diagnosis, treatment, prescriptions,
	created_at, updated_at`

const detailSelect = `
	SELECT a.id, a.doctor_id, a.owner_id, a.pet_id, a.appointment_date, a.appointment_time,
	       a.appointment_type, a.charges::float8, a.status, a.is_paid, a.diagnosis, a.treatment,
	       a.prescriptions, a.created_at, a.updated_at,
	       d.id, d.name, d.email, d.phone,
	       o.id, o.name, o.email, o.phone,
	       p.id, p.name, p.species, p.breed
	FROM appointments a
	JOIN users d ON d.id = a.doctor_id
	JOIN users o ON o.id = a.owner_id
	JOIN pets p ON p.id = a.pet_id`

// Helpers

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.Phone,
		&u.Role,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func scanPet(row pgx.Row) (*Pet, error) {
	var p Pet
	err := row.Scan(
		&p.ID,
		&p.OwnerID,
		&p.Name,
		&p.Species,
		&p.Breed,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPetNotFound
		}
		return nil, err
	}
	return &p, nil
}

func appointmentFields(a *Appointment) []any {
	return []any{
		&a.ID,
		&a.DoctorID,
		&a.OwnerID,
		&a.PetID,
		&a.AppointmentDate,
		&a.AppointmentTime,
		&a.AppointmentType,
		&a.Charges,
		&a.Status,
		&a.IsPaid,
		&a.Diagnosis,
		&a.Treatment,
		&a.Prescriptions,
		&a.CreatedAt,
		&a.UpdatedAt,
	}
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	if err := row.Scan(appointmentFields(&a)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

func scanDetail(row pgx.Row) (*AppointmentDetail, error) {
	var (
		d      AppointmentDetail
		doctor UserSummary
		owner  UserSummary
		pet    PetSummary
	)

	dest := appointmentFields(&d.Appointment)
	dest = append(dest,
		&doctor.ID, &doctor.Name, &doctor.Email, &doctor.Phone,
		&owner.ID, &owner.Name, &owner.Email, &owner.Phone,
		&pet.ID, &pet.Name, &pet.Species, &pet.Breed,
	)

	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	d.Doctor = &doctor
	d.Owner = &owner
	d.Pet = &pet
	return &d, nil
}

// Interface methods

func (r *PgRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, phone, role, created_at, updated_at
		FROM users
		WHERE id = $1
	`, id)
	return scanUser(row)
}

func (r *PgRepository) GetPetByID(ctx context.Context, id uuid.UUID) (*Pet, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, owner_id, name, species, breed, created_at, updated_at
		FROM pets
		WHERE id = $1
	`, id)
	return scanPet(row)
}

func (r *PgRepository) CreateAppointment(ctx context.Context, in NewAppointment) (*Appointment, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, doctor_id, owner_id, pet_id, appointment_date, appointment_time,
		                          appointment_type, charges, status, is_paid, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'Scheduled', false, now(), now())
		RETURNING `+appointmentColumns,
		id, in.DoctorID, in.OwnerID, in.PetID, in.AppointmentDate, in.AppointmentTime,
		in.AppointmentType, in.Charges,
	)

	return scanAppointment(row)
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	row := r.pool.QueryRow(ctx, detailSelect+` WHERE a.id = $1`, id)
	return scanDetail(row)
}

// UpdateAppointment is a compare-and-set on status: the row is only touched
// while it still carries the expected status.
func (r *PgRepository) UpdateAppointment(ctx context.Context, id uuid.UUID, expected Status, patch Patch) (*Appointment, error) {
	return updateAppointment(ctx, r.pool, id, expected, patch)
}

// CompleteAppointment runs the status write and the history insert in one
// transaction.
func (r *PgRepository) CompleteAppointment(ctx context.Context, id uuid.UUID, expected Status, patch Patch, rec history.Record) (*Appointment, *history.Record, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin completion: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	completed := StatusCompleted
	patch.Status = &completed

	appt, err := updateAppointment(ctx, tx, id, expected, patch)
	if err != nil {
		return nil, nil, err
	}

	written, err := history.InsertRecord(ctx, tx, rec)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit completion: %w", err)
	}
	return appt, written, nil
}

func updateAppointment(ctx context.Context, q history.Querier, id uuid.UUID, expected Status, patch Patch) (*Appointment, error) {
	sets := []string{"updated_at = now()"}
	args := []any{id, expected}

	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if patch.Status != nil {
		add("status", *patch.Status)
	}
	if patch.AppointmentDate != nil {
		add("appointment_date", *patch.AppointmentDate)
	}
	if patch.AppointmentTime != nil {
		add("appointment_time", *patch.AppointmentTime)
	}
	if patch.IsPaid != nil {
		add("is_paid", *patch.IsPaid)
	}
	if patch.Diagnosis != nil {
		add("diagnosis", *patch.Diagnosis)
	}
	if patch.Treatment != nil {
		add("treatment", *patch.Treatment)
	}
	if patch.Prescriptions != nil {
		add("prescriptions", *patch.Prescriptions)
	}

	row := q.QueryRow(ctx, `
		UPDATE appointments
		SET `+strings.Join(sets, ", ")+`
		WHERE id = $1
		  AND status = $2
		RETURNING `+appointmentColumns, args...)

	appt, err := scanAppointment(row)
	if errors.Is(err, ErrAppointmentNotFound) {
		var exists bool
		if qerr := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM appointments WHERE id = $1)`, id).Scan(&exists); qerr != nil {
			return nil, fmt.Errorf("check appointment exists: %w", qerr)
		}
		if exists {
			return nil, ErrStatusChanged
		}
		return nil, ErrAppointmentNotFound
	}
	return appt, err
}

func (r *PgRepository) ListAppointments(ctx context.Context, f Filter) ([]AppointmentDetail, error) {
	var (
		where []string
		args  []any
	)
	cond := func(expr string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(expr, len(args)))
	}
	if f.DoctorID != nil {
		cond("a.doctor_id = $%d", *f.DoctorID)
	}
	if f.OwnerID != nil {
		cond("a.owner_id = $%d", *f.OwnerID)
	}
	if f.PetID != nil {
		cond("a.pet_id = $%d", *f.PetID)
	}
	if f.Status != nil {
		cond("a.status = $%d", *f.Status)
	}

	var sb strings.Builder
	sb.WriteString(detailSelect)
	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	switch f.Order {
	case OrderNewest:
		sb.WriteString(" ORDER BY a.created_at DESC, a.id")
	default:
		sb.WriteString(" ORDER BY a.appointment_date ASC, a.appointment_time ASC, a.id")
	}
	if f.Limit > 0 {
		args = append(args, f.Limit, f.Offset)
		fmt.Fprintf(&sb, " LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AppointmentDetail
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
