package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRecorder struct {
	pool *pgxpool.Pool
}

func NewPgRecorder(pool *pgxpool.Pool) *PgRecorder {
	return &PgRecorder{pool: pool}
}

const recordColumns = `id, pet_id, doctor_id, appointment_id, visit_date, diagnosis, treatment, prescriptions, created_at`

func scanRecord(row pgx.Row) (*Record, error) {
	var r Record
	err := row.Scan(
		&r.ID,
		&r.PetID,
		&r.DoctorID,
		&r.AppointmentID,
		&r.VisitDate,
		&r.Diagnosis,
		&r.Treatment,
		&r.Prescriptions,
		&r.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &r, nil
}

// Querier is satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *PgRecorder) RecordCompletion(ctx context.Context, rec Record) (*Record, error) {
	return InsertRecord(ctx, r.pool, rec)
}

// InsertRecord upserts the history entry for rec.AppointmentID. An existing
// row keeps its id and created_at and takes the new notes.
func InsertRecord(ctx context.Context, q Querier, rec Record) (*Record, error) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.VisitDate.IsZero() {
		rec.VisitDate = time.Now()
	}

	row := q.QueryRow(ctx, `
		INSERT INTO medical_histories (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (appointment_id) DO UPDATE
		   SET visit_date    = EXCLUDED.visit_date,
		       diagnosis     = EXCLUDED.diagnosis,
		       treatment     = EXCLUDED.treatment,
		       prescriptions = EXCLUDED.prescriptions
		RETURNING `+recordColumns,
		rec.ID, rec.PetID, rec.DoctorID, rec.AppointmentID, rec.VisitDate,
		rec.Diagnosis, rec.Treatment, rec.Prescriptions,
	)

	out, err := scanRecord(row)
	if err != nil {
		return nil, fmt.Errorf("insert medical history: %w", err)
	}
	return out, nil
}

func (r *PgRecorder) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Record, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+recordColumns+`
		FROM medical_histories
		WHERE appointment_id = $1
	`, appointmentID)
	return scanRecord(row)
}

func (r *PgRecorder) ListByPet(ctx context.Context, petID uuid.UUID) ([]Record, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+recordColumns+`
		FROM medical_histories
		WHERE pet_id = $1
		ORDER BY visit_date DESC, created_at DESC
	`, petID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
