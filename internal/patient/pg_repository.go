package patient

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient

	err := row.Scan(
		&p.ID,
		&p.FirstName,
		&p.LastName,
		&p.Email,
		&p.Phone,
		&p.Address,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	return &p, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, first_name, last_name, email, phone, address, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) FindByEmail(ctx context.Context, email string) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, first_name, last_name, email, phone, address, created_at, updated_at
		FROM patients
		WHERE lower(email) = lower($1)
		ORDER BY created_at
		LIMIT 1
	`, email)
	return scanPatient(row)
}

func (r *PgRepository) FindByPhone(ctx context.Context, phone string) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, first_name, last_name, email, phone, address, created_at, updated_at
		FROM patients
		WHERE regexp_replace(phone, '[ +-]', '', 'g') = $1
		ORDER BY created_at
		LIMIT 1
	`, NormalizePhone(phone))
	return scanPatient(row)
}

func (r *PgRepository) Create(ctx context.Context, p *Patient) (*Patient, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO patients (id, first_name, last_name, email, phone, address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		RETURNING id, first_name, last_name, email, phone, address, created_at, updated_at
	`, id, p.FirstName, p.LastName, p.Email, p.Phone, p.Address)

	return scanPatient(row)
}

func (r *PgRepository) Update(ctx context.Context, p *Patient) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE patients
		SET first_name = $2,
		    last_name  = $3,
		    email      = $4,
		    phone      = $5,
		    address    = $6,
		    updated_at = now()
		WHERE id = $1
		RETURNING id, first_name, last_name, email, phone, address, created_at, updated_at
	`, p.ID, p.FirstName, p.LastName, p.Email, p.Phone, p.Address)

	return scanPatient(row)
}
