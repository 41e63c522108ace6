package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Vetflow/internal/domain"
)

// PatientRepo — репозиторий карточек пациентов.
type PatientRepo struct {
	pool *pgxpool.Pool
}

// NewPatientRepo создаёт новый PatientRepo.
func NewPatientRepo(pool *pgxpool.Pool) *PatientRepo {
	return &PatientRepo{pool: pool}
}

const patientColumns = `id, clinic_id, name, species, breed, sex, birth_date, weight_kg,
	owner_name, owner_phone, owner_email`

// GetByID возвращает пациента клиники по ID.
func (r *PatientRepo) GetByID(ctx context.Context, clinicID string, id uuid.UUID) (*domain.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE id = $1 AND clinic_id = $2`
	return scanPatient(r.pool.QueryRow(ctx, query, id, clinicID))
}

// FindByNameAndPhone ищет пациента по кличке и телефону владельца.
func (r *PatientRepo) FindByNameAndPhone(ctx context.Context, clinicID, name, phone string) (*domain.Patient, error) {
	query := `
		SELECT ` + patientColumns + `
		FROM patients
		WHERE clinic_id = $1 AND lower(name) = lower($2) AND owner_phone = $3
		ORDER BY created_at DESC
		LIMIT 1
	`
	return scanPatient(r.pool.QueryRow(ctx, query, clinicID, name, phone))
}

// Create создаёт карточку пациента.
func (r *PatientRepo) Create(ctx context.Context, p *domain.Patient) error {
	query := `
		INSERT INTO patients (` + patientColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.pool.Exec(ctx, query,
		p.ID,
		p.ClinicID,
		p.Name,
		p.Species,
		nullString(p.Breed),
		nullString(p.Sex),
		p.BirthDate,
		p.WeightKg,
		p.OwnerName,
		nullString(p.OwnerPhone),
		nullString(p.OwnerEmail),
	)
	if err != nil {
		return insertError("patient", err)
	}
	return nil
}

// scanPatient сканирует строку в Patient.
func scanPatient(row scanner) (*domain.Patient, error) {
	var p domain.Patient
	var breed, sex, phone, email *string

	err := row.Scan(
		&p.ID,
		&p.ClinicID,
		&p.Name,
		&p.Species,
		&breed,
		&sex,
		&p.BirthDate,
		&p.WeightKg,
		&p.OwnerName,
		&phone,
		&email,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan patient: %w", err)
	}

	p.Breed = derefString(breed)
	p.Sex = derefString(sex)
	p.OwnerPhone = derefString(phone)
	p.OwnerEmail = derefString(email)
	return &p, nil
}
