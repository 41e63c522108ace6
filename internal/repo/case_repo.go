package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Vetflow/internal/domain"
)

// CaseRepo — репозиторий для работы с cases.
type CaseRepo struct {
	pool *pgxpool.Pool
}

// NewCaseRepo создаёт новый CaseRepo.
func NewCaseRepo(pool *pgxpool.Pool) *CaseRepo {
	return &CaseRepo{pool: pool}
}

const caseColumns = `id, clinic_id, patient_id, source, mode, raw_text, raw_data,
	status, entities, created_by, created_at, updated_at`

// Create создаёт новый case.
func (r *CaseRepo) Create(ctx context.Context, c *domain.Case) error {
	rawJSON, err := marshalNullable(c.RawData)
	if err != nil {
		return fmt.Errorf("marshal raw data: %w", err)
	}
	entitiesJSON, err := marshalNullable(c.Entities)
	if err != nil {
		return fmt.Errorf("marshal entities: %w", err)
	}

	query := `
		INSERT INTO cases (` + caseColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = r.pool.Exec(ctx, query,
		c.ID,
		c.ClinicID,
		nullUUID(c.PatientID),
		c.Source,
		c.Mode,
		nullString(c.RawText),
		rawJSON,
		c.Status,
		entitiesJSON,
		c.CreatedBy,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		return insertError("case", err)
	}
	return nil
}

// GetByID возвращает case клиники по ID.
// Case другой клиники считается ненайденным.
func (r *CaseRepo) GetByID(ctx context.Context, clinicID string, id uuid.UUID) (*domain.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE id = $1 AND clinic_id = $2`
	return scanCase(r.pool.QueryRow(ctx, query, id, clinicID))
}

// UpdateEntities сохраняет сущности и переводит case в EXTRACTED.
// Case, ушедший дальше EXTRACTED, сохраняет свой статус.
func (r *CaseRepo) UpdateEntities(ctx context.Context, id uuid.UUID, entities *domain.Entities) error {
	entitiesJSON, err := json.Marshal(entities)
	if err != nil {
		return fmt.Errorf("marshal entities: %w", err)
	}

	query := `
		UPDATE cases
		SET entities = $2,
		    status = CASE WHEN status::text = ANY($4) THEN $3 ELSE status END,
		    updated_at = now()
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query, id, entitiesJSON, domain.CaseStatusExtracted, advanceArgs(domain.CaseStatusExtracted))
	if err != nil {
		return fmt.Errorf("update case entities: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStatus переводит case в status, если переход не откатывает его назад.
func (r *CaseRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.CaseStatus) error {
	query := `
		UPDATE cases
		SET status = CASE WHEN status::text = ANY($3) THEN $2 ELSE status END,
		    updated_at = now()
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query, id, status, advanceArgs(status))
	if err != nil {
		return fmt.Errorf("update case status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListAwaitingSummary возвращает cases в статусе EXTRACTED без выписки
// и без запланированных follow-ups.
// Пустой clinicID — все клиники.
func (r *CaseRepo) ListAwaitingSummary(ctx context.Context, clinicID string, limit int) ([]domain.Case, error) {
	query := `
		SELECT ` + caseColumns + `
		FROM cases c
		WHERE c.status = 'EXTRACTED'
		  AND ($1 = '' OR c.clinic_id = $1)
		  AND NOT EXISTS (SELECT 1 FROM discharge_summaries s WHERE s.case_id = c.id)
		  AND NOT EXISTS (SELECT 1 FROM scheduled_emails e WHERE e.case_id = c.id)
		  AND NOT EXISTS (SELECT 1 FROM scheduled_calls k WHERE k.case_id = c.id)
		ORDER BY c.updated_at ASC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, clinicID, limit)
	if err != nil {
		return nil, fmt.Errorf("list cases awaiting summary: %w", err)
	}
	defer rows.Close()

	var cases []domain.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		cases = append(cases, *c)
	}
	return cases, rows.Err()
}

// scanCase сканирует строку в Case.
func scanCase(row scanner) (*domain.Case, error) {
	var c domain.Case
	var rawText *string
	var rawJSON, entitiesJSON []byte

	err := row.Scan(
		&c.ID,
		&c.ClinicID,
		&c.PatientID,
		&c.Source,
		&c.Mode,
		&rawText,
		&rawJSON,
		&c.Status,
		&entitiesJSON,
		&c.CreatedBy,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan case: %w", err)
	}

	c.RawText = derefString(rawText)
	if rawJSON != nil {
		if err := json.Unmarshal(rawJSON, &c.RawData); err != nil {
			return nil, fmt.Errorf("unmarshal raw data: %w", err)
		}
	}
	if entitiesJSON != nil {
		c.Entities = &domain.Entities{}
		if err := json.Unmarshal(entitiesJSON, c.Entities); err != nil {
			return nil, fmt.Errorf("unmarshal entities: %w", err)
		}
	}

	return &c, nil
}

// marshalNullable сериализует значение в JSON, nil остаётся NULL.
func marshalNullable[T any](v T) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(b) == "null" {
		return nil, nil
	}
	return b, nil
}
