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

// SummaryRepo — репозиторий выписок.
type SummaryRepo struct {
	pool *pgxpool.Pool
}

// NewSummaryRepo создаёт новый SummaryRepo.
func NewSummaryRepo(pool *pgxpool.Pool) *SummaryRepo {
	return &SummaryRepo{pool: pool}
}

// Create сохраняет выписку и переводит case в SUMMARIZED в одной транзакции.
func (r *SummaryRepo) Create(ctx context.Context, s *domain.DischargeSummary) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO discharge_summaries (id, case_id, content, model, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, s.ID, s.CaseID, s.Content, nullString(s.Model), s.CreatedAt)
	if err != nil {
		return insertError("summary", err)
	}

	result, err := tx.Exec(ctx, `
		UPDATE cases
		SET status = CASE WHEN status::text = ANY($3) THEN $2 ELSE status END,
		    updated_at = now()
		WHERE id = $1
	`, s.CaseID, domain.CaseStatusSummarized, advanceArgs(domain.CaseStatusSummarized))
	if err != nil {
		return fmt.Errorf("update case status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetLatestByCase возвращает последнюю выписку case.
func (r *SummaryRepo) GetLatestByCase(ctx context.Context, caseID uuid.UUID) (*domain.DischargeSummary, error) {
	query := `
		SELECT id, case_id, content, model, created_at
		FROM discharge_summaries
		WHERE case_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	var s domain.DischargeSummary
	var model *string
	err := r.pool.QueryRow(ctx, query, caseID).Scan(&s.ID, &s.CaseID, &s.Content, &model, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan summary: %w", err)
	}
	s.Model = derefString(model)
	return &s, nil
}
