package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Vetflow/internal/domain"
)

// EmailRepo — репозиторий запланированных писем.
type EmailRepo struct {
	pool *pgxpool.Pool
}

// NewEmailRepo создаёт новый EmailRepo.
func NewEmailRepo(pool *pgxpool.Pool) *EmailRepo {
	return &EmailRepo{pool: pool}
}

const emailColumns = `id, case_id, clinic_id, recipient, subject, html, text,
	scheduled_for, status, sent_at, error, created_at`

// Create сохраняет запланированное письмо.
func (r *EmailRepo) Create(ctx context.Context, e *domain.ScheduledEmail) error {
	query := `
		INSERT INTO scheduled_emails (` + emailColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.pool.Exec(ctx, query,
		e.ID,
		e.CaseID,
		e.ClinicID,
		e.Recipient,
		e.Subject,
		e.HTML,
		nullString(e.Text),
		e.ScheduledFor,
		e.Status,
		e.SentAt,
		nullString(e.Error),
		e.CreatedAt,
	)
	if err != nil {
		return insertError("scheduled email", err)
	}
	return nil
}

// GetByID возвращает письмо по ID.
func (r *EmailRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ScheduledEmail, error) {
	query := `SELECT ` + emailColumns + ` FROM scheduled_emails WHERE id = $1`

	e, err := scanEmail(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

// ListDue возвращает SCHEDULED письма со сроком до before, самые старые первыми.
func (r *EmailRepo) ListDue(ctx context.Context, before time.Time, limit int) ([]domain.ScheduledEmail, error) {
	query := `
		SELECT ` + emailColumns + `
		FROM scheduled_emails
		WHERE status = 'SCHEDULED' AND scheduled_for <= $1
		ORDER BY scheduled_for ASC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, before, limit)
	if err != nil {
		return nil, fmt.Errorf("list due emails: %w", err)
	}
	defer rows.Close()

	var emails []domain.ScheduledEmail
	for rows.Next() {
		e, err := scanEmail(rows)
		if err != nil {
			return nil, err
		}
		emails = append(emails, *e)
	}
	return emails, rows.Err()
}

func scanEmail(row scanner) (*domain.ScheduledEmail, error) {
	var e domain.ScheduledEmail
	var text, errMsg *string
	err := row.Scan(
		&e.ID,
		&e.CaseID,
		&e.ClinicID,
		&e.Recipient,
		&e.Subject,
		&e.HTML,
		&text,
		&e.ScheduledFor,
		&e.Status,
		&e.SentAt,
		&errMsg,
		&e.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan scheduled email: %w", err)
	}
	e.Text = derefString(text)
	e.Error = derefString(errMsg)
	return &e, nil
}

// Claim захватывает письмо для отправки (SCHEDULED → SENDING).
// Если запись уже захвачена или обработана, возвращает ErrInvalidState.
func (r *EmailRepo) Claim(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE scheduled_emails
		SET status = 'SENDING'
		WHERE id = $1 AND status = 'SCHEDULED'
	`
	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("claim scheduled email: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}

// Release возвращает захваченную запись в SCHEDULED.
func (r *EmailRepo) Release(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE scheduled_emails
		SET status = 'SCHEDULED'
		WHERE id = $1 AND status = 'SENDING'
	`
	if _, err := r.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("release scheduled email: %w", err)
	}
	return nil
}

// UpdateDelivery сохраняет статус доставки письма.
func (r *EmailRepo) UpdateDelivery(ctx context.Context, e *domain.ScheduledEmail) error {
	query := `
		UPDATE scheduled_emails
		SET status = $2, sent_at = $3, error = $4
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query, e.ID, e.Status, e.SentAt, nullString(e.Error))
	if err != nil {
		return fmt.Errorf("update scheduled email: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CallRepo — репозиторий запланированных звонков.
type CallRepo struct {
	pool *pgxpool.Pool
}

// NewCallRepo создаёт новый CallRepo.
func NewCallRepo(pool *pgxpool.Pool) *CallRepo {
	return &CallRepo{pool: pool}
}

const callColumns = `id, case_id, clinic_id, phone, patient_name, owner_name, script,
	scheduled_for, status, provider_ref, placed_at, error, created_at`

// Create сохраняет запланированный звонок.
func (r *CallRepo) Create(ctx context.Context, c *domain.ScheduledCall) error {
	query := `
		INSERT INTO scheduled_calls (` + callColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.pool.Exec(ctx, query,
		c.ID,
		c.CaseID,
		c.ClinicID,
		c.Phone,
		nullString(c.PatientName),
		nullString(c.OwnerName),
		nullString(c.Script),
		c.ScheduledFor,
		c.Status,
		nullString(c.ProviderRef),
		c.PlacedAt,
		nullString(c.Error),
		c.CreatedAt,
	)
	if err != nil {
		return insertError("scheduled call", err)
	}
	return nil
}

// GetByID возвращает звонок по ID.
func (r *CallRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ScheduledCall, error) {
	query := `SELECT ` + callColumns + ` FROM scheduled_calls WHERE id = $1`

	c, err := scanCall(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

// ListDue возвращает SCHEDULED звонки со сроком до before.
func (r *CallRepo) ListDue(ctx context.Context, before time.Time, limit int) ([]domain.ScheduledCall, error) {
	query := `
		SELECT ` + callColumns + `
		FROM scheduled_calls
		WHERE status = 'SCHEDULED' AND scheduled_for <= $1
		ORDER BY scheduled_for ASC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, before, limit)
	if err != nil {
		return nil, fmt.Errorf("list due calls: %w", err)
	}
	defer rows.Close()

	var calls []domain.ScheduledCall
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		calls = append(calls, *c)
	}
	return calls, rows.Err()
}

func scanCall(row scanner) (*domain.ScheduledCall, error) {
	var c domain.ScheduledCall
	var patientName, ownerName, script, ref, errMsg *string
	err := row.Scan(
		&c.ID,
		&c.CaseID,
		&c.ClinicID,
		&c.Phone,
		&patientName,
		&ownerName,
		&script,
		&c.ScheduledFor,
		&c.Status,
		&ref,
		&c.PlacedAt,
		&errMsg,
		&c.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan scheduled call: %w", err)
	}
	c.PatientName = derefString(patientName)
	c.OwnerName = derefString(ownerName)
	c.Script = derefString(script)
	c.ProviderRef = derefString(ref)
	c.Error = derefString(errMsg)
	return &c, nil
}

// Claim захватывает звонок для отправки (SCHEDULED → SENDING).
// Если запись уже захвачена или обработана, возвращает ErrInvalidState.
func (r *CallRepo) Claim(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE scheduled_calls
		SET status = 'SENDING'
		WHERE id = $1 AND status = 'SCHEDULED'
	`
	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("claim scheduled call: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}

// Release возвращает захваченную запись в SCHEDULED.
func (r *CallRepo) Release(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE scheduled_calls
		SET status = 'SCHEDULED'
		WHERE id = $1 AND status = 'SENDING'
	`
	if _, err := r.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("release scheduled call: %w", err)
	}
	return nil
}

// UpdateDelivery сохраняет статус звонка.
func (r *CallRepo) UpdateDelivery(ctx context.Context, c *domain.ScheduledCall) error {
	query := `
		UPDATE scheduled_calls
		SET status = $2, provider_ref = $3, placed_at = $4, error = $5
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query, c.ID, c.Status, nullString(c.ProviderRef), c.PlacedAt, nullString(c.Error))
	if err != nil {
		return fmt.Errorf("update scheduled call: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
