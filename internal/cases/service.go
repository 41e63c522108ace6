package cases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Vetflow/internal/domain"
	"github.com/shaiso/Vetflow/internal/followup"
	"github.com/shaiso/Vetflow/internal/mq"
	"github.com/shaiso/Vetflow/internal/repo"
)

// Ошибки сервиса.
var (
	ErrSourceRequired = errors.New("source is required")
	ErrTextRequired   = errors.New("text is required for text mode")
	ErrDataRequired   = errors.New("data is required for structured mode")
	ErrUnknownMode    = errors.New("unknown input mode")
	ErrInvalidCaseID  = errors.New("invalid case id")
	ErrNoPhone        = errors.New("owner phone is not available")
)

// CaseStore — хранилище cases.
type CaseStore interface {
	Create(ctx context.Context, c *domain.Case) error
	GetByID(ctx context.Context, clinicID string, id uuid.UUID) (*domain.Case, error)
	UpdateEntities(ctx context.Context, id uuid.UUID, entities *domain.Entities) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.CaseStatus) error
}

// PatientStore — карточки пациентов клиники.
type PatientStore interface {
	GetByID(ctx context.Context, clinicID string, id uuid.UUID) (*domain.Patient, error)
	FindByNameAndPhone(ctx context.Context, clinicID, name, phone string) (*domain.Patient, error)
}

// SummaryStore — хранилище выписок.
type SummaryStore interface {
	Create(ctx context.Context, s *domain.DischargeSummary) error
	GetLatestByCase(ctx context.Context, caseID uuid.UUID) (*domain.DischargeSummary, error)
}

// EmailStore — хранилище запланированных писем.
type EmailStore interface {
	Create(ctx context.Context, e *domain.ScheduledEmail) error
	UpdateDelivery(ctx context.Context, e *domain.ScheduledEmail) error
}

// CallStore — хранилище запланированных звонков.
type CallStore interface {
	Create(ctx context.Context, c *domain.ScheduledCall) error
	UpdateDelivery(ctx context.Context, c *domain.ScheduledCall) error
}

// FollowUpPublisher ставит follow-ups в отложенную очередь.
type FollowUpPublisher interface {
	PublishEmailScheduled(ctx context.Context, payload mq.FollowUpPayload) error
	PublishCallScheduled(ctx context.Context, payload mq.FollowUpPayload) error
}

// SummaryArchiver сохраняет копию выписки во внешнем хранилище.
type SummaryArchiver interface {
	SaveSummary(ctx context.Context, s *domain.DischargeSummary) error
}

// Service — операции над cases для шагов discharge workflow.
type Service struct {
	cases     CaseStore
	patients  PatientStore
	summaries SummaryStore
	emails    EmailStore
	calls     CallStore
	publisher FollowUpPublisher
	archiver  SummaryArchiver
	planner   *followup.Planner
	logger    *slog.Logger
	now       func() time.Time
}

// Config — конфигурация Service.
type Config struct {
	Cases     CaseStore
	Patients  PatientStore
	Summaries SummaryStore
	Emails    EmailStore
	Calls     CallStore
	Publisher FollowUpPublisher // опционально
	Archiver  SummaryArchiver   // опционально
	Planner   *followup.Planner
	Logger    *slog.Logger
}

// New создаёт Service.
func New(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	planner := cfg.Planner
	if planner == nil {
		// конфигурация по умолчанию всегда валидна
		planner, _ = followup.New(followup.Config{})
	}

	return &Service{
		cases:     cfg.Cases,
		patients:  cfg.Patients,
		summaries: cfg.Summaries,
		emails:    cfg.Emails,
		calls:     cfg.Calls,
		publisher: cfg.Publisher,
		archiver:  cfg.Archiver,
		planner:   planner,
		logger:    logger,
		now:       time.Now,
	}
}

// Ingest создаёт case из сырых данных.
//
// Для text case сохраняется исходный текст, для structured — копия data.
// patientId из data связывает case с карточкой пациента.
func (s *Service) Ingest(ctx context.Context, actor domain.Actor, raw *domain.RawData) (*domain.Case, error) {
	if raw == nil {
		return nil, errors.New("raw data is required")
	}
	if strings.TrimSpace(raw.Source) == "" {
		return nil, ErrSourceRequired
	}

	now := s.now().UTC()
	c := &domain.Case{
		ID:        uuid.New(),
		ClinicID:  actor.ClinicID,
		Source:    raw.Source,
		Mode:      raw.Mode,
		Status:    domain.CaseStatusNew,
		CreatedBy: actor.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	switch raw.Mode {
	case domain.InputModeText:
		if strings.TrimSpace(raw.Text) == "" {
			return nil, ErrTextRequired
		}
		c.RawText = raw.Text
	case domain.InputModeStructured:
		if len(raw.Data) == 0 {
			return nil, ErrDataRequired
		}
		c.RawData = maps.Clone(raw.Data)
		if id, ok := patientIDFrom(raw.Data); ok {
			c.PatientID = &id
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, raw.Mode)
	}

	if err := s.cases.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create case: %w", err)
	}

	s.logger.Info("case created",
		"case_id", c.ID,
		"clinic_id", c.ClinicID,
		"source", c.Source,
		"mode", c.Mode,
	)
	return c, nil
}

// GetCaseWithEntities возвращает case клиники actor.
// Case чужой клиники не находится (repo.ErrNotFound).
func (s *Service) GetCaseWithEntities(ctx context.Context, actor domain.Actor, caseID uuid.UUID) (*domain.Case, error) {
	if caseID == uuid.Nil {
		return nil, ErrInvalidCaseID
	}
	c, err := s.cases.GetByID(ctx, actor.ClinicID, caseID)
	if err != nil {
		return nil, fmt.Errorf("get case %s: %w", caseID, err)
	}
	return c, nil
}

// EnrichEntitiesWithPatient дополняет пустые поля сущностей из карточки пациента.
//
// Пациент ищется по PatientID case, иначе по кличке и телефону владельца.
// Отсутствие карточки не ошибка: сущности возвращаются как есть.
func (s *Service) EnrichEntitiesWithPatient(ctx context.Context, actor domain.Actor, c *domain.Case) (*domain.Entities, error) {
	entities := &domain.Entities{}
	if c.Entities != nil {
		copied := *c.Entities
		entities = &copied
	}
	if s.patients == nil {
		return entities, nil
	}

	patient, err := s.findPatient(ctx, actor.ClinicID, c, entities)
	if errors.Is(err, repo.ErrNotFound) {
		return entities, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find patient: %w", err)
	}
	if patient == nil {
		return entities, nil
	}

	entities.Merge(entitiesFromPatient(patient, s.now()))
	return entities, nil
}

func (s *Service) findPatient(ctx context.Context, clinicID string, c *domain.Case, e *domain.Entities) (*domain.Patient, error) {
	if c.PatientID != nil {
		return s.patients.GetByID(ctx, clinicID, *c.PatientID)
	}
	if e.Patient.Name != "" && e.Owner.Phone != "" {
		return s.patients.FindByNameAndPhone(ctx, clinicID, e.Patient.Name, e.Owner.Phone)
	}
	return nil, nil
}

// SaveEntities сохраняет сущности и переводит case в EXTRACTED.
func (s *Service) SaveEntities(ctx context.Context, caseID uuid.UUID, entities *domain.Entities) error {
	if err := s.cases.UpdateEntities(ctx, caseID, entities); err != nil {
		return fmt.Errorf("update entities: %w", err)
	}
	return nil
}

// SaveSummary сохраняет выписку и переводит case в SUMMARIZED.
// Копия уходит в архив; ошибка архива не прерывает шаг.
func (s *Service) SaveSummary(ctx context.Context, summary *domain.DischargeSummary) error {
	if summary.ID == uuid.Nil {
		summary.ID = uuid.New()
	}
	if summary.CreatedAt.IsZero() {
		summary.CreatedAt = s.now().UTC()
	}

	if err := s.summaries.Create(ctx, summary); err != nil {
		return fmt.Errorf("create summary: %w", err)
	}

	if s.archiver != nil {
		if err := s.archiver.SaveSummary(ctx, summary); err != nil {
			s.logger.Warn("failed to archive summary",
				"case_id", summary.CaseID,
				"summary_id", summary.ID,
				"error", err,
			)
		}
	}
	return nil
}

// LatestSummary возвращает последнюю выписку case.
func (s *Service) LatestSummary(ctx context.Context, caseID uuid.UUID) (*domain.DischargeSummary, error) {
	return s.summaries.GetLatestByCase(ctx, caseID)
}

// ScheduleDischargeEmail сохраняет письмо, ставит его в отложенную очередь
// и закрывает case (DISCHARGED).
func (s *Service) ScheduleDischargeEmail(ctx context.Context, actor domain.Actor, email *domain.ScheduledEmail, delayDays int) (*domain.ScheduledEmail, error) {
	now := s.now().UTC()

	email.ID = uuid.New()
	if email.ClinicID == "" {
		email.ClinicID = actor.ClinicID
	}
	email.ScheduledFor = s.planner.EmailAt(now, delayDays)
	email.Status = domain.DeliveryStatusScheduled
	email.CreatedAt = now

	if err := s.emails.Create(ctx, email); err != nil {
		return nil, fmt.Errorf("create scheduled email: %w", err)
	}

	if s.publisher != nil {
		payload := mq.FollowUpPayload{ID: email.ID, CaseID: email.CaseID, ScheduledFor: email.ScheduledFor}
		if err := s.publisher.PublishEmailScheduled(ctx, payload); err != nil {
			// Без сообщения в очереди письмо никто не отправит
			email.MarkFailed(fmt.Sprintf("enqueue: %v", err))
			if uerr := s.emails.UpdateDelivery(ctx, email); uerr != nil {
				s.logger.Error("failed to mark email failed", "email_id", email.ID, "error", uerr)
			}
			return nil, fmt.Errorf("publish email: %w", err)
		}
	}

	if err := s.cases.UpdateStatus(ctx, email.CaseID, domain.CaseStatusDischarged); err != nil {
		s.logger.Warn("failed to mark case discharged", "case_id", email.CaseID, "error", err)
	}

	s.logger.Info("discharge email scheduled",
		"case_id", email.CaseID,
		"email_id", email.ID,
		"scheduled_for", email.ScheduledFor,
	)
	return email, nil
}

// ScheduleDischargeCall сохраняет звонок и ставит его в отложенную очередь.
//
// Задержка: opts.DelayDays, иначе рекомендованный контроль из сущностей,
// иначе значение планировщика по умолчанию.
func (s *Service) ScheduleDischargeCall(ctx context.Context, actor domain.Actor, c *domain.Case, opts domain.CallOptions) (*domain.ScheduledCall, error) {
	if c.Entities == nil || c.Entities.Owner.Phone == "" {
		return nil, ErrNoPhone
	}

	delayDays := opts.DelayDays
	if delayDays <= 0 {
		delayDays = c.Entities.Clinical.FollowUpDays
	}

	script := opts.Script
	if script == "" {
		script = DefaultCallScript(c.Entities)
	}

	now := s.now().UTC()
	call := &domain.ScheduledCall{
		ID:           uuid.New(),
		CaseID:       c.ID,
		ClinicID:     actor.ClinicID,
		Phone:        c.Entities.Owner.Phone,
		PatientName:  c.Entities.Patient.Name,
		OwnerName:    c.Entities.Owner.Name,
		Script:       script,
		ScheduledFor: s.planner.CallAt(now, delayDays),
		Status:       domain.DeliveryStatusScheduled,
		CreatedAt:    now,
	}

	if err := s.calls.Create(ctx, call); err != nil {
		return nil, fmt.Errorf("create scheduled call: %w", err)
	}

	if s.publisher != nil {
		payload := mq.FollowUpPayload{ID: call.ID, CaseID: call.CaseID, ScheduledFor: call.ScheduledFor}
		if err := s.publisher.PublishCallScheduled(ctx, payload); err != nil {
			call.MarkFailed(fmt.Sprintf("enqueue: %v", err))
			if uerr := s.calls.UpdateDelivery(ctx, call); uerr != nil {
				s.logger.Error("failed to mark call failed", "call_id", call.ID, "error", uerr)
			}
			return nil, fmt.Errorf("publish call: %w", err)
		}
	}

	s.logger.Info("discharge call scheduled",
		"case_id", call.CaseID,
		"call_id", call.ID,
		"scheduled_for", call.ScheduledFor,
	)
	return call, nil
}

// DefaultCallScript — текст звонка, если он не задан в options.
func DefaultCallScript(e *domain.Entities) string {
	patient := e.Patient.Name
	if patient == "" {
		patient = "your pet"
	}

	var b strings.Builder
	b.WriteString("Hello")
	if e.Owner.Name != "" {
		b.WriteString(", " + e.Owner.Name)
	}
	fmt.Fprintf(&b, ". We are calling to check how %s is doing after the recent visit.", patient)
	if len(e.Clinical.Medications) > 0 {
		b.WriteString(" Are the medications being given as prescribed?")
	}
	b.WriteString(" Do you have any questions for the veterinarian?")
	return b.String()
}

// patientIDFrom достаёт patientId из структурированных данных.
func patientIDFrom(data map[string]any) (uuid.UUID, bool) {
	raw, _ := data["patientId"].(string)
	if raw == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// entitiesFromPatient переводит карточку пациента в Entities.
func entitiesFromPatient(p *domain.Patient, now time.Time) *domain.Entities {
	e := &domain.Entities{
		Patient: domain.PatientInfo{
			Name:     p.Name,
			Species:  p.Species,
			Breed:    p.Breed,
			Sex:      p.Sex,
			WeightKg: p.WeightKg,
		},
		Owner: domain.OwnerInfo{
			Name:  p.OwnerName,
			Phone: p.OwnerPhone,
			Email: p.OwnerEmail,
		},
	}
	if p.BirthDate != nil {
		e.Patient.Age = ageString(*p.BirthDate, now)
	}
	return e
}

// ageString форматирует возраст: "3 years" или "5 months".
func ageString(birth, now time.Time) string {
	months := (now.Year()-birth.Year())*12 + int(now.Month()-birth.Month())
	if now.Day() < birth.Day() {
		months--
	}
	switch {
	case months < 0:
		return ""
	case months < 12:
		if months == 1 {
			return "1 month"
		}
		return fmt.Sprintf("%d months", months)
	case months < 24:
		return "1 year"
	default:
		return fmt.Sprintf("%d years", months/12)
	}
}
