package cases

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Vetflow/internal/domain"
	"github.com/shaiso/Vetflow/internal/followup"
	"github.com/shaiso/Vetflow/internal/mq"
	"github.com/shaiso/Vetflow/internal/repo"
)

// --- fakes ---

type fakeCases struct {
	mu       sync.Mutex
	items    map[uuid.UUID]*domain.Case
	statuses map[uuid.UUID]domain.CaseStatus
}

func newFakeCases() *fakeCases {
	return &fakeCases{items: map[uuid.UUID]*domain.Case{}, statuses: map[uuid.UUID]domain.CaseStatus{}}
}

func (f *fakeCases) Create(_ context.Context, c *domain.Case) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *c
	f.items[c.ID] = &cp
	return nil
}

func (f *fakeCases) GetByID(_ context.Context, clinicID string, id uuid.UUID) (*domain.Case, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.items[id]
	if !ok || c.ClinicID != clinicID {
		return nil, repo.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCases) UpdateEntities(_ context.Context, id uuid.UUID, e *domain.Entities) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.items[id]
	if !ok {
		return repo.ErrNotFound
	}
	c.Entities = e
	if domain.CaseStatusExtracted.CanAdvance(c.Status) {
		c.Status = domain.CaseStatusExtracted
	}
	return nil
}

func (f *fakeCases) UpdateStatus(_ context.Context, id uuid.UUID, status domain.CaseStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = status
	return nil
}

type fakePatients struct {
	byID  map[uuid.UUID]*domain.Patient
	calls int
}

func (f *fakePatients) GetByID(_ context.Context, clinicID string, id uuid.UUID) (*domain.Patient, error) {
	f.calls++
	p, ok := f.byID[id]
	if !ok || p.ClinicID != clinicID {
		return nil, repo.ErrNotFound
	}
	return p, nil
}

func (f *fakePatients) FindByNameAndPhone(_ context.Context, clinicID, name, phone string) (*domain.Patient, error) {
	f.calls++
	for _, p := range f.byID {
		if p.ClinicID == clinicID && p.Name == name && p.OwnerPhone == phone {
			return p, nil
		}
	}
	return nil, repo.ErrNotFound
}

type fakeSummaries struct {
	created []*domain.DischargeSummary
}

func (f *fakeSummaries) Create(_ context.Context, s *domain.DischargeSummary) error {
	f.created = append(f.created, s)
	return nil
}

func (f *fakeSummaries) GetLatestByCase(_ context.Context, caseID uuid.UUID) (*domain.DischargeSummary, error) {
	for i := len(f.created) - 1; i >= 0; i-- {
		if f.created[i].CaseID == caseID {
			return f.created[i], nil
		}
	}
	return nil, repo.ErrNotFound
}

type fakeEmails struct {
	created []*domain.ScheduledEmail
	updated []*domain.ScheduledEmail
}

func (f *fakeEmails) Create(_ context.Context, e *domain.ScheduledEmail) error {
	f.created = append(f.created, e)
	return nil
}

func (f *fakeEmails) UpdateDelivery(_ context.Context, e *domain.ScheduledEmail) error {
	f.updated = append(f.updated, e)
	return nil
}

type fakeCalls struct {
	created []*domain.ScheduledCall
	updated []*domain.ScheduledCall
}

func (f *fakeCalls) Create(_ context.Context, c *domain.ScheduledCall) error {
	f.created = append(f.created, c)
	return nil
}

func (f *fakeCalls) UpdateDelivery(_ context.Context, c *domain.ScheduledCall) error {
	f.updated = append(f.updated, c)
	return nil
}

type fakePublisher struct {
	emails []mq.FollowUpPayload
	calls  []mq.FollowUpPayload
	err    error
}

func (f *fakePublisher) PublishEmailScheduled(_ context.Context, p mq.FollowUpPayload) error {
	if f.err != nil {
		return f.err
	}
	f.emails = append(f.emails, p)
	return nil
}

func (f *fakePublisher) PublishCallScheduled(_ context.Context, p mq.FollowUpPayload) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, p)
	return nil
}

type fakeArchiver struct {
	err   error
	saved int
}

func (f *fakeArchiver) SaveSummary(context.Context, *domain.DischargeSummary) error {
	f.saved++
	return f.err
}

type fixture struct {
	svc       *Service
	cases     *fakeCases
	patients  *fakePatients
	summaries *fakeSummaries
	emails    *fakeEmails
	calls     *fakeCalls
	publisher *fakePublisher
	archiver  *fakeArchiver
}

var (
	actor    = domain.Actor{UserID: "vet-1", ClinicID: "clinic-1"}
	fixedNow = time.Date(2026, 3, 3, 14, 7, 0, 0, time.UTC) // вторник
)

func newFixture(t *testing.T) *fixture {
	t.Helper()

	planner, err := followup.New(followup.Config{})
	require.NoError(t, err)

	f := &fixture{
		cases:     newFakeCases(),
		patients:  &fakePatients{byID: map[uuid.UUID]*domain.Patient{}},
		summaries: &fakeSummaries{},
		emails:    &fakeEmails{},
		calls:     &fakeCalls{},
		publisher: &fakePublisher{},
		archiver:  &fakeArchiver{},
	}
	f.svc = New(Config{
		Cases:     f.cases,
		Patients:  f.patients,
		Summaries: f.summaries,
		Emails:    f.emails,
		Calls:     f.calls,
		Publisher: f.publisher,
		Archiver:  f.archiver,
		Planner:   planner,
	})
	f.svc.now = func() time.Time { return fixedNow }
	return f
}

// --- Ingest ---

func TestIngest_Text(t *testing.T) {
	f := newFixture(t)

	c, err := f.svc.Ingest(context.Background(), actor, &domain.RawData{
		Mode:   domain.InputModeText,
		Source: "transcript",
		Text:   "Rex, 4yo lab, ate a sock.",
	})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, c.ID)
	assert.Equal(t, domain.CaseStatusNew, c.Status)
	assert.Equal(t, "clinic-1", c.ClinicID)
	assert.Equal(t, "vet-1", c.CreatedBy)
	assert.Equal(t, "Rex, 4yo lab, ate a sock.", c.RawText)
	assert.Nil(t, c.RawData)
	assert.Contains(t, f.cases.items, c.ID)
}

func TestIngest_StructuredCopiesDataAndLinksPatient(t *testing.T) {
	f := newFixture(t)
	patientID := uuid.New()
	data := map[string]any{"patientName": "Rex", "patientId": patientID.String()}

	c, err := f.svc.Ingest(context.Background(), actor, &domain.RawData{
		Mode:   domain.InputModeStructured,
		Source: "pims",
		Data:   data,
	})
	require.NoError(t, err)

	require.NotNil(t, c.PatientID)
	assert.Equal(t, patientID, *c.PatientID)

	data["patientName"] = "Changed"
	assert.Equal(t, "Rex", c.RawData["patientName"])
}

func TestIngest_Validation(t *testing.T) {
	tests := []struct {
		name string
		raw  *domain.RawData
		want error
	}{
		{"no source", &domain.RawData{Mode: domain.InputModeText, Text: "x"}, ErrSourceRequired},
		{"empty text", &domain.RawData{Mode: domain.InputModeText, Source: "s", Text: "  "}, ErrTextRequired},
		{"empty data", &domain.RawData{Mode: domain.InputModeStructured, Source: "s"}, ErrDataRequired},
		{"bad mode", &domain.RawData{Mode: "audio", Source: "s"}, ErrUnknownMode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.Ingest(context.Background(), actor, tt.raw)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, f.cases.items)
		})
	}
}

// --- GetCaseWithEntities ---

func TestGetCaseWithEntities_OtherClinicIsNotFound(t *testing.T) {
	f := newFixture(t)
	c, err := f.svc.Ingest(context.Background(), actor, &domain.RawData{Mode: domain.InputModeText, Source: "s", Text: "x"})
	require.NoError(t, err)

	_, err = f.svc.GetCaseWithEntities(context.Background(), domain.Actor{ClinicID: "clinic-2"}, c.ID)
	assert.ErrorIs(t, err, repo.ErrNotFound)

	_, err = f.svc.GetCaseWithEntities(context.Background(), actor, uuid.Nil)
	assert.ErrorIs(t, err, ErrInvalidCaseID)
}

// --- EnrichEntitiesWithPatient ---

func TestEnrich_ByPatientID(t *testing.T) {
	f := newFixture(t)
	birth := time.Date(2022, 1, 10, 0, 0, 0, 0, time.UTC)
	p := &domain.Patient{
		ID: uuid.New(), ClinicID: "clinic-1", Name: "Rex", Species: "dog", BirthDate: &birth,
		OwnerName: "Anna", OwnerPhone: "+15550100", OwnerEmail: "anna@example.com",
	}
	f.patients.byID[p.ID] = p

	c := &domain.Case{
		ID:        uuid.New(),
		PatientID: &p.ID,
		Entities:  &domain.Entities{Patient: domain.PatientInfo{Name: "Rexy"}},
	}

	got, err := f.svc.EnrichEntitiesWithPatient(context.Background(), actor, c)
	require.NoError(t, err)

	assert.Equal(t, "Rexy", got.Patient.Name) // непустые поля не перетираются
	assert.Equal(t, "dog", got.Patient.Species)
	assert.Equal(t, "4 years", got.Patient.Age)
	assert.Equal(t, "anna@example.com", got.Owner.Email)

	// Исходные сущности case не меняются
	assert.Empty(t, c.Entities.Owner.Email)
}

func TestEnrich_ByNameAndPhone(t *testing.T) {
	f := newFixture(t)
	p := &domain.Patient{ID: uuid.New(), ClinicID: "clinic-1", Name: "Mia", OwnerPhone: "+1555", OwnerEmail: "o@example.com"}
	f.patients.byID[p.ID] = p

	c := &domain.Case{Entities: &domain.Entities{
		Patient: domain.PatientInfo{Name: "Mia"},
		Owner:   domain.OwnerInfo{Phone: "+1555"},
	}}

	got, err := f.svc.EnrichEntitiesWithPatient(context.Background(), actor, c)
	require.NoError(t, err)
	assert.Equal(t, "o@example.com", got.Owner.Email)
}

func TestEnrich_NoMatchIsNotAnError(t *testing.T) {
	f := newFixture(t)

	// Нет ключей для поиска — карточка не запрашивается
	got, err := f.svc.EnrichEntitiesWithPatient(context.Background(), actor, &domain.Case{})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Zero(t, f.patients.calls)

	missing := uuid.New()
	got, err = f.svc.EnrichEntitiesWithPatient(context.Background(), actor, &domain.Case{PatientID: &missing})
	require.NoError(t, err)
	assert.Equal(t, domain.Entities{}, *got)
}

// --- summaries ---

func TestSaveSummary_ArchiveFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.archiver.err = errors.New("bucket down")

	s := &domain.DischargeSummary{CaseID: uuid.New(), Content: "ok"}
	require.NoError(t, f.svc.SaveSummary(context.Background(), s))

	assert.NotEqual(t, uuid.Nil, s.ID)
	assert.Equal(t, fixedNow, s.CreatedAt)
	assert.Equal(t, 1, f.archiver.saved)

	latest, err := f.svc.LatestSummary(context.Background(), s.CaseID)
	require.NoError(t, err)
	assert.Equal(t, "ok", latest.Content)
}

// --- follow-ups ---

func TestScheduleDischargeEmail(t *testing.T) {
	f := newFixture(t)
	caseID := uuid.New()

	email, err := f.svc.ScheduleDischargeEmail(context.Background(), actor, &domain.ScheduledEmail{
		CaseID:    caseID,
		Recipient: "anna@example.com",
		Subject:   "Rex discharge",
		HTML:      "<p>hi</p>",
	}, 0)
	require.NoError(t, err)

	assert.Equal(t, domain.DeliveryStatusScheduled, email.Status)
	assert.Equal(t, "clinic-1", email.ClinicID)
	// +2 дня, ближайший слот окна
	assert.Equal(t, time.Date(2026, 3, 5, 14, 15, 0, 0, time.UTC), email.ScheduledFor)

	require.Len(t, f.publisher.emails, 1)
	assert.Equal(t, email.ID, f.publisher.emails[0].ID)
	assert.Equal(t, caseID, f.publisher.emails[0].CaseID)
	assert.Equal(t, domain.CaseStatusDischarged, f.cases.statuses[caseID])
}

func TestScheduleDischargeEmail_PublishFailureMarksEmailFailed(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("amqp down")

	_, err := f.svc.ScheduleDischargeEmail(context.Background(), actor, &domain.ScheduledEmail{CaseID: uuid.New()}, 1)
	require.Error(t, err)

	require.Len(t, f.emails.updated, 1)
	assert.Equal(t, domain.DeliveryStatusFailed, f.emails.updated[0].Status)
	assert.Contains(t, f.emails.updated[0].Error, "amqp down")
}

func TestScheduleDischargeCall(t *testing.T) {
	f := newFixture(t)
	c := &domain.Case{
		ID: uuid.New(),
		Entities: &domain.Entities{
			Patient:  domain.PatientInfo{Name: "Rex"},
			Owner:    domain.OwnerInfo{Name: "Anna", Phone: "+15550100"},
			Clinical: domain.ClinicalInfo{FollowUpDays: 7},
		},
	}

	call, err := f.svc.ScheduleDischargeCall(context.Background(), actor, c, domain.CallOptions{})
	require.NoError(t, err)

	assert.Equal(t, "+15550100", call.Phone)
	assert.Equal(t, "Rex", call.PatientName)
	assert.Contains(t, call.Script, "Anna")
	assert.Contains(t, call.Script, "Rex")
	// FollowUpDays из сущностей: вторник + 7 = вторник
	assert.Equal(t, time.Date(2026, 3, 10, 14, 15, 0, 0, time.UTC), call.ScheduledFor)
	require.Len(t, f.publisher.calls, 1)
}

func TestScheduleDischargeCall_OptionsWin(t *testing.T) {
	f := newFixture(t)
	c := &domain.Case{
		ID: uuid.New(),
		Entities: &domain.Entities{
			Owner:    domain.OwnerInfo{Phone: "+1"},
			Clinical: domain.ClinicalInfo{FollowUpDays: 7},
		},
	}

	call, err := f.svc.ScheduleDischargeCall(context.Background(), actor, c, domain.CallOptions{DelayDays: 1, Script: "custom"})
	require.NoError(t, err)
	assert.Equal(t, "custom", call.Script)
	assert.Equal(t, time.Date(2026, 3, 4, 14, 15, 0, 0, time.UTC), call.ScheduledFor)
}

func TestScheduleDischargeCall_NoPhone(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ScheduleDischargeCall(context.Background(), actor, &domain.Case{ID: uuid.New()}, domain.CallOptions{})
	assert.ErrorIs(t, err, ErrNoPhone)
	assert.Empty(t, f.calls.created)
}

func TestDefaultCallScript(t *testing.T) {
	got := DefaultCallScript(&domain.Entities{})
	assert.Equal(t, "Hello. We are calling to check how your pet is doing after the recent visit. Do you have any questions for the veterinarian?", got)

	got = DefaultCallScript(&domain.Entities{
		Patient:  domain.PatientInfo{Name: "Rex"},
		Clinical: domain.ClinicalInfo{Medications: []domain.Medication{{Name: "Carprofen"}}},
	})
	assert.Contains(t, got, "how Rex is doing")
	assert.Contains(t, got, "medications")
}

func TestAgeString(t *testing.T) {
	now := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "5 months", ageString(time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC), now))
	assert.Equal(t, "1 month", ageString(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), now))
	assert.Equal(t, "1 year", ageString(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), now))
	assert.Equal(t, "3 years", ageString(time.Date(2022, 12, 1, 0, 0, 0, 0, time.UTC), now))
	assert.Equal(t, "", ageString(time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC), now))
}
