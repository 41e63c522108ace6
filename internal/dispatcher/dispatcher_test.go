package dispatcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Vetflow/internal/domain"
	"github.com/shaiso/Vetflow/internal/mq"
	"github.com/shaiso/Vetflow/internal/repo"
)

// --- fakes ---

type fakeEmails struct {
	mu      sync.Mutex
	items   map[uuid.UUID]*domain.ScheduledEmail
	updates int
}

func newFakeEmails(items ...*domain.ScheduledEmail) *fakeEmails {
	f := &fakeEmails{items: map[uuid.UUID]*domain.ScheduledEmail{}}
	for _, e := range items {
		f.items[e.ID] = e
	}
	return f
}

func (f *fakeEmails) GetByID(_ context.Context, id uuid.UUID) (*domain.ScheduledEmail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.items[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (f *fakeEmails) Claim(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.items[id]
	if !ok || e.Status != domain.DeliveryStatusScheduled {
		return repo.ErrInvalidState
	}
	e.Status = domain.DeliveryStatusSending
	return nil
}

func (f *fakeEmails) Release(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.items[id]; ok && e.Status == domain.DeliveryStatusSending {
		e.Status = domain.DeliveryStatusScheduled
	}
	return nil
}

func (f *fakeEmails) UpdateDelivery(_ context.Context, e *domain.ScheduledEmail) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *e
	f.items[e.ID] = &cp
	f.updates++
	return nil
}

func (f *fakeEmails) ListDue(_ context.Context, before time.Time, limit int) ([]domain.ScheduledEmail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ScheduledEmail
	for _, e := range f.items {
		if e.Status == domain.DeliveryStatusScheduled && !e.ScheduledFor.After(before) && len(out) < limit {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (f *fakeEmails) get(id uuid.UUID) *domain.ScheduledEmail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[id]
}

type fakeCalls struct {
	mu    sync.Mutex
	items map[uuid.UUID]*domain.ScheduledCall
}

func newFakeCalls(items ...*domain.ScheduledCall) *fakeCalls {
	f := &fakeCalls{items: map[uuid.UUID]*domain.ScheduledCall{}}
	for _, c := range items {
		f.items[c.ID] = c
	}
	return f
}

func (f *fakeCalls) GetByID(_ context.Context, id uuid.UUID) (*domain.ScheduledCall, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.items[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCalls) Claim(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.items[id]
	if !ok || c.Status != domain.DeliveryStatusScheduled {
		return repo.ErrInvalidState
	}
	c.Status = domain.DeliveryStatusSending
	return nil
}

func (f *fakeCalls) Release(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.items[id]; ok && c.Status == domain.DeliveryStatusSending {
		c.Status = domain.DeliveryStatusScheduled
	}
	return nil
}

func (f *fakeCalls) UpdateDelivery(_ context.Context, c *domain.ScheduledCall) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *c
	f.items[c.ID] = &cp
	return nil
}

func (f *fakeCalls) ListDue(_ context.Context, before time.Time, limit int) ([]domain.ScheduledCall, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ScheduledCall
	for _, c := range f.items {
		if c.Status == domain.DeliveryStatusScheduled && !c.ScheduledFor.After(before) && len(out) < limit {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeCalls) get(id uuid.UUID) *domain.ScheduledCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[id]
}

type fakeRepublisher struct {
	emails []mq.FollowUpPayload
	calls  []mq.FollowUpPayload
}

func (f *fakeRepublisher) PublishEmailScheduled(_ context.Context, p mq.FollowUpPayload) error {
	f.emails = append(f.emails, p)
	return nil
}

func (f *fakeRepublisher) PublishCallScheduled(_ context.Context, p mq.FollowUpPayload) error {
	f.calls = append(f.calls, p)
	return nil
}

var testNow = time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)

func newTestDispatcher(emails EmailStore, calls CallStore, sender EmailSender, placer CallPlacer, pub Republisher) *Dispatcher {
	d := New(Config{
		Emails:    emails,
		Calls:     calls,
		Sender:    sender,
		Placer:    placer,
		Publisher: pub,
		Retry:     RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
	})
	d.now = func() time.Time { return testNow }
	return d
}

func scheduledEmail() *domain.ScheduledEmail {
	return &domain.ScheduledEmail{
		ID:           uuid.New(),
		CaseID:       uuid.New(),
		ClinicID:     "clinic-1",
		Recipient:    "anna@example.com",
		Subject:      "Rex discharge",
		HTML:         "<p>Rest</p>",
		ScheduledFor: testNow.Add(-time.Minute),
		Status:       domain.DeliveryStatusScheduled,
	}
}

func scheduledCall() *domain.ScheduledCall {
	return &domain.ScheduledCall{
		ID:           uuid.New(),
		CaseID:       uuid.New(),
		ClinicID:     "clinic-1",
		Phone:        "+15550100",
		PatientName:  "Rex",
		OwnerName:    "Anna",
		Script:       "Check on Rex",
		ScheduledFor: testNow.Add(-time.Minute),
		Status:       domain.DeliveryStatusScheduled,
	}
}

func delivery(t mq.MessageType, id, caseID uuid.UUID, at time.Time) *mq.Delivery {
	return &mq.Delivery{Message: mq.Message{
		ID:      uuid.NewString(),
		Type:    t,
		Payload: mq.FollowUpPayload{ID: id, CaseID: caseID, ScheduledFor: at},
	}}
}

// blockingSender держит Send до закрытия release.
type blockingSender struct {
	entered chan struct{}
	release chan struct{}
	sends   atomic.Int32
}

func newBlockingSender() *blockingSender {
	return &blockingSender{entered: make(chan struct{}, 4), release: make(chan struct{})}
}

func (s *blockingSender) Send(ctx context.Context, _ *domain.ScheduledEmail) (string, error) {
	s.sends.Add(1)
	s.entered <- struct{}{}
	select {
	case <-s.release:
		return "m-1", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// --- providers ---

func TestHTTPEmailSender_Send(t *testing.T) {
	var got map[string]any
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"id":"msg-42"}`))
	}))
	defer server.Close()

	sender := NewHTTPEmailSender(ProviderConfig{URL: server.URL, Token: "secret"}, "clinic@example.com")
	email := scheduledEmail()

	ref, err := sender.Send(context.Background(), email)
	require.NoError(t, err)
	assert.Equal(t, "msg-42", ref)
	assert.Equal(t, "Bearer secret", auth)
	assert.Equal(t, "clinic@example.com", got["from"])
	assert.Equal(t, "anna@example.com", got["to"])
	assert.Equal(t, "Rex discharge", got["subject"])
	assert.Equal(t, email.ID.String(), got["reference"])
}

func TestHTTPProvider_StatusClassification(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{"server error", http.StatusBadGateway, ErrProviderRequest},
		{"rate limited", http.StatusTooManyRequests, ErrProviderRequest},
		{"bad request", http.StatusBadRequest, ErrProviderRejected},
		{"unprocessable", http.StatusUnprocessableEntity, ErrProviderRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			_, err := NewHTTPCallPlacer(ProviderConfig{URL: server.URL}).Place(context.Background(), scheduledCall())
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestHTTPProvider_NotConfigured(t *testing.T) {
	_, err := NewHTTPEmailSender(ProviderConfig{}, "").Send(context.Background(), scheduledEmail())
	assert.ErrorIs(t, err, ErrProviderNotConfigured)
}

func TestFirstString(t *testing.T) {
	assert.Equal(t, "c-1", firstString([]byte(`{"call_id":"c-1","id":"x"}`), "call_id", "id"))
	assert.Equal(t, "x", firstString([]byte(`{"id":"x"}`), "call_id", "id"))
	assert.Equal(t, "", firstString([]byte(`not json`), "id"))
	assert.Equal(t, "", firstString(nil, "id"))
}

// --- retry ---

func TestRetryPolicy_Backoff(t *testing.T) {
	p := RetryPolicy{InitialDelay: time.Second, MaxDelay: 5 * time.Second}.withDefaults()

	assert.Equal(t, 3, p.MaxAttempts)
	assert.Equal(t, time.Second, p.backoff(1))
	assert.Equal(t, 2*time.Second, p.backoff(2))
	assert.Equal(t, 4*time.Second, p.backoff(3))
	assert.Equal(t, 5*time.Second, p.backoff(4))
	assert.Equal(t, 5*time.Second, p.backoff(10))
}

func TestWithRetry_StopsOnPermanentError(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 5, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}
	calls := 0

	_, attempts, err := withRetry(context.Background(), policy, func(context.Context) (string, error) {
		calls++
		return "", ErrProviderRejected
	})
	assert.ErrorIs(t, err, ErrProviderRejected)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_RetriesTransient(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 5, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}
	calls := 0

	ref, attempts, err := withRetry(context.Background(), policy, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", ErrProviderRequest
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", ref)
	assert.Equal(t, 3, attempts)
}

// --- handlers ---

func TestHandleEmailDue_SendsAndMarksSent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"m-1"}`))
	}))
	defer server.Close()

	email := scheduledEmail()
	emails := newFakeEmails(email)
	d := newTestDispatcher(emails, newFakeCalls(), NewHTTPEmailSender(ProviderConfig{URL: server.URL}, "from@example.com"), nil, &fakeRepublisher{})

	err := d.handleEmailDue(context.Background(), delivery(mq.MessageTypeEmailDue, email.ID, email.CaseID, email.ScheduledFor))
	require.NoError(t, err)

	stored := emails.get(email.ID)
	assert.Equal(t, domain.DeliveryStatusSent, stored.Status)
	assert.NotNil(t, stored.SentAt)
}

func TestHandleEmailDue_TransientFailureRetriedThenFailed(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	email := scheduledEmail()
	emails := newFakeEmails(email)
	d := newTestDispatcher(emails, newFakeCalls(), NewHTTPEmailSender(ProviderConfig{URL: server.URL}, ""), nil, &fakeRepublisher{})

	err := d.handleEmailDue(context.Background(), delivery(mq.MessageTypeEmailDue, email.ID, email.CaseID, email.ScheduledFor))
	require.NoError(t, err)

	assert.Equal(t, int32(3), hits.Load())
	stored := emails.get(email.ID)
	assert.Equal(t, domain.DeliveryStatusFailed, stored.Status)
	assert.Contains(t, stored.Error, "HTTP 503")
}

func TestHandleEmailDue_AlreadySentIsIgnored(t *testing.T) {
	email := scheduledEmail()
	email.Status = domain.DeliveryStatusSent
	emails := newFakeEmails(email)
	d := newTestDispatcher(emails, newFakeCalls(), nil, nil, &fakeRepublisher{})

	err := d.handleEmailDue(context.Background(), delivery(mq.MessageTypeEmailDue, email.ID, email.CaseID, email.ScheduledFor))
	require.NoError(t, err)
	assert.Zero(t, emails.updates)
}

func TestHandleEmailDue_MissingRecordIsAcked(t *testing.T) {
	d := newTestDispatcher(newFakeEmails(), newFakeCalls(), nil, nil, &fakeRepublisher{})

	err := d.handleEmailDue(context.Background(), delivery(mq.MessageTypeEmailDue, uuid.New(), uuid.New(), testNow))
	assert.NoError(t, err)
}

func TestHandleEmailDue_EarlyMessageIsRedelayed(t *testing.T) {
	email := scheduledEmail()
	email.ScheduledFor = testNow.Add(2 * time.Hour)
	pub := &fakeRepublisher{}
	emails := newFakeEmails(email)
	d := newTestDispatcher(emails, newFakeCalls(), nil, nil, pub)

	err := d.handleEmailDue(context.Background(), delivery(mq.MessageTypeEmailDue, email.ID, email.CaseID, email.ScheduledFor))
	require.NoError(t, err)

	require.Len(t, pub.emails, 1)
	assert.Equal(t, email.ID, pub.emails[0].ID)
	assert.Equal(t, domain.DeliveryStatusScheduled, emails.get(email.ID).Status)
}

func TestHandleEmailDue_BadPayloadIsDiscarded(t *testing.T) {
	d := newTestDispatcher(newFakeEmails(), newFakeCalls(), nil, nil, &fakeRepublisher{})

	msg := &mq.Delivery{Message: mq.Message{Type: mq.MessageTypeEmailDue, Payload: "garbage"}}
	err := d.handleEmailDue(context.Background(), msg)
	assert.ErrorIs(t, err, mq.ErrDiscard)
}

func TestHandleCallDue_PlacesCall(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"call_id":"call-7"}`))
	}))
	defer server.Close()

	call := scheduledCall()
	calls := newFakeCalls(call)
	d := newTestDispatcher(newFakeEmails(), calls, nil, NewHTTPCallPlacer(ProviderConfig{URL: server.URL}), &fakeRepublisher{})

	err := d.handleCallDue(context.Background(), delivery(mq.MessageTypeCallDue, call.ID, call.CaseID, call.ScheduledFor))
	require.NoError(t, err)

	stored := calls.get(call.ID)
	assert.Equal(t, domain.DeliveryStatusSent, stored.Status)
	assert.Equal(t, "call-7", stored.ProviderRef)
	assert.Equal(t, "+15550100", got["to"])
	assert.Equal(t, "Check on Rex", got["script"])
}

func TestHandleCallDue_RejectedIsFailedWithoutRetry(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid number"}`))
	}))
	defer server.Close()

	call := scheduledCall()
	calls := newFakeCalls(call)
	d := newTestDispatcher(newFakeEmails(), calls, nil, NewHTTPCallPlacer(ProviderConfig{URL: server.URL}), &fakeRepublisher{})

	err := d.handleCallDue(context.Background(), delivery(mq.MessageTypeCallDue, call.ID, call.CaseID, call.ScheduledFor))
	require.NoError(t, err)

	assert.Equal(t, int32(1), hits.Load())
	stored := calls.get(call.ID)
	assert.Equal(t, domain.DeliveryStatusFailed, stored.Status)
	assert.Contains(t, stored.Error, "invalid number")
}

func TestPoll_DeliversOverdue(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"x"}`))
	}))
	defer server.Close()

	overdue := scheduledEmail()
	overdue.ScheduledFor = testNow.Add(-time.Hour)
	fresh := scheduledEmail()
	fresh.ScheduledFor = testNow.Add(-10 * time.Second)
	call := scheduledCall()
	call.ScheduledFor = testNow.Add(-time.Hour)

	emails := newFakeEmails(overdue, fresh)
	calls := newFakeCalls(call)
	d := newTestDispatcher(emails, calls,
		NewHTTPEmailSender(ProviderConfig{URL: server.URL}, ""),
		NewHTTPCallPlacer(ProviderConfig{URL: server.URL}),
		&fakeRepublisher{})

	d.Poll(context.Background())

	assert.Equal(t, domain.DeliveryStatusSent, emails.get(overdue.ID).Status)
	// свежая запись ещё может быть в очереди
	assert.Equal(t, domain.DeliveryStatusScheduled, emails.get(fresh.ID).Status)
	assert.Equal(t, domain.DeliveryStatusSent, calls.get(call.ID).Status)
}

func TestDeliverEmail_TwoDispatchersSendOnce(t *testing.T) {
	email := scheduledEmail()
	email.ScheduledFor = testNow.Add(-time.Hour)
	emails := newFakeEmails(email)
	sender := newBlockingSender()

	first := newTestDispatcher(emails, newFakeCalls(), sender, nil, &fakeRepublisher{})
	second := newTestDispatcher(emails, newFakeCalls(), sender, nil, &fakeRepublisher{})

	// второй экземпляр прочитал запись до того, как первый её захватил
	stale, err := emails.ListDue(context.Background(), testNow, 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		first.Poll(context.Background())
	}()
	<-sender.entered

	err = second.deliverEmail(context.Background(), &stale[0])
	assert.ErrorIs(t, err, ErrNotScheduled)
	second.Poll(context.Background())

	close(sender.release)
	<-done

	assert.Equal(t, int32(1), sender.sends.Load())
	assert.Equal(t, domain.DeliveryStatusSent, emails.get(email.ID).Status)
}

func TestDeliverEmail_CancelReleasesClaim(t *testing.T) {
	email := scheduledEmail()
	emails := newFakeEmails(email)
	sender := newBlockingSender()
	d := newTestDispatcher(emails, newFakeCalls(), sender, nil, &fakeRepublisher{})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		cp := *email
		errCh <- d.deliverEmail(ctx, &cp)
	}()
	<-sender.entered
	assert.Equal(t, domain.DeliveryStatusSending, emails.get(email.ID).Status)

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
	assert.Equal(t, domain.DeliveryStatusScheduled, emails.get(email.ID).Status)
}

func TestHandleCallDue_ClaimedElsewhereIsSkipped(t *testing.T) {
	call := scheduledCall()
	calls := newFakeCalls(call)
	require.NoError(t, calls.Claim(context.Background(), call.ID))

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	d := newTestDispatcher(newFakeEmails(), calls, nil, NewHTTPCallPlacer(ProviderConfig{URL: server.URL}), &fakeRepublisher{})

	err := d.handleCallDue(context.Background(), delivery(mq.MessageTypeCallDue, call.ID, call.CaseID, call.ScheduledFor))
	require.NoError(t, err)
	assert.Zero(t, hits.Load())
	assert.Equal(t, domain.DeliveryStatusSending, calls.get(call.ID).Status)
}
