package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/shaiso/Vetflow/internal/domain"
)

const defaultHTTPTimeout = 30 * time.Second

// EmailSender отправляет письмо владельцу. Возвращает ID сообщения у провайдера.
type EmailSender interface {
	Send(ctx context.Context, email *domain.ScheduledEmail) (string, error)
}

// CallPlacer ставит звонок у телефонного провайдера. Возвращает ID звонка.
type CallPlacer interface {
	Place(ctx context.Context, call *domain.ScheduledCall) (string, error)
}

// ProviderConfig — HTTP провайдер (email или телефония).
type ProviderConfig struct {
	// URL — endpoint, принимающий JSON POST.
	URL string

	// Token — bearer token. Пустой — без Authorization.
	Token string

	// Timeout — таймаут запроса. Default: 30s.
	Timeout time.Duration

	// Client — HTTP клиент. Default: новый http.Client.
	Client *http.Client
}

// httpProvider выполняет JSON POST к провайдеру.
type httpProvider struct {
	url     string
	token   string
	timeout time.Duration
	client  *http.Client
}

func newHTTPProvider(cfg ProviderConfig) *httpProvider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultHTTPTimeout
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{}
	}
	return &httpProvider{
		url:     cfg.URL,
		token:   cfg.Token,
		timeout: cfg.Timeout,
		client:  cfg.Client,
	}
}

// post отправляет body и возвращает тело ответа 2xx.
//
// Сеть, 5xx и 429 — ErrProviderRequest (можно повторить),
// остальные 4xx — ErrProviderRejected.
func (p *httpProvider) post(ctx context.Context, body any) ([]byte, error) {
	if p.url == "" {
		return nil, ErrProviderNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal body: %v", ErrProviderRejected, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrProviderRejected, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderRequest, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrProviderRequest, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrProviderRequest, resp.StatusCode, truncate(string(respBody), 200))
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrProviderRejected, resp.StatusCode, truncate(string(respBody), 200))
	}

	return respBody, nil
}

// HTTPEmailSender — EmailSender поверх HTTP API провайдера писем.
//
// Request:
//
//	{"from": "...", "to": "...", "subject": "...", "html": "...", "text": "...", "reference": "<email id>"}
//
// Response: {"id": "..."} или {"message_id": "..."}.
type HTTPEmailSender struct {
	provider *httpProvider
	from     string
}

// NewHTTPEmailSender создаёт HTTPEmailSender.
func NewHTTPEmailSender(cfg ProviderConfig, from string) *HTTPEmailSender {
	return &HTTPEmailSender{provider: newHTTPProvider(cfg), from: from}
}

// Send отправляет письмо.
func (s *HTTPEmailSender) Send(ctx context.Context, email *domain.ScheduledEmail) (string, error) {
	body, err := s.provider.post(ctx, map[string]any{
		"from":      s.from,
		"to":        email.Recipient,
		"subject":   email.Subject,
		"html":      email.HTML,
		"text":      email.Text,
		"reference": email.ID.String(),
	})
	if err != nil {
		return "", err
	}
	return firstString(body, "id", "message_id"), nil
}

// HTTPCallPlacer — CallPlacer поверх HTTP API телефонии.
//
// Request:
//
//	{"to": "...", "script": "...", "metadata": {"call_id": "...", "case_id": "...", "patient": "...", "owner": "..."}}
//
// Response: {"call_id": "..."} или {"id": "..."}.
type HTTPCallPlacer struct {
	provider *httpProvider
}

// NewHTTPCallPlacer создаёт HTTPCallPlacer.
func NewHTTPCallPlacer(cfg ProviderConfig) *HTTPCallPlacer {
	return &HTTPCallPlacer{provider: newHTTPProvider(cfg)}
}

// Place ставит звонок.
func (p *HTTPCallPlacer) Place(ctx context.Context, call *domain.ScheduledCall) (string, error) {
	body, err := p.provider.post(ctx, map[string]any{
		"to":     call.Phone,
		"script": call.Script,
		"metadata": map[string]string{
			"call_id": call.ID.String(),
			"case_id": call.CaseID.String(),
			"patient": call.PatientName,
			"owner":   call.OwnerName,
		},
	})
	if err != nil {
		return "", err
	}
	return firstString(body, "call_id", "id"), nil
}

// firstString возвращает первое непустое строковое поле JSON ответа.
func firstString(body []byte, paths ...string) string {
	if !gjson.ValidBytes(body) {
		return ""
	}
	for _, path := range paths {
		if v := gjson.GetBytes(body, path); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

// truncate обрезает строку до указанной длины.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
