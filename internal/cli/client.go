package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shaiso/Vetflow/internal/domain"
)

// Заголовки, которые API ожидает от клиента.
const (
	headerUserID         = "X-User-ID"
	headerClinicID       = "X-Clinic-ID"
	headerUserEmail      = "X-User-Email"
	headerIdempotencyKey = "Idempotency-Key"
	headerReplayed       = "Idempotent-Replayed"
)

// DischargeResponse — результат POST /api/v1/discharge.
type DischargeResponse struct {
	// Key — ключ результата (Idempotency-Key или сгенерированный сервером).
	Key string `json:"key"`

	// Replayed — результат возвращён из кэша.
	Replayed bool `json:"replayed,omitempty"`

	Result *domain.OrchestrationResult `json:"result"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// ClientConfig — параметры клиента.
type ClientConfig struct {
	BaseURL  string
	UserID   string
	ClinicID string
	Email    string
	Timeout  time.Duration // default: 2m (AI шаги могут быть долгими)
}

// Client — HTTP-клиент для Vetflow API.
type Client struct {
	baseURL    string
	userID     string
	clinicID   string
	email      string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		baseURL:  cfg.BaseURL,
		userID:   cfg.UserID,
		clinicID: cfg.ClinicID,
		email:    cfg.Email,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// --- Discharge ---

// Discharge запускает workflow. Пустой idempotencyKey — сервер сгенерирует ключ.
func (c *Client) Discharge(req *domain.OrchestrationRequest, idempotencyKey string) (*DischargeResponse, error) {
	headers := map[string]string{}
	if idempotencyKey != "" {
		headers[headerIdempotencyKey] = idempotencyKey
	}

	var result domain.OrchestrationResult
	resp, err := c.doData(http.MethodPost, "/api/v1/discharge", req, headers, &result)
	if err != nil {
		return nil, err
	}

	return &DischargeResponse{
		Key:      resp.Header.Get(headerIdempotencyKey),
		Replayed: resp.Header.Get(headerReplayed) == "true",
		Result:   &result,
	}, nil
}

// GetResult возвращает результат по ключу.
func (c *Client) GetResult(key string) (*domain.OrchestrationResult, error) {
	var result domain.OrchestrationResult
	_, err := c.doData(http.MethodGet, "/api/v1/discharge/"+url.PathEscape(key), nil, nil, &result)
	return &result, err
}

// --- Cases ---

// GetCase возвращает case по ID.
func (c *Client) GetCase(id string) (*domain.Case, error) {
	var cs domain.Case
	_, err := c.doData(http.MethodGet, "/api/v1/cases/"+url.PathEscape(id), nil, nil, &cs)
	return &cs, err
}

// --- HTTP helpers ---

func (c *Client) doData(method, path string, body any, headers map[string]string, result any) (*http.Response, error) {
	resp, err := c.do(method, path, body, headers)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return nil, err
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		if err := json.Unmarshal(dr.Data, result); err != nil {
			return nil, fmt.Errorf("failed to decode data: %w", err)
		}
	}
	return resp, nil
}

func (c *Client) do(method, path string, body any, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(headerUserID, c.userID)
	req.Header.Set(headerClinicID, c.clinicID)
	if c.email != "" {
		req.Header.Set(headerUserEmail, c.email)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
