package domain

import (
	"time"

	"github.com/google/uuid"
)

// DischargeSummary — сгенерированная выписка по case.
type DischargeSummary struct {
	ID        uuid.UUID `json:"id"`
	CaseID    uuid.UUID `json:"case_id"`
	Content   string    `json:"content"`
	Model     string    `json:"model,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// EmailContent — готовое письмо владельцу.
type EmailContent struct {
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text,omitempty"`
}

// ScheduledEmail — запланированное follow-up письмо.
type ScheduledEmail struct {
	ID           uuid.UUID      `json:"id"`
	CaseID       uuid.UUID      `json:"case_id"`
	ClinicID     string         `json:"clinic_id"`
	Recipient    string         `json:"recipient"`
	Subject      string         `json:"subject"`
	HTML         string         `json:"html"`
	Text         string         `json:"text,omitempty"`
	ScheduledFor time.Time      `json:"scheduled_for"`
	Status       DeliveryStatus `json:"status"`
	SentAt       *time.Time     `json:"sent_at,omitempty"`
	Error        string         `json:"error,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// MarkSent переводит письмо в SENT.
func (e *ScheduledEmail) MarkSent() {
	now := time.Now()
	e.Status = DeliveryStatusSent
	e.SentAt = &now
}

// MarkFailed переводит письмо в FAILED с ошибкой.
func (e *ScheduledEmail) MarkFailed(err string) {
	e.Status = DeliveryStatusFailed
	e.Error = err
}

// ScheduledCall — запланированный follow-up звонок владельцу.
type ScheduledCall struct {
	ID           uuid.UUID      `json:"id"`
	CaseID       uuid.UUID      `json:"case_id"`
	ClinicID     string         `json:"clinic_id"`
	Phone        string         `json:"phone"`
	PatientName  string         `json:"patient_name,omitempty"`
	OwnerName    string         `json:"owner_name,omitempty"`
	Script       string         `json:"script,omitempty"`
	ScheduledFor time.Time      `json:"scheduled_for"`
	Status       DeliveryStatus `json:"status"`
	ProviderRef  string         `json:"provider_ref,omitempty"`
	PlacedAt     *time.Time     `json:"placed_at,omitempty"`
	Error        string         `json:"error,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// MarkPlaced переводит звонок в SENT с идентификатором провайдера.
func (c *ScheduledCall) MarkPlaced(providerRef string) {
	now := time.Now()
	c.Status = DeliveryStatusSent
	c.ProviderRef = providerRef
	c.PlacedAt = &now
}

// MarkFailed переводит звонок в FAILED с ошибкой.
func (c *ScheduledCall) MarkFailed(err string) {
	c.Status = DeliveryStatusFailed
	c.Error = err
}

// CallOptions — параметры планирования звонка.
type CallOptions struct {
	// DelayDays — через сколько дней звонить (0 — значение по умолчанию).
	DelayDays int

	// Script — текст для оператора/голосового агента.
	Script string
}
