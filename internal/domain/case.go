package domain

import (
	"time"

	"github.com/google/uuid"
)

// Case — ветеринарный случай (визит), по которому готовится выписка.
type Case struct {
	// ID — уникальный идентификатор case.
	ID uuid.UUID `json:"id"`

	// ClinicID — клиника-владелец.
	ClinicID string `json:"clinic_id"`

	// PatientID — ссылка на карточку пациента в клинике (если известна).
	PatientID *uuid.UUID `json:"patient_id,omitempty"`

	// Source — откуда пришли данные (например "pims", "transcript", "manual").
	Source string `json:"source"`

	// Mode — формат исходных данных.
	Mode InputMode `json:"mode"`

	// RawText — исходный текст (для mode=text).
	RawText string `json:"raw_text,omitempty"`

	// RawData — исходные структурированные данные (для mode=structured).
	RawData map[string]any `json:"raw_data,omitempty"`

	// Status — текущий статус case.
	Status CaseStatus `json:"status"`

	// Entities — извлечённые сущности. Nil до extractEntities.
	Entities *Entities `json:"entities,omitempty"`

	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasEntities возвращает true, если сущности уже извлечены.
func (c *Case) HasEntities() bool {
	return c.Entities != nil
}

// Patient — карточка пациента клиники.
type Patient struct {
	ID         uuid.UUID  `json:"id"`
	ClinicID   string     `json:"clinic_id"`
	Name       string     `json:"name"`
	Species    string     `json:"species"`
	Breed      string     `json:"breed,omitempty"`
	Sex        string     `json:"sex,omitempty"`
	BirthDate  *time.Time `json:"birth_date,omitempty"`
	WeightKg   float64    `json:"weight_kg,omitempty"`
	OwnerName  string     `json:"owner_name"`
	OwnerPhone string     `json:"owner_phone,omitempty"`
	OwnerEmail string     `json:"owner_email,omitempty"`
}

// Actor — аутентифицированный пользователь, от имени которого идёт orchestration.
type Actor struct {
	UserID   string `json:"user_id"`
	ClinicID string `json:"clinic_id"`
	Email    string `json:"email,omitempty"`
}
