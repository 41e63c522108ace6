package domain

import (
	"fmt"
	"strings"
)

// Entities — нормализованные сущности, извлечённые из case.
type Entities struct {
	Patient  PatientInfo  `json:"patient"`
	Owner    OwnerInfo    `json:"owner"`
	Clinical ClinicalInfo `json:"clinical"`
}

// PatientInfo — данные о животном.
type PatientInfo struct {
	Name     string  `json:"name,omitempty"`
	Species  string  `json:"species,omitempty"`
	Breed    string  `json:"breed,omitempty"`
	Sex      string  `json:"sex,omitempty"`
	Age      string  `json:"age,omitempty"`
	WeightKg float64 `json:"weightKg,omitempty"`
}

// OwnerInfo — контакт владельца.
type OwnerInfo struct {
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// ClinicalInfo — клиническая часть визита.
type ClinicalInfo struct {
	VisitReason  string       `json:"visitReason,omitempty"`
	Diagnoses    []string     `json:"diagnoses,omitempty"`
	Procedures   []string     `json:"procedures,omitempty"`
	Medications  []Medication `json:"medications,omitempty"`
	Instructions []string     `json:"instructions,omitempty"`

	// FollowUpDays — через сколько дней рекомендован контроль (0 — не указано).
	FollowUpDays int `json:"followUpDays,omitempty"`
}

// Medication — назначенный препарат.
type Medication struct {
	Name      string `json:"name"`
	Dosage    string `json:"dosage,omitempty"`
	Frequency string `json:"frequency,omitempty"`
	Duration  string `json:"duration,omitempty"`
}

// String возвращает человекочитаемое описание препарата.
func (m Medication) String() string {
	parts := []string{m.Name}
	for _, p := range []string{m.Dosage, m.Frequency, m.Duration} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// EntitiesFromMap строит Entities из структурированных данных PIMS.
//
// Поддерживаются плоские ключи верхнего уровня (patientName, species, ownerPhone, ...)
// и вложенные объекты patient/owner/clinical.
func EntitiesFromMap(data map[string]any) *Entities {
	e := &Entities{}

	patient := nestedMap(data, "patient")
	owner := nestedMap(data, "owner")
	clinical := nestedMap(data, "clinical")

	e.Patient.Name = firstString(patient, "name", data, "patientName")
	e.Patient.Species = firstString(patient, "species", data, "species")
	e.Patient.Breed = firstString(patient, "breed", data, "breed")
	e.Patient.Sex = firstString(patient, "sex", data, "sex")
	e.Patient.Age = firstString(patient, "age", data, "age")
	e.Patient.WeightKg = firstFloat(patient, "weightKg", data, "weightKg")

	e.Owner.Name = firstString(owner, "name", data, "ownerName")
	e.Owner.Phone = firstString(owner, "phone", data, "ownerPhone")
	e.Owner.Email = firstString(owner, "email", data, "ownerEmail")

	e.Clinical.VisitReason = firstString(clinical, "visitReason", data, "visitReason")
	e.Clinical.Diagnoses = firstStrings(clinical, "diagnoses", data, "diagnoses")
	e.Clinical.Procedures = firstStrings(clinical, "procedures", data, "procedures")
	e.Clinical.Instructions = firstStrings(clinical, "instructions", data, "instructions")
	e.Clinical.FollowUpDays = int(firstFloat(clinical, "followUpDays", data, "followUpDays"))

	meds, _ := clinical["medications"].([]any)
	if meds == nil {
		meds, _ = data["medications"].([]any)
	}
	for _, m := range meds {
		switch v := m.(type) {
		case string:
			e.Clinical.Medications = append(e.Clinical.Medications, Medication{Name: v})
		case map[string]any:
			med := Medication{
				Name:      asString(v["name"]),
				Dosage:    asString(v["dosage"]),
				Frequency: asString(v["frequency"]),
				Duration:  asString(v["duration"]),
			}
			if med.Name != "" {
				e.Clinical.Medications = append(e.Clinical.Medications, med)
			}
		}
	}

	return e
}

// Merge заполняет пустые поля e значениями из other. Непустые поля не меняются.
func (e *Entities) Merge(other *Entities) {
	if other == nil {
		return
	}
	fill(&e.Patient.Name, other.Patient.Name)
	fill(&e.Patient.Species, other.Patient.Species)
	fill(&e.Patient.Breed, other.Patient.Breed)
	fill(&e.Patient.Sex, other.Patient.Sex)
	fill(&e.Patient.Age, other.Patient.Age)
	if e.Patient.WeightKg == 0 {
		e.Patient.WeightKg = other.Patient.WeightKg
	}
	fill(&e.Owner.Name, other.Owner.Name)
	fill(&e.Owner.Phone, other.Owner.Phone)
	fill(&e.Owner.Email, other.Owner.Email)
}

func fill(dst *string, src string) {
	if *dst == "" {
		*dst = src
	}
}

func nestedMap(data map[string]any, key string) map[string]any {
	if m, ok := data[key].(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

func firstString(primary map[string]any, pk string, fallback map[string]any, fk string) string {
	if s := asString(primary[pk]); s != "" {
		return s
	}
	return asString(fallback[fk])
}

func firstFloat(primary map[string]any, pk string, fallback map[string]any, fk string) float64 {
	if f, ok := asFloat(primary[pk]); ok {
		return f
	}
	f, _ := asFloat(fallback[fk])
	return f
}

func firstStrings(primary map[string]any, pk string, fallback map[string]any, fk string) []string {
	if s := asStrings(primary[pk]); len(s) > 0 {
		return s
	}
	return asStrings(fallback[fk])
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case nil:
		return ""
	case float64, int, int64:
		return fmt.Sprint(s)
	default:
		return ""
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func asStrings(v any) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str := asString(item); str != "" {
				out = append(out, str)
			}
		}
		return out
	case string:
		if s == "" {
			return nil
		}
		return []string{s}
	default:
		return nil
	}
}
