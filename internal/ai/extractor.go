package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tmc/langchaingo/llms"

	"github.com/shaiso/Vetflow/internal/domain"
)

const extractSystemPrompt = `You extract structured data from veterinary visit notes.
Reply with a single JSON object and nothing else, using this shape:
{
  "patient": {"name": "", "species": "", "breed": "", "sex": "", "age": "", "weightKg": 0},
  "owner": {"name": "", "phone": "", "email": ""},
  "clinical": {
    "visitReason": "",
    "diagnoses": [],
    "procedures": [],
    "medications": [{"name": "", "dosage": "", "frequency": "", "duration": ""}],
    "instructions": [],
    "followUpDays": 0
  }
}
Leave a field empty when the notes do not mention it. Do not invent values.`

// Extractor извлекает сущности из свободного текста через LLM.
type Extractor struct {
	model  llms.Model
	logger *slog.Logger
}

// NewExtractor создаёт Extractor.
func NewExtractor(model llms.Model, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{model: model, logger: logger}
}

// Extract извлекает сущности из текста визита.
func (e *Extractor) Extract(ctx context.Context, text string) (*domain.Entities, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	content, err := complete(ctx, e.model, extractSystemPrompt, text,
		llms.WithTemperature(0),
		llms.WithJSONMode(),
	)
	if err != nil {
		return nil, err
	}

	entities, err := ParseEntities(content)
	if err != nil {
		e.logger.Warn("failed to parse extraction", "error", err, "response_len", len(content))
		return nil, err
	}
	return entities, nil
}

// ParseEntities разбирает JSON ответа модели в Entities.
// Незнакомые поля игнорируются, числа в строках допускаются.
func ParseEntities(raw string) (*domain.Entities, error) {
	raw = stripCodeFence(raw)
	if !gjson.Valid(raw) {
		return nil, ErrInvalidJSON
	}
	doc := gjson.Parse(raw)
	if !doc.IsObject() {
		return nil, fmt.Errorf("%w: expected object", ErrInvalidJSON)
	}

	e := &domain.Entities{
		Patient: domain.PatientInfo{
			Name:     str(doc, "patient.name"),
			Species:  str(doc, "patient.species"),
			Breed:    str(doc, "patient.breed"),
			Sex:      str(doc, "patient.sex"),
			Age:      str(doc, "patient.age"),
			WeightKg: doc.Get("patient.weightKg").Float(),
		},
		Owner: domain.OwnerInfo{
			Name:  str(doc, "owner.name"),
			Phone: str(doc, "owner.phone"),
			Email: str(doc, "owner.email"),
		},
		Clinical: domain.ClinicalInfo{
			VisitReason:  str(doc, "clinical.visitReason"),
			Diagnoses:    strs(doc, "clinical.diagnoses"),
			Procedures:   strs(doc, "clinical.procedures"),
			Instructions: strs(doc, "clinical.instructions"),
			FollowUpDays: int(doc.Get("clinical.followUpDays").Int()),
		},
	}

	doc.Get("clinical.medications").ForEach(func(_, med gjson.Result) bool {
		var m domain.Medication
		if med.Type == gjson.String {
			m.Name = strings.TrimSpace(med.String())
		} else {
			m = domain.Medication{
				Name:      str(med, "name"),
				Dosage:    str(med, "dosage"),
				Frequency: str(med, "frequency"),
				Duration:  str(med, "duration"),
			}
		}
		if m.Name != "" {
			e.Clinical.Medications = append(e.Clinical.Medications, m)
		}
		return true
	})

	return e, nil
}

func str(r gjson.Result, path string) string {
	v := r.Get(path)
	if !v.Exists() || v.Type == gjson.Null {
		return ""
	}
	return strings.TrimSpace(v.String())
}

func strs(r gjson.Result, path string) []string {
	var out []string
	for _, v := range r.Get(path).Array() {
		if s := strings.TrimSpace(v.String()); s != "" {
			out = append(out, s)
		}
	}
	return out
}
