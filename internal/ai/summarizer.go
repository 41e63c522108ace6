package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/shaiso/Vetflow/internal/domain"
)

const summarySystemPrompt = `You write discharge summaries for pet owners on behalf of a veterinary clinic.
Use plain, warm language a non-specialist understands. Structure the text as short paragraphs:
what happened during the visit, the diagnosis, home care and medications, and warning signs
that require calling the clinic. Do not add facts that are not in the notes.
Reply with the summary text only.`

// Summarizer генерирует текст выписки через LLM.
type Summarizer struct {
	model     llms.Model
	modelName string
}

// NewSummarizer создаёт Summarizer. modelName сохраняется в выписке.
func NewSummarizer(model llms.Model, modelName string) *Summarizer {
	if modelName == "" {
		modelName = DefaultModel
	}
	return &Summarizer{model: model, modelName: modelName}
}

// Summarize генерирует выписку по case.
// Нужны сущности или исходный текст case.
func (s *Summarizer) Summarize(ctx context.Context, c *domain.Case) (*domain.DischargeSummary, error) {
	prompt := SummaryPrompt(c)
	if prompt == "" {
		return nil, errors.New("case has neither entities nor notes")
	}

	content, err := complete(ctx, s.model, summarySystemPrompt, prompt, llms.WithTemperature(0.3))
	if err != nil {
		return nil, err
	}

	return &domain.DischargeSummary{
		CaseID:  c.ID,
		Content: content,
		Model:   s.modelName,
	}, nil
}

// SummaryPrompt собирает пользовательскую часть запроса из сущностей и заметок.
func SummaryPrompt(c *domain.Case) string {
	var b strings.Builder

	if e := c.Entities; e != nil {
		line(&b, "Patient", join(e.Patient.Name, e.Patient.Species, e.Patient.Breed, e.Patient.Sex, e.Patient.Age))
		if e.Patient.WeightKg > 0 {
			line(&b, "Weight", fmt.Sprintf("%.1f kg", e.Patient.WeightKg))
		}
		line(&b, "Owner", e.Owner.Name)
		line(&b, "Reason for visit", e.Clinical.VisitReason)
		line(&b, "Diagnoses", strings.Join(e.Clinical.Diagnoses, "; "))
		line(&b, "Procedures", strings.Join(e.Clinical.Procedures, "; "))

		meds := make([]string, 0, len(e.Clinical.Medications))
		for _, m := range e.Clinical.Medications {
			meds = append(meds, m.String())
		}
		line(&b, "Medications", strings.Join(meds, "; "))
		line(&b, "Instructions", strings.Join(e.Clinical.Instructions, "; "))
		if e.Clinical.FollowUpDays > 0 {
			line(&b, "Recheck in", fmt.Sprintf("%d days", e.Clinical.FollowUpDays))
		}
	}

	if notes := strings.TrimSpace(c.RawText); notes != "" {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Visit notes:\n")
		b.WriteString(notes)
		b.WriteString("\n")
	}

	return b.String()
}

func line(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	b.WriteString(label)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteString("\n")
}

func join(parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}
