package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/shaiso/Vetflow/internal/domain"
)

// fakeModel — llms.Model с заранее заданным ответом.
type fakeModel struct {
	reply    string
	err      error
	empty    bool
	messages []llms.MessageContent
	opts     llms.CallOptions
}

func (m *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.messages = messages
	for _, opt := range options {
		opt(&m.opts)
	}
	if m.err != nil {
		return nil, m.err
	}
	if m.empty {
		return &llms.ContentResponse{}, nil
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.reply}}}, nil
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func userText(t *testing.T, messages []llms.MessageContent) string {
	t.Helper()
	require.Len(t, messages, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, messages[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, messages[1].Role)
	part, ok := messages[1].Parts[0].(llms.TextContent)
	require.True(t, ok)
	return part.Text
}

func TestExtractor_Extract(t *testing.T) {
	model := &fakeModel{reply: "```json\n" + `{
		"patient": {"name": "Rex", "species": "dog", "weightKg": "31.5"},
		"owner": {"name": "Anna", "phone": "+15550100", "email": null},
		"clinical": {
			"diagnoses": ["foreign body", ""],
			"medications": [{"name": "Carprofen", "dosage": "25 mg"}, "Maropitant", {"dosage": "no name"}],
			"followUpDays": 10,
			"extra": true
		}
	}` + "\n```"}

	e := NewExtractor(model, nil)
	got, err := e.Extract(context.Background(), "Rex ate a sock")
	require.NoError(t, err)

	assert.Equal(t, "Rex ate a sock", userText(t, model.messages))
	assert.True(t, model.opts.JSONMode)
	assert.Zero(t, model.opts.Temperature)

	assert.Equal(t, "Rex", got.Patient.Name)
	assert.Equal(t, 31.5, got.Patient.WeightKg)
	assert.Equal(t, "Anna", got.Owner.Name)
	assert.Empty(t, got.Owner.Email)
	assert.Equal(t, []string{"foreign body"}, got.Clinical.Diagnoses)
	assert.Equal(t, []domain.Medication{
		{Name: "Carprofen", Dosage: "25 mg"},
		{Name: "Maropitant"},
	}, got.Clinical.Medications)
	assert.Equal(t, 10, got.Clinical.FollowUpDays)
}

func TestExtractor_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := NewExtractor(&fakeModel{}, nil).Extract(ctx, "   ")
	assert.ErrorIs(t, err, ErrEmptyText)

	_, err = NewExtractor(&fakeModel{reply: "I think it's a dog"}, nil).Extract(ctx, "x")
	assert.ErrorIs(t, err, ErrInvalidJSON)

	_, err = NewExtractor(&fakeModel{reply: `["a"]`}, nil).Extract(ctx, "x")
	assert.ErrorIs(t, err, ErrInvalidJSON)

	_, err = NewExtractor(&fakeModel{empty: true}, nil).Extract(ctx, "x")
	assert.ErrorIs(t, err, ErrEmptyResponse)

	boom := errors.New("rate limited")
	_, err = NewExtractor(&fakeModel{err: boom}, nil).Extract(ctx, "x")
	assert.ErrorIs(t, err, boom)
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence("```\n{\"a\":1}```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence(`  {"a":1} `))
}

func TestSummarizer_Summarize(t *testing.T) {
	model := &fakeModel{reply: "  Rex is doing well.  "}
	s := NewSummarizer(model, "")

	c := &domain.Case{
		ID:      uuid.New(),
		RawText: "Removed a sock.",
		Entities: &domain.Entities{
			Patient: domain.PatientInfo{Name: "Rex", Species: "dog", WeightKg: 31.5},
			Clinical: domain.ClinicalInfo{
				Diagnoses:    []string{"foreign body"},
				Medications:  []domain.Medication{{Name: "Carprofen", Dosage: "25 mg"}},
				FollowUpDays: 10,
			},
		},
	}

	summary, err := s.Summarize(context.Background(), c)
	require.NoError(t, err)

	assert.Equal(t, c.ID, summary.CaseID)
	assert.Equal(t, "Rex is doing well.", summary.Content)
	assert.Equal(t, DefaultModel, summary.Model)

	prompt := userText(t, model.messages)
	assert.Contains(t, prompt, "Patient: Rex, dog\n")
	assert.Contains(t, prompt, "Weight: 31.5 kg\n")
	assert.Contains(t, prompt, "Diagnoses: foreign body\n")
	assert.Contains(t, prompt, "Medications: Carprofen, 25 mg\n")
	assert.Contains(t, prompt, "Recheck in: 10 days\n")
	assert.Contains(t, prompt, "Visit notes:\nRemoved a sock.")
	assert.NotContains(t, prompt, "Owner:")
}

func TestSummarizer_NothingToSummarize(t *testing.T) {
	model := &fakeModel{reply: "x"}
	_, err := NewSummarizer(model, "m").Summarize(context.Background(), &domain.Case{})
	assert.Error(t, err)
	assert.Nil(t, model.messages)
}

func TestNewModel_RequiresToken(t *testing.T) {
	_, err := NewModel(Config{})
	assert.Error(t, err)

	m, err := NewModel(Config{Token: "sk-test", BaseURL: "http://localhost:1/v1"})
	require.NoError(t, err)
	assert.NotNil(t, m)
}
