package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shaiso/Vetflow/internal/domain"
)

func TestValidateRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     *domain.OrchestrationRequest
		wantErr error
	}{
		{
			name:    "nil request",
			req:     nil,
			wantErr: ErrEmptyInput,
		},
		{
			name:    "no input",
			req:     &domain.OrchestrationRequest{},
			wantErr: ErrEmptyInput,
		},
		{
			name: "both inputs",
			req: &domain.OrchestrationRequest{Input: domain.OrchestrationInput{
				RawData:      &domain.RawData{Mode: domain.InputModeText, Source: "s", Text: "t"},
				ExistingCase: &domain.ExistingCase{CaseID: "c1"},
			}},
			wantErr: ErrAmbiguousInput,
		},
		{
			name: "text mode without text",
			req: &domain.OrchestrationRequest{Input: domain.OrchestrationInput{
				RawData: &domain.RawData{Mode: domain.InputModeText, Source: "s"},
			}},
			wantErr: ErrMissingField,
		},
		{
			name: "structured mode without data",
			req: &domain.OrchestrationRequest{Input: domain.OrchestrationInput{
				RawData: &domain.RawData{Mode: domain.InputModeStructured, Source: "pims"},
			}},
			wantErr: ErrMissingField,
		},
		{
			name: "unknown mode",
			req: &domain.OrchestrationRequest{Input: domain.OrchestrationInput{
				RawData: &domain.RawData{Mode: "audio", Source: "s"},
			}},
			wantErr: ErrInvalidMode,
		},
		{
			name: "missing source",
			req: &domain.OrchestrationRequest{Input: domain.OrchestrationInput{
				RawData: &domain.RawData{Mode: domain.InputModeText, Text: "t"},
			}},
			wantErr: ErrMissingField,
		},
		{
			name: "existing case without id",
			req: &domain.OrchestrationRequest{Input: domain.OrchestrationInput{
				ExistingCase: &domain.ExistingCase{CaseID: "  "},
			}},
			wantErr: ErrMissingField,
		},
		{
			name: "unknown step",
			req: &domain.OrchestrationRequest{
				Input: domain.OrchestrationInput{ExistingCase: &domain.ExistingCase{CaseID: "c1"}},
				Steps: map[domain.StepName]domain.StepOptions{"sendSms": {}},
			},
			wantErr: ErrUnknownStep,
		},
		{
			name: "valid structured",
			req: &domain.OrchestrationRequest{Input: domain.OrchestrationInput{
				RawData: &domain.RawData{
					Mode:   domain.InputModeStructured,
					Source: "pims",
					Data:   map[string]any{"patientName": "Bella"},
				},
			}},
		},
		{
			name: "valid existing case",
			req: &domain.OrchestrationRequest{Input: domain.OrchestrationInput{
				ExistingCase: &domain.ExistingCase{CaseID: "c1"},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRequest(tt.req)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
