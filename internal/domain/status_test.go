package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCaseStatus_CanAdvance(t *testing.T) {
	tests := []struct {
		to   CaseStatus
		from CaseStatus
		want bool
	}{
		{CaseStatusExtracted, CaseStatusNew, true},
		{CaseStatusExtracted, CaseStatusExtracted, false},
		{CaseStatusExtracted, CaseStatusSummarized, false},
		// параллельный extractEntities не откатывает закрытый case
		{CaseStatusExtracted, CaseStatusDischarged, false},
		{CaseStatusSummarized, CaseStatusExtracted, true},
		{CaseStatusSummarized, CaseStatusDischarged, false},
		{CaseStatusDischarged, CaseStatusSummarized, true},
		{CaseStatusDischarged, CaseStatusNew, true},
		{CaseStatusFailed, CaseStatusExtracted, true},
		{CaseStatusFailed, CaseStatusDischarged, false},
		{CaseStatusNew, CaseStatusNew, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.to.CanAdvance(tt.from))
		})
	}
}

func TestDeliveryStatus_IsTerminal(t *testing.T) {
	assert.False(t, DeliveryStatusScheduled.IsTerminal())
	assert.False(t, DeliveryStatusSending.IsTerminal())
	assert.True(t, DeliveryStatusSent.IsTerminal())
	assert.True(t, DeliveryStatusFailed.IsTerminal())
	assert.True(t, DeliveryStatusCancelled.IsTerminal())
}
