package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Vetflow/internal/domain"
)

func TestCanonicalGraph_IsAcyclic(t *testing.T) {
	order, err := topologicalOrder(canonicalDeps)
	require.NoError(t, err)
	assert.Equal(t, []domain.StepName{
		domain.StepIngest,
		domain.StepExtractEntities,
		domain.StepGenerateSummary,
		domain.StepPrepareEmail,
		domain.StepScheduleCall,
		domain.StepScheduleEmail,
	}, order)
}

func TestResolveDependencies_AllEnabled(t *testing.T) {
	all := func(domain.StepName) bool { return true }

	assert.Empty(t, resolveDependencies(domain.StepIngest, all))
	assert.Equal(t,
		[]domain.StepName{domain.StepIngest, domain.StepExtractEntities},
		resolveDependencies(domain.StepGenerateSummary, all))
	assert.Equal(t,
		[]domain.StepName{domain.StepGenerateSummary},
		resolveDependencies(domain.StepScheduleCall, all))
	assert.Equal(t,
		[]domain.StepName{domain.StepPrepareEmail},
		resolveDependencies(domain.StepScheduleEmail, all))
}

func TestResolveDependencies_DropsDisabledOptional(t *testing.T) {
	allEnabled := func(domain.StepName) bool { return true }
	noExtract := func(s domain.StepName) bool { return s != domain.StepExtractEntities }
	noIngest := func(s domain.StepName) bool { return s != domain.StepIngest }

	assert.Equal(t,
		[]domain.StepName{domain.StepIngest, domain.StepExtractEntities},
		resolveDependencies(domain.StepGenerateSummary, allEnabled))
	assert.Equal(t,
		[]domain.StepName{domain.StepIngest},
		resolveDependencies(domain.StepGenerateSummary, noExtract))

	// ingest не optional
	assert.Equal(t,
		[]domain.StepName{domain.StepIngest},
		resolveDependencies(domain.StepExtractEntities, noIngest))
}

func TestValidateGraph_Cycle(t *testing.T) {
	deps := map[domain.StepName][]domain.StepName{
		domain.StepIngest:          {domain.StepScheduleCall},
		domain.StepExtractEntities: {domain.StepIngest},
		domain.StepGenerateSummary: {domain.StepExtractEntities},
		domain.StepPrepareEmail:    {domain.StepGenerateSummary},
		domain.StepScheduleEmail:   {domain.StepPrepareEmail},
		domain.StepScheduleCall:    {domain.StepGenerateSummary},
	}

	err := ValidateGraph(deps)
	assert.ErrorIs(t, err, ErrCyclicDependency)
}

func TestValidateGraph_UnknownDependency(t *testing.T) {
	deps := map[domain.StepName][]domain.StepName{
		domain.StepIngest:          {},
		domain.StepExtractEntities: {"transcribe"},
	}

	err := ValidateGraph(deps)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownStep))

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, domain.StepExtractEntities, verr.Step)
	assert.Contains(t, verr.Error(), "transcribe")
}
