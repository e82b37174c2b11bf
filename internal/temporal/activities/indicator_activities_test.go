package activities

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"github.com/ocabr/observatory/internal/domain"
	"github.com/ocabr/observatory/internal/indicator"
)

type fakeGenerator struct {
	frequency int
	evolution int
	result    *domain.Indicator
	err       error
}

func (f *fakeGenerator) GenerateFrequency(context.Context, indicator.Params) (*domain.Indicator, error) {
	f.frequency++
	return f.result, f.err
}

func (f *fakeGenerator) GenerateEvolution(context.Context, indicator.Params) (*domain.Indicator, error) {
	f.evolution++
	return f.result, f.err
}

func TestGenerateIndicator_Frequency(t *testing.T) {
	suite := &testsuite.WorkflowTestSuite{}
	env := suite.NewTestActivityEnvironment()

	generated := &domain.Indicator{ID: uuid.New()}
	generator := &fakeGenerator{result: generated}
	acts := NewIndicatorActivities(generator)
	env.RegisterActivity(acts.GenerateIndicator)

	result, err := env.ExecuteActivity(acts.GenerateIndicator, indicator.ScheduledTask{
		Measurement: domain.MeasurementFrequency,
	})
	require.NoError(t, err)

	var out GenerateIndicatorResult
	require.NoError(t, result.Get(&out))

	assert.Equal(t, generated.ID, out.IndicatorID)
	assert.False(t, out.Skipped)
	assert.Equal(t, 1, generator.frequency)
	assert.Equal(t, 0, generator.evolution)
}

func TestGenerateIndicator_Evolution(t *testing.T) {
	suite := &testsuite.WorkflowTestSuite{}
	env := suite.NewTestActivityEnvironment()

	generator := &fakeGenerator{result: &domain.Indicator{ID: uuid.New()}}
	acts := NewIndicatorActivities(generator)
	env.RegisterActivity(acts.GenerateIndicator)

	_, err := env.ExecuteActivity(acts.GenerateIndicator, indicator.ScheduledTask{
		Measurement: domain.MeasurementEvolution,
	})
	require.NoError(t, err)

	assert.Equal(t, 0, generator.frequency)
	assert.Equal(t, 1, generator.evolution)
}

func TestGenerateIndicator_BelowThresholdSkips(t *testing.T) {
	suite := &testsuite.WorkflowTestSuite{}
	env := suite.NewTestActivityEnvironment()

	acts := NewIndicatorActivities(&fakeGenerator{})
	env.RegisterActivity(acts.GenerateIndicator)

	result, err := env.ExecuteActivity(acts.GenerateIndicator, indicator.ScheduledTask{
		Measurement: domain.MeasurementFrequency,
	})
	require.NoError(t, err)

	var out GenerateIndicatorResult
	require.NoError(t, result.Get(&out))

	assert.True(t, out.Skipped)
	assert.Equal(t, uuid.Nil, out.IndicatorID)
}

func TestGenerateIndicator_UnknownMeasurement(t *testing.T) {
	suite := &testsuite.WorkflowTestSuite{}
	env := suite.NewTestActivityEnvironment()

	acts := NewIndicatorActivities(&fakeGenerator{})
	env.RegisterActivity(acts.GenerateIndicator)

	_, err := env.ExecuteActivity(acts.GenerateIndicator, indicator.ScheduledTask{
		Measurement: domain.Measurement("MEDIAN"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown measurement")
}
