package activities

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"

	"github.com/ocabr/observatory/internal/domain"
	"github.com/ocabr/observatory/internal/indicator"
)

// IndicatorGenerator is the generator subset the activity uses.
type IndicatorGenerator interface {
	GenerateFrequency(ctx context.Context, params indicator.Params) (*domain.Indicator, error)
	GenerateEvolution(ctx context.Context, params indicator.Params) (*domain.Indicator, error)
}

// IndicatorActivities executes one scheduled indicator task.
type IndicatorActivities struct {
	generator IndicatorGenerator
}

// NewIndicatorActivities creates the indicator activity set.
func NewIndicatorActivities(generator IndicatorGenerator) *IndicatorActivities {
	return &IndicatorActivities{generator: generator}
}

// GenerateIndicatorResult is the serializable result of one task run.
type GenerateIndicatorResult struct {
	// IndicatorID is the persisted version, uuid.Nil when the run was
	// skipped for being below the minimum item threshold.
	IndicatorID uuid.UUID
	Skipped     bool
}

// GenerateIndicator runs the task's measurement family. A below
// threshold population is a successful no-op, not an error; the
// schedule fires again on the next interval.
func (a *IndicatorActivities) GenerateIndicator(ctx context.Context, task indicator.ScheduledTask) (*GenerateIndicatorResult, error) {
	logger := activity.GetLogger(ctx)

	var (
		result *domain.Indicator
		err    error
	)
	switch task.Measurement {
	case domain.MeasurementFrequency:
		result, err = a.generator.GenerateFrequency(ctx, task.Params)
	case domain.MeasurementEvolution:
		result, err = a.generator.GenerateEvolution(ctx, task.Params)
	default:
		return nil, fmt.Errorf("unknown measurement %q", task.Measurement)
	}
	if err != nil {
		return nil, err
	}

	if result == nil {
		logger.Info("indicator below threshold, skipped", "measurement", string(task.Measurement))
		return &GenerateIndicatorResult{Skipped: true}, nil
	}

	logger.Info("indicator generated",
		"measurement", string(task.Measurement), "indicatorID", result.ID.String())
	return &GenerateIndicatorResult{IndicatorID: result.ID}, nil
}
