package indicator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"

	"github.com/ocabr/observatory/internal/domain"
)

// WorkflowName is the workflow type every indicator schedule triggers.
// The worker registers its generation workflow under this name.
const WorkflowName = "generate-indicator"

// ScheduledTask is the argument a scheduled workflow run receives.
type ScheduledTask struct {
	Measurement domain.Measurement `json:"measurement"`
	Params      Params             `json:"params"`

	// Priority orders task execution: 1 plus the grouping count, so
	// more constrained tasks run first.
	Priority int `json:"priority"`
}

// Scheduler registers one periodic Temporal schedule per indicator
// combination. Schedule IDs are derived from the action, filter and
// groupings, so re-running the enumeration replaces existing schedules
// instead of stacking duplicates.
type Scheduler struct {
	schedules client.ScheduleClient
	taskQueue string
	interval  time.Duration
	logger    zerolog.Logger
}

// NewScheduler creates a scheduler over a Temporal client.
func NewScheduler(c client.Client, taskQueue string, interval time.Duration, logger zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Scheduler{
		schedules: c.ScheduleClient(),
		taskQueue: taskQueue,
		interval:  interval,
		logger:    logger.With().Str("component", "indicator-scheduler").Logger(),
	}
}

// ScheduleTasks enumerates actions x filters x grouping sets and
// registers a schedule for each combination in both measurement
// families. Evolution combinations without OA groupings are skipped;
// frequency combinations without directory groupings likewise.
func (s *Scheduler) ScheduleTasks(ctx context.Context, actions []*domain.Action, filters []FilterSpec, groupingSets []GroupingSpec) (int, error) {
	if len(filters) == 0 {
		filters = []FilterSpec{{}}
	}

	registered := 0
	for _, action := range actions {
		for _, filter := range filters {
			filter.ActionName = action.Name
			for _, groupings := range groupingSets {
				if groupings.Count() == 0 {
					continue
				}
				task := ScheduledTask{
					Measurement: measurementFor(groupings),
					Params:      Params{Filters: filter, Groupings: groupings},
					Priority:    1 + groupings.Count(),
				}
				if err := s.register(ctx, task); err != nil {
					return registered, err
				}
				registered++
			}
		}
	}

	s.logger.Info().Int("schedules", registered).Msg("indicator schedules registered")
	return registered, nil
}

// register creates the schedule, replacing a previous registration
// under the same ID.
func (s *Scheduler) register(ctx context.Context, task ScheduledTask) error {
	id := scheduleID(task)
	options := client.ScheduleOptions{
		ID: id,
		Spec: client.ScheduleSpec{
			Intervals: []client.ScheduleIntervalSpec{{Every: s.interval}},
		},
		Action: &client.ScheduleWorkflowAction{
			ID:        id,
			Workflow:  WorkflowName,
			TaskQueue: s.taskQueue,
			Args:      []interface{}{task},
		},
	}

	_, err := s.schedules.Create(ctx, options)
	if errors.Is(err, temporal.ErrScheduleAlreadyRunning) {
		if err := s.schedules.GetHandle(ctx, id).Delete(ctx); err != nil {
			return fmt.Errorf("replacing schedule %s: %w", id, err)
		}
		_, err = s.schedules.Create(ctx, options)
	}
	if err != nil {
		return fmt.Errorf("creating schedule %s: %w", id, err)
	}

	s.logger.Debug().Str("schedule_id", id).Int("priority", task.Priority).Msg("schedule registered")
	return nil
}

// measurementFor picks the family a grouping set belongs to: article
// dimensions make it an evolution task, directory dimensions a
// frequency task.
func measurementFor(groupings GroupingSpec) domain.Measurement {
	if groupings.ByOpenAccessStatus || groupings.ByLicense || groupings.ByAPC {
		return domain.MeasurementEvolution
	}
	return domain.MeasurementFrequency
}

// scheduleID derives the stable schedule identity from the task.
func scheduleID(task ScheduledTask) string {
	return fmt.Sprintf("indicator-%s-%s-%s",
		domain.Slugify(string(task.Measurement)),
		domain.Slugify(task.Params.Filters.Label()),
		domain.Slugify(dimensionsLabel(task.Params.Groupings)),
	)
}
