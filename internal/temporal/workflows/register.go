package workflows

import (
	"github.com/ocabr/observatory/internal/indicator"
	"github.com/ocabr/observatory/internal/temporal"
)

// Register wires every workflow into the worker under its public name.
// The indicator workflow is registered under indicator.WorkflowName,
// which the scheduler references when it creates schedules.
func Register(m *temporal.WorkerManager) {
	m.RegisterWorkflowWithName(HarvestWorkflow, temporal.HarvestWorkflowName)
	m.RegisterWorkflowWithName(GenerateIndicatorWorkflow, indicator.WorkflowName)
	m.RegisterWorkflowWithName(ReconcileWorkflow, temporal.ReconcileWorkflowName)
	m.RegisterWorkflowWithName(ReindexWorkflow, temporal.ReindexWorkflowName)
}
