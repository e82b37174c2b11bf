// Package temporal provides Temporal workflow client integration for the
// observatory.
//
// This package handles workflow client initialization, workflow/activity
// registration, and worker lifecycle management.
//
// # Overview
//
// The temporal package provides:
//
//   - Client: Temporal client wrapper for starting/managing workflows
//   - Worker: Worker process for executing workflows and activities
//   - Workflow definitions for harvesting, reconciliation, indicator
//     generation, and index rebuilds
//   - Activity implementations wrapping the domain services
//
// # Client Setup
//
// Create a Temporal client:
//
//	cfg := temporal.ClientConfig{
//	    HostPort:  "localhost:7233",
//	    Namespace: "observatory",
//	    TaskQueue: "observatory-tasks",
//	}
//
//	client, err := temporal.NewClient(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
// # Starting Workflows
//
// Start a harvest run for one source:
//
//	workflowID, runID, err := client.StartHarvest(ctx, temporal.HarvestWorkflowInput{
//	    Source:        "openalex",
//	    PromoteUpdate: true,
//	})
//
// # Worker Setup
//
// Create a worker, register the workflows and activities, then start it:
//
//	manager, err := temporal.NewWorkerManager(client, temporal.DefaultWorkerConfig(cfg.TaskQueue))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	workflows.Register(manager)
//	manager.RegisterActivity(harvestActivities)
//	manager.RegisterActivity(promoteActivities)
//
//	if err := manager.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Workflow Types
//
// The package defines four workflows, each registered under a stable
// public name so schedules and external starters address them by name:
//
//   - HarvestWorkflow ("harvest-source"): pages through one upstream
//     source, promoting every stored page before fetching the next
//   - GenerateIndicatorWorkflow ("generate-indicator"): runs one
//     scheduled indicator task
//   - ReconcileWorkflow ("reconcile-affiliations"): resolves raw
//     affiliation strings against the institution directory
//   - ReindexWorkflow ("rebuild-search-index"): rebuilds the directory
//     search index page by page
//
// # Activity Types
//
// Activities are grouped by responsibility:
//
//   - Harvest activities: run creation, page fetch and store, run completion
//   - Promote activities: raw-to-canonical promotion passes per entity
//   - Reconcile activities: affiliation resolution passes
//   - Indicator activities: frequency and evolution generation
//   - Index activities: mapping setup and bulk index rebuild pages
//
// # Error Handling
//
// Workflows use standard Temporal error handling:
//
//	if temporal.IsWorkflowNotFound(err) {
//	    // Workflow doesn't exist or already completed
//	}
//
//	if temporal.IsWorkflowAlreadyStarted(err) {
//	    // Workflow with same ID is already running
//	}
//
// # Thread Safety
//
// The Temporal client is safe for concurrent use. Workers manage their
// own goroutines for activity execution.
package temporal
