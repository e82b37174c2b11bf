// Package domain provides domain models and business logic for the
// OCABr observatory core.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// RecordStatus represents the moderation lifecycle of a directory record.
// These values must match the database enum record_status.
type RecordStatus string

const (
	RecordStatusWIP        RecordStatus = "WIP"
	RecordStatusToModerate RecordStatus = "TO_MODERATE"
	RecordStatusPublished  RecordStatus = "PUBLISHED"
)

// Valid reports whether s is a known record status.
func (s RecordStatus) Valid() bool {
	switch s {
	case RecordStatusWIP, RecordStatusToModerate, RecordStatusPublished:
		return true
	default:
		return false
	}
}

// Validity represents the supersession state of an indicator version.
// These values must match the database enum indicator_validity.
type Validity string

const (
	ValidityCurrent  Validity = "CURRENT"
	ValidityOutdated Validity = "OUTDATED"
)

// Measurement represents the kind of metric an indicator captures.
type Measurement string

const (
	MeasurementFrequency Measurement = "FREQUENCY"
	MeasurementEvolution Measurement = "EVOLUTION"
)

// Scope represents the spatial reach of an indicator.
type Scope string

const (
	ScopeInstitutional      Scope = "INSTITUTIONAL"
	ScopeMunicipal          Scope = "MUNICIPAL"
	ScopeStatewide          Scope = "STATEWIDE"
	ScopeRegional           Scope = "REGIONAL"
	ScopeNational           Scope = "NATIONAL"
	ScopeInterInstitutional Scope = "INTER_INSTITUTIONAL"
	ScopeInterMunicipal     Scope = "INTER_MUNICIPAL"
	ScopeInterStatewide     Scope = "INTER_STATEWIDE"
	ScopeInterRegional      Scope = "INTER_REGIONAL"
)

// DirectoryType discriminates the four curated directory variants.
// These values must match the database enum directory_type.
type DirectoryType string

const (
	DirectoryTypeEducation      DirectoryType = "education"
	DirectoryTypeEvent          DirectoryType = "event"
	DirectoryTypeInfrastructure DirectoryType = "infrastructure"
	DirectoryTypePolicy         DirectoryType = "policy"
)

// DirectoryTypes lists all directory variants in a stable order.
func DirectoryTypes() []DirectoryType {
	return []DirectoryType{
		DirectoryTypeEducation,
		DirectoryTypeEvent,
		DirectoryTypeInfrastructure,
		DirectoryTypePolicy,
	}
}

// SourceName identifies an upstream data provider.
type SourceName string

const (
	SourceOpenAlex  SourceName = "OPENALEX"
	SourceCrossref  SourceName = "CROSSREF"
	SourceUnpaywall SourceName = "UNPAYWALL"
	SourceSucupira  SourceName = "SUCUPIRA"
	SourceSciELO    SourceName = "SCIELO"
	SourceMEC       SourceName = "MEC"
	SourceROR       SourceName = "ROR"
)

// UpsertOutcome reports whether an upsert created a new row or updated one.
type UpsertOutcome string

const (
	OutcomeCreated UpsertOutcome = "created"
	OutcomeUpdated UpsertOutcome = "updated"
)

// ControlBlock carries the bookkeeping columns shared by curated entities.
type ControlBlock struct {
	CreatedAt time.Time
	UpdatedAt time.Time
	CreatedBy string
	UpdatedBy string
}

// Tag is a free keyword attached M:N to directory records and indicators.
type Tag struct {
	ID   uuid.UUID
	Name string
}

// HarvestRun records the bookkeeping of one harvest task execution.
type HarvestRun struct {
	ID           uuid.UUID
	Source       SourceName
	FilterParams string
	StartedAt    time.Time
	FinishedAt   *time.Time
	PagesSeen    int
	RecordsSeen  int
	Failures     int
}
