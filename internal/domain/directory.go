package domain

import (
	"time"

	"github.com/google/uuid"
)

// Action is an open-science action category (e.g. open education,
// open data) that directory records and indicators refer to.
type Action struct {
	ID   uuid.UUID
	Name string
}

// Practice is a concrete practice within an action.
type Practice struct {
	ID       uuid.UUID
	Name     string
	ActionID uuid.UUID
}

// AttendanceType enumerates how an event can be attended.
type AttendanceType string

const (
	AttendanceInPerson AttendanceType = "in_person"
	AttendanceOnline   AttendanceType = "online"
	AttendanceHybrid   AttendanceType = "hybrid"
)

// EducationDetails holds the fields specific to education records.
type EducationDetails struct {
	Level     string
	Modality  string
	StartDate *time.Time
	EndDate   *time.Time
}

// EventDetails holds the fields specific to event records. Events name
// their backing institutions "organizations"; the indicator engine maps
// that to the institutions dimension of the other variants.
type EventDetails struct {
	StartDate       *time.Time
	EndDate         *time.Time
	Attendance      AttendanceType
	OrganizationIDs []uuid.UUID
}

// InfrastructureDetails holds the fields specific to infrastructure records.
type InfrastructureDetails struct {
	Acronym string
	URL     string
}

// PolicyDetails holds the fields specific to policy records.
type PolicyDetails struct {
	AdoptionDate *time.Time
	IsMandatory  bool
}

// DirectoryRecord is a curated entry in one of the four directories.
// Type discriminates the variant; exactly one of the detail structs is
// non-nil for a well-formed record.
type DirectoryRecord struct {
	ID                        uuid.UUID
	Type                      DirectoryType
	Title                     string
	Link                      string
	Description               string
	ActionID                  *uuid.UUID
	PracticeID                *uuid.UUID
	Classification            string
	Status                    RecordStatus
	InstitutionalContribution bool

	InstitutionIDs  []uuid.UUID
	LocationIDs     []uuid.UUID
	ThematicAreaIDs []uuid.UUID
	TagIDs          []uuid.UUID

	Education      *EducationDetails
	Event          *EventDetails
	Infrastructure *InfrastructureDetails
	Policy         *PolicyDetails

	Control ControlBlock
}

// Transition validates and applies a record status change. Publishing
// requires staff; a non-staff save moves WIP to TO_MODERATE; published
// records can be reopened by any edit.
func (r *DirectoryRecord) Transition(to RecordStatus, staff bool) error {
	if !to.Valid() {
		return NewValidationError("record_status", "unknown status "+string(to))
	}
	if r.Status == to {
		return nil
	}
	allowed := false
	switch {
	case r.Status == RecordStatusPublished:
		// Any edit may reopen a published record.
		allowed = true
	case to == RecordStatusPublished:
		allowed = staff
	case r.Status == RecordStatusWIP && to == RecordStatusToModerate:
		allowed = true
	case r.Status == RecordStatusToModerate && to == RecordStatusWIP:
		allowed = true
	}
	if !allowed {
		return &InvalidTransitionError{From: r.Status, To: to}
	}
	r.Status = to
	return nil
}

// InitialStatus returns the status a newly created record starts in.
// Non-staff creators go straight to moderation when it is enabled for
// the record's directory.
func InitialStatus(staff, moderationEnabled bool) RecordStatus {
	if !staff && moderationEnabled {
		return RecordStatusToModerate
	}
	return RecordStatusWIP
}
