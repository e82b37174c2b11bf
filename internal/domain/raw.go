package domain

import (
	"time"

	"github.com/google/uuid"
)

// RawArticle is the immutable-on-content snapshot of an upstream
// bibliographic record. (SpecificID, Source) is unique; re-harvesting
// the same SpecificID updates the row in place.
type RawArticle struct {
	ID         uuid.UUID
	SpecificID string
	Source     SourceName
	Payload    []byte

	// Denormalized convenience fields extracted at harvest time.
	DOI   string
	Title string
	Year  *int

	// Timestamps as reported by the upstream source.
	SourceCreated *time.Time
	SourceUpdated *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// RawInstitution is the snapshot of an upstream institution record.
type RawInstitution struct {
	ID          uuid.UUID
	SpecificID  string
	Source      SourceName
	Payload     []byte
	Name        string
	CountryCode string

	SourceCreated *time.Time
	SourceUpdated *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// RawJournal is the snapshot of an upstream journal/source record.
type RawJournal struct {
	ID         uuid.UUID
	SpecificID string
	Source     SourceName
	Payload    []byte
	ISSNL      string
	Name       string

	SourceCreated *time.Time
	SourceUpdated *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}
