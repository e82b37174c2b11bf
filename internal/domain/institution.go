package domain

import (
	"time"

	"github.com/google/uuid"
)

// Institution is an official organization record from an authoritative
// registry. (name, source, location) is the identity key.
type Institution struct {
	ID              uuid.UUID
	Name            string
	Acronym         string
	InstitutionType string
	LocationID      *uuid.UUID
	Source          SourceName

	Location *Location

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SourceInstitution is the per-source institution record referenced by
// authorship metadata, with multilingual display names.
type SourceInstitution struct {
	ID          uuid.UUID
	SpecificID  string
	Source      SourceName
	Name        string
	CountryCode string
	OfficialID  *uuid.UUID

	Translations []SourceInstitutionTranslation

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SourceInstitutionTranslation is a localized display name, keyed by
// ISO-639 language code within its parent record.
type SourceInstitutionTranslation struct {
	ID                  uuid.UUID
	SourceInstitutionID uuid.UUID
	Language            string
	Name                string
}
