package domain

import (
	"time"

	"github.com/google/uuid"
)

// Journal is a canonical periodical, deduplicated by ISSN-L when present
// and by case-insensitive name otherwise.
type Journal struct {
	ID        uuid.UUID
	ISSNL     string
	ISSNs     []string
	Name      string
	Publisher string
	IsInDOAJ  bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// License captures the usage terms attached to an article.
type License struct {
	ID          uuid.UUID
	Name        string
	URL         string
	Start       *time.Time
	DelayInDays *int
}

// Concept is a hierarchical subject term attributed to a source.
// ParentIDs is M:N self-referential.
type Concept struct {
	ID              uuid.UUID
	SpecificID      string
	Name            string
	Level           int
	Source          SourceName
	ParentIDs       []uuid.UUID
	ThematicAreaIDs []uuid.UUID
}

// Contributor is an author or other credited person. The identity key is
// (family, given, orcid, affiliations_string); nil ORCID and empty
// affiliation string are matched explicitly, not treated as wildcards.
type Contributor struct {
	ID                 uuid.UUID
	Family             string
	Given              string
	ORCID              *string
	AffiliationsString *string
	AffiliationIDs     []uuid.UUID

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Affiliation is a free-form affiliation string, optionally resolved to
// an official institution and a country by reconciliation.
type Affiliation struct {
	ID         uuid.UUID
	Name       string
	OfficialID *uuid.UUID
	CountryID  *uuid.UUID

	// Score is the k-shingle Jaccard similarity between Name and the
	// matched institution name. Informational only; it does not gate
	// the OfficialID link.
	Score *float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// OpenAccessStatus enumerates the recognized OA colour codes.
type OpenAccessStatus string

const (
	OAStatusGold    OpenAccessStatus = "gold"
	OAStatusGreen   OpenAccessStatus = "green"
	OAStatusHybrid  OpenAccessStatus = "hybrid"
	OAStatusBronze  OpenAccessStatus = "bronze"
	OAStatusDiamond OpenAccessStatus = "diamond"
	OAStatusClosed  OpenAccessStatus = "closed"
)

// Article is the canonical bibliographic record. DOI is the preferred
// identity key with title as the fallback.
type Article struct {
	ID               uuid.UUID
	Title            string
	DOI              string
	Volume           string
	Number           string
	Year             *int
	IsOA             bool
	OpenAccessStatus OpenAccessStatus
	APC              string
	LicenseID        *uuid.UUID
	JournalID        *uuid.UUID

	ContributorIDs []uuid.UUID
	SourceIDs      []uuid.UUID
	ConceptIDs     []uuid.UUID

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks the cross-field constraints on an article.
func (a *Article) Validate() error {
	if a.DOI == "" && a.Title == "" {
		return NewInvalidArgumentError("article", "doi", "doi or title is required")
	}
	if a.IsOA && a.OpenAccessStatus == OAStatusClosed {
		return NewValidationError("open_access_status", "open article cannot have closed status")
	}
	return nil
}
