package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/ocabr/observatory/internal/domain"
)

// LookupRepository manages the reference tables shared across the
// canonical store: sources, licenses, concepts, thematic areas, actions,
// practices and tags.
type LookupRepository interface {
	// GetOrCreateSource matches a source by name or inserts it.
	GetOrCreateSource(ctx context.Context, name domain.SourceName) (*domain.Source, error)

	// GetOrCreateLicense matches a license by name or inserts it. URL,
	// start and delay are filled in when the stored row has none.
	GetOrCreateLicense(ctx context.Context, license *domain.License) (*domain.License, error)

	// ListLicenses retrieves all licenses ordered by name.
	ListLicenses(ctx context.Context) ([]*domain.License, error)

	// CreateOrUpdateConcept matches the concept by its lowercased
	// specific_id and inserts or updates it. Parent and thematic area
	// sets are additive on update.
	CreateOrUpdateConcept(ctx context.Context, concept *domain.Concept) (*domain.Concept, domain.UpsertOutcome, error)

	// GetConceptBySpecificID retrieves a concept by its lowercased
	// source-local identifier.
	// Returns domain.ErrNotFound if no matching concept exists.
	GetConceptBySpecificID(ctx context.Context, specificID string) (*domain.Concept, error)

	// GetOrCreateThematicArea matches the (level0, level1, level2) triple
	// or inserts it.
	GetOrCreateThematicArea(ctx context.Context, area *domain.ThematicArea) (*domain.ThematicArea, error)

	// ListThematicAreas retrieves all thematic areas ordered by hierarchy.
	ListThematicAreas(ctx context.Context) ([]*domain.ThematicArea, error)

	// GetOrCreateAction matches an action by case-insensitive name or inserts it.
	GetOrCreateAction(ctx context.Context, name string) (*domain.Action, error)

	// GetOrCreatePractice matches a practice by case-insensitive name
	// within an action or inserts it.
	GetOrCreatePractice(ctx context.Context, name string, actionID uuid.UUID) (*domain.Practice, error)

	// ListActions retrieves all actions with their practices.
	ListActions(ctx context.Context) ([]*domain.Action, []*domain.Practice, error)

	// GetOrCreateTag matches a tag by case-insensitive name or inserts it.
	GetOrCreateTag(ctx context.Context, name string) (*domain.Tag, error)
}
