package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/ocabr/observatory/internal/domain"
)

// GeographyRepository manages countries, states, cities and the locations
// composed of them. Country identity is the uppercase-normalized acron2.
type GeographyRepository interface {
	// CreateOrUpdateCountry matches the country by acron2 (uppercased
	// before compare) and inserts or updates it.
	// Returns domain.ErrInvalidArgument when acron2 is empty.
	CreateOrUpdateCountry(ctx context.Context, country *domain.Country) (*domain.Country, domain.UpsertOutcome, error)

	// GetCountryByAcron2 retrieves a country by its two-letter acronym.
	// Returns domain.ErrNotFound if no matching country exists.
	GetCountryByAcron2(ctx context.Context, acron2 string) (*domain.Country, error)

	// FindCountryByName retrieves a country matching either localized name
	// case-insensitively. Returns domain.ErrNotFound when nothing matches.
	FindCountryByName(ctx context.Context, name string) (*domain.Country, error)

	// ListCountries retrieves all countries ordered by acron2.
	ListCountries(ctx context.Context) ([]*domain.Country, error)

	// GetOrCreateState matches by (code, country) or inserts.
	GetOrCreateState(ctx context.Context, state *domain.State) (*domain.State, error)

	// GetOrCreateCity matches by case-insensitive (name, state) or inserts.
	GetOrCreateCity(ctx context.Context, city *domain.City) (*domain.City, error)

	// GetOrCreateLocation matches the exact (city, state, country) triple,
	// NULLs included, or inserts.
	GetOrCreateLocation(ctx context.Context, loc *domain.Location) (*domain.Location, error)

	// GetLocation retrieves a location with city, state and country resolved.
	GetLocation(ctx context.Context, id uuid.UUID) (*domain.Location, error)

	// ListLocations retrieves all locations with city, state and country
	// resolved, ordered by id.
	ListLocations(ctx context.Context) ([]*domain.Location, error)
}
