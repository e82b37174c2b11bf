package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ocabr/observatory/internal/domain"
)

// Compile-time interface verification.
var _ GeographyRepository = (*PgGeographyRepository)(nil)

// PgGeographyRepository is a PostgreSQL implementation of GeographyRepository.
type PgGeographyRepository struct {
	db DBTX
}

// NewPgGeographyRepository creates a new PostgreSQL geography repository.
func NewPgGeographyRepository(db DBTX) *PgGeographyRepository {
	return &PgGeographyRepository{db: db}
}

const countrySelect = `
	SELECT id, name_pt, name_en, acron2, acron3, capital
	FROM countries`

// CreateOrUpdateCountry matches the country by its uppercase acron2 and
// inserts or updates it.
func (r *PgGeographyRepository) CreateOrUpdateCountry(ctx context.Context, country *domain.Country) (*domain.Country, domain.UpsertOutcome, error) {
	if country == nil {
		return nil, "", domain.NewValidationError("country", "country cannot be nil")
	}
	country.NormalizeAcronyms()
	if country.Acron2 == "" {
		return nil, "", domain.NewInvalidArgumentError("country", "acron2", "acron2 is required")
	}

	existing := &domain.Country{}
	err := r.db.QueryRow(ctx, countrySelect+` WHERE acron2 = $1`, country.Acron2).Scan(
		&existing.ID, &existing.NamePT, &existing.NameEN,
		&existing.Acron2, &existing.Acron3, &existing.Capital,
	)
	if err == nil {
		query := `
			UPDATE countries SET
				name_pt = COALESCE(NULLIF($2, ''), name_pt),
				name_en = COALESCE(NULLIF($3, ''), name_en),
				acron3 = COALESCE(NULLIF($4, ''), acron3),
				capital = COALESCE(NULLIF($5, ''), capital)
			WHERE id = $1
			RETURNING id, name_pt, name_en, acron2, acron3, capital`
		row := r.db.QueryRow(ctx, query,
			existing.ID, country.NamePT, country.NameEN, country.Acron3, country.Capital)
		updated := &domain.Country{}
		if err := row.Scan(
			&updated.ID, &updated.NamePT, &updated.NameEN,
			&updated.Acron2, &updated.Acron3, &updated.Capital,
		); err != nil {
			return nil, "", fmt.Errorf("failed to update country: %w", err)
		}
		return updated, domain.OutcomeUpdated, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, "", fmt.Errorf("failed to match country: %w", err)
	}

	if country.ID == uuid.Nil {
		country.ID = uuid.New()
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO countries (id, name_pt, name_en, acron2, acron3, capital)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		country.ID, country.NamePT, country.NameEN,
		country.Acron2, country.Acron3, country.Capital)
	if err != nil {
		return nil, "", fmt.Errorf("failed to insert country: %w", err)
	}

	return country, domain.OutcomeCreated, nil
}

// GetCountryByAcron2 retrieves a country by its two-letter acronym.
func (r *PgGeographyRepository) GetCountryByAcron2(ctx context.Context, acron2 string) (*domain.Country, error) {
	if acron2 == "" {
		return nil, domain.NewInvalidArgumentError("country", "acron2", "acron2 is required")
	}
	c := domain.Country{Acron2: acron2}
	c.NormalizeAcronyms()

	country := &domain.Country{}
	err := r.db.QueryRow(ctx, countrySelect+` WHERE acron2 = $1`, c.Acron2).Scan(
		&country.ID, &country.NamePT, &country.NameEN,
		&country.Acron2, &country.Acron3, &country.Capital,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("country", c.Acron2)
		}
		return nil, fmt.Errorf("failed to get country: %w", err)
	}
	return country, nil
}

// FindCountryByName retrieves a country matching either localized name.
func (r *PgGeographyRepository) FindCountryByName(ctx context.Context, name string) (*domain.Country, error) {
	if name == "" {
		return nil, domain.NewInvalidArgumentError("country", "name", "name is required")
	}

	country := &domain.Country{}
	err := r.db.QueryRow(ctx,
		countrySelect+` WHERE LOWER(name_pt) = LOWER($1) OR LOWER(name_en) = LOWER($1)`, name).Scan(
		&country.ID, &country.NamePT, &country.NameEN,
		&country.Acron2, &country.Acron3, &country.Capital,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("country", name)
		}
		return nil, fmt.Errorf("failed to find country by name: %w", err)
	}
	return country, nil
}

// ListCountries retrieves all countries ordered by acron2.
func (r *PgGeographyRepository) ListCountries(ctx context.Context) ([]*domain.Country, error) {
	rows, err := r.db.Query(ctx, countrySelect+` ORDER BY acron2 ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list countries: %w", err)
	}
	defer rows.Close()

	var countries []*domain.Country
	for rows.Next() {
		country := &domain.Country{}
		if err := rows.Scan(
			&country.ID, &country.NamePT, &country.NameEN,
			&country.Acron2, &country.Acron3, &country.Capital,
		); err != nil {
			return nil, fmt.Errorf("failed to scan country: %w", err)
		}
		countries = append(countries, country)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating countries: %w", err)
	}
	return countries, nil
}

// GetOrCreateState matches by (code, country) or inserts.
func (r *PgGeographyRepository) GetOrCreateState(ctx context.Context, state *domain.State) (*domain.State, error) {
	if state == nil {
		return nil, domain.NewValidationError("state", "state cannot be nil")
	}
	if state.Code == "" {
		return nil, domain.NewInvalidArgumentError("state", "code", "code is required")
	}

	existing := &domain.State{}
	err := r.db.QueryRow(ctx, `
		SELECT id, name, code, region, country_id FROM states
		WHERE code = $1 AND country_id = $2`,
		state.Code, state.CountryID).Scan(
		&existing.ID, &existing.Name, &existing.Code, &existing.Region, &existing.CountryID,
	)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to match state: %w", err)
	}

	if state.ID == uuid.Nil {
		state.ID = uuid.New()
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO states (id, name, code, region, country_id)
		VALUES ($1, $2, $3, $4, $5)`,
		state.ID, state.Name, state.Code, state.Region, state.CountryID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert state: %w", err)
	}
	return state, nil
}

// GetOrCreateCity matches by case-insensitive (name, state) or inserts.
func (r *PgGeographyRepository) GetOrCreateCity(ctx context.Context, city *domain.City) (*domain.City, error) {
	if city == nil {
		return nil, domain.NewValidationError("city", "city cannot be nil")
	}
	if city.Name == "" {
		return nil, domain.NewInvalidArgumentError("city", "name", "name is required")
	}

	existing := &domain.City{}
	err := r.db.QueryRow(ctx, `
		SELECT id, name, state_id FROM cities
		WHERE LOWER(name) = LOWER($1) AND state_id = $2`,
		city.Name, city.StateID).Scan(&existing.ID, &existing.Name, &existing.StateID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to match city: %w", err)
	}

	if city.ID == uuid.Nil {
		city.ID = uuid.New()
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO cities (id, name, state_id) VALUES ($1, $2, $3)`,
		city.ID, city.Name, city.StateID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert city: %w", err)
	}
	return city, nil
}

// GetOrCreateLocation matches the exact (city, state, country) triple or
// inserts. NULL components match only NULL.
func (r *PgGeographyRepository) GetOrCreateLocation(ctx context.Context, loc *domain.Location) (*domain.Location, error) {
	if loc == nil {
		return nil, domain.NewValidationError("location", "location cannot be nil")
	}
	if loc.CityID == nil && loc.StateID == nil && loc.CountryID == nil {
		return nil, domain.NewInvalidArgumentError("location", "country_id", "at least one component is required")
	}

	existing := &domain.Location{}
	err := r.db.QueryRow(ctx, `
		SELECT id, city_id, state_id, country_id FROM locations
		WHERE city_id IS NOT DISTINCT FROM $1
			AND state_id IS NOT DISTINCT FROM $2
			AND country_id IS NOT DISTINCT FROM $3`,
		loc.CityID, loc.StateID, loc.CountryID).Scan(
		&existing.ID, &existing.CityID, &existing.StateID, &existing.CountryID,
	)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to match location: %w", err)
	}

	if loc.ID == uuid.Nil {
		loc.ID = uuid.New()
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO locations (id, city_id, state_id, country_id)
		VALUES ($1, $2, $3, $4)`,
		loc.ID, loc.CityID, loc.StateID, loc.CountryID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert location: %w", err)
	}
	return loc, nil
}

// GetLocation retrieves a location with its components resolved.
func (r *PgGeographyRepository) GetLocation(ctx context.Context, id uuid.UUID) (*domain.Location, error) {
	loc := &domain.Location{}
	err := r.db.QueryRow(ctx, `
		SELECT id, city_id, state_id, country_id FROM locations WHERE id = $1`, id).Scan(
		&loc.ID, &loc.CityID, &loc.StateID, &loc.CountryID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("location", id.String())
		}
		return nil, fmt.Errorf("failed to get location: %w", err)
	}

	if loc.CityID != nil {
		city := &domain.City{}
		if err := r.db.QueryRow(ctx,
			`SELECT id, name, state_id FROM cities WHERE id = $1`, *loc.CityID).Scan(
			&city.ID, &city.Name, &city.StateID,
		); err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("failed to resolve city: %w", err)
		} else if err == nil {
			loc.City = city
		}
	}
	if loc.StateID != nil {
		state := &domain.State{}
		if err := r.db.QueryRow(ctx,
			`SELECT id, name, code, region, country_id FROM states WHERE id = $1`, *loc.StateID).Scan(
			&state.ID, &state.Name, &state.Code, &state.Region, &state.CountryID,
		); err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("failed to resolve state: %w", err)
		} else if err == nil {
			loc.State = state
		}
	}
	if loc.CountryID != nil {
		country := &domain.Country{}
		if err := r.db.QueryRow(ctx, countrySelect+` WHERE id = $1`, *loc.CountryID).Scan(
			&country.ID, &country.NamePT, &country.NameEN,
			&country.Acron2, &country.Acron3, &country.Capital,
		); err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("failed to resolve country: %w", err)
		} else if err == nil {
			loc.Country = country
		}
	}

	return loc, nil
}

// ListLocations retrieves all locations with their components resolved
// in a single join.
func (r *PgGeographyRepository) ListLocations(ctx context.Context) ([]*domain.Location, error) {
	rows, err := r.db.Query(ctx, `
		SELECT l.id, l.city_id, l.state_id, l.country_id,
		       ci.name, ci.state_id,
		       st.name, st.code, st.region, st.country_id,
		       co.name_pt, co.name_en, co.acron2, co.acron3, co.capital
		FROM locations l
		LEFT JOIN cities ci ON ci.id = l.city_id
		LEFT JOIN states st ON st.id = l.state_id
		LEFT JOIN countries co ON co.id = l.country_id
		ORDER BY l.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	defer rows.Close()

	var locations []*domain.Location
	for rows.Next() {
		loc := &domain.Location{}
		var cityName, stateName, stateCode, stateRegion *string
		var cityStateID, stateCountryID *uuid.UUID
		var namePT, nameEN, acron2, acron3, capital *string
		if err := rows.Scan(
			&loc.ID, &loc.CityID, &loc.StateID, &loc.CountryID,
			&cityName, &cityStateID,
			&stateName, &stateCode, &stateRegion, &stateCountryID,
			&namePT, &nameEN, &acron2, &acron3, &capital,
		); err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}

		if loc.CityID != nil && cityName != nil {
			loc.City = &domain.City{ID: *loc.CityID, Name: *cityName}
			if cityStateID != nil {
				loc.City.StateID = *cityStateID
			}
		}
		if loc.StateID != nil && stateName != nil {
			loc.State = &domain.State{ID: *loc.StateID, Name: *stateName}
			if stateCode != nil {
				loc.State.Code = *stateCode
			}
			if stateRegion != nil {
				loc.State.Region = *stateRegion
			}
			if stateCountryID != nil {
				loc.State.CountryID = *stateCountryID
			}
		}
		if loc.CountryID != nil && acron2 != nil {
			loc.Country = &domain.Country{ID: *loc.CountryID, Acron2: *acron2}
			if namePT != nil {
				loc.Country.NamePT = *namePT
			}
			if nameEN != nil {
				loc.Country.NameEN = *nameEN
			}
			if acron3 != nil {
				loc.Country.Acron3 = *acron3
			}
			if capital != nil {
				loc.Country.Capital = *capital
			}
		}
		locations = append(locations, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate locations: %w", err)
	}
	return locations, nil
}
