// Package reconcile completes affiliation links using ordered
// heuristics over the canonical store.
//
// An affiliation arrives from harvest as a free-form string. Four
// passes try to attach an official institution and a country to it,
// strongest first:
//
//  1. MEC institution name contained in the affiliation string.
//  2. Country capital plus either localized country name contained.
//  3. Location state or city name combined with a country name.
//  4. MEC institution acronym contained.
//
// Every pass only fills targets that are still null, so a repeated run
// changes nothing.
package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ocabr/observatory/internal/domain"
	"github.com/ocabr/observatory/internal/observability"
	"github.com/ocabr/observatory/internal/repository"
)

const affiliationBatchSize = 500

// Options bounds one reconciliation run.
type Options struct {
	// Force re-resolves affiliations that already carry links.
	Force bool
}

// Stats summarizes one reconciliation run.
type Stats struct {
	// Resolved counts affiliation updates per pass name.
	Resolved map[string]int
	// UnresolvedOfficial and UnresolvedCountry are the gauge values
	// after the final pass.
	UnresolvedOfficial int64
	UnresolvedCountry  int64
}

// Reconciler runs the heuristic passes.
type Reconciler struct {
	contributors repository.ContributorRepository
	institutions repository.InstitutionRepository
	geography    repository.GeographyRepository
	logger       zerolog.Logger
	metrics      *observability.Metrics
}

// New creates a reconciler.
func New(
	contributors repository.ContributorRepository,
	institutions repository.InstitutionRepository,
	geography repository.GeographyRepository,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *Reconciler {
	return &Reconciler{
		contributors: contributors,
		institutions: institutions,
		geography:    geography,
		logger:       logger.With().Str("component", "reconciler").Logger(),
		metrics:      metrics,
	}
}

// matcher inspects one affiliation name and returns the links it can
// contribute. Nil results mean no match.
type matcher func(name string) (officialID, countryID *uuid.UUID, score *float64)

// Run executes the four passes in order and reports the remaining
// unresolved counts.
func (r *Reconciler) Run(ctx context.Context, opts Options) (*Stats, error) {
	stats := &Stats{Resolved: make(map[string]int)}

	passes := []struct {
		name  string
		build func(ctx context.Context) (matcher, error)
	}{
		{name: "institution_name", build: r.institutionNameMatcher},
		{name: "country_capital", build: r.countryCapitalMatcher},
		{name: "location_components", build: r.locationMatcher},
		{name: "institution_acronym", build: r.institutionAcronymMatcher},
	}

	for _, pass := range passes {
		match, err := pass.build(ctx)
		if err != nil {
			return stats, fmt.Errorf("preparing pass %s: %w", pass.name, err)
		}

		resolved, err := r.runPass(ctx, pass.name, match, opts)
		if err != nil {
			return stats, fmt.Errorf("running pass %s: %w", pass.name, err)
		}
		stats.Resolved[pass.name] = resolved

		if r.metrics != nil {
			r.metrics.RecordReconciliationPass(pass.name, int64(resolved))
		}
		if err := r.emitUnresolved(ctx, stats); err != nil {
			return stats, err
		}
	}

	r.logger.Info().
		Interface("resolved", stats.Resolved).
		Int64("unresolved_official", stats.UnresolvedOfficial).
		Int64("unresolved_country", stats.UnresolvedCountry).
		Msg("reconciliation finished")
	return stats, nil
}

// runPass walks the unresolved affiliations in batches and applies the
// matcher to each. With Force it walks every affiliation instead.
func (r *Reconciler) runPass(ctx context.Context, name string, match matcher, opts Options) (int, error) {
	resolved := 0
	offset := 0
	for {
		if err := ctx.Err(); err != nil {
			return resolved, err
		}

		var affiliations []*domain.Affiliation
		var err error
		if opts.Force {
			affiliations, _, err = r.contributors.ListAffiliations(ctx, affiliationBatchSize, offset)
		} else {
			affiliations, _, err = r.contributors.ListUnresolvedAffiliations(ctx, affiliationBatchSize, offset)
		}
		if err != nil {
			return resolved, fmt.Errorf("listing affiliations: %w", err)
		}
		if len(affiliations) == 0 {
			break
		}

		removed := 0
		for _, affiliation := range affiliations {
			officialID, countryID, score := match(affiliation.Name)
			if officialID == nil && countryID == nil {
				continue
			}
			if !opts.Force {
				// Without force the repository fills null columns only,
				// so links set by an earlier (stronger) pass survive.
				// Skip rows the match cannot change.
				if affiliation.OfficialID != nil {
					officialID = nil
				}
				if affiliation.CountryID != nil {
					countryID = nil
				}
				if officialID == nil && countryID == nil {
					continue
				}
			}

			if err := r.contributors.ResolveAffiliation(ctx, affiliation.ID, officialID, countryID, score, opts.Force); err != nil {
				r.logger.Error().Err(err).Str("affiliation_id", affiliation.ID.String()).Str("pass", name).Msg("failed to resolve affiliation")
				continue
			}
			resolved++
			if (affiliation.OfficialID != nil || officialID != nil) &&
				(affiliation.CountryID != nil || countryID != nil) {
				removed++
			}
		}

		// Rows that now hold both links leave the unresolved set,
		// shifting the remainder towards the current offset. Under
		// Force the listing covers all rows and nothing shifts.
		if opts.Force {
			offset += len(affiliations)
		} else {
			offset += len(affiliations) - removed
		}
		if len(affiliations) < affiliationBatchSize {
			break
		}
	}
	return resolved, nil
}

func (r *Reconciler) emitUnresolved(ctx context.Context, stats *Stats) error {
	official, country, err := r.contributors.CountUnresolved(ctx)
	if err != nil {
		return fmt.Errorf("counting unresolved affiliations: %w", err)
	}
	stats.UnresolvedOfficial = official
	stats.UnresolvedCountry = country
	if r.metrics != nil {
		r.metrics.RecordUnresolved(official, country)
	}
	return nil
}

// institutionNameMatcher links affiliations containing the full name of
// a MEC institution with complete country metadata.
func (r *Reconciler) institutionNameMatcher(ctx context.Context) (matcher, error) {
	institutions, err := r.listMECInstitutions(ctx)
	if err != nil {
		return nil, err
	}

	type candidate struct {
		id        uuid.UUID
		name      string
		lower     string
		countryID *uuid.UUID
	}
	var candidates []candidate
	for _, inst := range institutions {
		countryID := institutionCountryID(inst)
		if inst.Name == "" || countryID == nil {
			continue
		}
		candidates = append(candidates, candidate{
			id:        inst.ID,
			name:      inst.Name,
			lower:     strings.ToLower(inst.Name),
			countryID: countryID,
		})
	}

	return func(name string) (*uuid.UUID, *uuid.UUID, *float64) {
		lower := strings.ToLower(name)
		for _, c := range candidates {
			if strings.Contains(lower, c.lower) {
				id := c.id
				score := ShingleSimilarity(name, c.name)
				return &id, c.countryID, &score
			}
		}
		return nil, nil, nil
	}, nil
}

// countryCapitalMatcher links a country to affiliations containing both
// its capital and one of its localized names.
func (r *Reconciler) countryCapitalMatcher(ctx context.Context) (matcher, error) {
	countries, err := r.geography.ListCountries(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing countries: %w", err)
	}

	return func(name string) (*uuid.UUID, *uuid.UUID, *float64) {
		lower := strings.ToLower(name)
		for _, country := range countries {
			if country.Capital == "" || country.NamePT == "" || country.NameEN == "" {
				continue
			}
			if !strings.Contains(lower, strings.ToLower(country.Capital)) {
				continue
			}
			if strings.Contains(lower, strings.ToLower(country.NamePT)) || strings.Contains(lower, strings.ToLower(country.NameEN)) {
				id := country.ID
				return nil, &id, nil
			}
		}
		return nil, nil, nil
	}, nil
}

// locationMatcher links a country to affiliations matching any pairing
// of {state, city} with either localized country name.
func (r *Reconciler) locationMatcher(ctx context.Context) (matcher, error) {
	locations, err := r.geography.ListLocations(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing locations: %w", err)
	}

	return func(name string) (*uuid.UUID, *uuid.UUID, *float64) {
		lower := strings.ToLower(name)
		for _, loc := range locations {
			if loc.Country == nil || loc.CountryID == nil {
				continue
			}
			countryNames := nonEmptyLower(loc.Country.NamePT, loc.Country.NameEN)
			if len(countryNames) == 0 {
				continue
			}
			var places []string
			if loc.State != nil {
				places = append(places, nonEmptyLower(loc.State.Name)...)
			}
			if loc.City != nil {
				places = append(places, nonEmptyLower(loc.City.Name)...)
			}
			for _, place := range places {
				if !strings.Contains(lower, place) {
					continue
				}
				for _, countryName := range countryNames {
					if strings.Contains(lower, countryName) {
						id := *loc.CountryID
						return nil, &id, nil
					}
				}
			}
		}
		return nil, nil, nil
	}, nil
}

// institutionAcronymMatcher links affiliations containing the acronym
// of a MEC institution. Weakest pass, runs last.
func (r *Reconciler) institutionAcronymMatcher(ctx context.Context) (matcher, error) {
	institutions, err := r.listMECInstitutions(ctx)
	if err != nil {
		return nil, err
	}

	return func(name string) (*uuid.UUID, *uuid.UUID, *float64) {
		for _, inst := range institutions {
			if inst.Acronym == "" {
				continue
			}
			if strings.Contains(name, inst.Acronym) {
				id := inst.ID
				score := ShingleSimilarity(name, inst.Name)
				return &id, institutionCountryID(inst), &score
			}
		}
		return nil, nil, nil
	}, nil
}

func (r *Reconciler) listMECInstitutions(ctx context.Context) ([]*domain.Institution, error) {
	var all []*domain.Institution
	offset := 0
	for {
		source := domain.SourceMEC
		batch, _, err := r.institutions.List(ctx, repository.InstitutionFilter{
			Source: &source,
			Limit:  affiliationBatchSize,
			Offset: offset,
		})
		if err != nil {
			return nil, fmt.Errorf("listing MEC institutions: %w", err)
		}
		all = append(all, batch...)
		if len(batch) < affiliationBatchSize {
			return all, nil
		}
		offset += len(batch)
	}
}

// institutionCountryID extracts the country of an institution's
// resolved location, if any.
func institutionCountryID(inst *domain.Institution) *uuid.UUID {
	if inst.Location == nil || inst.Location.CountryID == nil {
		return nil
	}
	id := *inst.Location.CountryID
	return &id
}

func nonEmptyLower(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, strings.ToLower(v))
		}
	}
	return out
}
