package indicator

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ocabr/observatory/internal/domain"
	"github.com/ocabr/observatory/internal/repository"
)

const refBatchSize = 1000

// refData is the reference snapshot a generation run resolves IDs
// against. Loaded once per run; indicator generation tolerates the
// snapshot lagging behind concurrent writes.
type refData struct {
	actions      map[uuid.UUID]*domain.Action
	practices    map[uuid.UUID]*domain.Practice
	institutions map[uuid.UUID]*domain.Institution
	areas        map[uuid.UUID]*domain.ThematicArea
	locations    map[uuid.UUID]*domain.Location
	licenses     map[uuid.UUID]*domain.License
}

func loadRefData(
	ctx context.Context,
	lookups repository.LookupRepository,
	institutions repository.InstitutionRepository,
	geography repository.GeographyRepository,
) (*refData, error) {
	ref := &refData{
		actions:      make(map[uuid.UUID]*domain.Action),
		practices:    make(map[uuid.UUID]*domain.Practice),
		institutions: make(map[uuid.UUID]*domain.Institution),
		areas:        make(map[uuid.UUID]*domain.ThematicArea),
		locations:    make(map[uuid.UUID]*domain.Location),
		licenses:     make(map[uuid.UUID]*domain.License),
	}

	actions, practices, err := lookups.ListActions(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading actions: %w", err)
	}
	for _, action := range actions {
		ref.actions[action.ID] = action
	}
	for _, practice := range practices {
		ref.practices[practice.ID] = practice
	}

	areas, err := lookups.ListThematicAreas(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading thematic areas: %w", err)
	}
	for _, area := range areas {
		ref.areas[area.ID] = area
	}

	licenses, err := lookups.ListLicenses(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading licenses: %w", err)
	}
	for _, license := range licenses {
		ref.licenses[license.ID] = license
	}

	locations, err := geography.ListLocations(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading locations: %w", err)
	}
	for _, location := range locations {
		ref.locations[location.ID] = location
	}

	offset := 0
	for {
		batch, _, err := institutions.List(ctx, repository.InstitutionFilter{Limit: refBatchSize, Offset: offset})
		if err != nil {
			return nil, fmt.Errorf("loading institutions: %w", err)
		}
		for _, inst := range batch {
			ref.institutions[inst.ID] = inst
		}
		if len(batch) < refBatchSize {
			break
		}
		offset += len(batch)
	}

	return ref, nil
}

// actionByName resolves an action case-insensitively.
func (r *refData) actionByName(name string) *domain.Action {
	for _, action := range r.actions {
		if strings.EqualFold(action.Name, name) {
			return action
		}
	}
	return nil
}

func (r *refData) practiceName(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	if practice, ok := r.practices[*id]; ok {
		return practice.Name
	}
	return ""
}

func (r *refData) institutionNames(ids []uuid.UUID) []string {
	var names []string
	for _, id := range ids {
		if inst, ok := r.institutions[id]; ok {
			names = append(names, inst.Name)
		}
	}
	return names
}

func (r *refData) areaLevels(ids []uuid.UUID) (level0, level1 []string) {
	seen0 := make(map[string]bool)
	seen1 := make(map[string]bool)
	for _, id := range ids {
		area, ok := r.areas[id]
		if !ok {
			continue
		}
		if area.Level0 != "" && !seen0[area.Level0] {
			seen0[area.Level0] = true
			level0 = append(level0, area.Level0)
		}
		if area.Level1 != "" && !seen1[area.Level1] {
			seen1[area.Level1] = true
			level1 = append(level1, area.Level1)
		}
	}
	return level0, level1
}

func (r *refData) stateValues(ids []uuid.UUID) (codes, regions []string) {
	seenCode := make(map[string]bool)
	seenRegion := make(map[string]bool)
	for _, id := range ids {
		location, ok := r.locations[id]
		if !ok || location.State == nil {
			continue
		}
		if location.State.Code != "" && !seenCode[location.State.Code] {
			seenCode[location.State.Code] = true
			codes = append(codes, location.State.Code)
		}
		if location.State.Region != "" && !seenRegion[location.State.Region] {
			seenRegion[location.State.Region] = true
			regions = append(regions, location.State.Region)
		}
	}
	return codes, regions
}

func (r *refData) licenseName(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	if license, ok := r.licenses[*id]; ok {
		return license.Name
	}
	return ""
}
