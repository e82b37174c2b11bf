package indicator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ocabr/observatory/internal/domain"
	"github.com/ocabr/observatory/internal/repository"
)

// row is one aggregated source record with its canonical dimension
// values. Dimensions can be multi-valued (a record linked to several
// institutions counts once per institution).
type row struct {
	axis   string
	values map[string][]string
	item   map[string]any
}

func (r row) dimensionValues(dim string) []string {
	values := r.values[dim]
	if len(values) == 0 {
		return []string{"unknown"}
	}
	return values
}

// collectFrequencyRows walks the published records of every directory
// variant and keeps those matching the filter. Events contribute their
// organizations under the canonical institutions dimension.
func (g *Generator) collectFrequencyRows(ctx context.Context, spec FilterSpec, ref *refData) ([]row, error) {
	var actionID *uuid.UUID
	if spec.ActionName != "" {
		action := ref.actionByName(spec.ActionName)
		if action == nil {
			return nil, nil
		}
		actionID = &action.ID
	}

	var rows []row
	for _, variant := range domain.DirectoryTypes() {
		variant := variant
		offset := 0
		for {
			records, _, err := g.directories.List(ctx, repository.DirectoryFilter{
				Type:     &variant,
				Status:   []domain.RecordStatus{domain.RecordStatusPublished},
				ActionID: actionID,
				Limit:    refBatchSize,
				Offset:   offset,
			})
			if err != nil {
				return nil, fmt.Errorf("listing %s records: %w", variant, err)
			}

			for _, record := range records {
				r := g.frequencyRow(record, ref)
				if matchesFilter(r, record, spec) {
					rows = append(rows, r)
				}
			}

			if len(records) < refBatchSize {
				break
			}
			offset += len(records)
		}
	}
	return rows, nil
}

func (g *Generator) frequencyRow(record *domain.DirectoryRecord, ref *refData) row {
	institutionIDs := record.InstitutionIDs
	if record.Event != nil {
		institutionIDs = append(append([]uuid.UUID{}, institutionIDs...), record.Event.OrganizationIDs...)
	}

	level0, level1 := ref.areaLevels(record.ThematicAreaIDs)
	states, regions := ref.stateValues(record.LocationIDs)
	institutions := ref.institutionNames(institutionIDs)

	values := map[string][]string{
		DimClassification:     nonEmpty(record.Classification),
		DimPractice:           nonEmpty(ref.practiceName(record.PracticeID)),
		DimInstitutions:       institutions,
		DimThematicAreaLevel0: level0,
		DimThematicAreaLevel1: level1,
		DimState:              states,
		DimRegion:             regions,
	}

	item := map[string]any{
		"type":                record.Type,
		"title":               record.Title,
		DimClassification:     record.Classification,
		DimPractice:           ref.practiceName(record.PracticeID),
		DimInstitutions:       institutions,
		DimThematicAreaLevel0: level0,
		DimThematicAreaLevel1: level1,
		DimState:              states,
		DimRegion:             regions,
	}
	if year := recordYear(record); year != nil {
		item["year"] = *year
	}

	return row{axis: string(record.Type), values: values, item: item}
}

// recordYear picks the year a record is attributed to: start date for
// education and events, adoption date for policies. Infrastructure
// records carry no date.
func recordYear(record *domain.DirectoryRecord) *int {
	var date *time.Time
	switch {
	case record.Education != nil:
		date = record.Education.StartDate
	case record.Event != nil:
		date = record.Event.StartDate
	case record.Policy != nil:
		date = record.Policy.AdoptionDate
	}
	if date == nil {
		return nil
	}
	year := date.Year()
	return &year
}

func matchesFilter(r row, record *domain.DirectoryRecord, spec FilterSpec) bool {
	if spec.InstitutionName != "" && !containsFold(r.values[DimInstitutions], spec.InstitutionName) {
		return false
	}
	if spec.ThematicAreaLevel0 != "" && !containsFold(r.values[DimThematicAreaLevel0], spec.ThematicAreaLevel0) {
		return false
	}
	if spec.ThematicAreaLevel1 != "" && !containsFold(r.values[DimThematicAreaLevel1], spec.ThematicAreaLevel1) {
		return false
	}
	if spec.StateCode != "" && !containsFold(r.values[DimState], spec.StateCode) {
		return false
	}
	if spec.StateRegion != "" && !containsFold(r.values[DimRegion], spec.StateRegion) {
		return false
	}
	if spec.BeginYear != nil || spec.EndYear != nil {
		year := recordYear(record)
		if year == nil {
			return false
		}
		if spec.BeginYear != nil && *year < *spec.BeginYear {
			return false
		}
		if spec.EndYear != nil && *year > *spec.EndYear {
			return false
		}
	}
	return true
}

func containsFold(values []string, target string) bool {
	for _, v := range values {
		if strings.EqualFold(v, target) {
			return true
		}
	}
	return false
}

func nonEmpty(v string) []string {
	if v == "" {
		return nil
	}
	return []string{v}
}
