// Package indicator generates versioned aggregate artifacts over the
// curated directories and the article corpus. Frequency indicators
// count directory records across grouping dimensions; evolution
// indicators follow article counts over a year window. Every generated
// indicator persists its raw source rows as a zipped JSONL archive and
// supersedes the previous CURRENT version of its chain.
package indicator

import (
	"strings"
)

// Canonical grouping dimension names. Directory variants use differing
// attribute names internally (events call their institutions
// "organization"); result rows always carry these canonical names.
const (
	DimClassification      = "classification"
	DimPractice            = "practice"
	DimInstitutions        = "institutions"
	DimThematicAreaLevel0  = "thematic_area_level0"
	DimThematicAreaLevel1  = "thematic_area_level1"
	DimState               = "location.state"
	DimRegion              = "location.region"
	DimOpenAccessStatus    = "open_access_status"
	DimLicense             = "license"
	DimArticleProcessingCh = "apc"
)

// FilterSpec narrows the record population an indicator aggregates
// over. Zero values are wildcards.
type FilterSpec struct {
	ActionName         string `json:"action.name,omitempty"`
	InstitutionName    string `json:"institution.name,omitempty"`
	ThematicAreaLevel0 string `json:"thematic_area.level0,omitempty"`
	ThematicAreaLevel1 string `json:"thematic_area.level1,omitempty"`
	StateCode          string `json:"location.state.code,omitempty"`
	StateRegion        string `json:"location.state.region,omitempty"`
	BeginYear          *int   `json:"begin_year,omitempty"`
	EndYear            *int   `json:"end_year,omitempty"`
}

// Label renders the filter as a short stable description, used in
// indicator titles and schedule names.
func (f FilterSpec) Label() string {
	var parts []string
	if f.ActionName != "" {
		parts = append(parts, f.ActionName)
	}
	if f.InstitutionName != "" {
		parts = append(parts, f.InstitutionName)
	}
	if f.ThematicAreaLevel0 != "" {
		parts = append(parts, f.ThematicAreaLevel0)
	}
	if f.ThematicAreaLevel1 != "" {
		parts = append(parts, f.ThematicAreaLevel1)
	}
	if f.StateCode != "" {
		parts = append(parts, f.StateCode)
	}
	if f.StateRegion != "" {
		parts = append(parts, f.StateRegion)
	}
	if len(parts) == 0 {
		return "all"
	}
	return strings.Join(parts, ", ")
}

// GroupingSpec selects the dimensions an indicator is broken down by.
type GroupingSpec struct {
	ByClassification     bool `json:"by_classification,omitempty"`
	ByPractice           bool `json:"by_practice,omitempty"`
	ByInstitution        bool `json:"by_institution,omitempty"`
	ByThematicAreaLevel0 bool `json:"by_thematic_area_level0,omitempty"`
	ByThematicAreaLevel1 bool `json:"by_thematic_area_level1,omitempty"`
	ByState              bool `json:"by_state,omitempty"`
	ByRegion             bool `json:"by_region,omitempty"`
	ByOpenAccessStatus   bool `json:"by_open_access_status,omitempty"`
	ByLicense            bool `json:"by_license,omitempty"`
	ByAPC                bool `json:"by_apc,omitempty"`
}

// dimensionOrder ranks dimensions from highest to lowest resolution.
// The stack discriminator for a dimension is the highest-resolution
// other enabled dimension.
var dimensionOrder = []string{
	DimPractice,
	DimClassification,
	DimInstitutions,
	DimThematicAreaLevel1,
	DimThematicAreaLevel0,
	DimState,
	DimRegion,
	DimOpenAccessStatus,
	DimLicense,
	DimArticleProcessingCh,
}

// Dimensions lists the enabled dimensions from highest to lowest
// resolution.
func (g GroupingSpec) Dimensions() []string {
	enabled := map[string]bool{
		DimClassification:      g.ByClassification,
		DimPractice:            g.ByPractice,
		DimInstitutions:        g.ByInstitution,
		DimThematicAreaLevel0:  g.ByThematicAreaLevel0,
		DimThematicAreaLevel1:  g.ByThematicAreaLevel1,
		DimState:               g.ByState,
		DimRegion:              g.ByRegion,
		DimOpenAccessStatus:    g.ByOpenAccessStatus,
		DimLicense:             g.ByLicense,
		DimArticleProcessingCh: g.ByAPC,
	}
	var out []string
	for _, dim := range dimensionOrder {
		if enabled[dim] {
			out = append(out, dim)
		}
	}
	return out
}

// Count reports how many dimensions are enabled.
func (g GroupingSpec) Count() int {
	return len(g.Dimensions())
}

// stackDimension picks the discriminator used to split stacks when
// grouping by dim: the highest-resolution other enabled dimension.
func (g GroupingSpec) stackDimension(dim string) string {
	for _, candidate := range g.Dimensions() {
		if candidate != dim {
			return candidate
		}
	}
	return ""
}
