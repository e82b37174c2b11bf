// Package search is the gateway over the document store. A registry
// declares, per logical data source, which index backs it and how each
// exposed field aggregates, transforms and displays. The query side
// (filters, autocomplete, indicator time series, journal metrics)
// interprets those declarations instead of hand-building one query per
// screen, and the sync side keeps the directory index aligned with the
// canonical store.
package search

import (
	"fmt"
	"sort"
	"strings"
)

// AggregationType controls how a field is aggregated on the filters
// endpoint.
type AggregationType string

const (
	// AggKeyword buckets the raw keyword values.
	AggKeyword AggregationType = "keyword"
	// AggEnum buckets a closed value set; same query shape as keyword
	// but the display layer treats the buckets as exhaustive.
	AggEnum AggregationType = "enum"
	// AggIgnore excludes the field from aggregation; it still
	// participates in filtering.
	AggIgnore AggregationType = "ignore"
)

// Transform pre-processes incoming filter values before they reach the
// query.
type Transform string

const (
	// TransformBooleanYesNo maps "Yes"/"No" form values to booleans.
	TransformBooleanYesNo Transform = "boolean_yes_no"
	// TransformYearRange expands a (start, end) pair into the
	// inclusive list of years.
	TransformYearRange Transform = "year_range"
)

// DisplayTransform renders bucket keys into user-facing labels.
type DisplayTransform string

const (
	// DisplayCountry maps ISO alpha-2 codes to country names.
	DisplayCountry DisplayTransform = "country"
	// DisplayLanguage maps ISO-639 codes to language names.
	DisplayLanguage DisplayTransform = "language"
	// DisplayBoolean maps true/false to Yes/No.
	DisplayBoolean DisplayTransform = "boolean"
)

// FilterSettings declares how one field aggregates.
type FilterSettings struct {
	AggregationType AggregationType
	Size            int
	// Order is the bucket ordering, "desc" (by count, the default)
	// or "asc" (by key).
	Order     string
	Transform Transform
}

// FieldSettings maps one form field onto the physical index.
type FieldSettings struct {
	// IndexFieldName is the physical field, possibly carrying a
	// .keyword suffix.
	IndexFieldName string
	Filter         FilterSettings

	// AutocompleteField is the search_as_you_type field used for
	// suggestions; empty disables the bool_prefix path.
	AutocompleteField string
	SupportsOperator  bool
	MultipleSelection bool
	Display           DisplayTransform
}

// DataSource binds a logical source name to an index and its exposed
// fields.
type DataSource struct {
	Name string
	// Index is the physical index (or alias) queried.
	Index string
	// YearField is the per-year axis for indicator aggregations.
	YearField string
	// CitedByField holds the citation counter summed per year.
	CitedByField string
	// PeriodicalFields are probed in order for the journal study
	// unit; the first mapped field wins.
	PeriodicalFields []string
	Fields           map[string]FieldSettings
}

// FieldNames lists the form fields in a stable order.
func (d *DataSource) FieldNames() []string {
	names := make([]string, 0, len(d.Fields))
	for name := range d.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PhysicalField resolves a form field to its index field, falling back
// to the form name itself for undeclared fields.
func (d *DataSource) PhysicalField(formField string) string {
	if settings, ok := d.Fields[formField]; ok && settings.IndexFieldName != "" {
		return settings.IndexFieldName
	}
	return formField
}

// documentFields are the settings shared by the OpenAlex-shaped
// article indices (world and brazil differ only in index name).
func documentFields() map[string]FieldSettings {
	return map[string]FieldSettings{
		"publication_year": {
			IndexFieldName: "publication_year",
			Filter:         FilterSettings{AggregationType: AggKeyword, Size: 50, Order: "asc"},
		},
		"document_publication_year": {
			IndexFieldName: "publication_year",
			Filter:         FilterSettings{AggregationType: AggIgnore, Transform: TransformYearRange},
		},
		"document_type": {
			IndexFieldName:    "type.keyword",
			Filter:            FilterSettings{AggregationType: AggKeyword, Size: 20},
			MultipleSelection: true,
		},
		"language": {
			IndexFieldName:    "language.keyword",
			Filter:            FilterSettings{AggregationType: AggKeyword, Size: 50},
			Display:           DisplayLanguage,
			MultipleSelection: true,
		},
		"institution_country": {
			IndexFieldName:    "authorships.institutions.country_code.keyword",
			Filter:            FilterSettings{AggregationType: AggKeyword, Size: 100},
			Display:           DisplayCountry,
			MultipleSelection: true,
		},
		"institution_name": {
			IndexFieldName:    "authorships.institutions.display_name.keyword",
			Filter:            FilterSettings{AggregationType: AggKeyword, Size: 50},
			AutocompleteField: "authorships.institutions.display_name_search_autocomplete",
			MultipleSelection: true,
		},
		"journal": {
			IndexFieldName:    "primary_location.source.display_name.keyword",
			Filter:            FilterSettings{AggregationType: AggKeyword, Size: 50},
			AutocompleteField: "primary_location.source.display_name_search_autocomplete",
			MultipleSelection: true,
		},
		"issn": {
			IndexFieldName: "primary_location.source.issn_l.keyword",
			Filter:         FilterSettings{AggregationType: AggIgnore},
		},
		"is_oa": {
			IndexFieldName: "open_access.is_oa",
			Filter:         FilterSettings{AggregationType: AggEnum, Size: 2, Transform: TransformBooleanYesNo},
			Display:        DisplayBoolean,
		},
		"oa_status": {
			IndexFieldName:    "open_access.oa_status.keyword",
			Filter:            FilterSettings{AggregationType: AggEnum, Size: 10},
			MultipleSelection: true,
		},
		"is_retracted": {
			IndexFieldName: "is_retracted",
			Filter:         FilterSettings{AggregationType: AggEnum, Size: 2, Transform: TransformBooleanYesNo},
			Display:        DisplayBoolean,
		},
		"concept": {
			IndexFieldName:    "concepts.display_name.keyword",
			Filter:            FilterSettings{AggregationType: AggKeyword, Size: 50},
			AutocompleteField: "concepts.display_name_search_autocomplete",
			MultipleSelection: true,
		},
		"apc_paid": {
			IndexFieldName: "apc_paid.value_usd",
			Filter:         FilterSettings{AggregationType: AggIgnore},
		},
		"scope": {
			IndexFieldName: "scope.keyword",
			Filter:         FilterSettings{AggregationType: AggEnum, Size: 10},
		},
	}
}

// Registry returns the data sources the gateway serves. The map is
// rebuilt per call; callers mutate their copy freely (tests shrink
// field sets).
func Registry() map[string]*DataSource {
	sources := map[string]*DataSource{
		"world": {
			Name:             "world",
			Index:            "openalex_works",
			YearField:        "publication_year",
			CitedByField:     "cited_by_count",
			PeriodicalFields: []string{"primary_location.source.issn_l.keyword", "primary_location.source.display_name.keyword"},
			Fields:           documentFields(),
		},
		"brazil": {
			Name:             "brazil",
			Index:            "openalex_works_brazil",
			YearField:        "publication_year",
			CitedByField:     "cited_by_count",
			PeriodicalFields: []string{"primary_location.source.issn_l.keyword", "primary_location.source.display_name.keyword"},
			Fields:           documentFields(),
		},
		"scielo": {
			Name:             "scielo",
			Index:            "scielo_works",
			YearField:        "publication_year",
			CitedByField:     "cited_by_count",
			PeriodicalFields: []string{"issn.keyword", "journal.keyword"},
			Fields: map[string]FieldSettings{
				"publication_year": {
					IndexFieldName: "publication_year",
					Filter:         FilterSettings{AggregationType: AggKeyword, Size: 50, Order: "asc"},
				},
				"journal": {
					IndexFieldName:    "journal.keyword",
					Filter:            FilterSettings{AggregationType: AggKeyword, Size: 50},
					AutocompleteField: "journal_search_autocomplete",
					MultipleSelection: true,
				},
				"issn": {
					IndexFieldName: "issn.keyword",
					Filter:         FilterSettings{AggregationType: AggIgnore},
				},
				"language": {
					IndexFieldName:    "language.keyword",
					Filter:            FilterSettings{AggregationType: AggKeyword, Size: 30},
					Display:           DisplayLanguage,
					MultipleSelection: true,
				},
				"collection": {
					IndexFieldName:    "collection.keyword",
					Filter:            FilterSettings{AggregationType: AggEnum, Size: 30},
					MultipleSelection: true,
				},
				"is_oa": {
					IndexFieldName: "is_oa",
					Filter:         FilterSettings{AggregationType: AggEnum, Size: 2, Transform: TransformBooleanYesNo},
					Display:        DisplayBoolean,
				},
			},
		},
		"social_production": {
			Name:         "social_production",
			Index:        "bronze_social_production",
			YearField:    "year",
			CitedByField: "cited_by_count",
			Fields: map[string]FieldSettings{
				"year": {
					IndexFieldName: "year",
					Filter:         FilterSettings{AggregationType: AggKeyword, Size: 50, Order: "asc"},
				},
				"production_type": {
					IndexFieldName:    "production_type.keyword",
					Filter:            FilterSettings{AggregationType: AggEnum, Size: 20},
					MultipleSelection: true,
				},
				"institution": {
					IndexFieldName:    "institution.keyword",
					Filter:            FilterSettings{AggregationType: AggKeyword, Size: 50},
					AutocompleteField: "institution_search_autocomplete",
					MultipleSelection: true,
				},
				"state": {
					IndexFieldName:    "state.keyword",
					Filter:            FilterSettings{AggregationType: AggKeyword, Size: 30},
					MultipleSelection: true,
				},
				"language": {
					IndexFieldName: "language.keyword",
					Filter:         FilterSettings{AggregationType: AggKeyword, Size: 30},
					Display:        DisplayLanguage,
				},
			},
		},
		"journal_metrics": {
			Name:         "journal_metrics",
			Index:        "journal_metrics",
			YearField:    "publication_year",
			CitedByField: "citations_count",
			Fields: map[string]FieldSettings{
				"publication_year": {
					IndexFieldName: "publication_year.keyword",
					Filter:         FilterSettings{AggregationType: AggKeyword, Size: 50, Order: "asc"},
				},
				"category_level": {
					IndexFieldName: "category_level.keyword",
					Filter:         FilterSettings{AggregationType: AggEnum, Size: 10},
				},
				"category_name": {
					IndexFieldName:    "category_name.keyword",
					Filter:            FilterSettings{AggregationType: AggKeyword, Size: 100},
					AutocompleteField: "category_name_search_autocomplete",
					MultipleSelection: true,
				},
				"issn": {
					IndexFieldName: "issn.keyword",
					Filter:         FilterSettings{AggregationType: AggIgnore},
				},
				"journal_title": {
					IndexFieldName:    "journal_title.keyword",
					Filter:            FilterSettings{AggregationType: AggKeyword, Size: 50},
					AutocompleteField: "journal_title_search_autocomplete",
					MultipleSelection: true,
				},
			},
		},
	}
	return sources
}

// LookupDataSource resolves a data source by name.
func LookupDataSource(name string) (*DataSource, error) {
	source, ok := Registry()[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown data source %q", name)
	}
	return source, nil
}
