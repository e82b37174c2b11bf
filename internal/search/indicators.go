package search

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// StudyUnit selects the unit indicator ratios are computed over.
type StudyUnit string

const (
	StudyUnitDocument StudyUnit = "document"
	StudyUnitJournal  StudyUnit = "journal"
)

// baselinePreservedFilters are the filter keys kept when computing the
// comparative baseline. Any other active key triggers the second,
// baseline-only query.
var baselinePreservedFilters = map[string]bool{
	"scope":            true,
	"publication_year": true,
}

func baselinePreserved(key string) bool {
	if baselinePreservedFilters[key] {
		return true
	}
	return strings.HasPrefix(key, "document_publication_year")
}

// IndicatorDataRequest asks for the per-year series of a data source
// under a filter selection.
type IndicatorDataRequest struct {
	DataSource        string
	Filters           map[string][]string
	BreakdownVariable string
	StudyUnit         StudyUnit
}

// YearPoint is the aggregate of one publication year.
type YearPoint struct {
	Year              string  `json:"year"`
	Docs              int64   `json:"docs"`
	TotalCitations    float64 `json:"total_citations"`
	DocsWithCitations int64   `json:"docs_with_citations"`

	// Journal study unit only.
	UniquePeriodicals       int64   `json:"unique_periodicals,omitempty"`
	DocsPerPeriodical       float64 `json:"docs_per_periodical,omitempty"`
	CitationsPerPeriodical  float64 `json:"citations_per_periodical,omitempty"`
	CitedDocsPerPeriodical  float64 `json:"cited_docs_per_periodical,omitempty"`
	PctPeriodicalsWithCited float64 `json:"pct_periodicals_with_citations,omitempty"`

	Breakdown map[string]BreakdownPoint `json:"breakdown,omitempty"`
}

// BreakdownPoint is one breakdown slice inside a year.
type BreakdownPoint struct {
	Docs              int64   `json:"docs"`
	TotalCitations    float64 `json:"total_citations"`
	DocsWithCitations int64   `json:"docs_with_citations"`
}

// RelativeMetrics is the comparative-baseline overlay: the same series
// computed with only the baseline-preserved filters, plus the list of
// filter keys that were dropped to get there.
type RelativeMetrics struct {
	Enabled         bool        `json:"enabled"`
	ComparedFilters []string    `json:"compared_filters"`
	Years           []YearPoint `json:"years"`
}

// IndicatorData is the full time-series payload.
type IndicatorData struct {
	DataSource      string           `json:"data_source"`
	StudyUnit       StudyUnit        `json:"study_unit"`
	Years           []YearPoint      `json:"years"`
	RelativeMetrics *RelativeMetrics `json:"relative_metrics,omitempty"`
}

// GetIndicatorData aggregates documents per publication year with
// citation sums and an optional breakdown. When the filter selection
// goes beyond the baseline-preserved keys, a second query with only
// those keys provides the relative-metrics overlay.
func (g *Gateway) GetIndicatorData(ctx context.Context, req IndicatorDataRequest) (*IndicatorData, error) {
	source, err := g.dataSource(req.DataSource)
	if err != nil {
		return nil, err
	}
	if req.StudyUnit == "" {
		req.StudyUnit = StudyUnitDocument
	}
	if req.StudyUnit != StudyUnitDocument && req.StudyUnit != StudyUnitJournal {
		return nil, fmt.Errorf("invalid study unit %q", req.StudyUnit)
	}

	started := time.Now()
	years, err := g.queryYears(ctx, source, req.Filters, req.BreakdownVariable, req.StudyUnit)
	if err != nil {
		return nil, err
	}

	result := &IndicatorData{DataSource: source.Name, StudyUnit: req.StudyUnit, Years: years}

	if baseline, compared := baselineFilters(req.Filters); baseline != nil {
		relative, err := g.queryYears(ctx, source, baseline, "", req.StudyUnit)
		if err != nil {
			// The primary series still renders without the overlay.
			g.logger.Warn().Err(err).Str("data_source", source.Name).Msg("baseline query for relative metrics failed")
		} else {
			result.RelativeMetrics = &RelativeMetrics{
				Enabled:         true,
				ComparedFilters: compared,
				Years:           relative,
			}
		}
	}

	if g.metrics != nil {
		g.metrics.RecordGatewayQuery("indicator_data", source.Name, time.Since(started).Seconds())
	}
	return result, nil
}

// baselineFilters returns the baseline-preserved subset and the sorted
// keys that were dropped, or nil when the selection already is the
// baseline (no overlay needed).
func baselineFilters(filters map[string][]string) (map[string][]string, []string) {
	baseline := make(map[string][]string)
	var compared []string
	for key, values := range filters {
		if baselinePreserved(key) {
			baseline[key] = values
		} else if len(values) > 0 {
			compared = append(compared, key)
		}
	}
	if len(compared) == 0 {
		return nil, nil
	}
	sort.Strings(compared)
	return baseline, compared
}

func (g *Gateway) queryYears(ctx context.Context, source *DataSource, filters map[string][]string, breakdown string, unit StudyUnit) ([]YearPoint, error) {
	perYear := map[string]any{
		"terms": map[string]any{
			"field": source.YearField,
			"size":  200,
			"order": map[string]any{"_key": "asc"},
		},
		"aggs": g.yearSubAggs(source, breakdown, unit),
	}

	body := map[string]any{
		"size": 0,
		"aggs": map[string]any{"per_year": perYear},
	}
	if filter := translateFilters(source, filters); len(filter) > 0 {
		body["query"] = map[string]any{"bool": map[string]any{"filter": filter}}
	}

	res, err := g.client.Search(ctx, source.Index, body)
	if err != nil {
		return nil, err
	}
	return parseYearAggs(res.Aggregations["per_year"], source, unit)
}

func (g *Gateway) yearSubAggs(source *DataSource, breakdown string, unit StudyUnit) map[string]any {
	subAggs := map[string]any{
		"total_citations": map[string]any{
			"sum": map[string]any{"field": source.CitedByField},
		},
		"docs_with_citations": map[string]any{
			"filter": map[string]any{
				"range": map[string]any{source.CitedByField: map[string]any{"gt": 0}},
			},
		},
	}

	if unit == StudyUnitJournal {
		subAggs["unique_periodicals"] = map[string]any{
			"cardinality": map[string]any{"field": g.periodicalField(source)},
		}
		subAggs["periodicals_with_citations"] = map[string]any{
			"filter": map[string]any{
				"range": map[string]any{source.CitedByField: map[string]any{"gt": 0}},
			},
			"aggs": map[string]any{
				"count": map[string]any{
					"cardinality": map[string]any{"field": g.periodicalField(source)},
				},
			},
		}
	}

	if breakdown != "" {
		subAggs["breakdown"] = map[string]any{
			"terms": map[string]any{"field": source.PhysicalField(breakdown), "size": 50},
			"aggs": map[string]any{
				"total_citations": map[string]any{
					"sum": map[string]any{"field": source.CitedByField},
				},
				"docs_with_citations": map[string]any{
					"filter": map[string]any{
						"range": map[string]any{source.CitedByField: map[string]any{"gt": 0}},
					},
				},
			},
		}
	}
	return subAggs
}

// periodicalField picks the first declared periodical identity field.
func (g *Gateway) periodicalField(source *DataSource) string {
	if len(source.PeriodicalFields) > 0 {
		return source.PeriodicalFields[0]
	}
	return "issn.keyword"
}

type yearBucket struct {
	Key            any    `json:"key"`
	KeyAsString    string `json:"key_as_string"`
	DocCount       int64  `json:"doc_count"`
	TotalCitations struct {
		Value float64 `json:"value"`
	} `json:"total_citations"`
	DocsWithCitations struct {
		DocCount int64 `json:"doc_count"`
	} `json:"docs_with_citations"`
	UniquePeriodicals struct {
		Value int64 `json:"value"`
	} `json:"unique_periodicals"`
	PeriodicalsWithCitations struct {
		Count struct {
			Value int64 `json:"value"`
		} `json:"count"`
	} `json:"periodicals_with_citations"`
	Breakdown struct {
		Buckets []struct {
			Key            any    `json:"key"`
			KeyAsString    string `json:"key_as_string"`
			DocCount       int64  `json:"doc_count"`
			TotalCitations struct {
				Value float64 `json:"value"`
			} `json:"total_citations"`
			DocsWithCitations struct {
				DocCount int64 `json:"doc_count"`
			} `json:"docs_with_citations"`
		} `json:"buckets"`
	} `json:"breakdown"`
}

func parseYearAggs(raw json.RawMessage, source *DataSource, unit StudyUnit) ([]YearPoint, error) {
	if raw == nil {
		return nil, nil
	}
	var agg struct {
		Buckets []yearBucket `json:"buckets"`
	}
	if err := json.Unmarshal(raw, &agg); err != nil {
		return nil, fmt.Errorf("decoding per-year aggregation: %w", err)
	}

	points := make([]YearPoint, 0, len(agg.Buckets))
	for _, bucket := range agg.Buckets {
		point := YearPoint{
			Year:              bucketKey(bucket.KeyAsString, bucket.Key),
			Docs:              bucket.DocCount,
			TotalCitations:    bucket.TotalCitations.Value,
			DocsWithCitations: bucket.DocsWithCitations.DocCount,
		}

		if unit == StudyUnitJournal {
			point.UniquePeriodicals = bucket.UniquePeriodicals.Value
			if point.UniquePeriodicals > 0 {
				n := float64(point.UniquePeriodicals)
				point.DocsPerPeriodical = float64(point.Docs) / n
				point.CitationsPerPeriodical = point.TotalCitations / n
				point.CitedDocsPerPeriodical = float64(point.DocsWithCitations) / n
				point.PctPeriodicalsWithCited = 100 * float64(bucket.PeriodicalsWithCitations.Count.Value) / n
			}
		}

		if len(bucket.Breakdown.Buckets) > 0 {
			point.Breakdown = make(map[string]BreakdownPoint, len(bucket.Breakdown.Buckets))
			for _, slice := range bucket.Breakdown.Buckets {
				label := standardizeKey(bucketKey(slice.KeyAsString, slice.Key))
				point.Breakdown[label] = BreakdownPoint{
					Docs:              slice.DocCount,
					TotalCitations:    slice.TotalCitations.Value,
					DocsWithCitations: slice.DocsWithCitations.DocCount,
				}
			}
		}

		points = append(points, point)
	}
	return points, nil
}

func bucketKey(asString string, key any) string {
	if asString != "" {
		return asString
	}
	return keyString(key)
}

// standardizeKey normalizes boolean-ish breakdown keys to Yes/No so
// 1/0 and true/false render consistently.
func standardizeKey(key string) string {
	switch strings.ToLower(key) {
	case "1", "true":
		return "Yes"
	case "0", "false":
		return "No"
	default:
		return key
	}
}
