package search

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const (
	defaultRankingMetric = "journal_impact_normalized_window_3y"
	defaultRankingYear   = "2020"
)

// rankingMetrics are the sortable metric fields of the journal
// metrics index.
var rankingMetrics = map[string]bool{
	"journal_impact_normalized_window_3y": true,
	"journal_impact_window_3y":            true,
	"citations_count":                     true,
	"citations_count_window_3y":           true,
	"documents_count":                     true,
	"documents_count_window_3y":           true,
	"cited_documents_count":               true,
	"cited_documents_count_window_3y":     true,
	"h_index":                             true,
	"self_citations_count":                true,
	"self_citations_ratio":                true,
	"international_collaboration_ratio":   true,
	"open_access_ratio":                   true,
	"documents_in_top_percentile_ratio":   true,
	"apc_usd_median":                      true,
}

// categoryLevels are the category granularities of the journal
// metrics index. Invalid levels collapse to field.
var categoryLevels = map[string]bool{
	"domain":   true,
	"field":    true,
	"subfield": true,
	"topic":    true,
}

// JournalRankingRequest ranks journals by one metric within a year and
// category slice.
type JournalRankingRequest struct {
	Metric        string
	Year          string
	CategoryLevel string
	CategoryName  string
	Size          int
}

// JournalMetricsRow is one journal/year/category document.
type JournalMetricsRow struct {
	ISSN         string             `json:"issn"`
	JournalTitle string             `json:"journal_title"`
	Year         string             `json:"publication_year"`
	CategoryID   string             `json:"category_id"`
	CategoryName string             `json:"category_name"`
	Metrics      map[string]float64 `json:"metrics"`
}

// JournalTimeseries is the per-journal payload: the year series plus
// the category spider for the reference year.
type JournalTimeseries struct {
	ISSN   string              `json:"issn"`
	Years  []JournalMetricsRow `json:"years"`
	Spider []SpiderPoint       `json:"spider"`
}

// SpiderPoint is one category axis of the spider chart.
type SpiderPoint struct {
	Category string  `json:"category"`
	Value    float64 `json:"value"`
	Docs     int64   `json:"docs"`
}

// normalizeRanking fills defaults and collapses invalid inputs.
func normalizeRanking(req JournalRankingRequest) JournalRankingRequest {
	if !rankingMetrics[req.Metric] {
		req.Metric = defaultRankingMetric
	}
	if req.Year == "" {
		req.Year = defaultRankingYear
	}
	if !categoryLevels[req.CategoryLevel] {
		req.CategoryLevel = "field"
	}
	if req.Size <= 0 || req.Size > 1000 {
		req.Size = 50
	}
	return req
}

// RankJournals lists the top journals of a year/category slice ordered
// by the requested metric.
func (g *Gateway) RankJournals(ctx context.Context, req JournalRankingRequest) ([]JournalMetricsRow, error) {
	source, err := g.dataSource("journal_metrics")
	if err != nil {
		return nil, err
	}
	req = normalizeRanking(req)

	filter := []map[string]any{
		{"term": map[string]any{"publication_year.keyword": req.Year}},
		{"term": map[string]any{"category_level.keyword": req.CategoryLevel}},
	}
	if req.CategoryName != "" {
		filter = append(filter, map[string]any{
			"term": map[string]any{"category_name.keyword": req.CategoryName},
		})
	}

	body := map[string]any{
		"size":  req.Size,
		"query": map[string]any{"bool": map[string]any{"filter": filter}},
		"sort":  []any{map[string]any{req.Metric: map[string]any{"order": "desc"}}},
	}

	started := time.Now()
	res, err := g.client.Search(ctx, source.Index, body)
	if err != nil {
		return nil, err
	}
	if g.metrics != nil {
		g.metrics.RecordGatewayQuery("journal_ranking", source.Name, time.Since(started).Seconds())
	}

	rows := make([]JournalMetricsRow, 0, len(res.Hits.Hits))
	for _, hit := range res.Hits.Hits {
		row, err := decodeJournalRow(hit.Source)
		if err != nil {
			g.logger.Warn().Err(err).Str("doc_id", hit.ID).Msg("skipping malformed journal metrics document")
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// JournalTimeseries fetches the year series of one journal plus its
// category spider. A probe query first picks a category the journal
// actually has data for, so a requested level with no rows degrades
// instead of returning an empty chart.
func (g *Gateway) JournalTimeseries(ctx context.Context, issn, categoryLevel, year string) (*JournalTimeseries, error) {
	if issn == "" {
		return nil, fmt.Errorf("issn is required")
	}
	source, err := g.dataSource("journal_metrics")
	if err != nil {
		return nil, err
	}
	if !categoryLevels[categoryLevel] {
		categoryLevel = "field"
	}
	if year == "" {
		year = defaultRankingYear
	}

	started := time.Now()
	defer func() {
		if g.metrics != nil {
			g.metrics.RecordGatewayQuery("journal_timeseries", source.Name, time.Since(started).Seconds())
		}
	}()

	categoryID, err := g.probeCategory(ctx, source, issn, categoryLevel)
	if err != nil {
		return nil, err
	}

	seriesFilter := []map[string]any{
		{"term": map[string]any{"issn.keyword": issn}},
	}
	if categoryID != "" {
		seriesFilter = append(seriesFilter, map[string]any{
			"term": map[string]any{"category_id.keyword": categoryID},
		})
	}

	seriesBody := map[string]any{
		"size":     1000,
		"query":    map[string]any{"bool": map[string]any{"filter": seriesFilter}},
		"collapse": map[string]any{"field": "publication_year.keyword"},
		"sort":     []any{map[string]any{"publication_year.keyword": map[string]any{"order": "asc"}}},
	}
	seriesRes, err := g.client.Search(ctx, source.Index, seriesBody)
	if err != nil {
		return nil, err
	}

	result := &JournalTimeseries{ISSN: issn}
	for _, hit := range seriesRes.Hits.Hits {
		row, err := decodeJournalRow(hit.Source)
		if err != nil {
			g.logger.Warn().Err(err).Str("doc_id", hit.ID).Msg("skipping malformed journal metrics document")
			continue
		}
		result.Years = append(result.Years, row)
	}

	spider, err := g.spiderAggregation(ctx, source, issn, categoryLevel, year)
	if err != nil {
		// The year series still renders without the spider.
		g.logger.Warn().Err(err).Str("issn", issn).Msg("spider aggregation failed")
		return result, nil
	}
	result.Spider = spider
	return result, nil
}

// probeCategory finds one category id the journal has rows for at the
// requested level. Empty means the journal is aggregated without a
// category constraint.
func (g *Gateway) probeCategory(ctx context.Context, source *DataSource, issn, categoryLevel string) (string, error) {
	body := map[string]any{
		"size": 1,
		"query": map[string]any{"bool": map[string]any{"filter": []map[string]any{
			{"term": map[string]any{"issn.keyword": issn}},
			{"term": map[string]any{"category_level.keyword": categoryLevel}},
		}}},
	}
	res, err := g.client.Search(ctx, source.Index, body)
	if err != nil {
		return "", err
	}
	if len(res.Hits.Hits) == 0 {
		return "", nil
	}
	row, err := decodeJournalRow(res.Hits.Hits[0].Source)
	if err != nil {
		return "", nil
	}
	return row.CategoryID, nil
}

func (g *Gateway) spiderAggregation(ctx context.Context, source *DataSource, issn, categoryLevel, year string) ([]SpiderPoint, error) {
	body := map[string]any{
		"size": 0,
		"query": map[string]any{"bool": map[string]any{"filter": []map[string]any{
			{"term": map[string]any{"issn.keyword": issn}},
			{"term": map[string]any{"category_level.keyword": categoryLevel}},
			{"term": map[string]any{"publication_year.keyword": year}},
		}}},
		"aggs": map[string]any{
			"categories": map[string]any{
				"terms": map[string]any{"field": "category_name.keyword", "size": 30},
				"aggs": map[string]any{
					"metric": map[string]any{
						"avg": map[string]any{"field": defaultRankingMetric},
					},
				},
			},
		},
	}
	res, err := g.client.Search(ctx, source.Index, body)
	if err != nil {
		return nil, err
	}

	raw, ok := res.Aggregations["categories"]
	if !ok {
		return nil, nil
	}
	var agg struct {
		Buckets []struct {
			Key      string `json:"key"`
			DocCount int64  `json:"doc_count"`
			Metric   struct {
				Value float64 `json:"value"`
			} `json:"metric"`
		} `json:"buckets"`
	}
	if err := json.Unmarshal(raw, &agg); err != nil {
		return nil, fmt.Errorf("decoding spider aggregation: %w", err)
	}

	points := make([]SpiderPoint, 0, len(agg.Buckets))
	for _, bucket := range agg.Buckets {
		points = append(points, SpiderPoint{
			Category: bucket.Key,
			Value:    bucket.Metric.Value,
			Docs:     bucket.DocCount,
		})
	}
	return points, nil
}

// decodeJournalRow splits a metrics document into identity fields and
// the numeric metric map.
func decodeJournalRow(source json.RawMessage) (JournalMetricsRow, error) {
	var flat map[string]any
	if err := json.Unmarshal(source, &flat); err != nil {
		return JournalMetricsRow{}, err
	}

	row := JournalMetricsRow{Metrics: make(map[string]float64)}
	for key, value := range flat {
		switch key {
		case "issn":
			row.ISSN, _ = value.(string)
		case "journal_title":
			row.JournalTitle, _ = value.(string)
		case "publication_year":
			row.Year = keyString(value)
		case "category_id":
			row.CategoryID = keyString(value)
		case "category_name":
			row.CategoryName, _ = value.(string)
		default:
			if number, ok := value.(float64); ok && rankingMetrics[key] {
				row.Metrics[key] = number
			}
		}
	}
	return row, nil
}
