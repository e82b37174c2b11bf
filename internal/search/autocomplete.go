package search

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// SearchItemRequest asks for suggestions on one field.
type SearchItemRequest struct {
	DataSource string
	FieldName  string
	Query      string
	Filters    map[string][]string
}

// SearchItemResult lists the unique matching values.
type SearchItemResult struct {
	Results []Bucket `json:"results"`
}

// SearchItem suggests values for a field as the user types. Fields
// with a search_as_you_type mapping use a bool_prefix multi_match over
// the shingle subfields; others fall back to match_phrase_prefix and
// finally to a substring wildcard. Active filters constrain the
// suggestion population.
func (g *Gateway) SearchItem(ctx context.Context, req SearchItemRequest) (*SearchItemResult, error) {
	source, err := g.dataSource(req.DataSource)
	if err != nil {
		return nil, err
	}
	settings, ok := source.Fields[req.FieldName]
	if !ok {
		return nil, fmt.Errorf("unknown field %q for data source %q", req.FieldName, source.Name)
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return &SearchItemResult{Results: []Bucket{}}, nil
	}

	started := time.Now()
	defer func() {
		if g.metrics != nil {
			g.metrics.RecordGatewayQuery("search_item", source.Name, time.Since(started).Seconds())
		}
	}()

	filter := translateFilters(source, req.Filters)
	aggField := keywordField(settings.IndexFieldName)

	var attempts []map[string]any
	if settings.AutocompleteField != "" {
		attempts = append(attempts, map[string]any{
			"multi_match": map[string]any{
				"query": query,
				"type":  "bool_prefix",
				"fields": []string{
					settings.AutocompleteField,
					settings.AutocompleteField + "._2gram",
					settings.AutocompleteField + "._3gram",
				},
			},
		})
	}
	attempts = append(attempts,
		map[string]any{
			"match_phrase_prefix": map[string]any{
				baseField(settings.IndexFieldName): map[string]any{"query": query},
			},
		},
		map[string]any{
			"wildcard": map[string]any{
				aggField: map[string]any{
					"value":            "*" + strings.ToLower(query) + "*",
					"case_insensitive": true,
				},
			},
		},
	)

	var lastErr error
	for _, match := range attempts {
		body := suggestionBody(match, filter, req.FieldName, aggField, settings.Filter)
		res, err := g.client.Search(ctx, source.Index, body)
		if err != nil {
			lastErr = err
			continue
		}
		parsed := g.parseFieldAgg(source, req.FieldName, res.Aggregations[req.FieldName])
		if parsed.Error != "" {
			lastErr = fmt.Errorf("%s", parsed.Error)
			continue
		}
		if parsed.Buckets == nil {
			parsed.Buckets = []Bucket{}
		}
		return &SearchItemResult{Results: parsed.Buckets}, nil
	}
	return nil, fmt.Errorf("suggesting %s values: %w", req.FieldName, lastErr)
}

func suggestionBody(match map[string]any, filter []map[string]any, field, aggField string, settings FilterSettings) map[string]any {
	boolQuery := map[string]any{"must": []any{match}}
	if len(filter) > 0 {
		boolQuery["filter"] = filter
	}
	return map[string]any{
		"size":  0,
		"query": map[string]any{"bool": boolQuery},
		"aggs":  map[string]any{field: termsAgg(aggField, settings)},
	}
}

// keywordField ensures the aggregation runs on the keyword variant.
func keywordField(field string) string {
	if strings.HasSuffix(field, ".keyword") {
		return field
	}
	return field + ".keyword"
}

// baseField strips the keyword suffix for full-text matching.
func baseField(field string) string {
	return strings.TrimSuffix(field, ".keyword")
}
