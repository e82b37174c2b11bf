package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"

	"github.com/ocabr/observatory/internal/config"
	"github.com/ocabr/observatory/internal/observability"
)

// FiltersRequest selects which aggregations to compute and under which
// active selection.
type FiltersRequest struct {
	DataSource    string
	Filters       map[string][]string
	IncludeFields []string
	ExcludeFields []string
	ForceRefresh  bool
}

// Bucket is one aggregated value with its display label.
type Bucket struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	DocCount int64  `json:"doc_count"`
}

// FieldBuckets holds the aggregation result of one field. Error is set
// when every candidate field name failed.
type FieldBuckets struct {
	Field             string   `json:"field"`
	Buckets           []Bucket `json:"buckets"`
	MultipleSelection bool     `json:"multiple_selection"`
	Error             string   `json:"error,omitempty"`
}

// FiltersResult is the parsed filters payload.
type FiltersResult struct {
	DataSource string                  `json:"data_source"`
	Fields     map[string]FieldBuckets `json:"fields"`
}

// Gateway executes registry-declared queries against the document
// store.
type Gateway struct {
	client  *Client
	sources map[string]*DataSource
	cache   *expirable.LRU[string, *FiltersResult]
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// NewGateway builds the gateway with the default registry.
func NewGateway(client *Client, cfg config.SearchConfig, logger zerolog.Logger, metrics *observability.Metrics) *Gateway {
	ttl := cfg.FiltersCacheTTL
	if ttl <= 0 {
		ttl = 300 * time.Second
	}
	size := cfg.FiltersCacheSize
	if size <= 0 {
		size = 256
	}
	return &Gateway{
		client:  client,
		sources: Registry(),
		cache:   expirable.NewLRU[string, *FiltersResult](size, nil, ttl),
		logger:  logger.With().Str("component", "search-gateway").Logger(),
		metrics: metrics,
	}
}

// GetFiltersData computes one terms aggregation per enabled field,
// constrained by the translated active filters so counts reflect the
// current selection. Results are cached by request fingerprint;
// ForceRefresh bypasses and replaces the cached entry.
func (g *Gateway) GetFiltersData(ctx context.Context, req FiltersRequest) (*FiltersResult, error) {
	source, err := g.dataSource(req.DataSource)
	if err != nil {
		return nil, err
	}

	fields := g.enabledFields(source, req.IncludeFields, req.ExcludeFields)
	key := filtersCacheKey(source, fields, req.Filters)

	if !req.ForceRefresh {
		if cached, ok := g.cache.Get(key); ok {
			if g.metrics != nil {
				g.metrics.RecordCacheHit()
			}
			return cached, nil
		}
	}
	if g.metrics != nil {
		g.metrics.RecordCacheMiss()
	}

	started := time.Now()
	result, err := g.queryFilters(ctx, source, fields, req.Filters)
	if err != nil {
		return nil, err
	}
	if g.metrics != nil {
		g.metrics.RecordGatewayQuery("filters", source.Name, time.Since(started).Seconds())
	}

	g.cache.Add(key, result)
	return result, nil
}

func (g *Gateway) dataSource(name string) (*DataSource, error) {
	source, ok := g.sources[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown data source %q", name)
	}
	return source, nil
}

// enabledFields applies include/exclude narrowing and drops ignored
// aggregations.
func (g *Gateway) enabledFields(source *DataSource, include, exclude []string) []string {
	included := make(map[string]bool, len(include))
	for _, f := range include {
		included[f] = true
	}
	excluded := make(map[string]bool, len(exclude))
	for _, f := range exclude {
		excluded[f] = true
	}

	var fields []string
	for _, name := range source.FieldNames() {
		settings := source.Fields[name]
		if settings.Filter.AggregationType == AggIgnore {
			continue
		}
		if len(include) > 0 && !included[name] {
			continue
		}
		if excluded[name] {
			continue
		}
		fields = append(fields, name)
	}
	return fields
}

func (g *Gateway) queryFilters(ctx context.Context, source *DataSource, fields []string, filters map[string][]string) (*FiltersResult, error) {
	body := map[string]any{
		"size": 0,
		"aggs": g.aggregations(source, fields),
	}
	if filter := translateFilters(source, filters); len(filter) > 0 {
		body["query"] = map[string]any{"bool": map[string]any{"filter": filter}}
	}

	result := &FiltersResult{DataSource: source.Name, Fields: make(map[string]FieldBuckets, len(fields))}

	res, err := g.client.Search(ctx, source.Index, body)
	if err == nil {
		for _, field := range fields {
			result.Fields[field] = g.parseFieldAgg(source, field, res.Aggregations[field])
		}
		return result, nil
	}

	// The combined query failed; retry field by field so a single bad
	// mapping does not blank the whole filter bar.
	g.logger.Warn().Err(err).Str("data_source", source.Name).Msg("combined filter aggregation failed, falling back per field")
	for _, field := range fields {
		result.Fields[field] = g.querySingle(ctx, source, field, filters)
	}
	return result, nil
}

// querySingle aggregates one field, trying the declared name first and
// the keyword-suffix alternate second.
func (g *Gateway) querySingle(ctx context.Context, source *DataSource, field string, filters map[string][]string) FieldBuckets {
	settings := source.Fields[field]
	var lastErr error
	for _, candidate := range fieldCandidates(settings.IndexFieldName) {
		body := map[string]any{
			"size": 0,
			"aggs": map[string]any{field: termsAgg(candidate, settings.Filter)},
		}
		if filter := translateFilters(source, filters); len(filter) > 0 {
			body["query"] = map[string]any{"bool": map[string]any{"filter": filter}}
		}
		res, err := g.client.Search(ctx, source.Index, body)
		if err != nil {
			lastErr = err
			continue
		}
		return g.parseFieldAgg(source, field, res.Aggregations[field])
	}
	return FieldBuckets{
		Field:             field,
		MultipleSelection: settings.MultipleSelection,
		Error:             lastErr.Error(),
	}
}

func (g *Gateway) aggregations(source *DataSource, fields []string) map[string]any {
	aggs := make(map[string]any, len(fields))
	for _, field := range fields {
		settings := source.Fields[field]
		aggs[field] = termsAgg(settings.IndexFieldName, settings.Filter)
	}
	return aggs
}

func termsAgg(field string, settings FilterSettings) map[string]any {
	size := settings.Size
	if size <= 0 {
		size = 20
	}
	terms := map[string]any{"field": field, "size": size}
	if settings.Order == "asc" {
		terms["order"] = map[string]any{"_key": "asc"}
	}
	return map[string]any{"terms": terms}
}

func (g *Gateway) parseFieldAgg(source *DataSource, field string, raw json.RawMessage) FieldBuckets {
	settings := source.Fields[field]
	out := FieldBuckets{Field: field, MultipleSelection: settings.MultipleSelection}
	if raw == nil {
		return out
	}

	var agg struct {
		Buckets []struct {
			Key         any    `json:"key"`
			KeyAsString string `json:"key_as_string"`
			DocCount    int64  `json:"doc_count"`
		} `json:"buckets"`
	}
	if err := json.Unmarshal(raw, &agg); err != nil {
		out.Error = err.Error()
		return out
	}

	for _, bucket := range agg.Buckets {
		key := bucket.KeyAsString
		if key == "" {
			key = keyString(bucket.Key)
		}
		out.Buckets = append(out.Buckets, Bucket{
			Key:      key,
			Label:    displayLabel(key, settings.Display),
			DocCount: bucket.DocCount,
		})
	}
	return out
}

// keyString renders a bucket key; numeric keys decode as float64.
func keyString(key any) string {
	switch v := key.(type) {
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// translateFilters converts form-field filters into bool.filter
// clauses against physical fields, applying the declared transforms.
func translateFilters(source *DataSource, filters map[string][]string) []map[string]any {
	if len(filters) == 0 {
		return nil
	}

	names := make([]string, 0, len(filters))
	for name := range filters {
		names = append(names, name)
	}
	sort.Strings(names)

	var clauses []map[string]any
	for _, name := range names {
		values := filters[name]
		if len(values) == 0 {
			continue
		}
		settings := source.Fields[name]
		physical := source.PhysicalField(name)

		switch settings.Filter.Transform {
		case TransformBooleanYesNo:
			clauses = append(clauses, map[string]any{
				"terms": map[string]any{physical: yesNoToBool(values)},
			})
		case TransformYearRange:
			if years := expandYearRange(values); len(years) > 0 {
				clauses = append(clauses, map[string]any{
					"terms": map[string]any{physical: years},
				})
			}
		default:
			clauses = append(clauses, map[string]any{
				"terms": map[string]any{physical: toAnySlice(values)},
			})
		}
	}
	return clauses
}

func yesNoToBool(values []string) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		out = append(out, strings.EqualFold(strings.TrimSpace(v), "yes"))
	}
	return out
}

// expandYearRange turns a (start, end) value pair into the inclusive
// list of years. A single value stands for itself.
func expandYearRange(values []string) []any {
	var years []int
	for _, v := range values {
		year, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			continue
		}
		years = append(years, year)
	}
	if len(years) == 0 {
		return nil
	}
	if len(years) == 1 {
		return []any{years[0]}
	}

	sort.Ints(years)
	start, end := years[0], years[len(years)-1]
	out := make([]any, 0, end-start+1)
	for y := start; y <= end; y++ {
		out = append(out, y)
	}
	return out
}

func toAnySlice(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// fieldCandidates lists the physical names to try: the declared one,
// then the keyword-suffix alternate.
func fieldCandidates(field string) []string {
	if strings.HasSuffix(field, ".keyword") {
		return []string{field, strings.TrimSuffix(field, ".keyword")}
	}
	return []string{field, field + ".keyword"}
}

// filtersCacheKey fingerprints the full request shape, including the
// field-settings of the enabled fields so registry changes invalidate
// naturally.
func filtersCacheKey(source *DataSource, fields []string, filters map[string][]string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|", source.Name, source.Index)
	for _, field := range fields {
		fmt.Fprintf(h, "%s=%+v;", field, source.Fields[field])
	}

	names := make([]string, 0, len(filters))
	for name := range filters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		values := append([]string(nil), filters[name]...)
		sort.Strings(values)
		fmt.Fprintf(h, "%s=%s;", name, strings.Join(values, ","))
	}
	return hex.EncodeToString(h.Sum(nil))
}
