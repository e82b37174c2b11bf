package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ocabr/observatory/internal/search"
)

// reservedFilterParams are query parameters consumed by the handlers
// themselves; everything else on the query string is a field filter.
var reservedFilterParams = map[string]bool{
	"data_source":    true,
	"fields":         true,
	"exclude_fields": true,
	"refresh":        true,
	"q":              true,
	"field_name":     true,
	"study_unit":     true,
}

// getFilters serves GET /search_gateway/filters/.
func (s *Server) getFilters(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	dataSource := query.Get("data_source")
	if dataSource == "" {
		writeError(w, http.StatusBadRequest, "data_source is required")
		return
	}

	req := search.FiltersRequest{
		DataSource:    dataSource,
		IncludeFields: splitCSV(query.Get("fields")),
		ExcludeFields: splitCSV(query.Get("exclude_fields")),
		ForceRefresh:  strings.EqualFold(query.Get("refresh"), "true"),
		Filters:       filterParams(query),
	}

	result, err := s.gateway.GetFiltersData(r.Context(), req)
	if err != nil {
		s.writeGatewayError(w, r, "filters", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// searchItem serves GET /search_gateway/search-item/.
func (s *Server) searchItem(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	dataSource := query.Get("data_source")
	fieldName := query.Get("field_name")
	if dataSource == "" || fieldName == "" {
		writeError(w, http.StatusBadRequest, "data_source and field_name are required")
		return
	}

	result, err := s.gateway.SearchItem(r.Context(), search.SearchItemRequest{
		DataSource: dataSource,
		FieldName:  fieldName,
		Query:      query.Get("q"),
		Filters:    filterParams(query),
	})
	if err != nil {
		s.writeGatewayError(w, r, "search-item", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// indicatorDataBody is the POST /indicators/data/ request body.
type indicatorDataBody struct {
	Filters   map[string]any `json:"filters"`
	StudyUnit string         `json:"study_unit"`
}

// getIndicatorData serves POST /indicators/data/.
func (s *Server) getIndicatorData(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	dataSource := query.Get("data_source")
	if dataSource == "" {
		writeError(w, http.StatusBadRequest, "data_source is required")
		return
	}

	var body indicatorDataBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	studyUnit := body.StudyUnit
	if studyUnit == "" {
		studyUnit = query.Get("study_unit")
	}
	// The public API historically calls the journal unit "source".
	if strings.EqualFold(studyUnit, "source") {
		studyUnit = string(search.StudyUnitJournal)
	}

	filters, breakdown := bodyFilters(body.Filters)
	result, err := s.gateway.GetIndicatorData(r.Context(), search.IndicatorDataRequest{
		DataSource:        dataSource,
		Filters:           filters,
		BreakdownVariable: breakdown,
		StudyUnit:         search.StudyUnit(strings.ToLower(studyUnit)),
	})
	if err != nil {
		s.writeGatewayError(w, r, "indicator-data", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// getJournalTimeseries serves GET /indicators/journal_metrics/timeseries/.
func (s *Server) getJournalTimeseries(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	issn := query.Get("issn")
	if issn == "" {
		writeError(w, http.StatusBadRequest, "issn is required")
		return
	}

	result, err := s.gateway.JournalTimeseries(
		r.Context(),
		issn,
		query.Get("category_level"),
		query.Get("publication_year"),
	)
	if err != nil {
		s.writeGatewayError(w, r, "journal-timeseries", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// writeGatewayError maps gateway failures: bad selections are client
// errors, anything else means the document store misbehaved.
func (s *Server) writeGatewayError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	msg := err.Error()
	if strings.Contains(msg, "unknown data source") ||
		strings.Contains(msg, "unknown field") ||
		strings.Contains(msg, "is required") ||
		strings.Contains(msg, "invalid study unit") {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	s.logger.Error().Err(err).Str("operation", operation).Str("path", r.URL.Path).Msg("gateway query failed")
	writeError(w, http.StatusBadGateway, msg)
}

// splitCSV parses a comma-separated parameter; whitespace around
// items is dropped.
func splitCSV(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// filterParams extracts the non-reserved query parameters as filters.
func filterParams(query url.Values) map[string][]string {
	filters := make(map[string][]string)
	for name, values := range query {
		if reservedFilterParams[name] {
			continue
		}
		var nonEmpty []string
		for _, v := range values {
			if v != "" {
				nonEmpty = append(nonEmpty, v)
			}
		}
		if len(nonEmpty) > 0 {
			filters[name] = nonEmpty
		}
	}
	if len(filters) == 0 {
		return nil
	}
	return filters
}

// bodyFilters flattens the JSON filter object into string lists and
// pulls out the breakdown variable.
func bodyFilters(raw map[string]any) (map[string][]string, string) {
	if len(raw) == 0 {
		return nil, ""
	}

	filters := make(map[string][]string)
	breakdown := ""
	for name, value := range raw {
		if name == "breakdown_variable" {
			if v, ok := value.(string); ok {
				breakdown = v
			}
			continue
		}
		switch v := value.(type) {
		case string:
			if v != "" {
				filters[name] = []string{v}
			}
		case []any:
			var values []string
			for _, item := range v {
				values = append(values, anyToString(item))
			}
			if len(values) > 0 {
				filters[name] = values
			}
		default:
			filters[name] = []string{anyToString(v)}
		}
	}
	if len(filters) == 0 {
		filters = nil
	}
	return filters, breakdown
}

func anyToString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		encoded, _ := json.Marshal(v)
		return string(encoded)
	}
}
