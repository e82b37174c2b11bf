package search

import (
	"context"
	"fmt"
)

// BronzeIndices are the raw-shaped indices the gateway provisions.
var BronzeIndices = []string{
	"bronze_books",
	"bronze_dataset",
	"bronze_dataverse",
	"bronze_preprint",
	"bronze_social_production",
}

// multilingualAnalysis is the shared analysis block: standard
// tokenizer with lowercase and asciifolding, so Portuguese and English
// text match accent-insensitively.
func multilingualAnalysis() map[string]any {
	return map[string]any{
		"analyzer": map[string]any{
			"multilingual": map[string]any{
				"type":      "custom",
				"tokenizer": "standard",
				"filter":    []string{"lowercase", "asciifolding"},
			},
		},
	}
}

// searchableText is a text field with keyword and search fan-out: the
// value is copied to <name>_search (analyzed) and
// <name>_search_autocomplete (search_as_you_type).
func searchableText(name string) map[string]any {
	return map[string]any{
		"type":     "text",
		"analyzer": "multilingual",
		"copy_to":  []string{name + "_search", name + "_search_autocomplete"},
		"fields": map[string]any{
			"keyword": map[string]any{"type": "keyword", "ignore_above": 512},
		},
	}
}

func searchFanOut(name string) map[string]map[string]any {
	return map[string]map[string]any{
		name + "_search": {
			"type":     "text",
			"analyzer": "multilingual",
		},
		name + "_search_autocomplete": {
			"type":             "search_as_you_type",
			"analyzer":         "multilingual",
			"max_shingle_size": 3,
		},
	}
}

// bronzeMapping is the shared bronze document shape.
func bronzeMapping() map[string]any {
	properties := map[string]any{
		"title":           searchableText("title"),
		"institution":     searchableText("institution"),
		"author":          searchableText("author"),
		"year":            map[string]any{"type": "integer"},
		"language":        map[string]any{"type": "keyword"},
		"state":           map[string]any{"type": "keyword"},
		"production_type": map[string]any{"type": "keyword"},
		"cited_by_count":  map[string]any{"type": "integer"},
		"doi":             map[string]any{"type": "keyword"},
		"url":             map[string]any{"type": "keyword"},
	}
	for _, name := range []string{"title", "institution", "author"} {
		for field, mapping := range searchFanOut(name) {
			properties[field] = mapping
		}
	}
	return map[string]any{
		"settings": map[string]any{"analysis": multilingualAnalysis()},
		"mappings": map[string]any{"properties": properties},
	}
}

// directoryMapping is the directory records index shape used by the
// sync service.
func directoryMapping() map[string]any {
	properties := map[string]any{
		"id":                         map[string]any{"type": "keyword"},
		"type":                       map[string]any{"type": "keyword"},
		"title":                      searchableText("title"),
		"link":                       map[string]any{"type": "keyword"},
		"description":                map[string]any{"type": "text", "analyzer": "multilingual"},
		"classification":             map[string]any{"type": "keyword"},
		"record_status":              map[string]any{"type": "keyword"},
		"institutional_contribution": map[string]any{"type": "boolean"},
		"action_id":                  map[string]any{"type": "keyword"},
		"practice_id":                map[string]any{"type": "keyword"},
		"institution_ids":            map[string]any{"type": "keyword"},
		"organization_ids":           map[string]any{"type": "keyword"},
		"location_ids":               map[string]any{"type": "keyword"},
		"thematic_area_ids":          map[string]any{"type": "keyword"},
		"tag_ids":                    map[string]any{"type": "keyword"},
		"level":                      map[string]any{"type": "keyword"},
		"modality":                   map[string]any{"type": "keyword"},
		"attendance":                 map[string]any{"type": "keyword"},
		"acronym":                    map[string]any{"type": "keyword"},
		"url":                        map[string]any{"type": "keyword"},
		"is_mandatory":               map[string]any{"type": "boolean"},
		"start_date":                 map[string]any{"type": "date", "format": "yyyy-MM-dd"},
		"end_date":                   map[string]any{"type": "date", "format": "yyyy-MM-dd"},
		"adoption_date":              map[string]any{"type": "date", "format": "yyyy-MM-dd"},
	}
	for field, mapping := range searchFanOut("title") {
		properties[field] = mapping
	}
	return map[string]any{
		"settings": map[string]any{"analysis": multilingualAnalysis()},
		"mappings": map[string]any{"properties": properties},
	}
}

// EnsureIndices creates the bronze indices and the directory index if
// they do not exist yet.
func (s *IndexSync) EnsureIndices(ctx context.Context) error {
	for _, index := range BronzeIndices {
		if err := s.client.CreateIndex(ctx, index, bronzeMapping()); err != nil {
			return fmt.Errorf("provisioning %s: %w", index, err)
		}
	}
	if err := s.client.CreateIndex(ctx, s.index, directoryMapping()); err != nil {
		return fmt.Errorf("provisioning %s: %w", s.index, err)
	}
	return nil
}
