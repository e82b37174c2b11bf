package openalex

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ocabr/observatory/internal/domain"
)

// RawArticleFromPayload decodes one /works result and wraps it as a raw
// article snapshot, keeping the full upstream payload verbatim.
func RawArticleFromPayload(data json.RawMessage) (*domain.RawArticle, error) {
	var work Work
	if err := json.Unmarshal(data, &work); err != nil {
		return nil, fmt.Errorf("decoding work: %w", err)
	}
	if work.ID == "" {
		return nil, fmt.Errorf("work has no id")
	}

	raw := &domain.RawArticle{
		SpecificID:    work.ID,
		Source:        domain.SourceOpenAlex,
		Payload:       data,
		DOI:           NormalizeDOI(work.DOI),
		Title:         work.Name(),
		SourceCreated: parseDate(work.CreatedDate),
		SourceUpdated: parseDate(work.UpdatedDate),
	}
	if work.PublicationYear > 0 {
		year := work.PublicationYear
		raw.Year = &year
	}
	return raw, nil
}

// RawInstitutionFromPayload decodes one /institutions result and wraps
// it as a raw institution snapshot.
func RawInstitutionFromPayload(data json.RawMessage) (*domain.RawInstitution, error) {
	var inst Institution
	if err := json.Unmarshal(data, &inst); err != nil {
		return nil, fmt.Errorf("decoding institution: %w", err)
	}
	if inst.ID == "" {
		return nil, fmt.Errorf("institution has no id")
	}

	return &domain.RawInstitution{
		SpecificID:    inst.ID,
		Source:        domain.SourceOpenAlex,
		Payload:       data,
		Name:          inst.DisplayName,
		CountryCode:   inst.CountryCode,
		SourceCreated: parseDate(inst.CreatedDate),
		SourceUpdated: parseDate(inst.UpdatedDate),
	}, nil
}

// RawJournalFromPayload decodes one /sources result and wraps it as a
// raw journal snapshot.
func RawJournalFromPayload(data json.RawMessage) (*domain.RawJournal, error) {
	var venue Venue
	if err := json.Unmarshal(data, &venue); err != nil {
		return nil, fmt.Errorf("decoding source record: %w", err)
	}
	if venue.ID == "" {
		return nil, fmt.Errorf("source record has no id")
	}

	return &domain.RawJournal{
		SpecificID:    venue.ID,
		Source:        domain.SourceOpenAlex,
		Payload:       data,
		ISSNL:         venue.ISSNL,
		Name:          venue.DisplayName,
		SourceCreated: parseDate(venue.CreatedDate),
		SourceUpdated: parseDate(venue.UpdatedDate),
	}, nil
}

// Name returns the work title, falling back to display_name.
func (w *Work) Name() string {
	if w.Title != "" {
		return w.Title
	}
	return w.DisplayName
}

// Abstract reconstructs the abstract text from the inverted index.
func (w *Work) Abstract() string {
	if len(w.AbstractIndex) == 0 {
		return ""
	}

	type positioned struct {
		pos  int
		word string
	}
	var words []positioned
	for word, positions := range w.AbstractIndex {
		for _, pos := range positions {
			words = append(words, positioned{pos: pos, word: word})
		}
	}
	sort.Slice(words, func(i, j int) bool { return words[i].pos < words[j].pos })

	parts := make([]string, len(words))
	for i, p := range words {
		parts[i] = p.word
	}
	return strings.Join(parts, " ")
}

// NormalizeDOI strips the resolver URL prefix and lowercases a DOI.
// Returns "" for inputs that contain no DOI at all.
func NormalizeDOI(raw string) string {
	return strings.ToLower(domain.CleanDOI(raw))
}

// NormalizeORCID strips the https://orcid.org/ prefix.
func NormalizeORCID(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "https://orcid.org/")
	return strings.TrimPrefix(raw, "http://orcid.org/")
}

// dateLayouts covers the formats OpenAlex uses for created_date and
// updated_date fields.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05.999999",
	time.RFC3339,
}

func parseDate(value string) *time.Time {
	if value == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
