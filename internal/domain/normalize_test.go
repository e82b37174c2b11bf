package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanDOI(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "bare doi",
			input:    "10.1590/1980-5373-MR-2016-0983",
			expected: "10.1590/1980-5373-MR-2016-0983",
		},
		{
			name:     "resolver url with prefix",
			input:    "DOI: HTTP://DX.DOI.ORG/10.1590/1980-5373-MR-2016-0983",
			expected: "10.1590/1980-5373-MR-2016-0983",
		},
		{
			name:     "https resolver preserves case",
			input:    "DOI: HTTPS://DOI.ORG/10.5007/1518-2924.2017V22N50P114",
			expected: "10.5007/1518-2924.2017V22N50P114",
		},
		{
			name:     "surrounding whitespace",
			input:    "  10.1016/s0140-6736(12)60646-1  ",
			expected: "10.1016/s0140-6736(12)60646-1",
		},
		{
			name:     "no doi present",
			input:    "not a doi",
			expected: "",
		},
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanDOI(tt.input))
		})
	}
}

func TestLanguageISO(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "region subtag stripped", input: "pt-BR", expected: "pt"},
		{name: "underscore subtag stripped", input: "en_US", expected: "en"},
		{name: "unknown two letter code", input: "xx", expected: ""},
		{name: "three letter code", input: "eng", expected: "en"},
		{name: "english name", input: "Portuguese", expected: "pt"},
		{name: "alternative name form", input: "Spanish; Castilian", expected: "es"},
		{name: "already normalized", input: "es", expected: "es"},
		{name: "empty", input: "", expected: ""},
		{name: "unknown name", input: "Klingon", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, LanguageISO(tt.input))
		})
	}
}

func TestLanguageISO_Idempotent(t *testing.T) {
	for _, v := range []string{"pt-BR", "eng", "Spanish; Castilian", "xx", "fr"} {
		once := LanguageISO(v)
		assert.Equal(t, once, LanguageISO(once), "input %q", v)
	}
}

func TestNormalizeLanguages(t *testing.T) {
	got := NormalizeLanguages([]string{"Portuguese", "eng", "Spanish; Castilian"})
	assert.Equal(t, []string{"pt", "en", "es"}, got)
}

func TestNormalizeLanguages_DeduplicatesPreservingOrder(t *testing.T) {
	got := NormalizeLanguages([]string{"eng", "English", "pt", "por", "xx"})
	assert.Equal(t, []string{"en", "pt"}, got)
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "spaces to hyphens", input: "Open Access by Institution", expected: "open-access-by-institution"},
		{name: "punctuation collapsed", input: "Eventos: 2020 / 2021", expected: "eventos-2020-2021"},
		{name: "leading and trailing runs trimmed", input: "  --title--  ", expected: "title"},
		{name: "empty", input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Slugify(tt.input))
		})
	}
}
