package domain

import (
	"regexp"
	"strings"
)

// doiPattern matches a DOI wherever it appears inside a larger string,
// including resolver URLs.
var doiPattern = regexp.MustCompile(`\b10\.\d{4,9}/[-.;()/:\w]+`)

// CleanDOI extracts the DOI from a raw field that may contain prefixes
// or a resolver URL. Case is preserved. Returns "" when no DOI is found.
func CleanDOI(raw string) string {
	return doiPattern.FindString(strings.TrimSpace(raw))
}

// iso639Codes is the set of recognized two-letter language codes.
var iso639Codes = map[string]struct{}{
	"ar": {}, "de": {}, "en": {}, "es": {}, "fr": {}, "it": {},
	"ja": {}, "nl": {}, "pl": {}, "pt": {}, "ru": {}, "zh": {},
	"ca": {}, "el": {}, "ko": {}, "sv": {}, "tr": {}, "uk": {},
}

// iso639Bibliographic maps three-letter codes to two-letter codes.
var iso639Bibliographic = map[string]string{
	"ara": "ar", "deu": "de", "ger": "de", "eng": "en", "esp": "es",
	"spa": "es", "fra": "fr", "fre": "fr", "ita": "it", "jpn": "ja",
	"nld": "nl", "dut": "nl", "pol": "pl", "por": "pt", "rus": "ru",
	"zho": "zh", "chi": "zh", "cat": "ca", "ell": "el", "gre": "el",
	"kor": "ko", "swe": "sv", "tur": "tr", "ukr": "uk",
}

// iso639Names maps English language names (as used by upstream sources,
// including the ISO "A; B" alternative form) to two-letter codes.
var iso639Names = map[string]string{
	"arabic":             "ar",
	"german":             "de",
	"english":            "en",
	"spanish":            "es",
	"spanish; castilian": "es",
	"castilian":          "es",
	"french":             "fr",
	"italian":            "it",
	"japanese":           "ja",
	"dutch":              "nl",
	"dutch; flemish":     "nl",
	"polish":             "pl",
	"portuguese":         "pt",
	"russian":            "ru",
	"chinese":            "zh",
	"catalan":            "ca",
	"greek":              "el",
	"korean":             "ko",
	"swedish":            "sv",
	"turkish":            "tr",
	"ukrainian":          "uk",
}

// LanguageISO normalizes a language field to a two-letter ISO-639-1
// code. Accepts codes with region subtags ("pt-BR"), three-letter
// codes ("eng") and English names ("Spanish; Castilian"). Unknown
// values normalize to "". The function is idempotent.
func LanguageISO(v string) string {
	s := strings.ToLower(strings.TrimSpace(v))
	if s == "" {
		return ""
	}
	if i := strings.IndexAny(s, "-_"); i > 0 {
		s = s[:i]
	}
	if len(s) == 2 {
		if _, ok := iso639Codes[s]; ok {
			return s
		}
		return ""
	}
	if len(s) == 3 {
		if code, ok := iso639Bibliographic[s]; ok {
			return code
		}
	}
	if code, ok := iso639Names[s]; ok {
		return code
	}
	return ""
}

// NormalizeLanguages maps each value through LanguageISO, dropping
// unknowns and deduplicating while preserving first-seen order.
func NormalizeLanguages(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		code := LanguageISO(v)
		if code == "" {
			continue
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	return out
}

var slugStrip = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases s and replaces runs of non-alphanumeric characters
// with single hyphens.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = slugStrip.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
