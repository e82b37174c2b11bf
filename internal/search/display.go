package search

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// displayLabel renders a bucket key for end users. Unrecognized codes
// fall back to the raw key so a bad value never hides a bucket.
func displayLabel(key string, transform DisplayTransform) string {
	switch transform {
	case DisplayCountry:
		return countryName(key)
	case DisplayLanguage:
		return languageName(key)
	case DisplayBoolean:
		return booleanLabel(key)
	default:
		return key
	}
}

func countryName(code string) string {
	region, err := language.ParseRegion(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return code
	}
	if name := display.English.Regions().Name(region); name != "" {
		return name
	}
	return code
}

func languageName(code string) string {
	tag, err := language.Parse(strings.ToLower(strings.TrimSpace(code)))
	if err != nil {
		return code
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return code
}

func booleanLabel(key string) string {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "true", "1", "yes":
		return "Yes"
	case "false", "0", "no":
		return "No"
	default:
		return key
	}
}
