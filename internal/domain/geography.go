package domain

import (
	"strings"

	"github.com/google/uuid"
)

// Country holds the localized names and ISO acronyms of a country.
type Country struct {
	ID      uuid.UUID
	NamePT  string
	NameEN  string
	Acron2  string
	Acron3  string
	Capital string
}

// NormalizeAcronyms uppercases the ISO acronyms in place.
func (c *Country) NormalizeAcronyms() {
	c.Acron2 = strings.ToUpper(strings.TrimSpace(c.Acron2))
	c.Acron3 = strings.ToUpper(strings.TrimSpace(c.Acron3))
}

// State is a first-level administrative division.
type State struct {
	ID        uuid.UUID
	Name      string
	Code      string
	Region    string
	CountryID uuid.UUID
}

// City is a municipality within a state.
type City struct {
	ID      uuid.UUID
	Name    string
	StateID uuid.UUID
}

// Location composes city, state and country into a single reference.
type Location struct {
	ID        uuid.UUID
	CityID    *uuid.UUID
	StateID   *uuid.UUID
	CountryID *uuid.UUID

	// Resolved references, populated by repository joins when requested.
	City    *City
	State   *State
	Country *Country
}
