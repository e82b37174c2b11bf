package domain

import "github.com/google/uuid"

// Source is a named upstream data provider (OPENALEX, SUCUPIRA, MEC, ROR).
// Keyed by name; referenced by every source-attributable entity.
type Source struct {
	ID   uuid.UUID
	Name SourceName
}

// ThematicArea is one row of the three-level subject hierarchy.
// Level0 is always set; Level1 and Level2 narrow it down.
type ThematicArea struct {
	ID     uuid.UUID
	Level0 string
	Level1 string
	Level2 string
}

// Path renders the hierarchy as "level0 / level1 / level2", omitting
// empty tail levels.
func (t ThematicArea) Path() string {
	out := t.Level0
	if t.Level1 != "" {
		out += " / " + t.Level1
	}
	if t.Level2 != "" {
		out += " / " + t.Level2
	}
	return out
}
