package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SummarizedVersion tags the shape of the summarized payload.
const SummarizedVersion = "v2.0"

// GraphicPoint is one bar/line segment in an indicator chart.
type GraphicPoint struct {
	X     string `json:"x"`
	Y     string `json:"y"`
	Count int    `json:"count"`
	Stack string `json:"stack"`
}

// Summarized is the structured JSON an indicator carries for rendering.
type Summarized struct {
	Items       []map[string]any `json:"items"`
	GraphicData []GraphicPoint   `json:"graphic_data"`
	TableHeader []string         `json:"table_header"`
	Version     string           `json:"version"`
}

// Indicator is a versioned immutable aggregate artifact. Versions over
// the same (action, practice, classification, scope) tuple form a
// supersession chain with exactly one CURRENT head; Code is the stable
// external identity of the chain.
type Indicator struct {
	ID             uuid.UUID
	Title          string
	Description    string
	Code           string
	ActionID       *uuid.UUID
	PracticeID     *uuid.UUID
	Classification string
	Scope          Scope
	Measurement    Measurement
	Validity       Validity
	Seq            int
	PreviousID     *uuid.UUID
	PosteriorID    *uuid.UUID
	StartDateYear  *int
	EndDateYear    *int
	Summarized     *Summarized
	RawDataPath    string
	Status         RecordStatus

	ThematicAreaIDs []uuid.UUID
	InstitutionIDs  []uuid.UUID
	LocationIDs     []uuid.UUID
	TagIDs          []uuid.UUID

	CreatedAt time.Time
	UpdatedAt time.Time
}

// RawDataFileName builds the attachment name for an indicator's raw
// rows: slugified title, UTC timestamp and chain sequence.
func RawDataFileName(title string, at time.Time, seq int) string {
	return fmt.Sprintf("%s_%s_%d.jsonl.zip", Slugify(title), at.UTC().Format("2006-01-02T15:04:05Z"), seq)
}

// ChainKey identifies one supersession chain.
type ChainKey struct {
	ActionID       *uuid.UUID
	PracticeID     *uuid.UUID
	Classification string
	Scope          Scope
}

// ChainKeyOf extracts the chain key from an indicator.
func ChainKeyOf(i *Indicator) ChainKey {
	return ChainKey{
		ActionID:       i.ActionID,
		PracticeID:     i.PracticeID,
		Classification: i.Classification,
		Scope:          i.Scope,
	}
}
