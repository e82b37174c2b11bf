package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ocabr/observatory/internal/domain"
)

// Compile-time interface verification.
var _ DirectoryRepository = (*PgDirectoryRepository)(nil)

// PgDirectoryRepository is a PostgreSQL implementation of DirectoryRepository.
// Variant-specific fields are stored in a details JSONB column keyed by the
// directory type.
type PgDirectoryRepository struct {
	db DBTX
}

// NewPgDirectoryRepository creates a new PostgreSQL directory repository.
func NewPgDirectoryRepository(db DBTX) *PgDirectoryRepository {
	return &PgDirectoryRepository{db: db}
}

const directorySelect = `
	SELECT id, directory_type, title, link, description, action_id, practice_id,
		classification, record_status, institutional_contribution, details,
		created_at, updated_at, created_by, updated_by
	FROM directory_records`

// directoryDetails is the JSONB payload holding the variant fields.
type directoryDetails struct {
	Education      *domain.EducationDetails      `json:"education,omitempty"`
	Event          *eventDetailsJSON             `json:"event,omitempty"`
	Infrastructure *domain.InfrastructureDetails `json:"infrastructure,omitempty"`
	Policy         *domain.PolicyDetails         `json:"policy,omitempty"`
}

// eventDetailsJSON mirrors EventDetails without the organization links,
// which live in the directory_institutions table like every other variant.
type eventDetailsJSON struct {
	StartDate  *time.Time            `json:"start_date,omitempty"`
	EndDate    *time.Time            `json:"end_date,omitempty"`
	Attendance domain.AttendanceType `json:"attendance,omitempty"`
}

// Create inserts a new directory record with its links and details.
func (r *PgDirectoryRepository) Create(ctx context.Context, record *domain.DirectoryRecord) error {
	if record == nil {
		return domain.NewValidationError("directory_record", "record cannot be nil")
	}
	if record.Title == "" {
		return domain.NewValidationError("title", "title is required")
	}
	if !record.Status.Valid() {
		return domain.NewValidationError("record_status", "unknown status "+string(record.Status))
	}

	detailsJSON, err := marshalDetails(record)
	if err != nil {
		return err
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	now := time.Now().UTC()
	record.Control.CreatedAt = now
	record.Control.UpdatedAt = now

	query := `
		INSERT INTO directory_records (
			id, directory_type, title, link, description, action_id, practice_id,
			classification, record_status, institutional_contribution, details,
			created_at, updated_at, created_by, updated_by
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12, $13, $13
		)`

	_, err = r.db.Exec(ctx, query,
		record.ID,
		record.Type,
		record.Title,
		record.Link,
		record.Description,
		record.ActionID,
		record.PracticeID,
		record.Classification,
		record.Status,
		record.InstitutionalContribution,
		detailsJSON,
		now,
		record.Control.CreatedBy,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("directory record %s: %w", record.ID, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to insert directory record: %w", err)
	}

	return r.replaceLinks(ctx, record)
}

// GetByID retrieves a record with links and details populated.
func (r *PgDirectoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.DirectoryRecord, error) {
	row := r.db.QueryRow(ctx, directorySelect+` WHERE id = $1`, id)
	record, err := scanDirectoryRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("directory_record", id.String())
		}
		return nil, fmt.Errorf("failed to get directory record: %w", err)
	}

	if err := r.loadLinks(ctx, record); err != nil {
		return nil, err
	}
	// Events carry their institutions as organizations.
	if record.Type == domain.DirectoryTypeEvent && record.Event != nil {
		record.Event.OrganizationIDs = record.InstitutionIDs
	}

	return record, nil
}

// Update persists scalar fields, details and replaces the link sets.
func (r *PgDirectoryRepository) Update(ctx context.Context, record *domain.DirectoryRecord) error {
	if record == nil {
		return domain.NewValidationError("directory_record", "record cannot be nil")
	}
	if !record.Status.Valid() {
		return domain.NewValidationError("record_status", "unknown status "+string(record.Status))
	}

	detailsJSON, err := marshalDetails(record)
	if err != nil {
		return err
	}

	query := `
		UPDATE directory_records SET
			title = $2,
			link = $3,
			description = $4,
			action_id = $5,
			practice_id = $6,
			classification = $7,
			record_status = $8,
			institutional_contribution = $9,
			details = $10,
			updated_at = NOW(),
			updated_by = $11
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query,
		record.ID,
		record.Title,
		record.Link,
		record.Description,
		record.ActionID,
		record.PracticeID,
		record.Classification,
		record.Status,
		record.InstitutionalContribution,
		detailsJSON,
		record.Control.UpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to update directory record: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("directory_record", record.ID.String())
	}

	for _, table := range []string{
		"directory_institutions", "directory_locations",
		"directory_thematic_areas", "directory_tags",
	} {
		if _, err := r.db.Exec(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE record_id = $1`, table), record.ID); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	return r.replaceLinks(ctx, record)
}

// UpdateStatus moves a record to the given moderation status.
func (r *PgDirectoryRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.RecordStatus, updatedBy string) error {
	if !status.Valid() {
		return domain.NewValidationError("record_status", "unknown status "+string(status))
	}

	result, err := r.db.Exec(ctx, `
		UPDATE directory_records
		SET record_status = $2, updated_at = NOW(), updated_by = $3
		WHERE id = $1`,
		id, status, updatedBy)
	if err != nil {
		return fmt.Errorf("failed to update record status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("directory_record", id.String())
	}
	return nil
}

// Delete removes a record; link rows go with it via ON DELETE CASCADE.
func (r *PgDirectoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM directory_records WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete directory record: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("directory_record", id.String())
	}
	return nil
}

// List retrieves records matching the filter criteria.
func (r *PgDirectoryRepository) List(ctx context.Context, filter DirectoryFilter) ([]*domain.DirectoryRecord, int64, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, err
	}

	var conditions []string
	var args []interface{}
	argIndex := 1

	if filter.Type != nil {
		conditions = append(conditions, fmt.Sprintf("directory_type = $%d", argIndex))
		args = append(args, *filter.Type)
		argIndex++
	}
	if len(filter.Status) > 0 {
		conditions = append(conditions, fmt.Sprintf("record_status = ANY($%d)", argIndex))
		statuses := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			statuses[i] = string(s)
		}
		args = append(args, statuses)
		argIndex++
	}
	if filter.ActionID != nil {
		conditions = append(conditions, fmt.Sprintf("action_id = $%d", argIndex))
		args = append(args, *filter.ActionID)
		argIndex++
	}
	if filter.PracticeID != nil {
		conditions = append(conditions, fmt.Sprintf("practice_id = $%d", argIndex))
		args = append(args, *filter.PracticeID)
		argIndex++
	}
	if filter.UpdatedAfter != nil {
		conditions = append(conditions, fmt.Sprintf("updated_at > $%d", argIndex))
		args = append(args, *filter.UpdatedAfter)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM directory_records %s", whereClause)
	var totalCount int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count directory records: %w", err)
	}

	selectQuery := fmt.Sprintf(`%s %s ORDER BY updated_at DESC LIMIT $%d OFFSET $%d`,
		directorySelect, whereClause, argIndex, argIndex+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list directory records: %w", err)
	}
	defer rows.Close()

	records := make([]*domain.DirectoryRecord, 0, filter.Limit)
	for rows.Next() {
		record, err := scanDirectoryRecord(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan directory record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating directory records: %w", err)
	}

	return records, totalCount, nil
}

func (r *PgDirectoryRepository) replaceLinks(ctx context.Context, record *domain.DirectoryRecord) error {
	institutionIDs := record.InstitutionIDs
	if record.Type == domain.DirectoryTypeEvent && record.Event != nil && len(record.Event.OrganizationIDs) > 0 {
		institutionIDs = record.Event.OrganizationIDs
	}

	type linkSet struct {
		table  string
		column string
		ids    []uuid.UUID
	}
	sets := []linkSet{
		{"directory_institutions", "institution_id", institutionIDs},
		{"directory_locations", "location_id", record.LocationIDs},
		{"directory_thematic_areas", "thematic_area_id", record.ThematicAreaIDs},
		{"directory_tags", "tag_id", record.TagIDs},
	}

	for _, set := range sets {
		for _, id := range set.ids {
			query := fmt.Sprintf(`
				INSERT INTO %s (record_id, %s)
				VALUES ($1, $2)
				ON CONFLICT (record_id, %s) DO NOTHING`,
				set.table, set.column, set.column)
			if _, err := r.db.Exec(ctx, query, record.ID, id); err != nil {
				return fmt.Errorf("failed to link %s: %w", set.column, err)
			}
		}
	}

	return nil
}

func (r *PgDirectoryRepository) loadLinks(ctx context.Context, record *domain.DirectoryRecord) error {
	load := func(query string, dest *[]uuid.UUID) error {
		rows, err := r.db.Query(ctx, query, record.ID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id uuid.UUID
			if err := rows.Scan(&id); err != nil {
				return err
			}
			*dest = append(*dest, id)
		}
		return rows.Err()
	}

	if err := load(`SELECT institution_id FROM directory_institutions WHERE record_id = $1`, &record.InstitutionIDs); err != nil {
		return fmt.Errorf("failed to load record institutions: %w", err)
	}
	if err := load(`SELECT location_id FROM directory_locations WHERE record_id = $1`, &record.LocationIDs); err != nil {
		return fmt.Errorf("failed to load record locations: %w", err)
	}
	if err := load(`SELECT thematic_area_id FROM directory_thematic_areas WHERE record_id = $1`, &record.ThematicAreaIDs); err != nil {
		return fmt.Errorf("failed to load record thematic areas: %w", err)
	}
	if err := load(`SELECT tag_id FROM directory_tags WHERE record_id = $1`, &record.TagIDs); err != nil {
		return fmt.Errorf("failed to load record tags: %w", err)
	}

	return nil
}

func marshalDetails(record *domain.DirectoryRecord) ([]byte, error) {
	details := directoryDetails{
		Education:      record.Education,
		Infrastructure: record.Infrastructure,
		Policy:         record.Policy,
	}
	if record.Event != nil {
		details.Event = &eventDetailsJSON{
			StartDate:  record.Event.StartDate,
			EndDate:    record.Event.EndDate,
			Attendance: record.Event.Attendance,
		}
	}

	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record details: %w", err)
	}
	return detailsJSON, nil
}

// scanDirectoryRecord scans a single row into a DirectoryRecord.
func scanDirectoryRecord(row pgx.Row) (*domain.DirectoryRecord, error) {
	var record domain.DirectoryRecord
	var detailsJSON []byte
	if err := row.Scan(
		&record.ID, &record.Type, &record.Title, &record.Link, &record.Description,
		&record.ActionID, &record.PracticeID, &record.Classification, &record.Status,
		&record.InstitutionalContribution, &detailsJSON,
		&record.Control.CreatedAt, &record.Control.UpdatedAt,
		&record.Control.CreatedBy, &record.Control.UpdatedBy,
	); err != nil {
		return nil, err
	}

	if len(detailsJSON) > 0 {
		var details directoryDetails
		if err := json.Unmarshal(detailsJSON, &details); err != nil {
			return nil, fmt.Errorf("failed to unmarshal record details: %w", err)
		}
		record.Education = details.Education
		record.Infrastructure = details.Infrastructure
		record.Policy = details.Policy
		if details.Event != nil {
			record.Event = &domain.EventDetails{
				StartDate:  details.Event.StartDate,
				EndDate:    details.Event.EndDate,
				Attendance: details.Event.Attendance,
			}
		}
	}

	return &record, nil
}
