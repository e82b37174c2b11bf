package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ocabr/observatory/internal/domain"
)

// Compile-time interface verification.
var _ RawRepository = (*PgRawRepository)(nil)

// PgRawRepository is a PostgreSQL implementation of RawRepository.
type PgRawRepository struct {
	db DBTX
}

// NewPgRawRepository creates a new PostgreSQL raw snapshot repository.
func NewPgRawRepository(db DBTX) *PgRawRepository {
	return &PgRawRepository{db: db}
}

// UpsertArticle inserts a new raw article or updates the existing row for
// the same (specific_id, source) pair.
func (r *PgRawRepository) UpsertArticle(ctx context.Context, raw *domain.RawArticle) (*domain.RawArticle, error) {
	if raw == nil {
		return nil, domain.NewValidationError("raw_article", "raw article cannot be nil")
	}
	if raw.SpecificID == "" {
		return nil, domain.NewInvalidArgumentError("raw_article", "specific_id", "specific ID is required")
	}
	if raw.Source == "" {
		return nil, domain.NewInvalidArgumentError("raw_article", "source", "source is required")
	}

	if raw.ID == uuid.Nil {
		raw.ID = uuid.New()
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO raw_articles (
			id, specific_id, source, payload, doi, title, year,
			source_created, source_updated, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10
		)
		ON CONFLICT (specific_id, source) DO UPDATE SET
			payload = EXCLUDED.payload,
			doi = EXCLUDED.doi,
			title = EXCLUDED.title,
			year = EXCLUDED.year,
			source_created = COALESCE(EXCLUDED.source_created, raw_articles.source_created),
			source_updated = EXCLUDED.source_updated,
			updated_at = NOW()
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		raw.ID,
		raw.SpecificID,
		raw.Source,
		raw.Payload,
		raw.DOI,
		raw.Title,
		raw.Year,
		raw.SourceCreated,
		raw.SourceUpdated,
		now,
	).Scan(&raw.ID, &raw.CreatedAt, &raw.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert raw article: %w", err)
	}

	return raw, nil
}

// UpsertInstitution inserts a new raw institution or updates the existing
// row for the same (specific_id, source) pair.
func (r *PgRawRepository) UpsertInstitution(ctx context.Context, raw *domain.RawInstitution) (*domain.RawInstitution, error) {
	if raw == nil {
		return nil, domain.NewValidationError("raw_institution", "raw institution cannot be nil")
	}
	if raw.SpecificID == "" {
		return nil, domain.NewInvalidArgumentError("raw_institution", "specific_id", "specific ID is required")
	}
	if raw.Source == "" {
		return nil, domain.NewInvalidArgumentError("raw_institution", "source", "source is required")
	}

	if raw.ID == uuid.Nil {
		raw.ID = uuid.New()
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO raw_institutions (
			id, specific_id, source, payload, name, country_code,
			source_created, source_updated, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $9
		)
		ON CONFLICT (specific_id, source) DO UPDATE SET
			payload = EXCLUDED.payload,
			name = EXCLUDED.name,
			country_code = EXCLUDED.country_code,
			source_created = COALESCE(EXCLUDED.source_created, raw_institutions.source_created),
			source_updated = EXCLUDED.source_updated,
			updated_at = NOW()
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		raw.ID,
		raw.SpecificID,
		raw.Source,
		raw.Payload,
		raw.Name,
		raw.CountryCode,
		raw.SourceCreated,
		raw.SourceUpdated,
		now,
	).Scan(&raw.ID, &raw.CreatedAt, &raw.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert raw institution: %w", err)
	}

	return raw, nil
}

// UpsertJournal inserts a new raw journal or updates the existing row for
// the same (specific_id, source) pair.
func (r *PgRawRepository) UpsertJournal(ctx context.Context, raw *domain.RawJournal) (*domain.RawJournal, error) {
	if raw == nil {
		return nil, domain.NewValidationError("raw_journal", "raw journal cannot be nil")
	}
	if raw.SpecificID == "" {
		return nil, domain.NewInvalidArgumentError("raw_journal", "specific_id", "specific ID is required")
	}
	if raw.Source == "" {
		return nil, domain.NewInvalidArgumentError("raw_journal", "source", "source is required")
	}

	if raw.ID == uuid.Nil {
		raw.ID = uuid.New()
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO raw_journals (
			id, specific_id, source, payload, issn_l, name,
			source_created, source_updated, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $9
		)
		ON CONFLICT (specific_id, source) DO UPDATE SET
			payload = EXCLUDED.payload,
			issn_l = EXCLUDED.issn_l,
			name = EXCLUDED.name,
			source_created = COALESCE(EXCLUDED.source_created, raw_journals.source_created),
			source_updated = EXCLUDED.source_updated,
			updated_at = NOW()
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		raw.ID,
		raw.SpecificID,
		raw.Source,
		raw.Payload,
		raw.ISSNL,
		raw.Name,
		raw.SourceCreated,
		raw.SourceUpdated,
		now,
	).Scan(&raw.ID, &raw.CreatedAt, &raw.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert raw journal: %w", err)
	}

	return raw, nil
}

// GetArticle retrieves a raw article by its source-local identifier.
func (r *PgRawRepository) GetArticle(ctx context.Context, specificID string, source domain.SourceName) (*domain.RawArticle, error) {
	if specificID == "" {
		return nil, domain.NewInvalidArgumentError("raw_article", "specific_id", "specific ID is required")
	}
	if source == "" {
		return nil, domain.NewInvalidArgumentError("raw_article", "source", "source is required")
	}

	query := rawArticleSelect + ` WHERE specific_id = $1 AND source = $2`

	row := r.db.QueryRow(ctx, query, specificID, source)
	raw, err := scanRawArticle(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("raw_article", fmt.Sprintf("%s:%s", source, specificID))
		}
		return nil, fmt.Errorf("failed to get raw article: %w", err)
	}

	return raw, nil
}

// GetArticleByID retrieves a raw article by its UUID.
func (r *PgRawRepository) GetArticleByID(ctx context.Context, id uuid.UUID) (*domain.RawArticle, error) {
	query := rawArticleSelect + ` WHERE id = $1`

	row := r.db.QueryRow(ctx, query, id)
	raw, err := scanRawArticle(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("raw_article", id.String())
		}
		return nil, fmt.Errorf("failed to get raw article by ID: %w", err)
	}

	return raw, nil
}

// ListArticles retrieves raw articles matching the filter criteria.
func (r *PgRawRepository) ListArticles(ctx context.Context, filter RawArticleFilter) ([]*domain.RawArticle, int64, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, err
	}

	var conditions []string
	var args []interface{}
	argIndex := 1

	if filter.Source != nil {
		conditions = append(conditions, fmt.Sprintf("source = $%d", argIndex))
		args = append(args, *filter.Source)
		argIndex++
	}
	if filter.Year != nil {
		conditions = append(conditions, fmt.Sprintf("year = $%d", argIndex))
		args = append(args, *filter.Year)
		argIndex++
	}
	if filter.UpdatedAfter != nil {
		conditions = append(conditions, fmt.Sprintf("updated_at > $%d", argIndex))
		args = append(args, *filter.UpdatedAfter)
		argIndex++
	}
	if filter.HasDOI != nil {
		if *filter.HasDOI {
			conditions = append(conditions, "doi != ''")
		} else {
			conditions = append(conditions, "doi = ''")
		}
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM raw_articles %s", whereClause)
	var totalCount int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count raw articles: %w", err)
	}

	selectQuery := fmt.Sprintf(`%s %s ORDER BY created_at ASC LIMIT $%d OFFSET $%d`,
		rawArticleSelect, whereClause, argIndex, argIndex+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list raw articles: %w", err)
	}
	defer rows.Close()

	articles := make([]*domain.RawArticle, 0, filter.Limit)
	for rows.Next() {
		raw, err := scanRawArticle(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan raw article: %w", err)
		}
		articles = append(articles, raw)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating raw articles: %w", err)
	}

	return articles, totalCount, nil
}

// ListInstitutions retrieves raw institutions for a source.
func (r *PgRawRepository) ListInstitutions(ctx context.Context, source domain.SourceName, limit, offset int) ([]*domain.RawInstitution, int64, error) {
	applyPaginationDefaults(&limit, &offset)

	var totalCount int64
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM raw_institutions WHERE source = $1", source).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count raw institutions: %w", err)
	}

	query := `
		SELECT id, specific_id, source, payload, name, country_code,
			source_created, source_updated, created_at, updated_at
		FROM raw_institutions
		WHERE source = $1
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, source, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list raw institutions: %w", err)
	}
	defer rows.Close()

	institutions := make([]*domain.RawInstitution, 0, limit)
	for rows.Next() {
		var raw domain.RawInstitution
		if err := rows.Scan(
			&raw.ID, &raw.SpecificID, &raw.Source, &raw.Payload, &raw.Name, &raw.CountryCode,
			&raw.SourceCreated, &raw.SourceUpdated, &raw.CreatedAt, &raw.UpdatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan raw institution: %w", err)
		}
		institutions = append(institutions, &raw)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating raw institutions: %w", err)
	}

	return institutions, totalCount, nil
}

// ListJournals retrieves raw journals for a source.
func (r *PgRawRepository) ListJournals(ctx context.Context, source domain.SourceName, limit, offset int) ([]*domain.RawJournal, int64, error) {
	applyPaginationDefaults(&limit, &offset)

	var totalCount int64
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM raw_journals WHERE source = $1", source).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count raw journals: %w", err)
	}

	query := `
		SELECT id, specific_id, source, payload, issn_l, name,
			source_created, source_updated, created_at, updated_at
		FROM raw_journals
		WHERE source = $1
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, source, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list raw journals: %w", err)
	}
	defer rows.Close()

	journals := make([]*domain.RawJournal, 0, limit)
	for rows.Next() {
		var raw domain.RawJournal
		if err := rows.Scan(
			&raw.ID, &raw.SpecificID, &raw.Source, &raw.Payload, &raw.ISSNL, &raw.Name,
			&raw.SourceCreated, &raw.SourceUpdated, &raw.CreatedAt, &raw.UpdatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan raw journal: %w", err)
		}
		journals = append(journals, &raw)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating raw journals: %w", err)
	}

	return journals, totalCount, nil
}

const rawArticleSelect = `
	SELECT id, specific_id, source, payload, doi, title, year,
		source_created, source_updated, created_at, updated_at
	FROM raw_articles`

// scanRawArticle scans a single row into a RawArticle.
func scanRawArticle(row pgx.Row) (*domain.RawArticle, error) {
	var raw domain.RawArticle
	if err := row.Scan(
		&raw.ID, &raw.SpecificID, &raw.Source, &raw.Payload, &raw.DOI, &raw.Title, &raw.Year,
		&raw.SourceCreated, &raw.SourceUpdated, &raw.CreatedAt, &raw.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &raw, nil
}
