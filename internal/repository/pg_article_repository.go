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
var _ ArticleRepository = (*PgArticleRepository)(nil)

// PgArticleRepository is a PostgreSQL implementation of ArticleRepository.
type PgArticleRepository struct {
	db DBTX
}

// NewPgArticleRepository creates a new PostgreSQL article repository.
func NewPgArticleRepository(db DBTX) *PgArticleRepository {
	return &PgArticleRepository{db: db}
}

const articleSelect = `
	SELECT id, title, doi, volume, number, year, is_oa, open_access_status,
		apc, license_id, journal_id, created_at, updated_at
	FROM articles`

// CreateOrUpdate matches the article by doi, falling back to title, then
// inserts or updates it. M:N sets are additive.
func (r *PgArticleRepository) CreateOrUpdate(ctx context.Context, article *domain.Article) (*domain.Article, domain.UpsertOutcome, error) {
	if article == nil {
		return nil, "", domain.NewValidationError("article", "article cannot be nil")
	}
	if err := article.Validate(); err != nil {
		return nil, "", err
	}

	var matchQuery string
	var matchArg interface{}
	var keys string
	if article.DOI != "" {
		matchQuery = articleSelect + ` WHERE doi = $1`
		matchArg = article.DOI
		keys = "doi=" + article.DOI
	} else {
		matchQuery = articleSelect + ` WHERE title = $1`
		matchArg = article.Title
		keys = "title=" + article.Title
	}

	matches, err := r.queryArticles(ctx, matchQuery, matchArg)
	if err != nil {
		return nil, "", fmt.Errorf("failed to match article: %w", err)
	}

	var outcome domain.UpsertOutcome
	switch len(matches) {
	case 0:
		if err := r.insert(ctx, article); err != nil {
			return nil, "", err
		}
		outcome = domain.OutcomeCreated
	case 1:
		if err := r.update(ctx, matches[0], article); err != nil {
			return nil, "", err
		}
		outcome = domain.OutcomeUpdated
	default:
		return nil, "", domain.NewAmbiguousIdentityError("article", keys, len(matches))
	}

	if err := r.addLinks(ctx, article); err != nil {
		return nil, "", err
	}

	return article, outcome, nil
}

func (r *PgArticleRepository) insert(ctx context.Context, article *domain.Article) error {
	if article.ID == uuid.Nil {
		article.ID = uuid.New()
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO articles (
			id, title, doi, volume, number, year, is_oa, open_access_status,
			apc, license_id, journal_id, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12
		)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		article.ID,
		article.Title,
		article.DOI,
		article.Volume,
		article.Number,
		article.Year,
		article.IsOA,
		article.OpenAccessStatus,
		article.APC,
		article.LicenseID,
		article.JournalID,
		now,
	).Scan(&article.ID, &article.CreatedAt, &article.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert article: %w", err)
	}

	return nil
}

// update writes incoming scalar fields over the matched row. Empty
// incoming values keep the stored ones; nil FK pointers keep the stored
// links.
func (r *PgArticleRepository) update(ctx context.Context, existing, incoming *domain.Article) error {
	query := `
		UPDATE articles SET
			title = COALESCE(NULLIF($2, ''), title),
			doi = COALESCE(NULLIF($3, ''), doi),
			volume = COALESCE(NULLIF($4, ''), volume),
			number = COALESCE(NULLIF($5, ''), number),
			year = COALESCE($6, year),
			is_oa = $7,
			open_access_status = COALESCE(NULLIF($8, ''), open_access_status),
			apc = COALESCE(NULLIF($9, ''), apc),
			license_id = COALESCE($10, license_id),
			journal_id = COALESCE($11, journal_id),
			updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		existing.ID,
		incoming.Title,
		incoming.DOI,
		incoming.Volume,
		incoming.Number,
		incoming.Year,
		incoming.IsOA || existing.IsOA,
		string(incoming.OpenAccessStatus),
		incoming.APC,
		incoming.LicenseID,
		incoming.JournalID,
	).Scan(&incoming.CreatedAt, &incoming.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update article: %w", err)
	}

	incoming.ID = existing.ID
	return nil
}

// addLinks inserts the incoming M:N link rows, skipping pairs that
// already exist.
func (r *PgArticleRepository) addLinks(ctx context.Context, article *domain.Article) error {
	type linkSet struct {
		table  string
		column string
		ids    []uuid.UUID
	}
	sets := []linkSet{
		{"article_contributors", "contributor_id", article.ContributorIDs},
		{"article_sources", "source_id", article.SourceIDs},
		{"article_concepts", "concept_id", article.ConceptIDs},
	}

	for _, set := range sets {
		for _, id := range set.ids {
			query := fmt.Sprintf(`
				INSERT INTO %s (article_id, %s)
				VALUES ($1, $2)
				ON CONFLICT (article_id, %s) DO NOTHING`,
				set.table, set.column, set.column)
			if _, err := r.db.Exec(ctx, query, article.ID, id); err != nil {
				return fmt.Errorf("failed to link %s: %w", set.column, err)
			}
		}
	}

	return nil
}

// GetByID retrieves an article with its M:N link sets populated.
func (r *PgArticleRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Article, error) {
	row := r.db.QueryRow(ctx, articleSelect+` WHERE id = $1`, id)
	article, err := scanArticle(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("article", id.String())
		}
		return nil, fmt.Errorf("failed to get article by ID: %w", err)
	}

	if err := r.loadLinks(ctx, article); err != nil {
		return nil, err
	}

	return article, nil
}

// GetByDOI retrieves an article by DOI.
func (r *PgArticleRepository) GetByDOI(ctx context.Context, doi string) (*domain.Article, error) {
	if doi == "" {
		return nil, domain.NewInvalidArgumentError("article", "doi", "doi is required")
	}

	row := r.db.QueryRow(ctx, articleSelect+` WHERE doi = $1`, doi)
	article, err := scanArticle(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("article", doi)
		}
		return nil, fmt.Errorf("failed to get article by DOI: %w", err)
	}

	if err := r.loadLinks(ctx, article); err != nil {
		return nil, err
	}

	return article, nil
}

// GetByTitle retrieves an article by exact title, the identity fallback
// for DOI-less works.
func (r *PgArticleRepository) GetByTitle(ctx context.Context, title string) (*domain.Article, error) {
	if title == "" {
		return nil, domain.NewInvalidArgumentError("article", "title", "title is required")
	}

	matches, err := r.queryArticles(ctx, articleSelect+` WHERE title = $1`, title)
	if err != nil {
		return nil, fmt.Errorf("failed to get article by title: %w", err)
	}
	switch len(matches) {
	case 0:
		return nil, domain.NewNotFoundError("article", title)
	case 1:
	default:
		return nil, domain.NewAmbiguousIdentityError("article", "title="+title, len(matches))
	}

	article := matches[0]
	if err := r.loadLinks(ctx, article); err != nil {
		return nil, err
	}

	return article, nil
}

func (r *PgArticleRepository) loadLinks(ctx context.Context, article *domain.Article) error {
	load := func(query string, dest *[]uuid.UUID) error {
		rows, err := r.db.Query(ctx, query, article.ID)
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

	if err := load(`SELECT contributor_id FROM article_contributors WHERE article_id = $1`, &article.ContributorIDs); err != nil {
		return fmt.Errorf("failed to load article contributors: %w", err)
	}
	if err := load(`SELECT source_id FROM article_sources WHERE article_id = $1`, &article.SourceIDs); err != nil {
		return fmt.Errorf("failed to load article sources: %w", err)
	}
	if err := load(`SELECT concept_id FROM article_concepts WHERE article_id = $1`, &article.ConceptIDs); err != nil {
		return fmt.Errorf("failed to load article concepts: %w", err)
	}

	return nil
}

// List retrieves articles matching the filter criteria.
func (r *PgArticleRepository) List(ctx context.Context, filter ArticleFilter) ([]*domain.Article, int64, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, err
	}

	var conditions []string
	var args []interface{}
	argIndex := 1

	if filter.Year != nil {
		conditions = append(conditions, fmt.Sprintf("a.year = $%d", argIndex))
		args = append(args, *filter.Year)
		argIndex++
	}
	if filter.YearFrom != nil {
		conditions = append(conditions, fmt.Sprintf("a.year >= $%d", argIndex))
		args = append(args, *filter.YearFrom)
		argIndex++
	}
	if filter.YearTo != nil {
		conditions = append(conditions, fmt.Sprintf("a.year <= $%d", argIndex))
		args = append(args, *filter.YearTo)
		argIndex++
	}
	if filter.JournalID != nil {
		conditions = append(conditions, fmt.Sprintf("a.journal_id = $%d", argIndex))
		args = append(args, *filter.JournalID)
		argIndex++
	}
	if filter.SourceID != nil {
		conditions = append(conditions, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM article_sources s WHERE s.article_id = a.id AND s.source_id = $%d)", argIndex))
		args = append(args, *filter.SourceID)
		argIndex++
	}
	if filter.IsOA != nil {
		conditions = append(conditions, fmt.Sprintf("a.is_oa = $%d", argIndex))
		args = append(args, *filter.IsOA)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM articles a %s", whereClause)
	var totalCount int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count articles: %w", err)
	}

	selectQuery := fmt.Sprintf(`
		SELECT a.id, a.title, a.doi, a.volume, a.number, a.year, a.is_oa,
			a.open_access_status, a.apc, a.license_id, a.journal_id,
			a.created_at, a.updated_at
		FROM articles a
		%s
		ORDER BY a.created_at DESC
		LIMIT $%d OFFSET $%d`,
		whereClause, argIndex, argIndex+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list articles: %w", err)
	}
	defer rows.Close()

	articles := make([]*domain.Article, 0, filter.Limit)
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan article: %w", err)
		}
		articles = append(articles, article)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating articles: %w", err)
	}

	return articles, totalCount, nil
}

func (r *PgArticleRepository) queryArticles(ctx context.Context, query string, args ...interface{}) ([]*domain.Article, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var articles []*domain.Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, article)
	}
	return articles, rows.Err()
}

// scanArticle scans a single row into an Article.
func scanArticle(row pgx.Row) (*domain.Article, error) {
	var article domain.Article
	if err := row.Scan(
		&article.ID, &article.Title, &article.DOI, &article.Volume, &article.Number,
		&article.Year, &article.IsOA, &article.OpenAccessStatus, &article.APC,
		&article.LicenseID, &article.JournalID, &article.CreatedAt, &article.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &article, nil
}
