package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ocabr/observatory/internal/domain"
)

// Compile-time interface verification.
var _ JournalRepository = (*PgJournalRepository)(nil)

// PgJournalRepository is a PostgreSQL implementation of JournalRepository.
type PgJournalRepository struct {
	db DBTX
}

// NewPgJournalRepository creates a new PostgreSQL journal repository.
func NewPgJournalRepository(db DBTX) *PgJournalRepository {
	return &PgJournalRepository{db: db}
}

const journalSelect = `
	SELECT id, issn_l, issns, name, publisher, is_in_doaj, created_at, updated_at
	FROM journals`

// CreateOrUpdate matches the journal by issn_l, falling back to the
// case-insensitive name, then inserts or updates it.
func (r *PgJournalRepository) CreateOrUpdate(ctx context.Context, journal *domain.Journal) (*domain.Journal, domain.UpsertOutcome, error) {
	if journal == nil {
		return nil, "", domain.NewValidationError("journal", "journal cannot be nil")
	}
	if journal.ISSNL == "" && journal.Name == "" {
		return nil, "", domain.NewInvalidArgumentError("journal", "issn_l", "issn_l or name is required")
	}

	var matchQuery string
	var matchArg interface{}
	var keys string
	if journal.ISSNL != "" {
		matchQuery = journalSelect + ` WHERE issn_l = $1`
		matchArg = journal.ISSNL
		keys = "issn_l=" + journal.ISSNL
	} else {
		matchQuery = journalSelect + ` WHERE LOWER(name) = LOWER($1)`
		matchArg = journal.Name
		keys = "name=" + journal.Name
	}

	matches, err := r.queryJournals(ctx, matchQuery, matchArg)
	if err != nil {
		return nil, "", fmt.Errorf("failed to match journal: %w", err)
	}

	switch len(matches) {
	case 0:
		created, err := r.insert(ctx, journal)
		if err != nil {
			return nil, "", err
		}
		return created, domain.OutcomeCreated, nil
	case 1:
		updated, err := r.update(ctx, matches[0], journal)
		if err != nil {
			return nil, "", err
		}
		return updated, domain.OutcomeUpdated, nil
	default:
		return nil, "", domain.NewAmbiguousIdentityError("journal", keys, len(matches))
	}
}

func (r *PgJournalRepository) insert(ctx context.Context, journal *domain.Journal) (*domain.Journal, error) {
	if journal.ID == uuid.Nil {
		journal.ID = uuid.New()
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO journals (id, issn_l, issns, name, publisher, is_in_doaj, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		journal.ID,
		journal.ISSNL,
		journal.ISSNs,
		journal.Name,
		journal.Publisher,
		journal.IsInDOAJ,
		now,
	).Scan(&journal.ID, &journal.CreatedAt, &journal.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert journal: %w", err)
	}

	return journal, nil
}

// update writes the incoming scalar fields over the matched row. The
// ISSNs set is merged rather than replaced; empty incoming scalars keep
// the stored value.
func (r *PgJournalRepository) update(ctx context.Context, existing, incoming *domain.Journal) (*domain.Journal, error) {
	merged := mergeStringSets(existing.ISSNs, incoming.ISSNs)

	query := `
		UPDATE journals SET
			issn_l = COALESCE(NULLIF($2, ''), issn_l),
			issns = $3,
			name = COALESCE(NULLIF($4, ''), name),
			publisher = COALESCE(NULLIF($5, ''), publisher),
			is_in_doaj = $6,
			updated_at = NOW()
		WHERE id = $1
		RETURNING id, issn_l, issns, name, publisher, is_in_doaj, created_at, updated_at`

	row := r.db.QueryRow(ctx, query,
		existing.ID,
		incoming.ISSNL,
		merged,
		incoming.Name,
		incoming.Publisher,
		incoming.IsInDOAJ || existing.IsInDOAJ,
	)
	updated, err := scanJournal(row)
	if err != nil {
		return nil, fmt.Errorf("failed to update journal: %w", err)
	}

	return updated, nil
}

// GetByID retrieves a journal by its UUID.
func (r *PgJournalRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Journal, error) {
	row := r.db.QueryRow(ctx, journalSelect+` WHERE id = $1`, id)
	journal, err := scanJournal(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("journal", id.String())
		}
		return nil, fmt.Errorf("failed to get journal by ID: %w", err)
	}
	return journal, nil
}

// GetByISSNL retrieves a journal by its linking ISSN.
func (r *PgJournalRepository) GetByISSNL(ctx context.Context, issnl string) (*domain.Journal, error) {
	if issnl == "" {
		return nil, domain.NewInvalidArgumentError("journal", "issn_l", "issn_l is required")
	}

	row := r.db.QueryRow(ctx, journalSelect+` WHERE issn_l = $1`, issnl)
	journal, err := scanJournal(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("journal", issnl)
		}
		return nil, fmt.Errorf("failed to get journal by ISSN-L: %w", err)
	}
	return journal, nil
}

// List retrieves journals ordered by name.
func (r *PgJournalRepository) List(ctx context.Context, limit, offset int) ([]*domain.Journal, int64, error) {
	applyPaginationDefaults(&limit, &offset)

	var totalCount int64
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM journals").Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count journals: %w", err)
	}

	rows, err := r.db.Query(ctx, journalSelect+` ORDER BY name ASC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list journals: %w", err)
	}
	defer rows.Close()

	journals := make([]*domain.Journal, 0, limit)
	for rows.Next() {
		journal, err := scanJournal(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan journal: %w", err)
		}
		journals = append(journals, journal)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating journals: %w", err)
	}

	return journals, totalCount, nil
}

func (r *PgJournalRepository) queryJournals(ctx context.Context, query string, args ...interface{}) ([]*domain.Journal, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var journals []*domain.Journal
	for rows.Next() {
		journal, err := scanJournal(rows)
		if err != nil {
			return nil, err
		}
		journals = append(journals, journal)
	}
	return journals, rows.Err()
}

// scanJournal scans a single row into a Journal.
func scanJournal(row pgx.Row) (*domain.Journal, error) {
	var journal domain.Journal
	if err := row.Scan(
		&journal.ID, &journal.ISSNL, &journal.ISSNs, &journal.Name,
		&journal.Publisher, &journal.IsInDOAJ, &journal.CreatedAt, &journal.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &journal, nil
}

// mergeStringSets unions two string slices preserving the order of first
// appearance.
func mergeStringSets(existing, incoming []string) []string {
	seen := make(map[string]bool, len(existing)+len(incoming))
	merged := make([]string, 0, len(existing)+len(incoming))
	for _, s := range existing {
		if s != "" && !seen[s] {
			seen[s] = true
			merged = append(merged, s)
		}
	}
	for _, s := range incoming {
		if s != "" && !seen[s] {
			seen[s] = true
			merged = append(merged, s)
		}
	}
	return merged
}
