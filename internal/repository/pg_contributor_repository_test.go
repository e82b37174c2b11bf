package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocabr/observatory/internal/domain"
)

var contributorColumns = []string{
	"id", "family", "given", "orcid", "affiliations_string", "created_at", "updated_at",
}

func TestPgContributorRepository_CreateOrUpdate(t *testing.T) {
	t.Run("creates contributor when identity matches nothing", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgContributorRepository(mock)
		now := time.Now().UTC()
		affiliations := "Universidade Federal de Pelotas"

		mock.ExpectQuery("SELECT .* FROM contributors").
			WithArgs("C. Hallal", "Pedro", pgxmock.AnyArg(), &affiliations).
			WillReturnRows(pgxmock.NewRows(contributorColumns))

		mock.ExpectQuery("INSERT INTO contributors").
			WithArgs(pgxmock.AnyArg(), "C. Hallal", "Pedro", pgxmock.AnyArg(), &affiliations, pgxmock.AnyArg()).
			WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).
				AddRow(uuid.New(), now, now))

		contributor := &domain.Contributor{
			Family:             "C. Hallal",
			Given:              "Pedro",
			AffiliationsString: &affiliations,
		}

		result, outcome, err := repo.CreateOrUpdate(context.Background(), contributor)
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeCreated, outcome)
		assert.NotEqual(t, uuid.Nil, result.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nil orcid matches only null column", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgContributorRepository(mock)
		existingID := uuid.New()
		now := time.Now().UTC()

		// One row with NULL orcid and NULL affiliations matches the bare
		// identity; the stored row already carries the full state.
		mock.ExpectQuery("SELECT .* FROM contributors").
			WithArgs("Silva", "Maria", pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnRows(pgxmock.NewRows(contributorColumns).
				AddRow(existingID, "Silva", "Maria", nil, nil, now, now))

		mock.ExpectExec("UPDATE contributors SET updated_at").
			WithArgs(existingID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		contributor := &domain.Contributor{Family: "Silva", Given: "Maria"}

		result, outcome, err := repo.CreateOrUpdate(context.Background(), contributor)
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeUpdated, outcome)
		assert.Equal(t, existingID, result.ID)
		assert.Nil(t, result.ORCID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns ambiguous identity on multiple matches", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgContributorRepository(mock)
		now := time.Now().UTC()

		mock.ExpectQuery("SELECT .* FROM contributors").
			WithArgs("Silva", "Maria", pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnRows(pgxmock.NewRows(contributorColumns).
				AddRow(uuid.New(), "Silva", "Maria", nil, nil, now, now).
				AddRow(uuid.New(), "SILVA", "MARIA", nil, nil, now, now))

		contributor := &domain.Contributor{Family: "Silva", Given: "Maria"}

		_, _, err = repo.CreateOrUpdate(context.Background(), contributor)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrAmbiguousIdentity)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects contributor without any name", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgContributorRepository(mock)

		_, _, err = repo.CreateOrUpdate(context.Background(), &domain.Contributor{})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})
}

func TestPgContributorRepository_UpsertAffiliation(t *testing.T) {
	t.Run("returns existing affiliation on name match", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgContributorRepository(mock)
		existingID := uuid.New()
		now := time.Now().UTC()

		mock.ExpectQuery("SELECT .* FROM affiliations").
			WithArgs("Universidade de São Paulo").
			WillReturnRows(pgxmock.NewRows([]string{
				"id", "name", "official_id", "country_id", "score", "created_at", "updated_at",
			}).AddRow(existingID, "Universidade de São Paulo", nil, nil, nil, now, now))

		aff := &domain.Affiliation{Name: "Universidade de São Paulo"}

		result, outcome, err := repo.UpsertAffiliation(context.Background(), aff)
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeUpdated, outcome)
		assert.Equal(t, existingID, result.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("creates affiliation when name is new", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgContributorRepository(mock)
		now := time.Now().UTC()

		mock.ExpectQuery("SELECT .* FROM affiliations").
			WithArgs("Fiocruz").
			WillReturnError(pgx.ErrNoRows)

		mock.ExpectQuery("INSERT INTO affiliations").
			WithArgs(pgxmock.AnyArg(), "Fiocruz", pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).
				AddRow(uuid.New(), now, now))

		aff := &domain.Affiliation{Name: "Fiocruz"}

		result, outcome, err := repo.UpsertAffiliation(context.Background(), aff)
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeCreated, outcome)
		assert.NotEqual(t, uuid.Nil, result.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects affiliation without name", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgContributorRepository(mock)

		_, _, err = repo.UpsertAffiliation(context.Background(), &domain.Affiliation{})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})
}

func TestPgContributorRepository_ResolveAffiliation(t *testing.T) {
	t.Run("fills official and country links", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgContributorRepository(mock)
		affID := uuid.New()
		officialID := uuid.New()
		countryID := uuid.New()
		score := 0.82

		mock.ExpectExec("UPDATE affiliations SET").
			WithArgs(affID, &officialID, &countryID, &score).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err = repo.ResolveAffiliation(context.Background(), affID, &officialID, &countryID, &score, false)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("force overwrites existing links", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgContributorRepository(mock)
		affID := uuid.New()
		officialID := uuid.New()

		mock.ExpectExec(`UPDATE affiliations SET\s+official_id = COALESCE\(\$2, official_id\)`).
			WithArgs(affID, &officialID, pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err = repo.ResolveAffiliation(context.Background(), affID, &officialID, nil, nil, true)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found for unknown affiliation", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgContributorRepository(mock)

		mock.ExpectExec("UPDATE affiliations SET").
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err = repo.ResolveAffiliation(context.Background(), uuid.New(), nil, nil, nil, false)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgContributorRepository_CountUnresolved(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgContributorRepository(mock)

	mock.ExpectQuery("SELECT").
		WillReturnRows(pgxmock.NewRows([]string{"official", "country"}).
			AddRow(int64(42), int64(17)))

	official, country, err := repo.CountUnresolved(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), official)
	assert.Equal(t, int64(17), country)
	assert.NoError(t, mock.ExpectationsWereMet())
}
