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

var rawArticleColumns = []string{
	"id", "specific_id", "source", "payload", "doi", "title", "year",
	"source_created", "source_updated", "created_at", "updated_at",
}

func TestPgRawRepository_UpsertArticle(t *testing.T) {
	t.Run("upserts snapshot keyed by specific_id and source", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgRawRepository(mock)
		now := time.Now().UTC()
		year := 2021

		mock.ExpectQuery("INSERT INTO raw_articles").
			WithArgs(pgxmock.AnyArg(), "W2741809807", domain.SourceOpenAlex,
				[]byte(`{"id":"W2741809807"}`), "10.7717/peerj.4375",
				"The state of OA", &year, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).
				AddRow(uuid.New(), now, now))

		raw := &domain.RawArticle{
			SpecificID: "W2741809807",
			Source:     domain.SourceOpenAlex,
			Payload:    []byte(`{"id":"W2741809807"}`),
			DOI:        "10.7717/peerj.4375",
			Title:      "The state of OA",
			Year:       &year,
		}

		result, err := repo.UpsertArticle(context.Background(), raw)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, result.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects snapshot without specific_id", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgRawRepository(mock)

		_, err = repo.UpsertArticle(context.Background(), &domain.RawArticle{Source: domain.SourceOpenAlex})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("rejects snapshot without source", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgRawRepository(mock)

		_, err = repo.UpsertArticle(context.Background(), &domain.RawArticle{SpecificID: "W1"})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})
}

func TestPgRawRepository_GetArticle(t *testing.T) {
	t.Run("returns snapshot when found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgRawRepository(mock)
		id := uuid.New()
		now := time.Now().UTC()
		year := 2021

		mock.ExpectQuery("SELECT .* FROM raw_articles").
			WithArgs("W2741809807", domain.SourceOpenAlex).
			WillReturnRows(pgxmock.NewRows(rawArticleColumns).
				AddRow(id, "W2741809807", domain.SourceOpenAlex, []byte(`{}`),
					"10.7717/peerj.4375", "The state of OA", &year, nil, nil, now, now))

		raw, err := repo.GetArticle(context.Background(), "W2741809807", domain.SourceOpenAlex)
		require.NoError(t, err)
		assert.Equal(t, id, raw.ID)
		assert.Equal(t, "10.7717/peerj.4375", raw.DOI)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found for unknown snapshot", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgRawRepository(mock)

		mock.ExpectQuery("SELECT .* FROM raw_articles").
			WithArgs("W0", domain.SourceOpenAlex).
			WillReturnError(pgx.ErrNoRows)

		_, err = repo.GetArticle(context.Background(), "W0", domain.SourceOpenAlex)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgRawRepository_ListArticles(t *testing.T) {
	t.Run("filters by source with pagination", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgRawRepository(mock)
		now := time.Now().UTC()
		source := domain.SourceOpenAlex

		mock.ExpectQuery("SELECT COUNT").
			WithArgs(source).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(2)))

		mock.ExpectQuery("SELECT .* FROM raw_articles").
			WithArgs(source, 100, 0).
			WillReturnRows(pgxmock.NewRows(rawArticleColumns).
				AddRow(uuid.New(), "W1", source, []byte(`{}`), "", "First", nil, nil, nil, now, now).
				AddRow(uuid.New(), "W2", source, []byte(`{}`), "", "Second", nil, nil, nil, now, now))

		articles, total, err := repo.ListArticles(context.Background(), RawArticleFilter{Source: &source})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Len(t, articles, 2)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
