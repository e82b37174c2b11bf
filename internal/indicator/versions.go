package indicator

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/ocabr/observatory/internal/database"
	"github.com/ocabr/observatory/internal/domain"
	"github.com/ocabr/observatory/internal/repository"
)

// TxVersionStore persists indicator versions with the supersession flip
// and the insert in one transaction.
type TxVersionStore struct {
	db *database.DB
}

// NewTxVersionStore creates a transactional version store.
func NewTxVersionStore(db *database.DB) *TxVersionStore {
	return &TxVersionStore{db: db}
}

// CreateVersion runs the repository insert inside a transaction.
func (s *TxVersionStore) CreateVersion(ctx context.Context, indicator *domain.Indicator) (*domain.Indicator, error) {
	var created *domain.Indicator
	err := s.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		var err error
		created, err = repository.NewPgIndicatorRepository(tx).CreateVersion(ctx, indicator)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetCurrent reads the chain head outside any transaction.
func (s *TxVersionStore) GetCurrent(ctx context.Context, key domain.ChainKey, measurement domain.Measurement) (*domain.Indicator, error) {
	return repository.NewPgIndicatorRepository(s.db.Pool()).GetCurrent(ctx, key, measurement)
}
