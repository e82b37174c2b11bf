// Package repository provides data access interfaces and implementations
// for the observatory canonical store.
//
// # Overview
//
// This package defines repository interfaces and their PostgreSQL implementations
// following the repository pattern to abstract data persistence from business logic.
//
// # Repository Interfaces
//
// The package provides the following repository interfaces:
//
//   - RawRepository: Manages upstream record snapshots keyed by (specific_id, source)
//   - JournalRepository, ContributorRepository, ArticleRepository: Canonical
//     bibliographic entities with the create-or-update contract
//   - InstitutionRepository, GeographyRepository, LookupRepository: Official
//     registries, locations and reference tables
//   - DirectoryRepository: Curated directory records and their moderation state
//   - IndicatorRepository: Versioned indicator artifacts and supersession chains
//   - HarvestRunRepository: Harvest task bookkeeping
//
// # Create-Or-Update Contract
//
// Canonical entity repositories expose CreateOrUpdate methods that match on the
// entity's declared identity key:
//
//   - zero matches: insert, return (entity, OutcomeCreated)
//   - one match: update scalar fields, add to M:N sets, return (entity, OutcomeUpdated)
//   - multiple matches: return domain.AmbiguousIdentityError
//   - missing identity key: return domain.InvalidArgumentError
//
// String identity keys documented as case-insensitive (journal and contributor
// names) are compared with LOWER() in SQL.
//
// # Thread Safety
//
// All repository implementations are safe for concurrent use by multiple goroutines.
// The underlying pgxpool handles connection pooling and synchronization.
//
// # Error Handling
//
// All methods return domain-specific errors from the domain package.
// Wrap database errors with context using fmt.Errorf with %w verb.
// Common errors include:
//
//   - domain.ErrNotFound: Resource does not exist
//   - domain.ErrAlreadyExists: Unique constraint violation
//   - domain.ErrAmbiguousIdentity: Identity key matched more than one row
//   - domain.ErrInvalidArgument: Required identity key absent
//
// # Transactions
//
// Use the DBTX interface to support both pool and transaction contexts.
// Pass transaction from database.DB.WithTransaction for atomic operations;
// indicator supersession relies on this to flip validity and chain pointers
// in the same transaction as the insert.
//
// # Usage Pattern
//
// Repositories are typically created at application startup and passed to services:
//
//	db, _ := database.New(ctx, cfg, logger)
//	rawRepo := repository.NewPgRawRepository(db)
//	articleRepo := repository.NewPgArticleRepository(db)
//	indicatorRepo := repository.NewPgIndicatorRepository(db)
package repository

import (
	"github.com/ocabr/observatory/internal/database"
)

// DBTX is the database interface supporting both pool and transaction contexts.
// This allows repositories to work with both direct pool connections and transactions.
//
// # Constructor Pattern
//
// Repository implementations follow a constructor pattern that accepts DBTX:
//
//	type PgArticleRepository struct {
//	    db DBTX
//	}
//
//	func NewPgArticleRepository(db DBTX) *PgArticleRepository {
//	    return &PgArticleRepository{db: db}
//	}
//
// This design enables:
//   - Direct usage with a connection pool for standard operations
//   - Transaction support by passing a transaction (pgx.Tx) instead
//   - Easy testing with mock implementations of DBTX
//
// # Transaction Usage Example
//
//	err := db.WithTransaction(ctx, func(tx pgx.Tx) error {
//	    // Create a transactional repository instance
//	    txRepo := repository.NewPgIndicatorRepository(tx)
//	    // All operations within this function use the same transaction
//	    return txRepo.CreateVersion(ctx, indicator)
//	})
type DBTX = database.DBTX

// Filter pagination defaults and limits.
const (
	defaultFilterLimit = 100
	maxFilterLimit     = 1000
)

// applyPaginationDefaults normalizes limit and offset values for filter queries.
// It clamps limit to [1, maxFilterLimit] and ensures offset >= 0.
func applyPaginationDefaults(limit, offset *int) {
	if *limit <= 0 {
		*limit = defaultFilterLimit
	}
	if *limit > maxFilterLimit {
		*limit = maxFilterLimit
	}
	if *offset < 0 {
		*offset = 0
	}
}
