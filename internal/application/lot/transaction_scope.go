package lot

import (
	"context"

	"github.com/dms/backend/internal/domain/lot"
)

// TransactionScope provides transactional access to the lot repositories.
// When a function is executed within a transaction scope, all repository
// operations are part of the same database transaction and commit or roll
// back atomically.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	// If the function succeeds, the transaction is committed.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to the lot repositories within
// a transaction. Both repositories share the same underlying transaction,
// so a multi-lot reservation and its allocation records persist atomically:
// candidate reads, lot mutations, and allocation writes all see the same
// transaction snapshot.
type TransactionalRepositories interface {
	// LotRepo returns the lot repository scoped to the current transaction
	LotRepo() lot.LotRepository
	// AllocationRepo returns the allocation repository scoped to the current transaction
	AllocationRepo() lot.AllocationRepository
}

// NoOpTransactionScope is a transaction scope that doesn't actually use
// transactions. Useful for tests.
type NoOpTransactionScope struct {
	lotRepo        lot.LotRepository
	allocationRepo lot.AllocationRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(lotRepo lot.LotRepository, allocationRepo lot.AllocationRepository) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		lotRepo:        lotRepo,
		allocationRepo: allocationRepo,
	}
}

// Execute runs the function directly without a transaction
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// LotRepo returns the lot repository
func (s *NoOpTransactionScope) LotRepo() lot.LotRepository {
	return s.lotRepo
}

// AllocationRepo returns the allocation repository
func (s *NoOpTransactionScope) AllocationRepo() lot.AllocationRepository {
	return s.allocationRepo
}
