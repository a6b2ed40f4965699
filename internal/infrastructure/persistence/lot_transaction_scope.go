package persistence

import (
	"context"

	applot "github.com/dms/backend/internal/application/lot"
	"github.com/dms/backend/internal/domain/lot"
	"gorm.io/gorm"
)

// GormTransactionScope implements the lot application TransactionScope
// using GORM transactions. Lot mutations and allocation records written
// inside one Execute call commit or roll back together.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos applot.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
}

// gormTransactionalRepositories provides repositories bound to one transaction
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

// LotRepo returns the lot repository scoped to the current transaction
func (r *gormTransactionalRepositories) LotRepo() lot.LotRepository {
	return NewGormLotRepository(r.tx)
}

// AllocationRepo returns the allocation repository scoped to the current transaction
func (r *gormTransactionalRepositories) AllocationRepo() lot.AllocationRepository {
	return NewGormAllocationRepository(r.tx)
}

var _ applot.TransactionScope = (*GormTransactionScope)(nil)
var _ applot.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
