package lot

import (
	"context"
	"time"

	"github.com/dms/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// LotRepository is the persistence gateway for Lot aggregates
type LotRepository interface {
	// FindByID finds a lot by its identifier
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Lot, error)

	// FindByLotNumber finds a lot by product and lot number within an agency
	FindByLotNumber(ctx context.Context, tenantID, productID, agencyID uuid.UUID, lotNumber string) (*Lot, error)

	// FindByLotAndBatchNumber narrows the lookup to a specific batch
	FindByLotAndBatchNumber(ctx context.Context, tenantID, productID, agencyID uuid.UUID, lotNumber, batchNumber string) (*Lot, error)

	// FindByProduct returns lots of a product in FIFO order
	// (manufacturing date ascending, lot number ascending)
	FindByProduct(ctx context.Context, tenantID, productID, agencyID uuid.UUID) ([]*Lot, error)

	// FindSelectableByProduct returns lots eligible for allocation in FIFO
	// order: ACTIVE status with available quantity, expired lots excluded
	FindSelectableByProduct(ctx context.Context, tenantID, productID, agencyID uuid.UUID) ([]*Lot, error)

	// Search lists lots with pagination and optional free-text filtering
	// over lot and batch numbers
	Search(ctx context.Context, tenantID, agencyID uuid.UUID, filter shared.Filter) (*shared.Paginated[*Lot], error)

	// FindExpiringSoon returns unexpired ACTIVE lots whose expiry date
	// falls within the window, soonest first
	FindExpiringSoon(ctx context.Context, tenantID, agencyID uuid.UUID, window time.Duration) ([]*Lot, error)

	// FindExpired returns lots past their expiry date that have not yet
	// been transitioned to EXPIRED
	FindExpired(ctx context.Context, tenantID uuid.UUID, asOf time.Time) ([]*Lot, error)

	// Save inserts or updates a lot
	Save(ctx context.Context, l *Lot) error

	// SaveAll persists multiple lots; the caller supplies the transaction
	SaveAll(ctx context.Context, lots []*Lot) error

	// Delete removes a lot
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

// AllocationRepository is the persistence gateway for order-item lot allocations
type AllocationRepository interface {
	// FindByOrderItemID returns the allocations of an order item ordered by
	// manufacturing date then lot number, mirroring FIFO selection order
	FindByOrderItemID(ctx context.Context, tenantID, orderItemID uuid.UUID) ([]OrderItemLotAllocation, error)

	// FindByLotBatchID returns all allocations that draw on a lot
	FindByLotBatchID(ctx context.Context, tenantID, lotBatchID uuid.UUID) ([]OrderItemLotAllocation, error)

	// SaveAll persists an allocation set for an order item
	SaveAll(ctx context.Context, tenantID uuid.UUID, allocations []OrderItemLotAllocation) error

	// DeleteByOrderItemID removes all allocations of an order item
	DeleteByOrderItemID(ctx context.Context, tenantID, orderItemID uuid.UUID) error
}
