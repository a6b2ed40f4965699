package persistence

import (
	"context"

	"github.com/dms/backend/internal/domain/lot"
	"github.com/dms/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormAllocationRepository implements lot.AllocationRepository using GORM.
// Rows store dates as epoch milliseconds; mapping lives in the models
// package.
type GormAllocationRepository struct {
	db *gorm.DB
}

// NewGormAllocationRepository creates a new GormAllocationRepository
func NewGormAllocationRepository(db *gorm.DB) *GormAllocationRepository {
	return &GormAllocationRepository{db: db}
}

// FindByOrderItemID returns an order item's allocations ordered by
// manufacturing date then lot number, mirroring FIFO selection order
func (r *GormAllocationRepository) FindByOrderItemID(ctx context.Context, tenantID, orderItemID uuid.UUID) ([]lot.OrderItemLotAllocation, error) {
	var rows []models.OrderItemLotAllocationModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND order_item_id = ?", tenantID, orderItemID).
		Order("manufacturing_date_ms ASC, lot_number ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainAllocations(rows), nil
}

// FindByLotBatchID returns all allocations that draw on a lot
func (r *GormAllocationRepository) FindByLotBatchID(ctx context.Context, tenantID, lotBatchID uuid.UUID) ([]lot.OrderItemLotAllocation, error) {
	var rows []models.OrderItemLotAllocationModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND lot_batch_id = ?", tenantID, lotBatchID).
		Order("reserved_at_ms ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainAllocations(rows), nil
}

// SaveAll persists an allocation set
func (r *GormAllocationRepository) SaveAll(ctx context.Context, tenantID uuid.UUID, allocations []lot.OrderItemLotAllocation) error {
	if len(allocations) == 0 {
		return nil
	}
	rows := make([]models.OrderItemLotAllocationModel, len(allocations))
	for i, a := range allocations {
		rows[i] = models.NewOrderItemLotAllocationModel(tenantID, a)
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

// DeleteByOrderItemID removes all allocations of an order item
func (r *GormAllocationRepository) DeleteByOrderItemID(ctx context.Context, tenantID, orderItemID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("tenant_id = ? AND order_item_id = ?", tenantID, orderItemID).
		Delete(&models.OrderItemLotAllocationModel{}).Error
}

func toDomainAllocations(rows []models.OrderItemLotAllocationModel) []lot.OrderItemLotAllocation {
	out := make([]lot.OrderItemLotAllocation, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out
}

var _ lot.AllocationRepository = (*GormAllocationRepository)(nil)
