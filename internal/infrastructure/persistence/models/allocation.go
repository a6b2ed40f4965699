package models

import (
	"time"

	"github.com/dms/backend/internal/domain/lot"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderItemLotAllocationModel is the persistence model for order-item lot
// allocations. Dates are stored as epoch milliseconds (UTC) so the rows
// round-trip identically across SQLite and Postgres.
type OrderItemLotAllocationModel struct {
	ID                  uuid.UUID       `gorm:"type:uuid;primary_key"`
	TenantID            uuid.UUID       `gorm:"type:uuid;not null;index"`
	OrderItemID         uuid.UUID       `gorm:"type:uuid;not null;index"`
	LotBatchID          uuid.UUID       `gorm:"type:uuid;not null;index"`
	LotNumber           string          `gorm:"type:varchar(100);not null"`
	BatchNumber         string          `gorm:"type:varchar(100)"`
	AllocatedQuantity   decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	ManufacturingDateMs int64           `gorm:"not null"`
	ExpiryDateMs        *int64
	ReservedAtMs        int64           `gorm:"not null"`
	ReservedBy          uuid.UUID       `gorm:"type:uuid;not null"`
}

// TableName returns the table name for GORM
func (OrderItemLotAllocationModel) TableName() string {
	return "order_item_lot_allocations"
}

// EpochMillis converts a time to epoch milliseconds
func EpochMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// FromEpochMillis converts epoch milliseconds back to a UTC time
func FromEpochMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// NewOrderItemLotAllocationModel maps a domain allocation to its persistence model
func NewOrderItemLotAllocationModel(tenantID uuid.UUID, a lot.OrderItemLotAllocation) OrderItemLotAllocationModel {
	m := OrderItemLotAllocationModel{
		ID:                  uuid.New(),
		TenantID:            tenantID,
		OrderItemID:         a.OrderItemID,
		LotBatchID:          a.LotBatchID,
		LotNumber:           a.LotNumber,
		BatchNumber:         a.BatchNumber,
		AllocatedQuantity:   a.AllocatedQuantity,
		ManufacturingDateMs: EpochMillis(a.ManufacturingDate),
		ReservedAtMs:        EpochMillis(a.ReservedAt),
		ReservedBy:          a.ReservedBy,
	}
	if a.ExpiryDate != nil {
		ms := EpochMillis(*a.ExpiryDate)
		m.ExpiryDateMs = &ms
	}
	return m
}

// ToDomain converts the persistence model back to the domain allocation
func (m *OrderItemLotAllocationModel) ToDomain() lot.OrderItemLotAllocation {
	a := lot.OrderItemLotAllocation{
		OrderItemID:       m.OrderItemID,
		LotBatchID:        m.LotBatchID,
		LotNumber:         m.LotNumber,
		BatchNumber:       m.BatchNumber,
		AllocatedQuantity: m.AllocatedQuantity,
		ManufacturingDate: FromEpochMillis(m.ManufacturingDateMs),
		ReservedAt:        FromEpochMillis(m.ReservedAtMs),
		ReservedBy:        m.ReservedBy,
	}
	if m.ExpiryDateMs != nil {
		t := FromEpochMillis(*m.ExpiryDateMs)
		a.ExpiryDate = &t
	}
	return a
}
