package lot

import (
	"time"

	"github.com/dms/backend/internal/domain/lot"
	"github.com/dms/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LotBatchResponse represents a lot/batch in API responses
type LotBatchResponse struct {
	ID                uuid.UUID       `json:"id"`
	TenantID          uuid.UUID       `json:"tenant_id"`
	ProductID         uuid.UUID       `json:"product_id"`
	AgencyID          uuid.UUID       `json:"agency_id"`
	LotNumber         string          `json:"lot_number"`
	BatchNumber       string          `json:"batch_number,omitempty"`
	ManufacturingDate time.Time       `json:"manufacturing_date"`
	ExpiryDate        *time.Time      `json:"expiry_date,omitempty"`
	Quantity          decimal.Decimal `json:"quantity"`
	RemainingQuantity decimal.Decimal `json:"remaining_quantity"`
	ReservedQuantity  decimal.Decimal `json:"reserved_quantity"`
	AvailableQuantity decimal.Decimal `json:"available_quantity"`
	ConsumedQuantity  decimal.Decimal `json:"consumed_quantity"`
	Status            string          `json:"status"`
	SupplierID        *uuid.UUID      `json:"supplier_id,omitempty"`
	SupplierLotCode   string          `json:"supplier_lot_code,omitempty"`
	Notes             string          `json:"notes,omitempty"`
	DaysUntilExpiry   int             `json:"days_until_expiry"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	Version           int             `json:"version"`
}

// ToLotBatchResponse maps a lot aggregate to its response representation
func ToLotBatchResponse(l *lot.Lot) LotBatchResponse {
	return LotBatchResponse{
		ID:                l.ID,
		TenantID:          l.TenantID,
		ProductID:         l.ProductID,
		AgencyID:          l.AgencyID,
		LotNumber:         l.LotNumber,
		BatchNumber:       l.BatchNumber,
		ManufacturingDate: l.ManufacturingDate,
		ExpiryDate:        l.ExpiryDate,
		Quantity:          l.Quantity,
		RemainingQuantity: l.RemainingQuantity,
		ReservedQuantity:  l.ReservedQuantity,
		AvailableQuantity: l.AvailableQuantity(),
		ConsumedQuantity:  l.ConsumedQuantity(),
		Status:            l.Status.String(),
		SupplierID:        l.SupplierID,
		SupplierLotCode:   l.SupplierLotCode,
		Notes:             l.Notes,
		DaysUntilExpiry:   l.DaysUntilExpiry(),
		CreatedAt:         l.CreatedAt,
		UpdatedAt:         l.UpdatedAt,
		Version:           l.Version,
	}
}

// ToLotBatchResponses maps a slice of lots
func ToLotBatchResponses(lots []*lot.Lot) []LotBatchResponse {
	out := make([]LotBatchResponse, len(lots))
	for i, l := range lots {
		out[i] = ToLotBatchResponse(l)
	}
	return out
}

// CreateLotBatchRequest represents a request to register a new lot/batch
type CreateLotBatchRequest struct {
	ProductID         uuid.UUID       `json:"product_id" binding:"required"`
	AgencyID          uuid.UUID       `json:"agency_id" binding:"required"`
	LotNumber         string          `json:"lot_number" binding:"required,max=100"`
	BatchNumber       string          `json:"batch_number" binding:"max=100"`
	ManufacturingDate time.Time       `json:"manufacturing_date" binding:"required"`
	ExpiryDate        *time.Time      `json:"expiry_date"`
	Quantity          decimal.Decimal `json:"quantity" binding:"required,gt=0"`
	SupplierID        *uuid.UUID      `json:"supplier_id"`
	SupplierLotCode   string          `json:"supplier_lot_code" binding:"max=100"`
	Notes             string          `json:"notes" binding:"max=500"`
}

// UpdateLotBatchRequest represents a request to update descriptive lot fields
type UpdateLotBatchRequest struct {
	BatchNumber     string     `json:"batch_number" binding:"max=100"`
	SupplierID      *uuid.UUID `json:"supplier_id"`
	SupplierLotCode string     `json:"supplier_lot_code" binding:"max=100"`
	Notes           string     `json:"notes" binding:"max=500"`
}

// LotListFilter represents filter options for lot search
type LotListFilter struct {
	AgencyID  uuid.UUID  `form:"agency_id" binding:"required"`
	ProductID *uuid.UUID `form:"product_id"`
	Search    string     `form:"search"`
	Page      int        `form:"page" binding:"min=0"`
	PageSize  int        `form:"page_size" binding:"min=0,max=100"`
	OrderBy   string     `form:"order_by"`
	OrderDir  string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// ToFilter converts the list filter to the shared repository filter
func (f LotListFilter) ToFilter() shared.Filter {
	return shared.Filter{
		Page:     f.Page,
		PageSize: f.PageSize,
		OrderBy:  f.OrderBy,
		OrderDir: f.OrderDir,
		Search:   f.Search,
	}
}

// QuantityRequest carries the amount for reserve/release/consume operations
type QuantityRequest struct {
	Quantity decimal.Decimal `json:"quantity" binding:"required,gt=0"`
}

// AdjustQuantityRequest represents an administrative remaining-quantity correction
type AdjustQuantityRequest struct {
	NewRemaining decimal.Decimal `json:"new_remaining" binding:"gte=0"`
	Reason       string          `json:"reason" binding:"required,min=5,max=500"`
}

// TransitionRequest moves a lot to a new lifecycle status
type TransitionRequest struct {
	Status string `json:"status" binding:"required,lotstatus"`
}

// AllocateOrderItemRequest represents a request to allocate lots to an order item
type AllocateOrderItemRequest struct {
	OrderItemID uuid.UUID       `json:"order_item_id" binding:"required"`
	ProductID   uuid.UUID       `json:"product_id" binding:"required"`
	AgencyID    uuid.UUID       `json:"agency_id" binding:"required"`
	Quantity    decimal.Decimal `json:"quantity" binding:"required,gt=0"`
	// RequireFull overrides the configured default when set
	RequireFull *bool `json:"require_full"`
}

// AllocationResponse represents one order-item lot allocation
type AllocationResponse struct {
	OrderItemID       uuid.UUID       `json:"order_item_id"`
	LotBatchID        uuid.UUID       `json:"lot_batch_id"`
	LotNumber         string          `json:"lot_number"`
	BatchNumber       string          `json:"batch_number,omitempty"`
	AllocatedQuantity decimal.Decimal `json:"allocated_quantity"`
	ManufacturingDate time.Time       `json:"manufacturing_date"`
	ExpiryDate        *time.Time      `json:"expiry_date,omitempty"`
	ReservedAt        time.Time       `json:"reserved_at"`
	ReservedBy        uuid.UUID       `json:"reserved_by"`
}

// ToAllocationResponse maps a domain allocation to its response representation
func ToAllocationResponse(a lot.OrderItemLotAllocation) AllocationResponse {
	return AllocationResponse{
		OrderItemID:       a.OrderItemID,
		LotBatchID:        a.LotBatchID,
		LotNumber:         a.LotNumber,
		BatchNumber:       a.BatchNumber,
		AllocatedQuantity: a.AllocatedQuantity,
		ManufacturingDate: a.ManufacturingDate,
		ExpiryDate:        a.ExpiryDate,
		ReservedAt:        a.ReservedAt,
		ReservedBy:        a.ReservedBy,
	}
}

// ToAllocationResponses maps a slice of allocations
func ToAllocationResponses(allocations []lot.OrderItemLotAllocation) []AllocationResponse {
	out := make([]AllocationResponse, len(allocations))
	for i, a := range allocations {
		out[i] = ToAllocationResponse(a)
	}
	return out
}

// AllocateResultResponse represents the outcome of an order-item allocation
type AllocateResultResponse struct {
	OrderItemID    uuid.UUID            `json:"order_item_id"`
	Allocations    []AllocationResponse `json:"allocations"`
	TotalRequested decimal.Decimal      `json:"total_requested"`
	TotalAllocated decimal.Decimal      `json:"total_allocated"`
	Shortfall      decimal.Decimal      `json:"shortfall"`
	FullyFulfilled bool                 `json:"fully_fulfilled"`
}

// ToAllocateResultResponse maps an allocation result
func ToAllocateResultResponse(r *lot.AllocateResult) AllocateResultResponse {
	return AllocateResultResponse{
		OrderItemID:    r.OrderItemID,
		Allocations:    ToAllocationResponses(r.Allocations),
		TotalRequested: r.TotalRequested,
		TotalAllocated: r.TotalAllocated,
		Shortfall:      r.Shortfall,
		FullyFulfilled: r.FullyFulfilled,
	}
}

// AllocationSummaryResponse represents the read-only allocation summary
type AllocationSummaryResponse struct {
	OrderItemID            uuid.UUID            `json:"order_item_id"`
	TotalAllocations       int                  `json:"total_allocations"`
	TotalAllocatedQuantity decimal.Decimal      `json:"total_allocated_quantity"`
	OldestLotDate          time.Time            `json:"oldest_lot_date"`
	NewestLotDate          time.Time            `json:"newest_lot_date"`
	HasExpiringLots        bool                 `json:"has_expiring_lots"`
	Allocations            []AllocationResponse `json:"allocations"`
}

// ToAllocationSummaryResponse maps a domain summary
func ToAllocationSummaryResponse(orderItemID uuid.UUID, s *lot.AllocationSummary) AllocationSummaryResponse {
	return AllocationSummaryResponse{
		OrderItemID:            orderItemID,
		TotalAllocations:       s.TotalAllocations,
		TotalAllocatedQuantity: s.TotalAllocatedQuantity,
		OldestLotDate:          s.OldestLotDate,
		NewestLotDate:          s.NewestLotDate,
		HasExpiringLots:        s.HasExpiringLots,
		Allocations:            ToAllocationResponses(s.Allocations()),
	}
}

// ExpiringLotsReportResponse lists lots approaching expiry within a window
type ExpiringLotsReportResponse struct {
	WindowDays int                `json:"window_days"`
	Lots       []LotBatchResponse `json:"lots"`
}
