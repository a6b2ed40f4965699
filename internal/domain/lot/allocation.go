package lot

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultNearExpiryWindow is the default lookahead used to flag lots
// approaching expiry.
const DefaultNearExpiryWindow = 30 * 24 * time.Hour

// OrderItemLotAllocation records that an order item draws a quantity from
// a specific lot. The lot number, batch number and dates are denormalized
// snapshots taken at allocation time, so the historical record survives
// later lot mutation or deletion. Allocations are immutable once created;
// a re-allocation supersedes the whole set, it never edits records.
type OrderItemLotAllocation struct {
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

// NewOrderItemLotAllocation snapshots an allocation from a lot
func NewOrderItemLotAllocation(l *Lot, orderItemID uuid.UUID, quantity decimal.Decimal, reservedBy uuid.UUID, reservedAt time.Time) OrderItemLotAllocation {
	var expiry *time.Time
	if l.ExpiryDate != nil {
		e := *l.ExpiryDate
		expiry = &e
	}
	return OrderItemLotAllocation{
		OrderItemID:       orderItemID,
		LotBatchID:        l.ID,
		LotNumber:         l.LotNumber,
		BatchNumber:       l.BatchNumber,
		AllocatedQuantity: quantity,
		ManufacturingDate: l.ManufacturingDate,
		ExpiryDate:        expiry,
		ReservedAt:        reservedAt,
		ReservedBy:        reservedBy,
	}
}

// IsExpiringWithin reports whether the allocation's lot expires within the
// window measured from now. Allocations without an expiry date never count
// as expiring.
func (a OrderItemLotAllocation) IsExpiringWithin(window time.Duration) bool {
	if a.ExpiryDate == nil {
		return false
	}
	return a.ExpiryDate.Before(time.Now().Add(window))
}

// ValidateLotAllocations checks an order item's allocation set against its
// required quantity. It returns an error on any violation, never a false
// result:
//   - the set must be non-empty
//   - every allocated quantity must be positive
//   - the quantities must sum exactly to expectedQuantity
//   - every allocation must carry lot identity and a reserver
func ValidateLotAllocations(allocations []OrderItemLotAllocation, expectedQuantity decimal.Decimal) error {
	if len(allocations) == 0 {
		return newAllocationValidationError("Order item must have at least one lot allocation")
	}

	total := decimal.Zero
	for _, a := range allocations {
		if a.LotBatchID == uuid.Nil || a.LotNumber == "" {
			return newAllocationValidationError("Allocation is missing lot identity")
		}
		if a.AllocatedQuantity.LessThanOrEqual(decimal.Zero) {
			return newAllocationValidationError("Allocated quantity for lot %s must be positive", a.LotNumber)
		}
		if a.ReservedBy == uuid.Nil {
			return newAllocationValidationError("Allocation for lot %s is missing the reserving user", a.LotNumber)
		}
		total = total.Add(a.AllocatedQuantity)
	}

	if !total.Equal(expectedQuantity) {
		return newAllocationValidationError(
			"Allocated quantity %s does not match the order item quantity %s",
			total.String(), expectedQuantity.String())
	}

	return nil
}

// AllocationSummary is a read-only aggregate over an order item's
// allocation set. The allocation list is frozen at construction; accessors
// hand out copies so downstream callers cannot corrupt the audit record.
type AllocationSummary struct {
	allocations            []OrderItemLotAllocation
	TotalAllocations       int             `json:"total_allocations"`
	TotalAllocatedQuantity decimal.Decimal `json:"total_allocated_quantity"`
	OldestLotDate          time.Time       `json:"oldest_lot_date"`
	NewestLotDate          time.Time       `json:"newest_lot_date"`
	HasExpiringLots        bool            `json:"has_expiring_lots"`
}

// NewAllocationSummary builds a summary from a non-empty allocation list.
// A non-positive window falls back to DefaultNearExpiryWindow.
func NewAllocationSummary(allocations []OrderItemLotAllocation, nearExpiryWindow time.Duration) (*AllocationSummary, error) {
	if len(allocations) == 0 {
		return nil, newAllocationValidationError("Cannot build a summary from an empty allocation list")
	}
	if nearExpiryWindow <= 0 {
		nearExpiryWindow = DefaultNearExpiryWindow
	}

	frozen := make([]OrderItemLotAllocation, len(allocations))
	copy(frozen, allocations)

	summary := &AllocationSummary{
		allocations:            frozen,
		TotalAllocations:       len(frozen),
		TotalAllocatedQuantity: decimal.Zero,
		OldestLotDate:          frozen[0].ManufacturingDate,
		NewestLotDate:          frozen[0].ManufacturingDate,
	}

	for _, a := range frozen {
		summary.TotalAllocatedQuantity = summary.TotalAllocatedQuantity.Add(a.AllocatedQuantity)
		if a.ManufacturingDate.Before(summary.OldestLotDate) {
			summary.OldestLotDate = a.ManufacturingDate
		}
		if a.ManufacturingDate.After(summary.NewestLotDate) {
			summary.NewestLotDate = a.ManufacturingDate
		}
		if a.IsExpiringWithin(nearExpiryWindow) {
			summary.HasExpiringLots = true
		}
	}

	return summary, nil
}

// Allocations returns a copy of the frozen allocation list
func (s *AllocationSummary) Allocations() []OrderItemLotAllocation {
	out := make([]OrderItemLotAllocation, len(s.allocations))
	copy(out, s.allocations)
	return out
}
