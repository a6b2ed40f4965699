package lot

import (
	"time"

	"github.com/dms/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Aggregate type constant
const AggregateTypeLotBatch = "LotBatch"

// Event type constants
const (
	EventTypeLotCreated         = "LotCreated"
	EventTypeQuantityReserved   = "LotQuantityReserved"
	EventTypeQuantityReleased   = "LotQuantityReleased"
	EventTypeQuantityConsumed   = "LotQuantityConsumed"
	EventTypeQuantityAdjusted   = "LotQuantityAdjusted"
	EventTypeStatusChanged      = "LotStatusChanged"
	EventTypeLotDeleted         = "LotDeleted"
	EventTypeOrderItemAllocated = "OrderItemAllocated"
	EventTypeAllocationReleased = "OrderItemAllocationReleased"
)

// LotCreatedEvent is raised when a new lot is registered
type LotCreatedEvent struct {
	shared.BaseDomainEvent
	LotID             uuid.UUID       `json:"lot_id"`
	ProductID         uuid.UUID       `json:"product_id"`
	AgencyID          uuid.UUID       `json:"agency_id"`
	LotNumber         string          `json:"lot_number"`
	BatchNumber       string          `json:"batch_number,omitempty"`
	ManufacturingDate time.Time       `json:"manufacturing_date"`
	Quantity          decimal.Decimal `json:"quantity"`
}

// NewLotCreatedEvent creates a new LotCreatedEvent
func NewLotCreatedEvent(l *Lot) *LotCreatedEvent {
	return &LotCreatedEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventTypeLotCreated, AggregateTypeLotBatch, l.ID, l.TenantID),
		LotID:             l.ID,
		ProductID:         l.ProductID,
		AgencyID:          l.AgencyID,
		LotNumber:         l.LotNumber,
		BatchNumber:       l.BatchNumber,
		ManufacturingDate: l.ManufacturingDate,
		Quantity:          l.Quantity,
	}
}

// QuantityReservedEvent is raised when quantity is reserved on a lot
type QuantityReservedEvent struct {
	shared.BaseDomainEvent
	LotID             uuid.UUID       `json:"lot_id"`
	LotNumber         string          `json:"lot_number"`
	Quantity          decimal.Decimal `json:"quantity"`
	ReservedQuantity  decimal.Decimal `json:"reserved_quantity"`
	AvailableQuantity decimal.Decimal `json:"available_quantity"`
	ReservedBy        uuid.UUID       `json:"reserved_by"`
}

// NewQuantityReservedEvent creates a new QuantityReservedEvent
func NewQuantityReservedEvent(l *Lot, quantity decimal.Decimal, byUser uuid.UUID) *QuantityReservedEvent {
	return &QuantityReservedEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventTypeQuantityReserved, AggregateTypeLotBatch, l.ID, l.TenantID),
		LotID:             l.ID,
		LotNumber:         l.LotNumber,
		Quantity:          quantity,
		ReservedQuantity:  l.ReservedQuantity,
		AvailableQuantity: l.AvailableQuantity(),
		ReservedBy:        byUser,
	}
}

// QuantityReleasedEvent is raised when reserved quantity is returned to the available pool
type QuantityReleasedEvent struct {
	shared.BaseDomainEvent
	LotID             uuid.UUID       `json:"lot_id"`
	LotNumber         string          `json:"lot_number"`
	Quantity          decimal.Decimal `json:"quantity"`
	ReservedQuantity  decimal.Decimal `json:"reserved_quantity"`
	AvailableQuantity decimal.Decimal `json:"available_quantity"`
	ReleasedBy        uuid.UUID       `json:"released_by"`
}

// NewQuantityReleasedEvent creates a new QuantityReleasedEvent
func NewQuantityReleasedEvent(l *Lot, quantity decimal.Decimal, byUser uuid.UUID) *QuantityReleasedEvent {
	return &QuantityReleasedEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventTypeQuantityReleased, AggregateTypeLotBatch, l.ID, l.TenantID),
		LotID:             l.ID,
		LotNumber:         l.LotNumber,
		Quantity:          quantity,
		ReservedQuantity:  l.ReservedQuantity,
		AvailableQuantity: l.AvailableQuantity(),
		ReleasedBy:        byUser,
	}
}

// QuantityConsumedEvent is raised when quantity is permanently deducted
type QuantityConsumedEvent struct {
	shared.BaseDomainEvent
	LotID             uuid.UUID       `json:"lot_id"`
	LotNumber         string          `json:"lot_number"`
	Quantity          decimal.Decimal `json:"quantity"`
	RemainingQuantity decimal.Decimal `json:"remaining_quantity"`
	ConsumedBy        uuid.UUID       `json:"consumed_by"`
}

// NewQuantityConsumedEvent creates a new QuantityConsumedEvent
func NewQuantityConsumedEvent(l *Lot, quantity decimal.Decimal, byUser uuid.UUID) *QuantityConsumedEvent {
	return &QuantityConsumedEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventTypeQuantityConsumed, AggregateTypeLotBatch, l.ID, l.TenantID),
		LotID:             l.ID,
		LotNumber:         l.LotNumber,
		Quantity:          quantity,
		RemainingQuantity: l.RemainingQuantity,
		ConsumedBy:        byUser,
	}
}

// QuantityAdjustedEvent is raised for administrative stock corrections.
// The reason is mandatory so adjustments are always auditable.
type QuantityAdjustedEvent struct {
	shared.BaseDomainEvent
	LotID             uuid.UUID       `json:"lot_id"`
	LotNumber         string          `json:"lot_number"`
	PreviousRemaining decimal.Decimal `json:"previous_remaining"`
	NewRemaining      decimal.Decimal `json:"new_remaining"`
	Delta             decimal.Decimal `json:"delta"`
	Reason            string          `json:"reason"`
	AdjustedBy        uuid.UUID       `json:"adjusted_by"`
}

// NewQuantityAdjustedEvent creates a new QuantityAdjustedEvent
func NewQuantityAdjustedEvent(l *Lot, previous, current decimal.Decimal, reason string, byUser uuid.UUID) *QuantityAdjustedEvent {
	return &QuantityAdjustedEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventTypeQuantityAdjusted, AggregateTypeLotBatch, l.ID, l.TenantID),
		LotID:             l.ID,
		LotNumber:         l.LotNumber,
		PreviousRemaining: previous,
		NewRemaining:      current,
		Delta:             current.Sub(previous),
		Reason:            reason,
		AdjustedBy:        byUser,
	}
}

// StatusChangedEvent is raised on every lifecycle status transition
type StatusChangedEvent struct {
	shared.BaseDomainEvent
	LotID     uuid.UUID `json:"lot_id"`
	LotNumber string    `json:"lot_number"`
	From      Status    `json:"from"`
	To        Status    `json:"to"`
	ChangedBy uuid.UUID `json:"changed_by"`
}

// NewStatusChangedEvent creates a new StatusChangedEvent
func NewStatusChangedEvent(l *Lot, from, to Status, byUser uuid.UUID) *StatusChangedEvent {
	return &StatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStatusChanged, AggregateTypeLotBatch, l.ID, l.TenantID),
		LotID:           l.ID,
		LotNumber:       l.LotNumber,
		From:            from,
		To:              to,
		ChangedBy:       byUser,
	}
}

// LotDeletedEvent is raised when a lot is deleted. When the deletion was
// forced, the discarded quantities are recorded for the audit trail.
type LotDeletedEvent struct {
	shared.BaseDomainEvent
	LotID             uuid.UUID       `json:"lot_id"`
	LotNumber         string          `json:"lot_number"`
	Forced            bool            `json:"forced"`
	DiscardedRemaining decimal.Decimal `json:"discarded_remaining"`
	DiscardedReserved  decimal.Decimal `json:"discarded_reserved"`
	DeletedBy         uuid.UUID       `json:"deleted_by"`
}

// NewLotDeletedEvent creates a new LotDeletedEvent
func NewLotDeletedEvent(l *Lot, forced bool, byUser uuid.UUID) *LotDeletedEvent {
	return &LotDeletedEvent{
		BaseDomainEvent:    shared.NewBaseDomainEvent(EventTypeLotDeleted, AggregateTypeLotBatch, l.ID, l.TenantID),
		LotID:              l.ID,
		LotNumber:          l.LotNumber,
		Forced:             forced,
		DiscardedRemaining: l.RemainingQuantity,
		DiscardedReserved:  l.ReservedQuantity,
		DeletedBy:          byUser,
	}
}

// OrderItemAllocatedEvent is raised when an order item's allocation set is recorded
type OrderItemAllocatedEvent struct {
	shared.BaseDomainEvent
	OrderItemID    uuid.UUID       `json:"order_item_id"`
	ProductID      uuid.UUID       `json:"product_id"`
	TotalRequested decimal.Decimal `json:"total_requested"`
	TotalAllocated decimal.Decimal `json:"total_allocated"`
	LotCount       int             `json:"lot_count"`
	FullyFulfilled bool            `json:"fully_fulfilled"`
	AllocatedBy    uuid.UUID       `json:"allocated_by"`
}

// NewOrderItemAllocatedEvent creates a new OrderItemAllocatedEvent
func NewOrderItemAllocatedEvent(tenantID, orderItemID, productID uuid.UUID, requested, allocated decimal.Decimal, lotCount int, byUser uuid.UUID) *OrderItemAllocatedEvent {
	return &OrderItemAllocatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderItemAllocated, AggregateTypeLotBatch, orderItemID, tenantID),
		OrderItemID:     orderItemID,
		ProductID:       productID,
		TotalRequested:  requested,
		TotalAllocated:  allocated,
		LotCount:        lotCount,
		FullyFulfilled:  allocated.Equal(requested),
		AllocatedBy:     byUser,
	}
}

// AllocationReleasedEvent is raised when an order item's allocations are released
type AllocationReleasedEvent struct {
	shared.BaseDomainEvent
	OrderItemID   uuid.UUID       `json:"order_item_id"`
	TotalReleased decimal.Decimal `json:"total_released"`
	LotCount      int             `json:"lot_count"`
	ReleasedBy    uuid.UUID       `json:"released_by"`
}

// NewAllocationReleasedEvent creates a new AllocationReleasedEvent
func NewAllocationReleasedEvent(tenantID, orderItemID uuid.UUID, totalReleased decimal.Decimal, lotCount int, byUser uuid.UUID) *AllocationReleasedEvent {
	return &AllocationReleasedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeAllocationReleased, AggregateTypeLotBatch, orderItemID, tenantID),
		OrderItemID:     orderItemID,
		TotalReleased:   totalReleased,
		LotCount:        lotCount,
		ReleasedBy:      byUser,
	}
}
