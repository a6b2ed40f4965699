package lot

import (
	"context"
	"time"

	"github.com/dms/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AllocationService coordinates order-item allocation across multiple Lot
// aggregates: FIFO selection, per-lot reservation, and construction of the
// allocation record set.
//
// It modifies the Lot aggregates in memory but does NOT persist them. The
// caller is responsible for loading the candidate lots, invoking the
// service, and persisting lots plus allocation records inside a single
// storage transaction so a failure leaves no partial reservation behind.
// When a mid-sequence reservation fails, the service itself compensates by
// releasing every lot it had already reserved, so the in-memory aggregates
// are left untouched either way.
type AllocationService struct {
	selector         Selector
	nearExpiryWindow time.Duration
}

// AllocationServiceOption is a functional option for configuring AllocationService
type AllocationServiceOption func(*AllocationService)

// WithSelector overrides the default FIFO selector
func WithSelector(s Selector) AllocationServiceOption {
	return func(svc *AllocationService) {
		if s != nil {
			svc.selector = s
		}
	}
}

// WithNearExpiryWindow overrides the near-expiry window used for summaries
func WithNearExpiryWindow(window time.Duration) AllocationServiceOption {
	return func(svc *AllocationService) {
		if window > 0 {
			svc.nearExpiryWindow = window
		}
	}
}

// NewAllocationService creates a new allocation service
func NewAllocationService(opts ...AllocationServiceOption) *AllocationService {
	svc := &AllocationService{
		selector:         NewFIFOSelector(),
		nearExpiryWindow: DefaultNearExpiryWindow,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// NearExpiryWindow returns the configured near-expiry window
func (s *AllocationService) NearExpiryWindow() time.Duration {
	return s.nearExpiryWindow
}

// AllocateRequest describes an order item to allocate
type AllocateRequest struct {
	TenantID          uuid.UUID
	OrderItemID       uuid.UUID
	ProductID         uuid.UUID
	RequestedQuantity decimal.Decimal
	RequestedBy       uuid.UUID
	// RequireFull rejects the allocation up front when the candidate pool
	// cannot cover the full requested quantity. When false, a partial
	// allocation set is produced and the shortfall reported.
	RequireFull bool
}

// Validate validates the allocation request
func (r *AllocateRequest) Validate() error {
	if r.OrderItemID == uuid.Nil {
		return shared.NewDomainError(ErrCodeValidation, "Order item ID cannot be empty")
	}
	if r.ProductID == uuid.Nil {
		return shared.NewDomainError(ErrCodeValidation, "Product ID cannot be empty")
	}
	if r.RequestedBy == uuid.Nil {
		return shared.NewDomainError(ErrCodeValidation, "Requesting user cannot be empty")
	}
	if r.RequestedQuantity.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError(ErrCodeValidation, "Requested quantity must be positive")
	}
	return nil
}

// AllocateResult is the outcome of an order-item allocation
type AllocateResult struct {
	OrderItemID    uuid.UUID                `json:"order_item_id"`
	Allocations    []OrderItemLotAllocation `json:"allocations"`
	TotalRequested decimal.Decimal          `json:"total_requested"`
	TotalAllocated decimal.Decimal          `json:"total_allocated"`
	Shortfall      decimal.Decimal          `json:"shortfall"`
	FullyFulfilled bool                     `json:"fully_fulfilled"`
	ReservedLots   []*Lot                   `json:"-"` // lots mutated by this allocation, for persistence
	DomainEvents   []shared.DomainEvent     `json:"-"`
}

// AllocateForOrderItem selects lots from the candidate pool and reserves
// the allocated portion on each. On a reservation failure partway through,
// every previously reserved lot is released before the error is returned,
// so no partial reservation side effect survives.
func (s *AllocationService) AllocateForOrderItem(_ context.Context, req AllocateRequest, candidates []*Lot) (*AllocateResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	plan, err := s.selector.SelectLots(req.RequestedQuantity, candidates, SelectionOptions{})
	if err != nil {
		return nil, err
	}

	if req.RequireFull && !plan.FullyFulfilled {
		return nil, &InsufficientQuantityError{
			Requested: req.RequestedQuantity,
			Available: plan.TotalSelected,
		}
	}
	if len(plan.Picks) == 0 {
		return nil, &InsufficientQuantityError{
			Requested: req.RequestedQuantity,
			Available: decimal.Zero,
		}
	}

	now := time.Now()
	reserved := make([]*Lot, 0, len(plan.Picks))
	allocations := make([]OrderItemLotAllocation, 0, len(plan.Picks))

	for _, pick := range plan.Picks {
		if err := pick.Lot.Reserve(pick.Quantity, req.RequestedBy); err != nil {
			s.compensate(reserved, plan, req.RequestedBy)
			return nil, err
		}
		reserved = append(reserved, pick.Lot)
		allocations = append(allocations,
			NewOrderItemLotAllocation(pick.Lot, req.OrderItemID, pick.Quantity, req.RequestedBy, now))
	}

	if err := ValidateLotAllocations(allocations, plan.TotalSelected); err != nil {
		s.compensate(reserved, plan, req.RequestedBy)
		return nil, err
	}

	result := &AllocateResult{
		OrderItemID:    req.OrderItemID,
		Allocations:    allocations,
		TotalRequested: req.RequestedQuantity,
		TotalAllocated: plan.TotalSelected,
		Shortfall:      plan.Shortfall,
		FullyFulfilled: plan.FullyFulfilled,
		ReservedLots:   reserved,
		DomainEvents: []shared.DomainEvent{
			NewOrderItemAllocatedEvent(req.TenantID, req.OrderItemID, req.ProductID,
				req.RequestedQuantity, plan.TotalSelected, len(allocations), req.RequestedBy),
		},
	}

	return result, nil
}

// compensate rolls back reservations made earlier in a failed allocation
func (s *AllocationService) compensate(reserved []*Lot, plan *Plan, byUser uuid.UUID) {
	for _, l := range reserved {
		for _, pick := range plan.Picks {
			if pick.Lot == l {
				// release cannot fail here: the quantity was just reserved
				_ = l.Release(pick.Quantity, byUser)
				break
			}
		}
	}
}

// ReleaseAllocations returns the reserved quantity of an allocation set to
// its lots (order cancellation or re-allocation before shipment). Every
// referenced lot must be present in lotsByID.
func (s *AllocationService) ReleaseAllocations(_ context.Context, tenantID uuid.UUID, allocations []OrderItemLotAllocation, lotsByID map[uuid.UUID]*Lot, byUser uuid.UUID) ([]shared.DomainEvent, error) {
	if len(allocations) == 0 {
		return nil, newAllocationValidationError("Order item must have at least one lot allocation")
	}

	total := decimal.Zero
	for _, a := range allocations {
		l, ok := lotsByID[a.LotBatchID]
		if !ok {
			return nil, shared.NewDomainError(shared.ErrNotFound.Code, "Lot not found for allocation: "+a.LotNumber)
		}
		if err := l.Release(a.AllocatedQuantity, byUser); err != nil {
			return nil, err
		}
		total = total.Add(a.AllocatedQuantity)
	}

	return []shared.DomainEvent{
		NewAllocationReleasedEvent(tenantID, allocations[0].OrderItemID, total, len(allocations), byUser),
	}, nil
}

// ConsumeAllocations consumes each allocation's quantity from its lot
// (shipment confirmation). Every referenced lot must be present in lotsByID.
func (s *AllocationService) ConsumeAllocations(_ context.Context, allocations []OrderItemLotAllocation, lotsByID map[uuid.UUID]*Lot, byUser uuid.UUID) error {
	if len(allocations) == 0 {
		return newAllocationValidationError("Order item must have at least one lot allocation")
	}

	for _, a := range allocations {
		l, ok := lotsByID[a.LotBatchID]
		if !ok {
			return shared.NewDomainError(shared.ErrNotFound.Code, "Lot not found for allocation: "+a.LotNumber)
		}
		if err := l.Consume(a.AllocatedQuantity, byUser); err != nil {
			return err
		}
	}

	return nil
}

// Summarize builds an allocation summary using the service's near-expiry window
func (s *AllocationService) Summarize(allocations []OrderItemLotAllocation) (*AllocationSummary, error) {
	return NewAllocationSummary(allocations, s.nearExpiryWindow)
}
