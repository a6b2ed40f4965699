package lot

import (
	"context"
	"time"

	"github.com/dms/backend/internal/domain/identity"
	"github.com/dms/backend/internal/domain/lot"
	"github.com/dms/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// DefaultExpiryReportWindowDays is the default lookahead for the expiring
// lots report when the caller does not specify one.
const DefaultExpiryReportWindowDays = 30

// LotService handles lot/batch commands and queries. Every operation
// resolves the acting user and checks the gating permission before any
// repository access; compound operations run inside a transaction scope
// so lot mutations and allocation records persist atomically.
type LotService struct {
	scope              TransactionScope
	userRepo           identity.UserRepository
	allocator          *lot.AllocationService
	eventPublisher     shared.EventPublisher
	defaultRequireFull bool
}

// NewLotService creates a new LotService
func NewLotService(scope TransactionScope, userRepo identity.UserRepository, allocator *lot.AllocationService) *LotService {
	if allocator == nil {
		allocator = lot.NewAllocationService()
	}
	return &LotService{
		scope:     scope,
		userRepo:  userRepo,
		allocator: allocator,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *LotService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetDefaultRequireFull sets whether allocations reject partial fulfilment
// when the request does not say either way
func (s *LotService) SetDefaultRequireFull(requireFull bool) {
	s.defaultRequireFull = requireFull
}

// requireActor resolves the acting user, verifies tenant membership and the
// gating permission. A missing user is reported as UNAUTHORIZED rather than
// NOT_FOUND so the response does not leak user existence.
func (s *LotService) requireActor(ctx context.Context, tenantID, actorID uuid.UUID, perm identity.Permission) (*identity.User, error) {
	if actorID == uuid.Nil {
		return nil, shared.ErrUnauthorized
	}
	actor, err := s.userRepo.FindByID(ctx, actorID)
	if err != nil {
		if shared.IsCode(err, shared.ErrNotFound.Code) {
			return nil, shared.ErrUnauthorized
		}
		return nil, shared.WrapDomainError(lot.ErrCodeRepository, "Failed to resolve acting user", err)
	}
	if actor.TenantID != tenantID {
		return nil, shared.ErrForbidden
	}
	if !actor.HasPermission(perm) {
		return nil, shared.ErrForbidden
	}
	return actor, nil
}

func (s *LotService) publishEvents(ctx context.Context, events ...shared.DomainEvent) {
	if s.eventPublisher == nil || len(events) == 0 {
		return
	}
	// event delivery failures never fail the command; handlers are
	// responsible for their own retries
	_ = s.eventPublisher.Publish(ctx, events...)
}

func (s *LotService) collectAndPublish(ctx context.Context, lots ...*lot.Lot) {
	var events []shared.DomainEvent
	for _, l := range lots {
		events = append(events, l.GetDomainEvents()...)
		l.ClearDomainEvents()
	}
	s.publishEvents(ctx, events...)
}

func wrapRepoErr(err error, message string) error {
	if shared.ErrorCode(err) != "INTERNAL_ERROR" {
		return err
	}
	return shared.WrapDomainError(lot.ErrCodeRepository, message, err)
}

// CreateLotBatch registers a newly received lot/batch
func (s *LotService) CreateLotBatch(ctx context.Context, tenantID, actorID uuid.UUID, req CreateLotBatchRequest) (*LotBatchResponse, error) {
	actor, err := s.requireActor(ctx, tenantID, actorID, identity.PermissionCreateProduct)
	if err != nil {
		return nil, err
	}

	var resp LotBatchResponse
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		// Uniqueness scope is (product, agency, lot number); a batch number
		// narrows it so one lot number may span several batches
		var existing *lot.Lot
		if req.BatchNumber != "" {
			existing, err = repos.LotRepo().FindByLotAndBatchNumber(ctx, tenantID, req.ProductID, req.AgencyID, req.LotNumber, req.BatchNumber)
		} else {
			existing, err = repos.LotRepo().FindByLotNumber(ctx, tenantID, req.ProductID, req.AgencyID, req.LotNumber)
		}
		if err != nil && !shared.IsCode(err, shared.ErrNotFound.Code) {
			return wrapRepoErr(err, "Failed to check lot number uniqueness")
		}
		if existing != nil {
			return shared.NewDomainError(shared.ErrAlreadyExists.Code,
				"Lot number "+req.LotNumber+" already exists for this product")
		}

		l, err := lot.NewLot(lot.CreateLotParams{
			TenantID:          tenantID,
			ProductID:         req.ProductID,
			AgencyID:          req.AgencyID,
			LotNumber:         req.LotNumber,
			BatchNumber:       req.BatchNumber,
			ManufacturingDate: req.ManufacturingDate,
			ExpiryDate:        req.ExpiryDate,
			Quantity:          req.Quantity,
			SupplierID:        req.SupplierID,
			SupplierLotCode:   req.SupplierLotCode,
			Notes:             req.Notes,
			CreatedBy:         actor.ID,
		})
		if err != nil {
			return err
		}

		if err := repos.LotRepo().Save(ctx, l); err != nil {
			return wrapRepoErr(err, "Failed to save lot")
		}

		s.collectAndPublish(ctx, l)
		resp = ToLotBatchResponse(l)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateLotBatch updates descriptive lot fields. Quantity state and lot
// identity are never updated here.
func (s *LotService) UpdateLotBatch(ctx context.Context, tenantID, actorID, lotID uuid.UUID, req UpdateLotBatchRequest) (*LotBatchResponse, error) {
	actor, err := s.requireActor(ctx, tenantID, actorID, identity.PermissionManageStock)
	if err != nil {
		return nil, err
	}

	var resp LotBatchResponse
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		l, err := repos.LotRepo().FindByID(ctx, tenantID, lotID)
		if err != nil {
			return wrapRepoErr(err, "Failed to load lot")
		}

		l.UpdateDetails(req.BatchNumber, req.SupplierLotCode, req.Notes, req.SupplierID, actor.ID)

		if err := repos.LotRepo().Save(ctx, l); err != nil {
			return wrapRepoErr(err, "Failed to save lot")
		}

		resp = ToLotBatchResponse(l)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteLotBatch deletes a lot. Without force, only exhausted lots can be
// deleted; force discards remaining quantity and emits an event carrying
// what was thrown away.
func (s *LotService) DeleteLotBatch(ctx context.Context, tenantID, actorID, lotID uuid.UUID, force bool) error {
	actor, err := s.requireActor(ctx, tenantID, actorID, identity.PermissionManageStock)
	if err != nil {
		return err
	}

	return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		l, err := repos.LotRepo().FindByID(ctx, tenantID, lotID)
		if err != nil {
			return wrapRepoErr(err, "Failed to load lot")
		}

		// A lot referenced by order allocations cannot be deleted, forced or
		// not, until it is fully consumed; release the allocations first.
		// Allocation rows carry a denormalized lot snapshot, so settled
		// history survives the delete.
		if l.Status != lot.StatusConsumed {
			allocations, err := repos.AllocationRepo().FindByLotBatchID(ctx, tenantID, lotID)
			if err != nil {
				return wrapRepoErr(err, "Failed to check lot allocations")
			}
			if len(allocations) > 0 {
				return shared.NewDomainError(shared.ErrInvalidState.Code,
					"Lot "+l.LotNumber+" still has order allocations")
			}
		}

		if err := l.PrepareDelete(force, actor.ID); err != nil {
			return err
		}

		if err := repos.LotRepo().Delete(ctx, tenantID, lotID); err != nil {
			return wrapRepoErr(err, "Failed to delete lot")
		}

		s.collectAndPublish(ctx, l)
		return nil
	})
}

// GetLotBatch returns a single lot by ID
func (s *LotService) GetLotBatch(ctx context.Context, tenantID, actorID, lotID uuid.UUID) (*LotBatchResponse, error) {
	if _, err := s.requireActor(ctx, tenantID, actorID, identity.PermissionReadProduct); err != nil {
		return nil, err
	}

	var resp LotBatchResponse
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		l, err := repos.LotRepo().FindByID(ctx, tenantID, lotID)
		if err != nil {
			return wrapRepoErr(err, "Failed to load lot")
		}
		resp = ToLotBatchResponse(l)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// SearchLotBatches lists lots with pagination and free-text filtering
func (s *LotService) SearchLotBatches(ctx context.Context, tenantID, actorID uuid.UUID, filter LotListFilter) (*shared.Paginated[LotBatchResponse], error) {
	if _, err := s.requireActor(ctx, tenantID, actorID, identity.PermissionReadProduct); err != nil {
		return nil, err
	}

	var resp shared.Paginated[LotBatchResponse]
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		page, err := repos.LotRepo().Search(ctx, tenantID, filter.AgencyID, filter.ToFilter())
		if err != nil {
			return wrapRepoErr(err, "Failed to search lots")
		}
		resp = shared.NewPaginated(ToLotBatchResponses(page.Items), page.Total, page.Page, page.PageSize)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListByProduct returns a product's lots in FIFO order
func (s *LotService) ListByProduct(ctx context.Context, tenantID, actorID, productID, agencyID uuid.UUID) ([]LotBatchResponse, error) {
	if _, err := s.requireActor(ctx, tenantID, actorID, identity.PermissionReadProduct); err != nil {
		return nil, err
	}

	var resp []LotBatchResponse
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		lots, err := repos.LotRepo().FindByProduct(ctx, tenantID, productID, agencyID)
		if err != nil {
			return wrapRepoErr(err, "Failed to list lots")
		}
		resp = ToLotBatchResponses(lots)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// mutateLot loads a lot, applies fn and saves it inside one transaction
func (s *LotService) mutateLot(ctx context.Context, tenantID, actorID, lotID uuid.UUID, fn func(l *lot.Lot, actor *identity.User) error) (*LotBatchResponse, error) {
	actor, err := s.requireActor(ctx, tenantID, actorID, identity.PermissionManageStock)
	if err != nil {
		return nil, err
	}

	var resp LotBatchResponse
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		l, err := repos.LotRepo().FindByID(ctx, tenantID, lotID)
		if err != nil {
			return wrapRepoErr(err, "Failed to load lot")
		}

		if err := fn(l, actor); err != nil {
			return err
		}

		if err := repos.LotRepo().Save(ctx, l); err != nil {
			return wrapRepoErr(err, "Failed to save lot")
		}

		s.collectAndPublish(ctx, l)
		resp = ToLotBatchResponse(l)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// ReserveQuantity places a soft hold on a lot's available quantity
func (s *LotService) ReserveQuantity(ctx context.Context, tenantID, actorID, lotID uuid.UUID, req QuantityRequest) (*LotBatchResponse, error) {
	return s.mutateLot(ctx, tenantID, actorID, lotID, func(l *lot.Lot, actor *identity.User) error {
		return l.Reserve(req.Quantity, actor.ID)
	})
}

// ReleaseQuantity returns reserved quantity to the available pool
func (s *LotService) ReleaseQuantity(ctx context.Context, tenantID, actorID, lotID uuid.UUID, req QuantityRequest) (*LotBatchResponse, error) {
	return s.mutateLot(ctx, tenantID, actorID, lotID, func(l *lot.Lot, actor *identity.User) error {
		return l.Release(req.Quantity, actor.ID)
	})
}

// ConsumeQuantity permanently deducts quantity from a lot
func (s *LotService) ConsumeQuantity(ctx context.Context, tenantID, actorID, lotID uuid.UUID, req QuantityRequest) (*LotBatchResponse, error) {
	return s.mutateLot(ctx, tenantID, actorID, lotID, func(l *lot.Lot, actor *identity.User) error {
		return l.Consume(req.Quantity, actor.ID)
	})
}

// AdjustQuantity applies an administrative remaining-quantity correction
func (s *LotService) AdjustQuantity(ctx context.Context, tenantID, actorID, lotID uuid.UUID, req AdjustQuantityRequest) (*LotBatchResponse, error) {
	return s.mutateLot(ctx, tenantID, actorID, lotID, func(l *lot.Lot, actor *identity.User) error {
		return l.AdjustQuantity(req.NewRemaining, req.Reason, actor.ID)
	})
}

// TransitionStatus moves a lot to a new lifecycle status
func (s *LotService) TransitionStatus(ctx context.Context, tenantID, actorID, lotID uuid.UUID, req TransitionRequest) (*LotBatchResponse, error) {
	return s.mutateLot(ctx, tenantID, actorID, lotID, func(l *lot.Lot, actor *identity.User) error {
		return l.TransitionTo(lot.Status(req.Status), actor.ID)
	})
}

// AllocateOrderItem allocates lots of a product to an order item in FIFO
// order. Candidate reads, lot reservations and allocation records all
// commit in one transaction; any failure rolls the whole allocation back.
func (s *LotService) AllocateOrderItem(ctx context.Context, tenantID, actorID uuid.UUID, req AllocateOrderItemRequest) (*AllocateResultResponse, error) {
	actor, err := s.requireActor(ctx, tenantID, actorID, identity.PermissionManageStock)
	if err != nil {
		return nil, err
	}

	var resp AllocateResultResponse
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		existing, err := repos.AllocationRepo().FindByOrderItemID(ctx, tenantID, req.OrderItemID)
		if err != nil {
			return wrapRepoErr(err, "Failed to check existing allocations")
		}
		if len(existing) > 0 {
			return shared.NewDomainError(shared.ErrAlreadyExists.Code,
				"Order item already has lot allocations; release them before re-allocating")
		}

		candidates, err := repos.LotRepo().FindSelectableByProduct(ctx, tenantID, req.ProductID, req.AgencyID)
		if err != nil {
			return wrapRepoErr(err, "Failed to load candidate lots")
		}

		requireFull := s.defaultRequireFull
		if req.RequireFull != nil {
			requireFull = *req.RequireFull
		}

		result, err := s.allocator.AllocateForOrderItem(ctx, lot.AllocateRequest{
			TenantID:          tenantID,
			OrderItemID:       req.OrderItemID,
			ProductID:         req.ProductID,
			RequestedQuantity: req.Quantity,
			RequestedBy:       actor.ID,
			RequireFull:       requireFull,
		}, candidates)
		if err != nil {
			return err
		}

		if err := repos.LotRepo().SaveAll(ctx, result.ReservedLots); err != nil {
			return wrapRepoErr(err, "Failed to save reserved lots")
		}
		if err := repos.AllocationRepo().SaveAll(ctx, tenantID, result.Allocations); err != nil {
			return wrapRepoErr(err, "Failed to save allocations")
		}

		s.collectAndPublish(ctx, result.ReservedLots...)
		s.publishEvents(ctx, result.DomainEvents...)
		resp = ToAllocateResultResponse(result)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// ReleaseOrderItemAllocations releases an order item's allocation set and
// deletes the allocation records
func (s *LotService) ReleaseOrderItemAllocations(ctx context.Context, tenantID, actorID, orderItemID uuid.UUID) error {
	actor, err := s.requireActor(ctx, tenantID, actorID, identity.PermissionManageStock)
	if err != nil {
		return err
	}

	return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		allocations, err := repos.AllocationRepo().FindByOrderItemID(ctx, tenantID, orderItemID)
		if err != nil {
			return wrapRepoErr(err, "Failed to load allocations")
		}

		lots, err := s.loadAllocatedLots(ctx, repos, tenantID, allocations)
		if err != nil {
			return err
		}

		events, err := s.allocator.ReleaseAllocations(ctx, tenantID, allocations, lots, actor.ID)
		if err != nil {
			return err
		}

		if err := repos.LotRepo().SaveAll(ctx, lotValues(lots)); err != nil {
			return wrapRepoErr(err, "Failed to save released lots")
		}
		if err := repos.AllocationRepo().DeleteByOrderItemID(ctx, tenantID, orderItemID); err != nil {
			return wrapRepoErr(err, "Failed to delete allocations")
		}

		s.collectAndPublish(ctx, lotValues(lots)...)
		s.publishEvents(ctx, events...)
		return nil
	})
}

// ConsumeOrderItemAllocations consumes an order item's allocation set from
// its lots (shipment confirmation). Allocation records are kept as the
// audit trail of which lots the shipment drew from.
func (s *LotService) ConsumeOrderItemAllocations(ctx context.Context, tenantID, actorID, orderItemID uuid.UUID) error {
	actor, err := s.requireActor(ctx, tenantID, actorID, identity.PermissionManageStock)
	if err != nil {
		return err
	}

	return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		allocations, err := repos.AllocationRepo().FindByOrderItemID(ctx, tenantID, orderItemID)
		if err != nil {
			return wrapRepoErr(err, "Failed to load allocations")
		}

		lots, err := s.loadAllocatedLots(ctx, repos, tenantID, allocations)
		if err != nil {
			return err
		}

		if err := s.allocator.ConsumeAllocations(ctx, allocations, lots, actor.ID); err != nil {
			return err
		}

		if err := repos.LotRepo().SaveAll(ctx, lotValues(lots)); err != nil {
			return wrapRepoErr(err, "Failed to save consumed lots")
		}

		s.collectAndPublish(ctx, lotValues(lots)...)
		return nil
	})
}

func (s *LotService) loadAllocatedLots(ctx context.Context, repos TransactionalRepositories, tenantID uuid.UUID, allocations []lot.OrderItemLotAllocation) (map[uuid.UUID]*lot.Lot, error) {
	if len(allocations) == 0 {
		return nil, shared.NewDomainError(shared.ErrNotFound.Code, "Order item has no lot allocations")
	}
	lots := make(map[uuid.UUID]*lot.Lot, len(allocations))
	for _, a := range allocations {
		if _, ok := lots[a.LotBatchID]; ok {
			continue
		}
		l, err := repos.LotRepo().FindByID(ctx, tenantID, a.LotBatchID)
		if err != nil {
			return nil, wrapRepoErr(err, "Failed to load allocated lot "+a.LotNumber)
		}
		lots[a.LotBatchID] = l
	}
	return lots, nil
}

func lotValues(m map[uuid.UUID]*lot.Lot) []*lot.Lot {
	out := make([]*lot.Lot, 0, len(m))
	for _, l := range m {
		out = append(out, l)
	}
	return out
}

// GetOrderItemAllocations returns an order item's allocation records in
// FIFO order
func (s *LotService) GetOrderItemAllocations(ctx context.Context, tenantID, actorID, orderItemID uuid.UUID) ([]AllocationResponse, error) {
	if _, err := s.requireActor(ctx, tenantID, actorID, identity.PermissionReadProduct); err != nil {
		return nil, err
	}

	var resp []AllocationResponse
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		allocations, err := repos.AllocationRepo().FindByOrderItemID(ctx, tenantID, orderItemID)
		if err != nil {
			return wrapRepoErr(err, "Failed to load allocations")
		}
		resp = ToAllocationResponses(allocations)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// GetAllocationSummary returns the read-only summary of an order item's
// allocation set
func (s *LotService) GetAllocationSummary(ctx context.Context, tenantID, actorID, orderItemID uuid.UUID) (*AllocationSummaryResponse, error) {
	if _, err := s.requireActor(ctx, tenantID, actorID, identity.PermissionReadProduct); err != nil {
		return nil, err
	}

	var resp AllocationSummaryResponse
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		allocations, err := repos.AllocationRepo().FindByOrderItemID(ctx, tenantID, orderItemID)
		if err != nil {
			return wrapRepoErr(err, "Failed to load allocations")
		}
		if len(allocations) == 0 {
			return shared.NewDomainError(shared.ErrNotFound.Code, "Order item has no lot allocations")
		}

		summary, err := s.allocator.Summarize(allocations)
		if err != nil {
			return err
		}
		resp = ToAllocationSummaryResponse(orderItemID, summary)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// ExpiringLotsReport lists lots with stock approaching expiry within the
// window. A non-positive window falls back to the default.
func (s *LotService) ExpiringLotsReport(ctx context.Context, tenantID, actorID, agencyID uuid.UUID, windowDays int) (*ExpiringLotsReportResponse, error) {
	if _, err := s.requireActor(ctx, tenantID, actorID, identity.PermissionReadProduct); err != nil {
		return nil, err
	}

	if windowDays <= 0 {
		windowDays = DefaultExpiryReportWindowDays
	}
	window := time.Duration(windowDays) * 24 * time.Hour

	var resp ExpiringLotsReportResponse
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		lots, err := repos.LotRepo().FindExpiringSoon(ctx, tenantID, agencyID, window)
		if err != nil {
			return wrapRepoErr(err, "Failed to load expiring lots")
		}
		resp = ExpiringLotsReportResponse{
			WindowDays: windowDays,
			Lots:       ToLotBatchResponses(lots),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}
