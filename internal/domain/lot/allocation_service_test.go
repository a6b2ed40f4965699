package lot

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// overpickSelector returns a plan whose second pick exceeds the lot's
// available quantity, forcing a mid-sequence reservation failure.
type overpickSelector struct{}

func (s *overpickSelector) Type() SelectorType { return SelectorTypeFIFO }

func (s *overpickSelector) SelectLots(requested decimal.Decimal, candidates []*Lot, _ SelectionOptions) (*Plan, error) {
	picks := []Pick{
		{Lot: candidates[0], Quantity: qty(5)},
		{Lot: candidates[1], Quantity: candidates[1].AvailableQuantity().Add(qty(1))},
	}
	return &Plan{
		Picks:             picks,
		RequestedQuantity: requested,
		TotalSelected:     requested,
		FullyFulfilled:    true,
	}, nil
}

func validAllocateRequest() AllocateRequest {
	return AllocateRequest{
		TenantID:          uuid.New(),
		OrderItemID:       uuid.New(),
		ProductID:         uuid.New(),
		RequestedQuantity: qty(12),
		RequestedBy:       uuid.New(),
	}
}

func TestAllocateRequestValidate(t *testing.T) {
	t.Run("Valid request passes", func(t *testing.T) {
		req := validAllocateRequest()
		assert.NoError(t, req.Validate())
	})

	t.Run("Rejects missing identifiers and non-positive quantity", func(t *testing.T) {
		req := validAllocateRequest()
		req.OrderItemID = uuid.Nil
		assert.Error(t, req.Validate())

		req = validAllocateRequest()
		req.ProductID = uuid.Nil
		assert.Error(t, req.Validate())

		req = validAllocateRequest()
		req.RequestedBy = uuid.Nil
		assert.Error(t, req.Validate())

		req = validAllocateRequest()
		req.RequestedQuantity = decimal.Zero
		assert.Error(t, req.Validate())
	})
}

func TestAllocationService_AllocateForOrderItem(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	svc := NewAllocationService()

	t.Run("Allocates across lots in FIFO order and reserves each", func(t *testing.T) {
		lotA := newTestLot(t, "LOT-A", 5, now.AddDate(0, -3, 0), nil)
		lotB := newTestLot(t, "LOT-B", 50, now.AddDate(0, -1, 0), nil)
		req := validAllocateRequest()

		result, err := svc.AllocateForOrderItem(ctx, req, []*Lot{lotB, lotA})
		require.NoError(t, err)
		require.Len(t, result.Allocations, 2)

		assert.Equal(t, "LOT-A", result.Allocations[0].LotNumber)
		assert.True(t, result.Allocations[0].AllocatedQuantity.Equal(qty(5)))
		assert.Equal(t, "LOT-B", result.Allocations[1].LotNumber)
		assert.True(t, result.Allocations[1].AllocatedQuantity.Equal(qty(7)))

		assert.True(t, lotA.ReservedQuantity.Equal(qty(5)))
		assert.True(t, lotB.ReservedQuantity.Equal(qty(7)))
		assert.True(t, result.FullyFulfilled)
		assert.True(t, result.TotalAllocated.Equal(qty(12)))

		for _, a := range result.Allocations {
			assert.Equal(t, req.OrderItemID, a.OrderItemID)
			assert.Equal(t, req.RequestedBy, a.ReservedBy)
		}

		require.Len(t, result.DomainEvents, 1)
		allocated, ok := result.DomainEvents[0].(*OrderItemAllocatedEvent)
		require.True(t, ok)
		assert.Equal(t, req.OrderItemID, allocated.OrderItemID)
		assert.Equal(t, 2, allocated.LotCount)
	})

	t.Run("Partial allocation reports shortfall when RequireFull is off", func(t *testing.T) {
		lotA := newTestLot(t, "LOT-A", 12, now.AddDate(0, -1, 0), nil)
		req := validAllocateRequest()
		req.RequestedQuantity = qty(20)

		result, err := svc.AllocateForOrderItem(ctx, req, []*Lot{lotA})
		require.NoError(t, err)
		assert.False(t, result.FullyFulfilled)
		assert.True(t, result.TotalAllocated.Equal(qty(12)))
		assert.True(t, result.Shortfall.Equal(qty(8)))
		assert.True(t, lotA.ReservedQuantity.Equal(qty(12)))
	})

	t.Run("RequireFull rejects a shortfall up front without reserving", func(t *testing.T) {
		lotA := newTestLot(t, "LOT-A", 12, now.AddDate(0, -1, 0), nil)
		req := validAllocateRequest()
		req.RequestedQuantity = qty(20)
		req.RequireFull = true

		_, err := svc.AllocateForOrderItem(ctx, req, []*Lot{lotA})
		require.Error(t, err)
		var insufficientErr *InsufficientQuantityError
		require.ErrorAs(t, err, &insufficientErr)
		assert.True(t, insufficientErr.Shortfall().Equal(qty(8)))
		assert.True(t, lotA.ReservedQuantity.IsZero())
	})

	t.Run("Empty candidate pool is an insufficient quantity error", func(t *testing.T) {
		_, err := svc.AllocateForOrderItem(ctx, validAllocateRequest(), nil)
		require.Error(t, err)
		var insufficientErr *InsufficientQuantityError
		require.ErrorAs(t, err, &insufficientErr)
		assert.True(t, insufficientErr.Available.IsZero())
	})

	t.Run("Mid-sequence reservation failure releases earlier reservations", func(t *testing.T) {
		lotA := newTestLot(t, "LOT-A", 10, now.AddDate(0, -3, 0), nil)
		lotB := newTestLot(t, "LOT-B", 10, now.AddDate(0, -1, 0), nil)
		broken := NewAllocationService(WithSelector(&overpickSelector{}))

		_, err := broken.AllocateForOrderItem(ctx, validAllocateRequest(), []*Lot{lotA, lotB})
		require.Error(t, err)

		// no partial reservation survives
		assert.True(t, lotA.ReservedQuantity.IsZero())
		assert.True(t, lotB.ReservedQuantity.IsZero())
	})

	t.Run("Invalid request never touches the candidates", func(t *testing.T) {
		lotA := newTestLot(t, "LOT-A", 10, now.AddDate(0, -1, 0), nil)
		req := validAllocateRequest()
		req.RequestedQuantity = qty(-1)

		_, err := svc.AllocateForOrderItem(ctx, req, []*Lot{lotA})
		require.Error(t, err)
		assert.True(t, lotA.ReservedQuantity.IsZero())
	})
}

func TestAllocationService_ReleaseAllocations(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	svc := NewAllocationService()

	allocate := func(t *testing.T) (AllocateRequest, *AllocateResult, map[uuid.UUID]*Lot) {
		t.Helper()
		lotA := newTestLot(t, "LOT-A", 5, now.AddDate(0, -3, 0), nil)
		lotB := newTestLot(t, "LOT-B", 50, now.AddDate(0, -1, 0), nil)
		req := validAllocateRequest()
		result, err := svc.AllocateForOrderItem(ctx, req, []*Lot{lotA, lotB})
		require.NoError(t, err)
		return req, result, map[uuid.UUID]*Lot{lotA.ID: lotA, lotB.ID: lotB}
	}

	t.Run("Releases every allocation back to its lot", func(t *testing.T) {
		req, result, lots := allocate(t)

		events, err := svc.ReleaseAllocations(ctx, req.TenantID, result.Allocations, lots, req.RequestedBy)
		require.NoError(t, err)

		for _, l := range lots {
			assert.True(t, l.ReservedQuantity.IsZero())
			assert.True(t, l.RemainingQuantity.Equal(l.Quantity))
		}

		require.Len(t, events, 1)
		released, ok := events[0].(*AllocationReleasedEvent)
		require.True(t, ok)
		assert.True(t, released.TotalReleased.Equal(qty(12)))
	})

	t.Run("Rejects an empty allocation set", func(t *testing.T) {
		_, err := svc.ReleaseAllocations(ctx, uuid.New(), nil, nil, uuid.New())
		assert.Error(t, err)
	})

	t.Run("Fails when a referenced lot is missing", func(t *testing.T) {
		req, result, _ := allocate(t)
		_, err := svc.ReleaseAllocations(ctx, req.TenantID, result.Allocations, map[uuid.UUID]*Lot{}, req.RequestedBy)
		assert.Error(t, err)
	})
}

func TestAllocationService_ConsumeAllocations(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	svc := NewAllocationService()

	t.Run("Consumes each allocation from its lot", func(t *testing.T) {
		lotA := newTestLot(t, "LOT-A", 5, now.AddDate(0, -3, 0), nil)
		lotB := newTestLot(t, "LOT-B", 50, now.AddDate(0, -1, 0), nil)
		req := validAllocateRequest()

		result, err := svc.AllocateForOrderItem(ctx, req, []*Lot{lotA, lotB})
		require.NoError(t, err)

		lots := map[uuid.UUID]*Lot{lotA.ID: lotA, lotB.ID: lotB}
		require.NoError(t, svc.ConsumeAllocations(ctx, result.Allocations, lots, req.RequestedBy))

		// LOT-A was fully drawn down and transitions to CONSUMED
		assert.True(t, lotA.RemainingQuantity.IsZero())
		assert.Equal(t, StatusConsumed, lotA.Status)

		assert.True(t, lotB.RemainingQuantity.Equal(qty(43)))
		assert.True(t, lotB.ReservedQuantity.IsZero())
		assert.Equal(t, StatusActive, lotB.Status)
	})

	t.Run("Rejects an empty allocation set", func(t *testing.T) {
		assert.Error(t, svc.ConsumeAllocations(ctx, nil, nil, uuid.New()))
	})
}

// End-to-end walk: intake two lots, allocate an order item across them in
// FIFO order, confirm shipment, then verify the resulting ledger state and
// the allocation summary.
func TestAllocationEndToEnd(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	user := uuid.New()
	svc := NewAllocationService()

	lotOld := newTestLot(t, "LOT-001", 5, now.AddDate(0, -3, 0), nil)
	lotNew := newTestLot(t, "LOT-002", 50, now.AddDate(0, -1, 0), timePtr(now.AddDate(0, 0, 20)))

	req := AllocateRequest{
		TenantID:          lotOld.TenantID,
		OrderItemID:       uuid.New(),
		ProductID:         lotOld.ProductID,
		RequestedQuantity: qty(12),
		RequestedBy:       user,
		RequireFull:       true,
	}

	result, err := svc.AllocateForOrderItem(ctx, req, []*Lot{lotNew, lotOld})
	require.NoError(t, err)
	require.NoError(t, ValidateLotAllocations(result.Allocations, qty(12)))

	lots := map[uuid.UUID]*Lot{lotOld.ID: lotOld, lotNew.ID: lotNew}
	require.NoError(t, svc.ConsumeAllocations(ctx, result.Allocations, lots, user))

	assert.Equal(t, StatusConsumed, lotOld.Status)
	assert.True(t, lotNew.RemainingQuantity.Equal(qty(43)))
	assert.True(t, lotNew.AvailableQuantity().Equal(qty(43)))

	summary, err := svc.Summarize(result.Allocations)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalAllocations)
	assert.True(t, summary.TotalAllocatedQuantity.Equal(qty(12)))
	assert.Equal(t, lotOld.ManufacturingDate, summary.OldestLotDate)
	assert.Equal(t, lotNew.ManufacturingDate, summary.NewestLotDate)
	assert.True(t, summary.HasExpiringLots)
}
