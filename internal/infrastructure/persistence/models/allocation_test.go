package models

import (
	"testing"
	"time"

	"github.com/dms/backend/internal/domain/lot"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEpochMillisRoundTrip(t *testing.T) {
	t.Run("preserves millisecond precision in UTC", func(t *testing.T) {
		original := time.Date(2026, 3, 15, 10, 30, 45, 123_000_000, time.UTC)

		restored := FromEpochMillis(EpochMillis(original))

		assert.True(t, original.Equal(restored))
		assert.Equal(t, time.UTC, restored.Location())
	})

	t.Run("normalizes zoned times to UTC", func(t *testing.T) {
		zone := time.FixedZone("UTC+7", 7*3600)
		original := time.Date(2026, 3, 15, 17, 30, 45, 0, zone)

		restored := FromEpochMillis(EpochMillis(original))

		assert.True(t, original.Equal(restored))
		assert.Equal(t, time.UTC, restored.Location())
	})
}

func TestOrderItemLotAllocationModel(t *testing.T) {
	t.Run("round-trips a domain allocation", func(t *testing.T) {
		tenantID := uuid.New()
		expiry := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
		allocation := lot.OrderItemLotAllocation{
			OrderItemID:       uuid.New(),
			LotBatchID:        uuid.New(),
			LotNumber:         "LOT-001",
			BatchNumber:       "B-001",
			AllocatedQuantity: decimal.NewFromFloat(12.5),
			ManufacturingDate: time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
			ExpiryDate:        &expiry,
			ReservedAt:        time.Date(2026, 6, 1, 14, 0, 0, 0, time.UTC),
			ReservedBy:        uuid.New(),
		}

		model := NewOrderItemLotAllocationModel(tenantID, allocation)
		assert.NotEqual(t, uuid.Nil, model.ID)
		assert.Equal(t, tenantID, model.TenantID)

		restored := model.ToDomain()
		assert.Equal(t, allocation.OrderItemID, restored.OrderItemID)
		assert.Equal(t, allocation.LotBatchID, restored.LotBatchID)
		assert.Equal(t, allocation.LotNumber, restored.LotNumber)
		assert.True(t, allocation.AllocatedQuantity.Equal(restored.AllocatedQuantity))
		assert.True(t, allocation.ManufacturingDate.Equal(restored.ManufacturingDate))
		require.NotNil(t, restored.ExpiryDate)
		assert.True(t, expiry.Equal(*restored.ExpiryDate))
		assert.True(t, allocation.ReservedAt.Equal(restored.ReservedAt))
		assert.Equal(t, allocation.ReservedBy, restored.ReservedBy)
	})

	t.Run("keeps nil expiry nil", func(t *testing.T) {
		allocation := lot.OrderItemLotAllocation{
			OrderItemID:       uuid.New(),
			LotBatchID:        uuid.New(),
			LotNumber:         "LOT-002",
			AllocatedQuantity: decimal.NewFromInt(3),
			ManufacturingDate: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
			ReservedAt:        time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
			ReservedBy:        uuid.New(),
		}

		model := NewOrderItemLotAllocationModel(uuid.New(), allocation)
		assert.Nil(t, model.ExpiryDateMs)
		assert.Nil(t, model.ToDomain().ExpiryDate)
	})
}
