package lot

import (
	"context"
	"testing"
	"time"

	"github.com/dms/backend/internal/domain/lot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) newExpiryService(batchLimit int) *LotExpiryService {
	svc := NewLotExpiryService(NewNoOpTransactionScope(f.lotRepo, f.allocRepo), batchLimit, nil)
	svc.SetEventPublisher(f.publisher)
	return svc
}

func (f *fixture) seedLapsedLot(t *testing.T, lotNumber string) *lot.Lot {
	t.Helper()
	req := f.createRequest(lotNumber, 100, time.Now().AddDate(-2, 0, 0))
	expiry := time.Now().AddDate(-1, 0, 0)
	req.ExpiryDate = &expiry
	resp, err := f.service.CreateLotBatch(context.Background(), f.tenantID, f.manager.ID, req)
	require.NoError(t, err)
	return f.lotRepo.lots[resp.ID]
}

func TestLotExpiryServiceSweepTenant(t *testing.T) {
	ctx := context.Background()

	t.Run("Expires lapsed lots and leaves fresh ones untouched", func(t *testing.T) {
		f := newFixture(t)
		lapsed := f.seedLapsedLot(t, "LOT-OLD")

		freshReq := f.createRequest("LOT-FRESH", 100, time.Now().AddDate(0, -1, 0))
		freshExpiry := time.Now().AddDate(1, 0, 0)
		freshReq.ExpiryDate = &freshExpiry
		fresh, err := f.service.CreateLotBatch(ctx, f.tenantID, f.manager.ID, freshReq)
		require.NoError(t, err)

		f.publisher.Clear()

		stats, err := f.newExpiryService(0).SweepTenant(ctx, f.tenantID)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.TotalFound)
		assert.Equal(t, 1, stats.Expired)
		assert.Equal(t, 0, stats.Failed)

		assert.Equal(t, lot.StatusExpired, lapsed.Status)
		assert.Equal(t, lot.StatusActive.String(), string(f.lotRepo.lots[fresh.ID].Status))
		assert.Len(t, f.publisher.GetEventsByType(lot.EventTypeStatusChanged), 1)
	})

	t.Run("Skips lots whose status cannot transition to expired", func(t *testing.T) {
		f := newFixture(t)
		quarantined := f.seedLapsedLot(t, "LOT-HELD")
		require.NoError(t, quarantined.Quarantine(f.manager.ID))
		quarantined.ClearDomainEvents()

		stats, err := f.newExpiryService(0).SweepTenant(ctx, f.tenantID)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.TotalFound)
		assert.Equal(t, 0, stats.Expired)
		assert.Equal(t, 1, stats.Failed)
		assert.Equal(t, lot.StatusQuarantine, quarantined.Status)
	})

	t.Run("Honors the batch limit", func(t *testing.T) {
		f := newFixture(t)
		f.seedLapsedLot(t, "LOT-A")
		f.seedLapsedLot(t, "LOT-B")

		stats, err := f.newExpiryService(1).SweepTenant(ctx, f.tenantID)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.TotalFound)
		assert.Equal(t, 1, stats.Expired)
	})

	t.Run("Already expired lots do not reappear in later sweeps", func(t *testing.T) {
		f := newFixture(t)
		f.seedLapsedLot(t, "LOT-OLD")

		svc := f.newExpiryService(0)
		_, err := svc.SweepTenant(ctx, f.tenantID)
		require.NoError(t, err)

		stats, err := svc.SweepTenant(ctx, f.tenantID)
		require.NoError(t, err)
		assert.Equal(t, 0, stats.TotalFound)
	})
}
