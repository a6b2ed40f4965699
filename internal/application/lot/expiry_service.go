package lot

import (
	"context"
	"time"

	"github.com/dms/backend/internal/domain/lot"
	"github.com/dms/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LotExpiryService marks lapsed lots EXPIRED so they stop feeding the
// selector. The sweep is time-driven and runs without a human actor.
type LotExpiryService struct {
	scope          TransactionScope
	eventPublisher shared.EventPublisher
	batchLimit     int
	logger         *zap.Logger
}

// NewLotExpiryService creates a new LotExpiryService
func NewLotExpiryService(scope TransactionScope, batchLimit int, logger *zap.Logger) *LotExpiryService {
	if batchLimit <= 0 {
		batchLimit = 500
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LotExpiryService{
		scope:      scope,
		batchLimit: batchLimit,
		logger:     logger,
	}
}

// SetEventPublisher sets the publisher for lot status events
func (s *LotExpiryService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// ExpirySweepStats contains statistics about one expiry sweep
type ExpirySweepStats struct {
	TenantID    uuid.UUID `json:"tenant_id"`
	TotalFound  int       `json:"total_found"`
	Expired     int       `json:"expired"`
	Failed      int       `json:"failed"`
	ProcessedAt time.Time `json:"processed_at"`
}

// SweepTenant finds the tenant's lapsed lots and transitions them to
// EXPIRED. Reserved quantity is left in place: allocations against an
// expired lot stay valid until released or consumed by their order flow.
func (s *LotExpiryService) SweepTenant(ctx context.Context, tenantID uuid.UUID) (*ExpirySweepStats, error) {
	stats := &ExpirySweepStats{
		TenantID:    tenantID,
		ProcessedAt: time.Now(),
	}

	var expired []*lot.Lot
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		lapsed, err := repos.LotRepo().FindExpired(ctx, tenantID, time.Now())
		if err != nil {
			return err
		}
		if len(lapsed) > s.batchLimit {
			lapsed = lapsed[:s.batchLimit]
		}
		stats.TotalFound = len(lapsed)

		for _, l := range lapsed {
			if err := l.MarkExpired(uuid.Nil); err != nil {
				// Lots stuck in a state with no EXPIRED transition are
				// skipped, not fatal; the next sweep retries them.
				s.logger.Warn("Could not expire lot",
					zap.String("lot_id", l.ID.String()),
					zap.String("lot_number", l.LotNumber),
					zap.String("status", string(l.Status)),
					zap.Error(err),
				)
				stats.Failed++
				continue
			}
			if err := repos.LotRepo().Save(ctx, l); err != nil {
				return err
			}
			expired = append(expired, l)
			stats.Expired++
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Expiry sweep failed",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err),
		)
		return nil, shared.WrapDomainError(lot.ErrCodeRepository, "Expiry sweep failed", err)
	}

	for _, l := range expired {
		for _, event := range l.GetDomainEvents() {
			if s.eventPublisher != nil {
				_ = s.eventPublisher.Publish(ctx, event)
			}
		}
		l.ClearDomainEvents()
	}

	if stats.TotalFound > 0 {
		s.logger.Info("Expiry sweep completed",
			zap.String("tenant_id", tenantID.String()),
			zap.Int("found", stats.TotalFound),
			zap.Int("expired", stats.Expired),
			zap.Int("failed", stats.Failed),
		)
	}

	return stats, nil
}
