package scheduler

import (
	"context"
	"sync"
	"time"

	lotapp "github.com/dms/backend/internal/application/lot"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TenantProvider lists the tenants whose lots need sweeping
type TenantProvider interface {
	ListTenantIDs(ctx context.Context) ([]uuid.UUID, error)
}

// ExpirySweeperConfig holds configuration for the expiry sweeper
type ExpirySweeperConfig struct {
	Interval time.Duration
}

// DefaultExpirySweeperConfig returns the default sweeper configuration
func DefaultExpirySweeperConfig() ExpirySweeperConfig {
	return ExpirySweeperConfig{
		Interval: time.Hour,
	}
}

// ExpirySweeper periodically expires lapsed lots across all tenants
type ExpirySweeper struct {
	config         ExpirySweeperConfig
	expiryService  *lotapp.LotExpiryService
	tenantProvider TenantProvider
	logger         *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewExpirySweeper creates a new expiry sweeper
func NewExpirySweeper(
	config ExpirySweeperConfig,
	expiryService *lotapp.LotExpiryService,
	tenantProvider TenantProvider,
	logger *zap.Logger,
) *ExpirySweeper {
	if config.Interval <= 0 {
		config.Interval = DefaultExpirySweeperConfig().Interval
	}
	return &ExpirySweeper{
		config:         config,
		expiryService:  expiryService,
		tenantProvider: tenantProvider,
		logger:         logger,
	}
}

// Start starts the sweeper loop
func (s *ExpirySweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.runLoop(ctx)

	s.logger.Info("Expiry sweeper started",
		zap.Duration("interval", s.config.Interval),
	)

	return nil
}

// Stop stops the sweeper and waits for the current sweep to finish
func (s *ExpirySweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Expiry sweeper stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *ExpirySweeper) runLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	// Sweep once on startup so a restart never extends the window
	s.sweepAll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepAll(ctx)
		}
	}
}

func (s *ExpirySweeper) sweepAll(ctx context.Context) {
	tenantIDs, err := s.tenantProvider.ListTenantIDs(ctx)
	if err != nil {
		s.logger.Error("Failed to list tenants for expiry sweep", zap.Error(err))
		return
	}

	for _, tenantID := range tenantIDs {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.expiryService.SweepTenant(ctx, tenantID); err != nil {
			s.logger.Error("Tenant expiry sweep failed",
				zap.String("tenant_id", tenantID.String()),
				zap.Error(err),
			)
		}
	}
}
