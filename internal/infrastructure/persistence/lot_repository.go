package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/dms/backend/internal/domain/lot"
	"github.com/dms/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// fifoOrder is the canonical FIFO ordering clause for lot queries
const fifoOrder = "manufacturing_date ASC, lot_number ASC"

// GormLotRepository implements lot.LotRepository using GORM
type GormLotRepository struct {
	db *gorm.DB
}

// NewGormLotRepository creates a new GormLotRepository
func NewGormLotRepository(db *gorm.DB) *GormLotRepository {
	return &GormLotRepository{db: db}
}

// FindByID finds a lot by ID within a tenant
func (r *GormLotRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*lot.Lot, error) {
	var l lot.Lot
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&l).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &l, nil
}

// FindByLotNumber finds a lot by product, agency and lot number
func (r *GormLotRepository) FindByLotNumber(ctx context.Context, tenantID, productID, agencyID uuid.UUID, lotNumber string) (*lot.Lot, error) {
	var l lot.Lot
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND product_id = ? AND agency_id = ? AND lot_number = ?",
			tenantID, productID, agencyID, lotNumber).
		First(&l).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &l, nil
}

// FindByLotAndBatchNumber narrows the lookup to a specific batch
func (r *GormLotRepository) FindByLotAndBatchNumber(ctx context.Context, tenantID, productID, agencyID uuid.UUID, lotNumber, batchNumber string) (*lot.Lot, error) {
	var l lot.Lot
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND product_id = ? AND agency_id = ? AND lot_number = ? AND batch_number = ?",
			tenantID, productID, agencyID, lotNumber, batchNumber).
		First(&l).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &l, nil
}

// FindByProduct returns a product's lots in FIFO order
func (r *GormLotRepository) FindByProduct(ctx context.Context, tenantID, productID, agencyID uuid.UUID) ([]*lot.Lot, error) {
	var lots []*lot.Lot
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND product_id = ? AND agency_id = ?", tenantID, productID, agencyID).
		Order(fifoOrder).
		Find(&lots).Error; err != nil {
		return nil, err
	}
	return lots, nil
}

// FindSelectableByProduct returns lots eligible for allocation in FIFO
// order. Expiry is checked against the clock here, not a stored flag, so a
// lot that lapsed between sweeps is still excluded.
func (r *GormLotRepository) FindSelectableByProduct(ctx context.Context, tenantID, productID, agencyID uuid.UUID) ([]*lot.Lot, error) {
	var lots []*lot.Lot
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND product_id = ? AND agency_id = ? AND status = ?",
			tenantID, productID, agencyID, lot.StatusActive).
		Where("remaining_quantity > reserved_quantity").
		Where("expiry_date IS NULL OR expiry_date > ?", time.Now()).
		Order(fifoOrder).
		Find(&lots).Error; err != nil {
		return nil, err
	}
	return lots, nil
}

// Search lists lots with pagination and free-text filtering over lot and
// batch numbers
func (r *GormLotRepository) Search(ctx context.Context, tenantID, agencyID uuid.UUID, filter shared.Filter) (*shared.Paginated[*lot.Lot], error) {
	query := r.db.WithContext(ctx).Model(&lot.Lot{}).
		Where("tenant_id = ? AND agency_id = ?", tenantID, agencyID)

	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		query = query.Where("lot_number LIKE ? OR batch_number LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	orderBy := filter.OrderBy
	switch orderBy {
	case "lot_number", "manufacturing_date", "expiry_date", "remaining_quantity", "created_at":
	default:
		orderBy = "created_at"
	}
	dir := "DESC"
	if filter.OrderDir == "asc" {
		dir = "ASC"
	}

	var lots []*lot.Lot
	if err := query.
		Order(orderBy + " " + dir).
		Offset(filter.Offset()).
		Limit(filter.Limit()).
		Find(&lots).Error; err != nil {
		return nil, err
	}

	page := shared.NewPaginated(lots, total, filter.Page, filter.PageSize)
	return &page, nil
}

// FindExpiringSoon returns unexpired ACTIVE lots expiring within the
// window, soonest first
func (r *GormLotRepository) FindExpiringSoon(ctx context.Context, tenantID, agencyID uuid.UUID, window time.Duration) ([]*lot.Lot, error) {
	now := time.Now()
	var lots []*lot.Lot
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND agency_id = ? AND status = ?", tenantID, agencyID, lot.StatusActive).
		Where("expiry_date IS NOT NULL AND expiry_date > ? AND expiry_date <= ?", now, now.Add(window)).
		Where("remaining_quantity > 0").
		Order("expiry_date ASC").
		Find(&lots).Error; err != nil {
		return nil, err
	}
	return lots, nil
}

// FindExpired returns lots past their expiry date not yet marked EXPIRED
func (r *GormLotRepository) FindExpired(ctx context.Context, tenantID uuid.UUID, asOf time.Time) ([]*lot.Lot, error) {
	var lots []*lot.Lot
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Where("expiry_date IS NOT NULL AND expiry_date < ?", asOf).
		Where("status NOT IN ?", []lot.Status{lot.StatusExpired, lot.StatusConsumed}).
		Order(fifoOrder).
		Find(&lots).Error; err != nil {
		return nil, err
	}
	return lots, nil
}

// ListTenantIDs returns the distinct tenants owning lots. The expiry
// sweeper uses this to fan out per-tenant sweeps.
func (r *GormLotRepository) ListTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&lot.Lot{}).
		Distinct("tenant_id").
		Pluck("tenant_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// Save inserts or updates a lot
func (r *GormLotRepository) Save(ctx context.Context, l *lot.Lot) error {
	return r.db.WithContext(ctx).Save(l).Error
}

// SaveAll persists multiple lots
func (r *GormLotRepository) SaveAll(ctx context.Context, lots []*lot.Lot) error {
	for _, l := range lots {
		if err := r.Save(ctx, l); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a lot
func (r *GormLotRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Delete(&lot.Lot{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ lot.LotRepository = (*GormLotRepository)(nil)
