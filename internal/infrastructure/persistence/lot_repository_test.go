package persistence

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dms/backend/internal/domain/lot"
	"github.com/dms/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newMockLotRepository creates a GormLotRepository with a mocked SQL connection
func newMockLotRepository(t *testing.T) (*GormLotRepository, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return NewGormLotRepository(gormDB), mock, mockDB
}

var lotColumns = []string{
	"id", "tenant_id", "version", "product_id", "agency_id",
	"lot_number", "batch_number", "manufacturing_date", "expiry_date",
	"quantity", "remaining_quantity", "reserved_quantity", "status",
}

func lotRow(id, tenantID, productID, agencyID uuid.UUID, lotNumber string, manufactured time.Time) []driver.Value {
	return []driver.Value{
		id, tenantID, 1, productID, agencyID,
		lotNumber, "B-001", manufactured, nil,
		decimal.NewFromInt(100), decimal.NewFromInt(100), decimal.Zero, "ACTIVE",
	}
}

func TestNewGormLotRepository(t *testing.T) {
	t.Run("creates repository with valid DB", func(t *testing.T) {
		repo, _, mockDB := newMockLotRepository(t)
		defer mockDB.Close()

		assert.NotNil(t, repo)
		assert.NotNil(t, repo.db)
	})
}

func TestGormLotRepository_FindByID(t *testing.T) {
	t.Run("finds existing lot", func(t *testing.T) {
		repo, mock, mockDB := newMockLotRepository(t)
		defer mockDB.Close()

		lotID := uuid.New()
		tenantID := uuid.New()
		productID := uuid.New()
		agencyID := uuid.New()
		manufactured := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

		rows := sqlmock.NewRows(lotColumns).
			AddRow(lotRow(lotID, tenantID, productID, agencyID, "LOT-001", manufactured)...)

		mock.ExpectQuery(`SELECT \* FROM "lot_batches" WHERE tenant_id = \$1 AND id = \$2 ORDER BY .* LIMIT .*`).
			WithArgs(tenantID, lotID, 1).
			WillReturnRows(rows)

		found, err := repo.FindByID(context.Background(), tenantID, lotID)

		assert.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, lotID, found.ID)
		assert.Equal(t, "LOT-001", found.LotNumber)
		assert.True(t, found.RemainingQuantity.Equal(decimal.NewFromInt(100)))
		assert.Equal(t, lot.StatusActive, found.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns ErrNotFound for missing lot", func(t *testing.T) {
		repo, mock, mockDB := newMockLotRepository(t)
		defer mockDB.Close()

		lotID := uuid.New()
		tenantID := uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "lot_batches" WHERE tenant_id = \$1 AND id = \$2 ORDER BY .* LIMIT .*`).
			WithArgs(tenantID, lotID, 1).
			WillReturnError(gorm.ErrRecordNotFound)

		found, err := repo.FindByID(context.Background(), tenantID, lotID)

		assert.Error(t, err)
		assert.Nil(t, found)
		assert.Equal(t, shared.ErrNotFound, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormLotRepository_FindByLotNumber(t *testing.T) {
	t.Run("finds lot by number within product and agency", func(t *testing.T) {
		repo, mock, mockDB := newMockLotRepository(t)
		defer mockDB.Close()

		lotID := uuid.New()
		tenantID := uuid.New()
		productID := uuid.New()
		agencyID := uuid.New()
		manufactured := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

		rows := sqlmock.NewRows(lotColumns).
			AddRow(lotRow(lotID, tenantID, productID, agencyID, "LOT-002", manufactured)...)

		mock.ExpectQuery(`SELECT \* FROM "lot_batches" WHERE tenant_id = \$1 AND product_id = \$2 AND agency_id = \$3 AND lot_number = \$4 ORDER BY .* LIMIT .*`).
			WithArgs(tenantID, productID, agencyID, "LOT-002", 1).
			WillReturnRows(rows)

		found, err := repo.FindByLotNumber(context.Background(), tenantID, productID, agencyID, "LOT-002")

		assert.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, "LOT-002", found.LotNumber)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns ErrNotFound for unknown number", func(t *testing.T) {
		repo, mock, mockDB := newMockLotRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()
		productID := uuid.New()
		agencyID := uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "lot_batches" WHERE .* LIMIT .*`).
			WithArgs(tenantID, productID, agencyID, "NOPE", 1).
			WillReturnError(gorm.ErrRecordNotFound)

		found, err := repo.FindByLotNumber(context.Background(), tenantID, productID, agencyID, "NOPE")

		assert.Nil(t, found)
		assert.Equal(t, shared.ErrNotFound, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormLotRepository_FindSelectableByProduct(t *testing.T) {
	t.Run("returns allocatable lots in FIFO order", func(t *testing.T) {
		repo, mock, mockDB := newMockLotRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()
		productID := uuid.New()
		agencyID := uuid.New()
		older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		newer := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

		rows := sqlmock.NewRows(lotColumns).
			AddRow(lotRow(uuid.New(), tenantID, productID, agencyID, "LOT-OLD", older)...).
			AddRow(lotRow(uuid.New(), tenantID, productID, agencyID, "LOT-NEW", newer)...)

		mock.ExpectQuery(`SELECT \* FROM "lot_batches" WHERE .*remaining_quantity > reserved_quantity.*ORDER BY manufacturing_date ASC, lot_number ASC`).
			WithArgs(tenantID, productID, agencyID, "ACTIVE", sqlmock.AnyArg()).
			WillReturnRows(rows)

		lots, err := repo.FindSelectableByProduct(context.Background(), tenantID, productID, agencyID)

		assert.NoError(t, err)
		require.Len(t, lots, 2)
		assert.Equal(t, "LOT-OLD", lots[0].LotNumber)
		assert.Equal(t, "LOT-NEW", lots[1].LotNumber)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns empty slice when nothing is selectable", func(t *testing.T) {
		repo, mock, mockDB := newMockLotRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()
		productID := uuid.New()
		agencyID := uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "lot_batches" WHERE .*`).
			WithArgs(tenantID, productID, agencyID, "ACTIVE", sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows(lotColumns))

		lots, err := repo.FindSelectableByProduct(context.Background(), tenantID, productID, agencyID)

		assert.NoError(t, err)
		assert.Empty(t, lots)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormLotRepository_Search(t *testing.T) {
	t.Run("paginates with search pattern", func(t *testing.T) {
		repo, mock, mockDB := newMockLotRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()
		productID := uuid.New()
		agencyID := uuid.New()
		manufactured := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

		mock.ExpectQuery(`SELECT count\(\*\) FROM "lot_batches" WHERE .*LIKE.*`).
			WithArgs(tenantID, agencyID, "%LOT%", "%LOT%").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(25)))

		rows := sqlmock.NewRows(lotColumns).
			AddRow(lotRow(uuid.New(), tenantID, productID, agencyID, "LOT-101", manufactured)...)

		mock.ExpectQuery(`SELECT \* FROM "lot_batches" WHERE .*ORDER BY lot_number ASC LIMIT .*`).
			WithArgs(tenantID, agencyID, "%LOT%", "%LOT%", 10, 10).
			WillReturnRows(rows)

		filter := shared.Filter{Page: 2, PageSize: 10, OrderBy: "lot_number", OrderDir: "asc", Search: "LOT"}
		page, err := repo.Search(context.Background(), tenantID, agencyID, filter)

		assert.NoError(t, err)
		require.NotNil(t, page)
		assert.Equal(t, int64(25), page.Total)
		assert.Equal(t, 3, page.TotalPages)
		require.Len(t, page.Items, 1)
		assert.Equal(t, "LOT-101", page.Items[0].LotNumber)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("falls back to created_at for unknown order column", func(t *testing.T) {
		repo, mock, mockDB := newMockLotRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()
		agencyID := uuid.New()

		mock.ExpectQuery(`SELECT count\(\*\) FROM "lot_batches" WHERE tenant_id = \$1 AND agency_id = \$2`).
			WithArgs(tenantID, agencyID).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(0)))

		mock.ExpectQuery(`SELECT \* FROM "lot_batches" WHERE .*ORDER BY created_at DESC LIMIT .*`).
			WithArgs(tenantID, agencyID, 20).
			WillReturnRows(sqlmock.NewRows(lotColumns))

		filter := shared.Filter{Page: 1, PageSize: 20, OrderBy: "status; DROP TABLE lot_batches"}
		page, err := repo.Search(context.Background(), tenantID, agencyID, filter)

		assert.NoError(t, err)
		require.NotNil(t, page)
		assert.Empty(t, page.Items)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormLotRepository_FindExpiringSoon(t *testing.T) {
	t.Run("finds lots inside the window ordered by expiry", func(t *testing.T) {
		repo, mock, mockDB := newMockLotRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()
		productID := uuid.New()
		agencyID := uuid.New()
		manufactured := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

		rows := sqlmock.NewRows(lotColumns).
			AddRow(lotRow(uuid.New(), tenantID, productID, agencyID, "LOT-EXP", manufactured)...)

		mock.ExpectQuery(`SELECT \* FROM "lot_batches" WHERE .*expiry_date.*ORDER BY expiry_date ASC`).
			WithArgs(tenantID, agencyID, "ACTIVE", sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnRows(rows)

		lots, err := repo.FindExpiringSoon(context.Background(), tenantID, agencyID, 7*24*time.Hour)

		assert.NoError(t, err)
		require.Len(t, lots, 1)
		assert.Equal(t, "LOT-EXP", lots[0].LotNumber)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormLotRepository_FindExpired(t *testing.T) {
	t.Run("finds lapsed lots not yet terminal", func(t *testing.T) {
		repo, mock, mockDB := newMockLotRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()
		productID := uuid.New()
		agencyID := uuid.New()
		manufactured := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
		asOf := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

		rows := sqlmock.NewRows(lotColumns).
			AddRow(lotRow(uuid.New(), tenantID, productID, agencyID, "LOT-LAPSED", manufactured)...)

		mock.ExpectQuery(`SELECT \* FROM "lot_batches" WHERE .*status NOT IN.*`).
			WithArgs(tenantID, asOf, "EXPIRED", "CONSUMED").
			WillReturnRows(rows)

		lots, err := repo.FindExpired(context.Background(), tenantID, asOf)

		assert.NoError(t, err)
		require.Len(t, lots, 1)
		assert.Equal(t, "LOT-LAPSED", lots[0].LotNumber)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormLotRepository_Save(t *testing.T) {
	t.Run("saves lot", func(t *testing.T) {
		repo, mock, mockDB := newMockLotRepository(t)
		defer mockDB.Close()

		manufactured := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		l, err := lot.NewLot(lot.CreateLotParams{
			TenantID:          uuid.New(),
			ProductID:         uuid.New(),
			AgencyID:          uuid.New(),
			LotNumber:         "LOT-001",
			ManufacturingDate: manufactured,
			Quantity:          decimal.NewFromInt(100),
			CreatedBy:         uuid.New(),
		})
		require.NoError(t, err)

		mock.ExpectExec(`UPDATE "lot_batches" SET`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err = repo.Save(context.Background(), l)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormLotRepository_Delete(t *testing.T) {
	t.Run("deletes existing lot", func(t *testing.T) {
		repo, mock, mockDB := newMockLotRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()
		lotID := uuid.New()

		mock.ExpectExec(`DELETE FROM "lot_batches" WHERE tenant_id = \$1 AND id = \$2`).
			WithArgs(tenantID, lotID).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.Delete(context.Background(), tenantID, lotID)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns ErrNotFound when nothing was deleted", func(t *testing.T) {
		repo, mock, mockDB := newMockLotRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()
		lotID := uuid.New()

		mock.ExpectExec(`DELETE FROM "lot_batches" WHERE tenant_id = \$1 AND id = \$2`).
			WithArgs(tenantID, lotID).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Delete(context.Background(), tenantID, lotID)

		assert.Equal(t, shared.ErrNotFound, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
