package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/finbooks/backend/internal/domain/ledger"
	"github.com/finbooks/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newMockEntryRepository creates a GormEntryRepository with a mocked SQL connection
func newMockEntryRepository(t *testing.T) (*GormEntryRepository, sqlmock.Sqlmock, *sql.DB) {
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

	return NewGormEntryRepository(gormDB), mock, mockDB
}

func TestGormEntryRepository_Query(t *testing.T) {
	t.Run("returns entries scoped to tenant and account", func(t *testing.T) {
		repo, mock, mockDB := newMockEntryRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()
		accountID := uuid.New()
		entryID := uuid.New()
		entryDate := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

		rows := sqlmock.NewRows([]string{
			"id", "tenant_id", "account_id", "entry_date",
			"debit", "credit", "currency", "running_balance",
			"reconciled", "memo", "created_at",
		}).AddRow(
			entryID, tenantID, accountID, entryDate,
			decimal.NewFromFloat(100.50), decimal.Zero, "USD", decimal.NewFromFloat(100.50),
			false, "invoice 42", entryDate,
		)

		mock.ExpectQuery(`SELECT \* FROM "ledger_entries" WHERE tenant_id = \$1 AND account_id = \$2`).
			WithArgs(tenantID, accountID).
			WillReturnRows(rows)

		entries, err := repo.Query(context.Background(), tenantID, accountID, ledger.DateRange{}, ledger.EntryFilter{})

		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, entryID, entries[0].ID)
		assert.True(t, entries[0].Debit.Equal(decimal.NewFromFloat(100.50)))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("applies date range and filter predicates", func(t *testing.T) {
		repo, mock, mockDB := newMockEntryRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()
		accountID := uuid.New()
		from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		reconciled := false

		mock.ExpectQuery(`SELECT \* FROM "ledger_entries" WHERE tenant_id = \$1 AND account_id = \$2 AND entry_date >= \$3 AND reconciled = \$4`).
			WithArgs(tenantID, accountID, from, reconciled).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		entries, err := repo.Query(context.Background(), tenantID, accountID,
			ledger.DateRange{From: &from},
			ledger.EntryFilter{Reconciled: &reconciled})

		require.NoError(t, err)
		assert.Empty(t, entries)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormEntryRepository_AccountMetadata(t *testing.T) {
	t.Run("finds existing account", func(t *testing.T) {
		repo, mock, mockDB := newMockEntryRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()
		accountID := uuid.New()

		rows := sqlmock.NewRows([]string{"id", "tenant_id", "code", "name", "type"}).
			AddRow(accountID, tenantID, "1000", "Cash", "ASSET")

		mock.ExpectQuery(`SELECT \* FROM "ledger_accounts" WHERE tenant_id = \$1 AND id = \$2`).
			WithArgs(tenantID, accountID, 1).
			WillReturnRows(rows)

		meta, err := repo.AccountMetadata(context.Background(), tenantID, accountID)

		require.NoError(t, err)
		assert.Equal(t, "1000", meta.Code)
		assert.Equal(t, ledger.AccountTypeAsset, meta.Type)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("maps missing account to domain error", func(t *testing.T) {
		repo, mock, mockDB := newMockEntryRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()
		accountID := uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "ledger_accounts"`).
			WithArgs(tenantID, accountID, 1).
			WillReturnError(gorm.ErrRecordNotFound)

		meta, err := repo.AccountMetadata(context.Background(), tenantID, accountID)

		assert.Nil(t, meta)
		assert.ErrorIs(t, err, shared.ErrAccountNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormEntryRepository_MarkReconciled(t *testing.T) {
	t.Run("updates only the named entries", func(t *testing.T) {
		repo, mock, mockDB := newMockEntryRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()
		accountID := uuid.New()
		entryID := uuid.New()

		mock.ExpectExec(`UPDATE "ledger_entries" SET "reconciled"=\$1 WHERE tenant_id = \$2 AND account_id = \$3 AND id IN \(\$4\)`).
			WithArgs(true, tenantID, accountID, entryID).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.MarkReconciled(context.Background(), tenantID, accountID, []uuid.UUID{entryID})

		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no-op for empty id list", func(t *testing.T) {
		repo, mock, mockDB := newMockEntryRepository(t)
		defer mockDB.Close()

		err := repo.MarkReconciled(context.Background(), uuid.New(), uuid.New(), nil)

		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
