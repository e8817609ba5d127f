package persistence

import (
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/societyledger/backend/tests/testutil"
)

// newMockDatabase wraps a sqlmock connection in a postgres-dialect gorm DB
func newMockDatabase(t *testing.T) (*Database, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	m := testutil.NewMockDB(t)
	return &Database{DB: m.DB}, m.Mock, m.SqlDB
}

// newSQLiteDB opens a migrated in-memory sqlite database
func newSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	return testutil.NewSQLiteDB(t, AutoMigrate)
}

func TestDatabase_Ping(t *testing.T) {
	db, _, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	assert.NoError(t, db.Ping())
}

func TestDatabase_Stats(t *testing.T) {
	db, _, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	stats, err := db.Stats()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.OpenConnections, 0)
	assert.Equal(t, 0, stats.InUse)
}

func TestDatabase_Close(t *testing.T) {
	db, mock, _ := newMockDatabase(t)

	mock.ExpectClose()
	assert.NoError(t, db.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAutoMigrate_CreatesAllTables(t *testing.T) {
	db := newSQLiteDB(t)

	for _, table := range []string{
		"sequence_counters",
		"ledger_accounts",
		"ledger_daily_deltas",
		"flats",
		"wallet_daily_deltas",
		"master_bills",
		"recipient_bills",
		"settlement_records",
		"pending_job_lists",
	} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
}
