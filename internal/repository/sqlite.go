package repository

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/core-coin/stakeplan/internal/models"
	"github.com/core-coin/stakeplan/pkg/logger"
)

// NewSQLiteDB opens a SQLite database at path (":memory:" for a private in-memory one).
// SQLite has no row locks, so the pool is limited to one connection and every
// transaction is serialized by the driver.
func NewSQLiteDB(path string, logger *logger.Logger) (models.Repository, error) {
	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000"), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := storeMoneyAsText(db, &models.Plan{}, &models.Portfolio{}, &models.WalletAccount{}, &models.Transaction{}); err != nil {
		return nil, err
	}
	repo, err := newGormDB(db, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("Successfully opened SQLite database", "path", path)
	return repo, nil
}

// moneyType is the column type of every ledger amount.
const moneyType = "numeric(20,8)"

// storeMoneyAsText switches ledger amount columns to TEXT. SQLite gives a
// numeric(...) column NUMERIC affinity, which stores decimal strings as REAL
// and rounds them to float64. The change is made on the cached schema, so it
// must run before the first migration or query on db.
func storeMoneyAsText(db *gorm.DB, values ...interface{}) error {
	for _, value := range values {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(value); err != nil {
			return fmt.Errorf("failed to parse schema: %w", err)
		}
		for _, field := range stmt.Schema.Fields {
			if field.DataType == moneyType {
				field.DataType = "text"
			}
		}
	}
	return nil
}
