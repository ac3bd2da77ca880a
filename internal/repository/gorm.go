package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"

	"github.com/core-coin/stakeplan/internal/models"
	"github.com/core-coin/stakeplan/pkg/logger"
)

// GormDB implements models.Repository on top of GORM. The same code serves
// PostgreSQL and SQLite; only the dialector differs.
type GormDB struct {
	logger *logger.Logger

	Conn *gorm.DB
}

func gormConfig() *gorm.Config {
	// Configure GORM logger to suppress "record not found" messages
	l := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)
	return &gorm.Config{Logger: l, TranslateError: true}
}

func newGormDB(db *gorm.DB, logger *logger.Logger) (*GormDB, error) {
	if err := db.AutoMigrate(
		&models.Plan{},
		&models.Portfolio{},
		&models.WalletAccount{},
		&models.Transaction{},
		&models.ReferralProfile{},
		&models.AppLock{},
	); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate models: %w", err)
	}
	// At most one ACTIVE portfolio per user, enforced by the database as well.
	if err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_portfolios_one_active
		ON portfolios (user_id) WHERE status = 'ACTIVE'`).Error; err != nil {
		return nil, fmt.Errorf("failed to create active portfolio index: %w", err)
	}
	return &GormDB{Conn: db, logger: logger}, nil
}

// wrapErr maps GORM errors onto the engine's error kinds.
func wrapErr(op string, err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("failed to %s: %w", op, models.ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("failed to %s: %w", op, models.ErrConflict)
	}
	return fmt.Errorf("failed to %s: %w: %w", op, models.ErrInternal, err)
}

// first loads one record into dest. It reports false when nothing matched.
func first(q *gorm.DB, dest interface{}) (bool, error) {
	if err := q.First(dest).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (db *GormDB) Transaction(ctx context.Context, fn func(tx models.Repository) error) error {
	return db.Conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormDB{Conn: tx, logger: db.logger})
	})
}

func (db *GormDB) Close() error {
	sqlDB, err := db.Conn.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}
	return sqlDB.Close()
}

func (db *GormDB) ListPlans(ctx context.Context) ([]*models.Plan, error) {
	var plans []*models.Plan
	if err := db.Conn.WithContext(ctx).Order("sort_order ASC, price ASC, id ASC").Find(&plans).Error; err != nil {
		return nil, wrapErr("list plans", err)
	}
	return plans, nil
}

func (db *GormDB) GetPlan(ctx context.Context, id string) (*models.Plan, error) {
	var plan models.Plan
	if err := db.Conn.WithContext(ctx).Where("id = ?", id).First(&plan).Error; err != nil {
		return nil, wrapErr("get plan", err)
	}
	return &plan, nil
}

func (db *GormDB) UpsertPlan(ctx context.Context, plan *models.Plan) error {
	err := db.Conn.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "price", "duration", "return_percentage", "description", "logo", "sort_order", "updated_at",
		}),
	}).Create(plan).Error
	if err != nil {
		return wrapErr("upsert plan", err)
	}
	return nil
}

func (db *GormDB) FindActivePortfolio(ctx context.Context, userID string) (*models.Portfolio, error) {
	var portfolio models.Portfolio
	found, err := first(db.Conn.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, models.PortfolioActive), &portfolio)
	if err != nil {
		return nil, wrapErr("find active portfolio", err)
	}
	if !found {
		return nil, nil
	}
	return &portfolio, nil
}

func (db *GormDB) ListPortfolios(ctx context.Context, userID string) ([]*models.Portfolio, error) {
	var portfolios []*models.Portfolio
	if err := db.Conn.WithContext(ctx).Where("user_id = ?", userID).
		Order("date_of_investment DESC, created_at DESC").Find(&portfolios).Error; err != nil {
		return nil, wrapErr("list portfolios", err)
	}
	return portfolios, nil
}

func (db *GormDB) ListActivePortfolios(ctx context.Context) ([]*models.Portfolio, error) {
	var portfolios []*models.Portfolio
	if err := db.Conn.WithContext(ctx).Where("status = ?", models.PortfolioActive).Find(&portfolios).Error; err != nil {
		return nil, wrapErr("list active portfolios", err)
	}
	return portfolios, nil
}

func (db *GormDB) CreatePortfolio(ctx context.Context, portfolio *models.Portfolio) error {
	if err := db.Conn.WithContext(ctx).Create(portfolio).Error; err != nil {
		return wrapErr("create portfolio", err)
	}
	return nil
}

func (db *GormDB) ClosePortfolio(ctx context.Context, id string, status models.PortfolioStatus, at time.Time) (bool, error) {
	res := db.Conn.WithContext(ctx).Model(&models.Portfolio{}).
		Where("id = ? AND status = ?", id, models.PortfolioActive).
		Updates(map[string]interface{}{"status": status, "closed_at": at, "updated_at": at})
	if res.Error != nil {
		return false, wrapErr("close portfolio", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (db *GormDB) LockWalletAccount(ctx context.Context, userID string) (*models.WalletAccount, error) {
	empty := &models.WalletAccount{UserID: userID, Balance: decimal.Zero}
	if err := db.Conn.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(empty).Error; err != nil {
		return nil, wrapErr("create wallet account", err)
	}

	// SQLite ignores the locking clause; its writers are serialized anyway.
	var account models.WalletAccount
	if err := db.Conn.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).First(&account).Error; err != nil {
		return nil, wrapErr("lock wallet account", err)
	}
	return &account, nil
}

func (db *GormDB) FindWalletAccount(ctx context.Context, userID string) (*models.WalletAccount, error) {
	var account models.WalletAccount
	found, err := first(db.Conn.WithContext(ctx).Where("user_id = ?", userID), &account)
	if err != nil {
		return nil, wrapErr("find wallet account", err)
	}
	if !found {
		return nil, nil
	}
	return &account, nil
}

func (db *GormDB) SaveWalletAccount(ctx context.Context, account *models.WalletAccount) error {
	if err := db.Conn.WithContext(ctx).Save(account).Error; err != nil {
		return wrapErr("save wallet account", err)
	}
	return nil
}

func (db *GormDB) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	if err := db.Conn.WithContext(ctx).Create(tx).Error; err != nil {
		return wrapErr("create transaction", err)
	}
	return nil
}

func (db *GormDB) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	var tx models.Transaction
	if err := db.Conn.WithContext(ctx).Where("id = ?", id).First(&tx).Error; err != nil {
		return nil, wrapErr("get transaction", err)
	}
	return &tx, nil
}

func (db *GormDB) FindTransactionByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	var tx models.Transaction
	found, err := first(db.Conn.WithContext(ctx).Where("external_reference = ?", reference), &tx)
	if err != nil {
		return nil, wrapErr("find transaction by reference", err)
	}
	if !found {
		return nil, nil
	}
	return &tx, nil
}

func (db *GormDB) UpdateTransaction(ctx context.Context, tx *models.Transaction) error {
	if err := db.Conn.WithContext(ctx).Save(tx).Error; err != nil {
		return wrapErr("update transaction", err)
	}
	return nil
}

func (db *GormDB) ListTransactions(ctx context.Context, userID string) ([]*models.Transaction, error) {
	var txs []*models.Transaction
	if err := db.Conn.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&txs).Error; err != nil {
		return nil, wrapErr("list transactions", err)
	}
	return txs, nil
}

func (db *GormDB) ListTransactionsByStatus(ctx context.Context, status models.TransactionStatus) ([]*models.Transaction, error) {
	var txs []*models.Transaction
	if err := db.Conn.WithContext(ctx).Where("status = ?", status).Order("created_at ASC").Find(&txs).Error; err != nil {
		return nil, wrapErr("list transactions by status", err)
	}
	return txs, nil
}

// SumConfirmed adds up the signed amounts in Go so no precision is lost to the database's numeric type.
func (db *GormDB) SumConfirmed(ctx context.Context, userID string) (decimal.Decimal, error) {
	var txs []*models.Transaction
	if err := db.Conn.WithContext(ctx).Where("user_id = ? AND status = ?", userID, models.TransactionConfirmed).
		Find(&txs).Error; err != nil {
		return decimal.Zero, wrapErr("sum confirmed transactions", err)
	}
	sum := decimal.Zero
	for _, tx := range txs {
		sum = sum.Add(tx.Signed())
	}
	return sum, nil
}

func (db *GormDB) FindReferralProfile(ctx context.Context, userID string) (*models.ReferralProfile, error) {
	var profile models.ReferralProfile
	found, err := first(db.Conn.WithContext(ctx).Where("user_id = ?", userID), &profile)
	if err != nil {
		return nil, wrapErr("find referral profile", err)
	}
	if !found {
		return nil, nil
	}
	return &profile, nil
}

func (db *GormDB) FindReferralProfileByCode(ctx context.Context, code string) (*models.ReferralProfile, error) {
	var profile models.ReferralProfile
	found, err := first(db.Conn.WithContext(ctx).Where("refer_code = ?", code), &profile)
	if err != nil {
		return nil, wrapErr("find referral profile by code", err)
	}
	if !found {
		return nil, nil
	}
	return &profile, nil
}

func (db *GormDB) CreateReferralProfile(ctx context.Context, profile *models.ReferralProfile) error {
	if err := db.Conn.WithContext(ctx).Create(profile).Error; err != nil {
		return wrapErr("create referral profile", err)
	}
	return nil
}

func (db *GormDB) UpdateReferralProfile(ctx context.Context, profile *models.ReferralProfile) error {
	if err := db.Conn.WithContext(ctx).Save(profile).Error; err != nil {
		return wrapErr("update referral profile", err)
	}
	return nil
}

func (db *GormDB) CountReferrals(ctx context.Context, code string) (int64, error) {
	var count int64
	if err := db.Conn.WithContext(ctx).Model(&models.ReferralProfile{}).Where("referred_by = ?", code).
		Count(&count).Error; err != nil {
		return 0, wrapErr("count referrals", err)
	}
	return count, nil
}

func (db *GormDB) TryAcquireAppLock(ctx context.Context, name, instanceID string, now, expiresAt time.Time) (bool, error) {
	res := db.Conn.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&models.AppLock{
		LockName:   name,
		InstanceID: instanceID,
		AcquiredAt: now.Unix(),
		ExpiresAt:  expiresAt.Unix(),
	})
	if res.Error != nil {
		return false, wrapErr("acquire app lock", res.Error)
	}
	if res.RowsAffected == 1 {
		return true, nil
	}

	// Renew our own lock or take over an expired one.
	res = db.Conn.WithContext(ctx).Model(&models.AppLock{}).
		Where("lock_name = ? AND (instance_id = ? OR expires_at < ?)", name, instanceID, now.Unix()).
		Updates(map[string]interface{}{
			"instance_id": instanceID,
			"acquired_at": now.Unix(),
			"expires_at":  expiresAt.Unix(),
		})
	if res.Error != nil {
		return false, wrapErr("renew app lock", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (db *GormDB) ReleaseAppLock(ctx context.Context, name, instanceID string) error {
	if err := db.Conn.WithContext(ctx).Where("lock_name = ? AND instance_id = ?", name, instanceID).
		Delete(&models.AppLock{}).Error; err != nil {
		return wrapErr("release app lock", err)
	}
	return nil
}
