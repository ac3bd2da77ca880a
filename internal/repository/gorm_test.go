package repository

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/core-coin/stakeplan/internal/models"
	"github.com/core-coin/stakeplan/pkg/logger"
)

var now = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) models.Repository {
	t.Helper()
	repo, err := NewSQLiteDB(":memory:", logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func portfolio(id, user string, status models.PortfolioStatus) *models.Portfolio {
	return &models.Portfolio{
		ID:               id,
		UserID:           user,
		Plan:             models.PlanSnapshot{PlanID: "basic-30", Name: "Basic", Duration: 30, Price: decimal.NewFromInt(100), ReturnPercentage: decimal.NewFromInt(10)},
		Amount:           decimal.NewFromInt(100),
		DateOfInvestment: now,
		Status:           status,
	}
}

func TestGormDB_UpsertPlan(t *testing.T) {
	repo := newTestDB(t)
	ctx := context.Background()

	plan := &models.Plan{ID: "basic-30", Name: "Basic", Price: decimal.NewFromInt(100), Duration: 30, ReturnPercentage: decimal.NewFromInt(10)}
	require.NoError(t, repo.UpsertPlan(ctx, plan))

	plan.Name = "Basic+"
	plan.Duration = 45
	require.NoError(t, repo.UpsertPlan(ctx, plan))

	plans, err := repo.ListPlans(ctx)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, "Basic+", plans[0].Name)
	assert.Equal(t, 45, plans[0].Duration)

	_, err = repo.GetPlan(ctx, "gold")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestGormDB_OneActivePortfolioPerUser(t *testing.T) {
	repo := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.CreatePortfolio(ctx, portfolio("p1", "alice", models.PortfolioActive)))
	err := repo.CreatePortfolio(ctx, portfolio("p2", "alice", models.PortfolioActive))
	assert.Error(t, err, "the database refuses a second ACTIVE row")

	require.NoError(t, repo.CreatePortfolio(ctx, portfolio("p3", "alice", models.PortfolioReplaced)))
	require.NoError(t, repo.CreatePortfolio(ctx, portfolio("p4", "bob", models.PortfolioActive)))

	changed, err := repo.ClosePortfolio(ctx, "p1", models.PortfolioExpired, now)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = repo.ClosePortfolio(ctx, "p1", models.PortfolioReplaced, now)
	require.NoError(t, err)
	assert.False(t, changed, "only ACTIVE rows are closed")

	require.NoError(t, repo.CreatePortfolio(ctx, portfolio("p5", "alice", models.PortfolioActive)))
	active, err := repo.FindActivePortfolio(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "p5", active.ID)
	assert.Equal(t, "basic-30", active.Plan.PlanID)

	all, err := repo.ListActivePortfolios(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestGormDB_FindMissingReturnsNil(t *testing.T) {
	repo := newTestDB(t)
	ctx := context.Background()

	p, err := repo.FindActivePortfolio(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, p)
	a, err := repo.FindWalletAccount(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, a)
	tx, err := repo.FindTransactionByReference(ctx, "pay-1")
	require.NoError(t, err)
	assert.Nil(t, tx)
	r, err := repo.FindReferralProfile(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, r)

	_, err = repo.GetTransaction(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestGormDB_LockWalletAccountCreatesOnce(t *testing.T) {
	repo := newTestDB(t)
	ctx := context.Background()

	err := repo.Transaction(ctx, func(tx models.Repository) error {
		account, err := tx.LockWalletAccount(ctx, "alice")
		if err != nil {
			return err
		}
		account.Balance = decimal.NewFromInt(42)
		account.Version++
		return tx.SaveWalletAccount(ctx, account)
	})
	require.NoError(t, err)

	err = repo.Transaction(ctx, func(tx models.Repository) error {
		account, err := tx.LockWalletAccount(ctx, "alice")
		require.NoError(t, err)
		assert.True(t, account.Balance.Equal(decimal.NewFromInt(42)), "existing account is not reset")
		assert.Equal(t, int64(1), account.Version)
		return nil
	})
	require.NoError(t, err)
}

func TestGormDB_TransactionRollsBack(t *testing.T) {
	repo := newTestDB(t)
	ctx := context.Background()

	err := repo.Transaction(ctx, func(tx models.Repository) error {
		if _, err := tx.LockWalletAccount(ctx, "alice"); err != nil {
			return err
		}
		return models.ErrInsufficientFunds
	})
	assert.ErrorIs(t, err, models.ErrInsufficientFunds)

	account, err := repo.FindWalletAccount(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, account)
}

func TestGormDB_TransactionsAndSum(t *testing.T) {
	repo := newTestDB(t)
	ctx := context.Background()

	ref := "pay-1"
	txs := []*models.Transaction{
		{ID: "t1", UserID: "alice", Type: models.TransactionDeposit, Amount: decimal.NewFromInt(100), ExternalReference: &ref, Status: models.TransactionConfirmed, CreatedAt: now},
		{ID: "t2", UserID: "alice", Type: models.TransactionWithdrawal, Amount: decimal.NewFromInt(30), Status: models.TransactionConfirmed, CreatedAt: now.Add(time.Minute)},
		{ID: "t3", UserID: "alice", Type: models.TransactionWithdrawal, Amount: decimal.NewFromInt(50), Status: models.TransactionPending, CreatedAt: now.Add(2 * time.Minute)},
		{ID: "t4", UserID: "bob", Type: models.TransactionDeposit, Amount: decimal.NewFromInt(7), Status: models.TransactionConfirmed, CreatedAt: now},
	}
	for _, tx := range txs {
		require.NoError(t, repo.CreateTransaction(ctx, tx))
	}

	dup := "pay-1"
	err := repo.CreateTransaction(ctx, &models.Transaction{ID: "t5", UserID: "bob", Type: models.TransactionDeposit,
		Amount: decimal.NewFromInt(1), ExternalReference: &dup, Status: models.TransactionPending, CreatedAt: now})
	assert.ErrorIs(t, err, models.ErrConflict)

	sum, err := repo.SumConfirmed(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, sum.Equal(decimal.NewFromInt(70)), "got %s", sum)

	listed, err := repo.ListTransactions(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, listed, 3)
	assert.Equal(t, "t3", listed[0].ID, "newest first")

	found, err := repo.FindTransactionByReference(ctx, "pay-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "t1", found.ID)

	pending, err := repo.ListTransactionsByStatus(ctx, models.TransactionPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	pending[0].Status = models.TransactionRejected
	require.NoError(t, repo.UpdateTransaction(ctx, pending[0]))
	got, err := repo.GetTransaction(ctx, "t3")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionRejected, got.Status)
}

func TestGormDB_ReferralProfiles(t *testing.T) {
	repo := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateReferralProfile(ctx, &models.ReferralProfile{UserID: "alice", ReferCode: "AAAA1111", CreatedAt: now}))
	err := repo.CreateReferralProfile(ctx, &models.ReferralProfile{UserID: "bob", ReferCode: "AAAA1111", CreatedAt: now})
	assert.ErrorIs(t, err, models.ErrConflict, "codes are unique")

	code := "AAAA1111"
	bob := &models.ReferralProfile{UserID: "bob", ReferCode: "BBBB2222", CreatedAt: now}
	require.NoError(t, repo.CreateReferralProfile(ctx, bob))
	bob.ReferredBy = &code
	require.NoError(t, repo.UpdateReferralProfile(ctx, bob))

	owner, err := repo.FindReferralProfileByCode(ctx, "AAAA1111")
	require.NoError(t, err)
	require.NotNil(t, owner)
	assert.Equal(t, "alice", owner.UserID)

	count, err := repo.CountReferrals(ctx, "AAAA1111")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestGormDB_AppLock(t *testing.T) {
	repo := newTestDB(t)
	ctx := context.Background()

	ok, err := repo.TryAcquireAppLock(ctx, "sweep", "a", now, now.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.TryAcquireAppLock(ctx, "sweep", "b", now, now.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, ok, "held by a")

	ok, err = repo.TryAcquireAppLock(ctx, "sweep", "a", now.Add(30*time.Second), now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.True(t, ok, "holder renews")

	later := now.Add(3 * time.Minute)
	ok, err = repo.TryAcquireAppLock(ctx, "sweep", "b", later, later.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, ok, "expired lock is taken over")

	require.NoError(t, repo.ReleaseAppLock(ctx, "sweep", "a"), "releasing a lock we no longer hold is a no-op")
	ok, err = repo.TryAcquireAppLock(ctx, "sweep", "a", later, later.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.ReleaseAppLock(ctx, "sweep", "b"))
	ok, err = repo.TryAcquireAppLock(ctx, "sweep", "a", later, later.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGormDB_AmountsKeepFullPrecision(t *testing.T) {
	repo := newTestDB(t)
	ctx := context.Background()
	big := decimal.RequireFromString("123456789012.12345678")

	require.NoError(t, repo.CreateTransaction(ctx, &models.Transaction{ID: "t1", UserID: "alice",
		Type: models.TransactionDeposit, Amount: big, Status: models.TransactionConfirmed, CreatedAt: now}))
	require.NoError(t, repo.CreateTransaction(ctx, &models.Transaction{ID: "t2", UserID: "alice",
		Type: models.TransactionDeposit, Amount: decimal.RequireFromString("0.00000001"), Status: models.TransactionConfirmed, CreatedAt: now}))

	got, err := repo.GetTransaction(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "123456789012.12345678", got.Amount.String())

	sum, err := repo.SumConfirmed(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "123456789012.12345679", sum.String())

	err = repo.Transaction(ctx, func(tx models.Repository) error {
		account, err := tx.LockWalletAccount(ctx, "alice")
		if err != nil {
			return err
		}
		account.Balance = sum
		return tx.SaveWalletAccount(ctx, account)
	})
	require.NoError(t, err)
	account, err := repo.FindWalletAccount(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, account)
	assert.Equal(t, "123456789012.12345679", account.Balance.String())

	plan := &models.Plan{ID: "whale", Name: "Whale", Price: big, Duration: 30, ReturnPercentage: decimal.RequireFromString("12.34567891")}
	require.NoError(t, repo.UpsertPlan(ctx, plan))
	stored, err := repo.GetPlan(ctx, "whale")
	require.NoError(t, err)
	assert.Equal(t, "123456789012.12345678", stored.Price.String())
	assert.Equal(t, "12.34567891", stored.ReturnPercentage.String())

	p := portfolio("p1", "alice", models.PortfolioActive)
	p.Amount = big
	p.Plan.Price = big
	require.NoError(t, repo.CreatePortfolio(ctx, p))
	active, err := repo.FindActivePortfolio(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "123456789012.12345678", active.Amount.String())
	assert.Equal(t, "123456789012.12345678", active.Plan.Price.String())
}
