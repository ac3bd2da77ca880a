package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Repository is the persistence contract of the engine.
// Lookups of optional records return (nil, nil) when absent; Get* lookups of
// required records return an error wrapping ErrNotFound.
type Repository interface {
	// Transaction runs fn inside a database transaction. fn must only use the
	// repository it is handed.
	Transaction(ctx context.Context, fn func(tx Repository) error) error
	Close() error

	ListPlans(ctx context.Context) ([]*Plan, error)
	GetPlan(ctx context.Context, id string) (*Plan, error)
	UpsertPlan(ctx context.Context, plan *Plan) error

	FindActivePortfolio(ctx context.Context, userID string) (*Portfolio, error)
	ListPortfolios(ctx context.Context, userID string) ([]*Portfolio, error)
	ListActivePortfolios(ctx context.Context) ([]*Portfolio, error)
	CreatePortfolio(ctx context.Context, portfolio *Portfolio) error
	// ClosePortfolio moves an ACTIVE portfolio to status. It reports whether a row changed.
	ClosePortfolio(ctx context.Context, id string, status PortfolioStatus, at time.Time) (bool, error)

	// LockWalletAccount returns the user's account, creating it empty if needed,
	// and holds a row lock on it until the surrounding transaction ends.
	LockWalletAccount(ctx context.Context, userID string) (*WalletAccount, error)
	FindWalletAccount(ctx context.Context, userID string) (*WalletAccount, error)
	SaveWalletAccount(ctx context.Context, account *WalletAccount) error

	CreateTransaction(ctx context.Context, tx *Transaction) error
	GetTransaction(ctx context.Context, id string) (*Transaction, error)
	FindTransactionByReference(ctx context.Context, reference string) (*Transaction, error)
	UpdateTransaction(ctx context.Context, tx *Transaction) error
	ListTransactions(ctx context.Context, userID string) ([]*Transaction, error)
	ListTransactionsByStatus(ctx context.Context, status TransactionStatus) ([]*Transaction, error)
	SumConfirmed(ctx context.Context, userID string) (decimal.Decimal, error)

	FindReferralProfile(ctx context.Context, userID string) (*ReferralProfile, error)
	FindReferralProfileByCode(ctx context.Context, code string) (*ReferralProfile, error)
	CreateReferralProfile(ctx context.Context, profile *ReferralProfile) error
	UpdateReferralProfile(ctx context.Context, profile *ReferralProfile) error
	CountReferrals(ctx context.Context, code string) (int64, error)

	// TryAcquireAppLock takes or renews a named lock for instanceID until expiresAt.
	TryAcquireAppLock(ctx context.Context, name, instanceID string, now, expiresAt time.Time) (bool, error)
	ReleaseAppLock(ctx context.Context, name, instanceID string) error
}

// Locker serializes work per key. Lock blocks until the key is free or ctx is done.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// NotificationService delivers operator notifications. It must not block the caller for long.
type NotificationService interface {
	SendNotification(notification *Notification)
}

// EngineI is the ledger and subscription engine consumed by the API layer.
type EngineI interface {
	// Start starts background jobs. It returns immediately.
	Start() error
	Stop()

	ListPlans(ctx context.Context) ([]*Plan, error)
	GetPlan(ctx context.Context, id string) (*Plan, error)

	GetActivePortfolio(ctx context.Context, userID string) (*PortfolioView, error)
	ListPortfolios(ctx context.Context, userID string) ([]*PortfolioView, error)
	PreviewActivation(ctx context.Context, userID, planID string) (*ActivationPreview, error)
	ConfirmActivation(ctx context.Context, userID, planID string) (*PortfolioView, error)

	GetBalance(ctx context.Context, userID string) (decimal.Decimal, error)
	DepositPresets() []decimal.Decimal
	WithdrawalCap(balance decimal.Decimal) decimal.Decimal
	RequestDeposit(ctx context.Context, userID string, amount decimal.Decimal, reference string) (*Transaction, error)
	RequestWithdrawal(ctx context.Context, userID string, amount decimal.Decimal) (*Transaction, error)
	ResolveTransaction(ctx context.Context, transactionID string, outcome TransactionStatus) (*WalletAccount, error)
	CancelTransaction(ctx context.Context, userID, transactionID string) (*Transaction, error)
	ListTransactions(ctx context.Context, userID string) ([]*Transaction, error)
	ListTransactionsByStatus(ctx context.Context, status TransactionStatus) ([]*Transaction, error)
	VerifyBalance(ctx context.Context, userID string) (stored, computed decimal.Decimal, err error)

	GetOrCreateReferralProfile(ctx context.Context, userID string) (*ReferralProfile, error)
	Attribute(ctx context.Context, userID, referCode string) error
	ReferralStats(ctx context.Context, userID string) (*ReferralStats, error)
}

// APIServer is the transport in front of the engine.
type APIServer interface {
	Start()
	Stop(ctx context.Context) error
}
