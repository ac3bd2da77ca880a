package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"

	"github.com/core-coin/stakeplan/internal/models"
	"github.com/core-coin/stakeplan/pkg/logger"
)

// Policy holds the business switches of the ledger.
type Policy struct {
	// WithdrawalCapRatio is the share of the current balance a single withdrawal may request.
	WithdrawalCapRatio decimal.Decimal
	// DebitWalletOnActivation charges the plan price to the wallet when a plan is activated.
	DebitWalletOnActivation bool
	DepositPresets          []decimal.Decimal
	// ExpirySweepSchedule is a cron spec. Empty disables the sweeper.
	ExpirySweepSchedule string
}

// DefaultPolicy caps withdrawals at half the balance and never debits on activation.
func DefaultPolicy() Policy {
	return Policy{
		WithdrawalCapRatio: decimal.NewFromFloat(0.5),
	}
}

type Option func(*Engine)

// WithClock replaces time.Now. Used by tests to move through a plan's lifetime.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithReferCodeGenerator replaces the referral code source.
func WithReferCodeGenerator(gen func() string) Option {
	return func(e *Engine) { e.newReferCode = gen }
}

// Engine is the ledger and subscription engine. It owns every state
// transition on plans, portfolios, wallets and referrals.
type Engine struct {
	logger *logger.Logger
	policy Policy

	repo        models.Repository
	locker      models.Locker
	notificator models.NotificationService

	now          func() time.Time
	newID        func() string
	newReferCode func() string
	instanceID   string

	cron *cron.Cron
}

var _ models.EngineI = (*Engine)(nil)

// NewEngine creates a new Engine instance. notificator may be nil.
func NewEngine(
	repo models.Repository,
	locker models.Locker,
	notificator models.NotificationService,
	logger *logger.Logger,
	policy Policy,
	opts ...Option,
) *Engine {
	e := &Engine{
		logger:       logger,
		policy:       policy,
		repo:         repo,
		locker:       locker,
		notificator:  notificator,
		now:          time.Now,
		newID:        uuid.NewString,
		newReferCode: randomReferCode,
		instanceID:   uuid.NewString(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start starts the expiry sweeper if a schedule is configured.
func (e *Engine) Start() error {
	if e.policy.ExpirySweepSchedule == "" {
		e.logger.Info("Expiry sweeper disabled")
		return nil
	}
	e.cron = cron.New()
	_, err := e.cron.AddFunc(e.policy.ExpirySweepSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		n, err := e.SweepExpired(ctx)
		if err != nil {
			e.logger.Error("Failed to sweep expired portfolios", "error", err)
			return
		}
		e.logger.Debug("Expired portfolios swept", "count", n)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule expiry sweeper: %w", err)
	}
	e.cron.Start()
	e.logger.Info("Expiry sweeper started", "schedule", e.policy.ExpirySweepSchedule)
	return nil
}

// Stop waits for a running sweep to finish.
func (e *Engine) Stop() {
	if e.cron != nil {
		<-e.cron.Stop().Done()
	}
}

// withUser runs fn under the user's lock inside a database transaction with
// the user's wallet row locked. Everything that mutates a user's state goes
// through here.
func (e *Engine) withUser(ctx context.Context, userID string, fn func(tx models.Repository, account *models.WalletAccount) error) error {
	unlock, err := e.locker.Lock(ctx, "user:"+userID)
	if err != nil {
		return fmt.Errorf("%w: failed to lock user %s: %w", models.ErrInternal, userID, err)
	}
	defer unlock()

	return e.repo.Transaction(ctx, func(tx models.Repository) error {
		account, err := tx.LockWalletAccount(ctx, userID)
		if err != nil {
			return err
		}
		return fn(tx, account)
	})
}

func (e *Engine) notify(kind models.NotificationKind, tx *models.Transaction) {
	if e.notificator == nil {
		return
	}
	notification := &models.Notification{Kind: kind, Transaction: *tx}
	go e.notificator.SendNotification(notification)
}

func validUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return models.ErrInvalidUser
	}
	return nil
}

func randomReferCode() string {
	id := uuid.New()
	return strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:8])
}
