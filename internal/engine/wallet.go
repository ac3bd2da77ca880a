package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/core-coin/stakeplan/internal/models"
	"github.com/core-coin/stakeplan/pkg/validation"
)

// GetBalance returns the user's confirmed balance. Users without an account have zero.
func (e *Engine) GetBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	if err := validUser(userID); err != nil {
		return decimal.Zero, err
	}
	account, err := e.repo.FindWalletAccount(ctx, userID)
	if err != nil {
		e.logger.Error("Failed to get wallet account", "user", userID, "error", err)
		return decimal.Zero, err
	}
	if account == nil {
		return decimal.Zero, nil
	}
	return account.Balance, nil
}

// DepositPresets are the quick-pick amounts offered by clients.
func (e *Engine) DepositPresets() []decimal.Decimal {
	return e.policy.DepositPresets
}

// WithdrawalCap is the largest withdrawal a user with balance may request.
func (e *Engine) WithdrawalCap(balance decimal.Decimal) decimal.Decimal {
	return balance.Mul(e.policy.WithdrawalCapRatio)
}

// RequestDeposit records a PENDING deposit. The balance only changes once the
// deposit is confirmed. A reference can be used exactly once.
func (e *Engine) RequestDeposit(ctx context.Context, userID string, amount decimal.Decimal, reference string) (*models.Transaction, error) {
	if err := validUser(userID); err != nil {
		return nil, err
	}
	if err := validation.ValidateAmount(amount); err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrInvalidAmount, err)
	}
	reference = validation.NormalizeReference(reference)
	if err := validation.ValidateReference(reference); err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrInvalidReference, err)
	}

	var created *models.Transaction
	err := e.withUser(ctx, userID, func(tx models.Repository, _ *models.WalletAccount) error {
		existing, err := tx.FindTransactionByReference(ctx, reference)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: %s", models.ErrDuplicateReference, reference)
		}

		created = &models.Transaction{
			ID:                e.newID(),
			UserID:            userID,
			Type:              models.TransactionDeposit,
			Amount:            amount,
			ExternalReference: &reference,
			Status:            models.TransactionPending,
			CreatedAt:         e.now(),
		}
		if err := tx.CreateTransaction(ctx, created); err != nil {
			// another user raced us to the same reference
			if errors.Is(err, models.ErrConflict) {
				return fmt.Errorf("%w: %s", models.ErrDuplicateReference, reference)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Deposit requested", "user", userID, "transaction", created.ID, "amount", amount.String())
	e.notify(models.NotificationTransactionCreated, created)
	return created, nil
}

// RequestWithdrawal records a PENDING withdrawal of at most WithdrawalCap(balance).
func (e *Engine) RequestWithdrawal(ctx context.Context, userID string, amount decimal.Decimal) (*models.Transaction, error) {
	if err := validUser(userID); err != nil {
		return nil, err
	}
	if err := validation.ValidateAmount(amount); err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrInvalidAmount, err)
	}

	var created *models.Transaction
	err := e.withUser(ctx, userID, func(tx models.Repository, account *models.WalletAccount) error {
		limit := e.WithdrawalCap(account.Balance)
		if amount.GreaterThan(limit) {
			return fmt.Errorf("%w: requested %s exceeds withdrawal limit %s",
				models.ErrInsufficientFunds, amount.String(), limit.String())
		}

		created = &models.Transaction{
			ID:        e.newID(),
			UserID:    userID,
			Type:      models.TransactionWithdrawal,
			Amount:    amount,
			Status:    models.TransactionPending,
			CreatedAt: e.now(),
		}
		return tx.CreateTransaction(ctx, created)
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Withdrawal requested", "user", userID, "transaction", created.ID, "amount", amount.String())
	e.notify(models.NotificationTransactionCreated, created)
	return created, nil
}

// ResolveTransaction settles a pending transaction. It is the only place a
// balance moves for deposits and withdrawals. Resolving an already resolved
// transaction changes nothing and returns the current account.
func (e *Engine) ResolveTransaction(ctx context.Context, transactionID string, outcome models.TransactionStatus) (*models.WalletAccount, error) {
	if _, err := models.ParseOutcome(string(outcome)); err != nil {
		return nil, err
	}
	pending, err := e.getTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	var result *models.WalletAccount
	var resolved *models.Transaction
	err = e.withUser(ctx, pending.UserID, func(tx models.Repository, account *models.WalletAccount) error {
		current, err := tx.GetTransaction(ctx, transactionID)
		if err != nil {
			return err
		}
		result = account
		if current.IsResolved() {
			return nil
		}

		now := e.now()
		if outcome == models.TransactionConfirmed {
			// the balance may have moved since the request was made
			if err := apply(account, current, now); err != nil {
				return err
			}
			if err := tx.SaveWalletAccount(ctx, account); err != nil {
				return err
			}
		}
		current.Status = outcome
		current.ResolvedAt = &now
		if err := tx.UpdateTransaction(ctx, current); err != nil {
			return err
		}
		resolved = current
		return nil
	})
	if err != nil {
		if !errors.Is(err, models.ErrInsufficientFunds) && !errors.Is(err, models.ErrBalanceLimit) {
			e.logger.Error("Failed to resolve transaction", "transaction", transactionID, "error", err)
		}
		return nil, err
	}

	if resolved != nil {
		e.logger.Info("Transaction resolved", "transaction", transactionID, "status", outcome,
			"user", resolved.UserID, "balance", result.Balance.String())
		e.notify(models.NotificationTransactionResolved, resolved)
	}
	return result, nil
}

// CancelTransaction lets a user reject one of their own pending transactions.
func (e *Engine) CancelTransaction(ctx context.Context, userID, transactionID string) (*models.Transaction, error) {
	if err := validUser(userID); err != nil {
		return nil, err
	}
	pending, err := e.getTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if pending.UserID != userID {
		return nil, fmt.Errorf("%w: %s", models.ErrTransactionNotFound, transactionID)
	}

	var result *models.Transaction
	changed := false
	err = e.withUser(ctx, userID, func(tx models.Repository, _ *models.WalletAccount) error {
		current, err := tx.GetTransaction(ctx, transactionID)
		if err != nil {
			return err
		}
		result = current
		if current.IsResolved() {
			return nil
		}
		now := e.now()
		current.Status = models.TransactionRejected
		current.Note = "cancelled by user"
		current.ResolvedAt = &now
		changed = true
		return tx.UpdateTransaction(ctx, current)
	})
	if err != nil {
		return nil, err
	}

	if changed {
		e.logger.Info("Transaction cancelled", "user", userID, "transaction", transactionID)
		e.notify(models.NotificationTransactionResolved, result)
	}
	return result, nil
}

func (e *Engine) ListTransactions(ctx context.Context, userID string) ([]*models.Transaction, error) {
	if err := validUser(userID); err != nil {
		return nil, err
	}
	return e.repo.ListTransactions(ctx, userID)
}

// ListTransactionsByStatus is the operator queue, oldest first.
func (e *Engine) ListTransactionsByStatus(ctx context.Context, status models.TransactionStatus) ([]*models.Transaction, error) {
	switch status {
	case models.TransactionPending, models.TransactionConfirmed, models.TransactionRejected:
	default:
		return nil, fmt.Errorf("%w: unknown transaction status %q", models.ErrValidation, status)
	}
	return e.repo.ListTransactionsByStatus(ctx, status)
}

// VerifyBalance recomputes the balance from confirmed transactions and compares
// it with the stored one.
func (e *Engine) VerifyBalance(ctx context.Context, userID string) (stored, computed decimal.Decimal, err error) {
	if err := validUser(userID); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	stored, err = e.GetBalance(ctx, userID)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	computed, err = e.repo.SumConfirmed(ctx, userID)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if !stored.Equal(computed) {
		e.logger.Error("Balance drift detected", "user", userID, "stored", stored.String(), "computed", computed.String())
		return stored, computed, fmt.Errorf("%w: user %s stored %s computed %s",
			models.ErrBalanceDrift, userID, stored.String(), computed.String())
	}
	return stored, computed, nil
}

func (e *Engine) getTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	tx, err := e.repo.GetTransaction(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", models.ErrTransactionNotFound, id)
		}
		return nil, err
	}
	return tx, nil
}

// apply adds a confirmed transaction to the account. It refuses to take the
// balance below zero or past validation.MaxAmount.
func apply(account *models.WalletAccount, tx *models.Transaction, now time.Time) error {
	next := account.Balance.Add(tx.Signed())
	if next.IsNegative() {
		return fmt.Errorf("%w: balance %s cannot cover %s",
			models.ErrInsufficientFunds, account.Balance.String(), tx.Amount.String())
	}
	if !validation.WithinLimit(next) {
		return fmt.Errorf("%w: balance %s plus %s reaches %s",
			models.ErrBalanceLimit, account.Balance.String(), tx.Amount.String(), validation.MaxAmount.String())
	}
	account.Balance = next
	account.Version++
	account.UpdatedAt = now
	return nil
}
