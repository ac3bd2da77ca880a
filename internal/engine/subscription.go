package engine

import (
	"context"
	"fmt"

	"github.com/core-coin/stakeplan/internal/models"
)

// GetActivePortfolio returns the user's current portfolio, or nil if there is none.
// The returned view reports EXPIRED once the plan's window has closed.
func (e *Engine) GetActivePortfolio(ctx context.Context, userID string) (*models.PortfolioView, error) {
	if err := validUser(userID); err != nil {
		return nil, err
	}
	portfolio, err := e.repo.FindActivePortfolio(ctx, userID)
	if err != nil {
		e.logger.Error("Failed to get active portfolio", "user", userID, "error", err)
		return nil, err
	}
	if portfolio == nil {
		return nil, nil
	}
	return view(portfolio, e.now()), nil
}

// ListPortfolios returns every portfolio the user ever had, newest first.
func (e *Engine) ListPortfolios(ctx context.Context, userID string) ([]*models.PortfolioView, error) {
	if err := validUser(userID); err != nil {
		return nil, err
	}
	portfolios, err := e.repo.ListPortfolios(ctx, userID)
	if err != nil {
		e.logger.Error("Failed to list portfolios", "user", userID, "error", err)
		return nil, err
	}
	now := e.now()
	views := make([]*models.PortfolioView, 0, len(portfolios))
	for _, p := range portfolios {
		views = append(views, view(p, now))
	}
	return views, nil
}

// PreviewActivation reports whether activating planID would replace a plan that still has days left.
// It never writes.
func (e *Engine) PreviewActivation(ctx context.Context, userID, planID string) (*models.ActivationPreview, error) {
	if err := validUser(userID); err != nil {
		return nil, err
	}
	plan, err := e.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	current, err := e.GetActivePortfolio(ctx, userID)
	if err != nil {
		return nil, err
	}

	preview := &models.ActivationPreview{Plan: plan, Current: current}
	if current != nil && current.RemainingDays > 0 {
		preview.HasConflict = true
		preview.RemainingDays = current.RemainingDays
	}
	return preview, nil
}

// ConfirmActivation activates planID for the user, always replacing the current
// portfolio. A current portfolio with days left becomes REPLACED, one without
// becomes EXPIRED. Callers that want to warn the user use PreviewActivation first.
func (e *Engine) ConfirmActivation(ctx context.Context, userID, planID string) (*models.PortfolioView, error) {
	if err := validUser(userID); err != nil {
		return nil, err
	}

	var created *models.Portfolio
	var debit *models.Transaction
	err := e.withUser(ctx, userID, func(tx models.Repository, account *models.WalletAccount) error {
		plan, err := getPlan(ctx, tx, planID)
		if err != nil {
			return err
		}
		now := e.now()

		current, err := tx.FindActivePortfolio(ctx, userID)
		if err != nil {
			return err
		}
		if current != nil {
			status := models.PortfolioExpired
			if view(current, now).RemainingDays > 0 {
				status = models.PortfolioReplaced
			}
			if _, err := tx.ClosePortfolio(ctx, current.ID, status, now); err != nil {
				return err
			}
			e.logger.Info("Portfolio closed", "user", userID, "portfolio", current.ID, "status", status)
		}

		portfolio := &models.Portfolio{
			ID:               e.newID(),
			UserID:           userID,
			Plan:             plan.Snapshot(),
			Amount:           plan.Price,
			DateOfInvestment: now,
			Status:           models.PortfolioActive,
			CreatedAt:        now,
			UpdatedAt:        now,
		}

		if e.policy.DebitWalletOnActivation && plan.Price.IsPositive() {
			if account.Balance.LessThan(plan.Price) {
				return fmt.Errorf("%w: balance %s is below plan price %s",
					models.ErrInsufficientFunds, account.Balance.String(), plan.Price.String())
			}
			ref := "activation:" + portfolio.ID
			debit = &models.Transaction{
				ID:                e.newID(),
				UserID:            userID,
				Type:              models.TransactionWithdrawal,
				Amount:            plan.Price,
				ExternalReference: &ref,
				Status:            models.TransactionConfirmed,
				Note:              "plan activation " + plan.ID,
				CreatedAt:         now,
				ResolvedAt:        &now,
			}
			if err := tx.CreateTransaction(ctx, debit); err != nil {
				return err
			}
			if err := apply(account, debit, now); err != nil {
				return err
			}
			if err := tx.SaveWalletAccount(ctx, account); err != nil {
				return err
			}
		}

		if err := tx.CreatePortfolio(ctx, portfolio); err != nil {
			return err
		}
		created = portfolio
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Plan activated", "user", userID, "plan", planID, "portfolio", created.ID)
	if debit != nil {
		e.notify(models.NotificationTransactionResolved, debit)
	}
	return view(created, e.now()), nil
}
