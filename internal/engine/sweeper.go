package engine

import (
	"context"
	"time"

	"github.com/core-coin/stakeplan/internal/models"
)

const (
	sweepLockName = "portfolio-expiry-sweep"
	sweepLockTTL  = 5 * time.Minute
)

// SweepExpired persists EXPIRED for every ACTIVE portfolio whose window has
// closed. Only the instance holding the sweep lock does any work; others return 0.
func (e *Engine) SweepExpired(ctx context.Context) (int, error) {
	now := e.now()
	acquired, err := e.repo.TryAcquireAppLock(ctx, sweepLockName, e.instanceID, now, now.Add(sweepLockTTL))
	if err != nil {
		return 0, err
	}
	if !acquired {
		e.logger.Debug("Expiry sweep skipped, another instance holds the lock")
		return 0, nil
	}
	defer func() {
		if err := e.repo.ReleaseAppLock(context.Background(), sweepLockName, e.instanceID); err != nil {
			e.logger.Warn("Failed to release sweep lock", "error", err)
		}
	}()

	active, err := e.repo.ListActivePortfolios(ctx)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, p := range active {
		if view(p, now).Status != models.PortfolioExpired {
			continue
		}
		// conditional on ACTIVE, so a concurrent activation wins cleanly
		changed, err := e.repo.ClosePortfolio(ctx, p.ID, models.PortfolioExpired, p.DateOfInvestment.Add(time.Duration(p.Plan.Duration)*day))
		if err != nil {
			return expired, err
		}
		if changed {
			expired++
		}
	}
	if expired > 0 {
		e.logger.Info("Portfolios expired", "count", expired)
	}
	return expired, nil
}
