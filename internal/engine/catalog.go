package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/core-coin/stakeplan/internal/models"
)

// ListPlans returns the catalog in display order.
func (e *Engine) ListPlans(ctx context.Context) ([]*models.Plan, error) {
	plans, err := e.repo.ListPlans(ctx)
	if err != nil {
		e.logger.Error("Failed to list plans", "error", err)
		return nil, err
	}
	return plans, nil
}

func (e *Engine) GetPlan(ctx context.Context, id string) (*models.Plan, error) {
	return getPlan(ctx, e.repo, id)
}

func getPlan(ctx context.Context, repo models.Repository, id string) (*models.Plan, error) {
	plan, err := repo.GetPlan(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", models.ErrPlanNotFound, id)
		}
		return nil, err
	}
	return plan, nil
}
