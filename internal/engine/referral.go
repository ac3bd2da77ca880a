package engine

import (
	"context"
	"fmt"

	"github.com/core-coin/stakeplan/internal/models"
	"github.com/core-coin/stakeplan/pkg/validation"
)

// maxReferCodeAttempts bounds the collision retries when issuing a code.
const maxReferCodeAttempts = 5

// GetOrCreateReferralProfile returns the user's profile, issuing a code on first use.
func (e *Engine) GetOrCreateReferralProfile(ctx context.Context, userID string) (*models.ReferralProfile, error) {
	if err := validUser(userID); err != nil {
		return nil, err
	}
	existing, err := e.repo.FindReferralProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	var profile *models.ReferralProfile
	err = e.withUser(ctx, userID, func(tx models.Repository, _ *models.WalletAccount) error {
		profile, err = e.ensureReferralProfile(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// Attribute links userID to the owner of referCode. It succeeds at most once per user.
func (e *Engine) Attribute(ctx context.Context, userID, referCode string) error {
	if err := validUser(userID); err != nil {
		return err
	}
	code := validation.NormalizeReferCode(referCode)

	err := e.withUser(ctx, userID, func(tx models.Repository, _ *models.WalletAccount) error {
		profile, err := e.ensureReferralProfile(ctx, tx, userID)
		if err != nil {
			return err
		}
		if profile.ReferredBy != nil {
			return models.ErrAlreadyAttributed
		}

		if err := validation.ValidateReferCode(code); err != nil {
			return fmt.Errorf("%w: %s", models.ErrReferrerNotFound, err)
		}
		referrer, err := tx.FindReferralProfileByCode(ctx, code)
		if err != nil {
			return err
		}
		if referrer == nil {
			return fmt.Errorf("%w: code %s", models.ErrReferrerNotFound, code)
		}
		if referrer.UserID == userID {
			return models.ErrSelfReferral
		}

		now := e.now()
		profile.ReferredBy = &code
		profile.AttributedAt = &now
		return tx.UpdateReferralProfile(ctx, profile)
	})
	if err != nil {
		return err
	}

	e.logger.Info("Referral attributed", "user", userID, "code", code)
	return nil
}

// ReferralStats returns the user's profile and how many users they referred.
func (e *Engine) ReferralStats(ctx context.Context, userID string) (*models.ReferralStats, error) {
	profile, err := e.GetOrCreateReferralProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	count, err := e.repo.CountReferrals(ctx, profile.ReferCode)
	if err != nil {
		return nil, err
	}
	return &models.ReferralStats{Profile: profile, ReferredCount: count}, nil
}

func (e *Engine) ensureReferralProfile(ctx context.Context, tx models.Repository, userID string) (*models.ReferralProfile, error) {
	profile, err := tx.FindReferralProfile(ctx, userID)
	if err != nil || profile != nil {
		return profile, err
	}

	for attempt := 0; attempt < maxReferCodeAttempts; attempt++ {
		code := validation.NormalizeReferCode(e.newReferCode())
		taken, err := tx.FindReferralProfileByCode(ctx, code)
		if err != nil {
			return nil, err
		}
		if taken != nil {
			e.logger.Debug("Referral code collision", "code", code, "attempt", attempt+1)
			continue
		}

		profile = &models.ReferralProfile{
			UserID:    userID,
			ReferCode: code,
			CreatedAt: e.now(),
		}
		if err := tx.CreateReferralProfile(ctx, profile); err != nil {
			return nil, err
		}
		e.logger.Info("Referral code issued", "user", userID, "code", code)
		return profile, nil
	}
	return nil, fmt.Errorf("%w: no free referral code after %d attempts", models.ErrInternal, maxReferCodeAttempts)
}
