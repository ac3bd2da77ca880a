package models

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the engine wraps exactly one of these.
var (
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInternal          = errors.New("internal error")
)

var (
	ErrInvalidAmount    = fmt.Errorf("%w: amount must be greater than zero", ErrValidation)
	ErrInvalidReference = fmt.Errorf("%w: external reference is required", ErrValidation)
	ErrInvalidOutcome   = fmt.Errorf("%w: outcome must be CONFIRMED or REJECTED", ErrValidation)
	ErrInvalidUser      = fmt.Errorf("%w: user id is required", ErrValidation)
	ErrSelfReferral     = fmt.Errorf("%w: users cannot refer themselves", ErrValidation)
	ErrBalanceLimit     = fmt.Errorf("%w: balance would exceed the storable limit", ErrValidation)

	ErrPlanNotFound        = fmt.Errorf("plan %w", ErrNotFound)
	ErrTransactionNotFound = fmt.Errorf("transaction %w", ErrNotFound)
	ErrReferrerNotFound    = fmt.Errorf("referrer %w", ErrNotFound)

	ErrDuplicateReference = fmt.Errorf("%w: external reference already used", ErrConflict)
	ErrAlreadyAttributed  = fmt.Errorf("%w: referral already attributed", ErrConflict)
	ErrActivePlanExists   = fmt.Errorf("%w: an active plan with remaining days exists", ErrConflict)

	ErrBalanceDrift = fmt.Errorf("%w: stored balance does not match confirmed transactions", ErrInternal)
)
