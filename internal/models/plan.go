package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/core-coin/stakeplan/pkg/validation"
)

// Plan is a purchasable subscription template.
type Plan struct {
	// ID is chosen by the operator in the catalog file (e.g. "gold-30").
	ID string `json:"id" gorm:"column:id;primaryKey;size:64"`
	// Name is the display name of the plan.
	Name string `json:"name" gorm:"column:name;not null"`
	// Price is what activating the plan costs.
	Price decimal.Decimal `json:"price" gorm:"column:price;type:numeric(20,8);not null"`
	// Duration is the length of the plan in days.
	Duration int `json:"duration" gorm:"column:duration;not null"`
	// ReturnPercentage is the total return over the whole duration, in percent.
	ReturnPercentage decimal.Decimal `json:"returnPercentage" gorm:"column:return_percentage;type:numeric(20,8);not null"`
	// Description is free text shown next to the plan.
	Description string `json:"description" gorm:"column:description"`
	// Logo is a URL or asset key for the plan's logo.
	Logo string `json:"logo" gorm:"column:logo"`
	// SortOrder controls catalog ordering; lower comes first.
	SortOrder int       `json:"sortOrder" gorm:"column:sort_order;not null;default:0"`
	CreatedAt time.Time `json:"createdAt" gorm:"column:created_at"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"column:updated_at"`
}

// Validate checks the catalog invariants of a plan.
func (p *Plan) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("%w: plan id is required", ErrValidation)
	}
	if p.Name == "" {
		return fmt.Errorf("%w: plan %s: name is required", ErrValidation, p.ID)
	}
	if p.Price.IsNegative() {
		return fmt.Errorf("%w: plan %s: price must not be negative", ErrValidation, p.ID)
	}
	if !validation.WithinLimit(p.Price) {
		return fmt.Errorf("%w: plan %s: price must be less than %s", ErrValidation, p.ID, validation.MaxAmount.String())
	}
	if p.Duration <= 0 {
		return fmt.Errorf("%w: plan %s: duration must be positive", ErrValidation, p.ID)
	}
	if p.ReturnPercentage.IsNegative() {
		return fmt.Errorf("%w: plan %s: return percentage must not be negative", ErrValidation, p.ID)
	}
	if !validation.WithinLimit(p.ReturnPercentage) {
		return fmt.Errorf("%w: plan %s: return percentage must be less than %s", ErrValidation, p.ID, validation.MaxAmount.String())
	}
	return nil
}

// Snapshot copies the fields a portfolio keeps for its whole lifetime.
func (p *Plan) Snapshot() PlanSnapshot {
	return PlanSnapshot{
		PlanID:           p.ID,
		Name:             p.Name,
		Price:            p.Price,
		Duration:         p.Duration,
		ReturnPercentage: p.ReturnPercentage,
		Description:      p.Description,
		Logo:             p.Logo,
	}
}
