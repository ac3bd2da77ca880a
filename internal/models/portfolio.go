package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PortfolioStatus string

const (
	PortfolioActive   PortfolioStatus = "ACTIVE"
	PortfolioExpired  PortfolioStatus = "EXPIRED"
	PortfolioReplaced PortfolioStatus = "REPLACED"
)

// PlanSnapshot is the state of a plan at the moment it was activated.
// Later catalog edits never change it.
type PlanSnapshot struct {
	PlanID           string          `json:"id" gorm:"column:id;size:64;index"`
	Name             string          `json:"name" gorm:"column:name"`
	Price            decimal.Decimal `json:"price" gorm:"column:price;type:numeric(20,8)"`
	Duration         int             `json:"duration" gorm:"column:duration"`
	ReturnPercentage decimal.Decimal `json:"returnPercentage" gorm:"column:return_percentage;type:numeric(20,8)"`
	Description      string          `json:"description" gorm:"column:description"`
	Logo             string          `json:"logo" gorm:"column:logo"`
}

// Portfolio is a user's instance of an activated plan.
type Portfolio struct {
	ID     string `json:"id" gorm:"column:id;primaryKey;size:36"`
	UserID string `json:"userId" gorm:"column:user_id;size:128;not null;index"`
	// Plan is embedded as plan_* columns.
	Plan PlanSnapshot `json:"plan" gorm:"embedded;embeddedPrefix:plan_"`
	// Amount is what the user paid, the plan price at activation time.
	Amount           decimal.Decimal `json:"amount" gorm:"column:amount;type:numeric(20,8);not null"`
	DateOfInvestment time.Time       `json:"dateOfInvestment" gorm:"column:date_of_investment;not null"`
	Status           PortfolioStatus `json:"status" gorm:"column:status;size:16;not null;index"`
	// ClosedAt is set when the portfolio leaves ACTIVE.
	ClosedAt  *time.Time `json:"closedAt,omitempty" gorm:"column:closed_at"`
	CreatedAt time.Time  `json:"createdAt" gorm:"column:created_at"`
	UpdatedAt time.Time  `json:"updatedAt" gorm:"column:updated_at"`
}

// PortfolioView is a portfolio with the fields derived at read time.
// Status is the effective status: an ACTIVE row whose window has closed reads as EXPIRED.
type PortfolioView struct {
	Portfolio
	ElapsedDays    int             `json:"elapsedDays"`
	RemainingDays  int             `json:"remainingDays"`
	ExpiresAt      time.Time       `json:"expiresAt"`
	TodayEarning   decimal.Decimal `json:"todayEarning"`
	TotalEarning   decimal.Decimal `json:"totalEarning"`
	AccruedEarning decimal.Decimal `json:"accruedEarning"`
}

// ActivationPreview tells the caller whether activating would replace a running plan.
type ActivationPreview struct {
	HasConflict   bool           `json:"hasConflict"`
	RemainingDays int            `json:"remainingDays"`
	Plan          *Plan          `json:"plan"`
	Current       *PortfolioView `json:"current,omitempty"`
}
