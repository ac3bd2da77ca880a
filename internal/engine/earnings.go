package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/core-coin/stakeplan/internal/models"
)

const day = 24 * time.Hour

var hundred = decimal.NewFromInt(100)

// EarningsBreakdown is what a portfolio yields.
type EarningsBreakdown struct {
	// Total is the full return over the plan's duration.
	Total decimal.Decimal
	// Today is the return credited for the current day, zero once the plan has ended.
	Today decimal.Decimal
	// Accrued is the part of Total earned over the elapsed days.
	Accrued decimal.Decimal
}

// Earnings is the return formula: the total return is amount × returnPercentage / 100,
// accrued linearly over duration days.
func Earnings(amount, returnPercentage decimal.Decimal, duration, elapsedDays int) EarningsBreakdown {
	total := amount.Mul(returnPercentage).Div(hundred)
	if duration <= 0 {
		return EarningsBreakdown{Total: total, Today: decimal.Zero, Accrued: total}
	}
	if elapsedDays < 0 {
		elapsedDays = 0
	}

	days := decimal.NewFromInt(int64(duration))
	today := decimal.Zero
	counted := elapsedDays
	if elapsedDays < duration {
		today = total.Div(days)
	} else {
		counted = duration
	}
	// multiply before dividing so whole-period results stay exact
	accrued := total.Mul(decimal.NewFromInt(int64(counted))).Div(days)

	return EarningsBreakdown{Total: total, Today: today, Accrued: accrued}
}

// ElapsedDays counts whole days since start. Time before start counts as zero.
func ElapsedDays(start, now time.Time) int {
	if now.Before(start) {
		return 0
	}
	return int(now.Sub(start) / day)
}

// view derives the read-time fields of a portfolio. A row still marked ACTIVE
// whose window has closed reads as EXPIRED; nothing is written back.
func view(p *models.Portfolio, now time.Time) *models.PortfolioView {
	end := now
	if p.ClosedAt != nil && p.ClosedAt.Before(now) {
		end = *p.ClosedAt
	}
	elapsed := ElapsedDays(p.DateOfInvestment, end)
	duration := p.Plan.Duration

	v := &models.PortfolioView{
		Portfolio:   *p,
		ElapsedDays: elapsed,
		ExpiresAt:   p.DateOfInvestment.Add(time.Duration(duration) * day),
	}

	remaining := duration - elapsed
	if remaining < 0 {
		remaining = 0
	}
	if p.Status == models.PortfolioActive && remaining == 0 {
		v.Status = models.PortfolioExpired
	}

	earnings := Earnings(p.Amount, p.Plan.ReturnPercentage, duration, elapsed)
	v.TotalEarning = earnings.Total
	v.AccruedEarning = earnings.Accrued
	if v.Status == models.PortfolioActive {
		v.RemainingDays = remaining
		v.TodayEarning = earnings.Today
	} else {
		v.TodayEarning = decimal.Zero
	}
	return v
}
