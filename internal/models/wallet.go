package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionDeposit    TransactionType = "DEPOSIT"
	TransactionWithdrawal TransactionType = "WITHDRAWAL"
)

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "PENDING"
	TransactionConfirmed TransactionStatus = "CONFIRMED"
	TransactionRejected  TransactionStatus = "REJECTED"
)

// ParseOutcome accepts the two statuses a pending transaction can be resolved to.
func ParseOutcome(s string) (TransactionStatus, error) {
	switch TransactionStatus(s) {
	case TransactionConfirmed, TransactionRejected:
		return TransactionStatus(s), nil
	}
	return "", ErrInvalidOutcome
}

// WalletAccount holds a user's balance. Balance only moves when a transaction is confirmed.
type WalletAccount struct {
	UserID  string          `json:"userId" gorm:"column:user_id;primaryKey;size:128"`
	Balance decimal.Decimal `json:"balance" gorm:"column:balance;type:numeric(20,8);not null"`
	// Version is incremented every time a confirmed transaction is applied.
	Version   int64     `json:"version" gorm:"column:version;not null;default:0"`
	CreatedAt time.Time `json:"createdAt" gorm:"column:created_at"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"column:updated_at"`
}

// Transaction is a deposit or withdrawal request and its resolution.
type Transaction struct {
	ID     string          `json:"id" gorm:"column:id;primaryKey;size:36"`
	UserID string          `json:"userId" gorm:"column:user_id;size:128;not null;index"`
	Type   TransactionType `json:"type" gorm:"column:type;size:16;not null"`
	Amount decimal.Decimal `json:"amount" gorm:"column:amount;type:numeric(20,8);not null"`
	// ExternalReference is the payment id for deposits. Unique when present.
	ExternalReference *string           `json:"externalReference,omitempty" gorm:"column:external_reference;size:191;uniqueIndex"`
	Status            TransactionStatus `json:"status" gorm:"column:status;size:16;not null;index"`
	Note              string            `json:"note,omitempty" gorm:"column:note"`
	CreatedAt         time.Time         `json:"createdAt" gorm:"column:created_at"`
	ResolvedAt        *time.Time        `json:"resolvedAt,omitempty" gorm:"column:resolved_at"`
}

// Signed returns the amount with the sign it has on the balance once confirmed.
func (t *Transaction) Signed() decimal.Decimal {
	if t.Type == TransactionWithdrawal {
		return t.Amount.Neg()
	}
	return t.Amount
}

func (t *Transaction) IsResolved() bool {
	return t.Status != TransactionPending
}
