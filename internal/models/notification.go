package models

import "fmt"

type NotificationKind string

const (
	NotificationTransactionCreated  NotificationKind = "transaction_created"
	NotificationTransactionResolved NotificationKind = "transaction_resolved"
)

// Notification is what operators are told about ledger activity.
type Notification struct {
	Kind        NotificationKind `json:"kind"`
	Transaction Transaction      `json:"transaction"`
}

func (n *Notification) String() string {
	tx := n.Transaction
	switch n.Kind {
	case NotificationTransactionCreated:
		return fmt.Sprintf("New %s request %s from user %s: %s (awaiting settlement)",
			tx.Type, tx.ID, tx.UserID, tx.Amount.StringFixed(2))
	case NotificationTransactionResolved:
		return fmt.Sprintf("%s %s of user %s for %s is now %s",
			tx.Type, tx.ID, tx.UserID, tx.Amount.StringFixed(2), tx.Status)
	}
	return fmt.Sprintf("%s: transaction %s", n.Kind, tx.ID)
}
