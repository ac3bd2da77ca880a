package notificator

import (
	"context"
	"fmt"
	"net/smtp"
	"strconv"

	"github.com/core-coin/stakeplan/internal/models"
	"github.com/core-coin/stakeplan/pkg/logger"
)

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailNotificator mails notifications to the operators' address.
type EmailNotificator struct {
	logger *logger.Logger

	SMTPHost   string
	SMTPPort   int
	SMTPSender string
	To         string

	SMTPAuth smtp.Auth

	sendMail sendMailFunc
}

func NewEmailNotificator(logger *logger.Logger, SMTPHost string, SMTPPort int, SMTPUser string, SMTPPassword string, SMTPSender string, to string) *EmailNotificator {
	var auth smtp.Auth
	if SMTPUser != "" {
		auth = smtp.PlainAuth(
			"",
			SMTPUser,
			SMTPPassword,
			SMTPHost,
		)
	}

	return &EmailNotificator{
		logger:     logger,
		SMTPAuth:   auth,
		SMTPHost:   SMTPHost,
		SMTPPort:   SMTPPort,
		SMTPSender: SMTPSender,
		To:         to,
		sendMail:   smtp.SendMail,
	}
}

func (e *EmailNotificator) Name() string { return "email" }

// Send ignores ctx; net/smtp has no context support.
func (e *EmailNotificator) Send(_ context.Context, notification *models.Notification) error {
	addr := fmt.Sprintf("%s:%s", e.SMTPHost, strconv.Itoa(e.SMTPPort))
	msg := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		e.SMTPSender,
		e.To,
		subject(notification),
		notification.String(),
	)
	if err := e.sendMail(addr, e.SMTPAuth, e.SMTPSender, []string{e.To}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func subject(n *models.Notification) string {
	tx := n.Transaction
	switch n.Kind {
	case models.NotificationTransactionCreated:
		return fmt.Sprintf("Pending %s %s", tx.Type, tx.ID)
	case models.NotificationTransactionResolved:
		return fmt.Sprintf("%s %s %s", tx.Type, tx.ID, tx.Status)
	}
	return "Ledger notification"
}
