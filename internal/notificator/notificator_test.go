package notificator

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"sync"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/core-coin/stakeplan/internal/models"
	"github.com/core-coin/stakeplan/pkg/logger"
)

type fakeChannel struct {
	name string
	err  error
	mu   sync.Mutex
	got  []*models.Notification
}

func (f *fakeChannel) Name() string { return f.name }

func (f *fakeChannel) Send(_ context.Context, n *models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, n)
	return f.err
}

type panickingChannel struct{}

func (panickingChannel) Name() string { return "broken" }

func (panickingChannel) Send(context.Context, *models.Notification) error { panic("boom") }

func sampleNotification() *models.Notification {
	return &models.Notification{
		Kind: models.NotificationTransactionCreated,
		Transaction: models.Transaction{
			ID:     "tx-1",
			UserID: "alice",
			Type:   models.TransactionDeposit,
			Amount: decimal.NewFromInt(250),
			Status: models.TransactionPending,
		},
	}
}

func TestNotificator_FansOutAndSurvivesFailures(t *testing.T) {
	failing := &fakeChannel{name: "failing", err: errors.New("smtp down")}
	ok := &fakeChannel{name: "ok"}
	n := NewNotificator(logger.NewNop(), failing, panickingChannel{}, nil, ok)
	assert.True(t, n.Enabled())

	n.SendNotification(sampleNotification())

	assert.Len(t, failing.got, 1)
	require.Len(t, ok.got, 1, "later channels still run after a failure or panic")
	assert.Equal(t, "tx-1", ok.got[0].Transaction.ID)
}

func TestNotificator_NoChannels(t *testing.T) {
	n := NewNotificator(logger.NewNop())
	assert.False(t, n.Enabled())
	n.SendNotification(sampleNotification())
}

func TestEmailNotificator_Send(t *testing.T) {
	e := NewEmailNotificator(logger.NewNop(), "smtp.example.com", 587, "user", "secret", "ledger@example.com", "ops@example.com")

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg string
	e.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, string(msg)
		return nil
	}

	require.NoError(t, e.Send(context.Background(), sampleNotification()))
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, "ledger@example.com", gotFrom)
	assert.Equal(t, []string{"ops@example.com"}, gotTo)
	assert.Contains(t, gotMsg, "Subject: Pending DEPOSIT tx-1\r\n")
	assert.Contains(t, gotMsg, "250.00")

	e.sendMail = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("refused") }
	assert.Error(t, e.Send(context.Background(), sampleNotification()))
}

func TestTelegramNotificator_Send(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	var chatID, text string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		chatID = r.FormValue("chat_id")
		text = r.FormValue("text")
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"}}}`))
	}))
	defer srv.Close()

	tg, err := NewTelegramNotificator(logger.NewNop(), "123:abc", "42", bot.WithServerURL(srv.URL), bot.WithSkipGetMe())
	require.NoError(t, err)

	require.NoError(t, tg.Send(context.Background(), sampleNotification()))

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, paths)
	assert.True(t, strings.HasSuffix(paths[len(paths)-1], "/sendMessage"))
	assert.Equal(t, "42", chatID)
	assert.Contains(t, text, "tx-1")
}
