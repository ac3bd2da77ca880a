package notificator

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/core-coin/stakeplan/internal/models"
	"github.com/core-coin/stakeplan/pkg/logger"
)

const sendTimeout = 10 * time.Second

// Channel delivers a notification to operators over one medium.
type Channel interface {
	Name() string
	Send(ctx context.Context, notification *models.Notification) error
}

// Notificator fans a notification out to every configured channel.
// Delivery is best effort: failures are logged and never reach the caller.
type Notificator struct {
	logger   *logger.Logger
	channels []Channel
}

func NewNotificator(logger *logger.Logger, channels ...Channel) *Notificator {
	n := &Notificator{logger: logger}
	for _, ch := range channels {
		if ch != nil {
			n.channels = append(n.channels, ch)
		}
	}
	return n
}

// Enabled reports whether at least one channel is configured.
func (n *Notificator) Enabled() bool {
	return len(n.channels) > 0
}

// safeCall runs a function with panic recovery (synchronous, no goroutine spawning)
func (n *Notificator) safeCall(fn func(), context string) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("Function panicked",
				"context", context,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	fn()
}

// SendNotification delivers to each channel in turn. The engine already calls
// it from its own goroutine.
func (n *Notificator) SendNotification(notification *models.Notification) {
	for _, ch := range n.channels {
		n.safeCall(func() {
			ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
			defer cancel()
			if err := ch.Send(ctx, notification); err != nil {
				n.logger.Error("Failed to send notification",
					"channel", ch.Name(),
					"kind", notification.Kind,
					"transaction", notification.Transaction.ID,
					"error", err)
				return
			}
			n.logger.Debug("Notification sent", "channel", ch.Name(), "kind", notification.Kind)
		}, ch.Name()+"Notification")
	}
}
