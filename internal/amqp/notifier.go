package amqp

import (
	"context"

	"smartledger/internal/log"
)

// Notifier publishes ledger changes to the broker. When publishing fails the
// change is still delivered locally so this instance's subscribers see it.
type Notifier struct {
	client *Client
	local  func(ctx context.Context, userID string) error
	logger *log.Logger
}

func NewNotifier(client *Client, local func(ctx context.Context, userID string) error, logger *log.Logger) *Notifier {
	if logger == nil {
		logger = log.Discard()
	}
	return &Notifier{client: client, local: local, logger: logger.WithComponent(log.ComponentAMQP)}
}

func (n *Notifier) LedgerChanged(ctx context.Context, userID, reason string) {
	err := n.client.PublishLedgerChanged(ctx, userID, reason)
	if err == nil {
		return
	}
	n.logger.WarnContext(ctx, "Publishing ledger change failed, notifying locally", "error", err, log.FieldUserID, userID)
	if n.local != nil {
		if err := n.local(ctx, userID); err != nil {
			n.logger.ErrorContext(ctx, "Local notification failed", "error", err, log.FieldUserID, userID)
		}
	}
}
