package services

import (
	"context"

	"smartledger/internal/live"
	"smartledger/internal/log"
)

// ChangeNotifier is told after every successful write to a user's ledger.
type ChangeNotifier interface {
	LedgerChanged(ctx context.Context, userID, reason string)
}

// HubNotifier delivers changes to the in-process hub only.
type HubNotifier struct {
	hub    *live.Hub
	logger *log.Logger
}

func NewHubNotifier(hub *live.Hub, logger *log.Logger) *HubNotifier {
	if logger == nil {
		logger = log.Discard()
	}
	return &HubNotifier{hub: hub, logger: logger.WithComponent(log.ComponentLive)}
}

func (n *HubNotifier) LedgerChanged(ctx context.Context, userID, reason string) {
	if err := n.hub.Notify(ctx, userID); err != nil {
		n.logger.ErrorContext(ctx, "Failed to notify subscribers", "error", err, log.FieldUserID, userID, "reason", reason)
	}
}
