package interfaces

import (
	"context"

	"github.com/sheikh-saqib/transaction-approval-ledger/internal/models/events"
)

// Notifier is fire-and-forget: it never reports failure and never blocks
// the state transition that produced the event.
//
//go:generate mockgen -destination=mocks/mock_notifier.go -package=mocks -source=notifier.go Notifier
type Notifier interface {
	NotifyAccount(ctx context.Context, accountID string, event events.Event)
	NotifyAdmins(ctx context.Context, event events.Event)
}
