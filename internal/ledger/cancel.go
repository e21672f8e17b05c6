package ledger

import (
	"context"

	"go.uber.org/zap"

	"github.com/sheikh-saqib/transaction-approval-ledger/internal/models"
	"github.com/sheikh-saqib/transaction-approval-ledger/internal/models/events"
)

// CancelTransaction removes a pending transaction owned by accountID.
// Removal goes through the same conditional write as a decision, so a
// cancellation racing an approval or decline either wins outright or fails
// with ErrNotPending.
func (s *Service) CancelTransaction(ctx context.Context, accountID, ref string) error {
	// Someone else's transaction reads as missing
	tx, err := s.store.GetTransaction(ctx, ref)
	if err != nil {
		return err
	}
	if tx.AccountID != accountID {
		return models.ErrTransactionNotFound
	}
	if tx.Status != models.StatusPending {
		return models.ErrNotPending
	}

	// Delete only while still pending
	if err := s.store.DeletePending(ctx, tx.ID, accountID); err != nil {
		return err
	}

	s.logger.Info("transaction cancelled",
		zap.String("transaction_id", tx.ID),
		zap.String("transaction_ref", tx.TransactionID),
		zap.String("account_id", accountID),
	)

	s.notifier.NotifyAdmins(ctx, events.New(events.KindTransactionCancelled, s.now(), events.TransactionCancelled{
		TransactionID: tx.ID,
		AccountID:     accountID,
	}))
	return nil
}
