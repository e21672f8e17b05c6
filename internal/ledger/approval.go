package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/transaction-approval-ledger/internal/models"
	"github.com/sheikh-saqib/transaction-approval-ledger/internal/models/events"
)

// ProcessRequest is an admin decision on a pending transaction. Ref is
// either the record id or the human-readable transactionId.
type ProcessRequest struct {
	Ref     string
	Action  models.Action
	AdminID string
	Comment string
}

// ProcessResult is the finalized transaction and the owner's balance after it.
type ProcessResult struct {
	Transaction models.Transaction
	UserBalance decimal.Decimal
	// RecipientCredited is false for approved transfers whose recipient was
	// missing, frozen or inactive: the sender is debited regardless.
	RecipientCredited bool
}

// ProcessTransaction moves a pending transaction to approved or declined.
// The status flip and every balance change it implies are committed by the
// store as one conditional write, so of several racing decisions (or a
// decision racing a cancellation) exactly one wins.
func (s *Service) ProcessTransaction(ctx context.Context, req ProcessRequest) (ProcessResult, error) {
	if !req.Action.Valid() {
		return ProcessResult{}, models.Invalid("action", "must be approve or decline")
	}

	// Only an active admin may decide
	admin, err := s.requireAdmin(ctx, req.AdminID)
	if err != nil {
		return ProcessResult{}, err
	}

	// Load the transaction by either reference and reject finalized ones early
	tx, err := s.store.GetTransaction(ctx, req.Ref)
	if err != nil {
		return ProcessResult{}, err
	}
	if tx.Status != models.StatusPending {
		return ProcessResult{}, models.ErrAlreadyProcessed
	}

	// A frozen owner blocks both actions
	owner, err := s.store.GetAccount(ctx, tx.AccountID)
	if err != nil {
		return ProcessResult{}, fmt.Errorf("load owner: %w", err)
	}
	if owner.IsFrozen {
		return ProcessResult{}, models.ErrAccountFrozen
	}

	action := models.AdminAction{
		AdminID:    admin.ID,
		ActionDate: s.now(),
		Comment:    strings.TrimSpace(req.Comment),
	}

	var result ProcessResult
	if req.Action == models.ActionDecline {
		result, err = s.decline(ctx, tx, action)
	} else {
		result, err = s.approve(ctx, tx, action)
	}
	if errors.Is(err, models.ErrTransactionNotFound) {
		// it was pending when read above, so only a cancellation removes it
		return ProcessResult{}, models.ErrCancelled
	}
	if err != nil {
		return ProcessResult{}, err
	}

	s.logger.Info("transaction processed",
		zap.String("transaction_id", tx.ID),
		zap.String("transaction_ref", tx.TransactionID),
		zap.String("account_id", tx.AccountID),
		zap.String("action", string(req.Action)),
		zap.String("admin_id", admin.ID),
		zap.String("user_balance", result.UserBalance.StringFixed(2)),
	)

	// Tell the owner and every admin; delivery is best effort
	at := action.ActionDate
	s.notifier.NotifyAccount(ctx, tx.AccountID, events.New(events.KindTransactionUpdate, at, events.TransactionUpdate{
		Transaction: result.Transaction,
		UserBalance: result.UserBalance,
		Action:      req.Action,
	}))
	s.notifier.NotifyAdmins(ctx, events.New(events.KindTransactionProcessed, at, events.TransactionProcessed{
		TransactionID: result.Transaction.ID,
		Action:        req.Action,
		AdminID:       admin.ID,
		AdminUsername: admin.Username,
	}))

	return result, nil
}

func (s *Service) decline(ctx context.Context, tx models.Transaction, action models.AdminAction) (ProcessResult, error) {
	declined, err := s.store.ApplyDecline(ctx, tx.ID, action)
	if err != nil {
		return ProcessResult{}, mapTransitionErr(err)
	}

	owner, err := s.store.GetAccount(ctx, tx.AccountID)
	if err != nil {
		return ProcessResult{}, fmt.Errorf("reload owner: %w", err)
	}
	return ProcessResult{Transaction: declined, UserBalance: owner.Balance}, nil
}

// approve runs the balance read-modify-write under the account locks and
// commits it with a compare-and-swap on the balance it read. A conflict means
// another writer got in between (another process, or a credit leg landing on
// this owner), so the read is repeated.
func (s *Service) approve(ctx context.Context, tx models.Transaction, action models.AdminAction) (ProcessResult, error) {
	creditID, err := s.resolveCredit(ctx, tx)
	if err != nil {
		return ProcessResult{}, err
	}

	var result ProcessResult
	// Lock owner and recipient together; the locker orders the keys
	err = s.locker.WithAccounts(ctx, []string{tx.AccountID, creditID}, func(ctx context.Context) error {
		for attempt := 1; attempt <= maxApprovalAttempts; attempt++ {
			// Re-read under the lock, someone may have decided or cancelled meanwhile
			current, err := s.store.GetTransaction(ctx, tx.ID)
			if err != nil {
				return err
			}
			if current.Status != models.StatusPending {
				return models.ErrAlreadyProcessed
			}

			owner, err := s.store.GetAccount(ctx, tx.AccountID)
			if err != nil {
				return fmt.Errorf("reload owner: %w", err)
			}
			if owner.IsFrozen {
				return models.ErrAccountFrozen
			}

			// Deposits add, withdrawals and transfers subtract
			newBalance := owner.Balance.Add(tx.Amount)
			if tx.Type.Debits() {
				if owner.Balance.LessThan(tx.Amount) {
					return s.insufficientOrProcessed(ctx, tx.ID)
				}
				newBalance = owner.Balance.Sub(tx.Amount)
			}
			if !models.InRange(newBalance) {
				return models.Invalid("amount", "approval would exceed the maximum balance")
			}

			// Swap only if the owner balance is still the one read above
			commit := models.ApprovalCommit{
				TransactionID:   tx.ID,
				OwnerID:         owner.ID,
				ExpectedBalance: owner.Balance,
				NewBalance:      newBalance,
				AdminAction:     action,
				At:              action.ActionDate,
			}
			if creditID != "" {
				commit.CreditAccountID = creditID
				commit.CreditAmount = tx.Amount
			}

			outcome, err := s.store.ApplyApproval(ctx, commit)
			if errors.Is(err, models.ErrBalanceConflict) {
				s.logger.Debug("owner balance moved, retrying approval",
					zap.String("transaction_id", tx.ID), zap.Int("attempt", attempt))
				continue
			}
			if err != nil {
				return mapTransitionErr(err)
			}

			//Committed
			result = ProcessResult{
				Transaction:       outcome.Transaction,
				UserBalance:       newBalance,
				RecipientCredited: outcome.Credited,
			}
			return nil
		}
		return fmt.Errorf("approve %s: %w", tx.ID, models.ErrBalanceConflict)
	})
	if err != nil {
		return ProcessResult{}, err
	}

	if tx.Type == models.TypeTransfer && !result.RecipientCredited {
		s.logger.Warn("transfer approved without crediting recipient",
			zap.String("transaction_id", tx.ID),
			zap.String("recipient_account_number", tx.Recipient.AccountNumber),
		)
	}
	return result, nil
}

// resolveCredit returns the account id to credit for an approved transfer,
// or "" when the recipient does not exist or cannot receive.
func (s *Service) resolveCredit(ctx context.Context, tx models.Transaction) (string, error) {
	if tx.Type != models.TypeTransfer || tx.Recipient == nil {
		return "", nil
	}
	rcpt, err := s.store.GetAccountByNumber(ctx, tx.Recipient.AccountNumber)
	if errors.Is(err, models.ErrAccountNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("resolve recipient: %w", err)
	}
	if !rcpt.CanReceive() {
		return "", nil
	}
	return rcpt.ID, nil
}

// insufficientOrProcessed disambiguates a short balance: if a concurrent
// decision already finalized the transaction, the caller lost the race and
// must see ErrAlreadyProcessed rather than a funds error.
func (s *Service) insufficientOrProcessed(ctx context.Context, id string) error {
	current, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return err
	}
	if current.Status != models.StatusPending {
		return models.ErrAlreadyProcessed
	}
	return models.ErrInsufficientFunds
}

func mapTransitionErr(err error) error {
	if errors.Is(err, models.ErrNotPending) {
		return models.ErrAlreadyProcessed
	}
	return err
}
