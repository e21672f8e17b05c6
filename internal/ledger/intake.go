package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/transaction-approval-ledger/internal/models"
	"github.com/sheikh-saqib/transaction-approval-ledger/internal/models/events"
)

const maxDescriptionLength = 255

// CreateRequest is a user's ask to move money. Recipient is required for
// transfers and ignored otherwise.
type CreateRequest struct {
	AccountID   string
	Type        models.TransactionType
	Amount      decimal.Decimal
	Description string
	Recipient   *models.Recipient
}

// Validate checks the shape of the request only; balances and account
// state are checked by CreateTransaction.
func (r *CreateRequest) Validate() error {
	if !r.Type.Valid() {
		return models.Invalid("type", "must be one of deposit, withdrawal, transfer")
	}
	if !r.Amount.IsPositive() {
		return models.Invalid("amount", "must be greater than 0")
	}
	if !models.InRange(r.Amount) {
		return models.Invalid("amount", "must be less than 10000000000000000")
	}
	if !r.Amount.Equal(r.Amount.Round(2)) {
		return models.Invalid("amount", "must have at most two decimal places")
	}

	r.Description = strings.TrimSpace(r.Description)
	if utf8.RuneCountInString(r.Description) > maxDescriptionLength {
		return models.Invalid("description", fmt.Sprintf("must be at most %d characters", maxDescriptionLength))
	}

	if r.Type != models.TypeTransfer {
		r.Recipient = nil
		return nil
	}
	if r.Recipient == nil {
		return models.Invalid("recipient", "is required for transfers")
	}
	r.Recipient.AccountNumber = strings.TrimSpace(r.Recipient.AccountNumber)
	r.Recipient.Name = strings.TrimSpace(r.Recipient.Name)
	if r.Recipient.AccountNumber == "" || r.Recipient.Name == "" {
		return models.Invalid("recipient", "accountNumber and name are required")
	}
	return nil
}

// CreateTransaction validates req against the owner's current balance and
// records a pending transaction. The balance check is a point-in-time check;
// nothing is reserved, and approval checks again.
func (s *Service) CreateTransaction(ctx context.Context, req CreateRequest) (models.Transaction, error) {
	if err := req.Validate(); err != nil {
		return models.Transaction{}, err
	}

	// Only an unfrozen user account can ask, and only for what it holds now
	owner, err := s.store.GetAccount(ctx, req.AccountID)
	if err != nil {
		return models.Transaction{}, err
	}
	if owner.Role != models.RoleUser {
		return models.Transaction{}, models.ErrForbidden
	}
	if owner.IsFrozen {
		return models.Transaction{}, models.ErrAccountFrozen
	}
	if req.Type.Debits() && req.Amount.GreaterThan(owner.Balance) {
		return models.Transaction{}, models.ErrInsufficientFunds
	}

	// An unknown recipient is allowed here, sending to yourself is not
	if req.Type == models.TypeTransfer {
		rcpt, err := s.store.GetAccountByNumber(ctx, req.Recipient.AccountNumber)
		switch {
		case err == nil && rcpt.ID == owner.ID:
			return models.Transaction{}, models.ErrSelfTransfer
		case err != nil && !errors.Is(err, models.ErrAccountNotFound):
			return models.Transaction{}, fmt.Errorf("resolve recipient: %w", err)
		}
	}

	now := s.now()
	tx := models.Transaction{
		ID:          uuid.New().String(),
		AccountID:   owner.ID,
		Type:        req.Type,
		Amount:      req.Amount,
		Description: req.Description,
		Recipient:   req.Recipient,
		Status:      models.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// Regenerate the human-readable id on collision
	for attempt := 1; ; attempt++ {
		tx.TransactionID = s.newRef(now)
		err = s.store.InsertTransaction(ctx, tx)
		if err == nil {
			break
		}
		if !errors.Is(err, models.ErrDuplicateTransactionID) || attempt == maxIDAttempts {
			return models.Transaction{}, fmt.Errorf("insert transaction: %w", err)
		}
		s.logger.Warn("transaction id collision, regenerating",
			zap.String("transaction_ref", tx.TransactionID), zap.Int("attempt", attempt))
	}

	s.logger.Info("transaction created",
		zap.String("transaction_id", tx.ID),
		zap.String("transaction_ref", tx.TransactionID),
		zap.String("account_id", owner.ID),
		zap.String("type", string(tx.Type)),
		zap.String("amount", tx.Amount.StringFixed(2)),
	)

	s.notifier.NotifyAdmins(ctx, events.New(events.KindNewTransaction, now, events.NewTransaction{
		Transaction: tx,
		User: events.Requester{
			Username:      owner.Username,
			AccountNumber: owner.AccountNumber,
		},
	}))

	return tx, nil
}
