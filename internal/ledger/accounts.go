package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/transaction-approval-ledger/internal/models"
	"github.com/sheikh-saqib/transaction-approval-ledger/internal/models/events"
)

// OpenAccountRequest describes an account to bootstrap. Registration itself
// lives outside this service; this is used by seeding and tests.
type OpenAccountRequest struct {
	Username       string
	Email          string
	Role           models.Role
	OpeningBalance decimal.Decimal
}

// OpenAccount creates an active, unfrozen account with a fresh account number.
func (s *Service) OpenAccount(ctx context.Context, req OpenAccountRequest) (models.Account, error) {
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		return models.Account{}, models.Invalid("username", "is required")
	}
	if req.Role != models.RoleUser && req.Role != models.RoleAdmin {
		return models.Account{}, models.Invalid("role", "must be user or admin")
	}
	if req.OpeningBalance.IsNegative() {
		return models.Account{}, models.Invalid("balance", "must not be negative")
	}
	if !models.InRange(req.OpeningBalance) {
		return models.Account{}, models.Invalid("balance", "is too large")
	}

	now := s.now()
	acc := models.Account{
		ID:        uuid.New().String(),
		Username:  req.Username,
		Email:     strings.TrimSpace(req.Email),
		Role:      req.Role,
		Balance:   req.OpeningBalance,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var err error
	for attempt := 1; attempt <= maxIDAttempts; attempt++ {
		acc.AccountNumber = NewAccountNumber()
		if err = s.store.CreateAccount(ctx, acc); err == nil {
			return acc, nil
		}
		if !errors.Is(err, models.ErrValidation) {
			break
		}
	}
	return models.Account{}, fmt.Errorf("create account: %w", err)
}

// GetAccount returns the account of the caller, or any account for admins.
func (s *Service) GetAccount(ctx context.Context, actor Actor, id string) (models.Account, error) {
	if !actor.IsAdmin() && actor.AccountID != id {
		return models.Account{}, models.ErrAccountNotFound
	}
	return s.store.GetAccount(ctx, id)
}

// SetAccountFrozen freezes or unfreezes a user account. Pending transactions
// are left alone; approving them later fails the frozen re-check.
func (s *Service) SetAccountFrozen(ctx context.Context, adminID, targetID string, freeze bool) (models.Account, error) {
	admin, err := s.requireAdmin(ctx, adminID)
	if err != nil {
		return models.Account{}, err
	}

	target, err := s.store.GetAccount(ctx, targetID)
	if err != nil {
		return models.Account{}, err
	}
	if target.Role != models.RoleUser {
		return models.Account{}, fmt.Errorf("cannot freeze admin accounts: %w", models.ErrForbidden)
	}

	updated, err := s.store.SetFrozen(ctx, target.ID, freeze)
	if err != nil {
		return models.Account{}, err
	}

	s.logger.Info("account status changed",
		zap.String("account_id", updated.ID),
		zap.Bool("is_frozen", freeze),
		zap.String("admin_id", admin.ID),
	)

	message := "Your account has been unfrozen"
	if freeze {
		message = "Your account has been frozen"
	}
	s.notifier.NotifyAccount(ctx, updated.ID, events.New(events.KindAccountStatusChange, s.now(), events.AccountStatusChange{
		IsFrozen: freeze,
		Message:  message,
	}))
	return updated, nil
}

// ListUsers pages through user accounts, optionally matching search against
// username, email or account number.
func (s *Service) ListUsers(ctx context.Context, search string, page, limit int) (models.Page[models.Account], error) {
	page, limit = models.NormalizePaging(page, limit, models.DefaultAdminPageLimit)
	users, total, err := s.store.ListAccounts(ctx, models.AccountFilter{
		Role:   models.RoleUser,
		Search: search,
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		return models.Page[models.Account]{}, err
	}
	return models.NewPage(users, total, page, limit), nil
}
