package ledger

import (
	"context"

	"github.com/sheikh-saqib/transaction-approval-ledger/internal/models"
)

const recentTransactions = 5

// Stats is the admin dashboard summary.
type Stats struct {
	TotalUsers          int                  `json:"totalUsers"`
	PendingTransactions int                  `json:"pendingTransactions"`
	TotalTransactions   int                  `json:"totalTransactions"`
	FrozenAccounts      int                  `json:"frozenAccounts"`
	RecentTransactions  []models.Transaction `json:"recentTransactions"`
}

// ListTransactions pages through transactions newest first. Users only ever
// see their own; admins may filter by account and status freely.
func (s *Service) ListTransactions(ctx context.Context, actor Actor, filter models.TransactionFilter) (models.Page[models.Transaction], error) {
	defaultLimit := models.DefaultAdminPageLimit
	if !actor.IsAdmin() {
		filter.AccountID = actor.AccountID
		defaultLimit = models.DefaultUserPageLimit
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return models.Page[models.Transaction]{}, models.Invalid("status", "must be pending, approved or declined")
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return models.Page[models.Transaction]{}, models.Invalid("type", "must be deposit, withdrawal or transfer")
	}

	filter.Page, filter.Limit = models.NormalizePaging(filter.Page, filter.Limit, defaultLimit)
	txs, total, err := s.store.ListTransactions(ctx, filter)
	if err != nil {
		return models.Page[models.Transaction]{}, err
	}
	return models.NewPage(txs, total, filter.Page, filter.Limit), nil
}

// ListPending pages through the transactions awaiting a decision.
func (s *Service) ListPending(ctx context.Context, page, limit int) (models.Page[models.Transaction], error) {
	return s.ListTransactions(ctx, Actor{Role: models.RoleAdmin}, models.TransactionFilter{
		Status: models.StatusPending,
		Page:   page,
		Limit:  limit,
	})
}

// GetTransaction returns one transaction. A user asking for someone else's
// transaction gets ErrTransactionNotFound.
func (s *Service) GetTransaction(ctx context.Context, actor Actor, ref string) (models.Transaction, error) {
	tx, err := s.store.GetTransaction(ctx, ref)
	if err != nil {
		return models.Transaction{}, err
	}
	if !actor.IsAdmin() && tx.AccountID != actor.AccountID {
		return models.Transaction{}, models.ErrTransactionNotFound
	}
	return tx, nil
}

// Stats counts users, frozen users and transactions, and returns the most
// recent transactions.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	frozen := true

	_, totalUsers, err := s.store.ListAccounts(ctx, models.AccountFilter{Role: models.RoleUser, Page: 1, Limit: 1})
	if err != nil {
		return Stats{}, err
	}
	_, frozenAccounts, err := s.store.ListAccounts(ctx, models.AccountFilter{Role: models.RoleUser, Frozen: &frozen, Page: 1, Limit: 1})
	if err != nil {
		return Stats{}, err
	}
	_, pending, err := s.store.ListTransactions(ctx, models.TransactionFilter{Status: models.StatusPending, Page: 1, Limit: 1})
	if err != nil {
		return Stats{}, err
	}
	recent, total, err := s.store.ListTransactions(ctx, models.TransactionFilter{Page: 1, Limit: recentTransactions})
	if err != nil {
		return Stats{}, err
	}
	if recent == nil {
		recent = []models.Transaction{}
	}

	return Stats{
		TotalUsers:          totalUsers,
		PendingTransactions: pending,
		TotalTransactions:   total,
		FrozenAccounts:      frozenAccounts,
		RecentTransactions:  recent,
	}, nil
}
