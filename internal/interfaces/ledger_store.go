package interfaces

import (
	"context"

	"github.com/sheikh-saqib/transaction-approval-ledger/internal/models"
)

// LedgerStore is the durable record store behind accounts and transactions.
// Conditional writes (ApplyApproval, ApplyDecline, DeletePending) are the
// only way a transaction leaves pending, and each is atomic.
//
//go:generate mockgen -destination=mocks/mock_ledger_store.go -package=mocks -source=ledger_store.go LedgerStore
type LedgerStore interface {
	CreateAccount(ctx context.Context, account models.Account) error
	GetAccount(ctx context.Context, id string) (models.Account, error)
	GetAccountByNumber(ctx context.Context, accountNumber string) (models.Account, error)
	ListAccounts(ctx context.Context, filter models.AccountFilter) ([]models.Account, int, error)
	SetFrozen(ctx context.Context, id string, frozen bool) (models.Account, error)

	InsertTransaction(ctx context.Context, tx models.Transaction) error
	GetTransaction(ctx context.Context, ref string) (models.Transaction, error)
	ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, int, error)
	ApplyApproval(ctx context.Context, commit models.ApprovalCommit) (models.ApprovalOutcome, error)
	ApplyDecline(ctx context.Context, id string, action models.AdminAction) (models.Transaction, error)
	DeletePending(ctx context.Context, id, ownerID string) error
}
