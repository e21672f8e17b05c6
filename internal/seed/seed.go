// Package seed bootstraps demo accounts and transactions.
package seed

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	interfaces "github.com/sheikh-saqib/transaction-approval-ledger/internal/interfaces"
	"github.com/sheikh-saqib/transaction-approval-ledger/internal/ledger"
	"github.com/sheikh-saqib/transaction-approval-ledger/internal/models"
)

const (
	AdminUsername = "admin"
	UserUsername  = "demouser"
)

// Result holds the demo accounts, whether or not this run created them.
type Result struct {
	Admin   models.Account
	User    models.Account
	Created bool
}

// Run creates the demo admin and user when they are missing. A user created
// here gets one approved deposit and one pending withdrawal. Running it again
// changes nothing.
func Run(ctx context.Context, svc *ledger.Service, store interfaces.LedgerStore, logger *zap.Logger) (Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	admin, adminCreated, err := ensureAccount(ctx, svc, store, ledger.OpenAccountRequest{
		Username: AdminUsername,
		Email:    "admin@bank.local",
		Role:     models.RoleAdmin,
	})
	if err != nil {
		return Result{}, err
	}

	user, userCreated, err := ensureAccount(ctx, svc, store, ledger.OpenAccountRequest{
		Username:       UserUsername,
		Email:          "demo@bank.local",
		Role:           models.RoleUser,
		OpeningBalance: decimal.NewFromInt(1000),
	})
	if err != nil {
		return Result{}, err
	}

	if userCreated {
		if err := sampleTransactions(ctx, svc, admin, user); err != nil {
			return Result{}, err
		}
		if user, err = store.GetAccount(ctx, user.ID); err != nil {
			return Result{}, err
		}
	}

	res := Result{Admin: admin, User: user, Created: adminCreated || userCreated}
	logger.Info("demo data ready",
		zap.Bool("created", res.Created),
		zap.String("admin_id", admin.ID),
		zap.String("user_id", user.ID),
		zap.String("user_account_number", user.AccountNumber),
	)
	return res, nil
}

func ensureAccount(ctx context.Context, svc *ledger.Service, store interfaces.LedgerStore, req ledger.OpenAccountRequest) (models.Account, bool, error) {
	existing, _, err := store.ListAccounts(ctx, models.AccountFilter{Role: req.Role, Search: req.Username})
	if err != nil {
		return models.Account{}, false, fmt.Errorf("look up %s: %w", req.Username, err)
	}
	for _, acc := range existing {
		if strings.EqualFold(acc.Username, req.Username) {
			return acc, false, nil
		}
	}

	acc, err := svc.OpenAccount(ctx, req)
	if err != nil {
		return models.Account{}, false, fmt.Errorf("open %s: %w", req.Username, err)
	}
	return acc, true, nil
}

func sampleTransactions(ctx context.Context, svc *ledger.Service, admin, user models.Account) error {
	deposit, err := svc.CreateTransaction(ctx, ledger.CreateRequest{
		AccountID:   user.ID,
		Type:        models.TypeDeposit,
		Amount:      decimal.NewFromInt(250),
		Description: "Salary",
	})
	if err != nil {
		return fmt.Errorf("seed deposit: %w", err)
	}
	if _, err := svc.ProcessTransaction(ctx, ledger.ProcessRequest{
		Ref:     deposit.ID,
		Action:  models.ActionApprove,
		AdminID: admin.ID,
		Comment: "seeded",
	}); err != nil {
		return fmt.Errorf("seed approval: %w", err)
	}

	if _, err := svc.CreateTransaction(ctx, ledger.CreateRequest{
		AccountID:   user.ID,
		Type:        models.TypeWithdrawal,
		Amount:      decimal.NewFromInt(100),
		Description: "ATM withdrawal",
	}); err != nil {
		return fmt.Errorf("seed withdrawal: %w", err)
	}
	return nil
}
