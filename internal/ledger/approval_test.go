package ledger_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sheikh-saqib/transaction-approval-ledger/internal/interfaces/mocks"
	"github.com/sheikh-saqib/transaction-approval-ledger/internal/ledger"
	"github.com/sheikh-saqib/transaction-approval-ledger/internal/models"
	"github.com/sheikh-saqib/transaction-approval-ledger/internal/models/events"
)

func TestApproveDeposit(t *testing.T) {
	f := newFixture(t)
	user := f.open(t, "alice", models.RoleUser, "100")
	tx := f.create(t, user, models.TypeDeposit, "25.50", nil)

	res, err := f.svc.ProcessTransaction(f.ctx, ledger.ProcessRequest{
		Ref:     tx.TransactionID,
		Action:  models.ActionApprove,
		AdminID: f.admin.ID,
		Comment: "  looks fine ",
	})
	require.NoError(t, err)

	requireBalance(t, "125.50", res.UserBalance)
	requireBalance(t, "125.50", f.balance(t, user.ID))
	assert.Equal(t, models.StatusApproved, res.Transaction.Status)
	require.True(t, res.Transaction.BalanceAfter.Valid)
	requireBalance(t, "125.50", res.Transaction.BalanceAfter.Decimal)
	require.NotNil(t, res.Transaction.AdminAction)
	assert.Equal(t, f.admin.ID, res.Transaction.AdminAction.AdminID)
	assert.Equal(t, "looks fine", res.Transaction.AdminAction.Comment)
	assert.Equal(t, clock, res.Transaction.AdminAction.ActionDate)

	update, ok := f.notifier.last(events.KindTransactionUpdate)
	require.True(t, ok)
	assert.Equal(t, user.ID, update.accountID)
	payload := update.event.Payload.(events.TransactionUpdate)
	assert.Equal(t, models.ActionApprove, payload.Action)
	requireBalance(t, "125.50", payload.UserBalance)

	processed, ok := f.notifier.last(events.KindTransactionProcessed)
	require.True(t, ok)
	assert.Equal(t, "admin", processed.event.Payload.(events.TransactionProcessed).AdminUsername)
}

func TestApproveWithdrawal(t *testing.T) {
	f := newFixture(t)
	user := f.open(t, "alice", models.RoleUser, "100")
	tx := f.create(t, user, models.TypeWithdrawal, "100", nil)

	res, err := f.process(tx.ID, models.ActionApprove)
	require.NoError(t, err)
	requireBalance(t, "0", res.UserBalance)
	requireBalance(t, "0", f.balance(t, user.ID))
}

func TestApproveRechecksFunds(t *testing.T) {
	f := newFixture(t)
	user := f.open(t, "alice", models.RoleUser, "100")
	first := f.create(t, user, models.TypeWithdrawal, "80", nil)
	second := f.create(t, user, models.TypeWithdrawal, "80", nil)

	_, err := f.process(first.ID, models.ActionApprove)
	require.NoError(t, err)

	_, err = f.process(second.ID, models.ActionApprove)
	assert.ErrorIs(t, err, models.ErrInsufficientFunds)

	got, err := f.store.GetTransaction(f.ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
	requireBalance(t, "20", f.balance(t, user.ID))

	// still decidable
	res, err := f.process(second.ID, models.ActionDecline)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDeclined, res.Transaction.Status)
}

func TestDecline(t *testing.T) {
	f := newFixture(t)
	user := f.open(t, "alice", models.RoleUser, "100")
	tx := f.create(t, user, models.TypeWithdrawal, "60", nil)

	res, err := f.process(tx.ID, models.ActionDecline)
	require.NoError(t, err)

	assert.Equal(t, models.StatusDeclined, res.Transaction.Status)
	assert.False(t, res.Transaction.BalanceAfter.Valid)
	require.NotNil(t, res.Transaction.AdminAction)
	requireBalance(t, "100", res.UserBalance)
	requireBalance(t, "100", f.balance(t, user.ID))

	update, ok := f.notifier.last(events.KindTransactionUpdate)
	require.True(t, ok)
	assert.Equal(t, models.ActionDecline, update.event.Payload.(events.TransactionUpdate).Action)
}

func TestProcessRejections(t *testing.T) {
	f := newFixture(t)
	user := f.open(t, "alice", models.RoleUser, "100")
	other := f.open(t, "bob", models.RoleUser, "100")
	tx := f.create(t, user, models.TypeDeposit, "10", nil)

	t.Run("invalid action", func(t *testing.T) {
		_, err := f.process(tx.ID, "refund")
		assert.ErrorIs(t, err, models.ErrValidation)
	})

	t.Run("not an admin", func(t *testing.T) {
		_, err := f.svc.ProcessTransaction(f.ctx, ledger.ProcessRequest{Ref: tx.ID, Action: models.ActionApprove, AdminID: other.ID})
		assert.ErrorIs(t, err, models.ErrForbidden)
	})

	t.Run("unknown transaction", func(t *testing.T) {
		_, err := f.process("TXN0", models.ActionApprove)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("already processed", func(t *testing.T) {
		_, err := f.process(tx.ID, models.ActionApprove)
		require.NoError(t, err)

		_, err = f.process(tx.ID, models.ActionApprove)
		assert.ErrorIs(t, err, models.ErrAlreadyProcessed)
		_, err = f.process(tx.ID, models.ActionDecline)
		assert.ErrorIs(t, err, models.ErrAlreadyProcessed)
		requireBalance(t, "110", f.balance(t, user.ID))
	})
}

func TestProcessFrozenOwner(t *testing.T) {
	f := newFixture(t)
	user := f.open(t, "alice", models.RoleUser, "100")
	deposit := f.create(t, user, models.TypeDeposit, "10", nil)
	withdrawal := f.create(t, user, models.TypeWithdrawal, "10", nil)
	f.freeze(t, user.ID)

	_, err := f.process(deposit.ID, models.ActionApprove)
	assert.ErrorIs(t, err, models.ErrAccountFrozen)
	_, err = f.process(withdrawal.ID, models.ActionDecline)
	assert.ErrorIs(t, err, models.ErrAccountFrozen)

	requireBalance(t, "100", f.balance(t, user.ID))

	_, err = f.svc.SetAccountFrozen(f.ctx, f.admin.ID, user.ID, false)
	require.NoError(t, err)
	_, err = f.process(deposit.ID, models.ActionApprove)
	assert.NoError(t, err)
}

func TestApproveTransfer(t *testing.T) {
	tests := []struct {
		name         string
		prepare      func(t *testing.T, f *fixture, rcpt models.Account)
		number       func(rcpt models.Account) string
		wantCredited bool
		wantRcpt     string
	}{
		{
			name:         "recipient credited",
			number:       func(rcpt models.Account) string { return rcpt.AccountNumber },
			wantCredited: true,
			wantRcpt:     "70",
		},
		{
			name:     "unknown recipient",
			number:   func(models.Account) string { return "0000000000" },
			wantRcpt: "50",
		},
		{
			name:     "frozen recipient",
			prepare:  func(t *testing.T, f *fixture, rcpt models.Account) { f.freeze(t, rcpt.ID) },
			number:   func(rcpt models.Account) string { return rcpt.AccountNumber },
			wantRcpt: "50",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			sender := f.open(t, "alice", models.RoleUser, "100")
			rcpt := f.open(t, "bob", models.RoleUser, "50")
			if tt.prepare != nil {
				tt.prepare(t, f, rcpt)
			}
			tx := f.create(t, sender, models.TypeTransfer, "20", &models.Recipient{AccountNumber: tt.number(rcpt), Name: "Bob"})

			res, err := f.process(tx.ID, models.ActionApprove)
			require.NoError(t, err)

			assert.Equal(t, tt.wantCredited, res.RecipientCredited)
			requireBalance(t, "80", f.balance(t, sender.ID))
			requireBalance(t, tt.wantRcpt, f.balance(t, rcpt.ID))
		})
	}
}

func TestConcurrentApprovalsOfOneTransaction(t *testing.T) {
	f := newFixture(t)
	user := f.open(t, "alice", models.RoleUser, "100")
	tx := f.create(t, user, models.TypeWithdrawal, "30", nil)

	const admins = 20
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		failures []error
	)
	for i := 0; i < admins; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			action := models.ActionApprove
			if i%4 == 0 {
				action = models.ActionDecline
			}
			_, err := f.process(tx.ID, action)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
			} else {
				failures = append(failures, err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	for _, err := range failures {
		assert.ErrorIs(t, err, models.ErrAlreadyProcessed)
	}

	got, err := f.store.GetTransaction(f.ctx, tx.ID)
	require.NoError(t, err)
	if got.Status == models.StatusApproved {
		requireBalance(t, "70", f.balance(t, user.ID))
	} else {
		requireBalance(t, "100", f.balance(t, user.ID))
	}
}

func TestConcurrentApprovalsNeverOverdraw(t *testing.T) {
	f := newFixture(t)
	user := f.open(t, "alice", models.RoleUser, "100")

	var txs []models.Transaction
	for i := 0; i < 5; i++ {
		txs = append(txs, f.create(t, user, models.TypeWithdrawal, "30", nil))
	}

	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		approved     int
		insufficient int
	)
	for _, tx := range txs {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := f.process(id, models.ActionApprove)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				approved++
			case errors.Is(err, models.ErrInsufficientFunds):
				insufficient++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(tx.ID)
	}
	wg.Wait()

	assert.Equal(t, 3, approved)
	assert.Equal(t, 2, insufficient)
	requireBalance(t, "10", f.balance(t, user.ID))
}

func TestConcurrentTransfersBetweenTwoAccounts(t *testing.T) {
	f := newFixture(t)
	alice := f.open(t, "alice", models.RoleUser, "100")
	bob := f.open(t, "bob", models.RoleUser, "100")

	var txs []models.Transaction
	for i := 0; i < 10; i++ {
		txs = append(txs, f.create(t, alice, models.TypeTransfer, "5", &models.Recipient{AccountNumber: bob.AccountNumber, Name: "Bob"}))
		txs = append(txs, f.create(t, bob, models.TypeTransfer, "5", &models.Recipient{AccountNumber: alice.AccountNumber, Name: "Alice"}))
	}

	var wg sync.WaitGroup
	for _, tx := range txs {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := f.process(id, models.ActionApprove)
			assert.NoError(t, err)
		}(tx.ID)
	}
	wg.Wait()

	// money is conserved when every recipient can receive
	requireBalance(t, "200", f.balance(t, alice.ID).Add(f.balance(t, bob.ID)))
	requireBalance(t, "100", f.balance(t, alice.ID))
}

func TestApproveGivesUpOnPersistentBalanceConflict(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockLedgerStore(ctrl)
	notifier := mocks.NewMockNotifier(ctrl)
	svc := ledger.NewService(store, notifier)

	admin := models.Account{ID: "admin", Role: models.RoleAdmin, IsActive: true}
	owner := models.Account{ID: "u1", Role: models.RoleUser, IsActive: true, Balance: dec("100")}
	tx := models.Transaction{ID: "t1", AccountID: "u1", Type: models.TypeDeposit, Amount: dec("10"), Status: models.StatusPending}

	store.EXPECT().GetAccount(gomock.Any(), "admin").Return(admin, nil)
	store.EXPECT().GetAccount(gomock.Any(), "u1").Return(owner, nil).AnyTimes()
	store.EXPECT().GetTransaction(gomock.Any(), "t1").Return(tx, nil).AnyTimes()
	store.EXPECT().ApplyApproval(gomock.Any(), gomock.Any()).Return(models.ApprovalOutcome{}, models.ErrBalanceConflict).Times(3)

	_, err := svc.ProcessTransaction(t.Context(), ledger.ProcessRequest{Ref: "t1", Action: models.ActionApprove, AdminID: "admin"})
	assert.ErrorIs(t, err, models.ErrBalanceConflict)
}

func TestApproveRetriesAfterBalanceConflict(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockLedgerStore(ctrl)
	notifier := mocks.NewMockNotifier(ctrl)
	svc := ledger.NewService(store, notifier)

	admin := models.Account{ID: "admin", Username: "root", Role: models.RoleAdmin, IsActive: true}
	owner := models.Account{ID: "u1", Role: models.RoleUser, IsActive: true, Balance: dec("100")}
	moved := owner
	moved.Balance = dec("150")
	tx := models.Transaction{ID: "t1", AccountID: "u1", Type: models.TypeWithdrawal, Amount: dec("10"), Status: models.StatusPending}
	approved := tx
	approved.Status = models.StatusApproved

	store.EXPECT().GetAccount(gomock.Any(), "admin").Return(admin, nil)
	store.EXPECT().GetTransaction(gomock.Any(), "t1").Return(tx, nil).AnyTimes()
	gomock.InOrder(
		store.EXPECT().GetAccount(gomock.Any(), "u1").Return(owner, nil).Times(2),
		store.EXPECT().GetAccount(gomock.Any(), "u1").Return(moved, nil),
	)
	gomock.InOrder(
		store.EXPECT().ApplyApproval(gomock.Any(), gomock.Any()).Return(models.ApprovalOutcome{}, models.ErrBalanceConflict),
		store.EXPECT().ApplyApproval(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ interface{}, commit models.ApprovalCommit) (models.ApprovalOutcome, error) {
				requireBalance(t, "150", commit.ExpectedBalance)
				requireBalance(t, "140", commit.NewBalance)
				return models.ApprovalOutcome{Transaction: approved}, nil
			}),
	)
	notifier.EXPECT().NotifyAccount(gomock.Any(), "u1", eventKind(events.KindTransactionUpdate))
	notifier.EXPECT().NotifyAdmins(gomock.Any(), eventKind(events.KindTransactionProcessed))

	res, err := svc.ProcessTransaction(t.Context(), ledger.ProcessRequest{Ref: "t1", Action: models.ActionApprove, AdminID: "admin"})
	require.NoError(t, err)
	requireBalance(t, "140", res.UserBalance)
}

func TestApproveRejectsBalancePastMaximum(t *testing.T) {
	f := newFixture(t)
	rich := f.open(t, "carol", models.RoleUser, "9999999999999999.50")
	tx := f.create(t, rich, models.TypeDeposit, "1", nil)

	_, err := f.process(tx.ID, models.ActionApprove)
	require.ErrorIs(t, err, models.ErrValidation)
	requireBalance(t, "9999999999999999.50", f.balance(t, rich.ID))

	got, err := f.store.GetTransaction(f.ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)

	// declining is still possible
	_, err = f.process(tx.ID, models.ActionDecline)
	require.NoError(t, err)
}

func TestDecisionAfterCancellationReportsCancelled(t *testing.T) {
	for _, action := range []models.Action{models.ActionApprove, models.ActionDecline} {
		t.Run(string(action), func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			store := mocks.NewMockLedgerStore(ctrl)
			notifier := mocks.NewMockNotifier(ctrl)
			svc := ledger.NewService(store, notifier)

			admin := models.Account{ID: "admin", Role: models.RoleAdmin, IsActive: true}
			owner := models.Account{ID: "u1", Role: models.RoleUser, IsActive: true, Balance: dec("100")}
			tx := models.Transaction{ID: "t1", AccountID: "u1", Type: models.TypeDeposit, Amount: dec("10"), Status: models.StatusPending}

			store.EXPECT().GetAccount(gomock.Any(), "admin").Return(admin, nil)
			store.EXPECT().GetAccount(gomock.Any(), "u1").Return(owner, nil).AnyTimes()
			gomock.InOrder(
				store.EXPECT().GetTransaction(gomock.Any(), "t1").Return(tx, nil),
				// the owner cancels between the read and the decision
				store.EXPECT().GetTransaction(gomock.Any(), "t1").Return(models.Transaction{}, models.ErrTransactionNotFound).AnyTimes(),
			)
			store.EXPECT().ApplyDecline(gomock.Any(), "t1", gomock.Any()).Return(models.Transaction{}, models.ErrTransactionNotFound).AnyTimes()

			_, err := svc.ProcessTransaction(t.Context(), ledger.ProcessRequest{Ref: "t1", Action: action, AdminID: "admin"})
			assert.ErrorIs(t, err, models.ErrCancelled)
			assert.ErrorIs(t, err, models.ErrNotPending)
			assert.NotErrorIs(t, err, models.ErrNotFound)
		})
	}
}

func TestProcessPropagatesStoreFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockLedgerStore(ctrl)
	notifier := mocks.NewMockNotifier(ctrl)
	svc := ledger.NewService(store, notifier)

	boom := errors.New("connection reset")
	store.EXPECT().GetAccount(gomock.Any(), "admin").Return(models.Account{ID: "admin", Role: models.RoleAdmin}, nil)
	store.EXPECT().GetTransaction(gomock.Any(), "t1").Return(models.Transaction{}, boom)

	_, err := svc.ProcessTransaction(t.Context(), ledger.ProcessRequest{Ref: "t1", Action: models.ActionDecline, AdminID: "admin"})
	assert.ErrorIs(t, err, boom)
}

func TestUncreditedTransferIsLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	f := newFixture(t, ledger.WithLogger(zap.New(core)))
	sender := f.open(t, "alice", models.RoleUser, "100")
	tx := f.create(t, sender, models.TypeTransfer, "20", &models.Recipient{AccountNumber: "0000000000", Name: "Nobody"})

	res, err := f.process(tx.ID, models.ActionApprove)
	require.NoError(t, err)
	assert.False(t, res.RecipientCredited)

	entries := logs.FilterMessage("transfer approved without crediting recipient").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "0000000000", entries[0].ContextMap()["recipient_account_number"])
}
