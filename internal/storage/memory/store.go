package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	interfaces "github.com/sheikh-saqib/transaction-approval-ledger/internal/interfaces"
	"github.com/sheikh-saqib/transaction-approval-ledger/internal/models"
)

// MemoryLedgerStore is an in-memory implementation of interfaces.LedgerStore.
// A single mutex guards both collections, so every conditional write is
// atomic with respect to every reader.
type MemoryLedgerStore struct {
	mu           sync.RWMutex
	accounts     map[string]models.Account     // keyed by account ID
	byNumber     map[string]string             // account number -> account ID
	transactions map[string]models.Transaction // keyed by transaction ID
	byRef        map[string]string             // human-readable transactionId -> ID
}

// NewMemoryLedgerStore creates an empty store.
func NewMemoryLedgerStore() *MemoryLedgerStore {
	return &MemoryLedgerStore{
		accounts:     make(map[string]models.Account),
		byNumber:     make(map[string]string),
		transactions: make(map[string]models.Transaction),
		byRef:        make(map[string]string),
	}
}

func (m *MemoryLedgerStore) CreateAccount(ctx context.Context, account models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.accounts[account.ID]; exists {
		return models.Invalid("account", "id already exists")
	}
	if _, exists := m.byNumber[account.AccountNumber]; exists {
		return models.Invalid("accountNumber", "already exists")
	}

	m.accounts[account.ID] = account
	m.byNumber[account.AccountNumber] = account.ID
	return nil
}

func (m *MemoryLedgerStore) GetAccount(ctx context.Context, id string) (models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	acc, ok := m.accounts[id]
	if !ok {
		return models.Account{}, models.ErrAccountNotFound
	}
	return acc, nil
}

func (m *MemoryLedgerStore) GetAccountByNumber(ctx context.Context, accountNumber string) (models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byNumber[accountNumber]
	if !ok {
		return models.Account{}, models.ErrAccountNotFound
	}
	return m.accounts[id], nil
}

func (m *MemoryLedgerStore) ListAccounts(ctx context.Context, filter models.AccountFilter) ([]models.Account, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))

	var matched []models.Account
	for _, acc := range m.accounts {
		if filter.Role != "" && acc.Role != filter.Role {
			continue
		}
		if filter.Frozen != nil && acc.IsFrozen != *filter.Frozen {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(acc.Username), search) &&
			!strings.Contains(strings.ToLower(acc.Email), search) &&
			!strings.Contains(strings.ToLower(acc.AccountNumber), search) {
			continue
		}
		matched = append(matched, acc)
	}

	// newest first, ID breaks ties so paging is stable
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	return paginate(matched, filter.Page, filter.Limit), len(matched), nil
}

func (m *MemoryLedgerStore) SetFrozen(ctx context.Context, id string, frozen bool) (models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	acc, ok := m.accounts[id]
	if !ok {
		return models.Account{}, models.ErrAccountNotFound
	}
	acc.IsFrozen = frozen
	acc.UpdatedAt = nowUTC()
	m.accounts[id] = acc
	return acc, nil
}

func (m *MemoryLedgerStore) InsertTransaction(ctx context.Context, tx models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.transactions[tx.ID]; exists {
		return models.ErrDuplicateTransactionID
	}
	if _, exists := m.byRef[tx.TransactionID]; exists {
		return models.ErrDuplicateTransactionID
	}

	m.transactions[tx.ID] = cloneTransaction(tx)
	m.byRef[tx.TransactionID] = tx.ID
	return nil
}

func (m *MemoryLedgerStore) GetTransaction(ctx context.Context, ref string) (models.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tx, ok := m.lookup(ref)
	if !ok {
		return models.Transaction{}, models.ErrTransactionNotFound
	}
	return cloneTransaction(tx), nil
}

func (m *MemoryLedgerStore) ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []models.Transaction
	for _, tx := range m.transactions {
		if filter.AccountID != "" && tx.AccountID != filter.AccountID {
			continue
		}
		if filter.Status != "" && tx.Status != filter.Status {
			continue
		}
		if filter.Type != "" && tx.Type != filter.Type {
			continue
		}
		matched = append(matched, cloneTransaction(tx))
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].TransactionID > matched[j].TransactionID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	return paginate(matched, filter.Page, filter.Limit), len(matched), nil
}

// ApplyApproval flips the transaction to approved and moves the balances
// under one lock, so no reader sees one without the other.
func (m *MemoryLedgerStore) ApplyApproval(ctx context.Context, commit models.ApprovalCommit) (models.ApprovalOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Transaction must still be pending
	tx, ok := m.transactions[commit.TransactionID]
	if !ok {
		return models.ApprovalOutcome{}, models.ErrTransactionNotFound
	}
	if tx.Status != models.StatusPending {
		return models.ApprovalOutcome{}, models.ErrNotPending
	}

	// Owner must be unfrozen and hold the balance the caller read
	owner, ok := m.accounts[commit.OwnerID]
	if !ok {
		return models.ApprovalOutcome{}, models.ErrAccountNotFound
	}
	if owner.IsFrozen {
		return models.ApprovalOutcome{}, models.ErrAccountFrozen
	}
	if !owner.Balance.Equal(commit.ExpectedBalance) {
		return models.ApprovalOutcome{}, models.ErrBalanceConflict
	}
	if commit.NewBalance.IsNegative() {
		return models.ApprovalOutcome{}, models.ErrInsufficientFunds
	}
	if !models.InRange(commit.NewBalance) {
		return models.ApprovalOutcome{}, models.Invalid("amount", "balance would exceed the maximum")
	}

	// Credit leg first so a rejected credit leaves the owner untouched
	credited := false
	if commit.CreditAccountID != "" {
		if rcpt, found := m.accounts[commit.CreditAccountID]; found && rcpt.CanReceive() {
			if !models.InRange(rcpt.Balance.Add(commit.CreditAmount)) {
				return models.ApprovalOutcome{}, models.Invalid("recipient", "balance would exceed the maximum")
			}
			rcpt.Balance = rcpt.Balance.Add(commit.CreditAmount)
			rcpt.UpdatedAt = commit.At
			m.accounts[rcpt.ID] = rcpt
			credited = true
		}
	}

	// Debit or credit the owner
	owner.Balance = commit.NewBalance
	owner.UpdatedAt = commit.At
	m.accounts[owner.ID] = owner

	// Finalize the transaction
	action := commit.AdminAction
	tx.Status = models.StatusApproved
	tx.AdminAction = &action
	tx.BalanceAfter.Decimal = commit.NewBalance
	tx.BalanceAfter.Valid = true
	tx.UpdatedAt = commit.At
	m.transactions[tx.ID] = tx

	return models.ApprovalOutcome{Transaction: cloneTransaction(tx), Credited: credited}, nil
}

func (m *MemoryLedgerStore) ApplyDecline(ctx context.Context, id string, action models.AdminAction) (models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, ok := m.transactions[id]
	if !ok {
		return models.Transaction{}, models.ErrTransactionNotFound
	}
	if tx.Status != models.StatusPending {
		return models.Transaction{}, models.ErrNotPending
	}

	tx.Status = models.StatusDeclined
	tx.AdminAction = &action
	tx.UpdatedAt = action.ActionDate
	m.transactions[id] = tx
	return cloneTransaction(tx), nil
}

func (m *MemoryLedgerStore) DeletePending(ctx context.Context, id, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, ok := m.transactions[id]
	if !ok || tx.AccountID != ownerID {
		return models.ErrTransactionNotFound
	}
	if tx.Status != models.StatusPending {
		return models.ErrNotPending
	}

	delete(m.transactions, id)
	delete(m.byRef, tx.TransactionID)
	return nil
}

// lookup resolves either the record ID or the human-readable transactionId.
// Callers hold m.mu.
func (m *MemoryLedgerStore) lookup(ref string) (models.Transaction, bool) {
	if tx, ok := m.transactions[ref]; ok {
		return tx, true
	}
	if id, ok := m.byRef[ref]; ok {
		tx, ok := m.transactions[id]
		return tx, ok
	}
	return models.Transaction{}, false
}

// cloneTransaction copies the pointer fields so callers cannot mutate stored state.
func cloneTransaction(tx models.Transaction) models.Transaction {
	if tx.Recipient != nil {
		r := *tx.Recipient
		tx.Recipient = &r
	}
	if tx.AdminAction != nil {
		a := *tx.AdminAction
		tx.AdminAction = &a
	}
	return tx
}

func paginate[T any](items []T, page, limit int) []T {
	if limit <= 0 {
		return items
	}
	if page < 1 {
		page = 1
	}
	start := models.Offset(page, limit)
	if start < 0 || start >= len(items) {
		return []T{}
	}
	end := start + limit
	if end > len(items) || end < start {
		end = len(items)
	}
	return items[start:end]
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

// Compile-time check: ensure MemoryLedgerStore implements LedgerStore interface
var _ interfaces.LedgerStore = (*MemoryLedgerStore)(nil)
