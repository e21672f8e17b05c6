package ledger_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/transaction-approval-ledger/internal/ledger"
	"github.com/sheikh-saqib/transaction-approval-ledger/internal/models"
	"github.com/sheikh-saqib/transaction-approval-ledger/internal/models/events"
	"github.com/sheikh-saqib/transaction-approval-ledger/internal/storage/memory"
)

var clock = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

type sentEvent struct {
	accountID string // empty for admin broadcasts
	event     events.Event
}

// recordingNotifier keeps every event it is handed.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentEvent
}

func (r *recordingNotifier) NotifyAccount(_ context.Context, accountID string, event events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentEvent{accountID: accountID, event: event})
}

func (r *recordingNotifier) NotifyAdmins(_ context.Context, event events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentEvent{event: event})
}

func (r *recordingNotifier) kinds() []events.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Kind, 0, len(r.sent))
	for _, s := range r.sent {
		out = append(out, s.event.Kind)
	}
	return out
}

func (r *recordingNotifier) last(kind events.Kind) (sentEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.sent) - 1; i >= 0; i-- {
		if r.sent[i].event.Kind == kind {
			return r.sent[i], true
		}
	}
	return sentEvent{}, false
}

type fixture struct {
	ctx      context.Context
	store    *memory.MemoryLedgerStore
	notifier *recordingNotifier
	svc      *ledger.Service
	admin    models.Account
}

func newFixture(t *testing.T, opts ...ledger.Option) *fixture {
	t.Helper()
	f := &fixture{
		ctx:      context.Background(),
		store:    memory.NewMemoryLedgerStore(),
		notifier: &recordingNotifier{},
	}
	opts = append([]ledger.Option{ledger.WithClock(func() time.Time { return clock })}, opts...)
	f.svc = ledger.NewService(f.store, f.notifier, opts...)
	f.admin = f.open(t, "admin", models.RoleAdmin, "0")
	return f
}

func (f *fixture) open(t *testing.T, username string, role models.Role, balance string) models.Account {
	t.Helper()
	acc, err := f.svc.OpenAccount(f.ctx, ledger.OpenAccountRequest{
		Username:       username,
		Email:          username + "@bank.local",
		Role:           role,
		OpeningBalance: dec(balance),
	})
	require.NoError(t, err)
	return acc
}

func (f *fixture) create(t *testing.T, owner models.Account, typ models.TransactionType, amount string, rcpt *models.Recipient) models.Transaction {
	t.Helper()
	tx, err := f.svc.CreateTransaction(f.ctx, ledger.CreateRequest{
		AccountID: owner.ID,
		Type:      typ,
		Amount:    dec(amount),
		Recipient: rcpt,
	})
	require.NoError(t, err)
	return tx
}

func (f *fixture) process(ref string, action models.Action) (ledger.ProcessResult, error) {
	return f.svc.ProcessTransaction(f.ctx, ledger.ProcessRequest{
		Ref:     ref,
		Action:  action,
		AdminID: f.admin.ID,
	})
}

func (f *fixture) balance(t *testing.T, id string) decimal.Decimal {
	t.Helper()
	acc, err := f.store.GetAccount(f.ctx, id)
	require.NoError(t, err)
	return acc.Balance
}

func (f *fixture) freeze(t *testing.T, id string) {
	t.Helper()
	_, err := f.svc.SetAccountFrozen(f.ctx, f.admin.ID, id, true)
	require.NoError(t, err)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func requireBalance(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, dec(want).Equal(got), "balance: want %s, got %s", want, got)
}

// eventKind matches an events.Event by Kind.
type eventKind events.Kind

func (k eventKind) Matches(x interface{}) bool {
	ev, ok := x.(events.Event)
	return ok && ev.Kind == events.Kind(k)
}

func (k eventKind) String() string {
	return fmt.Sprintf("event of kind %s", string(k))
}

var _ gomock.Matcher = eventKind("")
