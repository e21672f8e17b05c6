package ledger

import (
	"context"
	"time"

	"go.uber.org/zap"

	interfaces "github.com/sheikh-saqib/transaction-approval-ledger/internal/interfaces"
	"github.com/sheikh-saqib/transaction-approval-ledger/internal/lock"
	"github.com/sheikh-saqib/transaction-approval-ledger/internal/models"
	"github.com/sheikh-saqib/transaction-approval-ledger/internal/models/events"
)

const (
	// maxIDAttempts bounds regeneration of a colliding transactionId.
	maxIDAttempts = 3
	// maxApprovalAttempts bounds optimistic retries when the owner balance
	// moved between read and commit.
	maxApprovalAttempts = 3
)

// Actor is the authenticated caller of an operation.
type Actor struct {
	AccountID string
	Role      models.Role
}

// IsAdmin reports whether the caller acts as an admin.
func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

// Service is the transactional core: intake, approval, cancellation and
// freezing, all expressed against a LedgerStore's atomic primitives.
type Service struct {
	store    interfaces.LedgerStore
	notifier interfaces.Notifier
	locker   interfaces.AccountLocker
	logger   *zap.Logger
	now      func() time.Time
	newRef   func(time.Time) string
}

// Option customizes a Service.
type Option func(*Service)

func WithLocker(locker interfaces.AccountLocker) Option {
	return func(s *Service) { s.locker = locker }
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithTransactionRefGenerator replaces the human-readable transactionId generator.
func WithTransactionRefGenerator(gen func(time.Time) string) Option {
	return func(s *Service) { s.newRef = gen }
}

// NewService wires a Service. A nil notifier discards events; the locker
// defaults to an in-process MemoryLocker.
func NewService(store interfaces.LedgerStore, notifier interfaces.Notifier, opts ...Option) *Service {
	s := &Service{
		store:    store,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
		newRef:   NewTransactionRef,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.notifier == nil {
		s.notifier = discardNotifier{}
	}
	if s.locker == nil {
		s.locker = lock.NewMemoryLocker()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// requireAdmin loads adminID and rejects anything but an admin account.
func (s *Service) requireAdmin(ctx context.Context, adminID string) (models.Account, error) {
	admin, err := s.store.GetAccount(ctx, adminID)
	if err != nil {
		return models.Account{}, err
	}
	if admin.Role != models.RoleAdmin {
		return models.Account{}, models.ErrForbidden
	}
	return admin, nil
}

type discardNotifier struct{}

func (discardNotifier) NotifyAccount(context.Context, string, events.Event) {}
func (discardNotifier) NotifyAdmins(context.Context, events.Event)          {}
