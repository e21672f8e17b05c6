package events

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/transaction-approval-ledger/internal/models"
)

// Kind names a notification event as consumed by clients.
type Kind string

const (
	KindTransactionUpdate    Kind = "transactionUpdate"
	KindTransactionProcessed Kind = "transactionProcessed"
	KindNewTransaction       Kind = "newTransaction"
	KindTransactionCancelled Kind = "transactionCancelled"
	KindAccountStatusChange  Kind = "accountStatusChange"
)

// Event is the envelope handed to the notification dispatcher.
type Event struct {
	Kind       Kind      `json:"kind"`
	OccurredAt time.Time `json:"occurredAt"`
	Payload    any       `json:"payload"`
}

// New wraps payload in an Event stamped with at.
func New(kind Kind, at time.Time, payload any) Event {
	return Event{Kind: kind, OccurredAt: at, Payload: payload}
}

// TransactionUpdate goes to the owner of a processed transaction.
type TransactionUpdate struct {
	Transaction models.Transaction `json:"transaction"`
	UserBalance decimal.Decimal    `json:"userBalance"`
	Action      models.Action      `json:"action"`
}

// TransactionProcessed tells admins who processed a transaction.
type TransactionProcessed struct {
	TransactionID string        `json:"transactionId"`
	Action        models.Action `json:"action"`
	AdminID       string        `json:"adminId"`
	AdminUsername string        `json:"adminUsername"`
}

// Requester identifies the owner of a new transaction for admins.
type Requester struct {
	Username      string `json:"username"`
	AccountNumber string `json:"accountNumber"`
}

// NewTransaction tells admins a pending transaction awaits a decision.
type NewTransaction struct {
	Transaction models.Transaction `json:"transaction"`
	User        Requester          `json:"user"`
}

// TransactionCancelled tells admins an owner withdrew a pending transaction.
type TransactionCancelled struct {
	TransactionID string `json:"transactionId"`
	AccountID     string `json:"accountId"`
}

// AccountStatusChange tells a user their account was frozen or unfrozen.
type AccountStatusChange struct {
	IsFrozen bool   `json:"isFrozen"`
	Message  string `json:"message"`
}
