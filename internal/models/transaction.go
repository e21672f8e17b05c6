package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MaxAmount is the exclusive upper bound for amounts and balances; stored
// values are NUMERIC(18,2).
var MaxAmount = decimal.New(1, 16)

// InRange reports whether d fits the stored money column.
func InRange(d decimal.Decimal) bool {
	return d.LessThan(MaxAmount)
}

// TransactionType is the kind of money movement a user requests.
type TransactionType string

const (
	TypeDeposit    TransactionType = "deposit"
	TypeWithdrawal TransactionType = "withdrawal"
	TypeTransfer   TransactionType = "transfer"
)

// Valid reports whether t is one of the three supported types.
func (t TransactionType) Valid() bool {
	switch t {
	case TypeDeposit, TypeWithdrawal, TypeTransfer:
		return true
	}
	return false
}

// Debits reports whether approving a transaction of this type takes money
// out of the owner's account.
func (t TransactionType) Debits() bool {
	return t == TypeWithdrawal || t == TypeTransfer
}

// TransactionStatus moves pending -> approved or pending -> declined, once.
type TransactionStatus string

const (
	StatusPending  TransactionStatus = "pending"
	StatusApproved TransactionStatus = "approved"
	StatusDeclined TransactionStatus = "declined"
)

// Valid reports whether s is a known status.
func (s TransactionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusDeclined:
		return true
	}
	return false
}

// Action is the decision an admin applies to a pending transaction.
type Action string

const (
	ActionApprove Action = "approve"
	ActionDecline Action = "decline"
)

// Valid reports whether a is approve or decline.
func (a Action) Valid() bool {
	return a == ActionApprove || a == ActionDecline
}

// Recipient addresses the credit leg of a transfer. It is resolved by
// account number at approval time, not at creation.
type Recipient struct {
	AccountNumber string `json:"accountNumber"`
	Name          string `json:"name"`
}

// AdminAction records who decided a transaction and when.
type AdminAction struct {
	AdminID    string    `json:"adminId"`
	ActionDate time.Time `json:"actionDate"`
	Comment    string    `json:"comment"`
}

// Transaction is a ledger record. AdminAction is set iff Status is not
// pending, BalanceAfter iff Status is approved.
type Transaction struct {
	ID            string              `json:"id"`
	TransactionID string              `json:"transactionId"`
	AccountID     string              `json:"accountId"`
	Type          TransactionType     `json:"type"`
	Amount        decimal.Decimal     `json:"amount"`
	Description   string              `json:"description,omitempty"`
	Recipient     *Recipient          `json:"recipient,omitempty"`
	Status        TransactionStatus   `json:"status"`
	AdminAction   *AdminAction        `json:"adminAction,omitempty"`
	BalanceAfter  decimal.NullDecimal `json:"balanceAfter"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}

// TransactionFilter narrows ListTransactions. Zero values mean "any".
type TransactionFilter struct {
	AccountID string
	Status    TransactionStatus
	Type      TransactionType
	Page      int
	Limit     int
}

// ApprovalCommit is everything ApplyApproval writes as one atomic unit.
type ApprovalCommit struct {
	TransactionID string
	OwnerID       string
	// ExpectedBalance is the owner balance the new balance was computed from.
	ExpectedBalance decimal.Decimal
	NewBalance      decimal.Decimal
	// CreditAccountID is empty unless a transfer recipient was resolved.
	CreditAccountID string
	CreditAmount    decimal.Decimal
	AdminAction     AdminAction
	At              time.Time
}

// ApprovalOutcome reports the state left behind by ApplyApproval.
type ApprovalOutcome struct {
	Transaction Transaction
	Credited    bool
}
