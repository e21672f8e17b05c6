package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role decides which side of the approval flow an account sits on.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Account holds the balance and status flags of a bank customer or admin.
// Balance is never negative; admins are never frozen.
type Account struct {
	ID            string          `json:"id"`
	AccountNumber string          `json:"accountNumber"`
	Username      string          `json:"username"`
	Email         string          `json:"email"`
	Role          Role            `json:"role"`
	Balance       decimal.Decimal `json:"balance"`
	IsFrozen      bool            `json:"isFrozen"`
	IsActive      bool            `json:"isActive"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// CanReceive reports whether a transfer credit may land on the account.
func (a Account) CanReceive() bool {
	return a.IsActive && !a.IsFrozen
}

// AccountFilter narrows ListAccounts. Zero values mean "any".
type AccountFilter struct {
	Role   Role
	Search string
	Frozen *bool
	Page   int
	Limit  int
}
