package ledger

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// NewTransactionRef builds a human-readable transactionId: "TXN", the unix
// milliseconds and six random digits. Uniqueness is finally enforced by the
// store, which rejects duplicates.
func NewTransactionRef(now time.Time) string {
	return fmt.Sprintf("TXN%d%06d", now.UnixMilli(), rand.IntN(1_000_000))
}

// NewAccountNumber returns a random ten-digit account number that never
// starts with zero.
func NewAccountNumber() string {
	return fmt.Sprintf("%d", 1_000_000_000+rand.Int64N(9_000_000_000))
}
