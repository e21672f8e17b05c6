package interfaces

import "context"

// AccountLocker serializes read-modify-write cycles on account balances.
// Implementations must acquire multiple keys in a deterministic order.
type AccountLocker interface {
	WithAccounts(ctx context.Context, accountIDs []string, fn func(ctx context.Context) error) error
}
