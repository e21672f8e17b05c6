package lock

import (
	"context"
	"sync"

	interfaces "github.com/sheikh-saqib/transaction-approval-ledger/internal/interfaces"
)

// MemoryLocker holds one mutex per account for the lifetime of the process.
// It only serializes callers inside this process; run RedisLocker when
// several instances share a store.
type MemoryLocker struct {
	muMap map[string]*sync.Mutex // stores the *sync.Mutex for each account
	mapMu sync.Mutex             // protects muMap itself
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{muMap: make(map[string]*sync.Mutex)}
}

func (l *MemoryLocker) accountLock(accountID string) *sync.Mutex {
	l.mapMu.Lock()
	defer l.mapMu.Unlock()

	if _, exists := l.muMap[accountID]; !exists {
		l.muMap[accountID] = &sync.Mutex{}
	}
	return l.muMap[accountID]
}

// WithAccounts runs fn while holding the locks of every account in accountIDs.
func (l *MemoryLocker) WithAccounts(ctx context.Context, accountIDs []string, fn func(ctx context.Context) error) error {
	// Lock in sorted order to avoid deadlocks
	keys := orderedKeys(accountIDs)

	held := make([]*sync.Mutex, 0, len(keys))
	// Release in reverse, including after a partial acquire
	defer func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}()

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		mu := l.accountLock(key)
		mu.Lock()
		held = append(held, mu)
	}

	return fn(ctx)
}

var _ interfaces.AccountLocker = (*MemoryLocker)(nil)
