package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	goredislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	interfaces "github.com/sheikh-saqib/transaction-approval-ledger/internal/interfaces"
)

const keyPrefix = "lock:account:"

// ErrLockNotAcquired is returned when an account lock stays busy past all retries.
var ErrLockNotAcquired = errors.New("account lock not acquired")

// Options tunes RedisLocker. Zero fields fall back to DefaultOptions.
type Options struct {
	Expiry     time.Duration
	Tries      int
	RetryDelay time.Duration
}

// DefaultOptions suits approvals that finish well within a second.
func DefaultOptions() Options {
	return Options{
		Expiry:     10 * time.Second,
		Tries:      32,
		RetryDelay: 50 * time.Millisecond,
	}
}

// RedisLocker serializes account updates across processes with the RedLock
// algorithm.
type RedisLocker struct {
	rs     *redsync.Redsync
	opts   Options
	logger *zap.Logger
}

func NewRedisLocker(client goredislib.UniversalClient, opts Options, logger *zap.Logger) *RedisLocker {
	def := DefaultOptions()
	if opts.Expiry <= 0 {
		opts.Expiry = def.Expiry
	}
	if opts.Tries <= 0 {
		opts.Tries = def.Tries
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = def.RetryDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RedisLocker{
		rs:     redsync.New(goredis.NewPool(client)),
		opts:   opts,
		logger: logger,
	}
}

func (l *RedisLocker) WithAccounts(ctx context.Context, accountIDs []string, fn func(ctx context.Context) error) error {
	keys := orderedKeys(accountIDs)

	held := make([]*redsync.Mutex, 0, len(keys))
	defer func() {
		for i := len(held) - 1; i >= 0; i-- {
			// release with a fresh context so a cancelled request still unlocks
			if ok, err := held[i].UnlockContext(context.Background()); !ok || err != nil {
				l.logger.Warn("failed to release account lock",
					zap.String("lock_key", held[i].Name()), zap.Bool("unlock_ok", ok), zap.Error(err))
			}
		}
	}()

	for _, key := range keys {
		mutex := l.rs.NewMutex(
			keyPrefix+key,
			redsync.WithExpiry(l.opts.Expiry),
			redsync.WithTries(l.opts.Tries),
			redsync.WithRetryDelay(l.opts.RetryDelay),
		)
		if err := mutex.LockContext(ctx); err != nil {
			l.logger.Warn("failed to acquire account lock", zap.String("lock_key", keyPrefix+key), zap.Error(err))
			return fmt.Errorf("%w: %s: %v", ErrLockNotAcquired, key, err)
		}
		held = append(held, mutex)
	}

	return fn(ctx)
}

var _ interfaces.AccountLocker = (*RedisLocker)(nil)
