package kafka

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	interfaces "github.com/sheikh-saqib/transaction-approval-ledger/internal/interfaces"
)

// BreakerSettings tunes BreakerPublisher.
type BreakerSettings struct {
	// ConsecutiveFailures opens the breaker.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{ConsecutiveFailures: 5, OpenTimeout: 30 * time.Second}
}

// BreakerPublisher stops hammering an unavailable broker: once open, Publish
// fails fast with gobreaker.ErrOpenState until the timeout elapses.
type BreakerPublisher struct {
	next interfaces.EventPublisher
	cb   *gobreaker.CircuitBreaker
}

func NewBreakerPublisher(next interfaces.EventPublisher, settings BreakerSettings, logger *zap.Logger) *BreakerPublisher {
	if settings.ConsecutiveFailures == 0 {
		settings.ConsecutiveFailures = DefaultBreakerSettings().ConsecutiveFailures
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "event-publisher",
		Timeout: settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.ConsecutiveFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})

	return &BreakerPublisher{next: next, cb: cb}
}

func (b *BreakerPublisher) Publish(ctx context.Context, topic, key string, event any) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Publish(ctx, topic, key, event)
	})
	return err
}

// State reports the breaker state, e.g. for health output.
func (b *BreakerPublisher) State() gobreaker.State {
	return b.cb.State()
}

var _ interfaces.EventPublisher = (*BreakerPublisher)(nil)
