package notify

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	interfaces "github.com/sheikh-saqib/transaction-approval-ledger/internal/interfaces"
	"github.com/sheikh-saqib/transaction-approval-ledger/internal/models/events"
)

const (
	UserTopicSuffix  = "user-events"
	AdminTopicSuffix = "admin-events"
	adminKey         = "admins"

	defaultQueueSize = 256
)

type outbound struct {
	topic string
	key   string
	event events.Event
}

// Dispatcher fans events out to the Hub immediately and hands them to an
// optional EventPublisher through a bounded queue drained by Run. Neither
// path can block or fail the caller.
type Dispatcher struct {
	hub         *Hub
	publisher   interfaces.EventPublisher
	userTopic   string
	adminTopic  string
	queue       chan outbound
	logger      *zap.Logger
	dropped     atomic.Int64
	publishFail atomic.Int64
}

// Config wires a Dispatcher. Publisher may be nil to disable the external stream.
type Config struct {
	Hub         *Hub
	Publisher   interfaces.EventPublisher
	TopicPrefix string
	QueueSize   int
	Logger      *zap.Logger
}

func NewDispatcher(cfg Config) *Dispatcher {
	if cfg.Hub == nil {
		cfg.Hub = NewHub(0)
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	prefix := cfg.TopicPrefix
	if prefix != "" {
		prefix += "."
	}

	return &Dispatcher{
		hub:        cfg.Hub,
		publisher:  cfg.Publisher,
		userTopic:  prefix + UserTopicSuffix,
		adminTopic: prefix + AdminTopicSuffix,
		queue:      make(chan outbound, cfg.QueueSize),
		logger:     cfg.Logger,
	}
}

// Hub returns the connection registry events are delivered to.
func (d *Dispatcher) Hub() *Hub {
	return d.hub
}

func (d *Dispatcher) NotifyAccount(ctx context.Context, accountID string, event events.Event) {
	n := d.hub.SendToAccount(accountID, event)
	d.logger.Debug("event delivered to account",
		zap.String("kind", string(event.Kind)), zap.String("account_id", accountID), zap.Int("connections", n))
	d.enqueue(outbound{topic: d.userTopic, key: accountID, event: event})
}

func (d *Dispatcher) NotifyAdmins(ctx context.Context, event events.Event) {
	n := d.hub.SendToAdmins(event)
	d.logger.Debug("event delivered to admins",
		zap.String("kind", string(event.Kind)), zap.Int("connections", n))
	d.enqueue(outbound{topic: d.adminTopic, key: adminKey, event: event})
}

func (d *Dispatcher) enqueue(msg outbound) {
	if d.publisher == nil {
		return
	}
	select {
	case d.queue <- msg:
	default:
		d.dropped.Add(1)
		d.logger.Warn("notification queue full, dropping event",
			zap.String("kind", string(msg.event.Kind)), zap.String("topic", msg.topic))
	}
}

// Run publishes queued events until ctx is done, then drains what is left.
func (d *Dispatcher) Run(ctx context.Context) {
	if d.publisher == nil {
		<-ctx.Done()
		return
	}

	d.logger.Info("notification dispatcher started", zap.String("user_topic", d.userTopic), zap.String("admin_topic", d.adminTopic))
	for {
		select {
		case msg := <-d.queue:
			d.publish(ctx, msg)
		case <-ctx.Done():
			d.drain()
			d.logger.Info("notification dispatcher stopped")
			return
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case msg := <-d.queue:
			d.publish(context.Background(), msg)
		default:
			return
		}
	}
}

func (d *Dispatcher) publish(ctx context.Context, msg outbound) {
	if err := d.publisher.Publish(ctx, msg.topic, msg.key, msg.event); err != nil {
		d.publishFail.Add(1)
		d.logger.Warn("failed to publish notification",
			zap.String("kind", string(msg.event.Kind)),
			zap.String("topic", msg.topic),
			zap.String("key", msg.key),
			zap.Error(err),
		)
	}
}

// Dropped returns how many events never reached the publisher queue.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// PublishFailures returns how many publish attempts failed.
func (d *Dispatcher) PublishFailures() int64 {
	return d.publishFail.Load()
}

var _ interfaces.Notifier = (*Dispatcher)(nil)
