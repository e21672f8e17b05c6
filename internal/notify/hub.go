// Package notify routes outcome events to connected clients and to an
// external event stream. Delivery is best effort throughout.
package notify

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/sheikh-saqib/transaction-approval-ledger/internal/models"
	"github.com/sheikh-saqib/transaction-approval-ledger/internal/models/events"
)

const defaultSubscriptionBuffer = 32

// Subscription is one live connection. Events arrive on C until Close.
type Subscription struct {
	ID        string
	AccountID string
	Role      models.Role
	C         <-chan events.Event

	ch     chan events.Event
	hub    *Hub
	closed sync.Once
}

// Close unregisters the connection and closes C.
func (s *Subscription) Close() {
	s.closed.Do(func() {
		s.hub.remove(s)
	})
}

// Hub is the connection registry: account id -> live connections, plus the
// admin audience. An account may hold any number of connections.
type Hub struct {
	mu       sync.RWMutex
	accounts map[string]map[string]*Subscription
	admins   map[string]*Subscription
	buffer   int
	dropped  atomic.Int64
}

// NewHub creates a registry whose connections buffer up to buffer events.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultSubscriptionBuffer
	}
	return &Hub{
		accounts: make(map[string]map[string]*Subscription),
		admins:   make(map[string]*Subscription),
		buffer:   buffer,
	}
}

// Subscribe registers a connection for accountID. Admin connections also
// receive every admin broadcast.
func (h *Hub) Subscribe(accountID string, role models.Role) *Subscription {
	ch := make(chan events.Event, h.buffer)
	sub := &Subscription{
		ID:        uuid.New().String(),
		AccountID: accountID,
		Role:      role,
		C:         ch,
		ch:        ch,
		hub:       h,
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.accounts[accountID]
	if !ok {
		conns = make(map[string]*Subscription)
		h.accounts[accountID] = conns
	}
	conns[sub.ID] = sub
	if role == models.RoleAdmin {
		h.admins[sub.ID] = sub
	}
	return sub
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.accounts[sub.AccountID]; ok {
		delete(conns, sub.ID)
		if len(conns) == 0 {
			delete(h.accounts, sub.AccountID)
		}
	}
	delete(h.admins, sub.ID)
	close(sub.ch)
}

// SendToAccount delivers event to every connection of accountID and returns
// how many accepted it.
func (h *Hub) SendToAccount(accountID string, event events.Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, sub := range h.accounts[accountID] {
		if h.offer(sub, event) {
			delivered++
		}
	}
	return delivered
}

// SendToAdmins delivers event to every admin connection.
func (h *Hub) SendToAdmins(event events.Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, sub := range h.admins {
		if h.offer(sub, event) {
			delivered++
		}
	}
	return delivered
}

// offer never blocks: a connection that is not keeping up loses the event.
// Callers hold h.mu, which also keeps remove from closing the channel mid-send.
func (h *Hub) offer(sub *Subscription, event events.Event) bool {
	select {
	case sub.ch <- event:
		return true
	default:
		h.dropped.Add(1)
		return false
	}
}

// Connections returns the number of live connections.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, conns := range h.accounts {
		n += len(conns)
	}
	return n
}

// Dropped returns how many deliveries were discarded on full buffers.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}
