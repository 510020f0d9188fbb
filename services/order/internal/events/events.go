// Package events publishes order lifecycle notifications for downstream
// consumers (email/SMS, fulfillment).
package events

import (
	"context"
	"sync"
	"time"

	"github.com/onlineshop/settlement/pkg/logging"
	"github.com/onlineshop/settlement/services/order/internal/models"
)

const TopicOrderEvents = "order_events"

const (
	TypeOrderCreated   = "order_created"
	TypeOrderConfirmed = "order_confirmed"
	TypeOrderFailed    = "order_failed"
)

type OrderEvent struct {
	Type          string    `json:"type"`
	OrderID       string    `json:"order_id"`
	UserID        string    `json:"user_id"`
	ReferenceKey  string    `json:"reference_key"`
	PaymentMethod string    `json:"payment_method"`
	PaymentStatus string    `json:"payment_status"`
	TotalFiat     int64     `json:"total_fiat"`
	Currency      string    `json:"currency"`
	Proof         string    `json:"proof,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	ContactEmail  string    `json:"contact_email,omitempty"`
	ContactPhone  string    `json:"contact_phone,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type Publisher interface {
	PublishEvent(ctx context.Context, topic, key string, event interface{}) error
}

// queueSize bounds events waiting for the broker; beyond it events are dropped.
const queueSize = 1024

type pending struct {
	ctx   context.Context
	event OrderEvent
}

// Notifier never blocks or fails the caller. Events are queued and delivered
// by a background goroutine; delivery errors are logged.
type Notifier struct {
	pub   Publisher
	now   func() time.Time
	queue chan pending
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewNotifier(pub Publisher) *Notifier {
	n := &Notifier{
		pub:   pub,
		now:   time.Now,
		queue: make(chan pending, queueSize),
		done:  make(chan struct{}),
	}
	go n.deliver()
	return n
}

func (n *Notifier) OrderCreated(ctx context.Context, o *models.Order) {
	n.publish(ctx, TypeOrderCreated, o, "")
}

func (n *Notifier) OrderConfirmed(ctx context.Context, o *models.Order) {
	n.publish(ctx, TypeOrderConfirmed, o, "")
}

func (n *Notifier) OrderFailed(ctx context.Context, o *models.Order, reason string) {
	n.publish(ctx, TypeOrderFailed, o, reason)
}

// Close stops accepting events and waits for queued ones to be delivered.
func (n *Notifier) Close() {
	if n == nil {
		return
	}
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.queue)
	}
	n.mu.Unlock()
	<-n.done
}

func (n *Notifier) publish(ctx context.Context, typ string, o *models.Order, reason string) {
	if n == nil || n.pub == nil {
		return
	}
	ev := OrderEvent{
		Type:          typ,
		OrderID:       o.ID.String(),
		UserID:        o.UserID.String(),
		ReferenceKey:  o.ReferenceKey,
		PaymentMethod: string(o.PaymentMethod),
		PaymentStatus: string(o.PaymentStatus),
		TotalFiat:     o.TotalAmountFiat,
		Currency:      o.Currency,
		Reason:        reason,
		ContactEmail:  o.ContactEmail,
		ContactPhone:  o.ContactPhone,
		OccurredAt:    n.now().UTC(),
	}
	if o.TransactionSignature != nil {
		ev.Proof = *o.TransactionSignature
	}

	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		logging.FromContext(ctx).Warn("order_event_dropped", "type", typ, "order_id", ev.OrderID, "reason", "notifier closed")
		return
	}
	// the request may finish before delivery; keep its values, not its deadline
	select {
	case n.queue <- pending{ctx: context.WithoutCancel(ctx), event: ev}:
	default:
		logging.FromContext(ctx).Error("order_event_dropped", "type", typ, "order_id", ev.OrderID, "reason", "queue full")
	}
}

func (n *Notifier) deliver() {
	defer close(n.done)
	for p := range n.queue {
		if err := n.pub.PublishEvent(p.ctx, TopicOrderEvents, p.event.OrderID, p.event); err != nil {
			logging.FromContext(p.ctx).Error("publish_order_event_failed", "type", p.event.Type, "order_id", p.event.OrderID, "err", err)
		}
	}
}
