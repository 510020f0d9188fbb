package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onlineshop/settlement/services/order/internal/domain"
	"github.com/onlineshop/settlement/services/order/internal/models"
)

type captured struct {
	topic, key string
	event      OrderEvent
	ctxErr     error
}

type fakePublisher struct {
	mu    sync.Mutex
	got   []captured
	err   error
	delay time.Duration
}

func (f *fakePublisher) PublishEvent(ctx context.Context, topic, key string, event interface{}) error {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, captured{topic: topic, key: key, event: event.(OrderEvent), ctxErr: ctx.Err()})
	return f.err
}

func (f *fakePublisher) events() []captured {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]captured(nil), f.got...)
}

func confirmedOrder() *models.Order {
	proof := "5xSig"
	return &models.Order{
		ID:                   uuid.New(),
		UserID:               uuid.New(),
		ReferenceKey:         "ref",
		PaymentMethod:        domain.MethodSolana,
		PaymentStatus:        domain.PaymentConfirmed,
		TotalAmountFiat:      2000,
		Currency:             "NGN",
		TransactionSignature: &proof,
	}
}

func TestNotifier(t *testing.T) {
	t.Parallel()
	pub := &fakePublisher{}
	n := NewNotifier(pub)

	o := confirmedOrder()
	n.OrderConfirmed(context.Background(), o)
	n.OrderFailed(context.Background(), o, domain.ReasonExpired)
	n.Close()

	got := pub.events()
	require.Len(t, got, 2)
	assert.Equal(t, TopicOrderEvents, got[0].topic)
	assert.Equal(t, o.ID.String(), got[0].key)
	assert.Equal(t, TypeOrderConfirmed, got[0].event.Type)
	assert.Equal(t, "5xSig", got[0].event.Proof)
	assert.Equal(t, TypeOrderFailed, got[1].event.Type)
	assert.Equal(t, domain.ReasonExpired, got[1].event.Reason)
}

func TestNotifier_DoesNotBlockOnSlowBroker(t *testing.T) {
	t.Parallel()
	pub := &fakePublisher{delay: 500 * time.Millisecond}
	n := NewNotifier(pub)

	start := time.Now()
	n.OrderConfirmed(context.Background(), confirmedOrder())
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	n.Close()
	assert.Len(t, pub.events(), 1)
}

func TestNotifier_DeliversAfterRequestContextEnds(t *testing.T) {
	t.Parallel()
	pub := &fakePublisher{delay: 50 * time.Millisecond}
	n := NewNotifier(pub)

	ctx, cancel := context.WithCancel(context.Background())
	n.OrderConfirmed(ctx, confirmedOrder())
	cancel()
	n.Close()

	got := pub.events()
	require.Len(t, got, 1)
	assert.NoError(t, got[0].ctxErr)
}

func TestNotifier_SwallowsErrors(t *testing.T) {
	t.Parallel()
	n := NewNotifier(&fakePublisher{err: errors.New("broker down")})
	assert.NotPanics(t, func() {
		n.OrderCreated(context.Background(), &models.Order{ID: uuid.New()})
		n.Close()
	})

	assert.NotPanics(t, func() {
		n.OrderCreated(context.Background(), &models.Order{ID: uuid.New()})
		n.Close()
	})

	var nilNotifier *Notifier
	assert.NotPanics(t, func() {
		nilNotifier.OrderCreated(context.Background(), &models.Order{ID: uuid.New()})
		nilNotifier.Close()
	})
}
