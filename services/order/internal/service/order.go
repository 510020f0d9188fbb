// Package service holds the settlement orchestrator: it prices carts, opens
// pending orders with a payment reference and settles them against the
// matching payment rail.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/onlineshop/settlement/pkg/logging"
	"github.com/onlineshop/settlement/services/order/internal/domain"
	"github.com/onlineshop/settlement/services/order/internal/metrics"
	"github.com/onlineshop/settlement/services/order/internal/models"
	"github.com/onlineshop/settlement/services/order/internal/pricing"
	"github.com/onlineshop/settlement/services/order/internal/repo"
)

const maxReferenceAttempts = 3

type Ledger interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	FindByReference(ctx context.Context, reference string) (*models.Order, error)
	GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	ListOrders(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error)
	Confirm(ctx context.Context, orderID uuid.UUID, proof string) (repo.ConfirmResult, error)
	Fail(ctx context.Context, orderID uuid.UUID, reason string) (bool, error)
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}

type ReferenceGenerator interface {
	Generate() (string, error)
}

type Quoter interface {
	FiatToCrypto(ctx context.Context, fiatMinor int64) (pricing.Quote, error)
}

type Instructor interface {
	Instruct(ctx context.Context, order *models.Order) (domain.PaymentInstructions, error)
}

// Verifier never returns an error: anything it cannot decide is pending.
type Verifier interface {
	Verify(ctx context.Context, order *models.Order) domain.Verdict
}

type Notifier interface {
	OrderCreated(ctx context.Context, o *models.Order)
	OrderConfirmed(ctx context.Context, o *models.Order)
	OrderFailed(ctx context.Context, o *models.Order, reason string)
}

// Rail bundles what one payment method needs. Quoter is nil for fiat rails.
type Rail struct {
	Quoter     Quoter
	Instructor Instructor
	Verifier   Verifier
}

type OrderService struct {
	Cart       *CartValidator
	Ledger     Ledger
	References ReferenceGenerator
	Rails      map[domain.PaymentMethod]Rail
	Notifier   Notifier
	Currency   string
	TTL        time.Duration
	Now        func() time.Time
}

type CreateOrderInput struct {
	UserID   uuid.UUID
	Method   domain.PaymentMethod
	Items    []domain.CartLine
	Delivery domain.Delivery
}

func (s *OrderService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *OrderService) ValidateCart(ctx context.Context, lines []domain.CartLine) (domain.ValidatedCart, error) {
	return s.Cart.Validate(ctx, lines)
}

func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (domain.OrderSummary, error) {
	l := logging.FromContext(ctx).With("op", "create_order", "user_id", in.UserID, "method", in.Method)

	summary, err := s.createOrder(ctx, in)
	if err != nil {
		metrics.RecordOperation(metrics.OpCreateOrder, "error")
		l.Warn("create_order_failed", "err", err)
		return domain.OrderSummary{}, err
	}
	metrics.RecordOperation(metrics.OpCreateOrder, "success")
	l.Info("order_created", "order_id", summary.OrderID, "total_fiat", summary.TotalFiat)
	return summary, nil
}

func (s *OrderService) createOrder(ctx context.Context, in CreateOrderInput) (domain.OrderSummary, error) {
	if in.UserID == uuid.Nil {
		return domain.OrderSummary{}, fmt.Errorf("%w: user is required", domain.ErrBadRequest)
	}
	rail, ok := s.Rails[in.Method]
	if !ok {
		return domain.OrderSummary{}, fmt.Errorf("%w: unsupported payment method %q", domain.ErrBadRequest, in.Method)
	}

	cart, err := s.Cart.Validate(ctx, in.Items)
	if err != nil {
		return domain.OrderSummary{}, err
	}
	if !cart.Success {
		return domain.OrderSummary{}, &domain.InsufficientStockError{ProductIDs: cart.Blocking()}
	}

	var crypto *int64
	if rail.Quoter != nil {
		q, err := rail.Quoter.FiatToCrypto(ctx, cart.TotalFiat)
		if err != nil {
			return domain.OrderSummary{}, err
		}
		crypto = &q.Lamports
	}

	for attempt := 1; ; attempt++ {
		order, instructions, err := s.openOrder(ctx, in, cart, crypto, rail)
		if err == nil {
			if s.Notifier != nil {
				s.Notifier.OrderCreated(ctx, order)
			}
			return summarize(order, instructions), nil
		}
		if !errors.Is(err, domain.ErrConflict) || attempt >= maxReferenceAttempts {
			return domain.OrderSummary{}, err
		}
		logging.FromContext(ctx).Warn("reference_collision", "attempt", attempt)
	}
}

// openOrder draws a reference, prepares payment instructions and persists the pending order.
// Instructions come first so a gateway that refuses the checkout leaves nothing behind.
func (s *OrderService) openOrder(
	ctx context.Context,
	in CreateOrderInput,
	cart domain.ValidatedCart,
	crypto *int64,
	rail Rail,
) (*models.Order, domain.PaymentInstructions, error) {
	ref, err := s.References.Generate()
	if err != nil {
		return nil, domain.PaymentInstructions{}, fmt.Errorf("generate reference: %w", err)
	}

	now := s.now()
	order := &models.Order{
		ID:                uuid.New(),
		UserID:            in.UserID,
		PaymentMethod:     in.Method,
		Currency:          s.Currency,
		TotalAmountFiat:   cart.TotalFiat,
		TotalAmountCrypto: crypto,
		PaymentStatus:     domain.PaymentPending,
		FulfillmentStatus: domain.FulfillmentPending,
		ReferenceKey:      ref,
		ExpiresAt:         now.Add(s.TTL),
		ContactName:       in.Delivery.Name,
		ContactEmail:      in.Delivery.Email,
		ContactPhone:      in.Delivery.Phone,
		DeliveryAddress:   in.Delivery.Address,
	}
	for _, line := range cart.Items {
		order.Items = append(order.Items, models.OrderItem{
			ProductID:       line.ProductID,
			ProductName:     line.Name,
			Quantity:        line.Quantity,
			PriceAtPurchase: line.UnitPrice,
		})
	}

	instructions, err := rail.Instructor.Instruct(ctx, order)
	if err != nil {
		return nil, domain.PaymentInstructions{}, err
	}

	if err := s.Ledger.CreateOrder(ctx, order); err != nil {
		return nil, domain.PaymentInstructions{}, err
	}
	return order, instructions, nil
}

func summarize(o *models.Order, pi domain.PaymentInstructions) domain.OrderSummary {
	sum := domain.OrderSummary{
		OrderID:             o.ID.String(),
		ReferenceKey:        o.ReferenceKey,
		TotalFiat:           o.TotalAmountFiat,
		Currency:            o.Currency,
		TotalCrypto:         o.TotalAmountCrypto,
		PaymentInstructions: pi,
		ExpiresAt:           o.ExpiresAt,
	}
	if o.TotalAmountCrypto != nil {
		sum.TotalCryptoDisplay = pricing.FormatSOL(*o.TotalAmountCrypto)
	}
	return sum
}

// VerifyPayment settles the order behind reference if the payment source has
// positive evidence either way; otherwise the order stays pending.
func (s *OrderService) VerifyPayment(ctx context.Context, reference string) (domain.VerifyResult, error) {
	if reference == "" {
		return domain.VerifyResult{}, fmt.Errorf("%w: reference is required", domain.ErrBadRequest)
	}

	res, err := s.verifyPayment(ctx, reference)
	if err != nil {
		metrics.RecordOperation(metrics.OpVerifyPayment, "error")
		return domain.VerifyResult{}, err
	}
	metrics.RecordOperation(metrics.OpVerifyPayment, string(res.Status))
	return res, nil
}

func (s *OrderService) verifyPayment(ctx context.Context, reference string) (domain.VerifyResult, error) {
	order, err := s.Ledger.FindByReference(ctx, reference)
	if err != nil {
		return domain.VerifyResult{}, err
	}
	l := logging.FromContext(ctx).With("op", "verify_payment", "order_id", order.ID, "reference", reference)

	if order.PaymentStatus.Terminal() {
		return resultOf(order), nil
	}

	if order.Expired(s.now()) {
		l.Info("order_expired")
		return s.fail(ctx, order, domain.ReasonExpired)
	}

	rail, ok := s.Rails[order.PaymentMethod]
	if !ok {
		return domain.VerifyResult{}, fmt.Errorf("no payment rail for method %q", order.PaymentMethod)
	}

	verdict := rail.Verifier.Verify(ctx, order)
	switch verdict.Status {
	case domain.PaymentConfirmed:
		return s.confirm(ctx, order, verdict.Proof)
	case domain.PaymentFailed:
		l.Warn("payment_rejected", "reason", verdict.Reason)
		return s.fail(ctx, order, verdict.Reason)
	default:
		l.Debug("payment_pending", "reason", verdict.Reason)
		return resultOf(order), nil
	}
}

func (s *OrderService) confirm(ctx context.Context, order *models.Order, proof string) (domain.VerifyResult, error) {
	l := logging.FromContext(ctx).With("order_id", order.ID)

	res, err := s.Ledger.Confirm(ctx, order.ID, proof)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			l.Warn("confirm_after_fail", "proof", proof)
			return s.reload(ctx, order.ReferenceKey)
		}
		return domain.VerifyResult{}, err
	}
	if !res.Applied {
		return s.reload(ctx, order.ReferenceKey)
	}

	if len(res.Oversold) > 0 {
		l.Error("order_oversold", "product_ids", res.Oversold)
	}

	order.PaymentStatus = domain.PaymentConfirmed
	order.TransactionSignature = &proof
	l.Info("order_confirmed", "proof", proof)
	if s.Notifier != nil {
		s.Notifier.OrderConfirmed(ctx, order)
	}
	return resultOf(order), nil
}

func (s *OrderService) fail(ctx context.Context, order *models.Order, reason string) (domain.VerifyResult, error) {
	applied, err := s.Ledger.Fail(ctx, order.ID, reason)
	if err != nil {
		return domain.VerifyResult{}, err
	}
	if !applied {
		return s.reload(ctx, order.ReferenceKey)
	}

	order.PaymentStatus = domain.PaymentFailed
	order.FulfillmentStatus = domain.FulfillmentCancelled
	order.FailureReason = &reason
	logging.FromContext(ctx).Info("order_failed", "order_id", order.ID, "reason", reason)
	if s.Notifier != nil {
		s.Notifier.OrderFailed(ctx, order, reason)
	}
	return resultOf(order), nil
}

// reload returns whatever a concurrent writer settled the order to.
func (s *OrderService) reload(ctx context.Context, reference string) (domain.VerifyResult, error) {
	order, err := s.Ledger.FindByReference(ctx, reference)
	if err != nil {
		return domain.VerifyResult{}, err
	}
	return resultOf(order), nil
}

func resultOf(o *models.Order) domain.VerifyResult {
	return domain.VerifyResult{
		OrderID:          o.ID.String(),
		Status:           o.PaymentStatus,
		TransactionProof: o.TransactionSignature,
	}
}

func (s *OrderService) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	return s.Ledger.GetOrder(ctx, userID, orderID)
}

func (s *OrderService) ListOrders(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.Ledger.ListOrders(ctx, userID, limit, offset)
}
