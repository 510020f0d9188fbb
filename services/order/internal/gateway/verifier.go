package gateway

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/onlineshop/settlement/pkg/logging"
	"github.com/onlineshop/settlement/services/order/internal/domain"
	"github.com/onlineshop/settlement/services/order/internal/models"
)

type Verifier struct {
	client *Client
}

func NewVerifier(client *Client) *Verifier {
	return &Verifier{client: client}
}

// Verify asks Paystack for the transaction status. Only an explicit failure or
// a mismatched successful charge fails the order; anything unclear stays pending.
func (v *Verifier) Verify(ctx context.Context, order *models.Order) domain.Verdict {
	l := logging.FromContext(ctx).With("component", "gateway_verifier", "reference", order.ReferenceKey)

	tx, err := v.client.Verify(ctx, order.ReferenceKey)
	if err != nil {
		if errors.Is(err, ErrTransactionNotFound) {
			return domain.Pending("not found")
		}
		l.Warn("gateway_verify_error", "err", err)
		return domain.Pending("gateway unavailable")
	}

	switch tx.Status {
	case StatusSuccess:
		if tx.Amount != order.TotalAmountFiat || !strings.EqualFold(tx.Currency, order.Currency) {
			l.Warn("gateway_amount_mismatch",
				"expected", order.TotalAmountFiat, "expected_currency", order.Currency,
				"received", tx.Amount, "received_currency", tx.Currency)
			return domain.Failed(domain.ReasonMismatch)
		}
		return domain.Confirmed(strconv.FormatInt(tx.ID, 10))
	case StatusFailed, StatusReversed:
		l.Info("gateway_payment_failed", "status", tx.Status, "gateway_response", tx.GatewayResponse)
		return domain.Failed(domain.ReasonGatewayFailed)
	default:
		return domain.Pending(tx.Status)
	}
}

// Instructor initializes a Paystack checkout under the order's own reference.
type Instructor struct {
	client      *Client
	callbackURL string
}

func NewInstructor(client *Client, callbackURL string) *Instructor {
	return &Instructor{client: client, callbackURL: callbackURL}
}

func (i *Instructor) Instruct(ctx context.Context, order *models.Order) (domain.PaymentInstructions, error) {
	if order.ContactEmail == "" {
		return domain.PaymentInstructions{}, fmt.Errorf("%w: email is required for card payments", domain.ErrBadRequest)
	}

	auth, err := i.client.Initialize(ctx, InitializeRequest{
		Email:       order.ContactEmail,
		Amount:      order.TotalAmountFiat,
		Currency:    order.Currency,
		Reference:   order.ReferenceKey,
		CallbackURL: i.callbackURL,
		Metadata:    map[string]string{"order_id": order.ID.String()},
	})
	if err != nil {
		return domain.PaymentInstructions{}, fmt.Errorf("%w: %v", domain.ErrPaymentUnavailable, err)
	}

	return domain.PaymentInstructions{
		Method:      domain.MethodPaystack,
		RedirectURL: auth.AuthorizationURL,
	}, nil
}
