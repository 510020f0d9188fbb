package chain

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/onlineshop/settlement/services/order/internal/domain"
	"github.com/onlineshop/settlement/services/order/internal/models"
	"github.com/onlineshop/settlement/services/order/internal/pricing"
)

// Instructor builds Solana Pay transfer request URLs.
type Instructor struct {
	recipient string
	label     string
}

func NewInstructor(recipient, label string) *Instructor {
	return &Instructor{recipient: recipient, label: label}
}

func (i *Instructor) Instruct(_ context.Context, order *models.Order) (domain.PaymentInstructions, error) {
	if order.TotalAmountCrypto == nil {
		return domain.PaymentInstructions{}, errors.New("chain: order has no crypto amount")
	}
	u := TransferURL(i.recipient, *order.TotalAmountCrypto, order.ReferenceKey, i.label, "Order "+order.ID.String())
	return domain.PaymentInstructions{
		Method:    domain.MethodSolana,
		URL:       u,
		QRPayload: u,
	}, nil
}

// TransferURL formats solana:<recipient>?amount=&reference=&label=&message=.
func TransferURL(recipient string, lamports int64, reference, label, message string) string {
	var b strings.Builder
	b.WriteString("solana:")
	b.WriteString(recipient)
	b.WriteString("?amount=")
	b.WriteString(pricing.FormatSOL(lamports))
	b.WriteString("&reference=")
	b.WriteString(reference)
	if label != "" {
		b.WriteString("&label=")
		b.WriteString(escape(label))
	}
	if message != "" {
		b.WriteString("&message=")
		b.WriteString(escape(message))
	}
	return b.String()
}

func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
